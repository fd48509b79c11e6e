package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/stonenotes/stonenotes/internal/domain"
	"github.com/stonenotes/stonenotes/internal/repository"
	apperrors "github.com/stonenotes/stonenotes/pkg/errors"
	"github.com/stonenotes/stonenotes/pkg/pagination"
)

// NoteService implements owner-scoped note operations.
type NoteService struct {
	noteRepo repository.NoteRepository
	logger   *slog.Logger
}

// NewNoteService creates a new note service.
func NewNoteService(noteRepo repository.NoteRepository, logger *slog.Logger) *NoteService {
	return &NoteService{
		noteRepo: noteRepo,
		logger:   logger,
	}
}

// CreateNoteInput holds the parameters for creating a note.
type CreateNoteInput struct {
	Title   string
	Content string
}

// UpdateNoteInput holds the parameters for updating a note. Nil fields are
// left unchanged.
type UpdateNoteInput struct {
	Title   *string
	Content *string
}

// Create stores a new note for the owner.
func (s *NoteService) Create(ctx context.Context, ownerID string, input CreateNoteInput) (*domain.Note, error) {
	title := strings.TrimSpace(input.Title)
	if err := validateNote(title, input.Content); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	note := &domain.Note{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Title:     title,
		Content:   input.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.noteRepo.Create(ctx, note); err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}

	s.logger.InfoContext(ctx, "note created",
		slog.String("user_id", ownerID),
		slog.String("note_id", note.ID),
	)

	return note, nil
}

// Get returns one of the owner's notes.
func (s *NoteService) Get(ctx context.Context, ownerID, id string) (*domain.Note, error) {
	note, err := s.noteRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	return note, nil
}

// List returns a page of the owner's notes in the given order.
func (s *NoteService) List(ctx context.Context, ownerID string, sort domain.NoteSort, params pagination.Params) ([]domain.Note, int, error) {
	notes, total, err := s.noteRepo.ListByOwner(ctx, ownerID, sort, params.PerPage, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}
	if notes == nil {
		notes = []domain.Note{}
	}
	return notes, total, nil
}

// Update changes the title and content of one of the owner's notes.
func (s *NoteService) Update(ctx context.Context, ownerID, id string, input UpdateNoteInput) (*domain.Note, error) {
	note, err := s.noteRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("get note for update: %w", err)
	}

	if input.Title != nil {
		note.Title = strings.TrimSpace(*input.Title)
	}
	if input.Content != nil {
		note.Content = *input.Content
	}
	if err := validateNote(note.Title, note.Content); err != nil {
		return nil, err
	}

	note.UpdatedAt = time.Now().UTC()
	if err := s.noteRepo.Update(ctx, note); err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}

	s.logger.InfoContext(ctx, "note updated",
		slog.String("user_id", ownerID),
		slog.String("note_id", id),
	)

	return note, nil
}

// Delete removes one of the owner's notes.
func (s *NoteService) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.noteRepo.Delete(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}

	s.logger.InfoContext(ctx, "note deleted",
		slog.String("user_id", ownerID),
		slog.String("note_id", id),
	)

	return nil
}

func validateNote(title, content string) error {
	if title == "" {
		return apperrors.InvalidInput("title is required")
	}
	if utf8.RuneCountInString(title) > domain.MaxNoteTitleLength {
		return apperrors.InvalidInput(fmt.Sprintf("title must be at most %d characters", domain.MaxNoteTitleLength))
	}
	if utf8.RuneCountInString(content) > domain.MaxNoteContentLength {
		return apperrors.InvalidInput(fmt.Sprintf("content must be at most %d characters", domain.MaxNoteContentLength))
	}
	return nil
}

package repository

import (
	"context"
	"time"

	"github.com/stonenotes/stonenotes/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user into the store.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// RefreshTokenRepository defines the interface for refresh token persistence.
// Missing rows are reported with apperrors.ErrNotFound.
type RefreshTokenRepository interface {
	// Save stores a new refresh token.
	Save(ctx context.Context, token *domain.RefreshToken) error

	// FindByToken retrieves a refresh token by its exact token string.
	FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error)

	// Delete removes a refresh token.
	Delete(ctx context.Context, token string) error

	// DeleteIfExpired removes the token only if its expiry is before now, as a
	// single atomic operation. It reports whether a row was removed.
	DeleteIfExpired(ctx context.Context, token string, now time.Time) (bool, error)

	// Rotate atomically removes the live token oldToken (expiry not before now)
	// and stores next in its place. It returns apperrors.ErrNotFound when
	// oldToken is no longer live, so only one concurrent rotation succeeds.
	Rotate(ctx context.Context, oldToken string, next *domain.RefreshToken, now time.Time) error

	// DeleteByOwner removes every refresh token of the given owner and returns
	// the number removed.
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
}

// NoteRepository defines the interface for note persistence. Every lookup is
// scoped to the owner; another owner's note is reported as not found.
type NoteRepository interface {
	// Create inserts a new note.
	Create(ctx context.Context, note *domain.Note) error

	// GetByID retrieves a note of the owner.
	GetByID(ctx context.Context, ownerID, id string) (*domain.Note, error)

	// ListByOwner returns a page of the owner's notes in the given order,
	// together with the owner's total note count.
	ListByOwner(ctx context.Context, ownerID string, sort domain.NoteSort, limit, offset int) ([]domain.Note, int, error)

	// Update modifies the title and content of an owner's note.
	Update(ctx context.Context, note *domain.Note) error

	// Delete removes an owner's note.
	Delete(ctx context.Context, ownerID, id string) error
}

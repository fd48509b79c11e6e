package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stonenotes/stonenotes/internal/domain"
	"github.com/stonenotes/stonenotes/pkg/database"
	apperrors "github.com/stonenotes/stonenotes/pkg/errors"
)

// noteSortColumns whitelists the columns a listing can be ordered by.
var noteSortColumns = map[string]string{
	domain.NoteSortCreatedAt: "created_at",
	domain.NoteSortUpdatedAt: "updated_at",
	domain.NoteSortTitle:     "title",
}

// NoteRepository implements repository.NoteRepository using PostgreSQL. Every
// statement filters on owner_id, so one user can never read or change another
// user's notes.
type NoteRepository struct {
	db database.DBTX
}

// NewNoteRepository creates a new PostgreSQL-backed note repository.
func NewNoteRepository(db database.DBTX) *NoteRepository {
	return &NoteRepository{db: db}
}

// Create inserts a new note.
func (r *NoteRepository) Create(ctx context.Context, n *domain.Note) (err error) {
	query := `
		INSERT INTO notes (id, owner_id, title, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	ctx, end := database.TraceQuery(ctx, "CreateNote", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		n.ID,
		n.OwnerID,
		n.Title,
		n.Content,
		n.CreatedAt,
		n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}

	return nil
}

// GetByID retrieves a note of the owner.
func (r *NoteRepository) GetByID(ctx context.Context, ownerID, id string) (_ *domain.Note, err error) {
	query := `
		SELECT id, owner_id, title, content, created_at, updated_at
		FROM notes
		WHERE id = $1 AND owner_id = $2`

	ctx, end := database.TraceQuery(ctx, "GetNote", query)
	defer func() { end(err) }()

	var n domain.Note
	err = r.db.QueryRow(ctx, query, id, ownerID).Scan(
		&n.ID,
		&n.OwnerID,
		&n.Title,
		&n.Content,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("note", id)
		}
		return nil, fmt.Errorf("scan note: %w", err)
	}

	return &n, nil
}

// ListByOwner returns a page of the owner's notes in the given order, along
// with the owner's total note count. Ties are broken by id in the same
// direction.
func (r *NoteRepository) ListByOwner(ctx context.Context, ownerID string, sort domain.NoteSort, limit, offset int) (_ []domain.Note, _ int, err error) {
	orderBy, err := noteOrderBy(sort)
	if err != nil {
		return nil, 0, err
	}

	countQuery := `SELECT COUNT(*) FROM notes WHERE owner_id = $1`
	listQuery := `
		SELECT id, owner_id, title, content, created_at, updated_at
		FROM notes
		WHERE owner_id = $1
		` + orderBy + `
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "ListNotes", listQuery)
	defer func() { end(err) }()

	var total int
	if err = r.db.QueryRow(ctx, countQuery, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}

	rows, err := r.db.Query(ctx, listQuery, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	notes := []domain.Note{}
	for rows.Next() {
		var n domain.Note
		if err = rows.Scan(
			&n.ID,
			&n.OwnerID,
			&n.Title,
			&n.Content,
			&n.CreatedAt,
			&n.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan note row: %w", err)
		}
		notes = append(notes, n)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate note rows: %w", err)
	}

	return notes, total, nil
}

// Update modifies the title and content of an owner's note.
func (r *NoteRepository) Update(ctx context.Context, n *domain.Note) (err error) {
	query := `
		UPDATE notes
		SET title = $1, content = $2, updated_at = $3
		WHERE id = $4 AND owner_id = $5`

	ctx, end := database.TraceQuery(ctx, "UpdateNote", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, n.Title, n.Content, n.UpdatedAt, n.ID, n.OwnerID)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("note", n.ID)
	}

	return nil
}

// Delete removes an owner's note.
func (r *NoteRepository) Delete(ctx context.Context, ownerID, id string) (err error) {
	query := `DELETE FROM notes WHERE id = $1 AND owner_id = $2`

	ctx, end := database.TraceQuery(ctx, "DeleteNote", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("note", id)
	}

	return nil
}

func noteOrderBy(sort domain.NoteSort) (string, error) {
	column, ok := noteSortColumns[sort.Field]
	if !ok {
		return "", fmt.Errorf("%w: unknown sortBy %q", domain.ErrInvalidNoteSort, sort.Field)
	}
	dir := "ASC"
	if sort.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s, id %s", column, dir, dir), nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stonenotes/stonenotes/internal/domain"
	"github.com/stonenotes/stonenotes/pkg/database"
	apperrors "github.com/stonenotes/stonenotes/pkg/errors"
)

const insertRefreshToken = `
	INSERT INTO refresh_tokens (token, owner_id, expires_at, created_at)
	VALUES ($1, $2, $3, $4)`

// RefreshTokenRepository implements repository.RefreshTokenRepository using
// PostgreSQL. Conditional deletes are single statements, so concurrent callers
// are serialized on the token's row by the database.
type RefreshTokenRepository struct {
	db database.DBTX
}

// NewRefreshTokenRepository creates a new PostgreSQL-backed refresh token repository.
func NewRefreshTokenRepository(db database.DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Save inserts a new refresh token.
func (r *RefreshTokenRepository) Save(ctx context.Context, rt *domain.RefreshToken) (err error) {
	ctx, end := database.TraceQuery(ctx, "SaveRefreshToken", insertRefreshToken)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, insertRefreshToken, rt.Token, rt.OwnerID, rt.ExpiresAt, rt.CreatedAt)
	switch {
	case isUniqueViolation(err):
		return apperrors.ErrAlreadyExists
	case err != nil:
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// FindByToken retrieves a refresh token by exact token match.
func (r *RefreshTokenRepository) FindByToken(ctx context.Context, token string) (_ *domain.RefreshToken, err error) {
	query := `
		SELECT token, owner_id, expires_at, created_at
		FROM refresh_tokens
		WHERE token = $1`

	ctx, end := database.TraceQuery(ctx, "FindRefreshToken", query)
	defer func() { end(err) }()

	var rt domain.RefreshToken
	err = r.db.QueryRow(ctx, query, token).Scan(
		&rt.Token,
		&rt.OwnerID,
		&rt.ExpiresAt,
		&rt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	return &rt, nil
}

// Delete removes a refresh token.
func (r *RefreshTokenRepository) Delete(ctx context.Context, token string) (err error) {
	query := `DELETE FROM refresh_tokens WHERE token = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteRefreshToken", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, token)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// DeleteIfExpired removes the token only if it expired before now.
func (r *RefreshTokenRepository) DeleteIfExpired(ctx context.Context, token string, now time.Time) (_ bool, err error) {
	query := `DELETE FROM refresh_tokens WHERE token = $1 AND expires_at < $2`

	ctx, end := database.TraceQuery(ctx, "DeleteExpiredRefreshToken", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, token, now)
	if err != nil {
		return false, fmt.Errorf("delete expired refresh token: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// Rotate deletes the live token oldToken and inserts next in one transaction.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldToken string, next *domain.RefreshToken, now time.Time) (err error) {
	deleteQuery := `DELETE FROM refresh_tokens WHERE token = $1 AND expires_at >= $2`

	ctx, end := database.TraceQuery(ctx, "RotateRefreshToken", deleteQuery)
	defer func() { end(err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, deleteQuery, oldToken, now)
	if err != nil {
		return fmt.Errorf("delete rotated refresh token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	if _, err := tx.Exec(ctx, insertRefreshToken, next.Token, next.OwnerID, next.ExpiresAt, next.CreatedAt); err != nil {
		return fmt.Errorf("insert rotated refresh token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// DeleteByOwner removes every refresh token of the owner.
func (r *RefreshTokenRepository) DeleteByOwner(ctx context.Context, ownerID string) (_ int64, err error) {
	query := `DELETE FROM refresh_tokens WHERE owner_id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteOwnerRefreshTokens", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete owner refresh tokens: %w", err)
	}

	return ct.RowsAffected(), nil
}

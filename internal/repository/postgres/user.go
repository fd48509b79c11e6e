// Package postgres holds the PostgreSQL implementations of the repository
// interfaces. Every statement is traced through database.TraceQuery.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stonenotes/stonenotes/internal/domain"
	"github.com/stonenotes/stonenotes/pkg/database"
	apperrors "github.com/stonenotes/stonenotes/pkg/errors"
)

// SQLSTATE of a unique index violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const (
	insertUser = `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	selectUser = `
		SELECT id, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at
		FROM users`
)

// UserRepository stores accounts in the users table. Emails are unique
// regardless of case.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository returns a repository over db.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateUser", insertUser)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, insertUser,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName,
		u.Role, u.IsActive, u.CreatedAt, u.UpdatedAt)
	switch {
	case isUniqueViolation(err):
		return apperrors.AlreadyExists("user", "email", u.Email)
	case err != nil:
		return fmt.Errorf("create user %s: %w", u.ID, err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.get(ctx, "GetUserByID", selectUser+` WHERE id = $1`, id)
}

// GetByEmail matches email case-insensitively through the LOWER(email) index.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.get(ctx, "GetUserByEmail", selectUser+` WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *UserRepository) get(ctx context.Context, op, query string, arg string) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	var u domain.User
	err = r.db.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}

package auth

import (
	"context"

	"github.com/stonenotes/stonenotes/internal/domain"
)

// PrincipalDirectory resolves users into authentication principals. Both
// methods return ErrPrincipalNotFound when no user matches.
type PrincipalDirectory interface {
	// FindByID resolves the subject of an access token.
	FindByID(ctx context.Context, id string) (*domain.Principal, error)

	// FindByCredentials resolves the login name presented at login.
	FindByCredentials(ctx context.Context, username string) (*domain.Principal, error)
}

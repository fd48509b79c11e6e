package auth

import (
	"context"

	"github.com/stonenotes/stonenotes/internal/domain"
)

type principalKey struct{}

// NewContext returns a copy of ctx carrying the authenticated principal. The
// binding lives exactly as long as the request context it derives from.
func NewContext(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal bound by the authenticator, if
// any.
func PrincipalFromContext(ctx context.Context) (*domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*domain.Principal)
	return p, ok && p != nil
}

// Identify reports the ID of the authenticated principal. It matches
// middleware.IdentityFunc.
func Identify(ctx context.Context) (string, bool) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return "", false
	}
	return p.ID, true
}

// Authorities returns the authorities of the authenticated principal, or nil
// for anonymous requests. It matches middleware.AuthoritiesFunc.
func Authorities(ctx context.Context) []string {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return nil
	}
	return p.Authorities
}

package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stonenotes/stonenotes/internal/domain"
	apperrors "github.com/stonenotes/stonenotes/pkg/errors"
	"github.com/stonenotes/stonenotes/pkg/httputil"
	"github.com/stonenotes/stonenotes/pkg/logger"
)

const bearerPrefix = "Bearer "

// Authenticator establishes the identity of each incoming request from its
// bearer token. It never rejects a request by itself: a request that fails any
// step continues anonymously and authorization is left to route gates such as
// middleware.RequireAuth.
type Authenticator struct {
	tokens    *AccessTokenProvider
	directory PrincipalDirectory
	logger    *slog.Logger
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator(tokens *AccessTokenProvider, directory PrincipalDirectory, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		tokens:    tokens,
		directory: directory,
		logger:    logger,
	}
}

// Middleware runs one authentication pass per request and binds the principal
// to the request context on success.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.Authenticate(r)
		if err != nil {
			httputil.WriteError(w, r, apperrors.Internal(err), a.logger)
			return
		}

		if principal == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := NewContext(r.Context(), principal)
		ctx = logger.WithUserID(ctx, principal.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate resolves the principal for the request. It returns a nil
// principal and a nil error for anonymous requests; an error means the
// directory failed unexpectedly.
func (a *Authenticator) Authenticate(r *http.Request) (*domain.Principal, error) {
	token, ok := bearerToken(r)
	if !ok {
		authenticationsTotal.WithLabelValues(outcomeAnonymous).Inc()
		return nil, nil
	}

	subject, err := a.tokens.ExtractSubject(token)
	if err != nil {
		authenticationsTotal.WithLabelValues(outcomeMalformed).Inc()
		a.logger.DebugContext(r.Context(), "rejected bearer token", slog.String("reason", err.Error()))
		return nil, nil
	}

	principal, err := a.directory.FindByID(r.Context(), subject)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			authenticationsTotal.WithLabelValues(outcomeUnknownPrincipal).Inc()
			a.logger.DebugContext(r.Context(), "bearer token subject not found", slog.String("subject", subject))
			return nil, nil
		}
		authenticationsTotal.WithLabelValues(outcomeDirectoryFailure).Inc()
		return nil, fmt.Errorf("resolve principal %s: %w", subject, err)
	}

	if err := a.tokens.check(token, principal); err != nil {
		outcome := outcomeInvalid
		if errors.Is(err, ErrTokenExpired) {
			outcome = outcomeExpired
		}
		authenticationsTotal.WithLabelValues(outcome).Inc()
		return nil, nil
	}

	authenticationsTotal.WithLabelValues(outcomeAuthenticated).Inc()
	return principal, nil
}

// bearerToken extracts the credential of an "Authorization: Bearer <token>"
// header. The scheme is matched case-sensitively.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}

	token := header[len(bearerPrefix):]
	if token == "" {
		return "", false
	}

	return token, true
}

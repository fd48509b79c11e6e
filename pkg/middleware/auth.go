package middleware

import (
	"context"
	"net/http"
	"slices"

	"github.com/stonenotes/stonenotes/pkg/httputil"
)

// IdentityFunc reports the identity bound to a request context by the
// authenticating middleware.
type IdentityFunc func(ctx context.Context) (string, bool)

// AuthoritiesFunc reports the authorities granted to the bound identity.
type AuthoritiesFunc func(ctx context.Context) []string

// RequireAuth answers 401 when no identity is bound to the request.
func RequireAuth(identify IdentityFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := identify(r.Context()); !ok {
				httputil.WriteErrorCode(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole answers 403 unless the identity holds at least one of roles.
// Mount it after RequireAuth.
func RequireRole(authorities AuthoritiesFunc, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			granted := authorities(r.Context())
			if !slices.ContainsFunc(roles, func(role string) bool { return slices.Contains(granted, role) }) {
				httputil.WriteErrorCode(w, r, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NoStore marks responses as uncacheable. Mount it on routes that return
// credentials or per-user data.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}

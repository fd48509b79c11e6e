package auth

import "errors"

// Sentinel errors returned by the token and refresh-token components.
// ErrMalformedToken also covers signature mismatches.
var (
	ErrInvalidSecret        = errors.New("auth: signing secret must be at least 32 bytes")
	ErrInvalidTTL           = errors.New("auth: token ttl must be positive")
	ErrMalformedToken       = errors.New("auth: malformed or invalid token")
	ErrTokenExpired         = errors.New("auth: token expired")
	ErrPrincipalNotFound    = errors.New("auth: principal not found")
	ErrOwnerNotFound        = errors.New("auth: refresh token owner not found")
	ErrRefreshTokenNotFound = errors.New("auth: refresh token not found")
	ErrRefreshTokenExpired  = errors.New("auth: refresh token expired")
)

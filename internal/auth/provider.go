package auth

import (
	"fmt"
	"time"

	"github.com/stonenotes/stonenotes/internal/domain"
)

// AccessTokenProvider issues and validates short-lived access tokens. It is
// stateless: tokens are never stored and validity is always computed.
type AccessTokenProvider struct {
	codec *Codec
	ttl   time.Duration
	now   Clock
}

// NewAccessTokenProvider creates a provider issuing tokens valid for ttl.
func NewAccessTokenProvider(codec *Codec, ttl time.Duration, opts ...Option) (*AccessTokenProvider, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	s := applyOptions(opts)
	return &AccessTokenProvider{codec: codec, ttl: ttl, now: s.now}, nil
}

// TTL returns the configured access-token lifetime.
func (p *AccessTokenProvider) TTL() time.Duration {
	return p.ttl
}

// Issue signs a token for the principal, expiring TTL after now.
func (p *AccessTokenProvider) Issue(principal *domain.Principal) (string, error) {
	issuedAt := p.now().Truncate(time.Second)

	token, err := p.codec.Sign(Claims{
		Subject:   principal.ID,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(p.ttl),
	})
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}

	return token, nil
}

// ExtractSubject returns the subject of a correctly signed token without
// looking at its expiry.
func (p *AccessTokenProvider) ExtractSubject(token string) (string, error) {
	claims, err := p.codec.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Validate reports whether the token is correctly signed, belongs to the
// principal and has not expired. A token is expired from its exp instant on.
func (p *AccessTokenProvider) Validate(token string, principal *domain.Principal) bool {
	return p.check(token, principal) == nil
}

// check is Validate with the failure reason: ErrMalformedToken for a bad
// token or a subject that does not match, ErrTokenExpired otherwise.
func (p *AccessTokenProvider) check(token string, principal *domain.Principal) error {
	if principal == nil {
		return ErrMalformedToken
	}

	claims, err := p.codec.Verify(token)
	if err != nil {
		return err
	}

	if claims.Subject != principal.ID {
		return ErrMalformedToken
	}

	if !p.now().Before(claims.ExpiresAt) {
		return ErrTokenExpired
	}

	return nil
}

// IsExpired reports whether the token's expiry has been reached. Expiry is
// undefined for tokens that cannot be decoded, so those return an error.
func (p *AccessTokenProvider) IsExpired(token string) (bool, error) {
	claims, err := p.codec.Verify(token)
	if err != nil {
		return false, err
	}
	return !p.now().Before(claims.ExpiresAt), nil
}

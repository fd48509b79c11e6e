package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum HMAC key size accepted by NewCodec.
const MinSecretLength = 32

// Claims are the fields embedded in a signed access token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec signs and verifies compact HS256 tokens with a single process-wide
// secret. It holds no mutable state and is safe for concurrent use.
type Codec struct {
	secret []byte
	parser *jwt.Parser
}

// NewCodec creates a codec for the given secret. A short or empty secret is
// a startup error.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrInvalidSecret
	}

	key := make([]byte, len(secret))
	copy(key, secret)

	return &Codec{
		secret: key,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithStrictDecoding(),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// Sign serializes the claims as {"sub","iat","exp"} and signs them.
func (c *Codec) Sign(claims Claims) (string, error) {
	registered := jwt.RegisteredClaims{
		Subject:   claims.Subject,
		IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, registered)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify checks the signature and decodes the claims. Expiry is not checked
// here. Every failure is reported as ErrMalformedToken.
func (c *Codec) Verify(tokenString string) (Claims, error) {
	var registered jwt.RegisteredClaims
	token, err := c.parser.ParseWithClaims(tokenString, &registered, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrMalformedToken
	}

	if registered.Subject == "" || registered.ExpiresAt == nil {
		return Claims{}, ErrMalformedToken
	}

	claims := Claims{
		Subject:   registered.Subject,
		ExpiresAt: registered.ExpiresAt.Time,
	}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time
	}

	return claims, nil
}

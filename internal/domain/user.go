package domain

import (
	"time"
)

// User represents a registered account of the notes application.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Principal is the resolved identity of an authenticated user. It is a
// snapshot built for a single request and must not be cached beyond it.
type Principal struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	Authorities  []string `json:"authorities"`
	PasswordHash string   `json:"-"`
}

// NewPrincipal builds a principal snapshot from a stored user.
func NewPrincipal(u *User) *Principal {
	authorities := []string{}
	if IsValidRole(u.Role) {
		authorities = append(authorities, u.Role)
	}
	return &Principal{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Authorities:  authorities,
		PasswordHash: u.PasswordHash,
	}
}

// RefreshToken is a persisted, revocable credential used to obtain new access
// tokens. A refresh token is either live or deleted; there is no other state.
type RefreshToken struct {
	Token     string    `json:"token"`
	OwnerID   string    `json:"ownerId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsExpired reports whether the token's expiry lies strictly before now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// TokenType is the only token type issued by the service.
const TokenType = "Bearer"

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

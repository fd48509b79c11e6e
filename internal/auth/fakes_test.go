package auth

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/stonenotes/stonenotes/internal/domain"
	apperrors "github.com/stonenotes/stonenotes/pkg/errors"
)

var baseTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// testClock is a manually advanced clock shared between components.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{now: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- PrincipalDirectory fakes ---

type staticDirectory map[string]*domain.Principal

func (d staticDirectory) FindByID(_ context.Context, id string) (*domain.Principal, error) {
	p, ok := d[id]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	return p, nil
}

func (d staticDirectory) FindByCredentials(_ context.Context, username string) (*domain.Principal, error) {
	for _, p := range d {
		if p.Email == username {
			return p, nil
		}
	}
	return nil, ErrPrincipalNotFound
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) FindByID(ctx context.Context, id string) (*domain.Principal, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*domain.Principal), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDirectory) FindByCredentials(ctx context.Context, username string) (*domain.Principal, error) {
	args := m.Called(ctx, username)
	if p := args.Get(0); p != nil {
		return p.(*domain.Principal), args.Error(1)
	}
	return nil, args.Error(1)
}

// --- RefreshTokenRepository fake ---

// memRefreshTokens is an in-memory RefreshTokenRepository. Every method holds
// the lock for its whole duration, mirroring the single-statement atomicity of
// the real stores.
type memRefreshTokens struct {
	mu     sync.Mutex
	tokens map[string]domain.RefreshToken
}

func newMemRefreshTokens() *memRefreshTokens {
	return &memRefreshTokens{tokens: make(map[string]domain.RefreshToken)}
}

func (m *memRefreshTokens) Save(_ context.Context, token *domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[token.Token]; ok {
		return apperrors.ErrAlreadyExists
	}
	m.tokens[token.Token] = *token
	return nil
}

func (m *memRefreshTokens) FindByToken(_ context.Context, token string) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.tokens[token]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &rt, nil
}

func (m *memRefreshTokens) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[token]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.tokens, token)
	return nil
}

func (m *memRefreshTokens) DeleteIfExpired(_ context.Context, token string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.tokens[token]
	if !ok || !rt.ExpiresAt.Before(now) {
		return false, nil
	}
	delete(m.tokens, token)
	return true, nil
}

func (m *memRefreshTokens) Rotate(_ context.Context, oldToken string, next *domain.RefreshToken, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.tokens[oldToken]
	if !ok || rt.ExpiresAt.Before(now) {
		return apperrors.ErrNotFound
	}
	delete(m.tokens, oldToken)
	m.tokens[next.Token] = *next
	return nil
}

func (m *memRefreshTokens) DeleteByOwner(_ context.Context, ownerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, rt := range m.tokens {
		if rt.OwnerID == ownerID {
			delete(m.tokens, k)
			n++
		}
	}
	return n, nil
}

func (m *memRefreshTokens) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

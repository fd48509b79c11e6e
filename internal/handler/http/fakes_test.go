package http

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stonenotes/stonenotes/internal/domain"
	apperrors "github.com/stonenotes/stonenotes/pkg/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
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

// --- in-memory repositories ---

type memUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]*domain.User)}
}

func (m *memUsers) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("user", email)
}

type memRefreshTokens struct {
	mu     sync.Mutex
	tokens map[string]domain.RefreshToken
}

func newMemRefreshTokens() *memRefreshTokens {
	return &memRefreshTokens{tokens: make(map[string]domain.RefreshToken)}
}

func (m *memRefreshTokens) Save(_ context.Context, t *domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.Token] = *t
	return nil
}

func (m *memRefreshTokens) FindByToken(_ context.Context, token string) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &t, nil
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
	t, ok := m.tokens[token]
	if !ok || !t.ExpiresAt.Before(now) {
		return false, nil
	}
	delete(m.tokens, token)
	return true, nil
}

func (m *memRefreshTokens) Rotate(_ context.Context, oldToken string, next *domain.RefreshToken, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[oldToken]
	if !ok || t.ExpiresAt.Before(now) {
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
	for k, t := range m.tokens {
		if t.OwnerID == ownerID {
			delete(m.tokens, k)
			n++
		}
	}
	return n, nil
}

type memNotes struct {
	mu    sync.Mutex
	notes map[string]domain.Note
}

func newMemNotes() *memNotes {
	return &memNotes{notes: make(map[string]domain.Note)}
}

func (m *memNotes) Create(_ context.Context, n *domain.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[n.ID] = *n
	return nil
}

func (m *memNotes) GetByID(_ context.Context, ownerID, id string) (*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.OwnerID != ownerID {
		return nil, apperrors.NotFound("note", id)
	}
	return &n, nil
}

func (m *memNotes) ListByOwner(_ context.Context, ownerID string, order domain.NoteSort, limit, offset int) ([]domain.Note, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var owned []domain.Note
	for _, n := range m.notes {
		if n.OwnerID == ownerID {
			owned = append(owned, n)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		a, b := owned[i], owned[j]
		if order.Desc {
			a, b = b, a
		}
		if c := compareNotes(a, b, order.Field); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
	total := len(owned)
	if offset >= total {
		return []domain.Note{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return owned[offset:end], total, nil
}

func compareNotes(a, b domain.Note, field string) int {
	switch field {
	case domain.NoteSortTitle:
		return strings.Compare(a.Title, b.Title)
	case domain.NoteSortUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func (m *memNotes) Update(_ context.Context, n *domain.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.notes[n.ID]
	if !ok || existing.OwnerID != n.OwnerID {
		return apperrors.NotFound("note", n.ID)
	}
	m.notes[n.ID] = *n
	return nil
}

func (m *memNotes) Delete(_ context.Context, ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.OwnerID != ownerID {
		return apperrors.NotFound("note", id)
	}
	delete(m.notes, id)
	return nil
}

// nopEvents discards every event.
type nopEvents struct{}

func (nopEvents) PublishUserRegistered(context.Context, *domain.User) error { return nil }

func (nopEvents) PublishSessionRevoked(context.Context, string, string, int64) error { return nil }

package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stonenotes/stonenotes/internal/domain"
)

const refreshTTL = 30 * 24 * time.Hour

func newTestStore(t *testing.T, clock *testClock) (*RefreshTokenStore, *memRefreshTokens) {
	t.Helper()
	repo := newMemRefreshTokens()
	dir := staticDirectory{
		"u1": {ID: "u1", Email: "u1@example.com"},
		"u2": {ID: "u2", Email: "u2@example.com"},
	}
	store, err := NewRefreshTokenStore(repo, dir, refreshTTL, WithClock(clock.Now))
	require.NoError(t, err)
	return store, repo
}

func TestNewRefreshTokenStore_RejectsNonPositiveTTL(t *testing.T) {
	store, err := NewRefreshTokenStore(newMemRefreshTokens(), staticDirectory{}, 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
	assert.Nil(t, store)
}

func TestRefreshTokenStore_Create_ThenFind(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, newTestClock(baseTime))

	created, err := store.Create(ctx, "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, "u1", created.OwnerID)
	assert.True(t, created.ExpiresAt.Equal(baseTime.Add(refreshTTL)))

	found, err := store.FindByToken(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, *created, *found)
}

func TestRefreshTokenStore_Create_UniqueTokens(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t, newTestClock(baseTime))

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		rt, err := store.Create(ctx, "u1")
		require.NoError(t, err)
		_, dup := seen[rt.Token]
		require.False(t, dup, "duplicate token %s", rt.Token)
		seen[rt.Token] = struct{}{}
	}
	assert.Equal(t, 100, repo.Len())
}

func TestRefreshTokenStore_Create_UnknownOwner(t *testing.T) {
	store, repo := newTestStore(t, newTestClock(baseTime))

	rt, err := store.Create(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrOwnerNotFound)
	assert.Nil(t, rt)
	assert.Zero(t, repo.Len())
}

func TestRefreshTokenStore_Create_DirectoryFailure(t *testing.T) {
	dir := new(mockDirectory)
	boom := errors.New("connection reset")
	dir.On("FindByID", mock.Anything, "u1").Return(nil, boom)

	store, err := NewRefreshTokenStore(newMemRefreshTokens(), dir, refreshTTL)
	require.NoError(t, err)

	_, err = store.Create(context.Background(), "u1")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrOwnerNotFound)
	dir.AssertExpectations(t)
}

func TestRefreshTokenStore_FindByToken_Missing(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, newTestClock(baseTime))

	for _, token := range []string{"", "does-not-exist"} {
		rt, err := store.FindByToken(ctx, token)
		assert.ErrorIs(t, err, ErrRefreshTokenNotFound)
		assert.Nil(t, rt)
	}
}

func TestRefreshTokenStore_FindByToken_ExactMatchOnly(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, newTestClock(baseTime))

	rt, err := store.Create(ctx, "u1")
	require.NoError(t, err)

	_, err = store.FindByToken(ctx, rt.Token[:len(rt.Token)-1])
	assert.ErrorIs(t, err, ErrRefreshTokenNotFound)
}

func TestRefreshTokenStore_VerifyAndConsumeIfExpired_Live(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(baseTime)
	store, _ := newTestStore(t, clock)

	rt, err := store.Create(ctx, "u1")
	require.NoError(t, err)

	clock.Advance(refreshTTL - time.Second)

	got, err := store.VerifyAndConsumeIfExpired(ctx, rt)
	require.NoError(t, err)
	assert.Same(t, rt, got)

	found, err := store.FindByToken(ctx, rt.Token)
	require.NoError(t, err)
	assert.Equal(t, *rt, *found)
}

func TestRefreshTokenStore_VerifyAndConsumeIfExpired_ExactlyAtExpiryIsLive(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(baseTime)
	store, _ := newTestStore(t, clock)

	rt, err := store.Create(ctx, "u1")
	require.NoError(t, err)

	clock.Advance(refreshTTL)

	_, err = store.VerifyAndConsumeIfExpired(ctx, rt)
	assert.NoError(t, err)
}

func TestRefreshTokenStore_VerifyAndConsumeIfExpired_SubMicrosecondPastExpiryIsLive(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(baseTime)
	store, _ := newTestStore(t, clock)

	rt, err := store.Create(ctx, "u1")
	require.NoError(t, err)

	// Storage keeps microseconds, so this instant equals the stored expiry.
	clock.Advance(refreshTTL + 500*time.Nanosecond)

	got, err := store.VerifyAndConsumeIfExpired(ctx, rt)
	require.NoError(t, err)
	assert.Equal(t, rt, got)

	_, err = store.FindByToken(ctx, rt.Token)
	assert.NoError(t, err)
}

func TestRefreshTokenStore_Create_TruncatesToMicroseconds(t *testing.T) {
	clock := newTestClock(baseTime.Add(1234 * time.Nanosecond))
	store, _ := newTestStore(t, clock)

	rt, err := store.Create(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, baseTime.Add(time.Microsecond), rt.CreatedAt)
	assert.Equal(t, baseTime.Add(time.Microsecond+refreshTTL), rt.ExpiresAt)
}

func TestRefreshTokenStore_VerifyAndConsumeIfExpired_Expired(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(baseTime)
	store, repo := newTestStore(t, clock)

	rt, err := store.Create(ctx, "u1")
	require.NoError(t, err)
	other, err := store.Create(ctx, "u1")
	require.NoError(t, err)

	clock.Advance(refreshTTL + time.Hour)

	got, err := store.VerifyAndConsumeIfExpired(ctx, rt)
	assert.ErrorIs(t, err, ErrRefreshTokenExpired)
	assert.Nil(t, got)

	_, err = store.FindByToken(ctx, rt.Token)
	assert.ErrorIs(t, err, ErrRefreshTokenNotFound)

	// Only the presented token is consumed.
	_, err = store.FindByToken(ctx, other.Token)
	assert.NoError(t, err)
	assert.Equal(t, 1, repo.Len())
}

func TestRefreshTokenStore_VerifyAndConsumeIfExpired_ConcurrentDiscovery(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(baseTime)
	store, repo := newTestStore(t, clock)

	rt, err := store.Create(ctx, "u1")
	require.NoError(t, err)
	clock.Advance(refreshTTL + time.Minute)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snapshot := *rt
			_, errs[i] = store.VerifyAndConsumeIfExpired(ctx, &snapshot)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, ErrRefreshTokenExpired)
	}
	assert.Zero(t, repo.Len())
}

func TestRefreshTokenStore_Rotate(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(baseTime)
	store, repo := newTestStore(t, clock)

	rt, err := store.Create(ctx, "u1")
	require.NoError(t, err)

	clock.Advance(time.Hour)

	next, err := store.Rotate(ctx, rt)
	require.NoError(t, err)
	assert.NotEqual(t, rt.Token, next.Token)
	assert.Equal(t, "u1", next.OwnerID)
	assert.True(t, next.ExpiresAt.Equal(baseTime.Add(time.Hour+refreshTTL)))

	_, err = store.FindByToken(ctx, rt.Token)
	assert.ErrorIs(t, err, ErrRefreshTokenNotFound)
	_, err = store.FindByToken(ctx, next.Token)
	assert.NoError(t, err)
	assert.Equal(t, 1, repo.Len())

	// A consumed token cannot be rotated again.
	_, err = store.Rotate(ctx, rt)
	assert.ErrorIs(t, err, ErrRefreshTokenNotFound)
}

func TestRefreshTokenStore_Rotate_ConcurrentUseHasOneWinner(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t, newTestClock(baseTime))

	rt, err := store.Create(ctx, "u1")
	require.NoError(t, err)

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []*domain.RefreshToken
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next, err := store.Rotate(ctx, rt)
			if err != nil {
				assert.ErrorIs(t, err, ErrRefreshTokenNotFound)
				return
			}
			mu.Lock()
			winners = append(winners, next)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, 1, repo.Len())
	_, err = store.FindByToken(ctx, winners[0].Token)
	assert.NoError(t, err)
}

func TestRefreshTokenStore_Revoke(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, newTestClock(baseTime))

	rt, err := store.Create(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, store.Revoke(ctx, rt.Token))

	_, err = store.FindByToken(ctx, rt.Token)
	assert.ErrorIs(t, err, ErrRefreshTokenNotFound)

	// Deleted is terminal.
	assert.ErrorIs(t, store.Revoke(ctx, rt.Token), ErrRefreshTokenNotFound)
	assert.ErrorIs(t, store.Revoke(ctx, ""), ErrRefreshTokenNotFound)
}

func TestRefreshTokenStore_RevokeAll(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t, newTestClock(baseTime))

	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, "u1")
		require.NoError(t, err)
	}
	kept, err := store.Create(ctx, "u2")
	require.NoError(t, err)

	n, err := store.RevokeAll(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, 1, repo.Len())

	_, err = store.FindByToken(ctx, kept.Token)
	assert.NoError(t, err)

	n, err = store.RevokeAll(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

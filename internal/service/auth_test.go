package service

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stonenotes/stonenotes/internal/auth"
	"github.com/stonenotes/stonenotes/internal/domain"
	"github.com/stonenotes/stonenotes/internal/event"
	apperrors "github.com/stonenotes/stonenotes/pkg/errors"
)

const (
	testAccessTTL  = 24 * time.Hour
	testRefreshTTL = 30 * 24 * time.Hour
)

var testNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

type authFixture struct {
	svc      *AuthService
	tokens   *auth.AccessTokenProvider
	users    *mockUserRepository
	refresh  *mockRefreshTokenRepository
	events   *mockEventPublisher
	password string
	user     *domain.User
}

func newAuthFixture(t *testing.T, rotate bool) *authFixture {
	t.Helper()

	clock := auth.WithClock(func() time.Time { return testNow })

	codec, err := auth.NewCodec([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	tokens, err := auth.NewAccessTokenProvider(codec, testAccessTTL, clock)
	require.NoError(t, err)

	users := new(mockUserRepository)
	refreshRepo := new(mockRefreshTokenRepository)
	events := new(mockEventPublisher)

	directory := newTestUserService(users, events)
	store, err := auth.NewRefreshTokenStore(refreshRepo, directory, testRefreshTTL, clock)
	require.NoError(t, err)

	user := activeUser("user-1", "ada@example.com", "Orbit2Launch")

	return &authFixture{
		svc:      NewAuthService(directory, tokens, store, rotate, events, newTestLogger()),
		tokens:   tokens,
		users:    users,
		refresh:  refreshRepo,
		events:   events,
		password: "Orbit2Launch",
		user:     user,
	}
}

func requireAppError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, status, appErr.Status)
	assert.Equal(t, code, appErr.Code)
}

// --- Login Tests ---

func TestLogin_Success(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := t.Context()

	f.users.On("GetByEmail", ctx, "ada@example.com").Return(f.user, nil)
	f.users.On("GetByID", ctx, "user-1").Return(f.user, nil)

	var saved *domain.RefreshToken
	f.refresh.On("Save", ctx, mock.AnythingOfType("*domain.RefreshToken")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*domain.RefreshToken) }).
		Return(nil)

	principal, pair, err := f.svc.Login(ctx, LoginInput{Email: "Ada@example.com", Password: f.password})

	require.NoError(t, err)
	assert.Equal(t, "user-1", principal.ID)
	assert.Equal(t, domain.TokenType, pair.TokenType)
	assert.Equal(t, int64(86400), pair.ExpiresIn)

	require.NotNil(t, saved)
	assert.Equal(t, saved.Token, pair.RefreshToken)
	assert.Equal(t, "user-1", saved.OwnerID)
	assert.Equal(t, testNow.Add(testRefreshTTL), saved.ExpiresAt)

	subject, err := f.tokens.ExtractSubject(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
	assert.True(t, f.tokens.Validate(pair.AccessToken, principal))
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := t.Context()

	f.users.On("GetByEmail", ctx, "ada@example.com").Return(f.user, nil)

	_, pair, err := f.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "WrongPass123"})

	assert.Nil(t, pair)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	f.refresh.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestLogin_UnknownUser(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := t.Context()

	f.users.On("GetByEmail", ctx, "nobody@example.com").Return(nil, apperrors.NotFound("user", "nobody@example.com"))

	_, _, err := f.svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: f.password})

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLogin_InactiveUser(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := t.Context()

	f.user.IsActive = false
	f.users.On("GetByEmail", ctx, "ada@example.com").Return(f.user, nil)

	_, _, err := f.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: f.password})

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLogin_MissingFields(t *testing.T) {
	f := newAuthFixture(t, false)

	_, _, err := f.svc.Login(t.Context(), LoginInput{Password: f.password})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, _, err = f.svc.Login(t.Context(), LoginInput{Email: "ada@example.com"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// --- Refresh Tests ---

func liveToken() *domain.RefreshToken {
	return &domain.RefreshToken{
		Token:     "11111111-2222-4333-8444-555555555555",
		OwnerID:   "user-1",
		ExpiresAt: testNow.Add(time.Hour),
		CreatedAt: testNow.Add(-time.Hour),
	}
}

func TestRefresh_LiveTokenKeepsRefreshToken(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := t.Context()
	rt := liveToken()

	f.refresh.On("FindByToken", ctx, rt.Token).Return(rt, nil)
	f.users.On("GetByID", ctx, "user-1").Return(f.user, nil)

	pair, err := f.svc.Refresh(ctx, rt.Token)

	require.NoError(t, err)
	assert.Equal(t, rt.Token, pair.RefreshToken)
	assert.Equal(t, domain.TokenType, pair.TokenType)
	subject, err := f.tokens.ExtractSubject(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)

	f.refresh.AssertNotCalled(t, "Rotate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.refresh.AssertNotCalled(t, "DeleteIfExpired", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefresh_TokenExpiringNowIsStillLive(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := t.Context()
	rt := liveToken()
	rt.ExpiresAt = testNow

	f.refresh.On("FindByToken", ctx, rt.Token).Return(rt, nil)
	f.users.On("GetByID", ctx, "user-1").Return(f.user, nil)

	_, err := f.svc.Refresh(ctx, rt.Token)
	require.NoError(t, err)
}

func TestRefresh_RotatesWhenEnabled(t *testing.T) {
	f := newAuthFixture(t, true)
	ctx := t.Context()
	rt := liveToken()

	f.refresh.On("FindByToken", ctx, rt.Token).Return(rt, nil)
	f.users.On("GetByID", ctx, "user-1").Return(f.user, nil)
	f.refresh.On("Rotate", ctx, rt.Token, mock.AnythingOfType("*domain.RefreshToken"), testNow).Return(nil)

	pair, err := f.svc.Refresh(ctx, rt.Token)

	require.NoError(t, err)
	assert.NotEqual(t, rt.Token, pair.RefreshToken)
	assert.NotEmpty(t, pair.RefreshToken)
	f.refresh.AssertExpectations(t)
}

func TestRefresh_RotationLostRace(t *testing.T) {
	f := newAuthFixture(t, true)
	ctx := t.Context()
	rt := liveToken()

	f.refresh.On("FindByToken", ctx, rt.Token).Return(rt, nil)
	f.users.On("GetByID", ctx, "user-1").Return(f.user, nil)
	f.refresh.On("Rotate", ctx, rt.Token, mock.Anything, testNow).Return(apperrors.ErrNotFound)

	pair, err := f.svc.Refresh(ctx, rt.Token)

	assert.Nil(t, pair)
	requireAppError(t, err, http.StatusNotFound, CodeRefreshTokenNotFound)
}

func TestRefresh_ExpiredTokenIsDeleted(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := t.Context()
	rt := liveToken()
	rt.ExpiresAt = testNow.Add(-time.Second)

	f.refresh.On("FindByToken", ctx, rt.Token).Return(rt, nil)
	f.refresh.On("DeleteIfExpired", ctx, rt.Token, testNow).Return(true, nil)

	pair, err := f.svc.Refresh(ctx, rt.Token)

	assert.Nil(t, pair)
	requireAppError(t, err, http.StatusUnauthorized, CodeRefreshTokenExpired)
	assert.ErrorIs(t, err, auth.ErrRefreshTokenExpired)
	f.refresh.AssertExpectations(t)
	f.users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestRefresh_UnknownToken(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := t.Context()

	f.refresh.On("FindByToken", ctx, "unknown").Return(nil, apperrors.ErrNotFound)

	_, err := f.svc.Refresh(ctx, "unknown")

	requireAppError(t, err, http.StatusNotFound, CodeRefreshTokenNotFound)
	assert.ErrorIs(t, err, auth.ErrRefreshTokenNotFound)
}

func TestRefresh_EmptyTokenIsNotFound(t *testing.T) {
	f := newAuthFixture(t, false)

	_, err := f.svc.Refresh(t.Context(), "")

	requireAppError(t, err, http.StatusNotFound, CodeRefreshTokenNotFound)
	f.refresh.AssertNotCalled(t, "FindByToken", mock.Anything, mock.Anything)
}

func TestRefresh_OwnerGone(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := t.Context()
	rt := liveToken()

	f.refresh.On("FindByToken", ctx, rt.Token).Return(rt, nil)
	f.users.On("GetByID", ctx, "user-1").Return(nil, apperrors.NotFound("user", "user-1"))

	_, err := f.svc.Refresh(ctx, rt.Token)

	requireAppError(t, err, http.StatusNotFound, CodeRefreshTokenNotFound)
}

func TestRefresh_StorageFailureIsNotMapped(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := t.Context()

	dbDown := errors.New("connection refused")
	f.refresh.On("FindByToken", ctx, "tok").Return(nil, dbDown)

	_, err := f.svc.Refresh(ctx, "tok")

	assert.ErrorIs(t, err, dbDown)
	var appErr *apperrors.AppError
	assert.False(t, errors.As(err, &appErr))
}

// --- Logout Tests ---

func TestLogout_RevokesToken(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := t.Context()
	rt := liveToken()

	f.refresh.On("FindByToken", ctx, rt.Token).Return(rt, nil)
	f.refresh.On("Delete", ctx, rt.Token).Return(nil)
	f.events.On("PublishSessionRevoked", ctx, "user-1", event.RevokeScopeSession, int64(1)).Return(nil)

	require.NoError(t, f.svc.Logout(ctx, rt.Token))

	f.refresh.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func TestLogout_UnknownToken(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := t.Context()

	f.refresh.On("FindByToken", ctx, "unknown").Return(nil, apperrors.ErrNotFound)

	err := f.svc.Logout(ctx, "unknown")

	requireAppError(t, err, http.StatusNotFound, CodeRefreshTokenNotFound)
	f.events.AssertNotCalled(t, "PublishSessionRevoked", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLogout_ConcurrentlyRevoked(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := t.Context()
	rt := liveToken()

	f.refresh.On("FindByToken", ctx, rt.Token).Return(rt, nil)
	f.refresh.On("Delete", ctx, rt.Token).Return(apperrors.ErrNotFound)

	err := f.svc.Logout(ctx, rt.Token)

	requireAppError(t, err, http.StatusNotFound, CodeRefreshTokenNotFound)
}

func TestLogoutAll(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := t.Context()

	f.refresh.On("DeleteByOwner", ctx, "user-1").Return(int64(3), nil)
	f.events.On("PublishSessionRevoked", ctx, "user-1", event.RevokeScopeAll, int64(3)).
		Return(errors.New("broker down"))

	n, err := f.svc.LogoutAll(ctx, "user-1")

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	f.events.AssertExpectations(t)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/stonenotes/stonenotes/internal/auth"
	"github.com/stonenotes/stonenotes/internal/domain"
	"github.com/stonenotes/stonenotes/internal/event"
	apperrors "github.com/stonenotes/stonenotes/pkg/errors"
)

// Error codes reported by the refresh and logout endpoints.
const (
	CodeRefreshTokenNotFound = "REFRESH_TOKEN_NOT_FOUND"
	CodeRefreshTokenExpired  = "REFRESH_TOKEN_EXPIRED"
)

// AuthService implements login, token refresh and logout on top of the auth
// core.
type AuthService struct {
	directory auth.PrincipalDirectory
	tokens    *auth.AccessTokenProvider
	refresh   *auth.RefreshTokenStore
	rotate    bool
	events    EventPublisher
	logger    *slog.Logger
}

// NewAuthService creates a new auth service. When rotate is set every
// successful refresh replaces the presented refresh token.
func NewAuthService(
	directory auth.PrincipalDirectory,
	tokens *auth.AccessTokenProvider,
	refresh *auth.RefreshTokenStore,
	rotate bool,
	events EventPublisher,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		directory: directory,
		tokens:    tokens,
		refresh:   refresh,
		rotate:    rotate,
		events:    events,
		logger:    logger,
	}
}

// LoginInput holds the parameters for user login.
type LoginInput struct {
	Email    string
	Password string
}

// Login checks the credentials and issues an access and refresh token pair.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.Principal, *domain.TokenPair, error) {
	if input.Email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, nil, apperrors.InvalidInput("password is required")
	}

	principal, err := s.directory.FindByCredentials(ctx, input.Email)
	if err != nil {
		if errors.Is(err, auth.ErrPrincipalNotFound) {
			return nil, nil, apperrors.Unauthorized("invalid email or password")
		}
		return nil, nil, fmt.Errorf("find user for login: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(input.Password)); err != nil {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	accessToken, err := s.tokens.Issue(principal)
	if err != nil {
		return nil, nil, fmt.Errorf("issue access token: %w", err)
	}

	rt, err := s.refresh.Create(ctx, principal.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("create refresh token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", principal.ID),
	)

	return principal, s.tokenPair(accessToken, rt), nil
}

// Refresh exchanges a live refresh token for a new access token. An expired
// refresh token is deleted and the caller must log in again.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	rt, err := s.refresh.FindByToken(ctx, refreshToken)
	if err != nil {
		return nil, refreshError(err)
	}

	rt, err = s.refresh.VerifyAndConsumeIfExpired(ctx, rt)
	if err != nil {
		return nil, refreshError(err)
	}

	principal, err := s.directory.FindByID(ctx, rt.OwnerID)
	if err != nil {
		if errors.Is(err, auth.ErrPrincipalNotFound) {
			return nil, refreshError(auth.ErrRefreshTokenNotFound)
		}
		return nil, fmt.Errorf("find refresh token owner: %w", err)
	}

	if s.rotate {
		rt, err = s.refresh.Rotate(ctx, rt)
		if err != nil {
			return nil, refreshError(err)
		}
	}

	accessToken, err := s.tokens.Issue(principal)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	s.logger.InfoContext(ctx, "access token refreshed",
		slog.String("user_id", principal.ID),
		slog.Bool("rotated", s.rotate),
	)

	return s.tokenPair(accessToken, rt), nil
}

// Logout revokes a single refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	rt, err := s.refresh.FindByToken(ctx, refreshToken)
	if err != nil {
		return refreshError(err)
	}

	if err := s.refresh.Revoke(ctx, rt.Token); err != nil {
		return refreshError(err)
	}

	s.publishRevoked(ctx, rt.OwnerID, event.RevokeScopeSession, 1)

	s.logger.InfoContext(ctx, "user logged out",
		slog.String("user_id", rt.OwnerID),
	)

	return nil
}

// LogoutAll revokes every refresh token of the user and returns how many were
// removed. Access tokens already issued stay valid until they expire.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	n, err := s.refresh.RevokeAll(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.publishRevoked(ctx, userID, event.RevokeScopeAll, n)

	s.logger.InfoContext(ctx, "user logged out of all sessions",
		slog.String("user_id", userID),
		slog.Int64("revoked", n),
	)

	return n, nil
}

func (s *AuthService) publishRevoked(ctx context.Context, userID, scope string, n int64) {
	if err := s.events.PublishSessionRevoked(ctx, userID, scope, n); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish auth.session.revoked event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *AuthService) tokenPair(accessToken string, rt *domain.RefreshToken) *domain.TokenPair {
	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: rt.Token,
		TokenType:    domain.TokenType,
		ExpiresIn:    int64(s.tokens.TTL().Seconds()),
	}
}

// refreshError maps refresh token store errors onto application errors.
func refreshError(err error) error {
	switch {
	case errors.Is(err, auth.ErrRefreshTokenNotFound):
		return apperrors.NewAppError(http.StatusNotFound, CodeRefreshTokenNotFound,
			"refresh token not found", err)
	case errors.Is(err, auth.ErrRefreshTokenExpired):
		return apperrors.NewAppError(http.StatusUnauthorized, CodeRefreshTokenExpired,
			"refresh token expired, please log in again", err)
	default:
		return err
	}
}

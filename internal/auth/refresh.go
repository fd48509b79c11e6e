package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stonenotes/stonenotes/internal/domain"
	"github.com/stonenotes/stonenotes/internal/repository"
	apperrors "github.com/stonenotes/stonenotes/pkg/errors"
)

// RefreshTokenStore manages the lifecycle of refresh tokens. It is the only
// auth component with shared mutable state, all of which lives behind the
// repository; every operation is a single atomic repository call.
type RefreshTokenStore struct {
	repo      repository.RefreshTokenRepository
	directory PrincipalDirectory
	ttl       time.Duration
	now       Clock
}

// NewRefreshTokenStore creates a store issuing tokens valid for ttl.
func NewRefreshTokenStore(
	repo repository.RefreshTokenRepository,
	directory PrincipalDirectory,
	ttl time.Duration,
	opts ...Option,
) (*RefreshTokenStore, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	s := applyOptions(opts)
	return &RefreshTokenStore{
		repo:      repo,
		directory: directory,
		ttl:       ttl,
		now:       s.now,
	}, nil
}

// Create issues and persists a new refresh token for the owner.
func (s *RefreshTokenStore) Create(ctx context.Context, ownerID string) (*domain.RefreshToken, error) {
	if _, err := s.directory.FindByID(ctx, ownerID); err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil, ErrOwnerNotFound
		}
		return nil, fmt.Errorf("resolve refresh token owner: %w", err)
	}

	token := s.newToken(ownerID)
	if err := s.repo.Save(ctx, token); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	refreshTokenEventsTotal.WithLabelValues(refreshCreated).Inc()
	return token, nil
}

// FindByToken looks up a refresh token by exact match.
func (s *RefreshTokenStore) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	if token == "" {
		return nil, ErrRefreshTokenNotFound
	}

	rt, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	return rt, nil
}

// VerifyAndConsumeIfExpired returns the token unchanged while it is live. An
// expired token is deleted on discovery and ErrRefreshTokenExpired returned.
func (s *RefreshTokenStore) VerifyAndConsumeIfExpired(ctx context.Context, rt *domain.RefreshToken) (*domain.RefreshToken, error) {
	now := s.clock()
	if !rt.IsExpired(now) {
		return rt, nil
	}

	// The delete is conditional on expiry so a concurrent caller that already
	// removed the row does not turn this into an error.
	if _, err := s.repo.DeleteIfExpired(ctx, rt.Token, now); err != nil {
		return nil, fmt.Errorf("delete expired refresh token: %w", err)
	}

	refreshTokenEventsTotal.WithLabelValues(refreshExpired).Inc()
	return nil, ErrRefreshTokenExpired
}

// Rotate replaces a live token with a fresh one for the same owner. Only one
// of several concurrent rotations of the same token succeeds; the others get
// ErrRefreshTokenNotFound.
func (s *RefreshTokenStore) Rotate(ctx context.Context, rt *domain.RefreshToken) (*domain.RefreshToken, error) {
	next := s.newToken(rt.OwnerID)

	if err := s.repo.Rotate(ctx, rt.Token, next, s.clock()); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	refreshTokenEventsTotal.WithLabelValues(refreshRotated).Inc()
	return next, nil
}

// Revoke deletes a refresh token, e.g. on logout.
func (s *RefreshTokenStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return ErrRefreshTokenNotFound
	}

	if err := s.repo.Delete(ctx, token); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return ErrRefreshTokenNotFound
		}
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	refreshTokenEventsTotal.WithLabelValues(refreshRevoked).Inc()
	return nil
}

// RevokeAll deletes every refresh token of the owner.
func (s *RefreshTokenStore) RevokeAll(ctx context.Context, ownerID string) (int64, error) {
	n, err := s.repo.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens of owner: %w", err)
	}

	refreshTokenEventsTotal.WithLabelValues(refreshRevoked).Add(float64(n))
	return n, nil
}

// clock reads the current time at the precision the storage engines keep, so
// an expiry decided here is the one the repository applies.
func (s *RefreshTokenStore) clock() time.Time {
	return s.now().Truncate(time.Microsecond)
}

func (s *RefreshTokenStore) newToken(ownerID string) *domain.RefreshToken {
	now := s.clock()
	return &domain.RefreshToken{
		Token:     uuid.NewString(),
		OwnerID:   ownerID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/stonenotes/stonenotes/internal/auth"
	"github.com/stonenotes/stonenotes/internal/domain"
	"github.com/stonenotes/stonenotes/internal/repository"
	apperrors "github.com/stonenotes/stonenotes/pkg/errors"
)

const (
	bcryptCost = 12

	minPasswordLength = 8
	// bcrypt only hashes this many bytes.
	maxPasswordBytes = 72
)

// EventPublisher publishes the domain events of the notes service.
// *event.Producer satisfies it.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishSessionRevoked(ctx context.Context, userID, scope string, revoked int64) error
}

// UserService owns user accounts. It is also the principal directory used by
// the authenticator and the refresh token store.
type UserService struct {
	userRepo repository.UserRepository
	events   EventPublisher
	logger   *slog.Logger
	cost     int
}

var _ auth.PrincipalDirectory = (*UserService)(nil)

// NewUserService creates a new user service.
func NewUserService(userRepo repository.UserRepository, events EventPublisher, logger *slog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		events:   events,
		logger:   logger,
		cost:     bcryptCost,
	}
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates an active account with the user role. The email is
// stored lower-cased and trimmed.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	user := &domain.User{
		Email:     normalizeEmail(input.Email),
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
	}
	switch {
	case user.Email == "":
		return nil, apperrors.InvalidInput("email is required")
	case user.FirstName == "":
		return nil, apperrors.InvalidInput("first name is required")
	case user.LastName == "":
		return nil, apperrors.InvalidInput("last name is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user.ID = uuid.NewString()
	user.PasswordHash = string(hash)
	user.Role = domain.RoleUser
	user.IsActive = true
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("register %s: %w", user.Email, err)
	}
	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))

	if err := s.events.PublishUserRegistered(ctx, user); err != nil {
		s.logger.WarnContext(ctx, "user.registered event not published",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return user, nil
}

// GetProfile retrieves a user by their ID.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return user, nil
}

// FindByID resolves an active user into a principal.
func (s *UserService) FindByID(ctx context.Context, id string) (*domain.Principal, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	return s.principal(user, err)
}

// FindByCredentials resolves an active user by login email. Emails are
// matched case-insensitively.
func (s *UserService) FindByCredentials(ctx context.Context, username string) (*domain.Principal, error) {
	email := normalizeEmail(username)
	if email == "" {
		return nil, auth.ErrPrincipalNotFound
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	return s.principal(user, err)
}

func (s *UserService) principal(user *domain.User, err error) (*domain.Principal, error) {
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, auth.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if !user.IsActive {
		return nil, auth.ErrPrincipalNotFound
	}
	return domain.NewPrincipal(user), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validatePassword requires minPasswordLength to maxPasswordBytes and at
// least one upper case letter, lower case letter and digit.
func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}

	var missing []string
	if !strings.ContainsFunc(password, unicode.IsUpper) {
		missing = append(missing, "an upper case letter")
	}
	if !strings.ContainsFunc(password, unicode.IsLower) {
		missing = append(missing, "a lower case letter")
	}
	if !strings.ContainsFunc(password, unicode.IsDigit) {
		missing = append(missing, "a digit")
	}
	if len(missing) > 0 {
		return apperrors.InvalidInput("password must contain " + strings.Join(missing, ", "))
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/domain"
	"github.com/phrazzld/labelhive-api/internal/platform/logger"
	"github.com/phrazzld/labelhive-api/internal/service/auth"
	"github.com/phrazzld/labelhive-api/internal/store"
)

// UserService registers and authenticates users.
type UserService struct {
	users    store.UserStore
	verifier auth.PasswordVerifier
	logger   *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(users store.UserStore, verifier auth.PasswordVerifier, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		users:    users,
		verifier: verifier,
		logger:   logger.With(slog.String("component", "user_service")),
	}
}

// Register creates a user. The store hashes the password.
func (s *UserService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := domain.NewUser(strings.ToLower(strings.TrimSpace(email)), password)
	if err != nil {
		return nil, invalidInput(err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			log.Debug("attempted to register an existing email")
		} else {
			log.Error("failed to create user", slog.String("error", err.Error()))
		}
		return nil, err
	}
	return user, nil
}

// Authenticate returns the user whose credentials match, or
// ErrInvalidCredentials. Unknown emails and wrong passwords are not told apart.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.verifier.Compare(user.HashedPassword, password); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Debug("password mismatch",
			slog.String("user_id", user.ID.String()))
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser returns a user by identifier.
func (s *UserService) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// Package service provides the account and contribution workflows,
// delegating persistence to repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atinyakov/asrcollect/internal/common"
	"github.com/atinyakov/asrcollect/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines the persistence operations
// required by the authentication service.
type UserRepository interface {
	// UserExists returns true if a user with the given username exists.
	UserExists(ctx context.Context, username string) (bool, error)
	// Create inserts the user and reports false when the username was
	// taken concurrently.
	Create(ctx context.Context, u *models.User) (bool, error)
	// GetByUsername returns common.ErrNotFound for unknown usernames.
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// AuthService implements registration and login on top of a UserRepository.
type AuthService struct {
	repo UserRepository
	cost int
	now  func() time.Time
}

// NewAuthService constructs an AuthService using the provided repository.
func NewAuthService(repo UserRepository) *AuthService {
	return &AuthService{repo: repo, cost: bcrypt.DefaultCost, now: time.Now}
}

// UserExists checks whether a user with the specified username exists.
func (s *AuthService) UserExists(ctx context.Context, username string) (bool, error) {
	return s.repo.UserExists(ctx, username)
}

// Register creates an account. It fails with common.ErrAlreadyExists when
// the username is taken and common.ErrInvalidInput when either field is empty.
func (s *AuthService) Register(ctx context.Context, username, password string) (*models.User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, fmt.Errorf("username and password are required: %w", common.ErrInvalidInput)
	}

	exists, err := s.repo.UserExists(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("username %q: %w", username, common.ErrAlreadyExists)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("password too long: %w", common.ErrInvalidInput)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	inserted, err := s.repo.Create(ctx, u)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, fmt.Errorf("username %q: %w", username, common.ErrAlreadyExists)
	}
	return u, nil
}

// Login returns the user when password matches the stored hash and
// common.ErrInvalidCredentials otherwise.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, common.ErrInvalidCredentials
	}
	return u, nil
}

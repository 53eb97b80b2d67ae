package auth

import (
	"context"
	"errors"
	"fmt"

	passwordvalidator "github.com/wagslane/go-password-validator"
	"golang.org/x/crypto/bcrypt"

	"transcendence/infrastructure"
	"transcendence/internal/user"
	"transcendence/pkg/jwt"
)

const minPasswordEntropy = 60

// Service issues access tokens for account credentials.
type Service struct {
	users *user.Directory
	jwt   *jwt.JWT
}

func NewService(users *user.Directory, jwt *jwt.JWT) *Service {
	return &Service{users: users, jwt: jwt}
}

func (s *Service) Register(ctx context.Context, username, password string) (*user.User, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", infrastructure.ErrInvalidInput)
	}
	if err := passwordvalidator.Validate(password, minPasswordEntropy); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), infrastructure.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return s.users.Create(ctx, username, string(hash))
}

func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.ByUsername(ctx, username)
	if errors.Is(err, infrastructure.ErrNotFound) {
		return "", infrastructure.ErrUnauthorized
	}
	if err != nil {
		return "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", infrastructure.ErrUnauthorized
	}
	return s.jwt.GenerateToken(u.ID, u.Username)
}

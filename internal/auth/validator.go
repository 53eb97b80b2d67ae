package auth

import (
	"context"
	"fmt"

	"transcendence/infrastructure"
	"transcendence/internal/user"
	"transcendence/pkg/jwt"
)

// Validator turns a bearer token into a validated identity. A bad or missing
// token yields ErrInvalidToken; the caller decides whether that means a
// disconnect (gateway) or a 401 (REST).
type Validator struct {
	jwt   *jwt.JWT
	users *user.Directory
}

func NewValidator(j *jwt.JWT, users *user.Directory) *Validator {
	return &Validator{jwt: j, users: users}
}

func (v *Validator) Validate(ctx context.Context, token string) (*user.Identity, error) {
	if token == "" {
		return nil, infrastructure.ErrMissingToken
	}
	claims, err := v.jwt.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), infrastructure.ErrInvalidToken)
	}

	// The account may have been removed since the token was minted.
	exists, err := v.users.Exists(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, infrastructure.ErrInvalidToken
	}
	return &user.Identity{ID: claims.UserID, Username: claims.Username}, nil
}

package user

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"transcendence/infrastructure"
	"transcendence/internal/database"
)

// Directory is the user lookup collaborator: id and handle resolution plus
// the friendship graph.
type Directory struct {
	db *database.Database
}

func NewDirectory(db *database.Database) *Directory {
	return &Directory{db: db}
}

func (d *Directory) Create(ctx context.Context, username, passwordHash string) (*User, error) {
	u := &User{Username: username, PasswordHash: passwordHash}
	err := d.db.WithContext(ctx).Create(u).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("username %q taken: %w", username, infrastructure.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (d *Directory) ByID(ctx context.Context, id int64) (*User, error) {
	var u User
	err := d.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, infrastructure.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *Directory) ByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := d.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, infrastructure.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *Directory) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// AddFriend records the friendship once, lower id first. An existing pair is
// ErrForbidden (already friends).
func (d *Directory) AddFriend(ctx context.Context, a, b int64) error {
	if a == b {
		return fmt.Errorf("cannot befriend yourself: %w", infrastructure.ErrForbidden)
	}
	lo, hi := orderPair(a, b)

	already, err := d.IsFriend(ctx, lo, hi)
	if err != nil {
		return err
	}
	if already {
		return fmt.Errorf("users %d and %d are already friends: %w", a, b, infrastructure.ErrForbidden)
	}
	return d.db.WithContext(ctx).Create(&Friendship{UserID: lo, FriendID: hi}).Error
}

func (d *Directory) IsFriend(ctx context.Context, a, b int64) (bool, error) {
	lo, hi := orderPair(a, b)
	var count int64
	err := d.db.WithContext(ctx).Model(&Friendship{}).
		Where("user_id = ? AND friend_id = ?", lo, hi).Count(&count).Error
	return count > 0, err
}

func orderPair(a, b int64) (int64, int64) {
	if a < b {
		return a, b
	}
	return b, a
}

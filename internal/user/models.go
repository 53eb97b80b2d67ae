package user

import "time"

type User struct {
	ID           int64  `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
}

// Friendship is stored once per pair with the lower id first.
type Friendship struct {
	ID        int64 `gorm:"primaryKey"`
	UserID    int64 `gorm:"index:friend_pair,unique;not null"`
	FriendID  int64 `gorm:"index:friend_pair,unique;not null"`
	CreatedAt time.Time
}

// Identity is the validated view of a user handed out by the auth layer.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

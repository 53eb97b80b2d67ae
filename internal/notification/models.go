package notification

import "time"

type Type string

const (
	TypeFriendRequest Type = "friend-request"
	TypeGameInvite    Type = "game-invite"
)

func (t Type) Valid() bool {
	return t == TypeFriendRequest || t == TypeGameInvite
}

// Notification is a pending social event addressed to a user. At most one
// pending notification exists per (sender, recipient, type) triple.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID int64     `json:"recipientId"`
	SenderID    int64     `json:"senderId"`
	Type        Type      `json:"type"`
	CreatedAt   time.Time `json:"createdAt"`
}

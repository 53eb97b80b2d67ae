package chat

import "time"

type Kind string

const (
	KindDirect Kind = "direct"
	KindGroup  Kind = "group"
)

type Accessibility string

const (
	AccessPublic    Accessibility = "public"
	AccessPrivate   Accessibility = "private"
	AccessProtected Accessibility = "protected"
)

type Role int

const (
	RoleMember Role = 1
	RoleAdmin  Role = 2
	RoleOwner  Role = 3
)

func (r Role) Valid() bool {
	return r >= RoleMember && r <= RoleOwner
}

// Moderator reports whether the role may perform moderation actions
// (ban, mute, role change, access/password change).
func (r Role) Moderator() bool {
	return r >= RoleAdmin
}

// Indefinite is the far-future sentinel stored when a mute or ban carries no
// duration. Expiry is checked lazily at use-time, never by a background sweep.
var Indefinite = time.Date(9999, time.January, 1, 0, 0, 0, 0, time.UTC)

type Chat struct {
	ID            string
	Kind          Kind
	Name          string
	Accessibility Accessibility
	// Password is meaningful only when Accessibility is protected. It is
	// stored as supplied; match logic lives at the API boundary.
	Password  string
	CreatedAt time.Time
}

func (c *Chat) IsGroup() bool {
	return c.Kind == KindGroup
}

type Membership struct {
	ChatID            string
	UserID            int64
	Role              Role
	MutedUntil        *time.Time
	BannedUntil       *time.Time
	LastReadMessageID *string
	JoinedAt          time.Time
}

func (m *Membership) Banned(now time.Time) bool {
	return m.BannedUntil != nil && m.BannedUntil.After(now)
}

func (m *Membership) Muted(now time.Time) bool {
	return m.MutedUntil != nil && m.MutedUntil.After(now)
}

type Message struct {
	ID        string
	ChatID    string
	SenderID  int64
	Content   string
	CreatedAt time.Time
}

// Action is a capability checked by Service.IsActionAllowed.
type Action int

const (
	ActionSend Action = iota
	ActionRead
	ActionJoin
	ActionModerate
)

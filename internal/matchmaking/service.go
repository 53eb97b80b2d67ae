// Package matchmaking implements the ephemeral two-party invite protocol.
// Invites live only in process memory and are garbage-collected on response
// or disconnect.
package matchmaking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"transcendence/infrastructure"
	"transcendence/internal/notification"
)

const (
	// EventGame announces an incoming game invite to a live invitee.
	EventGame = "game"
	// EventGameSession tells both parties their shared session is ready.
	EventGameSession = "gameSession"
)

type State int

const (
	StatePending State = iota
	StateAccepted
	StateDeclined
	StateExpired
)

type Invite struct {
	InviterID int64
	InviteeID int64
	State     State
	CreatedAt time.Time
}

type inviteKey struct {
	inviter int64
	invitee int64
}

// InviteEvent is the payload of the "game" event.
type InviteEvent struct {
	InviterID int64 `json:"inviterId"`
}

// SessionEvent is the payload of the "gameSession" event. Both parties
// receive the same session id.
type SessionEvent struct {
	SessionID string `json:"sessionId"`
	InviterID int64  `json:"inviterId"`
	InviteeID int64  `json:"inviteeId"`
}

type Presence interface {
	IsOnline(userID int64) bool
}

type Pusher interface {
	ToUser(userID int64, event string, payload any)
}

// Notifier degrades an invite to a stored notification when the invitee is
// offline.
type Notifier interface {
	Notify(ctx context.Context, recipientID, senderID int64, typ notification.Type) (*notification.Notification, error)
}

type Service struct {
	mu       sync.Mutex
	invites  map[inviteKey]*Invite
	presence Presence
	pusher   Pusher
	notifier Notifier
	logger   *zap.Logger
}

func NewService(presence Presence, pusher Pusher, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		invites:  make(map[inviteKey]*Invite),
		presence: presence,
		pusher:   pusher,
		notifier: notifier,
		logger:   logger,
	}
}

// Invite records a pending invite. A live invitee gets the invite event
// immediately; an offline one gets a stored game-invite notification instead.
func (s *Service) Invite(ctx context.Context, inviterID, inviteeID int64) error {
	if inviterID == inviteeID {
		return fmt.Errorf("cannot invite yourself: %w", infrastructure.ErrInvalidOperation)
	}

	s.mu.Lock()
	s.invites[inviteKey{inviterID, inviteeID}] = &Invite{
		InviterID: inviterID,
		InviteeID: inviteeID,
		State:     StatePending,
		CreatedAt: time.Now(),
	}
	s.mu.Unlock()

	if s.presence.IsOnline(inviteeID) {
		s.pusher.ToUser(inviteeID, EventGame, InviteEvent{InviterID: inviterID})
		return nil
	}

	if _, err := s.notifier.Notify(ctx, inviteeID, inviterID, notification.TypeGameInvite); err != nil {
		return fmt.Errorf("failed to store game invite: %w", err)
	}
	return nil
}

// Respond resolves a pending invite. On accept with both parties online a
// shared session id is minted and pushed to both; otherwise the invite is
// discarded with no further side effects. Returns the session id on success.
func (s *Service) Respond(ctx context.Context, inviteeID, inviterID int64, accept bool) (string, error) {
	key := inviteKey{inviterID, inviteeID}

	s.mu.Lock()
	invite, ok := s.invites[key]
	if !ok || invite.State != StatePending {
		s.mu.Unlock()
		return "", fmt.Errorf("no pending invite from %d to %d: %w", inviterID, inviteeID, infrastructure.ErrNotFound)
	}
	delete(s.invites, key)

	if !accept {
		invite.State = StateDeclined
		s.mu.Unlock()
		return "", nil
	}
	invite.State = StateAccepted
	s.mu.Unlock()

	if !s.presence.IsOnline(inviterID) || !s.presence.IsOnline(inviteeID) {
		return "", nil
	}

	session := SessionEvent{
		SessionID: uuid.New().String(),
		InviterID: inviterID,
		InviteeID: inviteeID,
	}
	s.pusher.ToUser(inviterID, EventGameSession, session)
	s.pusher.ToUser(inviteeID, EventGameSession, session)
	return session.SessionID, nil
}

// DropUser expires every invite referencing the user. Wired to the registry
// offline hook so a disconnect leaves no dangling invites.
func (s *Service) DropUser(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, invite := range s.invites {
		if key.inviter == userID || key.invitee == userID {
			invite.State = StateExpired
			delete(s.invites, key)
		}
	}
}

// Pending reports whether an invite from inviter to invitee is outstanding.
func (s *Service) Pending(inviterID, inviteeID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, ok := s.invites[inviteKey{inviterID, inviteeID}]
	return ok && invite.State == StatePending
}

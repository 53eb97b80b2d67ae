package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"transcendence/infrastructure"
)

// EventNotification is the server event carrying a live notification push.
const EventNotification = "notification"

// Presence is the slice of the connection registry the coordinator consults
// before deciding between a live push and a later pull.
type Presence interface {
	IsOnline(userID int64) bool
}

// Pusher delivers a live event to every connection of a user.
type Pusher interface {
	ToUser(userID int64, event string, payload any)
}

// Directory resolves whether a recipient exists at all.
type Directory interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

// Service creates, deduplicates and resolves notification records, pushing a
// live event whenever the recipient is online.
type Service struct {
	repo     Repository
	presence Presence
	pusher   Pusher
	users    Directory
	logger   *zap.Logger
}

func NewService(repo Repository, presence Presence, pusher Pusher, users Directory, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		presence: presence,
		pusher:   pusher,
		users:    users,
		logger:   logger,
	}
}

// Notify records a notification, replacing any pending one with the same
// (sender, recipient, type) triple, and pushes it live if the recipient is
// online. Unknown recipients fail with ErrNotFound.
func (s *Service) Notify(ctx context.Context, recipientID, senderID int64, typ Type) (*Notification, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("unknown notification type %q: %w", typ, infrastructure.ErrInvalidInput)
	}
	exists, err := s.users.Exists(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("recipient %d: %w", recipientID, infrastructure.ErrNotFound)
	}

	n := &Notification{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		SenderID:    senderID,
		Type:        typ,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.ReplacePending(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to store notification: %w", err)
	}

	if s.presence.IsOnline(recipientID) {
		s.pusher.ToUser(recipientID, EventNotification, n)
	}
	return n, nil
}

// Resolve deletes the pending notifications matching the triple and returns
// the senders whose notifications were removed. Deletion errors propagate.
func (s *Service) Resolve(ctx context.Context, recipientID, senderID int64, typ Type) ([]int64, error) {
	exists, err := s.users.Exists(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("recipient %d: %w", recipientID, infrastructure.ErrNotFound)
	}

	senders, err := s.repo.DeletePending(ctx, recipientID, senderID, typ)
	if err != nil {
		return nil, fmt.Errorf("failed to delete notifications: %w", err)
	}
	return senders, nil
}

// FlushOnConnect returns the user's pending notifications for live
// re-delivery. Records are kept; they are only removed by an explicit
// response through Resolve.
func (s *Service) FlushOnConnect(ctx context.Context, userID int64) ([]*Notification, error) {
	return s.repo.PendingFor(ctx, userID)
}

// PendingSenders lists the senders behind pending notifications of one type,
// backing the pull-based REST surface.
func (s *Service) PendingSenders(ctx context.Context, recipientID int64, typ Type) ([]int64, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("unknown notification type %q: %w", typ, infrastructure.ErrInvalidInput)
	}
	return s.repo.PendingSenders(ctx, recipientID, typ)
}

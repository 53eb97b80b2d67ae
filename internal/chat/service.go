package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"transcendence/infrastructure"
)

// Service owns chat rosters and moderation state: who is in a chat, with
// which role, and which mutes/bans are in effect. Durations are stored as
// expiry timestamps and checked lazily; there is no background sweep.
type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

type CreateChatParams struct {
	Name          string
	CreatorID     int64
	MemberIDs     []int64
	Kind          Kind
	Accessibility Accessibility
	Password      string
}

// CreateChat creates the chat and a membership for every listed member. The
// creator gets the owner role, everyone else starts as member. A protected
// chat without a password is rejected with ErrConflict.
func (s *Service) CreateChat(ctx context.Context, p CreateChatParams) (*Chat, error) {
	if p.Accessibility == AccessProtected && p.Password == "" {
		return nil, fmt.Errorf("protected chat requires a password: %w", infrastructure.ErrConflict)
	}
	if p.Accessibility == "" {
		p.Accessibility = AccessPrivate
	}

	now := s.now()
	chat := &Chat{
		ID:            uuid.New().String(),
		Kind:          p.Kind,
		Name:          p.Name,
		Accessibility: p.Accessibility,
		Password:      p.Password,
		CreatedAt:     now,
	}

	members := make([]*Membership, 0, len(p.MemberIDs)+1)
	seen := make(map[int64]struct{}, len(p.MemberIDs)+1)
	if p.CreatorID != 0 {
		members = append(members, &Membership{ChatID: chat.ID, UserID: p.CreatorID, Role: RoleOwner, JoinedAt: now})
		seen[p.CreatorID] = struct{}{}
	}
	for _, id := range p.MemberIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, &Membership{ChatID: chat.ID, UserID: id, Role: RoleMember, JoinedAt: now})
	}

	if err := s.repo.CreateChat(ctx, chat, members); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return chat, nil
}

func (s *Service) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	return s.repo.GetChat(ctx, chatID)
}

func (s *Service) ChatsForUser(ctx context.Context, userID int64) ([]*Chat, error) {
	return s.repo.ChatsForUser(ctx, userID)
}

func (s *Service) Members(ctx context.Context, chatID string) ([]*Membership, error) {
	return s.repo.ListMemberships(ctx, chatID)
}

// AddMember adds the user as a plain member. An existing membership is a
// conflict; a still-active ban forbids rejoining.
func (s *Service) AddMember(ctx context.Context, chatID string, userID int64) (*Membership, error) {
	existing, err := s.repo.GetMembership(ctx, chatID, userID)
	if err == nil {
		if existing.Banned(s.now()) {
			return nil, fmt.Errorf("user %d is banned from chat %s: %w", userID, chatID, infrastructure.ErrForbidden)
		}
		return nil, infrastructure.ErrConflict
	}
	if !errors.Is(err, infrastructure.ErrNotFound) {
		return nil, err
	}

	m := &Membership{ChatID: chatID, UserID: userID, Role: RoleMember, JoinedAt: s.now()}
	if err := s.repo.AddMembership(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	return m, nil
}

// RemoveMember implements "leave group". Direct chats cannot be left this way.
func (s *Service) RemoveMember(ctx context.Context, chatID string, userID int64) error {
	chat, err := s.repo.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.IsGroup() {
		return fmt.Errorf("cannot leave a direct chat: %w", infrastructure.ErrInvalidOperation)
	}
	return s.repo.RemoveMembership(ctx, chatID, userID)
}

func (s *Service) SetRole(ctx context.Context, chatID string, userID int64, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %d: %w", role, infrastructure.ErrInvalidInput)
	}
	return s.repo.UpdateRole(ctx, chatID, userID, role)
}

func (s *Service) SetAccess(ctx context.Context, chatID string, isProtected bool, password string) error {
	accessibility := AccessPrivate
	if isProtected {
		if password == "" {
			return fmt.Errorf("protected chat requires a password: %w", infrastructure.ErrConflict)
		}
		accessibility = AccessProtected
	}
	return s.repo.UpdateAccess(ctx, chatID, accessibility, password)
}

func (s *Service) SetPassword(ctx context.Context, chatID, password string) error {
	return s.repo.UpdatePassword(ctx, chatID, password)
}

func (s *Service) Rename(ctx context.Context, chatID, newName string) (*Chat, error) {
	if err := s.repo.RenameChat(ctx, chatID, newName); err != nil {
		return nil, err
	}
	return s.repo.GetChat(ctx, chatID)
}

// Mute silences the user until the duration elapses. A nil duration means
// indefinite. Re-muting overwrites the previous expiry. Returns the effective
// expiry timestamp.
func (s *Service) Mute(ctx context.Context, chatID string, userID int64, duration *time.Duration) (time.Time, error) {
	until := s.expiry(duration)
	if err := s.repo.UpdateMutedUntil(ctx, chatID, userID, &until); err != nil {
		return time.Time{}, err
	}
	return until, nil
}

// Unmute clears the mute. Unmuting a user who is not muted succeeds.
func (s *Service) Unmute(ctx context.Context, chatID string, userID int64) error {
	return s.repo.UpdateMutedUntil(ctx, chatID, userID, nil)
}

// Ban works like Mute but the membership row is kept so history and role
// survive. Re-banning overwrites the expiry.
func (s *Service) Ban(ctx context.Context, chatID string, userID int64, duration *time.Duration) (time.Time, error) {
	until := s.expiry(duration)
	if err := s.repo.UpdateBannedUntil(ctx, chatID, userID, &until); err != nil {
		return time.Time{}, err
	}
	return until, nil
}

// Unban clears the ban. Unbanning a user with no active ban succeeds.
func (s *Service) Unban(ctx context.Context, chatID string, userID int64) error {
	return s.repo.UpdateBannedUntil(ctx, chatID, userID, nil)
}

// RoleOf returns the caller's role in the chat, used by event handlers to
// gate moderation actions.
func (s *Service) RoleOf(ctx context.Context, chatID string, userID int64) (Role, error) {
	m, err := s.repo.GetMembership(ctx, chatID, userID)
	if err != nil {
		return 0, err
	}
	return m.Role, nil
}

// IsActionAllowed is the derived moderation check: a banned user may neither
// send nor rejoin, a muted user may read but not send, and moderation itself
// requires the admin or owner role.
func (s *Service) IsActionAllowed(ctx context.Context, chatID string, userID int64, action Action) (bool, error) {
	m, err := s.repo.GetMembership(ctx, chatID, userID)
	if errors.Is(err, infrastructure.ErrNotFound) {
		// Non-members may attempt to join unless a retained ban record says
		// otherwise, which is handled above via the membership row.
		return action == ActionJoin, nil
	}
	if err != nil {
		return false, err
	}

	now := s.now()
	switch action {
	case ActionSend:
		return !m.Banned(now) && !m.Muted(now), nil
	case ActionRead:
		return !m.Banned(now), nil
	case ActionJoin:
		return !m.Banned(now), nil
	case ActionModerate:
		return m.Role.Moderator() && !m.Banned(now), nil
	default:
		return false, fmt.Errorf("unknown action %d: %w", action, infrastructure.ErrInvalidInput)
	}
}

func (s *Service) expiry(duration *time.Duration) time.Time {
	if duration == nil {
		return Indefinite
	}
	return s.now().Add(*duration)
}

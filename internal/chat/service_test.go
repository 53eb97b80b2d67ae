package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"transcendence/infrastructure"
)

func newTestService(t *testing.T) (*Service, *memoryRepository) {
	t.Helper()
	repo := newMemoryRepository()
	return NewService(repo, zap.NewNop()), repo
}

func TestCreateChatAssignsRoles(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	chat, err := svc.CreateChat(ctx, CreateChatParams{
		Name:      "lounge",
		CreatorID: 1,
		MemberIDs: []int64{2, 3, 2},
		Kind:      KindGroup,
	})
	if err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}

	members, _ := repo.ListMemberships(ctx, chat.ID)
	if len(members) != 3 {
		t.Fatalf("got %d members, want 3 (duplicates collapsed)", len(members))
	}
	owner, _ := repo.GetMembership(ctx, chat.ID, 1)
	if owner.Role != RoleOwner {
		t.Errorf("creator role = %d, want owner", owner.Role)
	}
	member, _ := repo.GetMembership(ctx, chat.ID, 2)
	if member.Role != RoleMember {
		t.Errorf("member role = %d, want member", member.Role)
	}
}

func TestCreateChatProtectedNeedsPassword(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateChat(context.Background(), CreateChatParams{
		Name:          "vault",
		CreatorID:     1,
		Kind:          KindGroup,
		Accessibility: AccessProtected,
	})
	if !errors.Is(err, infrastructure.ErrConflict) {
		t.Fatalf("CreateChat() error = %v, want ErrConflict", err)
	}
}

func TestAddMemberTwiceConflicts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	chat, err := svc.CreateChat(ctx, CreateChatParams{Name: "g", CreatorID: 1, Kind: KindGroup})
	if err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}
	if _, err := svc.AddMember(ctx, chat.ID, 2); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if _, err := svc.AddMember(ctx, chat.ID, 2); !errors.Is(err, infrastructure.ErrConflict) {
		t.Fatalf("second AddMember() error = %v, want ErrConflict", err)
	}
}

func TestBannedUserCannotRejoin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	chat, _ := svc.CreateChat(ctx, CreateChatParams{Name: "g", CreatorID: 1, Kind: KindGroup})
	if _, err := svc.AddMember(ctx, chat.ID, 2); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if _, err := svc.Ban(ctx, chat.ID, 2, nil); err != nil {
		t.Fatalf("Ban() error = %v", err)
	}

	if _, err := svc.AddMember(ctx, chat.ID, 2); !errors.Is(err, infrastructure.ErrForbidden) {
		t.Fatalf("AddMember() after ban error = %v, want ErrForbidden", err)
	}
}

func TestRemoveMemberFromDirectChatFails(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	chat, _ := svc.CreateChat(ctx, CreateChatParams{CreatorID: 1, MemberIDs: []int64{2}, Kind: KindDirect})
	err := svc.RemoveMember(ctx, chat.ID, 1)
	if !errors.Is(err, infrastructure.ErrInvalidOperation) {
		t.Fatalf("RemoveMember() error = %v, want ErrInvalidOperation", err)
	}
}

func TestMuteExpiresLazily(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }

	chat, _ := svc.CreateChat(ctx, CreateChatParams{Name: "g", CreatorID: 1, Kind: KindGroup})
	svc.AddMember(ctx, chat.ID, 2)

	d := 10 * time.Minute
	until, err := svc.Mute(ctx, chat.ID, 2, &d)
	if err != nil {
		t.Fatalf("Mute() error = %v", err)
	}
	if !until.Equal(base.Add(d)) {
		t.Errorf("mute expiry = %v, want %v", until, base.Add(d))
	}

	allowed, err := svc.IsActionAllowed(ctx, chat.ID, 2, ActionSend)
	if err != nil || allowed {
		t.Fatalf("muted send allowed = %v, err = %v; want blocked", allowed, err)
	}
	allowed, _ = svc.IsActionAllowed(ctx, chat.ID, 2, ActionRead)
	if !allowed {
		t.Error("mute should not block reading")
	}

	// Past the expiry the mute no longer applies. No sweeper runs.
	svc.now = func() time.Time { return base.Add(d + time.Second) }
	allowed, _ = svc.IsActionAllowed(ctx, chat.ID, 2, ActionSend)
	if !allowed {
		t.Error("expired mute still blocks sending")
	}
}

func TestBanBlocksSendReadAndJoin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	chat, _ := svc.CreateChat(ctx, CreateChatParams{Name: "g", CreatorID: 1, Kind: KindGroup})
	svc.AddMember(ctx, chat.ID, 2)
	if _, err := svc.Ban(ctx, chat.ID, 2, nil); err != nil {
		t.Fatalf("Ban() error = %v", err)
	}

	for _, action := range []Action{ActionSend, ActionRead, ActionJoin} {
		allowed, err := svc.IsActionAllowed(ctx, chat.ID, 2, action)
		if err != nil {
			t.Fatalf("IsActionAllowed(%d) error = %v", action, err)
		}
		if allowed {
			t.Errorf("banned user allowed action %d", action)
		}
	}
}

func TestRebanOverwritesExpiry(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }

	chat, _ := svc.CreateChat(ctx, CreateChatParams{Name: "g", CreatorID: 1, Kind: KindGroup})
	svc.AddMember(ctx, chat.ID, 2)

	short := time.Minute
	long := time.Hour
	svc.Ban(ctx, chat.ID, 2, &short)
	svc.Ban(ctx, chat.ID, 2, &long)

	m, _ := repo.GetMembership(ctx, chat.ID, 2)
	if !m.BannedUntil.Equal(base.Add(long)) {
		t.Errorf("ban expiry = %v, want %v", m.BannedUntil, base.Add(long))
	}
}

func TestUnbanWithoutBanSucceeds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	chat, _ := svc.CreateChat(ctx, CreateChatParams{Name: "g", CreatorID: 1, Kind: KindGroup})
	svc.AddMember(ctx, chat.ID, 2)

	if err := svc.Unban(ctx, chat.ID, 2); err != nil {
		t.Fatalf("Unban() without active ban error = %v", err)
	}
	if err := svc.Unmute(ctx, chat.ID, 2); err != nil {
		t.Fatalf("Unmute() without active mute error = %v", err)
	}
}

func TestIndefiniteBanKeepsMembershipRow(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	chat, _ := svc.CreateChat(ctx, CreateChatParams{Name: "g", CreatorID: 1, Kind: KindGroup})
	svc.AddMember(ctx, chat.ID, 2)
	svc.SetRole(ctx, chat.ID, 2, RoleAdmin)

	until, err := svc.Ban(ctx, chat.ID, 2, nil)
	if err != nil {
		t.Fatalf("Ban() error = %v", err)
	}
	if !until.Equal(Indefinite) {
		t.Errorf("indefinite ban expiry = %v, want %v", until, Indefinite)
	}

	// Role and history survive the ban; unban restores the member as-was.
	if err := svc.Unban(ctx, chat.ID, 2); err != nil {
		t.Fatalf("Unban() error = %v", err)
	}
	m, _ := repo.GetMembership(ctx, chat.ID, 2)
	if m.Role != RoleAdmin {
		t.Errorf("role after unban = %d, want admin", m.Role)
	}
}

func TestIsActionAllowedNonMember(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	chat, _ := svc.CreateChat(ctx, CreateChatParams{Name: "g", CreatorID: 1, Kind: KindGroup})

	allowed, err := svc.IsActionAllowed(ctx, chat.ID, 99, ActionJoin)
	if err != nil || !allowed {
		t.Fatalf("non-member join allowed = %v, err = %v; want allowed", allowed, err)
	}
	for _, action := range []Action{ActionSend, ActionRead, ActionModerate} {
		allowed, _ := svc.IsActionAllowed(ctx, chat.ID, 99, action)
		if allowed {
			t.Errorf("non-member allowed action %d", action)
		}
	}
}

func TestModerationRequiresRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	chat, _ := svc.CreateChat(ctx, CreateChatParams{Name: "g", CreatorID: 1, MemberIDs: []int64{2}, Kind: KindGroup})

	allowed, _ := svc.IsActionAllowed(ctx, chat.ID, 1, ActionModerate)
	if !allowed {
		t.Error("owner denied moderation")
	}
	allowed, _ = svc.IsActionAllowed(ctx, chat.ID, 2, ActionModerate)
	if allowed {
		t.Error("plain member allowed moderation")
	}

	svc.SetRole(ctx, chat.ID, 2, RoleAdmin)
	allowed, _ = svc.IsActionAllowed(ctx, chat.ID, 2, ActionModerate)
	if !allowed {
		t.Error("admin denied moderation")
	}
}

func TestSetAccessProtectedNeedsPassword(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	chat, _ := svc.CreateChat(ctx, CreateChatParams{Name: "g", CreatorID: 1, Kind: KindGroup})

	if err := svc.SetAccess(ctx, chat.ID, true, ""); !errors.Is(err, infrastructure.ErrConflict) {
		t.Fatalf("SetAccess(protected, no password) error = %v, want ErrConflict", err)
	}
	if err := svc.SetAccess(ctx, chat.ID, true, "s3cret"); err != nil {
		t.Fatalf("SetAccess() error = %v", err)
	}

	stored, _ := repo.GetChat(ctx, chat.ID)
	if stored.Accessibility != AccessProtected {
		t.Errorf("accessibility = %s, want protected", stored.Accessibility)
	}
	if stored.Password != "s3cret" {
		t.Errorf("stored password = %q, want the supplied value unchanged", stored.Password)
	}
}

func TestRenameReturnsUpdatedChat(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	chat, _ := svc.CreateChat(ctx, CreateChatParams{Name: "old", CreatorID: 1, Kind: KindGroup})
	updated, err := svc.Rename(ctx, chat.ID, "new")
	if err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if updated.Name != "new" {
		t.Errorf("name = %q, want %q", updated.Name, "new")
	}
}

func TestSetRoleRejectsUnknownRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	chat, _ := svc.CreateChat(ctx, CreateChatParams{Name: "g", CreatorID: 1, Kind: KindGroup})
	if err := svc.SetRole(ctx, chat.ID, 1, Role(42)); !errors.Is(err, infrastructure.ErrInvalidInput) {
		t.Fatalf("SetRole(42) error = %v, want ErrInvalidInput", err)
	}
}

package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"transcendence/infrastructure"
)

type memoryRepository struct {
	mu      sync.Mutex
	pending []*Notification
}

func (r *memoryRepository) ReplacePending(_ context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.pending[:0]
	for _, p := range r.pending {
		if p.RecipientID == n.RecipientID && p.SenderID == n.SenderID && p.Type == n.Type {
			continue
		}
		kept = append(kept, p)
	}
	cp := *n
	r.pending = append(kept, &cp)
	return nil
}

func (r *memoryRepository) DeletePending(_ context.Context, recipientID, senderID int64, typ Type) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var senders []int64
	kept := r.pending[:0]
	for _, p := range r.pending {
		if p.RecipientID == recipientID && p.SenderID == senderID && p.Type == typ {
			senders = append(senders, p.SenderID)
			continue
		}
		kept = append(kept, p)
	}
	r.pending = kept
	return senders, nil
}

func (r *memoryRepository) PendingFor(_ context.Context, recipientID int64) ([]*Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Notification
	for _, p := range r.pending {
		if p.RecipientID == recipientID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memoryRepository) PendingSenders(_ context.Context, recipientID int64, typ Type) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var senders []int64
	for _, p := range r.pending {
		if p.RecipientID == recipientID && p.Type == typ {
			senders = append(senders, p.SenderID)
		}
	}
	return senders, nil
}

type fakePresence struct{ online map[int64]bool }

func (p *fakePresence) IsOnline(userID int64) bool { return p.online[userID] }

type push struct {
	userID int64
	event  string
	body   any
}

type fakePusher struct {
	mu     sync.Mutex
	pushes []push
}

func (p *fakePusher) ToUser(userID int64, event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, push{userID: userID, event: event, body: payload})
}

type fakeDirectory struct{ known map[int64]bool }

func (d *fakeDirectory) Exists(_ context.Context, userID int64) (bool, error) {
	return d.known[userID], nil
}

func newTestService(t *testing.T) (*Service, *memoryRepository, *fakePresence, *fakePusher) {
	t.Helper()
	repo := &memoryRepository{}
	presence := &fakePresence{online: map[int64]bool{}}
	pusher := &fakePusher{}
	users := &fakeDirectory{known: map[int64]bool{1: true, 2: true, 3: true}}
	return NewService(repo, presence, pusher, users, zap.NewNop()), repo, presence, pusher
}

func TestNotifyStoresAndPushesWhenOnline(t *testing.T) {
	svc, repo, presence, pusher := newTestService(t)
	ctx := context.Background()
	presence.online[1] = true

	n, err := svc.Notify(ctx, 1, 2, TypeFriendRequest)
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	pending, _ := repo.PendingFor(ctx, 1)
	if len(pending) != 1 || pending[0].ID != n.ID {
		t.Fatalf("stored = %+v, want the returned notification", pending)
	}
	if len(pusher.pushes) != 1 || pusher.pushes[0].userID != 1 || pusher.pushes[0].event != EventNotification {
		t.Fatalf("pushes = %+v, want one notification push to user 1", pusher.pushes)
	}
}

func TestNotifyOfflineRecipientStoresWithoutPush(t *testing.T) {
	svc, repo, _, pusher := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Notify(ctx, 1, 2, TypeGameInvite); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	pending, _ := repo.PendingFor(ctx, 1)
	if len(pending) != 1 {
		t.Fatalf("stored %d notifications, want 1", len(pending))
	}
	if len(pusher.pushes) != 0 {
		t.Fatalf("pushed %d events to an offline recipient, want 0", len(pusher.pushes))
	}
}

func TestNotifyReplacesDuplicateTriple(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Notify(ctx, 1, 2, TypeFriendRequest)
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	second, err := svc.Notify(ctx, 1, 2, TypeFriendRequest)
	if err != nil {
		t.Fatalf("second Notify() error = %v", err)
	}

	pending, _ := repo.PendingFor(ctx, 1)
	if len(pending) != 1 {
		t.Fatalf("stored %d notifications, want 1 (duplicate replaced)", len(pending))
	}
	if pending[0].ID == first.ID {
		t.Error("older notification survived the replacement")
	}
	if pending[0].ID != second.ID {
		t.Error("replacement does not carry the newer record")
	}
}

func TestNotifyDifferentTypesCoexist(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	svc.Notify(ctx, 1, 2, TypeFriendRequest)
	svc.Notify(ctx, 1, 2, TypeGameInvite)

	pending, _ := repo.PendingFor(ctx, 1)
	if len(pending) != 2 {
		t.Fatalf("stored %d notifications, want 2 (types are distinct triples)", len(pending))
	}
}

func TestNotifyUnknownRecipientFails(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Notify(context.Background(), 99, 2, TypeFriendRequest)
	if !errors.Is(err, infrastructure.ErrNotFound) {
		t.Fatalf("Notify() error = %v, want ErrNotFound", err)
	}
}

func TestNotifyRejectsUnknownType(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Notify(context.Background(), 1, 2, Type("poke"))
	if !errors.Is(err, infrastructure.ErrInvalidInput) {
		t.Fatalf("Notify() error = %v, want ErrInvalidInput", err)
	}
}

func TestResolveDeletesAndReportsSenders(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	svc.Notify(ctx, 1, 2, TypeFriendRequest)
	svc.Notify(ctx, 1, 3, TypeFriendRequest)

	senders, err := svc.Resolve(ctx, 1, 2, TypeFriendRequest)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(senders) != 1 || senders[0] != 2 {
		t.Fatalf("senders = %v, want [2]", senders)
	}

	pending, _ := repo.PendingFor(ctx, 1)
	if len(pending) != 1 || pending[0].SenderID != 3 {
		t.Fatalf("remaining = %+v, want only the notification from 3", pending)
	}
}

func TestFlushOnConnectKeepsRecords(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	svc.Notify(ctx, 1, 2, TypeFriendRequest)
	svc.Notify(ctx, 1, 3, TypeGameInvite)

	flushed, err := svc.FlushOnConnect(ctx, 1)
	if err != nil {
		t.Fatalf("FlushOnConnect() error = %v", err)
	}
	if len(flushed) != 2 {
		t.Fatalf("flushed %d notifications, want 2", len(flushed))
	}

	// Re-delivery does not consume: only an explicit response removes records.
	pending, _ := repo.PendingFor(ctx, 1)
	if len(pending) != 2 {
		t.Fatalf("stored %d after flush, want 2", len(pending))
	}
}

func TestPendingSendersFiltersByType(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	svc.Notify(ctx, 1, 2, TypeFriendRequest)
	svc.Notify(ctx, 1, 3, TypeGameInvite)

	senders, err := svc.PendingSenders(ctx, 1, TypeFriendRequest)
	if err != nil {
		t.Fatalf("PendingSenders() error = %v", err)
	}
	if len(senders) != 1 || senders[0] != 2 {
		t.Fatalf("senders = %v, want [2]", senders)
	}

	if _, err := svc.PendingSenders(ctx, 1, Type("poke")); !errors.Is(err, infrastructure.ErrInvalidInput) {
		t.Fatalf("PendingSenders(bad type) error = %v, want ErrInvalidInput", err)
	}
}

package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"transcendence/infrastructure"
)

// memoryRepository backs the service and dispatcher tests without a database.
type memoryRepository struct {
	mu          sync.Mutex
	chats       map[string]*Chat
	memberships map[string]map[int64]*Membership
	messages    map[string]*Message
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		chats:       make(map[string]*Chat),
		memberships: make(map[string]map[int64]*Membership),
		messages:    make(map[string]*Message),
	}
}

func (r *memoryRepository) CreateChat(_ context.Context, chat *Chat, members []*Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *chat
	r.chats[chat.ID] = &c
	r.memberships[chat.ID] = make(map[int64]*Membership)
	for _, m := range members {
		cp := *m
		r.memberships[chat.ID][m.UserID] = &cp
	}
	return nil
}

func (r *memoryRepository) GetChat(_ context.Context, chatID string) (*Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[chatID]
	if !ok {
		return nil, infrastructure.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memoryRepository) RenameChat(_ context.Context, chatID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[chatID]
	if !ok {
		return infrastructure.ErrNotFound
	}
	c.Name = name
	return nil
}

func (r *memoryRepository) UpdateAccess(_ context.Context, chatID string, accessibility Accessibility, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[chatID]
	if !ok {
		return infrastructure.ErrNotFound
	}
	c.Accessibility = accessibility
	c.Password = password
	return nil
}

func (r *memoryRepository) UpdatePassword(_ context.Context, chatID, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[chatID]
	if !ok {
		return infrastructure.ErrNotFound
	}
	c.Password = password
	return nil
}

func (r *memoryRepository) DirectChatBetween(_ context.Context, a, b int64) (*Chat, error) {
	if a == b {
		return nil, infrastructure.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.chats {
		if c.Kind != KindDirect {
			continue
		}
		members := r.memberships[id]
		if _, ok := members[a]; !ok {
			continue
		}
		if _, ok := members[b]; !ok {
			continue
		}
		cp := *c
		return &cp, nil
	}
	return nil, infrastructure.ErrNotFound
}

func (r *memoryRepository) ChatsForUser(_ context.Context, userID int64) ([]*Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var chats []*Chat
	for id, members := range r.memberships {
		if _, ok := members[userID]; ok {
			cp := *r.chats[id]
			chats = append(chats, &cp)
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].CreatedAt.Before(chats[j].CreatedAt) })
	return chats, nil
}

func (r *memoryRepository) AddMembership(_ context.Context, m *Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.memberships[m.ChatID]
	if !ok {
		members = make(map[int64]*Membership)
		r.memberships[m.ChatID] = members
	}
	if _, exists := members[m.UserID]; exists {
		return infrastructure.ErrConflict
	}
	cp := *m
	members[m.UserID] = &cp
	return nil
}

func (r *memoryRepository) GetMembership(_ context.Context, chatID string, userID int64) (*Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[chatID][userID]
	if !ok {
		return nil, infrastructure.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *memoryRepository) ListMemberships(_ context.Context, chatID string) ([]*Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var members []*Membership
	for _, m := range r.memberships[chatID] {
		cp := *m
		members = append(members, &cp)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	return members, nil
}

func (r *memoryRepository) RemoveMembership(_ context.Context, chatID string, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.memberships[chatID][userID]; !ok {
		return infrastructure.ErrNotFound
	}
	delete(r.memberships[chatID], userID)
	return nil
}

func (r *memoryRepository) UpdateRole(_ context.Context, chatID string, userID int64, role Role) error {
	return r.updateMembership(chatID, userID, func(m *Membership) { m.Role = role })
}

func (r *memoryRepository) UpdateMutedUntil(_ context.Context, chatID string, userID int64, until *time.Time) error {
	return r.updateMembership(chatID, userID, func(m *Membership) { m.MutedUntil = until })
}

func (r *memoryRepository) UpdateBannedUntil(_ context.Context, chatID string, userID int64, until *time.Time) error {
	return r.updateMembership(chatID, userID, func(m *Membership) { m.BannedUntil = until })
}

func (r *memoryRepository) UpdateLastRead(_ context.Context, chatID string, userID int64, messageID string) error {
	return r.updateMembership(chatID, userID, func(m *Membership) { m.LastReadMessageID = &messageID })
}

func (r *memoryRepository) updateMembership(chatID string, userID int64, fn func(*Membership)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[chatID][userID]
	if !ok {
		return infrastructure.ErrNotFound
	}
	fn(m)
	return nil
}

func (r *memoryRepository) CreateMessage(_ context.Context, message *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *message
	r.messages[message.ID] = &cp
	return nil
}

func (r *memoryRepository) GetMessage(_ context.Context, messageID string) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[messageID]
	if !ok {
		return nil, infrastructure.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *memoryRepository) GetChatMessages(_ context.Context, chatID string, limit, offset int) ([]*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var messages []*Message
	for _, m := range r.messages {
		if m.ChatID == chatID {
			cp := *m
			messages = append(messages, &cp)
		}
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].CreatedAt.Before(messages[j].CreatedAt) })
	if offset > len(messages) {
		offset = len(messages)
	}
	messages = messages[offset:]
	if limit > 0 && limit < len(messages) {
		messages = messages[:limit]
	}
	return messages, nil
}

package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"transcendence/infrastructure"
)

// Server event names emitted by the dispatcher. The gateway reuses them so
// the wire protocol has a single definition.
const (
	EventMessage       = "message"
	EventAddChat       = "addChat"
	EventUpdateChat    = "updateChat"
	EventChatUserAdded = "chatUserAdded"
)

// Deliverer abstracts live fan-out so the dispatcher does not depend on the
// websocket layer. The gateway implements it on top of the connection
// registry and its room subscriptions.
type Deliverer interface {
	// Broadcast sends the event to every connection subscribed to the chat room.
	Broadcast(chatID, event string, payload any)
	// ToUser sends the event to every live connection of the user.
	ToUser(userID int64, event string, payload any)
}

// MessageEvent is the payload of the "message" server event.
type MessageEvent struct {
	ChatID  string   `json:"chatId"`
	Message *Message `json:"message"`
}

// MemberEvent is the payload of the "chatUserAdded" server event.
type MemberEvent struct {
	ChatID string      `json:"chatId"`
	Member *Membership `json:"chatUser"`
}

// Dispatcher accepts send requests, persists messages and fans them out to
// the live recipients. Sends on the same chat are serialized so broadcast
// order always equals persistence order; different chats proceed in parallel.
type Dispatcher struct {
	service   *Service
	deliverer Deliverer
	logger    *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewDispatcher(service *Service, deliverer Deliverer, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		service:   service,
		deliverer: deliverer,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

type SendParams struct {
	ChatID   string
	SenderID int64
	Content  string
	// PeerID addresses a first-contact direct message when ChatID is empty.
	PeerID int64
}

// Send validates, persists and delivers one message. A missing chat with an
// addressed peer becomes an implicit direct chat between the two users.
func (d *Dispatcher) Send(ctx context.Context, p SendParams) (*Message, error) {
	chat, err := d.resolveChat(ctx, p)
	if err != nil {
		return nil, err
	}

	lock := d.chatLock(chat.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := d.ensureMember(ctx, chat, p.SenderID); err != nil {
		return nil, err
	}

	allowed, err := d.service.IsActionAllowed(ctx, chat.ID, p.SenderID, ActionSend)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("user %d may not send to chat %s: %w", p.SenderID, chat.ID, infrastructure.ErrForbidden)
	}

	message := &Message{
		ID:        uuid.New().String(),
		ChatID:    chat.ID,
		SenderID:  p.SenderID,
		Content:   p.Content,
		CreatedAt: time.Now(),
	}
	if err := d.service.repo.CreateMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	// The sender has read their own message.
	if err := d.service.repo.UpdateLastRead(ctx, chat.ID, p.SenderID, message.ID); err != nil {
		return nil, fmt.Errorf("failed to advance read cursor: %w", err)
	}

	d.deliver(ctx, chat, message)
	return message, nil
}

// UpdateLastRead advances the user's read cursor, never regressing it: a
// message older than the current cursor leaves the cursor untouched.
func (d *Dispatcher) UpdateLastRead(ctx context.Context, chatID, messageID string, userID int64) error {
	m, err := d.service.repo.GetMembership(ctx, chatID, userID)
	if err != nil {
		return err
	}
	message, err := d.service.repo.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if message.ChatID != chatID {
		return fmt.Errorf("message %s does not belong to chat %s: %w", messageID, chatID, infrastructure.ErrInvalidOperation)
	}

	if m.LastReadMessageID != nil {
		current, err := d.service.repo.GetMessage(ctx, *m.LastReadMessageID)
		if err == nil && message.CreatedAt.Before(current.CreatedAt) {
			return nil
		}
		if err != nil && !errors.Is(err, infrastructure.ErrNotFound) {
			return err
		}
	}
	return d.service.repo.UpdateLastRead(ctx, chatID, userID, messageID)
}

func (d *Dispatcher) resolveChat(ctx context.Context, p SendParams) (*Chat, error) {
	if p.ChatID != "" {
		return d.service.repo.GetChat(ctx, p.ChatID)
	}
	if p.PeerID == 0 {
		return nil, fmt.Errorf("no chat and no peer addressed: %w", infrastructure.ErrInvalidInput)
	}
	if p.PeerID == p.SenderID {
		return nil, fmt.Errorf("cannot message yourself: %w", infrastructure.ErrInvalidOperation)
	}

	chat, err := d.service.repo.DirectChatBetween(ctx, p.SenderID, p.PeerID)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, infrastructure.ErrNotFound) {
		return nil, err
	}

	// First contact: create the direct chat before persisting the message.
	chat, err = d.service.CreateChat(ctx, CreateChatParams{
		CreatorID:     p.SenderID,
		MemberIDs:     []int64{p.PeerID},
		Kind:          KindDirect,
		Accessibility: AccessPrivate,
	})
	if err != nil {
		return nil, err
	}
	// The peer sees a brand-new chat; the sender's own chat list changed as a
	// side effect of sending.
	d.deliverer.ToUser(p.PeerID, EventAddChat, chat)
	d.deliverer.ToUser(p.SenderID, EventUpdateChat, chat)
	return chat, nil
}

// ensureMember joins the sender into a group chat they are messaging without
// being a member of yet, announcing the join to the room.
func (d *Dispatcher) ensureMember(ctx context.Context, chat *Chat, senderID int64) error {
	_, err := d.service.repo.GetMembership(ctx, chat.ID, senderID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, infrastructure.ErrNotFound) {
		return err
	}
	if !chat.IsGroup() {
		return fmt.Errorf("user %d is not part of chat %s: %w", senderID, chat.ID, infrastructure.ErrForbidden)
	}

	member, err := d.service.AddMember(ctx, chat.ID, senderID)
	if err != nil {
		return err
	}
	d.deliverer.Broadcast(chat.ID, EventChatUserAdded, MemberEvent{ChatID: chat.ID, Member: member})
	d.deliverer.ToUser(senderID, EventAddChat, chat)
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, chat *Chat, message *Message) {
	payload := MessageEvent{ChatID: chat.ID, Message: message}

	if chat.IsGroup() {
		d.deliverer.Broadcast(chat.ID, EventMessage, payload)
		return
	}

	// Direct chat: echo to the sender's connections and reach the peer's, if any.
	members, err := d.service.repo.ListMemberships(ctx, chat.ID)
	if err != nil {
		d.logger.Error("failed to list members for delivery",
			zap.String("chat_id", chat.ID), zap.Error(err))
		return
	}
	for _, m := range members {
		d.deliverer.ToUser(m.UserID, EventMessage, payload)
	}
}

func (d *Dispatcher) chatLock(chatID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()

	lock, ok := d.locks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[chatID] = lock
	}
	return lock
}

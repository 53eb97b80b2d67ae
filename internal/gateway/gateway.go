// Package gateway is the websocket surface of the coordination layer. A
// single dispatch core routes named client events to the presence, chat,
// notification and matchmaking components; there is no per-feature handler
// hierarchy.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	passwordvalidator "github.com/wagslane/go-password-validator"
	"go.uber.org/zap"

	"transcendence/infrastructure"
	"transcendence/internal/auth"
	"transcendence/internal/chat"
	"transcendence/internal/matchmaking"
	"transcendence/internal/notification"
	"transcendence/internal/presence"
	"transcendence/internal/user"
)

type Gateway struct {
	logger        *zap.Logger
	registry      *presence.Registry
	emitter       *Emitter
	chats         *chat.Service
	dispatcher    *chat.Dispatcher
	notifications *notification.Service
	matches       *matchmaking.Service
	users         *user.Directory
	validator     *auth.Validator
	upgrader      websocket.Upgrader
	sendBuffer    int
}

func NewGateway(
	logger *zap.Logger,
	registry *presence.Registry,
	emitter *Emitter,
	chats *chat.Service,
	dispatcher *chat.Dispatcher,
	notifications *notification.Service,
	matches *matchmaking.Service,
	users *user.Directory,
	validator *auth.Validator,
	frontendURL string,
	sendBuffer int,
) *Gateway {
	g := &Gateway{
		logger:        logger,
		registry:      registry,
		emitter:       emitter,
		chats:         chats,
		dispatcher:    dispatcher,
		notifications: notifications,
		matches:       matches,
		users:         users,
		validator:     validator,
		sendBuffer:    sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if frontendURL == "" {
					return true
				}
				return r.Header.Get("Origin") == frontendURL
			},
		},
	}

	// Presence transitions drive notification flushing and invite expiry.
	registry.OnOnline(g.flushPending)
	registry.OnOffline(matches.DropUser)

	return g
}

// HandleWS authenticates the handshake and upgrades the connection. A bad
// token is rejected before the upgrade; no event reaches an unauthenticated
// socket.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	identity, err := g.validator.Validate(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := newClient(identity, conn, g, g.sendBuffer)
	g.registry.Register(identity.ID, c)
	g.logger.Info("connected",
		zap.Int64("user_id", identity.ID), zap.String("username", identity.Username))

	go c.write()
	go c.read()
}

// disconnect is the single cleanup path for a connection: room
// subscriptions, registry entry and, through the registry offline hook,
// matchmaking invites. Idempotent.
func (g *Gateway) disconnect(c *client) {
	c.Close()
	g.emitter.rooms.drop(c)
	g.registry.Unregister(c)
	g.logger.Info("disconnected", zap.Int64("user_id", c.identity.ID))
}

// flushPending re-delivers stored notifications when a user comes online.
func (g *Gateway) flushPending(userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pending, err := g.notifications.FlushOnConnect(ctx, userID)
	if err != nil {
		g.logger.Error("cannot flush notifications",
			zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	for _, n := range pending {
		g.emitter.ToUser(userID, notification.EventNotification, n)
	}
}

// handleEvent routes one decoded client event. Handler failures become a
// targeted error event to the initiating connection, never a partial
// broadcast.
func (g *Gateway) handleEvent(c *client, e ClientEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	switch e.Event {
	case evJoinRoom:
		err = decode(e.Data, func(p roomPayload) error {
			g.emitter.rooms.subscribe(c, p.ChatID)
			return nil
		})
	case evLeaveRoom:
		err = decode(e.Data, func(p roomPayload) error {
			g.emitter.rooms.unsubscribe(c, p.ChatID)
			return nil
		})
	case evCreateGroupChat:
		err = decode(e.Data, func(p createGroupChatPayload) error {
			return g.handleCreateChat(ctx, c, p)
		})
	case evSendMessage:
		err = decode(e.Data, func(p sendMessagePayload) error {
			_, sendErr := g.dispatcher.Send(ctx, chat.SendParams{
				ChatID:   p.ChatID,
				SenderID: c.identity.ID,
				Content:  p.Content,
				PeerID:   p.FriendID,
			})
			return sendErr
		})
	case evLeaveGroup:
		err = decode(e.Data, func(p roomPayload) error {
			return g.handleLeaveGroup(ctx, c, p.ChatID)
		})
	case evChangeChatName:
		err = decode(e.Data, func(p renamePayload) error {
			return g.handleRename(ctx, c, p)
		})
	case evBanUser:
		err = decode(e.Data, func(p moderationPayload) error {
			return g.handleBan(ctx, c, p)
		})
	case evUnbanUser:
		err = decode(e.Data, func(p moderationPayload) error {
			return g.handleUnban(ctx, c, p)
		})
	case evMuteUser:
		err = decode(e.Data, func(p moderationPayload) error {
			return g.handleMute(ctx, c, p)
		})
	case evUnmuteUser:
		err = decode(e.Data, func(p moderationPayload) error {
			return g.handleUnmute(ctx, c, p)
		})
	case evChangeRole:
		err = decode(e.Data, func(p changeRolePayload) error {
			return g.handleChangeRole(ctx, c, p)
		})
	case evSetAccess:
		err = decode(e.Data, func(p setAccessPayload) error {
			if reqErr := g.requireModerator(ctx, p.ChatID, c.identity.ID); reqErr != nil {
				return reqErr
			}
			if p.IsProtected {
				if pwErr := validateChatPassword(p.Password); pwErr != nil {
					return pwErr
				}
			}
			return g.chats.SetAccess(ctx, p.ChatID, p.IsProtected, p.Password)
		})
	case evSetPassword:
		err = decode(e.Data, func(p setPasswordPayload) error {
			if reqErr := g.requireModerator(ctx, p.ChatID, c.identity.ID); reqErr != nil {
				return reqErr
			}
			if pwErr := validateChatPassword(p.Password); pwErr != nil {
				return pwErr
			}
			return g.chats.SetPassword(ctx, p.ChatID, p.Password)
		})
	case evResponseFriend:
		err = decode(e.Data, func(p responsePayload) error {
			return g.handleFriendResponse(ctx, c, p)
		})
	case evResponseGame:
		err = decode(e.Data, func(p responsePayload) error {
			return g.handleGameResponse(ctx, c, p)
		})
	default:
		g.logger.Warn("unknown event",
			zap.String("event", e.Event), zap.Int64("user_id", c.identity.ID))
		return
	}

	if err != nil {
		g.replyError(c, e.Event, err)
	}
}

func (g *Gateway) handleCreateChat(ctx context.Context, c *client, p createGroupChatPayload) error {
	memberIDs := make([]int64, 0, len(p.MemberUsernames))
	for _, username := range p.MemberUsernames {
		u, err := g.users.ByUsername(ctx, username)
		if err != nil {
			return err
		}
		memberIDs = append(memberIDs, u.ID)
	}

	kind := chat.KindDirect
	if p.IsGroupChat {
		kind = chat.KindGroup
	}

	if chat.Accessibility(p.Accessibility) == chat.AccessProtected {
		if err := validateChatPassword(p.Password); err != nil {
			return err
		}
	}

	created, err := g.chats.CreateChat(ctx, chat.CreateChatParams{
		Name:          p.GroupName,
		CreatorID:     c.identity.ID,
		MemberIDs:     memberIDs,
		Kind:          kind,
		Accessibility: chat.Accessibility(p.Accessibility),
		Password:      p.Password,
	})
	if err != nil {
		return err
	}

	// Pull every member's live sockets into the new room, then announce it.
	g.joinLiveSockets(created.ID, c.identity.ID)
	for _, id := range memberIDs {
		g.joinLiveSockets(created.ID, id)
	}
	g.emitter.Broadcast(created.ID, chat.EventAddChat, created)
	return nil
}

func (g *Gateway) joinLiveSockets(chatID string, userID int64) {
	for _, conn := range g.registry.Lookup(userID) {
		if member, ok := conn.(*client); ok {
			g.emitter.rooms.subscribe(member, chatID)
		}
	}
}

func (g *Gateway) handleLeaveGroup(ctx context.Context, c *client, chatID string) error {
	if err := g.chats.RemoveMember(ctx, chatID, c.identity.ID); err != nil {
		return err
	}
	c.Send(evLeaveChat, roomPayload{ChatID: chatID})
	g.emitter.rooms.unsubscribe(c, chatID)
	return nil
}

func (g *Gateway) handleRename(ctx context.Context, c *client, p renamePayload) error {
	if err := g.requireModerator(ctx, p.ChatID, c.identity.ID); err != nil {
		return err
	}
	renamed, err := g.chats.Rename(ctx, p.ChatID, p.NewName)
	if err != nil {
		return err
	}
	if renamed.IsGroup() {
		g.emitter.Broadcast(p.ChatID, evUpdateChatName, renamePayload{ChatID: p.ChatID, NewName: p.NewName})
	}
	return nil
}

func (g *Gateway) handleBan(ctx context.Context, c *client, p moderationPayload) error {
	if err := g.requireModerator(ctx, p.ChatID, c.identity.ID); err != nil {
		return err
	}
	expiresAt, err := g.chats.Ban(ctx, p.ChatID, p.UserID, durationOf(p.DurationSeconds))
	if err != nil {
		return err
	}
	g.emitter.ToUser(p.UserID, evUserBan, expiryPayload{ChatID: p.ChatID, ExpiresAt: expiresAt.Format(time.RFC3339)})
	return nil
}

func (g *Gateway) handleUnban(ctx context.Context, c *client, p moderationPayload) error {
	if err := g.requireModerator(ctx, p.ChatID, c.identity.ID); err != nil {
		return err
	}
	if err := g.chats.Unban(ctx, p.ChatID, p.UserID); err != nil {
		return err
	}
	g.emitter.ToUser(p.UserID, evUserUnban, roomPayload{ChatID: p.ChatID})
	return nil
}

func (g *Gateway) handleMute(ctx context.Context, c *client, p moderationPayload) error {
	if err := g.requireModerator(ctx, p.ChatID, c.identity.ID); err != nil {
		return err
	}
	expiresAt, err := g.chats.Mute(ctx, p.ChatID, p.UserID, durationOf(p.DurationSeconds))
	if err != nil {
		return err
	}
	g.emitter.ToUser(p.UserID, evUserMute, expiryPayload{ChatID: p.ChatID, ExpiresAt: expiresAt.Format(time.RFC3339)})
	return nil
}

func (g *Gateway) handleUnmute(ctx context.Context, c *client, p moderationPayload) error {
	if err := g.requireModerator(ctx, p.ChatID, c.identity.ID); err != nil {
		return err
	}
	if err := g.chats.Unmute(ctx, p.ChatID, p.UserID); err != nil {
		return err
	}
	g.emitter.ToUser(p.UserID, evUserUnmute, roomPayload{ChatID: p.ChatID})
	return nil
}

func (g *Gateway) handleChangeRole(ctx context.Context, c *client, p changeRolePayload) error {
	if err := g.requireModerator(ctx, p.ChatID, c.identity.ID); err != nil {
		return err
	}
	if err := g.chats.SetRole(ctx, p.ChatID, p.UserID, chat.Role(p.NewRoleID)); err != nil {
		return err
	}
	g.emitter.Broadcast(p.ChatID, evUpdateRole, rolePayload(p))
	return nil
}

func (g *Gateway) handleFriendResponse(ctx context.Context, c *client, p responsePayload) error {
	friendID := p.FriendID
	if friendID == 0 && p.Friend != "" {
		friend, err := g.users.ByUsername(ctx, p.Friend)
		if err != nil {
			return err
		}
		friendID = friend.ID
	}

	senders, err := g.notifications.Resolve(ctx, c.identity.ID, friendID, notification.TypeFriendRequest)
	if err != nil {
		return err
	}
	if !p.Response {
		return nil
	}

	if err := g.users.AddFriend(ctx, c.identity.ID, friendID); err != nil {
		return err
	}
	for _, sender := range senders {
		g.emitter.ToUser(sender, EventFriendAccepted, FriendAcceptedEvent{
			UserID:   c.identity.ID,
			Username: c.identity.Username,
		})
	}
	return nil
}

// handleGameResponse answers a game invite. The response also clears any
// stored game-invite notification so it stops re-flushing on reconnect; an
// invite that only survived as that notification is fully settled by the
// clear alone.
func (g *Gateway) handleGameResponse(ctx context.Context, c *client, p responsePayload) error {
	senders, err := g.notifications.Resolve(ctx, c.identity.ID, p.FriendID, notification.TypeGameInvite)
	if err != nil {
		return err
	}

	_, err = g.matches.Respond(ctx, c.identity.ID, p.FriendID, p.Response)
	if errors.Is(err, infrastructure.ErrNotFound) && len(senders) > 0 {
		return nil
	}
	return err
}

func (g *Gateway) requireModerator(ctx context.Context, chatID string, userID int64) error {
	allowed, err := g.chats.IsActionAllowed(ctx, chatID, userID, chat.ActionModerate)
	if err != nil {
		return err
	}
	if !allowed {
		return infrastructure.ErrForbidden
	}
	return nil
}

func (g *Gateway) replyError(c *client, event string, err error) {
	message := "internal error"
	switch {
	case errors.Is(err, infrastructure.ErrNotFound):
		message = "not found"
	case errors.Is(err, infrastructure.ErrForbidden):
		message = "forbidden"
	case errors.Is(err, infrastructure.ErrConflict):
		message = "conflict"
	case errors.Is(err, infrastructure.ErrInvalidOperation):
		message = "invalid operation"
	case errors.Is(err, infrastructure.ErrInvalidInput):
		message = "invalid input"
	default:
		g.logger.Error("event handler failed",
			zap.String("event", event), zap.Int64("user_id", c.identity.ID), zap.Error(err))
	}
	c.Send(evError, errorPayload{Event: event, Message: message})
}

// Chat passwords guard room entry, not accounts, so the bar is lower than
// the registration one.
const minChatPasswordEntropy = 30

func validateChatPassword(password string) error {
	if err := passwordvalidator.Validate(password, minChatPasswordEntropy); err != nil {
		return fmt.Errorf("%s: %w", err.Error(), infrastructure.ErrInvalidInput)
	}
	return nil
}

func durationOf(seconds *int64) *time.Duration {
	if seconds == nil {
		return nil
	}
	d := time.Duration(*seconds) * time.Second
	return &d
}

func decode[T any](raw json.RawMessage, handle func(T) error) error {
	var payload T
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return infrastructure.ErrInvalidInput
		}
	}
	return handle(payload)
}

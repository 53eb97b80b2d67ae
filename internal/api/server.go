package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"transcendence/internal/auth"
	"transcendence/internal/chat"
	"transcendence/internal/gateway"
	"transcendence/internal/notification"
	"transcendence/internal/presence"
	"transcendence/internal/user"
)

// Directory is the slice of the user directory the REST handlers need.
type Directory interface {
	ByID(ctx context.Context, id int64) (*user.User, error)
	ByUsername(ctx context.Context, username string) (*user.User, error)
	Exists(ctx context.Context, id int64) (bool, error)
	AddFriend(ctx context.Context, a, b int64) error
	IsFriend(ctx context.Context, a, b int64) (bool, error)
}

// Notifications is the coordinator surface behind the notification routes.
type Notifications interface {
	Notify(ctx context.Context, recipientID, senderID int64, typ notification.Type) (*notification.Notification, error)
	Resolve(ctx context.Context, recipientID, senderID int64, typ notification.Type) ([]int64, error)
	PendingSenders(ctx context.Context, recipientID int64, typ notification.Type) ([]int64, error)
}

// Matchmaker issues game invites on behalf of the game-request route.
type Matchmaker interface {
	Invite(ctx context.Context, inviterID, inviteeID int64) error
}

// ChatLister backs the chat listing route.
type ChatLister interface {
	ChatsForUser(ctx context.Context, userID int64) ([]*chat.Chat, error)
}

// Presence answers status lookups.
type Presence interface {
	Status(userID int64) presence.Status
}

type Server struct {
	router        *mux.Router
	logger        *zap.Logger
	gateway       *gateway.Gateway
	authService   *auth.Service
	validator     *auth.Validator
	notifications Notifications
	matches       Matchmaker
	chats         ChatLister
	registry      Presence
	users         Directory
	pusher        notification.Pusher
}

func NewServer(
	logger *zap.Logger,
	gw *gateway.Gateway,
	authService *auth.Service,
	validator *auth.Validator,
	notifications Notifications,
	matches Matchmaker,
	chats ChatLister,
	registry Presence,
	users Directory,
	pusher notification.Pusher,
	rateLimitRPS int,
) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		logger:        logger,
		gateway:       gw,
		authService:   authService,
		validator:     validator,
		notifications: notifications,
		matches:       matches,
		chats:         chats,
		registry:      registry,
		users:         users,
		pusher:        pusher,
	}
	s.setupRoutes(rateLimitRPS)
	return s
}

func (s *Server) setupRoutes(rateLimitRPS int) {
	s.router.Use(RequestLogger(s.logger))
	s.router.Use(RateLimitMiddleware(rateLimitRPS))

	s.router.HandleFunc("/health", s.healthCheck).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.gateway.HandleWS)
	s.router.HandleFunc("/auth/register", s.register).Methods(http.MethodPost)
	s.router.HandleFunc("/auth/login", s.login).Methods(http.MethodPost)

	authed := s.router.NewRoute().Subrouter()
	authed.Use(AuthMiddleware(s.validator))
	authed.HandleFunc("/notifications", s.listNotifications).Methods(http.MethodGet)
	authed.HandleFunc("/notifications/friend-request", s.friendRequest).Methods(http.MethodPost)
	authed.HandleFunc("/notifications/friend-response", s.friendResponse).Methods(http.MethodPost)
	authed.HandleFunc("/notifications/game-request", s.gameRequest).Methods(http.MethodPost)
	authed.HandleFunc("/users/{id:[0-9]+}/status", s.userStatus).Methods(http.MethodGet)
	authed.HandleFunc("/chats", s.listChats).Methods(http.MethodGet)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

package di

import (
	"database/sql"

	"go.uber.org/zap"

	"transcendence/config"
	"transcendence/internal/api"
	"transcendence/internal/auth"
	"transcendence/internal/chat"
	"transcendence/internal/gateway"
	"transcendence/internal/matchmaking"
	"transcendence/internal/notification"
	"transcendence/internal/presence"
	"transcendence/internal/user"
	"transcendence/pkg/jwt"
)

func provideJWT(cfg *config.Config) *jwt.JWT {
	return jwt.NewJWT(cfg.JWTSecret, cfg.TokenLifetime)
}

func provideChatRepository(db *sql.DB) chat.Repository {
	return chat.NewPostgresRepository(db)
}

func provideNotificationRepository(db *sql.DB) notification.Repository {
	return notification.NewPostgresRepository(db)
}

func provideGateway(
	logger *zap.Logger,
	registry *presence.Registry,
	emitter *gateway.Emitter,
	chats *chat.Service,
	dispatcher *chat.Dispatcher,
	notifications *notification.Service,
	matches *matchmaking.Service,
	users *user.Directory,
	validator *auth.Validator,
	cfg *config.Config,
) *gateway.Gateway {
	return gateway.NewGateway(logger, registry, emitter, chats, dispatcher,
		notifications, matches, users, validator, cfg.FrontendURL, cfg.SendBufferSize)
}

func provideServer(
	logger *zap.Logger,
	gw *gateway.Gateway,
	authService *auth.Service,
	validator *auth.Validator,
	notifications *notification.Service,
	matches *matchmaking.Service,
	chats *chat.Service,
	registry *presence.Registry,
	users *user.Directory,
	emitter *gateway.Emitter,
	cfg *config.Config,
) *api.Server {
	return api.NewServer(logger, gw, authService, validator, notifications,
		matches, chats, registry, users, emitter, cfg.RateLimitRPS)
}

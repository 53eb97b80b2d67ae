//go:build wireinject
// +build wireinject

package di

import (
	"database/sql"

	"github.com/google/wire"
	"go.uber.org/zap"

	"transcendence/config"
	"transcendence/internal/api"
	"transcendence/internal/auth"
	"transcendence/internal/chat"
	"transcendence/internal/database"
	"transcendence/internal/gateway"
	"transcendence/internal/matchmaking"
	"transcendence/internal/notification"
	"transcendence/internal/presence"
	"transcendence/internal/user"
)

// InitializeServer assembles the whole application graph.
func InitializeServer(cfg *config.Config, db *sql.DB, gdb *database.Database, logger *zap.Logger) *api.Server {
	wire.Build(
		provideJWT,
		provideChatRepository,
		provideNotificationRepository,
		provideGateway,
		provideServer,
		user.NewDirectory,
		auth.NewService,
		auth.NewValidator,
		presence.NewRegistry,
		gateway.NewEmitter,
		chat.NewService,
		chat.NewDispatcher,
		notification.NewService,
		matchmaking.NewService,
		wire.Bind(new(chat.Deliverer), new(*gateway.Emitter)),
		wire.Bind(new(notification.Presence), new(*presence.Registry)),
		wire.Bind(new(notification.Pusher), new(*gateway.Emitter)),
		wire.Bind(new(notification.Directory), new(*user.Directory)),
		wire.Bind(new(matchmaking.Presence), new(*presence.Registry)),
		wire.Bind(new(matchmaking.Pusher), new(*gateway.Emitter)),
		wire.Bind(new(matchmaking.Notifier), new(*notification.Service)),
	)
	return &api.Server{}
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"transcendence/config"
	"transcendence/internal/database"
	"transcendence/internal/di"
	"transcendence/internal/user"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}
	if err := database.ApplySchema(context.Background(), db); err != nil {
		logger.Fatal("failed to apply schema", zap.Error(err))
	}

	gdb, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect gorm", zap.Error(err))
	}
	if err := gdb.Migrate(&user.User{}, &user.Friendship{}); err != nil {
		logger.Fatal("failed to migrate", zap.Error(err))
	}

	server := di.InitializeServer(cfg, db, gdb, logger)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Handler(),
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

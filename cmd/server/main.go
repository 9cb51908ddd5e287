package main

// @title           Chat Relay API
// @version         1.0
// @description     Real-time room-based chat server
// @host            localhost:3001
// @BasePath        /api/v1
// @schemes         http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-relay/internal/api/routes"
	"chat-relay/internal/chat"
	"chat-relay/internal/config"
	"chat-relay/internal/database"
	"chat-relay/internal/kafka"
	"chat-relay/internal/repository"
	"chat-relay/internal/service"
	"chat-relay/internal/websocket"

	_ "chat-relay/docs"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting chat relay")

	// User store
	db, err := database.NewMySQLConnection(&cfg.Database)
	if err != nil {
		slog.Error("failed to connect to mysql", "error", err)
		os.Exit(1)
	}
	userService := service.NewUserService(
		repository.NewUserRepository(db),
		cfg.JWT.Secret,
		cfg.JWT.ExpirationTime,
	)

	// Redis backs rate limiting and the online-users mirror; the server
	// runs without it.
	var redisService *service.RedisService
	if redisClient, err := database.NewRedisConnection(&cfg.Redis); err != nil {
		slog.Warn("redis unavailable, rate limiting disabled", "error", err)
	} else {
		defer redisClient.Close()
		redisService = service.NewRedisService(redisClient)
	}

	// Protocol engine
	logger := slog.Default()
	registry := chat.NewRegistry(logger)
	rooms := chat.NewRoomDirectory(cfg.Chat.HistoryCapacity, cfg.Chat.RoomGracePeriod, logger)
	presence := chat.NewPresenceTracker()
	router := chat.NewMessageRouter(registry, rooms, logger)
	gateway := chat.NewGateway(registry, rooms, presence, router, logger)
	if redisService != nil {
		gateway.SetOnlineStore(redisService)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		audit, err := kafka.NewAuditProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			slog.Warn("kafka unavailable, message audit disabled", "error", err)
		} else {
			defer audit.Close()
			gateway.SetAudit(audit)
		}
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go rooms.Run(sweepCtx)

	hub := websocket.NewHub()
	go hub.Run()

	apiRouter := routes.NewRouter(hub, gateway, rooms, userService, redisService)
	apiRouter.SetupRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      apiRouter.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.Stop()
	stopSweep()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server stopped")
}

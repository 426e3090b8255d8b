package main

import (
	"context"
	"log"
	"time"

	"linkup-chat/config"
	"linkup-chat/internal/delivery"
	"linkup-chat/internal/handler"
	"linkup-chat/internal/presence"
	internalredis "linkup-chat/internal/redis"
	"linkup-chat/internal/repository"
	"linkup-chat/internal/server"
	"linkup-chat/internal/services"
	"linkup-chat/internal/websocket"
	"linkup-chat/pkg/database"
	"linkup-chat/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	redisClient := internalredis.NewClient(internalredis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	limiter := internalredis.NewRateLimiter(redisClient, internalredis.RateLimitConfig{
		MessageLimit:  cfg.MsgRateLimit,
		MessageWindow: time.Duration(cfg.MsgRateWindowSec) * time.Second,
	})

	registry := presence.NewRegistry()
	engine := delivery.NewEngine(registry, l)

	convRepo := repository.NewConversationRepository(db)
	userRepo := repository.NewUserRepository(db)

	authService := services.NewAuthService(cfg.JWTSecret)
	convService := services.NewConversationService(db, convRepo, userRepo, engine, l)
	groupService := services.NewGroupService(db, convRepo, userRepo, engine, l)

	hub := websocket.NewHub()
	go hub.Run(context.Background())

	srv := server.New(cfg, l, db)
	srv.SetupRoutes(&server.Handlers{
		Conversation: handler.NewConversationHandler(convService),
		Group:        handler.NewGroupHandler(groupService),
		Socket:       websocket.NewHandler(authService, hub, registry, l),
	}, authService, limiter)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}

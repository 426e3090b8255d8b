package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linkup-chat/config"
	"linkup-chat/internal/handler"
	"linkup-chat/internal/middleware"
	"linkup-chat/internal/redis"
	"linkup-chat/internal/services"
	"linkup-chat/internal/transport/httpdto"
	"linkup-chat/internal/websocket"
	"linkup-chat/pkg/database"
	"linkup-chat/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
	db         *gorm.DB
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Conversation *handler.ConversationHandler
	Group        *handler.GroupHandler
	Socket       *websocket.Handler
}

func New(cfg *config.Config, l *logger.Logger, db *gorm.DB) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
		db:     db,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers, authService *services.AuthService, limiter *redis.RateLimiter) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(cors.Default())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(s.db); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	s.engine.GET("/ws", handlers.Socket.Connect)

	api := s.engine.Group("/api")
	api.Use(middleware.AuthMiddleware(authService))
	{
		api.GET("/conversations", handlers.Conversation.List)
		api.GET("/conversations/messages/:receiverId", handlers.Conversation.GetMessages)
		api.POST("/conversations/send/:receiverId",
			middleware.MessageRateLimitMiddleware(limiter), handlers.Conversation.SendMessage)
		api.DELETE("/conversations/messages/:messageId", handlers.Conversation.DeleteMessage)

		api.POST("/group", handlers.Group.Create)
		api.GET("/groups", handlers.Group.List)
		api.GET("/group/:groupId/messages", handlers.Group.GetMessages)
		api.GET("/groupdetails/:groupId", handlers.Group.GetDetails)
		api.POST("/group/:groupId/message",
			middleware.MessageRateLimitMiddleware(limiter), handlers.Group.SendMessage)
		api.POST("/group/:groupId/participants", handlers.Group.AddParticipants)
		api.DELETE("/group/:groupId/participants/:participantId", handlers.Group.RemoveParticipant)
		api.PUT("/group/:groupId", handlers.Group.Rename)
	}
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}

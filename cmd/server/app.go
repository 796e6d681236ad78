// File: cmd/server/app.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/iyunix/go-livechat/internal/config"
	"github.com/iyunix/go-livechat/internal/feed"
	"github.com/iyunix/go-livechat/internal/handlers"
	"github.com/iyunix/go-livechat/internal/identity"
	"github.com/iyunix/go-livechat/internal/middleware"
	"github.com/iyunix/go-livechat/internal/ratelimit"
	"github.com/iyunix/go-livechat/internal/realtime"
	"github.com/iyunix/go-livechat/internal/repository/conversation"
	"github.com/iyunix/go-livechat/internal/repository/message"
	"github.com/iyunix/go-livechat/internal/repository/operator"
	"github.com/iyunix/go-livechat/internal/services"
	chatservice "github.com/iyunix/go-livechat/internal/services/chat"
	"github.com/iyunix/go-livechat/internal/services/operator_services"
)

// Application aggregates all services and handlers
type Application struct {
	Config       *config.Config
	Logger       services.Logger
	Hub          *feed.Hub
	Relay        *feed.RedisRelay
	ChatService  *services.ChatService
	AuthService  *operator_services.AuthService
	LoginLimiter *ratelimit.MemoryRateLimiter
	Handler      http.Handler

	redis *redis.Client
}

// NewApplication wires repositories, the change feed, services and handlers.
func NewApplication(cfg *config.Config, logger services.Logger, db *gorm.DB) (*Application, error) {
	// --- Repositories ---
	convRepo := conversation.NewConversationRepository(db)
	messageRepo := message.NewMessageRepository(db)
	operatorRepo := operator.NewGormOperatorRepository(db)

	// --- Change feed ---
	hub := feed.NewHub(cfg.SubscriptionBuffer, logger)
	var notifier chatservice.Notifier = hub

	app := &Application{Config: cfg, Logger: logger, Hub: hub}

	if cfg.RedisURL != "" {
		client, err := feed.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		app.redis = client
		app.Relay = feed.NewRedisRelay(client, cfg.RedisChannel, hub, logger)
		notifier = app.Relay
	}

	// --- Services ---
	chatService, err := services.NewChatService(cfg.Chat(), convRepo, messageRepo, hub, notifier, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize chat service: %w", err)
	}
	authService := operator_services.NewAuthService(operatorRepo, cfg.JWTSecretKey, cfg.JWTTTL, logger)
	loginLimiter := ratelimit.NewMemoryRateLimiter(ratelimit.DefaultLoginConfig())
	sendLimiter := ratelimit.NewSendLimiter(cfg.VisitorSendRate, cfg.VisitorSendBurst)
	origins := middleware.NewOriginPolicy(cfg.AllowedOrigins)
	upgrader := realtime.NewUpgrader(origins.CheckOrigin)
	visitorCookies := identity.CookieOptions{Secure: cfg.CookieSecure, CrossSite: origins.CrossSite()}

	// --- Handlers ---
	app.ChatService = chatService
	app.AuthService = authService
	app.LoginLimiter = loginLimiter
	app.Handler = handlers.NewRouter(handlers.RouterDeps{
		Widget:         handlers.NewWidgetHandler(chatService, sendLimiter, visitorCookies, upgrader, logger),
		Console:        handlers.NewConsoleHandler(chatService, upgrader, logger),
		Auth:           handlers.NewAuthHandler(authService, cfg.JWTTTL, cfg.CookieSecure, logger),
		Log:            handlers.NewLogHandler(logger),
		TokenValidator: authService,
		LoginLimiter:   loginLimiter,
		Origins:        origins,
		SecureCookie:   cfg.CookieSecure,
		Logger:         logger,
	})
	return app, nil
}

// StartRelay subscribes the relay and waits up to wait for the subscription
// to be confirmed, so no insert published after startup is missed. The relay
// keeps running until ctx is cancelled.
func (a *Application) StartRelay(ctx context.Context, wait time.Duration) error {
	if a.Relay == nil {
		return nil
	}
	ready := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Relay.Run(ctx, ready)
	}()

	select {
	case <-ready:
		return nil
	case err := <-errCh:
		return fmt.Errorf("start redis relay: %w", err)
	case <-time.After(wait):
		return fmt.Errorf("start redis relay: no subscription after %s", wait)
	}
}

// Close releases background resources.
func (a *Application) Close() {
	a.LoginLimiter.Close()
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

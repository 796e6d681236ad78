// File: cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/iyunix/go-livechat/internal/config"
	"github.com/iyunix/go-livechat/internal/database"
	"github.com/iyunix/go-livechat/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	logger := services.NewLogger("go_livechat")

	gormLevel := gormlogger.Warn
	if strings.EqualFold(cfg.LogLevel, "DEBUG") {
		gormLevel = gormlogger.Info
	}
	db, err := database.Open(database.Options{
		Driver:   cfg.DBDriver,
		DSN:      cfg.DatabaseURL,
		LogLevel: gormLevel,
	})
	if err != nil {
		log.Fatalf("DB Error: %v", err)
	}

	app, err := NewApplication(cfg, logger, db)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize application: %v", err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.StartRelay(ctx, 10*time.Second); err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("server starting",
		"port", cfg.ServerPort,
		"env", cfg.Environment,
		"db_driver", cfg.DBDriver,
		"redis_relay", app.Relay != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server startup failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
		return
	}
	logger.Info("server stopped gracefully")
}

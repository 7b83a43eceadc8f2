// @title           Task Board API
// @version         1.0
// @description     Shared task board with a realtime push channel.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskboard/internal/app"
	"taskboard/internal/config"

	"github.com/gin-gonic/gin"

	_ "taskboard/docs"
)

func main() {
	if err := run(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := app.NewLogger(cfg.App, os.Stderr)
	slog.SetDefault(log)
	if cfg.App.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.Info("config loaded", "store", cfg.Store.Driver, "redis", cfg.Redis.Enabled())

	application, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.HTTP.Port,
		Handler:      application.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout.Duration(),
		WriteTimeout: cfg.HTTP.WriteTimeout.Duration(),
		IdleTimeout:  cfg.HTTP.IdleTimeout.Duration(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("signal caught", "sig", sig)
	case err := <-errCh:
		_ = application.Close(context.Background())
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown; the hub
	// closes them in application.Close.
	if err := server.Shutdown(ctx); err != nil {
		log.Warn("HTTP shutdown", "err", err)
	}
	return application.Close(ctx)
}

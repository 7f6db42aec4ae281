package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/example/vexokart/internal/api"
	"github.com/example/vexokart/internal/app"
	"github.com/example/vexokart/internal/auth"
	"github.com/example/vexokart/internal/config"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load(config.ModeAPI)
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg, os.Stdout)
	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	embedded := cfg.EmbeddedNotifier && cfg.Bus != config.BusNone
	a, err := app.New(ctx, cfg, logger, app.Options{Consume: embedded})
	if err != nil {
		logger.Error("failed to start", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	logger.Info("VexoKart order API",
		slog.String("backend", cfg.Backend),
		slog.String("bus", cfg.Bus),
		slog.Bool("embedded_notifier", embedded))

	// The notifier gets its own context so it can drain after the HTTP
	// server stops accepting requests.
	notifyCtx, stopNotifier := context.WithCancel(context.Background())
	defer stopNotifier()

	var wg sync.WaitGroup
	if embedded {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.RunNotifier(notifyCtx); err != nil {
				logger.Error("notifier stopped", slog.String("error", err.Error()))
			}
		}()
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTExpiry)
	handlers := api.NewHandlers(a.Orders, a.Console, a.Scans, a.Settings, a.Stores.Logs)
	router := api.NewRouter(api.RouterConfig{
		Handlers:   handlers,
		JWTService: jwtService,
		Gatherer:   a.Registry,
		Logger:     logger,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.String("error", err.Error()))
	}

	// Let queued in-process events reach the dispatcher before stopping it.
	if embedded {
		drained := make(chan struct{})
		go func() {
			a.Bus.Drain()
			close(drained)
		}()
		select {
		case <-drained:
		case <-shutdownCtx.Done():
			logger.Warn("gave up waiting for pending notifications")
		}
	}
	stopNotifier()
	wg.Wait()
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/vexokart/internal/app"
	"github.com/example/vexokart/internal/config"
)

func main() {
	cfg, err := config.Load(config.ModeNotifier)
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg, os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger, app.Options{Consume: true})
	if err != nil {
		logger.Error("failed to start", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	logger.Info("VexoKart notification service",
		slog.String("bus", cfg.Bus),
		slog.String("backend", cfg.Backend),
		slog.Bool("sandbox", a.Settings.Get(ctx).Sandbox))

	if err := a.RunNotifier(ctx); err != nil {
		logger.Error("consumer error", slog.String("error", err.Error()))
	}
	logger.Info("shutting down")
}

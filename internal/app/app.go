package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/vexokart/internal/config"
	"github.com/example/vexokart/internal/console"
	"github.com/example/vexokart/internal/domain/order"
	"github.com/example/vexokart/internal/label"
	"github.com/example/vexokart/internal/metrics"
	"github.com/example/vexokart/internal/notification"
	"github.com/example/vexokart/internal/scan"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is one process's object graph.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Stores   *Stores
	Bus      *Bus
	Orders   *order.Service
	Console  *console.Console
	Scans    *scan.Gateway
	Settings *notification.SettingsStore

	// Notifications is nil unless the process consumes events.
	Notifications *notification.Handler
}

type Options struct {
	// Consume subscribes to the bus and builds the notification handler.
	Consume bool
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	stores, err := OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open stores: %w", err)
	}

	bus, err := OpenBus(cfg, logger, m, opts.Consume)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("open bus: %w", err)
	}

	initial, err := NotificationSettings(cfg.Notification)
	if err != nil {
		bus.Close()
		stores.Close()
		return nil, err
	}

	settings := notification.NewSettingsStore(initial)
	if stores.Settings != nil {
		settings, err = notification.NewSharedSettingsStore(ctx, initial, stores.Settings, logger)
		if err != nil {
			bus.Close()
			stores.Close()
			return nil, err
		}
	}

	orders := order.NewService(stores.Orders, bus.Publisher,
		order.WithLogger(logger),
		order.WithMetrics(m),
		order.WithTokenTTL(cfg.TokenTTL),
	)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  m,
		Stores:   stores,
		Bus:      bus,
		Orders:   orders,
		Console:  console.New(orders, stores.Catalog, label.Builder{BaseURL: cfg.PublicBaseURL}),
		Scans:    scan.NewGateway(orders, logger, m),
		Settings: settings,
	}

	if opts.Consume {
		dispatcher := NewDispatcher(cfg.Notification, a.Settings, stores.Logs, logger, m)
		a.Notifications = notification.NewHandler(dispatcher, stores.Directory, logger)
	}
	return a, nil
}

// RunNotifier feeds bus events to the notification handler until ctx is done.
func (a *App) RunNotifier(ctx context.Context) error {
	if a.Notifications == nil {
		return ErrNoConsumer
	}
	err := a.Bus.Consume(ctx, a.Notifications.HandleEvent)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) Close() error {
	return errors.Join(a.Bus.Close(), a.Stores.Close())
}

package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/example/vexokart/internal/catalog"
	"github.com/example/vexokart/internal/config"
	"github.com/example/vexokart/internal/directory"
	"github.com/example/vexokart/internal/domain/order"
	"github.com/example/vexokart/internal/infrastructure/store"
	"github.com/example/vexokart/internal/notification"
)

// Stores holds the persistence side of one process. The user directory,
// vendor catalog, notification settings and delivery log live in postgres
// when NOTIFICATION_STORE=postgres and in memory otherwise, whatever the
// order backend.
type Stores struct {
	Orders    order.Repository
	Logs      notification.LogStore
	Directory directory.Directory
	Catalog   catalog.Catalog
	// Settings is nil for the memory notification store.
	Settings notification.SettingsRepository

	db *sql.DB

	closers []func() error
}

func OpenStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error) {
	s := &Stores{
		Logs:      notification.NewRingLogStore(cfg.Notification.LogCapacity),
		Directory: directory.NewMemoryDirectory(),
		Catalog:   catalog.NewMemoryCatalog(),
	}

	switch cfg.Backend {
	case config.BackendMemory:
		s.Orders = store.NewMemoryOrderStore()

	case config.BackendPostgres:
		db, err := s.postgres(ctx, cfg)
		if err != nil {
			return nil, err
		}

		orders := store.NewPostgresOrderStore(db)
		if err := orders.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("orders schema: %w", err)
		}
		s.Orders = orders

	case config.BackendMongo:
		client, db, err := store.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error { return client.Disconnect(context.Background()) })

		orders := store.NewMongoOrderStore(db)
		if err := orders.EnsureIndexes(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		s.Orders = orders

	case config.BackendDynamo:
		client, err := newDynamoClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.Orders = store.NewDynamoOrderStore(client, cfg.DynamoTable)

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}

	if cfg.NotificationStore == config.NotificationStorePostgres {
		if err := s.openNotificationStore(ctx, cfg); err != nil {
			s.Close()
			return nil, err
		}
	}

	logger.Info("order store ready",
		slog.String("backend", cfg.Backend),
		slog.String("notification_store", notificationStoreName(cfg)))
	return s, nil
}

// postgres connects once per process and shares the pool.
func (s *Stores) postgres(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if s.db != nil {
		return s.db, nil
	}
	db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, db.Close)
	s.db = db
	return db, nil
}

func (s *Stores) openNotificationStore(ctx context.Context, cfg *config.Config) error {
	db, err := s.postgres(ctx, cfg)
	if err != nil {
		return err
	}
	logs := store.NewPostgresLogStore(db)
	if err := logs.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("notification log schema: %w", err)
	}
	settings := store.NewPostgresSettingsStore(db)
	if err := settings.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("notification settings schema: %w", err)
	}
	s.Logs = logs
	s.Settings = settings
	s.Directory = store.NewPostgresDirectory(db)
	s.Catalog = store.NewPostgresCatalog(db)
	return nil
}

func notificationStoreName(cfg *config.Config) string {
	if cfg.NotificationStore == config.NotificationStorePostgres {
		return config.NotificationStorePostgres
	}
	return config.NotificationStoreMemory
}

func newDynamoClient(ctx context.Context, cfg *config.Config) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
		}
	}), nil
}

func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

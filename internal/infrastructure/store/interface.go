package store

import (
	"errors"

	"github.com/example/vexokart/internal/catalog"
	"github.com/example/vexokart/internal/directory"
	"github.com/example/vexokart/internal/domain/order"
	"github.com/example/vexokart/internal/notification"
)

var (
	ErrDuplicateOrder = errors.New("order already exists")
	// ErrConflict is returned when a conditional write lost to a concurrent
	// writer more times than the store is willing to retry.
	ErrConflict = errors.New("order was modified concurrently")
)

// maxConflictRetries bounds optimistic-concurrency retries in the
// DynamoDB and Mongo stores.
const maxConflictRetries = 5

var (
	_ order.Repository                = (*MemoryOrderStore)(nil)
	_ order.Repository                = (*PostgresOrderStore)(nil)
	_ order.Repository                = (*DynamoOrderStore)(nil)
	_ order.Repository                = (*MongoOrderStore)(nil)
	_ notification.LogStore           = (*PostgresLogStore)(nil)
	_ notification.SettingsRepository = (*PostgresSettingsStore)(nil)
	_ directory.Directory             = (*PostgresDirectory)(nil)
	_ catalog.Catalog                 = (*PostgresCatalog)(nil)
)

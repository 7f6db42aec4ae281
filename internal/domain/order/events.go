package order

import (
	"context"
	"time"
)

const EventOrderStatusChanged = "OrderStatusChanged"

// OrderStatusChanged is emitted after a status change commits. Order is a
// snapshot taken at commit time so consumers never need to read back.
type OrderStatusChanged struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id"`
	OldStatus Status    `json:"old_status,omitempty"`
	NewStatus Status    `json:"new_status"`
	ChangedAt time.Time `json:"changed_at"`
	Order     *Order    `json:"order"`
}

// EventPublisher delivers events to the notifier. Kafka, RabbitMQ and the
// in-process bus all satisfy it.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Repository owns order persistence. Update runs fn against the current
// state inside the backend's transaction; fn reports whether it changed
// anything, and unchanged orders are not written back.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetByTokenDigest(ctx context.Context, digest string) (*Order, error)
	Update(ctx context.Context, id string, fn func(o *Order) (bool, error)) (*Order, error)
	List(ctx context.Context) ([]*Order, error)
}

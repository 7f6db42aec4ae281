package notification

import (
	"context"
	"sync"
	"time"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

const DefaultLogCapacity = 200

// Log is an immutable audit record of one channel delivery.
type Log struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	OrderID    string         `json:"order_id"`
	Channel    Channel        `json:"channel"`
	Status     DeliveryStatus `json:"status"`
	Response   string         `json:"response"`
	Type       string         `json:"type"` // order status at send time
	RetryCount int            `json:"retry_count"`
	CreatedAt  time.Time      `json:"created_at"`
}

// LogStore persists delivery records. Recent returns newest first.
type LogStore interface {
	Append(ctx context.Context, entry Log) error
	Recent(ctx context.Context, limit int) ([]Log, error)
}

// RingLogStore retains only the most recent entries.
type RingLogStore struct {
	mu      sync.Mutex
	entries []Log
	next    int
	full    bool
}

func NewRingLogStore(capacity int) *RingLogStore {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &RingLogStore{entries: make([]Log, capacity)}
}

func (r *RingLogStore) Append(ctx context.Context, entry Log) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.next] = entry
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
	return nil
}

func (r *RingLogStore) Recent(ctx context.Context, limit int) ([]Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.full {
		size = len(r.entries)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	result := make([]Log, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.entries)) % len(r.entries)
		result = append(result, r.entries[idx])
	}
	return result, nil
}

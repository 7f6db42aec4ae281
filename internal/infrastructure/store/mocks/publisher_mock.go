package mocks

import (
	"context"
	"sync"

	"github.com/example/vexokart/internal/domain/order"
)

// MockPublisher records published events.
type MockPublisher struct {
	mu sync.Mutex

	PublishCalls    []PublishCall
	PublishErr      error
	PublishCallback func(ctx context.Context, key string, event any) error
}

type PublishCall struct {
	Key   string
	Event any
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, key string, event any) error {
	m.mu.Lock()
	m.PublishCalls = append(m.PublishCalls, PublishCall{Key: key, Event: event})
	cb, err := m.PublishCallback, m.PublishErr
	m.mu.Unlock()

	if cb != nil {
		return cb(ctx, key, event)
	}
	return err
}

// StatusEvents returns the recorded OrderStatusChanged events in order.
func (m *MockPublisher) StatusEvents() []order.OrderStatusChanged {
	m.mu.Lock()
	defer m.mu.Unlock()

	var events []order.OrderStatusChanged
	for _, call := range m.PublishCalls {
		if e, ok := call.Event.(order.OrderStatusChanged); ok {
			events = append(events, e)
		}
	}
	return events
}

func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishCalls = nil
	m.PublishErr = nil
	m.PublishCallback = nil
}

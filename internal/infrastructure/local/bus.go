// Package local is an in-process event bus used when the API and the
// notifier run in the same binary.
package local

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

const DefaultBufferSize = 256

type MessageHandler func(ctx context.Context, key, value []byte) error

type message struct {
	key   []byte
	value []byte
}

// Bus hands JSON-encoded events to a single consumer goroutine in publish order.
type Bus struct {
	messages chan message
	pending  sync.WaitGroup
	logger   *slog.Logger
	// OnError is called when the handler fails.
	OnError func(err error)
}

func NewBus(buffer int, logger *slog.Logger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		messages: make(chan message, buffer),
		logger:   logger.With(slog.String("component", "local_bus")),
	}
}

// Publish blocks only when the buffer is full.
func (b *Bus) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	b.pending.Add(1)
	select {
	case b.messages <- message{key: []byte(key), value: data}:
		return nil
	case <-ctx.Done():
		b.pending.Done()
		return ctx.Err()
	}
}

func (b *Bus) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-b.messages:
			if err := handler(ctx, m.key, m.value); err != nil {
				b.logger.Error("error handling message",
					slog.String("key", string(m.key)),
					slog.String("error", err.Error()))
				if b.OnError != nil {
					b.OnError(err)
				}
			}
			b.pending.Done()
		}
	}
}

// Wait blocks until every published message has been handled.
func (b *Bus) Wait() {
	b.pending.Wait()
}

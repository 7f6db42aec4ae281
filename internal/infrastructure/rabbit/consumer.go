package rabbit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"
)

type MessageHandler func(ctx context.Context, key, value []byte) error

var ErrDeliveriesClosed = errors.New("rabbitmq delivery channel closed")

type Consumer struct {
	ch     *amqp091.Channel
	queue  string
	logger *slog.Logger
	// OnError is called when the handler fails, before the message is rejected.
	OnError func(err error)
}

func NewConsumer(ch *amqp091.Channel, queue string, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		ch:     ch,
		queue:  queue,
		logger: logger.With(slog.String("component", "rabbit"), slog.String("queue", queue)),
	}
}

// Consume delivers messages to handler until ctx is done. Failed messages
// are rejected without requeue so a poison message cannot loop.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	msgs, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	c.logger.Info("subscribed")
	return c.drain(ctx, msgs, handler)
}

func (c *Consumer) drain(ctx context.Context, msgs <-chan amqp091.Delivery, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrDeliveriesClosed
			}
			if err := handler(ctx, []byte(m.CorrelationId), m.Body); err != nil {
				c.logger.Error("error handling message",
					slog.String("key", m.CorrelationId),
					slog.String("error", err.Error()))
				if c.OnError != nil {
					c.OnError(err)
				}
				_ = m.Nack(false, false)
				continue
			}
			_ = m.Ack(false)
		}
	}
}

package kafka

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

type MessageHandler func(ctx context.Context, key, value []byte) error

type Consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
	// OnError is called when the handler fails; the message is still committed.
	OnError func(err error)
}

func NewConsumer(brokers []string, topic, groupID string, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{
		reader: reader,
		logger: logger.With(slog.String("component", "kafka"), slog.String("topic", topic)),
	}
}

func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Error("error reading message", slog.String("error", err.Error()))
				continue
			}

			if err := handler(ctx, msg.Key, msg.Value); err != nil {
				c.logger.Error("error handling message",
					slog.String("key", string(msg.Key)),
					slog.Int64("offset", msg.Offset),
					slog.String("error", err.Error()))
				if c.OnError != nil {
					c.OnError(err)
				}
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

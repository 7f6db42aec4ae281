package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/vexokart/internal/config"
	"github.com/example/vexokart/internal/domain/order"
	"github.com/example/vexokart/internal/infrastructure/kafka"
	"github.com/example/vexokart/internal/infrastructure/local"
	"github.com/example/vexokart/internal/infrastructure/rabbit"
	"github.com/example/vexokart/internal/metrics"
)

var ErrNoConsumer = errors.New("event bus has no consumer")

type MessageHandler func(ctx context.Context, key, value []byte) error

// Bus is the configured event transport. Publisher is nil for
// EVENT_BUS=none.
type Bus struct {
	Publisher order.EventPublisher

	consume func(ctx context.Context, handler MessageHandler) error
	local   *local.Bus
	closers []func() error
}

// OpenBus connects the configured transport. withConsumer also subscribes
// the notifier group or queue.
func OpenBus(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, withConsumer bool) (*Bus, error) {
	b := &Bus{}
	onError := func(source string) func(error) {
		return func(error) { m.ObserveConsumeFailure(source) }
	}

	switch cfg.Bus {
	case config.BusLocal:
		lb := local.NewBus(0, logger)
		lb.OnError = onError(config.BusLocal)
		b.local = lb
		b.Publisher = lb
		b.consume = func(ctx context.Context, h MessageHandler) error {
			return lb.Consume(ctx, local.MessageHandler(h))
		}

	case config.BusKafka:
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		b.Publisher = producer
		b.closers = append(b.closers, producer.Close)
		if withConsumer {
			consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroup, logger)
			consumer.OnError = onError(config.BusKafka)
			b.closers = append(b.closers, consumer.Close)
			b.consume = func(ctx context.Context, h MessageHandler) error {
				return consumer.Consume(ctx, kafka.MessageHandler(h))
			}
		}

	case config.BusRabbit:
		conn, ch, err := rabbit.Dial(cfg.RabbitURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, conn.Close, ch.Close)
		if err := rabbit.DeclareExchange(ch, cfg.RabbitExchange); err != nil {
			b.Close()
			return nil, fmt.Errorf("declare exchange: %w", err)
		}
		b.Publisher = rabbit.NewPublisher(ch, cfg.RabbitExchange)

		if withConsumer {
			cch, err := conn.Channel()
			if err != nil {
				b.Close()
				return nil, fmt.Errorf("open consumer channel: %w", err)
			}
			b.closers = append(b.closers, cch.Close)
			if _, err := rabbit.DeclareQueue(cch, cfg.RabbitExchange, cfg.RabbitQueue); err != nil {
				b.Close()
				return nil, err
			}
			consumer := rabbit.NewConsumer(cch, cfg.RabbitQueue, logger)
			consumer.OnError = onError(config.BusRabbit)
			b.consume = func(ctx context.Context, h MessageHandler) error {
				return consumer.Consume(ctx, rabbit.MessageHandler(h))
			}
		}

	case config.BusNone:

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBus, cfg.Bus)
	}

	logger.Info("event bus ready", slog.String("bus", cfg.Bus), slog.Bool("consumer", b.consume != nil))
	return b, nil
}

// Consume blocks delivering events to handler until ctx is done.
func (b *Bus) Consume(ctx context.Context, handler MessageHandler) error {
	if b.consume == nil {
		return ErrNoConsumer
	}
	return b.consume(ctx, handler)
}

// Drain waits for the in-process bus to hand every published event to the
// consumer. It is a no-op for brokered transports.
func (b *Bus) Drain() {
	if b.local != nil {
		b.local.Wait()
	}
}

// Close releases connections in reverse order of opening.
func (b *Bus) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	b.closers = nil
	return errors.Join(errs...)
}

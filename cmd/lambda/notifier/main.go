package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/example/vexokart/internal/app"
	"github.com/example/vexokart/internal/config"
	"github.com/example/vexokart/internal/infrastructure/kinesis"
)

// eventHandler is satisfied by notification.Handler.
type eventHandler interface {
	HandleEvent(ctx context.Context, key, value []byte) error
}

type streamHandler struct {
	events eventHandler
	logger *slog.Logger
}

var handler *streamHandler

// The stream replaces the bus in this deployment, so the function never
// publishes or subscribes itself.
func init() {
	cfg, err := config.Load(config.ModeStream)
	if err != nil {
		slog.Error("invalid configuration",
			slog.String("component", "lambda_notifier"),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg, os.Stdout).With(slog.String("component", "lambda_notifier"))

	a, err := app.New(context.Background(), cfg, logger, app.Options{Consume: true})
	if err != nil {
		logger.Error("failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handler = &streamHandler{events: a.Notifications, logger: logger}
	logger.Info("initialized",
		slog.String("backend", cfg.Backend),
		slog.String("notification_store", cfg.NotificationStore))
}

func (h *streamHandler) Handle(ctx context.Context, kinesisEvent events.KinesisEvent) (events.KinesisEventResponse, error) {
	h.logger.Info("received records", slog.Int("count", len(kinesisEvent.Records)))

	var batchItemFailures []events.KinesisBatchItemFailure
	fail := func(record events.KinesisEventRecord, msg string, err error) {
		h.logger.Error(msg,
			slog.String("event_id", record.EventID),
			slog.String("error", err.Error()))
		batchItemFailures = append(batchItemFailures, events.KinesisBatchItemFailure{
			ItemIdentifier: record.Kinesis.SequenceNumber,
		})
	}

	for _, record := range kinesisEvent.Records {
		event, err := kinesis.ConvertFromKinesisRecord(record)
		if err != nil {
			fail(record, "failed to convert record", err)
			continue
		}

		// Writes that leave the status untouched.
		if event == nil {
			continue
		}

		eventJSON, err := json.Marshal(event)
		if err != nil {
			fail(record, "failed to marshal event", err)
			continue
		}

		if err := h.events.HandleEvent(ctx, []byte(event.OrderID), eventJSON); err != nil {
			fail(record, "failed to process event", err)
			continue
		}
	}

	h.logger.Info("batch processed",
		slog.Int("succeeded", len(kinesisEvent.Records)-len(batchItemFailures)),
		slog.Int("total", len(kinesisEvent.Records)))

	return events.KinesisEventResponse{
		BatchItemFailures: batchItemFailures,
	}, nil
}

func main() {
	lambda.Start(handler.Handle)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/example/vexokart/internal/domain/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	keys []string
	seen []order.OrderStatusChanged
	err  error
}

func (r *recordingHandler) HandleEvent(_ context.Context, key, value []byte) error {
	if r.err != nil {
		return r.err
	}
	var e order.OrderStatusChanged
	if err := json.Unmarshal(value, &e); err != nil {
		return err
	}
	r.keys = append(r.keys, string(key))
	r.seen = append(r.seen, e)
	return nil
}

func image(t *testing.T, status order.Status) map[string]events.DynamoDBAttributeValue {
	t.Helper()
	o := order.Order{ID: "order-9", UserEmail: "asha@example.com", Status: status, UpdatedAt: time.Now().UTC()}
	data, err := json.Marshal(o)
	require.NoError(t, err)
	return map[string]events.DynamoDBAttributeValue{
		"id":      events.NewStringAttribute(o.ID),
		"status":  events.NewStringAttribute(string(status)),
		"data":    events.NewStringAttribute(string(data)),
		"version": events.NewNumberAttribute("2"),
	}
}

func kinesisRecord(t *testing.T, seq string, r events.DynamoDBEventRecord) events.KinesisEventRecord {
	t.Helper()
	data, err := json.Marshal(r)
	require.NoError(t, err)
	return events.KinesisEventRecord{
		EventID: "shard-0:" + seq,
		Kinesis: events.KinesisRecord{Data: data, SequenceNumber: seq},
	}
}

func newTestHandler(events eventHandler) *streamHandler {
	return &streamHandler{events: events, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestStreamHandler_ForwardsStatusChanges(t *testing.T) {
	rec := &recordingHandler{}
	h := newTestHandler(rec)

	resp, err := h.Handle(context.Background(), events.KinesisEvent{Records: []events.KinesisEventRecord{
		kinesisRecord(t, "1", events.DynamoDBEventRecord{
			EventName: "MODIFY",
			Change: events.DynamoDBStreamRecord{
				OldImage: image(t, order.StatusPlaced),
				NewImage: image(t, order.StatusPacked),
			},
		}),
		// Same status, e.g. a payment write.
		kinesisRecord(t, "2", events.DynamoDBEventRecord{
			EventName: "MODIFY",
			Change: events.DynamoDBStreamRecord{
				OldImage: image(t, order.StatusPacked),
				NewImage: image(t, order.StatusPacked),
			},
		}),
	}})
	require.NoError(t, err)

	assert.Empty(t, resp.BatchItemFailures)
	require.Len(t, rec.seen, 1)
	assert.Equal(t, []string{"order-9"}, rec.keys)
	assert.Equal(t, order.StatusPlaced, rec.seen[0].OldStatus)
	assert.Equal(t, order.StatusPacked, rec.seen[0].NewStatus)
	assert.Equal(t, "shard-0:1", rec.seen[0].EventID)
}

func TestStreamHandler_ReportsFailedItems(t *testing.T) {
	h := newTestHandler(&recordingHandler{err: errors.New("smtp down")})

	bad := events.KinesisEventRecord{Kinesis: events.KinesisRecord{Data: []byte("not json"), SequenceNumber: "7"}}
	good := kinesisRecord(t, "8", events.DynamoDBEventRecord{
		EventName: "INSERT",
		Change:    events.DynamoDBStreamRecord{NewImage: image(t, order.StatusPlaced)},
	})

	resp, err := h.Handle(context.Background(), events.KinesisEvent{Records: []events.KinesisEventRecord{bad, good}})
	require.NoError(t, err)

	require.Len(t, resp.BatchItemFailures, 2)
	assert.Equal(t, "7", resp.BatchItemFailures[0].ItemIdentifier)
	assert.Equal(t, "8", resp.BatchItemFailures[1].ItemIdentifier)
}

package rabbit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	exchange  string
	published []amqp091.Publishing
	err       error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, _ string, _, _ bool, msg amqp091.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.exchange = exchange
	f.published = append(f.published, msg)
	return nil
}

type fakeAcknowledger struct {
	mu     sync.Mutex
	acked  []uint64
	nacked []uint64
}

func (a *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, _, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestPublisher_Publish_WritesJSONToExchange(t *testing.T) {
	ch := &fakeChannel{}
	pub := NewPublisher(ch, DefaultExchange)

	err := pub.Publish(context.Background(), "order-1", map[string]string{"status": "Shipped"})
	require.NoError(t, err)

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, DefaultExchange, ch.exchange)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp091.Persistent, msg.DeliveryMode)
	assert.Equal(t, "order-1", msg.CorrelationId)

	var body map[string]string
	require.NoError(t, json.Unmarshal(msg.Body, &body))
	assert.Equal(t, "Shipped", body["status"])
}

func TestPublisher_Publish_ReturnsChannelError(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	pub := NewPublisher(ch, DefaultExchange)

	err := pub.Publish(context.Background(), "order-1", struct{}{})
	assert.EqualError(t, err, "channel closed")
}

func TestConsumer_Drain_AcksHandledAndRejectsFailed(t *testing.T) {
	ack := &fakeAcknowledger{}
	msgs := make(chan amqp091.Delivery, 2)
	msgs <- amqp091.Delivery{Acknowledger: ack, DeliveryTag: 1, CorrelationId: "ok", Body: []byte(`{}`)}
	msgs <- amqp091.Delivery{Acknowledger: ack, DeliveryTag: 2, CorrelationId: "bad", Body: []byte(`{}`)}
	close(msgs)

	var failures []error
	c := NewConsumer(nil, DefaultQueue, nil)
	c.OnError = func(err error) { failures = append(failures, err) }

	var keys []string
	err := c.drain(context.Background(), msgs, func(_ context.Context, key, _ []byte) error {
		keys = append(keys, string(key))
		if string(key) == "bad" {
			return errors.New("boom")
		}
		return nil
	})

	assert.ErrorIs(t, err, ErrDeliveriesClosed)
	assert.Equal(t, []string{"ok", "bad"}, keys)
	assert.Equal(t, []uint64{1}, ack.acked)
	assert.Equal(t, []uint64{2}, ack.nacked)
	assert.Len(t, failures, 1)
}

func TestConsumer_Drain_StopsOnContextCancel(t *testing.T) {
	msgs := make(chan amqp091.Delivery)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	c := NewConsumer(nil, DefaultQueue, nil)
	go func() {
		done <- c.drain(ctx, msgs, func(context.Context, []byte, []byte) error { return nil })
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("drain did not stop after cancel")
	}
}

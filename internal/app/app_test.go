package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/vexokart/internal/config"
	"github.com/example/vexokart/internal/domain/order"
	"github.com/example/vexokart/internal/notification"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Mode:             config.ModeAPI,
		Backend:          config.BackendMemory,
		Bus:              config.BusLocal,
		EmbeddedNotifier: true,
		PublicBaseURL:    "https://vexokart.test",
		TokenTTL:         24 * time.Hour,
		Notification: config.Notification{
			Sandbox:        true,
			EmailFrom:      "orders@vexokart.test",
			MaxRetries:     1,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
			SendTimeout:    time.Second,
			SandboxDelay:   time.Millisecond,
			LogCapacity:    10,
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApp_EmbeddedNotifierRecordsSandboxDeliveries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := New(ctx, testConfig(), discardLogger(), Options{Consume: true})
	require.NoError(t, err)
	defer a.Close()

	done := make(chan error, 1)
	go func() { done <- a.RunNotifier(ctx) }()

	o, err := a.Orders.CreateOrder(ctx, order.CreateOrderInput{
		UserEmail:       "asha@example.com",
		Items:           []order.LineItem{{ProductID: "p-1", Name: "Kettle", UnitPrice: decimal.NewFromInt(999), Quantity: 1}},
		ShippingAddress: order.Address{FullName: "Asha", Phone: "+919800000000"},
	})
	require.NoError(t, err)
	a.Bus.Drain()

	logs, err := a.Stores.Logs.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	channels := map[notification.Channel]bool{}
	for _, l := range logs {
		assert.Equal(t, o.ID, l.OrderID)
		assert.Equal(t, notification.DeliverySent, l.Status)
		assert.Equal(t, "sandbox", l.Response)
		channels[l.Channel] = true
	}
	assert.True(t, channels[notification.ChannelEmail])
	assert.True(t, channels[notification.ChannelSMS])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("notifier did not stop")
	}
}

func TestApp_LabelUsesPublicBaseURL(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(), discardLogger(), Options{})
	require.NoError(t, err)
	defer a.Close()

	o, err := a.Orders.CreateOrder(ctx, order.CreateOrderInput{
		UserEmail: "asha@example.com",
		Items:     []order.LineItem{{ProductID: "p-1", UnitPrice: decimal.NewFromInt(10), Quantity: 2}},
	})
	require.NoError(t, err)

	l, err := a.Console.MintLabel(ctx, o.ID)
	require.NoError(t, err)
	assert.Contains(t, l.ScanURL, "https://vexokart.test/scan/")
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), l.ExpiresAt, time.Minute)
}

func TestApp_RunNotifierWithoutConsumer(t *testing.T) {
	a, err := New(context.Background(), testConfig(), discardLogger(), Options{})
	require.NoError(t, err)
	defer a.Close()

	assert.ErrorIs(t, a.RunNotifier(context.Background()), ErrNoConsumer)
}

func TestOpenBus_None(t *testing.T) {
	cfg := testConfig()
	cfg.Bus = config.BusNone

	b, err := OpenBus(cfg, discardLogger(), nil, true)
	require.NoError(t, err)

	assert.Nil(t, b.Publisher)
	assert.ErrorIs(t, b.Consume(context.Background(), nil), ErrNoConsumer)
	assert.NoError(t, b.Close())
}

func TestOpenStores_UnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Backend = "sqlite"

	_, err := OpenStores(context.Background(), cfg, discardLogger())
	assert.ErrorIs(t, err, config.ErrUnknownBackend)
}

func TestNotificationSettings_FromEnvironment(t *testing.T) {
	cfg := testConfig().Notification
	cfg.EmailEnabled = true
	cfg.EmailEndpoint = "https://mail.test/send"
	cfg.SMSSenderID = "VEXOKT"

	s, err := NotificationSettings(cfg)
	require.NoError(t, err)

	assert.True(t, s.EmailEnabled)
	assert.True(t, s.Sandbox)
	assert.Equal(t, "https://mail.test/send", s.Email.Endpoint)
	assert.Equal(t, "orders@vexokart.test", s.Email.From)
	assert.Equal(t, "VEXOKT", s.SMS.SenderID)
}

func TestNotificationSettings_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sms_enabled: true\nsms:\n  sender_id: FILEID\n"), 0o600))

	cfg := testConfig().Notification
	cfg.SettingsFile = path

	s, err := NotificationSettings(cfg)
	require.NoError(t, err)

	assert.True(t, s.SMSEnabled)
	assert.False(t, s.Sandbox)
	assert.Equal(t, "FILEID", s.SMS.SenderID)
}

func TestRetryConfig_FromNotificationConfig(t *testing.T) {
	rc := RetryConfig(testConfig().Notification)

	assert.Equal(t, 1, rc.MaxRetries)
	assert.Equal(t, time.Millisecond, rc.InitialBackoff)
	assert.Equal(t, time.Second, rc.SendTimeout)
	assert.Equal(t, notification.DefaultRetryConfig().ContentTimeout, rc.ContentTimeout)
}

package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/vexokart/internal/directory"
	"github.com/example/vexokart/internal/domain/order"
	"github.com/example/vexokart/internal/email"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmailSender struct {
	mu    sync.Mutex
	calls []email.Message
	errs  []error // consumed per call; last value repeats
}

func (f *fakeEmailSender) Send(ctx context.Context, msg email.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msg)
	if len(f.errs) == 0 {
		return "accepted", nil
	}
	err := f.errs[0]
	if len(f.errs) > 1 {
		f.errs = f.errs[1:]
	}
	if err != nil {
		return "", err
	}
	return "accepted", nil
}

func (f *fakeEmailSender) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSMSSender struct {
	mu       sync.Mutex
	numbers  []string
	messages []string
	err      error
}

func (f *fakeSMSSender) Send(ctx context.Context, number, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.numbers = append(f.numbers, number)
	f.messages = append(f.messages, message)
	if f.err != nil {
		return "", f.err
	}
	return `{"status":"queued"}`, nil
}

type stubGenerator struct {
	content Content
	err     error
	calls   int
}

func (g *stubGenerator) Generate(ctx context.Context, o *order.Order, user *directory.User) (Content, error) {
	g.calls++
	return g.content, g.err
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		SendTimeout:    time.Second,
		SandboxDelay:   time.Millisecond,
		ContentTimeout: time.Second,
	}
}

func testOrder() *order.Order {
	return &order.Order{
		ID:        "0192d0c4-7a2b-7cde-8f00-1234abcd5678",
		UserEmail: "shopper@example.com",
		Items: []order.LineItem{
			{ProductID: "p1", Name: "Kettle", UnitPrice: decimal.RequireFromString("999.00"), Quantity: 1},
		},
		Total:  decimal.RequireFromString("999.00"),
		Status: order.StatusShipped,
		ShippingAddress: order.Address{
			FullName: "Asha Rao",
			Phone:    "+919800000000",
		},
		CourierName: "BlueDart",
		TrackingID:  "BD123",
	}
}

func testUser() *directory.User {
	return &directory.User{ID: "user-1", Email: "shopper@example.com", Name: "Asha", Phone: "+919811111111"}
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	settings   *SettingsStore
	logs       *RingLogStore
	email      *fakeEmailSender
	sms        *fakeSMSSender
}

func newDispatcherFixture(s Settings, opts ...DispatcherOption) dispatcherFixture {
	f := dispatcherFixture{
		settings: NewSettingsStore(s),
		logs:     NewRingLogStore(50),
		email:    &fakeEmailSender{},
		sms:      &fakeSMSSender{},
	}
	base := []DispatcherOption{
		WithEmailSender(f.email),
		WithSMSSender(f.sms),
		WithRetryConfig(fastRetry()),
	}
	f.dispatcher = NewDispatcher(f.settings, f.logs, append(base, opts...)...)
	return f
}

func logsByChannel(t *testing.T, logs *RingLogStore) map[Channel]Log {
	t.Helper()
	entries, err := logs.Recent(context.Background(), 0)
	require.NoError(t, err)
	out := make(map[Channel]Log)
	for _, e := range entries {
		out[e.Channel] = e
	}
	return out
}

// ============================================
// Dispatch Tests
// ============================================

func TestDispatcher_SendsBothChannels(t *testing.T) {
	f := newDispatcherFixture(Settings{EmailEnabled: true, SMSEnabled: true})

	f.dispatcher.Notify(context.Background(), testOrder(), testUser())

	logs := logsByChannel(t, f.logs)
	require.Len(t, logs, 2)
	assert.Equal(t, DeliverySent, logs[ChannelEmail].Status)
	assert.Equal(t, DeliverySent, logs[ChannelSMS].Status)
	assert.Equal(t, 0, logs[ChannelEmail].RetryCount)
	assert.Equal(t, "user-1", logs[ChannelEmail].UserID)
	assert.Equal(t, string(order.StatusShipped), logs[ChannelEmail].Type)
	assert.Equal(t, "accepted", logs[ChannelEmail].Response)

	require.Len(t, f.email.calls, 1)
	assert.Equal(t, "shopper@example.com", f.email.calls[0].To)
	require.Len(t, f.sms.numbers, 1)
	assert.Equal(t, "+919811111111", f.sms.numbers[0])
}

func TestDispatcher_ChannelFailureIsIsolated(t *testing.T) {
	f := newDispatcherFixture(Settings{EmailEnabled: true, SMSEnabled: true})
	f.email.errs = []error{errors.New("provider 503")}

	f.dispatcher.Notify(context.Background(), testOrder(), testUser())

	logs := logsByChannel(t, f.logs)
	assert.Equal(t, DeliveryFailed, logs[ChannelEmail].Status)
	assert.Equal(t, 2, logs[ChannelEmail].RetryCount)
	assert.Contains(t, logs[ChannelEmail].Response, "provider 503")
	assert.Equal(t, 3, f.email.Calls())

	assert.Equal(t, DeliverySent, logs[ChannelSMS].Status)
	assert.Equal(t, 0, logs[ChannelSMS].RetryCount)
}

func TestDispatcher_RetryThenSuccess(t *testing.T) {
	f := newDispatcherFixture(Settings{EmailEnabled: true})
	f.email.errs = []error{errors.New("timeout"), nil}

	f.dispatcher.Notify(context.Background(), testOrder(), testUser())

	logs := logsByChannel(t, f.logs)
	require.Len(t, logs, 1)
	assert.Equal(t, DeliverySent, logs[ChannelEmail].Status)
	assert.Equal(t, 1, logs[ChannelEmail].RetryCount)
	assert.Equal(t, 2, f.email.Calls())
}

func TestDispatcher_ShortCircuitsWhenDisabled(t *testing.T) {
	gen := &stubGenerator{}
	f := newDispatcherFixture(Settings{}, WithContentGenerator(gen))

	f.dispatcher.Notify(context.Background(), testOrder(), testUser())

	entries, _ := f.logs.Recent(context.Background(), 0)
	assert.Empty(t, entries)
	assert.Equal(t, 0, gen.calls)
	assert.Equal(t, 0, f.email.Calls())
}

func TestDispatcher_SandboxSimulatesBothChannels(t *testing.T) {
	f := newDispatcherFixture(Settings{Sandbox: true})

	f.dispatcher.Notify(context.Background(), testOrder(), testUser())

	logs := logsByChannel(t, f.logs)
	require.Len(t, logs, 2)
	for _, ch := range []Channel{ChannelEmail, ChannelSMS} {
		assert.Equal(t, DeliverySent, logs[ch].Status)
		assert.Equal(t, "sandbox", logs[ch].Response)
	}
	assert.Equal(t, 0, f.email.Calls())
	assert.Empty(t, f.sms.numbers)
}

func TestDispatcher_SandboxOnlyEnabledChannels(t *testing.T) {
	f := newDispatcherFixture(Settings{Sandbox: true, SMSEnabled: true})

	f.dispatcher.Notify(context.Background(), testOrder(), testUser())

	logs := logsByChannel(t, f.logs)
	require.Len(t, logs, 1)
	assert.Equal(t, "sandbox", logs[ChannelSMS].Response)
}

func TestDispatcher_MissingPhoneFailsWithoutRetry(t *testing.T) {
	f := newDispatcherFixture(Settings{SMSEnabled: true})
	o := testOrder()
	o.ShippingAddress.Phone = ""
	user := testUser()
	user.Phone = ""

	f.dispatcher.Notify(context.Background(), o, user)

	logs := logsByChannel(t, f.logs)
	assert.Equal(t, DeliveryFailed, logs[ChannelSMS].Status)
	assert.Equal(t, 0, logs[ChannelSMS].RetryCount)
	assert.Empty(t, f.sms.numbers)
}

func TestDispatcher_SandboxIgnoresMissingPhone(t *testing.T) {
	f := newDispatcherFixture(Settings{Sandbox: true})
	o := testOrder()
	o.ShippingAddress.Phone = ""
	user := testUser()
	user.Phone = ""

	f.dispatcher.Notify(context.Background(), o, user)

	logs := logsByChannel(t, f.logs)
	require.Len(t, logs, 2)
	assert.Equal(t, DeliverySent, logs[ChannelSMS].Status)
	assert.Equal(t, "sandbox", logs[ChannelSMS].Response)
	assert.Empty(t, f.sms.numbers)
}

func TestDispatcher_NilUserUsesOrderContact(t *testing.T) {
	f := newDispatcherFixture(Settings{EmailEnabled: true, SMSEnabled: true})

	assert.NotPanics(t, func() {
		f.dispatcher.Notify(context.Background(), testOrder(), nil)
	})

	logs := logsByChannel(t, f.logs)
	require.Len(t, logs, 2)
	assert.Equal(t, DeliverySent, logs[ChannelEmail].Status)
	assert.Equal(t, "shopper@example.com", logs[ChannelEmail].UserID)
	require.Len(t, f.email.calls, 1)
	assert.Equal(t, "shopper@example.com", f.email.calls[0].To)
	require.Len(t, f.sms.numbers, 1)
	assert.Equal(t, "+919800000000", f.sms.numbers[0])
}

func TestDispatcher_NilOrderIsIgnored(t *testing.T) {
	f := newDispatcherFixture(Settings{Sandbox: true})

	assert.NotPanics(t, func() {
		f.dispatcher.Notify(context.Background(), nil, testUser())
	})

	entries, err := f.logs.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDispatcher_FallsBackToAddressPhone(t *testing.T) {
	f := newDispatcherFixture(Settings{SMSEnabled: true})
	user := testUser()
	user.Phone = ""

	f.dispatcher.Notify(context.Background(), testOrder(), user)

	require.Len(t, f.sms.numbers, 1)
	assert.Equal(t, "+919800000000", f.sms.numbers[0])
}

func TestDispatcher_CancelledContextStopsRetries(t *testing.T) {
	f := newDispatcherFixture(Settings{EmailEnabled: true}, WithRetryConfig(RetryConfig{
		MaxRetries:     5,
		InitialBackoff: time.Hour,
		MaxBackoff:     time.Hour,
		SendTimeout:    time.Second,
		ContentTimeout: time.Second,
	}))
	f.email.errs = []error{errors.New("down")}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	done := make(chan struct{})
	go func() {
		f.dispatcher.Notify(ctx, testOrder(), testUser())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify did not return after cancellation")
	}
	logs := logsByChannel(t, f.logs)
	assert.Equal(t, DeliveryFailed, logs[ChannelEmail].Status)
	assert.Equal(t, 1, f.email.Calls())
}

// ============================================
// Content Tests
// ============================================

func TestDispatcher_UsesGeneratedContent(t *testing.T) {
	gen := &stubGenerator{content: Content{
		Subject:   "Shipped!",
		EmailHTML: "<p>On its way</p>",
		SMS:       "Your kettle shipped",
	}}
	f := newDispatcherFixture(Settings{EmailEnabled: true, SMSEnabled: true}, WithContentGenerator(gen))

	f.dispatcher.Notify(context.Background(), testOrder(), testUser())

	require.Len(t, f.email.calls, 1)
	assert.Equal(t, "Shipped!", f.email.calls[0].Subject)
	require.Len(t, f.sms.messages, 1)
	assert.Equal(t, "VexoKart: Your kettle shipped", f.sms.messages[0])
}

func TestDispatcher_GeneratorErrorFallsBack(t *testing.T) {
	gen := &stubGenerator{err: errors.New("rate limited")}
	f := newDispatcherFixture(Settings{EmailEnabled: true, SMSEnabled: true}, WithContentGenerator(gen))

	f.dispatcher.Notify(context.Background(), testOrder(), testUser())

	require.Len(t, f.email.calls, 1)
	assert.Equal(t, "Order abcd5678 is now Shipped", f.email.calls[0].Subject)
	assert.Contains(t, f.email.calls[0].HTML, "BD123")
	require.Len(t, f.sms.messages, 1)
	assert.Equal(t, "VexoKart: Your order abcd5678 is now Shipped. BlueDart tracking BD123.", f.sms.messages[0])
}

func TestDispatcher_EmptyGeneratedContentFallsBack(t *testing.T) {
	gen := &stubGenerator{content: Content{Subject: "only a subject"}}
	f := newDispatcherFixture(Settings{EmailEnabled: true}, WithContentGenerator(gen))

	f.dispatcher.Notify(context.Background(), testOrder(), testUser())

	require.Len(t, f.email.calls, 1)
	assert.Equal(t, "Order abcd5678 is now Shipped", f.email.calls[0].Subject)
}

func TestNormalize_CapsSMSLength(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "abcdefghij"
	}

	c := normalize(Content{SMS: long})

	assert.Len(t, []rune(c.SMS), SMSMaxLength)
	assert.True(t, len(c.SMS) > 0 && c.SMS[:len(SMSPrefix)] == SMSPrefix)
}

func TestNormalize_KeepsExistingPrefix(t *testing.T) {
	c := normalize(Content{SMS: "VexoKart: hello"})

	assert.Equal(t, "VexoKart: hello", c.SMS)
}

func TestFallbackContent_EscapesHTML(t *testing.T) {
	o := testOrder()
	o.Items[0].Name = "<script>alert(1)</script>"

	c := FallbackContent(o, &directory.User{Name: "Asha & Co"})

	assert.NotContains(t, c.EmailHTML, "<script>")
	assert.Contains(t, c.EmailHTML, "Asha &amp; Co")
}

func TestFallbackContent_NilUser(t *testing.T) {
	var c Content
	assert.NotPanics(t, func() { c = FallbackContent(testOrder(), nil) })

	assert.Contains(t, c.EmailHTML, "Asha Rao")
	assert.NotEmpty(t, c.Subject)
	assert.NotEmpty(t, c.SMS)
}

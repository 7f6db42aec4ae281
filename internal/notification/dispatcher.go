package notification

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/example/vexokart/internal/directory"
	"github.com/example/vexokart/internal/domain/order"
	"github.com/example/vexokart/internal/email"
	"github.com/example/vexokart/internal/metrics"
	"github.com/example/vexokart/internal/sms"
	"github.com/google/uuid"
)

var errNoRecipient = errors.New("no recipient for channel")

// RetryConfig bounds provider retries for one channel send.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// SendTimeout caps each individual provider call.
	SendTimeout time.Duration

	// SandboxDelay is how long a simulated send takes.
	SandboxDelay time.Duration

	// ContentTimeout caps content generation before falling back.
	ContentTimeout time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		SendTimeout:    10 * time.Second,
		SandboxDelay:   300 * time.Millisecond,
		ContentTimeout: 10 * time.Second,
	}
}

// Dispatcher delivers order updates over every enabled channel. Delivery
// problems are recorded, never returned.
type Dispatcher struct {
	settings *SettingsStore
	logs     LogStore
	content  ContentGenerator
	emailFor func(EmailProvider) email.Sender
	smsFor   func(SMSProvider) sms.Sender
	retry    RetryConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

type DispatcherOption func(*Dispatcher)

func WithContentGenerator(g ContentGenerator) DispatcherOption {
	return func(d *Dispatcher) { d.content = g }
}

// WithEmailSender pins the email sender regardless of provider settings.
func WithEmailSender(s email.Sender) DispatcherOption {
	return func(d *Dispatcher) { d.emailFor = func(EmailProvider) email.Sender { return s } }
}

func WithSMSSender(s sms.Sender) DispatcherOption {
	return func(d *Dispatcher) { d.smsFor = func(SMSProvider) sms.Sender { return s } }
}

func WithRetryConfig(cfg RetryConfig) DispatcherOption {
	return func(d *Dispatcher) { d.retry = cfg }
}

func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

func WithDispatcherMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher builds a dispatcher whose providers follow the live
// settings unless pinned with WithEmailSender or WithSMSSender.
func NewDispatcher(settings *SettingsStore, logs LogStore, opts ...DispatcherOption) *Dispatcher {
	client := &http.Client{}
	d := &Dispatcher{
		settings: settings,
		logs:     logs,
		emailFor: func(p EmailProvider) email.Sender {
			return email.NewHTTPSender(p.Endpoint, p.APIKey, p.From, client)
		},
		smsFor: func(p SMSProvider) sms.Sender {
			return sms.NewHTTPSender(p.Endpoint, p.APIKey, p.SenderID, client)
		},
		retry:  DefaultRetryConfig(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(slog.String("component", "dispatcher"))
	return d
}

// Notify sends o's current status to user and blocks until every channel
// has finished.
func (d *Dispatcher) Notify(ctx context.Context, o *order.Order, user *directory.User) {
	if o == nil {
		d.logger.Warn("notify called without an order")
		return
	}
	if user == nil {
		user = fallbackUser(o)
	}

	settings := d.settings.Get(ctx)
	if !settings.EmailEnabled && !settings.SMSEnabled && !settings.Sandbox {
		return
	}

	sendEmail, sendSMS := settings.EmailEnabled, settings.SMSEnabled
	if settings.Sandbox && !sendEmail && !sendSMS {
		sendEmail, sendSMS = true, true
	}

	content := d.resolveContent(ctx, o, user)

	var wg sync.WaitGroup
	if sendEmail {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.deliverEmail(ctx, o, user, settings, content)
		}()
	}
	if sendSMS {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.deliverSMS(ctx, o, user, settings, content)
		}()
	}
	wg.Wait()
}

func (d *Dispatcher) resolveContent(ctx context.Context, o *order.Order, user *directory.User) Content {
	if d.content == nil {
		return normalize(FallbackContent(o, user))
	}

	genCtx, cancel := context.WithTimeout(ctx, d.retry.ContentTimeout)
	defer cancel()

	c, err := d.content.Generate(genCtx, o, user)
	if err != nil || c.empty() {
		if err == nil {
			err = errors.New("generator returned empty content")
		}
		d.logger.Warn("content generation failed, using fallback",
			slog.String("order_id", o.ID),
			slog.String("error", err.Error()))
		return normalize(FallbackContent(o, user))
	}
	return normalize(c)
}

func (d *Dispatcher) deliverEmail(ctx context.Context, o *order.Order, user *directory.User, settings Settings, c Content) {
	to := user.Email
	if to == "" {
		to = o.UserEmail
	}
	d.deliver(ctx, o, user, ChannelEmail, settings.Sandbox, to, func(ctx context.Context) (string, error) {
		return d.emailFor(settings.Email).Send(ctx, email.Message{To: to, Subject: c.Subject, HTML: c.EmailHTML})
	})
}

func (d *Dispatcher) deliverSMS(ctx context.Context, o *order.Order, user *directory.User, settings Settings, c Content) {
	number := user.Phone
	if number == "" {
		number = o.ShippingAddress.Phone
	}
	d.deliver(ctx, o, user, ChannelSMS, settings.Sandbox, number, func(ctx context.Context) (string, error) {
		return d.smsFor(settings.SMS).Send(ctx, number, c.SMS)
	})
}

func (d *Dispatcher) deliver(ctx context.Context, o *order.Order, user *directory.User, channel Channel, sandbox bool, recipient string, send func(context.Context) (string, error)) {
	// Sandbox never reaches a provider, so a missing recipient does not matter.
	if sandbox {
		select {
		case <-time.After(d.retry.SandboxDelay):
			d.record(ctx, o, user, channel, DeliverySent, "sandbox", 0)
		case <-ctx.Done():
			d.record(ctx, o, user, channel, DeliveryFailed, ctx.Err().Error(), 0)
		}
		return
	}

	if recipient == "" {
		d.record(ctx, o, user, channel, DeliveryFailed, errNoRecipient.Error(), 0)
		return
	}

	response, retries, err := d.sendWithRetry(ctx, channel, send)
	if err != nil {
		d.record(ctx, o, user, channel, DeliveryFailed, err.Error(), retries)
		return
	}
	d.record(ctx, o, user, channel, DeliverySent, response, retries)
}

// sendWithRetry retries send with exponential backoff. It reports the
// number of retries used, which equals MaxRetries when all attempts fail.
func (d *Dispatcher) sendWithRetry(ctx context.Context, channel Channel, send func(context.Context) (string, error)) (string, int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.retry.InitialBackoff
	b.MaxInterval = d.retry.MaxBackoff
	b.MaxElapsedTime = 0

	maxRetries := d.retry.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx)

	attempts := 0
	var response string
	op := func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, d.retry.SendTimeout)
		defer cancel()

		resp, err := send(attemptCtx)
		response = resp
		if errors.Is(err, email.ErrMissingRecipient) || errors.Is(err, sms.ErrMissingNumber) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		d.metrics.ObserveRetry(string(channel))
		d.logger.Debug("provider send failed, retrying",
			slog.String("channel", string(channel)),
			slog.Int("attempt", attempts),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()))
	})
	return response, attempts - 1, err
}

func (d *Dispatcher) record(ctx context.Context, o *order.Order, user *directory.User, channel Channel, status DeliveryStatus, response string, retries int) {
	userID := user.ID
	if userID == "" {
		userID = o.UserEmail
	}
	entry := Log{
		ID:         uuid.NewString(),
		UserID:     userID,
		OrderID:    o.ID,
		Channel:    channel,
		Status:     status,
		Response:   response,
		Type:       string(o.Status),
		RetryCount: retries,
		CreatedAt:  d.now().UTC(),
	}

	d.metrics.ObserveNotification(string(channel), string(status))
	// The audit write must outlive a cancelled dispatch.
	if err := d.logs.Append(context.WithoutCancel(ctx), entry); err != nil {
		d.logger.Error("failed to write notification log",
			slog.String("order_id", o.ID),
			slog.String("channel", string(channel)),
			slog.String("error", err.Error()))
	}

	level := slog.LevelInfo
	if status == DeliveryFailed {
		level = slog.LevelWarn
	}
	d.logger.Log(ctx, level, "notification "+string(status),
		slog.String("order_id", o.ID),
		slog.String("channel", string(channel)),
		slog.String("status", string(o.Status)),
		slog.Int("retry_count", retries))
}

package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/example/vexokart/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const publishTimeout = 10 * time.Second

type Service struct {
	repo      Repository
	publisher EventPublisher
	locks     *keyedMutex
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	tokenTTL  time.Duration
	tokenSrc  io.Reader
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithTokenSource replaces the entropy source used for scan tokens.
func WithTokenSource(r io.Reader) Option {
	return func(s *Service) { s.tokenSrc = r }
}

// NewService builds the order store. A nil publisher disables events.
func NewService(repo Repository, publisher EventPublisher, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		publisher: publisher,
		locks:     newKeyedMutex(),
		logger:    slog.Default(),
		now:       time.Now,
		tokenTTL:  DefaultTokenTTL,
		tokenSrc:  defaultTokenSource,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "order"))
	return s
}

type CreateOrderInput struct {
	UserEmail       string          `json:"user_email"`
	Items           []LineItem      `json:"items"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress Address         `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
}

// ScanInput is a courier's request against the order a token unlocks.
type ScanInput struct {
	Token     string
	Status    Status
	Note      string
	ScannedBy string
}

func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if in.UserEmail == "" {
		return nil, ErrMissingEmail
	}
	for _, item := range in.Items {
		if item.Quantity <= 0 || item.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: product %q", ErrInvalidItem, item.ProductID)
		}
	}
	if in.Total.IsNegative() {
		return nil, fmt.Errorf("%w: negative total", ErrInvalidItem)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("allocate order id: %w", err)
	}

	total := in.Total
	if total.IsZero() {
		for _, item := range in.Items {
			total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}

	now := s.now().UTC()
	o := &Order{
		ID:              id.String(),
		UserEmail:       in.UserEmail,
		Items:           append([]LineItem(nil), in.Items...),
		Total:           total,
		Status:          StatusPlaced,
		StatusHistory:   []StatusEntry{{Status: StatusPlaced, At: now}},
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		ScanLogs:        []ScanLog{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.metrics.ObserveTransition("", string(StatusPlaced))
	s.publish(ctx, "", o)
	return o.Clone(), nil
}

// SetStatus moves an order to status. Re-applying the current status only
// merges details; terminal orders are read-only and reject every other
// status.
func (s *Service) SetStatus(ctx context.Context, id string, status Status, details Details) (*Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var old Status
	changed := false
	updated, err := s.mutate(ctx, id, func(o *Order, now time.Time) (bool, error) {
		old, changed = o.Status, false
		if o.Status.Terminal() {
			if o.Status == status {
				return false, nil
			}
			return false, ErrTerminal
		}
		if o.Status == status {
			return o.mergeDetails(details), nil
		}
		o.transition(status, now)
		o.mergeDetails(details)
		changed = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.ObserveTransition(string(old), string(status))
		s.publish(ctx, old, updated)
	}
	return updated, nil
}

// RecordPayment stores the gateway's payment id. Unknown orders are ignored.
func (s *Service) RecordPayment(ctx context.Context, id, paymentID string) error {
	confirmed := false
	updated, err := s.mutate(ctx, id, func(o *Order, now time.Time) (bool, error) {
		o.PaymentID = paymentID
		confirmed = false
		if o.Status == StatusPlaced {
			o.transition(StatusConfirmed, now)
			confirmed = true
		}
		return true, nil
	})
	if errors.Is(err, ErrOrderNotFound) {
		s.logger.Debug("payment for unknown order ignored", slog.String("order_id", id))
		return nil
	}
	if err != nil {
		return err
	}

	if confirmed {
		s.metrics.ObserveTransition(string(StatusPlaced), string(StatusConfirmed))
		s.publish(ctx, StatusPlaced, updated)
	}
	return nil
}

// MintShippingLabelToken issues a fresh scan token, replacing any earlier one.
func (s *Service) MintShippingLabelToken(ctx context.Context, id string) (Token, error) {
	value, err := newToken(s.tokenSrc)
	if err != nil {
		return Token{}, err
	}
	digest := TokenDigest(value)

	var expires time.Time
	_, err = s.mutate(ctx, id, func(o *Order, now time.Time) (bool, error) {
		expires = now.Add(s.tokenTTL)
		o.QRTokenDigest = digest
		o.QRExpiresAt = &expires
		o.QRUsedAt = nil
		return true, nil
	})
	if err != nil {
		return Token{}, err
	}

	s.logger.Info("shipping label token minted",
		slog.String("order_id", id),
		slog.Time("expires_at", expires))
	return Token{Value: value, ExpiresAt: expires}, nil
}

// ApplyScan applies a courier's status update authorized by token.
func (s *Service) ApplyScan(ctx context.Context, in ScanInput) (string, error) {
	if !in.Status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
	}

	var old Status
	changed := false
	updated, err := s.mutateByToken(ctx, in.Token, func(o *Order, now time.Time) {
		old, changed = o.Status, false
		if o.Status != in.Status {
			o.transition(in.Status, now)
			changed = true
		}
		o.ScanLogs = append(o.ScanLogs, ScanLog{
			Status:    in.Status,
			Outcome:   OutcomeStatusUpdate,
			Note:      in.Note,
			ScannedBy: scannedBy(in.ScannedBy),
			ScannedAt: now,
		})
	})
	if err != nil {
		return "", err
	}

	if changed {
		s.metrics.ObserveTransition(string(old), string(in.Status))
		s.publish(ctx, old, updated)
	}
	return fmt.Sprintf("Order %s updated to %s", updated.ID, updated.Status), nil
}

// RecordFailedAttempt notes an unsuccessful delivery on the scan log. Status
// and history are left untouched.
func (s *Service) RecordFailedAttempt(ctx context.Context, in ScanInput) (string, error) {
	updated, err := s.mutateByToken(ctx, in.Token, func(o *Order, now time.Time) {
		o.ScanLogs = append(o.ScanLogs, ScanLog{
			Status:    o.Status,
			Outcome:   OutcomeAttemptFailed,
			Note:      in.Note,
			ScannedBy: scannedBy(in.ScannedBy),
			ScannedAt: now,
		})
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Delivery attempt recorded for order %s", updated.ID), nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// GetOrderByToken resolves a plaintext scan token without validating expiry.
func (s *Service) GetOrderByToken(ctx context.Context, token string) (*Order, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	o, err := s.repo.GetByTokenDigest(ctx, TokenDigest(token))
	if errors.Is(err, ErrOrderNotFound) {
		return nil, ErrInvalidToken
	}
	return o, err
}

func (s *Service) ListOrders(ctx context.Context) ([]*Order, error) {
	return s.repo.List(ctx)
}

// mutate runs fn under the per-order lock inside the repository's
// read-modify-write. Changed orders get UpdatedAt bumped.
func (s *Service) mutate(ctx context.Context, id string, fn func(o *Order, now time.Time) (bool, error)) (*Order, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	now := s.now().UTC()
	return s.repo.Update(ctx, id, func(o *Order) (bool, error) {
		changed, err := fn(o, now)
		if err != nil || !changed {
			return false, err
		}
		o.UpdatedAt = now
		return true, nil
	})
}

// mutateByToken validates the token against the stored state on every
// call, then applies fn. Expiry is checked before the terminal lock.
func (s *Service) mutateByToken(ctx context.Context, token string, fn func(o *Order, now time.Time)) (*Order, error) {
	current, err := s.GetOrderByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	digest := TokenDigest(token)

	updated, err := s.mutate(ctx, current.ID, func(o *Order, now time.Time) (bool, error) {
		if o.QRTokenDigest != digest {
			return false, ErrInvalidToken
		}
		if o.QRExpiresAt == nil || now.After(*o.QRExpiresAt) {
			return false, ErrTokenExpired
		}
		if o.Status.Terminal() {
			return false, ErrTerminal
		}
		fn(o, now)
		if o.QRUsedAt == nil {
			used := now
			o.QRUsedAt = &used
		}
		return true, nil
	})
	if errors.Is(err, ErrOrderNotFound) {
		return nil, ErrInvalidToken
	}
	return updated, err
}

func (s *Service) publish(ctx context.Context, old Status, o *Order) {
	if s.publisher == nil {
		return
	}

	event := OrderStatusChanged{
		EventID:   uuid.NewString(),
		Type:      EventOrderStatusChanged,
		OrderID:   o.ID,
		OldStatus: old,
		NewStatus: o.Status,
		ChangedAt: o.UpdatedAt,
		Order:     o.Clone(),
	}
	// The change is already committed, so publishing outlives the caller.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, o.ID, event); err != nil {
		s.metrics.ObservePublishFailure(EventOrderStatusChanged)
		s.logger.Warn("failed to publish status change",
			slog.String("order_id", o.ID),
			slog.String("status", string(o.Status)),
			slog.String("error", err.Error()))
	}
}

func scannedBy(who string) string {
	if who == "" {
		return "courier"
	}
	return who
}

// Package scan is the courier-facing entry point. Possession of a label
// token is the only credential; every call revalidates it.
package scan

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/vexokart/internal/domain/order"
	"github.com/example/vexokart/internal/metrics"
)

type Action string

const (
	ActionDelivered      Action = "delivered"
	ActionOutForDelivery Action = "out_for_delivery"
	ActionCancelled      Action = "cancelled"
	ActionFailedAttempt  Action = "failed_attempt"
)

// Actions lists what a courier may do, in display order.
var Actions = []Action{ActionOutForDelivery, ActionDelivered, ActionFailedAttempt, ActionCancelled}

var ErrUnknownAction = errors.New("unknown scan action")

var actionStatus = map[Action]order.Status{
	ActionDelivered:      order.StatusDelivered,
	ActionOutForDelivery: order.StatusOutForDelivery,
	ActionCancelled:      order.StatusCancelled,
}

// Result is rendered directly to the courier.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// View is what a courier sees after opening a label link.
type View struct {
	OrderID   string        `json:"order_id"`
	Status    order.Status  `json:"status"`
	ShipTo    order.Address `json:"ship_to"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	Actions   []Action      `json:"actions"`
}

// OrderStore is the subset of order.Service the gateway drives.
type OrderStore interface {
	ApplyScan(ctx context.Context, in order.ScanInput) (string, error)
	RecordFailedAttempt(ctx context.Context, in order.ScanInput) (string, error)
	GetOrderByToken(ctx context.Context, token string) (*order.Order, error)
}

type Gateway struct {
	orders  OrderStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewGateway(orders OrderStore, logger *slog.Logger, m *metrics.Metrics) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		orders:  orders,
		logger:  logger.With(slog.String("component", "scan")),
		metrics: m,
		now:     time.Now,
	}
}

// Apply performs action on the order token unlocks. The returned error is
// the underlying sentinel; Result always carries a displayable message.
func (g *Gateway) Apply(ctx context.Context, token string, action Action, note, scannedBy string) (Result, error) {
	in := order.ScanInput{Token: token, Note: note, ScannedBy: scannedBy}

	var msg string
	var err error
	switch action {
	case ActionFailedAttempt:
		msg, err = g.orders.RecordFailedAttempt(ctx, in)
	default:
		status, ok := actionStatus[action]
		if !ok {
			err = ErrUnknownAction
			break
		}
		in.Status = status
		msg, err = g.orders.ApplyScan(ctx, in)
	}

	if err != nil {
		g.metrics.ObserveScan(string(action), resultLabel(err))
		g.logger.Info("scan rejected",
			slog.String("action", string(action)),
			slog.String("error", err.Error()))
		return Result{Success: false, Message: failureMessage(err)}, err
	}

	g.metrics.ObserveScan(string(action), "ok")
	return Result{Success: true, Message: msg}, nil
}

// Lookup resolves token for display. Expired or terminal orders are
// reported as failures so the page never offers actions that will fail.
func (g *Gateway) Lookup(ctx context.Context, token string) (*View, Result, error) {
	o, err := g.orders.GetOrderByToken(ctx, token)
	if err != nil {
		return nil, Result{Message: failureMessage(err)}, err
	}
	if o.QRExpiresAt == nil || g.now().After(*o.QRExpiresAt) {
		return nil, Result{Message: failureMessage(order.ErrTokenExpired)}, order.ErrTokenExpired
	}

	view := &View{
		OrderID:   o.ID,
		Status:    o.Status,
		ShipTo:    o.ShippingAddress,
		ExpiresAt: o.QRExpiresAt,
		Actions:   Actions,
	}
	if o.Status.Terminal() {
		view.Actions = nil
		return view, Result{Message: failureMessage(order.ErrTerminal)}, order.ErrTerminal
	}
	return view, Result{Success: true, Message: "Order " + o.ID + " is " + string(o.Status)}, nil
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, order.ErrInvalidToken):
		return "This label link is not valid."
	case errors.Is(err, order.ErrTokenExpired):
		return "This label link has expired. Ask the seller for a new label."
	case errors.Is(err, order.ErrTerminal):
		return "This order is already delivered or cancelled."
	case errors.Is(err, ErrUnknownAction):
		return "That action is not available from a label scan."
	default:
		return "Something went wrong. Please try again."
	}
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, order.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, order.ErrTokenExpired):
		return "expired"
	case errors.Is(err, order.ErrTerminal):
		return "terminal"
	case errors.Is(err, ErrUnknownAction):
		return "unknown_action"
	default:
		return "error"
	}
}

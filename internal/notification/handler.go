package notification

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/example/vexokart/internal/directory"
	"github.com/example/vexokart/internal/domain/order"
)

// Notifier is satisfied by Dispatcher.
type Notifier interface {
	Notify(ctx context.Context, o *order.Order, user *directory.User)
}

// Handler processes bus events for sending notifications
type Handler struct {
	notifier  Notifier
	directory directory.Directory
	logger    *slog.Logger
}

func NewHandler(notifier Notifier, dir directory.Directory, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		notifier:  notifier,
		directory: dir,
		logger:    logger.With(slog.String("component", "notifier")),
	}
}

// HandleEvent processes an event from any bus
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event order.OrderStatusChanged
	if err := json.Unmarshal(value, &event); err != nil {
		h.logger.Error("failed to unmarshal event", slog.String("error", err.Error()))
		return err
	}

	if event.Type != order.EventOrderStatusChanged {
		return nil
	}
	if event.Order == nil {
		h.logger.Warn("status event without order snapshot", slog.String("order_id", event.OrderID))
		return nil
	}

	h.logger.Info("processing status change",
		slog.String("order_id", event.OrderID),
		slog.String("old_status", string(event.OldStatus)),
		slog.String("new_status", string(event.NewStatus)))

	user := h.resolveUser(ctx, event.Order)
	h.notifier.Notify(ctx, event.Order, user)
	return nil
}

// resolveUser looks the shopper up, falling back to what the order itself
// carries so a missing account never blocks delivery.
func (h *Handler) resolveUser(ctx context.Context, o *order.Order) *directory.User {
	fallback := fallbackUser(o)
	if h.directory == nil {
		return fallback
	}

	user, err := h.directory.FindUserByEmail(ctx, o.UserEmail)
	if err != nil {
		if !errors.Is(err, directory.ErrUserNotFound) {
			h.logger.Warn("user lookup failed",
				slog.String("email", o.UserEmail),
				slog.String("error", err.Error()))
		}
		return fallback
	}
	if user.Phone == "" {
		user.Phone = fallback.Phone
	}
	if user.Name == "" {
		user.Name = fallback.Name
	}
	return user
}

// fallbackUser is the recipient the order itself describes.
func fallbackUser(o *order.Order) *directory.User {
	return &directory.User{
		Email: o.UserEmail,
		Name:  o.ShippingAddress.FullName,
		Phone: o.ShippingAddress.Phone,
	}
}

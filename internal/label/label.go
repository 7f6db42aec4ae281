// Package label builds the courier link printed on a shipping label.
package label

import (
	"net/url"
	"strings"
	"time"

	"github.com/example/vexokart/internal/domain/order"
)

type Label struct {
	OrderID   string    `json:"order_id"`
	ScanURL   string    `json:"scan_url"`
	ExpiresAt time.Time `json:"expires_at"`

	ShipTo      order.Address `json:"ship_to"`
	CourierName string        `json:"courier_name,omitempty"`
	TrackingID  string        `json:"tracking_id,omitempty"`
}

type Builder struct {
	BaseURL string
}

// ScanURL returns <base>/scan/<token>.
func (b Builder) ScanURL(token string) string {
	return strings.TrimRight(b.BaseURL, "/") + "/scan/" + url.PathEscape(token)
}

func (b Builder) Build(o *order.Order, token order.Token) Label {
	return Label{
		OrderID:     o.ID,
		ScanURL:     b.ScanURL(token.Value),
		ExpiresAt:   token.ExpiresAt,
		ShipTo:      o.ShippingAddress,
		CourierName: o.CourierName,
		TrackingID:  o.TrackingID,
	}
}

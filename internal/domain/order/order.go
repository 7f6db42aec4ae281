package order

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPlaced         Status = "Placed"
	StatusConfirmed      Status = "Confirmed"
	StatusPacked         Status = "Packed"
	StatusShipped        Status = "Shipped"
	StatusOutForDelivery Status = "Out for Delivery"
	StatusDelivered      Status = "Delivered"
	StatusCancelled      Status = "Cancelled"
)

// Sequence lists the fulfillment statuses in their nominal order.
// Cancelled is a side-state and is not part of the sequence.
var Sequence = []Status{
	StatusPlaced,
	StatusConfirmed,
	StatusPacked,
	StatusShipped,
	StatusOutForDelivery,
	StatusDelivered,
}

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrEmptyOrder    = errors.New("order must have at least one item")
	ErrMissingEmail  = errors.New("order must have a user email")
	ErrInvalidItem   = errors.New("line items need a positive quantity and a non-negative price")
	ErrInvalidStatus = errors.New("invalid order status")
	ErrTerminal      = errors.New("order is already delivered or cancelled")
	ErrInvalidToken  = errors.New("invalid or unknown scan token")
	ErrTokenExpired  = errors.New("scan token has expired")
)

// ParseStatus accepts the display form ("Out for Delivery") of a status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	return s == StatusCancelled || slices.Contains(Sequence, s)
}

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	ImageURL  string          `json:"image_url,omitempty"`
}

type Address struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type StatusEntry struct {
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
}

type ScanOutcome string

const (
	OutcomeStatusUpdate  ScanOutcome = "status_update"
	OutcomeAttemptFailed ScanOutcome = "delivery_attempt_failed"
)

type ScanLog struct {
	Status    Status      `json:"status"`
	Outcome   ScanOutcome `json:"outcome"`
	Note      string      `json:"note,omitempty"`
	ScannedBy string      `json:"scanned_by"`
	ScannedAt time.Time   `json:"scanned_at"`
}

type Order struct {
	ID              string          `json:"id"`
	UserEmail       string          `json:"user_email"`
	Items           []LineItem      `json:"items"`
	Total           decimal.Decimal `json:"total"`
	Status          Status          `json:"status"`
	StatusHistory   []StatusEntry   `json:"status_history"`
	ShippingAddress Address         `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentID       string          `json:"payment_id,omitempty"`
	CourierName     string          `json:"courier_name,omitempty"`
	TrackingID      string          `json:"tracking_id,omitempty"`
	QRTokenDigest   string          `json:"qr_token_digest,omitempty"`
	QRExpiresAt     *time.Time      `json:"qr_expires_at,omitempty"`
	QRUsedAt        *time.Time      `json:"qr_used_at,omitempty"`
	ScanLogs        []ScanLog       `json:"scan_logs"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
}

// Details carries the optional fields an operator supplies with a status change.
type Details struct {
	CourierName string `json:"courier_name,omitempty"`
	TrackingID  string `json:"tracking_id,omitempty"`
}

// Clone returns a deep copy so snapshots handed to other goroutines
// never alias the repository's state.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	c.StatusHistory = append([]StatusEntry(nil), o.StatusHistory...)
	c.ScanLogs = append([]ScanLog(nil), o.ScanLogs...)
	if o.QRExpiresAt != nil {
		t := *o.QRExpiresAt
		c.QRExpiresAt = &t
	}
	if o.QRUsedAt != nil {
		t := *o.QRUsedAt
		c.QRUsedAt = &t
	}
	return &c
}

// HasProduct reports whether any line item references one of productIDs.
func (o *Order) HasProduct(productIDs map[string]struct{}) bool {
	for _, item := range o.Items {
		if _, ok := productIDs[item.ProductID]; ok {
			return true
		}
	}
	return false
}

// transition appends a history entry and moves the order to status.
// Timestamps never go backwards even if the clock does.
func (o *Order) transition(status Status, now time.Time) {
	if n := len(o.StatusHistory); n > 0 && now.Before(o.StatusHistory[n-1].At) {
		now = o.StatusHistory[n-1].At
	}
	o.StatusHistory = append(o.StatusHistory, StatusEntry{Status: status, At: now})
	o.Status = status
}

// mergeDetails copies non-empty detail fields; absent values never clear.
func (o *Order) mergeDetails(d Details) bool {
	changed := false
	if d.CourierName != "" && d.CourierName != o.CourierName {
		o.CourierName = d.CourierName
		changed = true
	}
	if d.TrackingID != "" && d.TrackingID != o.TrackingID {
		o.TrackingID = d.TrackingID
		changed = true
	}
	return changed
}

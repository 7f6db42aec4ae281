package notification

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/example/vexokart/internal/directory"
	"github.com/example/vexokart/internal/domain/order"
	"github.com/example/vexokart/internal/email"
)

const (
	SMSPrefix    = "VexoKart: "
	SMSMaxLength = 160
)

// Content is the rendered message for one order status change.
type Content struct {
	Subject   string `json:"subject"`
	EmailHTML string `json:"email_html"`
	SMS       string `json:"sms"`
}

// ContentGenerator produces message content for an order update.
type ContentGenerator interface {
	Generate(ctx context.Context, o *order.Order, user *directory.User) (Content, error)
}

// FallbackContent renders the built-in templates. It never fails.
func FallbackContent(o *order.Order, user *directory.User) Content {
	var name string
	if user != nil {
		name = user.Name
	}
	if name == "" {
		name = o.ShippingAddress.FullName
	}
	if name == "" {
		name = "there"
	}

	return Content{
		Subject:   fmt.Sprintf("Order %s is now %s", shortID(o.ID), o.Status),
		EmailHTML: email.RenderStatusUpdate(statusEmailData(o, name)),
		SMS:       fallbackSMS(o),
	}
}

func fallbackSMS(o *order.Order) string {
	body := fmt.Sprintf("Your order %s is now %s.", shortID(o.ID), o.Status)
	if o.Status == order.StatusShipped && o.TrackingID != "" {
		body += fmt.Sprintf(" %s tracking %s.", o.CourierName, o.TrackingID)
	}
	return body
}

// normalize enforces the SMS prefix and length cap on generated content.
func normalize(c Content) Content {
	sms := strings.TrimSpace(c.SMS)
	if !strings.HasPrefix(sms, SMSPrefix) {
		sms = SMSPrefix + sms
	}
	if utf8.RuneCountInString(sms) > SMSMaxLength {
		runes := []rune(sms)
		sms = string(runes[:SMSMaxLength])
	}
	c.SMS = sms
	return c
}

func (c Content) empty() bool {
	return strings.TrimSpace(c.Subject) == "" ||
		strings.TrimSpace(c.EmailHTML) == "" ||
		strings.TrimSpace(c.SMS) == ""
}

func statusEmailData(o *order.Order, name string) email.StatusUpdate {
	items := make([]email.OrderItem, len(o.Items))
	for i, item := range o.Items {
		items[i] = email.OrderItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
		}
	}
	return email.StatusUpdate{
		CustomerName: name,
		OrderID:      o.ID,
		Status:       string(o.Status),
		Total:        o.Total.StringFixed(2),
		CourierName:  o.CourierName,
		TrackingID:   o.TrackingID,
		Items:        items,
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

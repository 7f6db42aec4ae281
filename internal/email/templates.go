package email

import (
	"fmt"
	"html"
	"strings"
)

// OrderItem represents an item in an order for email purposes
type OrderItem struct {
	Name      string
	Quantity  int
	UnitPrice string
}

// StatusUpdate is the data behind an order status email.
type StatusUpdate struct {
	CustomerName string
	OrderID      string
	Status       string
	Total        string
	CourierName  string
	TrackingID   string
	Items        []OrderItem
}

// RenderStatusUpdate builds the HTML body for an order status email
func RenderStatusUpdate(d StatusUpdate) string {
	var itemsHTML strings.Builder
	for _, item := range d.Items {
		itemsHTML.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">₹%s</td>
			</tr>`,
			html.EscapeString(item.Name),
			item.Quantity,
			html.EscapeString(item.UnitPrice),
		))
	}

	var tracking string
	if d.TrackingID != "" {
		tracking = fmt.Sprintf(
			`<p style="margin: 20px 0 0 0;">Shipped with <strong>%s</strong>, tracking number <span style="font-family: monospace;">%s</span>.</p>`,
			html.EscapeString(d.CourierName), html.EscapeString(d.TrackingID))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: linear-gradient(135deg, #667eea 0%%, #764ba2 100%%); padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">Your order is %s</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">Hi %s, here is the latest on your VexoKart order.</p>

		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Order number</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
		</div>
		%s

		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left; font-weight: 600;">Item</th>
					<th style="padding: 12px; text-align: center; font-weight: 600;">Qty</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">Price</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
		</table>

		<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px;">
			<span style="font-size: 14px; color: #666;">Total</span>
			<span style="font-size: 24px; font-weight: bold; color: #667eea; margin-left: 10px;">₹%s</span>
		</div>

		<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			This message was sent automatically. Contact support if you have any questions.
		</p>
	</div>
</body>
</html>`,
		html.EscapeString(d.Status),
		html.EscapeString(d.CustomerName),
		html.EscapeString(d.OrderID),
		tracking,
		itemsHTML.String(),
		html.EscapeString(d.Total),
	)
}

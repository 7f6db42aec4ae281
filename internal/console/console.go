// Package console implements the admin and vendor order screens' actions.
package console

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/vexokart/internal/catalog"
	"github.com/example/vexokart/internal/domain/order"
	"github.com/example/vexokart/internal/label"
)

var (
	ErrForbidden               = errors.New("order does not contain any of this vendor's products")
	ErrShippingDetailsRequired = errors.New("courier name and tracking id are required to mark an order shipped")
)

// OrderStore is the subset of order.Service the console drives.
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*order.Order, error)
	ListOrders(ctx context.Context) ([]*order.Order, error)
	SetStatus(ctx context.Context, id string, status order.Status, details order.Details) (*order.Order, error)
	MintShippingLabelToken(ctx context.Context, id string) (order.Token, error)
}

type Console struct {
	orders  OrderStore
	catalog catalog.Catalog
	labels  label.Builder
}

func New(orders OrderStore, cat catalog.Catalog, labels label.Builder) *Console {
	return &Console{orders: orders, catalog: cat, labels: labels}
}

func (c *Console) Orders(ctx context.Context) ([]*order.Order, error) {
	return c.orders.ListOrders(ctx)
}

// AdminSetStatus applies status. Marking an order shipped needs courier
// details unless the order already carries a tracking id.
func (c *Console) AdminSetStatus(ctx context.Context, id string, status order.Status, details order.Details) (*order.Order, error) {
	if status == order.StatusShipped {
		current, err := c.orders.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.TrackingID == "" && (details.CourierName == "" || details.TrackingID == "") {
			return nil, ErrShippingDetailsRequired
		}
	}
	return c.orders.SetStatus(ctx, id, status, details)
}

// VendorOrders lists orders with at least one of the vendor's products.
func (c *Console) VendorOrders(ctx context.Context, vendorID string) ([]*order.Order, error) {
	productIDs, err := c.catalog.VendorProductIDs(ctx, vendorID)
	if err != nil {
		return nil, fmt.Errorf("load vendor catalog: %w", err)
	}
	if len(productIDs) == 0 {
		return []*order.Order{}, nil
	}

	all, err := c.orders.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]*order.Order, 0)
	for _, o := range all {
		if o.HasProduct(productIDs) {
			result = append(result, o)
		}
	}
	return result, nil
}

func (c *Console) VendorSetStatus(ctx context.Context, vendorID, id string, status order.Status, details order.Details) (*order.Order, error) {
	if err := c.authorizeVendor(ctx, vendorID, id); err != nil {
		return nil, err
	}
	return c.AdminSetStatus(ctx, id, status, details)
}

// MintLabel issues a new scan token and the label that carries it.
func (c *Console) MintLabel(ctx context.Context, id string) (label.Label, error) {
	token, err := c.orders.MintShippingLabelToken(ctx, id)
	if err != nil {
		return label.Label{}, err
	}
	o, err := c.orders.GetOrder(ctx, id)
	if err != nil {
		return label.Label{}, err
	}
	return c.labels.Build(o, token), nil
}

func (c *Console) VendorMintLabel(ctx context.Context, vendorID, id string) (label.Label, error) {
	if err := c.authorizeVendor(ctx, vendorID, id); err != nil {
		return label.Label{}, err
	}
	return c.MintLabel(ctx, id)
}

func (c *Console) authorizeVendor(ctx context.Context, vendorID, id string) error {
	o, err := c.orders.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	productIDs, err := c.catalog.VendorProductIDs(ctx, vendorID)
	if err != nil {
		return fmt.Errorf("load vendor catalog: %w", err)
	}
	if !o.HasProduct(productIDs) {
		return ErrForbidden
	}
	return nil
}

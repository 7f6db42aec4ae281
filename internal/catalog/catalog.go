// Package catalog answers which products belong to a vendor.
package catalog

import (
	"context"
	"sync"
)

type Catalog interface {
	VendorProductIDs(ctx context.Context, vendorID string) (map[string]struct{}, error)
}

type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[string]string // product id -> vendor id
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{products: make(map[string]string)}
}

func (c *MemoryCatalog) Assign(productID, vendorID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[productID] = vendorID
}

func (c *MemoryCatalog) VendorProductIDs(ctx context.Context, vendorID string) (map[string]struct{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make(map[string]struct{})
	for productID, owner := range c.products {
		if owner == vendorID {
			ids[productID] = struct{}{}
		}
	}
	return ids, nil
}

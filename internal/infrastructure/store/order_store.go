package store

import (
	"context"
	"sort"
	"sync"

	"github.com/example/vexokart/internal/domain/order"
)

// MemoryOrderStore keeps orders in process memory. It is the default
// repository for local runs and tests.
type MemoryOrderStore struct {
	mu       sync.RWMutex
	orders   map[string]*order.Order
	byDigest map[string]string // token digest -> order id
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{
		orders:   make(map[string]*order.Order),
		byDigest: make(map[string]string),
	}
}

func (s *MemoryOrderStore) Create(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID]; exists {
		return ErrDuplicateOrder
	}
	o.Version = 1
	s.orders[o.ID] = o.Clone()
	if o.QRTokenDigest != "" {
		s.byDigest[o.QRTokenDigest] = o.ID
	}
	return nil
}

func (s *MemoryOrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (s *MemoryOrderStore) GetByTokenDigest(ctx context.Context, digest string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byDigest[digest]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return s.orders[id].Clone(), nil
}

func (s *MemoryOrderStore) Update(ctx context.Context, id string, fn func(o *order.Order) (bool, error)) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}

	working := current.Clone()
	changed, err := fn(working)
	if err != nil {
		return nil, err
	}
	if !changed {
		return current.Clone(), nil
	}

	working.Version = current.Version + 1
	if current.QRTokenDigest != working.QRTokenDigest {
		delete(s.byDigest, current.QRTokenDigest)
		if working.QRTokenDigest != "" {
			s.byDigest[working.QRTokenDigest] = id
		}
	}
	s.orders[id] = working
	return working.Clone(), nil
}

// List returns every order, oldest first.
func (s *MemoryOrderStore) List(ctx context.Context) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		result = append(result, o.Clone())
	}
	sortOrders(result)
	return result, nil
}

func sortOrders(orders []*order.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}

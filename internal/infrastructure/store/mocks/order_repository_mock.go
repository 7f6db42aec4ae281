package mocks

import (
	"context"
	"sync"

	"github.com/example/vexokart/internal/domain/order"
	"github.com/example/vexokart/internal/infrastructure/store"
)

// MockOrderRepository wraps the memory store and records calls for tests.
type MockOrderRepository struct {
	mu    sync.Mutex
	inner *store.MemoryOrderStore

	// For tracking calls in tests
	CreateCalls []*order.Order
	UpdateCalls []string
	CreateErr   error
	UpdateErr   error
	GetErr      error
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{inner: store.NewMemoryOrderStore()}
}

func (m *MockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	m.CreateCalls = append(m.CreateCalls, o.Clone())
	err := m.CreateErr
	m.mu.Unlock()

	if err != nil {
		return err
	}
	return m.inner.Create(ctx, o)
}

func (m *MockOrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	err := m.GetErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return m.inner.Get(ctx, id)
}

func (m *MockOrderRepository) GetByTokenDigest(ctx context.Context, digest string) (*order.Order, error) {
	return m.inner.GetByTokenDigest(ctx, digest)
}

func (m *MockOrderRepository) Update(ctx context.Context, id string, fn func(o *order.Order) (bool, error)) (*order.Order, error) {
	m.mu.Lock()
	m.UpdateCalls = append(m.UpdateCalls, id)
	err := m.UpdateErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return m.inner.Update(ctx, id, fn)
}

func (m *MockOrderRepository) List(ctx context.Context) ([]*order.Order, error) {
	return m.inner.List(ctx)
}

// SetOrder stores an order directly, bypassing the recorded calls.
func (m *MockOrderRepository) SetOrder(o *order.Order) error {
	return m.inner.Create(context.Background(), o)
}

// Reset clears recorded calls and injected errors
func (m *MockOrderRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls = nil
	m.UpdateCalls = nil
	m.CreateErr = nil
	m.UpdateErr = nil
	m.GetErr = nil
}

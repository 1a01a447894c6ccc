package store

import (
	"sync"

	"github.com/efreitasn/stockexchange/internal/domain"
)

// OrderStore is a thread-safe in-memory store for orders,
// with a primary index by order_id and the session's creation order.
type OrderStore struct {
	mu      sync.RWMutex
	orders  map[string]*domain.Order
	created []*domain.Order // append-only
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders: make(map[string]*domain.Order),
	}
}

// Create adds an order to the store.
func (s *OrderStore) Create(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.OrderID]; exists {
		return
	}
	s.orders[o.OrderID] = o
	s.created = append(s.created, o)
}

// Get retrieves an order by ID. It returns
// domain.ErrOrderNotFound if the order does not exist.
func (s *OrderStore) Get(id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

// List returns orders in creation order. If status is non-nil, only
// orders currently in that status are included.
func (s *OrderStore) List(status *domain.OrderStatus) []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Order, 0, len(s.created))
	for _, o := range s.created {
		if status != nil && o.Status() != *status {
			continue
		}
		result = append(result, o)
	}
	return result
}

// Count returns the number of stored orders.
func (s *OrderStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.created)
}

package store

import (
	"sort"
	"sync"

	"github.com/efreitasn/stockexchange/internal/domain"
)

// StockStore is a thread-safe in-memory catalog of inventory records,
// keyed by symbol.
type StockStore struct {
	mu     sync.RWMutex
	stocks map[string]*domain.Stock
}

// NewStockStore creates an empty StockStore.
func NewStockStore() *StockStore {
	return &StockStore{
		stocks: make(map[string]*domain.Stock),
	}
}

// Create adds a stock to the catalog. It returns
// domain.ErrStockAlreadyExists if the symbol is already registered.
func (s *StockStore) Create(st *domain.Stock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stocks[st.Symbol]; exists {
		return domain.ErrStockAlreadyExists
	}
	s.stocks[st.Symbol] = st
	return nil
}

// Get retrieves a stock by symbol. It returns
// domain.ErrStockNotFound if the symbol is unknown.
func (s *StockStore) Get(symbol string) (*domain.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stocks[symbol]
	if !ok {
		return nil, domain.ErrStockNotFound
	}
	return st, nil
}

// List returns every stock ordered by symbol.
func (s *StockStore) List() []*domain.Stock {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Stock, 0, len(s.stocks))
	for _, st := range s.stocks {
		result = append(result, st)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result
}

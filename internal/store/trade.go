package store

import (
	"sync"

	"github.com/efreitasn/stockexchange/internal/domain"
)

// TradeStore is a thread-safe in-memory store for trades. Trades are
// append-only and chronological, indexed by each symbol they touch.
type TradeStore struct {
	mu       sync.RWMutex
	all      []*domain.Trade
	bySymbol map[string][]*domain.Trade // symbol → trades (chronological)
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		bySymbol: make(map[string][]*domain.Trade),
	}
}

// Append records a trade under both its buy and sell symbols.
func (s *TradeStore) Append(t *domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.all = append(s.all, t)
	s.bySymbol[t.BuySymbol] = append(s.bySymbol[t.BuySymbol], t)
	if t.SellSymbol != t.BuySymbol {
		s.bySymbol[t.SellSymbol] = append(s.bySymbol[t.SellSymbol], t)
	}
}

// GetBySymbol returns all trades touching a symbol in chronological order.
// Returns an empty slice if no trades exist for the symbol.
func (s *TradeStore) GetBySymbol(symbol string) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.bySymbol[symbol]
	if trades == nil {
		return []*domain.Trade{}
	}

	// Return a copy to avoid callers mutating the internal slice.
	result := make([]*domain.Trade, len(trades))
	copy(result, trades)
	return result
}

// All returns every trade in chronological order.
func (s *TradeStore) All() []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Trade, len(s.all))
	copy(result, s.all)
	return result
}

package domain

import (
	"fmt"
	"sync"
)

// Stock is the shared inventory record for a single symbol. Symbol and
// PricePerShare are fixed for the session; the available share count only
// changes through Reserve and Release.
type Stock struct {
	Symbol        string
	PricePerShare int64

	mu        sync.Mutex
	available int64
}

// NewStock creates an inventory record. Price must be positive and the
// initial quantity non-negative.
func NewStock(symbol string, pricePerShare, initialQty int64) (*Stock, error) {
	if symbol == "" {
		return nil, &ValidationError{Message: "symbol is required"}
	}
	if pricePerShare <= 0 {
		return nil, &ValidationError{
			Message: fmt.Sprintf("price_per_share for %s must be a positive integer", symbol),
		}
	}
	if initialQty < 0 {
		return nil, &ValidationError{
			Message: fmt.Sprintf("initial quantity for %s must be >= 0", symbol),
		}
	}
	return &Stock{
		Symbol:        symbol,
		PricePerShare: pricePerShare,
		available:     initialQty,
	}, nil
}

// Reserve decrements the available count by qty when enough shares are
// available. It returns false and leaves the record untouched otherwise.
func (s *Stock) Reserve(qty int64) bool {
	if qty <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if qty > s.available {
		return false
	}
	s.available -= qty
	return true
}

// Release adds qty shares back. There is no upper bound.
func (s *Stock) Release(qty int64) {
	if qty <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available += qty
}

// Available returns the current available share count.
func (s *Stock) Available() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

package engine

import (
	"fmt"
	"sync"

	"github.com/efreitasn/stockexchange/internal/domain"
	"github.com/google/btree"
)

// OrderBookEntry represents a single order resting on the book.
type OrderBookEntry struct {
	Seq   uint64
	Order *domain.Order
}

// entryLess orders entries by insertion sequence, so Ascend walks a side
// head to tail.
func entryLess(a, b OrderBookEntry) bool {
	return a.Seq < b.Seq
}

// OrderBook holds the pending BUY and SELL orders of the session in two
// FIFO sides. Placement, the matching scan and the eviction of a matched
// pair happen under one lock, so two workers can never claim the same
// counterpart.
type OrderBook struct {
	mu      sync.RWMutex
	buys    *btree.BTreeG[OrderBookEntry]
	sells   *btree.BTreeG[OrderBookEntry]
	index   map[string]OrderBookEntry // order_id → entry
	nextSeq uint64
}

// NewOrderBook creates an empty order book.
func NewOrderBook() *OrderBook {
	const degree = 32
	return &OrderBook{
		buys:  btree.NewG[OrderBookEntry](degree, entryLess),
		sells: btree.NewG[OrderBookEntry](degree, entryLess),
		index: make(map[string]OrderBookEntry),
	}
}

// PlaceAndMatch appends a created order to the tail of its side and scans
// the opposite side head to tail for the first structural match (equal
// quantity, equal referenced price). On a match both orders are marked
// matched, evicted and signalled, and the counterpart is returned.
// Without a match the order stays resting and nil is returned.
func (ob *OrderBook) PlaceAndMatch(order *domain.Order) (*domain.Order, error) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	if !order.MarkPlaced() {
		return nil, fmt.Errorf("place order %s in status %s: %w",
			order.OrderID, order.Status(), domain.ErrInvalidTransition)
	}

	ob.nextSeq++
	entry := OrderBookEntry{Seq: ob.nextSeq, Order: order}
	ob.side(order.Side).ReplaceOrInsert(entry)
	ob.index[order.OrderID] = entry

	var counterpart *domain.Order
	ob.side(order.Side.Opposite()).Ascend(func(candidate OrderBookEntry) bool {
		if order.Matches(candidate.Order) {
			counterpart = candidate.Order
			return false
		}
		return true
	})
	if counterpart == nil {
		return nil, nil
	}

	ob.remove(order.OrderID)
	ob.remove(counterpart.OrderID)
	order.MarkMatched(counterpart.OrderID)
	counterpart.MarkMatched(order.OrderID)
	return counterpart, nil
}

// Pending returns the resting orders of one side in FIFO order.
func (ob *OrderBook) Pending(side domain.OrderSide) []*domain.Order {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	tree := ob.side(side)
	result := make([]*domain.Order, 0, tree.Len())
	tree.Ascend(func(entry OrderBookEntry) bool {
		result = append(result, entry.Order)
		return true
	})
	return result
}

// Contains reports whether the order is currently resting on the book.
func (ob *OrderBook) Contains(orderID string) bool {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	_, ok := ob.index[orderID]
	return ok
}

// BuyCount returns the number of resting BUY orders.
func (ob *OrderBook) BuyCount() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.buys.Len()
}

// SellCount returns the number of resting SELL orders.
func (ob *OrderBook) SellCount() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.sells.Len()
}

func (ob *OrderBook) side(s domain.OrderSide) *btree.BTreeG[OrderBookEntry] {
	if s == domain.OrderSideBuy {
		return ob.buys
	}
	return ob.sells
}

// remove deletes an order by id using the secondary index. The caller
// must hold the write lock.
func (ob *OrderBook) remove(orderID string) {
	entry, ok := ob.index[orderID]
	if !ok {
		return
	}
	delete(ob.index, orderID)
	ob.side(entry.Order.Side).Delete(entry)
}

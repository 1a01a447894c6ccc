package domain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// OrderSide indicates whether an order buys or sells.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Opposite returns the side an order of this side matches against.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusCreated  OrderStatus = "created"
	OrderStatusPlaced   OrderStatus = "placed"
	OrderStatusMatched  OrderStatus = "matched"
	OrderStatusExecuted OrderStatus = "executed"
	OrderStatusUnfilled OrderStatus = "unfilled"
	OrderStatusRejected OrderStatus = "rejected"
)

// IsTerminal reports whether no further transition can leave this status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusExecuted, OrderStatusUnfilled, OrderStatusRejected:
		return true
	}
	return false
}

// Order is a BUY or SELL instruction for Quantity shares of Stock.
//
// Identity fields are set once by NewOrder. Status and the match
// back-reference are guarded by the order's own lock; the done channel is
// closed exactly once, when the order settles (matched, unfilled or
// rejected).
type Order struct {
	OrderID   string
	Side      OrderSide
	Quantity  int64
	Stock     *Stock
	CreatedAt time.Time

	mu          sync.Mutex
	status      OrderStatus
	placedAt    time.Time
	matchedWith string
	done        chan struct{}
	settleOnce  sync.Once
}

// NewOrder creates an order in the created state with a fresh identifier.
func NewOrder(stock *Stock, side OrderSide, quantity int64) (*Order, error) {
	if stock == nil {
		return nil, &ValidationError{Message: "stock is required"}
	}
	if side != OrderSideBuy && side != OrderSideSell {
		return nil, &ValidationError{
			Message: fmt.Sprintf("side must be BUY or SELL, got %q", side),
		}
	}
	if quantity <= 0 {
		return nil, &ValidationError{Message: "quantity must be a positive integer"}
	}
	return &Order{
		OrderID:   uuid.New().String(),
		Side:      side,
		Quantity:  quantity,
		Stock:     stock,
		CreatedAt: time.Now(),
		status:    OrderStatusCreated,
		done:      make(chan struct{}),
	}, nil
}

// Status returns the current lifecycle state.
func (o *Order) Status() OrderStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// PlacedAt returns when the order entered the book, or the zero time if
// it never did.
func (o *Order) PlacedAt() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.placedAt
}

// MatchedWith returns the counterpart's id, or "" when unmatched.
func (o *Order) MatchedWith() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.matchedWith
}

// Executed reports the executed flag: true once a match has been recorded.
func (o *Order) Executed() bool {
	s := o.Status()
	return s == OrderStatusMatched || s == OrderStatusExecuted
}

// Matches reports whether candidate is a structural match for o: opposite
// side, equal quantity, equal referenced price, and still resting unmatched.
func (o *Order) Matches(candidate *Order) bool {
	if candidate == o || candidate.Side != o.Side.Opposite() {
		return false
	}
	if candidate.Quantity != o.Quantity || candidate.Stock.PricePerShare != o.Stock.PricePerShare {
		return false
	}
	return candidate.Status() == OrderStatusPlaced
}

// MarkPlaced moves a created order onto the book.
func (o *Order) MarkPlaced() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status != OrderStatusCreated {
		return false
	}
	o.status = OrderStatusPlaced
	o.placedAt = time.Now()
	return true
}

// MarkMatched records the counterpart and settles the order.
func (o *Order) MarkMatched(counterpartID string) bool {
	if !o.transition(OrderStatusPlaced, OrderStatusMatched, counterpartID) {
		return false
	}
	o.settle()
	return true
}

// MarkExecuted completes a matched order.
func (o *Order) MarkExecuted() bool {
	return o.transition(OrderStatusMatched, OrderStatusExecuted, "")
}

// MarkUnfilled settles an order whose inventory reservation failed.
func (o *Order) MarkUnfilled() bool {
	if !o.transition(OrderStatusCreated, OrderStatusUnfilled, "") {
		return false
	}
	o.settle()
	return true
}

// MarkRejected settles an order refused at admission.
func (o *Order) MarkRejected() bool {
	if !o.transition(OrderStatusCreated, OrderStatusRejected, "") {
		return false
	}
	o.settle()
	return true
}

// Done returns a channel that is closed once the order has settled.
func (o *Order) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the order settles or ctx is done. It returns nil for a
// matched order, ErrInsufficientInventory for an unfilled one,
// ErrAdmissionRejected for a rejected one and ErrWaitInterrupted when ctx
// ends first.
func (o *Order) Wait(ctx context.Context) error {
	select {
	case <-o.done:
	case <-ctx.Done():
		select {
		case <-o.done:
		default:
			return fmt.Errorf("order %s: %w: %w", o.OrderID, ErrWaitInterrupted, ctx.Err())
		}
	}

	switch o.Status() {
	case OrderStatusUnfilled:
		return ErrInsufficientInventory
	case OrderStatusRejected:
		return ErrAdmissionRejected
	}
	return nil
}

func (o *Order) transition(from, to OrderStatus, counterpartID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status != from {
		return false
	}
	o.status = to
	if counterpartID != "" {
		o.matchedWith = counterpartID
	}
	return true
}

func (o *Order) settle() {
	o.settleOnce.Do(func() { close(o.done) })
}

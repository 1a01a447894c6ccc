package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/efreitasn/stockexchange/internal/domain"
	"github.com/efreitasn/stockexchange/internal/metrics"
)

// BookMonitor periodically inspects the book, publishes the resting order
// gauges and reports orders that have rested longer than stallAfter
// on the book without a counterpart. A zero stallAfter disables the
// reports. An order without a structural counterpart blocks its worker
// indefinitely; the monitor only makes that visible.
type BookMonitor struct {
	interval   time.Duration
	stallAfter time.Duration
	book       *OrderBook
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu       sync.Mutex
	reported map[string]bool // order_id → already reported as stalled
}

// NewBookMonitor creates a new BookMonitor with the given dependencies.
func NewBookMonitor(
	interval time.Duration,
	stallAfter time.Duration,
	book *OrderBook,
	m *metrics.Metrics,
	logger *slog.Logger,
) *BookMonitor {
	if m == nil {
		m = metrics.New(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BookMonitor{
		interval:   interval,
		stallAfter: stallAfter,
		book:       book,
		metrics:    m,
		logger:     logger,
		reported:   make(map[string]bool),
	}
}

// Start launches a background goroutine that ticks at the configured
// interval. It stops when ctx is cancelled.
func (bm *BookMonitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(bm.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				bm.tick(t)
			}
		}
	}()
}

// tick refreshes the gauges and returns the orders newly found stalled.
func (bm *BookMonitor) tick(now time.Time) []*domain.Order {
	var stalled []*domain.Order
	for _, side := range []domain.OrderSide{domain.OrderSideBuy, domain.OrderSideSell} {
		pending := bm.book.Pending(side)
		bm.metrics.RestingOrders.WithLabelValues(string(side)).Set(float64(len(pending)))

		if bm.stallAfter <= 0 {
			continue
		}
		for _, o := range pending {
			if now.Sub(o.PlacedAt()) < bm.stallAfter {
				continue
			}
			if bm.markReported(o.OrderID) {
				stalled = append(stalled, o)
			}
		}
	}

	for _, o := range stalled {
		bm.metrics.StalledOrders.Inc()
		bm.logger.Warn("order stalled",
			slog.String("order_id", o.OrderID),
			slog.String("side", string(o.Side)),
			slog.String("symbol", o.Stock.Symbol),
			slog.Int64("quantity", o.Quantity),
			slog.Duration("resting_for", now.Sub(o.PlacedAt())),
		)
	}
	return stalled
}

func (bm *BookMonitor) markReported(orderID string) bool {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if bm.reported[orderID] {
		return false
	}
	bm.reported[orderID] = true
	return true
}

// StalledCount returns how many orders have been reported as stalled.
// Useful for testing.
func (bm *BookMonitor) StalledCount() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return len(bm.reported)
}

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/efreitasn/stockexchange/internal/domain"
	"github.com/efreitasn/stockexchange/internal/metrics"
)

func TestBookMonitor_Tick_ReportsStalledOnce(t *testing.T) {
	book := NewOrderBook()
	m := metrics.New(nil)
	bm := NewBookMonitor(time.Second, time.Minute, book, m, discardLogger())

	s := newTestStock(t, "compC", 10, 5)
	lonely := newTestOrder(t, s, domain.OrderSideBuy, 1)
	book.PlaceAndMatch(lonely)

	if got := bm.tick(time.Now()); len(got) != 0 {
		t.Fatalf("expected no stalled orders before the threshold, got %d", len(got))
	}

	later := time.Now().Add(2 * time.Minute)
	stalled := bm.tick(later)
	if len(stalled) != 1 || stalled[0] != lonely {
		t.Fatalf("expected the lonely order to be stalled, got %d orders", len(stalled))
	}
	if got := bm.tick(later.Add(time.Minute)); len(got) != 0 {
		t.Errorf("expected a stalled order to be reported once, got %d again", len(got))
	}
	if bm.StalledCount() != 1 {
		t.Errorf("expected StalledCount 1, got %d", bm.StalledCount())
	}
	if got := testutil.ToFloat64(m.StalledOrders); got != 1 {
		t.Errorf("expected orders_stalled_total 1, got %v", got)
	}
}

func TestBookMonitor_Tick_PublishesRestingGauges(t *testing.T) {
	book := NewOrderBook()
	m := metrics.New(nil)
	bm := NewBookMonitor(time.Second, time.Hour, book, m, discardLogger())

	s := newTestStock(t, "compA", 50, 5)
	book.PlaceAndMatch(newTestOrder(t, s, domain.OrderSideBuy, 1))
	book.PlaceAndMatch(newTestOrder(t, s, domain.OrderSideBuy, 2))
	book.PlaceAndMatch(newTestOrder(t, s, domain.OrderSideSell, 3))

	bm.tick(time.Now())

	if got := testutil.ToFloat64(m.RestingOrders.WithLabelValues("BUY")); got != 2 {
		t.Errorf("expected 2 resting buys, got %v", got)
	}
	if got := testutil.ToFloat64(m.RestingOrders.WithLabelValues("SELL")); got != 1 {
		t.Errorf("expected 1 resting sell, got %v", got)
	}
}

func TestBookMonitor_Start_StopsOnCancel(t *testing.T) {
	book := NewOrderBook()
	bm := NewBookMonitor(5*time.Millisecond, time.Nanosecond, book, nil, discardLogger())

	s := newTestStock(t, "compA", 50, 5)
	book.PlaceAndMatch(newTestOrder(t, s, domain.OrderSideSell, 1))

	ctx, cancel := context.WithCancel(context.Background())
	bm.Start(ctx)

	deadline := time.Now().Add(time.Second)
	for bm.StalledCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	if bm.StalledCount() != 1 {
		t.Fatalf("expected the background ticker to report 1 stalled order, got %d", bm.StalledCount())
	}
}

func TestBookMonitor_Tick_ZeroStallAfterDisablesReports(t *testing.T) {
	book := NewOrderBook()
	m := metrics.New(nil)
	bm := NewBookMonitor(time.Second, 0, book, m, discardLogger())

	s := newTestStock(t, "compB", 30, 2)
	book.PlaceAndMatch(newTestOrder(t, s, domain.OrderSideBuy, 1))

	if got := bm.tick(time.Now().Add(time.Hour)); len(got) != 0 {
		t.Errorf("expected no stall reports, got %d", len(got))
	}
	if got := testutil.ToFloat64(m.RestingOrders.WithLabelValues("BUY")); got != 1 {
		t.Errorf("expected the gauge to still be published, got %v", got)
	}
}

func TestBookMonitor_Tick_MeasuresFromPlacement(t *testing.T) {
	book := NewOrderBook()
	bm := NewBookMonitor(time.Second, time.Minute, book, nil, discardLogger())

	s := newTestStock(t, "compA", 50, 5)
	o := newTestOrder(t, s, domain.OrderSideSell, 1)
	// Waited an hour in the admission queue before reaching the book.
	o.CreatedAt = time.Now().Add(-time.Hour)
	book.PlaceAndMatch(o)

	if got := bm.tick(time.Now()); len(got) != 0 {
		t.Fatalf("expected queue time not to count as resting time, got %d stalled", len(got))
	}
	if got := bm.tick(o.PlacedAt().Add(2 * time.Minute)); len(got) != 1 {
		t.Errorf("expected the order to stall two minutes after placement, got %d", len(got))
	}
}

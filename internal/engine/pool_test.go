package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/efreitasn/stockexchange/internal/domain"
	"github.com/efreitasn/stockexchange/internal/metrics"
)

// blockingProcessor signals when an order starts and holds it until
// released.
type blockingProcessor struct {
	started chan string
	release chan struct{}
}

func newBlockingProcessor() *blockingProcessor {
	return &blockingProcessor{
		started: make(chan string, 16),
		release: make(chan struct{}),
	}
}

func (p *blockingProcessor) Process(ctx context.Context, o *domain.Order) error {
	p.started <- o.OrderID
	select {
	case <-p.release:
	case <-ctx.Done():
	}
	return nil
}

// processorFunc adapts a function to Processor.
type processorFunc func(ctx context.Context, o *domain.Order) error

func (f processorFunc) Process(ctx context.Context, o *domain.Order) error {
	return f(ctx, o)
}

func TestNewPool_Validation(t *testing.T) {
	p := newBlockingProcessor()
	if _, err := NewPool(0, 5, p); err == nil {
		t.Error("expected error for zero workers")
	}
	if _, err := NewPool(3, 0, p); err == nil {
		t.Error("expected error for zero queue capacity")
	}
	if _, err := NewPool(3, 5, nil); err == nil {
		t.Error("expected error for nil processor")
	}
}

func TestPool_Submit_RejectsWhenQueueFull(t *testing.T) {
	proc := newBlockingProcessor()
	m := metrics.New(nil)

	var mu sync.Mutex
	var rejected []string
	pool, err := NewPool(1, 1, proc,
		WithMetrics(m),
		WithLogger(discardLogger()),
		WithRejectionHandler(func(o *domain.Order) {
			mu.Lock()
			rejected = append(rejected, o.OrderID)
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	s := newTestStock(t, "compB", 30, 10)
	running := newTestOrder(t, s, domain.OrderSideBuy, 1)
	queued := newTestOrder(t, s, domain.OrderSideBuy, 1)
	overflow := newTestOrder(t, s, domain.OrderSideBuy, 1)

	if err := pool.Submit(running); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	select {
	case <-proc.started:
	case <-time.After(time.Second):
		t.Fatal("worker never picked up the first order")
	}

	if err := pool.Submit(queued); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if pool.InFlight() != 2 {
		t.Errorf("expected 2 in flight, got %d", pool.InFlight())
	}

	err = pool.Submit(overflow)
	if !errors.Is(err, domain.ErrAdmissionRejected) {
		t.Fatalf("expected ErrAdmissionRejected, got %v", err)
	}
	if overflow.Status() != domain.OrderStatusRejected {
		t.Errorf("expected status rejected, got %s", overflow.Status())
	}
	mu.Lock()
	if len(rejected) != 1 || rejected[0] != overflow.OrderID {
		t.Errorf("expected rejection handler called with %s, got %v", overflow.OrderID, rejected)
	}
	mu.Unlock()
	if got := testutil.ToFloat64(m.OrdersRejected); got != 1 {
		t.Errorf("expected orders_rejected_total 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.OrdersSubmitted); got != 2 {
		t.Errorf("expected orders_submitted_total 2, got %v", got)
	}

	close(proc.release)
	pool.Stop()
	if pool.InFlight() != 0 {
		t.Errorf("expected nothing in flight after Stop, got %d", pool.InFlight())
	}
}

func TestPool_Submit_AdmitsWorkersPlusQueueInABurst(t *testing.T) {
	s := newTestStock(t, "compB", 30, 10)

	for round := 0; round < 50; round++ {
		proc := newBlockingProcessor()
		pool, err := NewPool(3, 5, proc, WithLogger(discardLogger()))
		if err != nil {
			t.Fatalf("NewPool: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		pool.Start(ctx)

		// No waiting between submissions: workers may not be receiving yet.
		for i := 0; i < 8; i++ {
			if err := pool.Submit(newTestOrder(t, s, domain.OrderSideBuy, 1)); err != nil {
				t.Fatalf("round %d: submit %d of 8 rejected: %v", round, i, err)
			}
		}
		if pool.InFlight() != 8 {
			t.Errorf("round %d: expected 8 in flight, got %d", round, pool.InFlight())
		}

		extra := newTestOrder(t, s, domain.OrderSideBuy, 1)
		if err := pool.Submit(extra); !errors.Is(err, domain.ErrAdmissionRejected) {
			t.Fatalf("round %d: expected the ninth order to be rejected, got %v", round, err)
		}

		close(proc.release)
		cancel()
		pool.Stop()
	}
}

func TestPool_CancelledContext_DropsQueuedOrders(t *testing.T) {
	matcher, _, m := newTestMatcher(nil)
	pool, _ := NewPool(1, 5, matcher, WithMetrics(m), WithLogger(discardLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	lonelyStock := newTestStock(t, "compC", 10, 1)
	lonely := newTestOrder(t, lonelyStock, domain.OrderSideSell, 1)
	if err := pool.Submit(lonely); err != nil {
		t.Fatalf("submit: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for lonely.Status() != domain.OrderStatusPlaced && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	s := newTestStock(t, "compA", 50, 3)
	var queued []*domain.Order
	for i := 0; i < 3; i++ {
		o := newTestOrder(t, s, domain.OrderSideBuy, 1)
		if err := pool.Submit(o); err != nil {
			t.Fatalf("submit queued %d: %v", i, err)
		}
		queued = append(queued, o)
	}

	cancel()
	pool.Stop()

	for _, o := range queued {
		if o.Status() != domain.OrderStatusCreated {
			t.Errorf("queued order %s processed after cancellation, status %s", o.OrderID, o.Status())
		}
	}
	if s.Available() != 3 {
		t.Errorf("expected no reservation by dropped orders, available %d", s.Available())
	}
	if matcher.Book().BuyCount() != 0 {
		t.Errorf("expected dropped orders off the book, got %d buys", matcher.Book().BuyCount())
	}
	if pool.InFlight() != 0 {
		t.Errorf("expected nothing in flight after Stop, got %d", pool.InFlight())
	}
}

func TestPool_WorkersRunOneOrderAtATime(t *testing.T) {
	var mu sync.Mutex
	current, peak := 0, 0
	proc := processorFunc(func(ctx context.Context, o *domain.Order) error {
		mu.Lock()
		current++
		if current > peak {
			peak = current
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		current--
		mu.Unlock()
		return nil
	})

	pool, _ := NewPool(3, 20, proc, WithLogger(discardLogger()))
	pool.Start(context.Background())

	s := newTestStock(t, "compA", 50, 10)
	for i := 0; i < 20; i++ {
		if err := pool.Submit(newTestOrder(t, s, domain.OrderSideSell, 1)); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	pool.Stop()

	if peak > 3 {
		t.Errorf("expected at most 3 concurrent orders, saw %d", peak)
	}
}

func TestPool_PanicIsContainedAtWorkerBoundary(t *testing.T) {
	m := metrics.New(nil)
	var mu sync.Mutex
	processed := 0
	proc := processorFunc(func(ctx context.Context, o *domain.Order) error {
		if o.Side == domain.OrderSideBuy {
			panic("boom")
		}
		mu.Lock()
		processed++
		mu.Unlock()
		return nil
	})

	pool, _ := NewPool(1, 5, proc, WithMetrics(m), WithLogger(discardLogger()))
	pool.Start(context.Background())

	s := newTestStock(t, "compA", 50, 10)
	pool.Submit(newTestOrder(t, s, domain.OrderSideBuy, 1))
	pool.Submit(newTestOrder(t, s, domain.OrderSideSell, 1))
	pool.Submit(newTestOrder(t, s, domain.OrderSideSell, 1))
	pool.Stop()

	if got := testutil.ToFloat64(m.WorkerPanics); got != 1 {
		t.Errorf("expected worker_panics_total 1, got %v", got)
	}
	if processed != 2 {
		t.Errorf("expected the worker to keep processing after a panic, processed %d", processed)
	}
}

func TestPool_WaitInterruptedIsCounted(t *testing.T) {
	matcher, _, m := newTestMatcher(nil)
	pool, _ := NewPool(1, 5, matcher, WithMetrics(m), WithLogger(discardLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	s := newTestStock(t, "compC", 10, 1)
	lonely := newTestOrder(t, s, domain.OrderSideSell, 1)
	if err := pool.Submit(lonely); err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for lonely.Status() != domain.OrderStatusPlaced && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	pool.Stop()

	if got := testutil.ToFloat64(m.WaitInterrupted); got != 1 {
		t.Errorf("expected wait_interrupted_total 1, got %v", got)
	}
	if lonely.Status() != domain.OrderStatusPlaced {
		t.Errorf("expected the interrupted order to stay placed, got %s", lonely.Status())
	}
}

func TestPool_SubmitAfterStop_Rejected(t *testing.T) {
	pool, _ := NewPool(1, 1, newBlockingProcessor(), WithLogger(discardLogger()))
	pool.Start(context.Background())
	pool.Stop()

	s := newTestStock(t, "compA", 50, 1)
	o := newTestOrder(t, s, domain.OrderSideBuy, 1)
	err := pool.Submit(o)
	if !errors.Is(err, domain.ErrAdmissionRejected) || !errors.Is(err, domain.ErrPoolStopped) {
		t.Fatalf("expected ErrAdmissionRejected wrapping ErrPoolStopped, got %v", err)
	}
	if o.Status() != domain.OrderStatusRejected {
		t.Errorf("expected status rejected, got %s", o.Status())
	}

	// Stop is idempotent.
	pool.Stop()
}

func TestPool_Overload_RejectedOrdersNeverTrade(t *testing.T) {
	matcher, trades, m := newTestMatcher(nil)

	var mu sync.Mutex
	rejected := make(map[string]bool)
	pool, _ := NewPool(3, 5, matcher,
		WithMetrics(m),
		WithLogger(discardLogger()),
		WithRejectionHandler(func(o *domain.Order) {
			mu.Lock()
			rejected[o.OrderID] = true
			mu.Unlock()
		}),
	)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	cheap := newTestStock(t, "compC", 10, 100)
	dear := newTestStock(t, "compA", 50, 100)
	var orders []*domain.Order
	for i := 0; i < 20; i++ {
		// BUYs of compC and SELLs of compA never match each other, so no
		// worker frees up while the burst is submitted.
		if i%2 == 0 {
			orders = append(orders, newTestOrder(t, cheap, domain.OrderSideBuy, 1))
		} else {
			orders = append(orders, newTestOrder(t, dear, domain.OrderSideSell, 1))
		}
	}
	for _, o := range orders {
		pool.Submit(o)
	}

	mu.Lock()
	rejectedCount := len(rejected)
	mu.Unlock()
	if rejectedCount != len(orders)-8 {
		t.Errorf("expected %d rejections with 3 workers and 5 slots, got %d",
			len(orders)-8, rejectedCount)
	}

	cancel()
	pool.Stop()

	for _, tr := range trades.All() {
		if rejected[tr.BuyOrderID] || rejected[tr.SellOrderID] {
			t.Fatalf("rejected order appears in trade %s", tr.TradeID)
		}
	}
	for _, o := range orders {
		if rejected[o.OrderID] && o.Status() != domain.OrderStatusRejected {
			t.Errorf("rejected order %s has status %s", o.OrderID, o.Status())
		}
	}
}

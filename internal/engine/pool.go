package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/efreitasn/stockexchange/internal/domain"
	"github.com/efreitasn/stockexchange/internal/metrics"
)

// Processor runs one order to completion on a worker.
type Processor interface {
	Process(ctx context.Context, order *domain.Order) error
}

// RejectionHandler is called synchronously from Submit with every order
// the pool refuses.
type RejectionHandler func(order *domain.Order)

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithRejectionHandler sets the handler invoked for rejected orders.
func WithRejectionHandler(h RejectionHandler) PoolOption {
	return func(p *Pool) { p.onReject = h }
}

// WithMetrics sets the collectors the pool updates.
func WithMetrics(m *metrics.Metrics) PoolOption {
	return func(p *Pool) { p.metrics = m }
}

// WithLogger sets the pool's logger.
func WithLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// Pool is a fixed set of workers fed by a bounded admission queue. At most
// workers+queueCapacity orders are in flight (queued or running); Submit
// never blocks and rejects the order on the spot beyond that. Each worker
// processes one order at a time.
type Pool struct {
	workers   int
	capacity  int
	queue     chan *domain.Order
	processor Processor
	onReject  RejectionHandler
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu      sync.RWMutex // protects stopped and the queue close
	stopped  bool
	started  atomic.Bool
	inFlight atomic.Int64
	wg       sync.WaitGroup
}

// NewPool creates a pool of workers goroutines and a queue of
// queueCapacity pending orders. Workers start with Start.
func NewPool(workers, queueCapacity int, processor Processor, opts ...PoolOption) (*Pool, error) {
	if workers <= 0 {
		return nil, &domain.ValidationError{Message: "pool workers must be > 0"}
	}
	if queueCapacity <= 0 {
		return nil, &domain.ValidationError{Message: "pool queue capacity must be > 0"}
	}
	if processor == nil {
		return nil, &domain.ValidationError{Message: "pool processor is required"}
	}

	p := &Pool{
		workers:   workers,
		capacity:  workers + queueCapacity,
		queue:     make(chan *domain.Order, workers+queueCapacity),
		processor: processor,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.New(nil)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// Start launches the workers. ctx is handed to every Process call;
// cancelling it interrupts orders blocked in their completion wait, and
// queued orders are then dropped without being processed.
// Calling Start more than once has no effect.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Submit offers an order to the pool. If workers+queueCapacity orders are
// already in flight, or the pool has been stopped, the order is marked
// rejected, the rejection handler is invoked and an error wrapping
// ErrAdmissionRejected is returned.
func (p *Pool) Submit(order *domain.Order) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return p.reject(order, domain.ErrPoolStopped)
	}

	if p.inFlight.Add(1) > int64(p.capacity) {
		p.inFlight.Add(-1)
		return p.reject(order, nil)
	}
	p.metrics.OrdersSubmitted.Inc()
	p.metrics.InFlight.Inc()
	// The channel holds capacity orders, so the send never blocks.
	p.queue <- order
	return nil
}

// Stop closes admission and waits for every worker to drain the queue and
// return. Workers blocked on unmatched orders only return once the Start
// context is cancelled.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// QueueLen returns the number of admitted orders not yet picked up.
func (p *Pool) QueueLen() int {
	return len(p.queue)
}

// InFlight returns queued plus running orders.
func (p *Pool) InFlight() int {
	return int(p.inFlight.Load())
}

// Capacity returns the maximum number of orders in flight.
func (p *Pool) Capacity() int {
	return p.capacity
}

func (p *Pool) reject(order *domain.Order, cause error) error {
	order.MarkRejected()
	p.metrics.OrdersRejected.Inc()

	attrs := []any{
		slog.String("order_id", order.OrderID),
		slog.Int("capacity", p.capacity),
	}
	if cause != nil {
		attrs = append(attrs, slog.String("reason", cause.Error()))
	}
	p.logger.Warn("order rejected", attrs...)

	if p.onReject != nil {
		p.onReject(order)
	}
	if cause != nil {
		return fmt.Errorf("order %s: %w: %w", order.OrderID, domain.ErrAdmissionRejected, cause)
	}
	return fmt.Errorf("order %s: %w", order.OrderID, domain.ErrAdmissionRejected)
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for order := range p.queue {
		if ctx.Err() != nil {
			p.logger.Warn("order dropped",
				slog.Int("worker", id),
				slog.String("order_id", order.OrderID),
				slog.String("error", ctx.Err().Error()),
			)
		} else {
			p.run(ctx, id, order)
		}
		p.inFlight.Add(-1)
		p.metrics.InFlight.Dec()
	}
}

// run executes a single order, keeping any failure inside this worker.
func (p *Pool) run(ctx context.Context, id int, order *domain.Order) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.WorkerPanics.Inc()
			p.logger.Error("worker panic recovered",
				slog.Int("worker", id),
				slog.String("order_id", order.OrderID),
				slog.Any("panic", r),
			)
		}
	}()

	err := p.processor.Process(ctx, order)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrWaitInterrupted):
		p.metrics.WaitInterrupted.Inc()
		p.logger.Warn("order wait interrupted",
			slog.Int("worker", id),
			slog.String("order_id", order.OrderID),
			slog.String("status", string(order.Status())),
			slog.String("error", err.Error()),
		)
	case errors.Is(err, domain.ErrInsufficientInventory):
		// Already reported by the matcher.
	default:
		p.logger.Error("order processing failed",
			slog.Int("worker", id),
			slog.String("order_id", order.OrderID),
			slog.String("error", err.Error()),
		)
	}
}

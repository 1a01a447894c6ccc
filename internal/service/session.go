// Package service runs trading sessions on top of the engine and stores.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/efreitasn/stockexchange/internal/domain"
	"github.com/efreitasn/stockexchange/internal/engine"
	"github.com/efreitasn/stockexchange/internal/metrics"
	"github.com/efreitasn/stockexchange/internal/scenario"
	"github.com/efreitasn/stockexchange/internal/store"
)

// ErrSessionAlreadyRun is returned by a second call to Run.
var ErrSessionAlreadyRun = errors.New("session_already_run")

// SessionOptions sizes the pool of a session and bounds its settle phase.
// A zero SettleTimeout waits for admitted orders without limit.
type SessionOptions struct {
	Workers       int
	QueueCapacity int
	SettleTimeout time.Duration
}

// OrderSummary is the final state of one order.
type OrderSummary struct {
	OrderID     string             `json:"order_id"`
	Symbol      string             `json:"symbol"`
	Side        domain.OrderSide   `json:"side"`
	Quantity    int64              `json:"quantity"`
	Status      domain.OrderStatus `json:"status"`
	Executed    bool               `json:"executed"`
	MatchedWith string             `json:"matched_with,omitempty"`
}

// StockSummary is the final inventory of one stock.
type StockSummary struct {
	Symbol        string `json:"symbol"`
	PricePerShare int64  `json:"price_per_share"`
	Available     int64  `json:"available"`
}

// Report describes a finished session. Orders are listed in input order.
type Report struct {
	Orders    []OrderSummary  `json:"orders"`
	Inventory []StockSummary  `json:"inventory"`
	Trades    []*domain.Trade `json:"-"`

	Executed    int `json:"executed"`
	Rejected    int `json:"rejected"`
	Unfilled    int `json:"unfilled"`
	Interrupted int `json:"interrupted"` // admitted but never matched
	Skipped     int `json:"skipped"`     // never offered, or dropped from the queue unprocessed

	SettleTimedOut bool `json:"settle_timed_out"`
}

// SessionService loads a catalog, feeds orders to a worker pool and waits
// for them to settle. A SessionService runs one session.
type SessionService struct {
	matcher *engine.Matcher
	stocks  *store.StockStore
	orders  *store.OrderStore
	trades  *store.TradeStore
	opts    SessionOptions
	metrics *metrics.Metrics
	logger  *slog.Logger

	ran atomic.Bool
}

// NewSessionService creates a new SessionService with the given dependencies.
func NewSessionService(
	matcher *engine.Matcher,
	stocks *store.StockStore,
	orders *store.OrderStore,
	trades *store.TradeStore,
	opts SessionOptions,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SessionService {
	if m == nil {
		m = metrics.New(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		matcher: matcher,
		stocks:  stocks,
		orders:  orders,
		trades:  trades,
		opts:    opts,
		metrics: m,
		logger:  logger,
	}
}

// Run executes the scenario. The catalog is registered and every order is
// created before the first submission, so an unknown symbol fails the run
// with ErrStockNotFound without touching the pool. Orders are then
// submitted in input order; admission stops at the first rejection and
// the remaining orders are skipped. Run returns once every admitted order
// has settled, or when the settle timeout or ctx ends the wait, in which
// case the workers still blocked are interrupted and orders still queued
// are dropped unprocessed.
func (s *SessionService) Run(ctx context.Context, sc *scenario.Scenario) (*Report, error) {
	if !s.ran.CompareAndSwap(false, true) {
		return nil, ErrSessionAlreadyRun
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("validate scenario: %w", err)
	}

	if err := s.registerCatalog(sc.Stocks); err != nil {
		return nil, err
	}
	orders, err := s.createOrders(sc.Orders)
	if err != nil {
		return nil, err
	}

	pool, err := engine.NewPool(s.opts.Workers, s.opts.QueueCapacity, s.matcher,
		engine.WithMetrics(s.metrics),
		engine.WithLogger(s.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	pool.Start(workerCtx)

	admitted := s.submit(pool, orders)
	timedOut := !s.settle(ctx, admitted)
	if timedOut {
		cancelWorkers()
	}
	pool.Stop()

	report := s.buildReport(orders)
	report.SettleTimedOut = timedOut
	s.logger.Info("session finished",
		slog.Int("orders", len(orders)),
		slog.Int("executed", report.Executed),
		slog.Int("rejected", report.Rejected),
		slog.Int("unfilled", report.Unfilled),
		slog.Int("interrupted", report.Interrupted),
		slog.Int("skipped", report.Skipped),
		slog.Bool("settle_timed_out", timedOut),
	)
	return report, nil
}

func (s *SessionService) registerCatalog(defs []scenario.Stock) error {
	for _, def := range defs {
		st, err := domain.NewStock(def.Symbol, def.PricePerShare, def.Quantity)
		if err != nil {
			return fmt.Errorf("stock %s: %w", def.Symbol, err)
		}
		if err := s.stocks.Create(st); err != nil {
			return fmt.Errorf("stock %s: %w", def.Symbol, err)
		}
	}
	return nil
}

func (s *SessionService) createOrders(defs []scenario.Order) ([]*domain.Order, error) {
	orders := make([]*domain.Order, 0, len(defs))
	for i, def := range defs {
		st, err := s.stocks.Get(def.Symbol)
		if err != nil {
			return nil, fmt.Errorf("order %d: symbol %q: %w", i, def.Symbol, err)
		}
		o, err := domain.NewOrder(st, def.Side, def.Quantity)
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		s.orders.Create(o)
		s.logger.Info("order created",
			slog.String("order_id", o.OrderID),
			slog.String("side", string(o.Side)),
			slog.String("symbol", st.Symbol),
			slog.Int64("quantity", o.Quantity),
		)
		orders = append(orders, o)
	}
	return orders, nil
}

// submit offers orders in sequence and returns the admitted ones. The
// first rejection halts submission.
func (s *SessionService) submit(pool *engine.Pool, orders []*domain.Order) []*domain.Order {
	admitted := make([]*domain.Order, 0, len(orders))
	for i, o := range orders {
		if err := pool.Submit(o); err != nil {
			s.logger.Info("submission halted",
				slog.String("order_id", o.OrderID),
				slog.Int("skipped", len(orders)-i-1),
			)
			break
		}
		admitted = append(admitted, o)
	}
	return admitted
}

// settle waits for every admitted order to settle. It reports false when
// the settle timeout or ctx ended the wait first.
func (s *SessionService) settle(ctx context.Context, admitted []*domain.Order) bool {
	if s.opts.SettleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.SettleTimeout)
		defer cancel()
	}

	for _, o := range admitted {
		select {
		case <-o.Done():
		case <-ctx.Done():
			s.logger.Warn("settle wait ended",
				slog.String("order_id", o.OrderID),
				slog.String("status", string(o.Status())),
				slog.String("error", ctx.Err().Error()),
			)
			return false
		}
	}
	return true
}

func (s *SessionService) buildReport(orders []*domain.Order) *Report {
	report := &Report{
		Orders: make([]OrderSummary, 0, len(orders)),
		Trades: s.trades.All(),
	}

	for _, o := range orders {
		status := o.Status()
		report.Orders = append(report.Orders, OrderSummary{
			OrderID:     o.OrderID,
			Symbol:      o.Stock.Symbol,
			Side:        o.Side,
			Quantity:    o.Quantity,
			Status:      status,
			Executed:    o.Executed(),
			MatchedWith: o.MatchedWith(),
		})
		switch status {
		case domain.OrderStatusMatched, domain.OrderStatusExecuted:
			report.Executed++
		case domain.OrderStatusRejected:
			report.Rejected++
		case domain.OrderStatusUnfilled:
			report.Unfilled++
		case domain.OrderStatusPlaced:
			report.Interrupted++
		case domain.OrderStatusCreated:
			report.Skipped++
		}
	}

	for _, st := range s.stocks.List() {
		report.Inventory = append(report.Inventory, StockSummary{
			Symbol:        st.Symbol,
			PricePerShare: st.PricePerShare,
			Available:     st.Available(),
		})
	}
	return report
}

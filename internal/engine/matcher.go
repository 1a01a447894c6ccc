package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/stockexchange/internal/domain"
	"github.com/efreitasn/stockexchange/internal/metrics"
	"github.com/efreitasn/stockexchange/internal/store"
)

// Matcher runs the per-order pipeline: inventory step, placement and
// matching on the shared book, then the completion wait.
type Matcher struct {
	book       *OrderBook
	tradeStore *store.TradeStore
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewMatcher creates a new Matcher with the given dependencies.
func NewMatcher(
	book *OrderBook,
	tradeStore *store.TradeStore,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Matcher {
	if m == nil {
		m = metrics.New(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		book:       book,
		tradeStore: tradeStore,
		metrics:    m,
		logger:     logger,
	}
}

// Book returns the order book the matcher places orders on.
func (m *Matcher) Book() *OrderBook {
	return m.book
}

// Place performs the inventory step for the order and, when it succeeds,
// places it on the book and tries to match it.
//
// A BUY reserves its quantity; if the reservation fails the order becomes
// unfilled, never reaches the book, and ErrInsufficientInventory is
// returned. A SELL releases its quantity unconditionally. The returned
// trade is nil when the order rests unmatched.
func (m *Matcher) Place(order *domain.Order) (*domain.Trade, error) {
	if order.Side == domain.OrderSideBuy {
		if !order.Stock.Reserve(order.Quantity) {
			order.MarkUnfilled()
			m.metrics.OrdersUnfilled.Inc()
			m.logger.Warn("order unfilled",
				slog.String("order_id", order.OrderID),
				slog.String("symbol", order.Stock.Symbol),
				slog.Int64("quantity", order.Quantity),
				slog.Int64("available", order.Stock.Available()),
			)
			return nil, fmt.Errorf("order %s: %w", order.OrderID, domain.ErrInsufficientInventory)
		}
	} else {
		order.Stock.Release(order.Quantity)
	}

	counterpart, err := m.book.PlaceAndMatch(order)
	if err != nil {
		return nil, err
	}
	if counterpart == nil {
		m.logger.Debug("order placed",
			slog.String("order_id", order.OrderID),
			slog.String("side", string(order.Side)),
			slog.String("symbol", order.Stock.Symbol),
		)
		return nil, nil
	}

	trade := m.recordTrade(order, counterpart)
	m.metrics.OrdersMatched.Inc()
	m.logger.Info("match found",
		slog.String("order_id", order.OrderID),
		slog.String("counterpart_id", counterpart.OrderID),
		slog.String("trade_id", trade.TradeID),
		slog.Int64("price", trade.Price),
		slog.Int64("quantity", trade.Quantity),
	)
	return trade, nil
}

// Process runs the full pipeline for one order and blocks until the order
// has been matched (by its own scan or by a later counterpart's) or ctx
// ends. There is no timeout of its own.
func (m *Matcher) Process(ctx context.Context, order *domain.Order) error {
	if _, err := m.Place(order); err != nil {
		return err
	}

	m.logger.Debug("checking if order is executed", slog.String("order_id", order.OrderID))
	if err := order.Wait(ctx); err != nil {
		return err
	}

	if order.MarkExecuted() {
		m.metrics.OrdersExecuted.Inc()
		m.logger.Info("order executed",
			slog.String("order_id", order.OrderID),
			slog.String("counterpart_id", order.MatchedWith()),
		)
	}
	m.logger.Info("order finished", slog.String("order_id", order.OrderID))
	return nil
}

func (m *Matcher) recordTrade(order, counterpart *domain.Order) *domain.Trade {
	buy, sell := order, counterpart
	if order.Side == domain.OrderSideSell {
		buy, sell = counterpart, order
	}
	trade := &domain.Trade{
		TradeID:     uuid.New().String(),
		BuyOrderID:  buy.OrderID,
		SellOrderID: sell.OrderID,
		BuySymbol:   buy.Stock.Symbol,
		SellSymbol:  sell.Stock.Symbol,
		Price:       buy.Stock.PricePerShare,
		Quantity:    buy.Quantity,
		ExecutedAt:  time.Now(),
	}
	m.tradeStore.Append(trade)
	return trade
}

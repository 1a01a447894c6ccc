package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/stockexchange/internal/domain"
	"github.com/efreitasn/stockexchange/internal/store"
)

// StockHandler handles HTTP requests for stock endpoints.
type StockHandler struct {
	stockStore *store.StockStore
	tradeStore *store.TradeStore
}

// NewStockHandler creates a new StockHandler.
func NewStockHandler(stockStore *store.StockStore, tradeStore *store.TradeStore) *StockHandler {
	return &StockHandler{stockStore: stockStore, tradeStore: tradeStore}
}

// stockResponse is the JSON form of one inventory record.
type stockResponse struct {
	Symbol        string `json:"symbol"`
	PricePerShare int64  `json:"price_per_share"`
	Available     int64  `json:"available"`
}

// tradeResponse is one entry of GET /stocks/{symbol}/trades.
type tradeResponse struct {
	TradeID     string `json:"trade_id"`
	BuyOrderID  string `json:"buy_order_id"`
	SellOrderID string `json:"sell_order_id"`
	BuySymbol   string `json:"buy_symbol"`
	SellSymbol  string `json:"sell_symbol"`
	Price       int64  `json:"price"`
	Quantity    int64  `json:"quantity"`
	ExecutedAt  string `json:"executed_at"`
}

// List handles GET /stocks.
func (h *StockHandler) List(w http.ResponseWriter, r *http.Request) {
	stocks := h.stockStore.List()
	resp := make([]stockResponse, 0, len(stocks))
	for _, st := range stocks {
		resp = append(resp, buildStockResponse(st))
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Get handles GET /stocks/{symbol}.
func (h *StockHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.stockStore.Get(chi.URLParam(r, "symbol"))
	if err != nil {
		mapStockError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildStockResponse(st))
}

// GetTrades handles GET /stocks/{symbol}/trades.
func (h *StockHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if _, err := h.stockStore.Get(symbol); err != nil {
		mapStockError(w, err)
		return
	}

	trades := h.tradeStore.GetBySymbol(symbol)
	resp := make([]tradeResponse, 0, len(trades))
	for _, t := range trades {
		resp = append(resp, tradeResponse{
			TradeID:     t.TradeID,
			BuyOrderID:  t.BuyOrderID,
			SellOrderID: t.SellOrderID,
			BuySymbol:   t.BuySymbol,
			SellSymbol:  t.SellSymbol,
			Price:       t.Price,
			Quantity:    t.Quantity,
			ExecutedAt:  t.ExecutedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	WriteJSON(w, http.StatusOK, resp)
}

func buildStockResponse(st *domain.Stock) stockResponse {
	return stockResponse{
		Symbol:        st.Symbol,
		PricePerShare: st.PricePerShare,
		Available:     st.Available(),
	}
}

func mapStockError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrStockNotFound):
		WriteError(w, http.StatusNotFound, "stock_not_found", "Stock not found")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

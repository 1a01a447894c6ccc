package handler

import (
	"net/http"
	"time"

	"github.com/efreitasn/stockexchange/internal/domain"
	"github.com/efreitasn/stockexchange/internal/engine"
)

// BookHandler serves a snapshot of the resting orders.
type BookHandler struct {
	book *engine.OrderBook
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(book *engine.OrderBook) *BookHandler {
	return &BookHandler{book: book}
}

// restingOrderResponse is one order in the book snapshot, head first.
type restingOrderResponse struct {
	OrderID       string `json:"order_id"`
	Symbol        string `json:"symbol"`
	Quantity      int64  `json:"quantity"`
	PricePerShare int64  `json:"price_per_share"`
}

// bookResponse is the JSON response for GET /book.
type bookResponse struct {
	Buys       []restingOrderResponse `json:"buys"`
	Sells      []restingOrderResponse `json:"sells"`
	SnapshotAt string                 `json:"snapshot_at"`
}

// Get handles GET /book.
func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, bookResponse{
		Buys:       buildRestingOrders(h.book.Pending(domain.OrderSideBuy)),
		Sells:      buildRestingOrders(h.book.Pending(domain.OrderSideSell)),
		SnapshotAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func buildRestingOrders(orders []*domain.Order) []restingOrderResponse {
	resp := make([]restingOrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, restingOrderResponse{
			OrderID:       o.OrderID,
			Symbol:        o.Stock.Symbol,
			Quantity:      o.Quantity,
			PricePerShare: o.Stock.PricePerShare,
		})
	}
	return resp
}

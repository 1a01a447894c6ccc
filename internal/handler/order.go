package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/stockexchange/internal/domain"
	"github.com/efreitasn/stockexchange/internal/store"
)

// validOrderStatuses lists the values accepted by the status filter.
var validOrderStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusCreated:  true,
	domain.OrderStatusPlaced:   true,
	domain.OrderStatusMatched:  true,
	domain.OrderStatusExecuted: true,
	domain.OrderStatusUnfilled: true,
	domain.OrderStatusRejected: true,
}

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderStore *store.OrderStore
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderStore *store.OrderStore) *OrderHandler {
	return &OrderHandler{orderStore: orderStore}
}

// orderResponse is the JSON form of an order.
type orderResponse struct {
	OrderID     string  `json:"order_id"`
	Side        string  `json:"side"`
	Symbol      string  `json:"symbol"`
	Quantity    int64   `json:"quantity"`
	Status      string  `json:"status"`
	Executed    bool    `json:"executed"`
	MatchedWith *string `json:"matched_with"`
	CreatedAt   string  `json:"created_at"`
}

// Get handles GET /orders/{order_id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderStore.Get(chi.URLParam(r, "order_id"))
	if err != nil {
		mapOrderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// List handles GET /orders, optionally filtered by ?status=.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	var status *domain.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.OrderStatus(raw)
		if !validOrderStatuses[s] {
			mapOrderError(w, &domain.ValidationError{
				Message: fmt.Sprintf("Unknown order status: %s", raw),
			})
			return
		}
		status = &s
	}

	orders := h.orderStore.List(status)
	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, buildOrderResponse(o))
	}
	WriteJSON(w, http.StatusOK, resp)
}

func buildOrderResponse(o *domain.Order) orderResponse {
	resp := orderResponse{
		OrderID:   o.OrderID,
		Side:      string(o.Side),
		Symbol:    o.Stock.Symbol,
		Quantity:  o.Quantity,
		Status:    string(o.Status()),
		Executed:  o.Executed(),
		CreatedAt: o.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if id := o.MatchedWith(); id != "" {
		resp.MatchedWith = &id
	}
	return resp
}

func mapOrderError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, "order_not_found", "Order not found")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

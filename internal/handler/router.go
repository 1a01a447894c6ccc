// Package handler serves the read-only diagnostics API of a session.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/efreitasn/stockexchange/internal/engine"
	"github.com/efreitasn/stockexchange/internal/store"
)

// NewRouter creates a chi router with all diagnostics routes registered and
// request logging. There is no order entry over HTTP.
func NewRouter(
	stockStore *store.StockStore,
	orderStore *store.OrderStore,
	tradeStore *store.TradeStore,
	book *engine.OrderBook,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	r.Use(requestLogging(logger))

	stockH := NewStockHandler(stockStore, tradeStore)
	orderH := NewOrderHandler(orderStore)
	bookH := NewBookHandler(book)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Stock routes.
	r.Get("/stocks", stockH.List)
	r.Get("/stocks/{symbol}", stockH.Get)
	r.Get("/stocks/{symbol}/trades", stockH.GetTrades)

	// Order routes.
	r.Get("/orders", orderH.List)
	r.Get("/orders/{order_id}", orderH.Get)

	r.Get("/book", bookH.Get)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

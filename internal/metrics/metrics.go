// Package metrics exposes the session's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stockexchange"

// Metrics groups every collector the engine updates. All fields are safe
// for concurrent use.
type Metrics struct {
	OrdersSubmitted prometheus.Counter
	OrdersRejected  prometheus.Counter
	OrdersUnfilled  prometheus.Counter
	OrdersMatched   prometheus.Counter
	OrdersExecuted  prometheus.Counter
	WaitInterrupted prometheus.Counter
	WorkerPanics    prometheus.Counter
	InFlight        prometheus.Gauge
	RestingOrders   *prometheus.GaugeVec
	StalledOrders   prometheus.Counter
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OrdersSubmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_submitted_total",
			Help:      "Orders accepted into the execution pool.",
		}),
		OrdersRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_rejected_total",
			Help:      "Orders refused because the admission queue was full or closed.",
		}),
		OrdersUnfilled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_unfilled_total",
			Help:      "BUY orders whose inventory reservation failed.",
		}),
		OrdersMatched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_matched_total",
			Help:      "Matched BUY/SELL pairs.",
		}),
		OrdersExecuted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_executed_total",
			Help:      "Orders whose worker observed the match and finished.",
		}),
		WaitInterrupted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wait_interrupted_total",
			Help:      "Completion waits that ended before the order settled.",
		}),
		WorkerPanics: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_panics_total",
			Help:      "Panics recovered at the worker boundary.",
		}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_in_flight",
			Help:      "Orders queued or running in the execution pool.",
		}),
		RestingOrders: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_resting_orders",
			Help:      "Unmatched orders resting on the book, by side.",
		}, []string{"side"}),
		StalledOrders: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_stalled_total",
			Help:      "Orders that rested on the book longer than the stall threshold.",
		}),
	}
}

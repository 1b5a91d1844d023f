// Package telemetry holds Prometheus collectors for business-level
// observability of the cart engine.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CartMetrics holds Prometheus metrics for cart activity.
type CartMetrics struct {
	// Operations counts every cart command by operation and outcome.
	// op: add, update, change, remove, empty, apply_discount
	// outcome: ok, invalid, conflict, out_of_stock, not_found, error
	Operations *prometheus.CounterVec

	// ItemsAdded counts units added to carts.
	ItemsAdded prometheus.Counter

	// LowStockReductions counts adds and updates trimmed by stock
	// validation.
	LowStockReductions prometheus.Counter

	// CartValue observes the order total after each mutation.
	CartValue prometheus.Histogram

	// CartsCreated counts new session carts.
	CartsCreated prometheus.Counter
}

// NewCartMetrics creates and registers the cart metrics.
func NewCartMetrics(namespace string) *CartMetrics {
	if namespace == "" {
		namespace = "njord"
	}

	subsystem := "cart"

	return &CartMetrics{
		Operations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operations_total",
				Help:      "Total cart operations by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		ItemsAdded: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "items_added_total",
				Help:      "Total units added to carts",
			},
		),
		LowStockReductions: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "low_stock_reductions_total",
				Help:      "Total quantity reductions applied by stock validation",
			},
		),
		CartValue: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "value",
				Help:      "Order total after each cart mutation",
				Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),
		CartsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "created_total",
				Help:      "Total session carts created",
			},
		),
	}
}

// RecordOperation increments the operation counter.
func (m *CartMetrics) RecordOperation(op, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
}

// Package observability provides prometheus metrics for the application.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StorageOps counts durable storage operations by backend and operation.
	StorageOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aura_storage_operations_total",
		Help: "Total number of durable storage operations by backend and operation",
	}, []string{"backend", "operation"})

	// StorageErrors counts durable storage failures by backend and operation.
	StorageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aura_storage_errors_total",
		Help: "Total number of durable storage errors by backend and operation",
	}, []string{"backend", "operation"})

	// StoreOps counts store-layer operations by store, operation, and outcome.
	StoreOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aura_store_operations_total",
		Help: "Total number of store operations by store, operation, and outcome",
	}, []string{"store", "operation", "outcome"})

	// AuraPointsAwarded tracks the distribution of points per award event.
	AuraPointsAwarded = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aura_points_awarded",
		Help:    "Distribution of points per aura award event",
		Buckets: []float64{-50, -20, -10, -5, -1, 0, 1, 5, 10, 20, 50},
	})
)

// ObserveStoreOp records one store operation outcome. Outcome is "ok" or
// the AppError code of the failure.
func ObserveStoreOp(store, operation, outcome string) {
	StoreOps.WithLabelValues(store, operation, outcome).Inc()
}

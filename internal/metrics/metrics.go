// Package metrics provides Prometheus metrics for vstore.
//
// Each engine owns its own registry, so several engines (and tests) can
// coexist in one process.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "vstore"

// Metrics holds all Prometheus metrics for one engine
type Metrics struct {
	Registry *prometheus.Registry

	// Persistence operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Reconciliation metrics
	AssociationChanges *prometheus.CounterVec

	// Cache metrics
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	CacheInvalidations prometheus.Counter
}

// New creates a registry under namespace and registers all metrics on it.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{Registry: reg}

	m.OperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of persistence operations",
		},
		[]string{"type", "op", "status"},
	)

	m.OperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of persistence operations in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"type", "op"},
	)

	m.AssociationChanges = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "association_changes_total",
			Help:      "Association rows inserted or obsoleted by reconciliation",
		},
		[]string{"collection", "change"},
	)

	m.CacheHits = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Total number of cache hits",
	})
	m.CacheMisses = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Total number of cache misses",
	})
	m.CacheInvalidations = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_invalidations_total",
		Help:      "Total number of cache invalidations",
	})

	return m
}

// RecordOperation records one persistence operation
func (m *Metrics) RecordOperation(typeName, op, status string, duration time.Duration) {
	m.OperationsTotal.WithLabelValues(typeName, op, status).Inc()
	m.OperationDuration.WithLabelValues(typeName, op).Observe(duration.Seconds())
}

// RecordReconcile records the outcome of one collection reconciliation
func (m *Metrics) RecordReconcile(collection string, inserted, obsoleted int) {
	if inserted > 0 {
		m.AssociationChanges.WithLabelValues(collection, "inserted").Add(float64(inserted))
	}
	if obsoleted > 0 {
		m.AssociationChanges.WithLabelValues(collection, "obsoleted").Add(float64(obsoleted))
	}
}

package reactive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures engine metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "reflow").
	Namespace string

	// Subsystem is the metrics subsystem (default: "store").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for propagation duration.
	// Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures engine metrics.
type MetricsOption func(*MetricsConfig)

// MetricsNamespace sets the metrics namespace.
func MetricsNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// MetricsConstLabels sets constant labels for all metrics.
func MetricsConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// MetricsBuckets sets the propagation duration histogram buckets.
func MetricsBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// MetricsRegistry sets the Prometheus registry.
func MetricsRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "reflow",
		Subsystem: "store",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the engine's Prometheus metrics. Create one per
// registry and attach it to stores with WithMetrics; a Metrics value
// may be shared by several stores.
//
// Metrics collected:
//   - reflow_store_writes_total: source cell writes
//   - reflow_store_recomputes_total: derived cell compute runs
//   - reflow_store_batches_total: propagation batches opened
//   - reflow_store_notifications_total: observer callbacks queued
//   - reflow_store_poisonings_total: failed computations
//   - reflow_store_propagation_seconds: propagation pass duration
//   - reflow_store_cells: live cells
type Metrics struct {
	writes        prometheus.Counter
	recomputes    prometheus.Counter
	batches       prometheus.Counter
	notifications prometheus.Counter
	poisonings    prometheus.Counter
	propagation   prometheus.Histogram
	cells         prometheus.Gauge
}

// NewMetrics registers and returns engine metrics.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		writes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "writes_total",
			Help:        "Total number of source cell writes",
			ConstLabels: config.ConstLabels,
		}),
		recomputes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "recomputes_total",
			Help:        "Total number of derived cell compute runs",
			ConstLabels: config.ConstLabels,
		}),
		batches: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "batches_total",
			Help:        "Total number of propagation batches opened",
			ConstLabels: config.ConstLabels,
		}),
		notifications: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notifications_total",
			Help:        "Total number of observer callbacks queued",
			ConstLabels: config.ConstLabels,
		}),
		poisonings: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "poisonings_total",
			Help:        "Total number of failed computations",
			ConstLabels: config.ConstLabels,
		}),
		propagation: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "propagation_seconds",
			Help:        "Propagation pass duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),
		cells: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cells",
			Help:        "Number of live cells",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Package metrics owns the Prometheus registry shared by the offline
// controller and the data access layer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stacklink"

// Metrics groups every collector the module records into.
type Metrics struct {
	registry *prometheus.Registry

	// OfflineResponses counts controller responses by strategy and source
	// (cache, network, fallback, passthrough, error).
	OfflineResponses *prometheus.CounterVec

	// OfflineCacheWriteFailures counts swallowed cache write errors.
	OfflineCacheWriteFailures prometheus.Counter

	// OfflineEvictions counts stale buckets deleted on activation.
	OfflineEvictions prometheus.Counter

	// StoreOperations counts data layer operations by backend, operation and result.
	StoreOperations *prometheus.CounterVec

	// PreviewBackfill counts backfill outcomes per link (updated, missing, failed).
	PreviewBackfill *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		OfflineResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "responses_total",
			Help:      "Responses produced by the offline cache controller.",
		}, []string{"strategy", "source"}),
		OfflineCacheWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "cache_write_failures_total",
			Help:      "Cache writes that failed and were discarded.",
		}),
		OfflineEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "bucket_evictions_total",
			Help:      "Stale cache buckets deleted on activation.",
		}),
		StoreOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Data access layer operations.",
		}, []string{"backend", "operation", "result"}),
		PreviewBackfill: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "preview",
			Name:      "backfill_total",
			Help:      "Preview backfill outcomes per link.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.OfflineResponses,
		m.OfflineCacheWriteFailures,
		m.OfflineEvictions,
		m.StoreOperations,
		m.PreviewBackfill,
	)
	return m
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Package metrics exposes Prometheus collectors for the explorer service
// and the ingest pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "datex"

// Metrics holds every collector on its own registry. Recording methods are
// no-ops on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	rpcTotal      *prometheus.CounterVec
	rpcDuration   *prometheus.HistogramVec
	sessions      prometheus.Gauge
	datasetRows   prometheus.Gauge
	unmatchedRows prometheus.Gauge
	catalogCache  *prometheus.CounterVec
	ingested      *prometheus.CounterVec
}

// New creates and registers the collectors, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rpcTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "Explorer RPCs handled, by method and status code.",
		}, []string{"method", "code"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "Explorer RPC latency by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_open",
			Help:      "Open explorer sessions.",
		}),
		datasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_rows",
			Help:      "Rows in the loaded dataset.",
		}),
		unmatchedRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_unmatched_rows",
			Help:      "Rows of the loaded dataset no source rule matched.",
		}),
		catalogCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_total",
			Help:      "Catalog cache lookups by result (hit or miss).",
		}, []string{"result"}),
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_messages_total",
			Help:      "Broker messages consumed, by outcome (stored or rejected).",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.rpcTotal,
		m.rpcDuration,
		m.sessions,
		m.datasetRows,
		m.unmatchedRows,
		m.catalogCache,
		m.ingested,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRPC records one completed call.
func (m *Metrics) ObserveRPC(method, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.rpcTotal.WithLabelValues(method, code).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// SetSessions records the number of open sessions.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

// SetDataset records the size of the loaded dataset.
func (m *Metrics) SetDataset(rows, unmatched int) {
	if m == nil {
		return
	}
	m.datasetRows.Set(float64(rows))
	m.unmatchedRows.Set(float64(unmatched))
}

// CatalogLookup records a catalog cache hit or miss.
func (m *Metrics) CatalogLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.catalogCache.WithLabelValues(result).Inc()
}

// Ingested records n consumed messages with the given outcome.
func (m *Metrics) Ingested(outcome string, n int) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(outcome).Add(float64(n))
}

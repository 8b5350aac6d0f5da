// Package metrics defines the Prometheus collectors for the query server and
// exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the query server.
type Metrics struct {
	ConnectionsTotal      prometheus.Counter
	ConnectionsActive     prometheus.Gauge
	QueriesTotal          *prometheus.CounterVec
	QueryLatency          prometheus.Histogram
	QueryResultsCount     prometheus.Histogram
	ItemsSentTotal        prometheus.Counter
	ProtocolViolations    prometheus.Counter
	AnalyticsDroppedTotal prometheus.Counter
	IndexedDocuments      prometheus.Gauge
	IndexedTerms          prometheus.Gauge
	AdminRequestsTotal    *prometheus.CounterVec
	AdminRequestDuration  *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a fresh registry, along
// with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		ConnectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "query_connections_total",
				Help: "Total number of accepted client connections.",
			},
		),
		ConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "query_connections_active",
				Help: "Number of connections currently served by a worker.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "query_requests_total",
				Help: "Total queries by outcome (ok, zero_result, protocol_violation, io, ...).",
			},
			[]string{"outcome"},
		),
		QueryLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "query_evaluate_seconds",
				Help:    "Query evaluation latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
		),
		QueryResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "query_results_count",
				Help:    "Number of matching documents per query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500, 1000},
			},
		),
		ItemsSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "query_items_sent_total",
				Help: "Total result records written to clients.",
			},
		),
		ProtocolViolations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "query_protocol_violations_total",
				Help: "Total connections aborted on a malformed token.",
			},
		),
		AnalyticsDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_events_dropped_total",
				Help: "Query events dropped because the buffer was full.",
			},
		),
		IndexedDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_documents",
				Help: "Number of documents in the loaded index.",
			},
		),
		IndexedTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_terms",
				Help: "Number of distinct terms in the loaded index.",
			},
		),
		AdminRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_http_requests_total",
				Help: "Requests to the admin endpoints by method, path and status.",
			},
			[]string{"method", "path", "status"},
		),
		AdminRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "admin_http_request_duration_seconds",
				Help:    "Latency of admin endpoint requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ConnectionsTotal,
		m.ConnectionsActive,
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryResultsCount,
		m.ItemsSentTotal,
		m.ProtocolViolations,
		m.AnalyticsDroppedTotal,
		m.IndexedDocuments,
		m.IndexedTerms,
		m.AdminRequestsTotal,
		m.AdminRequestDuration,
	)

	return m
}

// ObserveCache exports the result cache's own lookup counters, read from
// stats at scrape time. It must be called at most once per Metrics.
func (m *Metrics) ObserveCache(stats func() (hits, misses int64)) {
	m.registry.MustRegister(
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "query_cache_hits_total",
				Help: "Total number of result cache hits.",
			},
			func() float64 {
				hits, _ := stats()
				return float64(hits)
			},
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "query_cache_misses_total",
				Help: "Total number of result cache misses.",
			},
			func() float64 {
				_, misses := stats()
				return float64(misses)
			},
		),
	)
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus scrape HTTP handler for m's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

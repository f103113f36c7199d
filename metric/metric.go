// Package metric provides Prometheus instrumentation for the SPARQL service
// and the HTTP server that exposes it.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "curies"

// Metrics holds the service's Prometheus collectors
type Metrics struct {
	QueriesTotal       *prometheus.CounterVec
	QueryDuration      *prometheus.HistogramVec
	ResponsesTotal     *prometheus.CounterVec
	FederatedRequests  *prometheus.CounterVec
	RegisteredPrefixes prometheus.Gauge
}

// NewMetrics creates the service metrics
func NewMetrics() *Metrics {
	return &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sparql",
				Name:      "queries_total",
				Help:      "Total number of SPARQL queries handled, by shape and outcome",
			},
			[]string{"shape", "status"},
		),

		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "sparql",
				Name:      "query_duration_seconds",
				Help:      "Query evaluation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"shape"},
		),

		ResponsesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sparql",
				Name:      "responses_total",
				Help:      "Total responses served, by negotiated result format",
			},
			[]string{"format"},
		),

		FederatedRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "federation",
				Name:      "requests_total",
				Help:      "Outbound federated sub-queries, by endpoint and outcome",
			},
			[]string{"endpoint", "status"},
		),

		RegisteredPrefixes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "prefixes",
				Help:      "Number of prefix records loaded in the converter",
			},
		),
	}
}

// RecordQuery counts one handled query
func (m *Metrics) RecordQuery(shape, status string) {
	m.QueriesTotal.WithLabelValues(shape, status).Inc()
}

// ObserveQueryDuration records how long an evaluation took
func (m *Metrics) ObserveQueryDuration(shape string, seconds float64) {
	m.QueryDuration.WithLabelValues(shape).Observe(seconds)
}

// RecordResponse counts one serialized response
func (m *Metrics) RecordResponse(format string) {
	m.ResponsesTotal.WithLabelValues(format).Inc()
}

// RecordFederatedRequest counts one outbound SERVICE delegation
func (m *Metrics) RecordFederatedRequest(endpoint, status string) {
	m.FederatedRequests.WithLabelValues(endpoint, status).Inc()
}

// Registry bundles the service metrics with their Prometheus registry
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
}

// NewRegistry creates a registry holding the service metrics plus the Go
// runtime and process collectors
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()

	metrics := NewMetrics()
	registry.MustRegister(
		metrics.QueriesTotal,
		metrics.QueryDuration,
		metrics.ResponsesTotal,
		metrics.FederatedRequests,
		metrics.RegisteredPrefixes,
	)
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{
		prometheusRegistry: registry,
		Metrics:            metrics,
	}
}

// PrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

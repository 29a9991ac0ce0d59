// Package metrics registers the gateway's Prometheus collectors. One
// Metrics value is shared process-wide; the HTTP layer feeds the request
// counter and duration histogram from middleware, the pipeline and indexer
// update their own counters directly.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors for a running gateway instance.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	MaskedEntities      prometheus.Counter
	SanitizerRedactions prometheus.Counter
	UpstreamFailures    prometheus.Counter

	IndexPasses   prometheus.Counter
	IndexedChunks prometheus.Counter
}

// New creates a Metrics with its own registry, so tests can construct fresh
// instances without collector name collisions.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "HTTP requests handled, by method, path, and status code.",
		}, []string{"method", "path", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		MaskedEntities: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_masked_entities_total",
			Help: "PII entities replaced with pseudonyms.",
		}),
		SanitizerRedactions: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_sanitizer_redactions_total",
			Help: "Dangerous commands removed from model output.",
		}),
		UpstreamFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_upstream_failures_total",
			Help: "Chat completion requests that failed upstream.",
		}),
		IndexPasses: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_index_passes_total",
			Help: "Completed reconciliation passes.",
		}),
		IndexedChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_indexed_chunks_total",
			Help: "Chunks embedded and upserted across all passes.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

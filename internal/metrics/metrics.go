// Package metrics wires the pipeline's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the instrument set shared by the fetcher, writer, and pipeline.
// A nil *Metrics is valid and records nothing, so tests and dry runs don't
// need a registry.
type Metrics struct {
	requests     *prometheus.CounterVec
	retries      prometheus.Counter
	fetchLatency prometheus.Histogram
	listings     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_http_requests_total",
			Help: "Adapter HTTP requests by status code.",
		}, []string{"code"}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingest_http_retries_total",
			Help: "Retried adapter HTTP requests.",
		}),
		fetchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_fetch_duration_seconds",
			Help:    "Adapter fetch latency.",
			Buckets: prometheus.DefBuckets,
		}),
		listings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_listings_total",
			Help: "Listing outcomes by source and result.",
		}, []string{"source", "result"}),
	}
}

func (m *Metrics) RecordRequest(code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(codeLabel(code)).Inc()
	m.fetchLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) RecordListing(source, result string) {
	if m == nil {
		return
	}
	m.listings.WithLabelValues(source, result).Inc()
}

func codeLabel(code int) string {
	if code <= 0 {
		return "err"
	}
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code == 429:
		return "429"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// Handler returns the exposition handler for a registry, for mounting on an
// optional metrics listener.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

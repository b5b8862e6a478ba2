// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the fundus service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LatencyBuckets covers the spread from fast metadata lookups to slow
// remote embedding and rerank calls, 10ms to 60s.
var LatencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

// Metrics bundles the service's Prometheus collectors. A nil *Metrics is
// valid and records nothing, so components take it as an optional
// dependency.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge

	uploadsTotal    *prometheus.CounterVec
	searchesTotal   *prometheus.CounterVec
	embeddingsTotal *prometheus.CounterVec

	searchDuration *prometheus.HistogramVec
	rerankDuration prometheus.Histogram
}

// NewMetrics creates and registers the collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundus_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fundus_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: LatencyBuckets,
			},
			[]string{"method", "path"},
		),
		requestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fundus_requests_in_flight",
				Help: "HTTP requests currently being served",
			},
		),
		uploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundus_uploads_total",
				Help: "Uploads by indexing outcome",
			},
			[]string{"outcome"},
		),
		searchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundus_searches_total",
				Help: "Searches by serving mode",
			},
			[]string{"mode"},
		),
		embeddingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundus_embeddings_total",
				Help: "Texts embedded by provider",
			},
			[]string{"provider"},
		),
		searchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fundus_search_duration_seconds",
				Help:    "Search duration by serving mode",
				Buckets: LatencyBuckets,
			},
			[]string{"mode"},
		),
		rerankDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fundus_rerank_duration_seconds",
				Help:    "Rerank stage duration",
				Buckets: LatencyBuckets,
			},
		),
	}

	reg.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.requestsInFlight,
		m.uploadsTotal,
		m.searchesTotal,
		m.embeddingsTotal,
		m.searchDuration,
		m.rerankDuration,
	)
	return m
}

// RecordUpload counts an upload by indexing outcome.
func (m *Metrics) RecordUpload(indexed bool) {
	if m == nil {
		return
	}
	outcome := "indexed"
	if !indexed {
		outcome = "partial"
	}
	m.uploadsTotal.WithLabelValues(outcome).Inc()
}

// RecordSearch counts a search and observes its duration.
func (m *Metrics) RecordSearch(mode string, seconds float64) {
	if m == nil {
		return
	}
	m.searchesTotal.WithLabelValues(mode).Inc()
	m.searchDuration.WithLabelValues(mode).Observe(seconds)
}

// RecordEmbeddings counts texts sent through an embedding provider.
func (m *Metrics) RecordEmbeddings(provider string, count int) {
	if m == nil {
		return
	}
	m.embeddingsTotal.WithLabelValues(provider).Add(float64(count))
}

// RecordRerank observes the duration of a rerank stage.
func (m *Metrics) RecordRerank(seconds float64) {
	if m == nil {
		return
	}
	m.rerankDuration.Observe(seconds)
}

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the application. A nil
// *Metrics is valid and records nothing, so components can take one
// optionally.
type Metrics struct {
	backendRequestsTotal   *prometheus.CounterVec
	backendRequestDuration *prometheus.HistogramVec
	metadataFetchesTotal   *prometheus.CounterVec
	staleResultsTotal      *prometheus.CounterVec

	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
	wsActiveClients     prometheus.Gauge
}

// NewMetrics creates and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		backendRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nftview_backend_requests_total",
				Help: "Total number of indexer backend requests by endpoint kind and result status",
			},
			[]string{"kind", "status"},
		),
		backendRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nftview_backend_request_duration_seconds",
				Help:    "Duration of indexer backend requests in seconds, including metadata hydration",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"kind"},
		),
		metadataFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nftview_metadata_fetches_total",
				Help: "Token metadata fetches by outcome (ok, skipped, failed)",
			},
			[]string{"outcome"},
		),
		staleResultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nftview_stale_results_discarded_total",
				Help: "Retrieval results discarded because a newer request had already been applied",
			},
			[]string{"kind"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nftview_http_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nftview_http_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"handler", "method", "status"},
		),
		wsActiveClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "nftview_ws_active_clients",
				Help: "Number of connected websocket clients",
			},
		),
	}
}

// RecordBackendRequest records one list request against the backend.
func (m *Metrics) RecordBackendRequest(kind, status string, duration float64) {
	if m == nil {
		return
	}
	m.backendRequestsTotal.WithLabelValues(kind, status).Inc()
	m.backendRequestDuration.WithLabelValues(kind).Observe(duration)
}

// RecordMetadataFetch records the outcome of hydrating one token.
func (m *Metrics) RecordMetadataFetch(outcome string) {
	if m == nil {
		return
	}
	m.metadataFetchesTotal.WithLabelValues(outcome).Inc()
}

// RecordStaleResult records a result dropped by the sequence gate.
func (m *Metrics) RecordStaleResult(kind string) {
	if m == nil {
		return
	}
	m.staleResultsTotal.WithLabelValues(kind).Inc()
}

// RecordHTTPRequest records an API request.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// SetWSClients sets the current websocket client count.
func (m *Metrics) SetWSClients(n int) {
	if m == nil {
		return
	}
	m.wsActiveClients.Set(float64(n))
}

func statusCodeToString(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return strconv.Itoa(code)
	}
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordBackendRequest("collection", "ok", 0.1)
		m.RecordMetadataFetch("ok")
		m.RecordStaleResult("tokens")
		m.RecordHTTPRequest("/api/status", "GET", 200, 0.01)
		m.SetWSClients(3)
	})
}

func TestRecorders(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordBackendRequest("collection", "ok", 0.2)
	m.RecordBackendRequest("collection", "ok", 0.3)
	m.RecordMetadataFetch("failed")
	m.RecordStaleResult("tokens")
	m.SetWSClients(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.backendRequestsTotal.WithLabelValues("collection", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metadataFetchesTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.staleResultsTotal.WithLabelValues("tokens")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.wsActiveClients))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	h := HTTPMetricsMiddleware(m, "/api/search")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/search", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/api/search", "POST", "4xx")))
}

func TestStatusCodeToString(t *testing.T) {
	assert.Equal(t, "2xx", statusCodeToString(204))
	assert.Equal(t, "3xx", statusCodeToString(302))
	assert.Equal(t, "4xx", statusCodeToString(404))
	assert.Equal(t, "5xx", statusCodeToString(502))
	assert.Equal(t, "101", statusCodeToString(101))
}

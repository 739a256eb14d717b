package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nftview/pkg/backend"
	"nftview/pkg/coordinator"
	"nftview/pkg/metrics"
	"nftview/pkg/models"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCollection = "0x33084a2a5e90622033caac1fe1aa0ed2de41cf4b"

type stubSource struct {
	calls chan models.Request
}

func (s *stubSource) FetchTokens(ctx context.Context, req models.Request) models.TokenList {
	s.calls <- req
	return models.TokenList{Tokens: []models.TokenRecord{}, Status: models.StatusEmpty}
}

func (s *stubSource) FetchHistory(ctx context.Context, req models.Request) models.HistoryList {
	return models.HistoryList{Events: []models.TransferEvent{}, Status: models.StatusEmpty}
}

func newTestServer(t *testing.T) (*Server, *stubSource, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	c := coordinator.NewCoordinator(backend.NewClient("http://127.0.0.1:1", "", nil, nil, m), testCollection, models.ViewCollection, nil, m)
	src := &stubSource{calls: make(chan models.Request, 10)}
	c.SetDataSource(src)
	return NewServer(c, nil, m, reg), src, reg
}

func TestHandleStatus(t *testing.T) {
	s, _, _ := newTestServer(t)

	req, _ := http.NewRequest("GET", "/api/status", nil)
	rr := httptest.NewRecorder()

	s.mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp map[string]interface{}
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, testCollection, resp["scope"])
	assert.Equal(t, "collection", resp["view"])
	assert.Contains(t, resp, "tokens")
	assert.Contains(t, resp, "history")
}

func TestHandleSearchRejectsBadInput(t *testing.T) {
	s, _, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"scope":`},
		{"missing scope", `{}`},
		{"not an address", `{"scope":"foo"}`},
		{"unknown view", `{"scope":"` + testCollection + `","view":"wallet"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			s.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rr.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestHandleSearch(t *testing.T) {
	s, src, _ := newTestServer(t)
	owner := "0x8fdd8db198b292d233fb5dc191e31bebc41e1144"

	rr := httptest.NewRecorder()
	body := `{"scope":" ` + owner + ` ","view":"owner"}`
	s.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body)))
	assert.Equal(t, http.StatusAccepted, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, owner, resp["scope"])
	assert.Equal(t, "owner", resp["view"])

	select {
	case req := <-src.calls:
		assert.Equal(t, owner, req.Scope)
		assert.Equal(t, models.ViewOwner, req.View)
	case <-time.After(time.Second):
		t.Fatal("search did not trigger a token refresh")
	}
}

func TestHandleRefresh(t *testing.T) {
	s, src, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	assert.Equal(t, http.StatusAccepted, rr.Code)

	select {
	case req := <-src.calls:
		assert.Equal(t, testCollection, req.Scope)
	case <-time.After(time.Second):
		t.Fatal("refresh did not trigger a token refresh")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/search", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	s.mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/status", nil))

	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	body, _ := io.ReadAll(rr.Body)
	assert.Contains(t, string(body), `nftview_http_requests_total{handler="/api/status",method="GET",status="2xx"} 1`)
}

func TestHandleWS(t *testing.T) {
	s, _, _ := newTestServer(t)
	server := httptest.NewServer(s.mux)
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	// Read initial state
	var msg map[string]interface{}
	err = ws.ReadJSON(&msg)
	require.NoError(t, err)
	assert.Equal(t, "initial", msg["type"])
	data, ok := msg["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, testCollection, data["scope"])

	s.broadcast(coordinator.Event{Type: coordinator.EventLoadingChanged, Data: true})

	_ = ws.SetReadDeadline(time.Now().Add(time.Second))
	err = ws.ReadJSON(&msg)
	require.NoError(t, err)
	assert.Equal(t, "loading_changed", msg["type"])
	assert.Equal(t, true, msg["data"])
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"nftview/pkg/coordinator"
	"nftview/pkg/metrics"
	"nftview/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	coord    *coordinator.Coordinator
	clients  map[*websocket.Conn]bool
	mu       sync.Mutex
	mux      *http.ServeMux
	logger   *slog.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	// ctx bounds searches started by API calls; they outlive the request.
	ctx context.Context
}

// NewServer wires the API around c. logger, m and gatherer may be nil;
// a nil gatherer serves the default registry on /metrics.
func NewServer(c *coordinator.Coordinator, logger *slog.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		coord:    c,
		clients:  make(map[*websocket.Conn]bool),
		mux:      http.NewServeMux(),
		logger:   logger,
		metrics:  m,
		gatherer: gatherer,
		ctx:      context.Background(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("GET /api/status", metrics.HTTPMetricsMiddleware(s.metrics, "/api/status")(http.HandlerFunc(s.handleStatus)))
	s.mux.Handle("POST /api/search", metrics.HTTPMetricsMiddleware(s.metrics, "/api/search")(http.HandlerFunc(s.handleSearch)))
	s.mux.Handle("POST /api/refresh", metrics.HTTPMetricsMiddleware(s.metrics, "/api/refresh")(http.HandlerFunc(s.handleRefresh)))
	// The metrics wrapper hides http.Hijacker, so /ws stays bare.
	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// Start serves on port until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	s.ctx = ctx
	go s.listenToCoordinator(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.closeClients()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.coord.Snapshot(), http.StatusOK)
}

type searchRequest struct {
	Scope string          `json:"scope"`
	View  models.ViewKind `json:"view,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req.Scope = strings.TrimSpace(req.Scope)
	if !common.IsHexAddress(req.Scope) {
		writeError(w, fmt.Sprintf("scope %q is not a hex address", req.Scope), http.StatusBadRequest)
		return
	}
	if req.View != "" {
		if err := s.coord.SetView(req.View); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	s.logger.Info("search requested", "scope", req.Scope, "view", s.coord.View())
	s.coord.SetScope(req.Scope)
	go s.coord.Refresh(s.ctx)

	writeJSON(w, searchRequest{Scope: s.coord.Scope(), View: s.coord.View()}, http.StatusAccepted)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	go s.coord.Refresh(s.ctx)
	writeJSON(w, searchRequest{Scope: s.coord.Scope(), View: s.coord.View()}, http.StatusAccepted)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	// Send initial state before joining the broadcast set so writes
	// to conn never interleave.
	s.mu.Lock()
	initial := map[string]interface{}{
		"type": "initial",
		"data": s.coord.Snapshot(),
	}
	if err := conn.WriteJSON(initial); err != nil {
		s.mu.Unlock()
		return
	}
	s.clients[conn] = true
	s.metrics.SetWSClients(len(s.clients))
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.metrics.SetWSClients(len(s.clients))
		s.mu.Unlock()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) listenToCoordinator(ctx context.Context) {
	sub := s.coord.Subscribe()
	defer s.coord.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub:
			if !ok {
				return
			}
			s.broadcast(event)
		}
	}
}

func (s *Server) broadcast(event coordinator.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(event); err != nil {
			s.logger.Debug("dropping websocket client", "error", err)
			_ = client.Close()
			delete(s.clients, client)
		}
	}
	s.metrics.SetWSClients(len(s.clients))
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		_ = client.Close()
		delete(s.clients, client)
	}
	s.metrics.SetWSClients(0)
}

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, map[string]string{"error": message}, statusCode)
}

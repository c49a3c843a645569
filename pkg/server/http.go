package server

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HTTPHandler returns the HTTP surface of the server:
//
//   - GET <WebSocketPath>: WebSocket endpoint carrying the byte stream
//   - GET /healthz: liveness with the active session count
//   - GET /stats: aggregated session statistics as JSON
//   - GET /metrics: the handler set with SetMetricsHandler, if any
func (s *Server) HTTPHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get(s.config.WebSocketPath, s.HandleWebSocket)
	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	if s.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsHandler)
	}

	return r
}

// ListenAndServeHTTP serves HTTPHandler on Config.HTTPAddress.
func (s *Server) ListenAndServeHTTP() error {
	l, err := net.Listen("tcp", s.config.HTTPAddress)
	if err != nil {
		return err
	}
	return s.ServeHTTPListener(l)
}

// ServeHTTPListener serves HTTPHandler on l until Shutdown.
func (s *Server) ServeHTTPListener(l net.Listener) error {
	srv := &http.Server{
		Handler:           s.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("http listener started",
		"address", l.Addr().String(),
		"websocket_path", s.config.WebSocketPath)

	err := srv.Serve(l)
	if err == http.ErrServerClosed {
		return ErrServerClosed
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Count(),
	}
	if s.closed.Load() {
		status = http.StatusServiceUnavailable
		body["status"] = "shutting_down"
	}
	writeJSON(w, status, body)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Metrics())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Package api provides the admin/debug HTTP server for rtuned: health,
// Prometheus metrics, and a read-only dump of Coordinator state. It
// never accepts tuning requests itself — those arrive over the
// ingress UNIX-domain socket — so every route here is safe to expose
// on a loopback-only listener without the permission checks the CC's
// public API already enforces.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tnidigan/userspace-resource-manager/internal/cc"
)

// Server is the rtuned admin HTTP API server.
type Server struct {
	coord          *cc.Coordinator
	metricsEnabled bool
}

// NewServer creates a new admin API server bound to coord.
func NewServer(coord *cc.Coordinator) *Server {
	return &Server{coord: coord}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/status", s.handleStatus)
	r.Get("/debug/coco", s.handleDebugCoco)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// handleStatus reports coordinator load for the status CLI subcommand.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.Stats())
}

// handleDebugCoco dumps the current arbitration winner for every
// registered scope.
func (s *Server) handleDebugCoco(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.Snapshot())
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

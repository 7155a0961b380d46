package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/helionsec/helion/internal/cluster"
	"github.com/helionsec/helion/models"
)

// buildHandler wires all REST routes onto a new ServeMux.
// Uses Go 1.22+ method-prefixed patterns ("GET /path", "POST /path").
func buildHandler(s *Server) http.Handler {
	mux := http.NewServeMux()

	// Health and login are the only unauthenticated routes.
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/users", s.requireAdmin(s.handleListUsers))

	mux.HandleFunc("POST /api/v1/upload", s.requireAuth(s.handleUpload))
	mux.HandleFunc("GET /api/v1/clusters", s.requireAuth(s.handleClusters))
	mux.HandleFunc("POST /api/v1/reasoning", s.requireAuth(s.handleReasoning))
	mux.HandleFunc("POST /api/v1/tickets", s.requireAuth(s.handleTickets))
	mux.HandleFunc("POST /api/v1/export", s.requireAuth(s.handleExport))

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type healthResponse struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
	Database    string `json:"database"`
	Reasoning   string `json:"reasoning"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "connected"
	if err := s.db.Ping(r.Context()); err != nil {
		dbStatus = "disconnected"
	}
	reasoningStatus := "unavailable"
	if s.reasoner.IsAvailable(r.Context()) {
		reasoningStatus = "available"
	}
	env := s.cfg.Environment
	if env == "" {
		env = "dev"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Environment: env,
		Database:    dbStatus,
		Reasoning:   reasoningStatus,
	})
}

// loadClusters rebuilds the cluster view from every stored finding.
func (s *Server) loadClusters(ctx context.Context) ([]models.VulnerabilityCluster, int, error) {
	var findings []models.Finding
	if err := s.db.Select(ctx, &findings, "SELECT * FROM findings ORDER BY id"); err != nil {
		return nil, 0, err
	}
	return cluster.Build(findings), len(findings), nil
}

type clustersResponse struct {
	Clusters []models.VulnerabilityCluster `json:"clusters"`
	Metrics  models.CompressionMetrics     `json:"metrics"`
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	clusters, findingCount, err := s.loadClusters(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading findings: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, clustersResponse{
		Clusters: clusters,
		Metrics:  cluster.Metrics(findingCount, len(clusters)),
	})
}

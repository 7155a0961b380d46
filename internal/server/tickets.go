package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/helionsec/helion/internal/risktier"
	"github.com/helionsec/helion/internal/ticket"
	"github.com/helionsec/helion/internal/tracker"
	"github.com/helionsec/helion/models"
)

type ticketsRequest struct {
	Clusters     []models.VulnerabilityCluster `json:"clusters"`
	UseDB        bool                          `json:"use_db"`
	UseReasoning bool                          `json:"use_reasoning"`
}

type ticketsResponse struct {
	Tickets []ticket.Payload `json:"tickets"`
}

type exportRequest struct {
	ticketsRequest
	// Tracker selects the destination: jira (default), github or gitlab.
	Tracker string `json:"tracker"`
}

func (s *Server) handleTickets(w http.ResponseWriter, r *http.Request) {
	var body ticketsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	tickets, ok := s.buildTickets(w, r, body)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ticketsResponse{Tickets: tickets})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var body exportRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	tickets, ok := s.buildTickets(w, r, body.ticketsRequest)
	if !ok {
		return
	}

	exp, err := s.newExporter(body.Tracker, s.cfg)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if len(tickets) == 0 {
		writeJSON(w, http.StatusOK, &tracker.ExportResult{
			Tracker: exp.Name(),
			Epics:   map[string]string{},
			Issues:  []tracker.CreatedIssue{},
			Errors:  []string{},
		})
		return
	}

	result, err := exp.Export(r.Context(), tickets)
	if err != nil {
		s.writeExportError(w, exp.Name(), err)
		return
	}

	status := "success"
	if len(result.Errors) > 0 {
		status = "partial"
	}
	slog.Info("server: export completed",
		"tracker", exp.Name(),
		"export_status", status,
		"epic_count", len(result.Epics),
		"issue_count", len(result.Issues),
		"error_count", len(result.Errors))
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeExportError(w http.ResponseWriter, name string, err error) {
	slog.Error("server: export failed", "tracker", name, "error", err)
	if errors.Is(err, tracker.ErrNotConfigured) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	var apiErr *tracker.APIError
	if errors.As(err, &apiErr) {
		status := http.StatusBadRequest
		if apiErr.StatusCode >= 500 || apiErr.StatusCode == 0 {
			status = http.StatusBadGateway
		}
		writeError(w, status, apiErr.Error())
		return
	}
	writeError(w, http.StatusBadGateway, err.Error())
}

// buildTickets resolves clusters from the request or the database, optionally
// runs the reasoning pass with tier assignment, and converts everything to
// ticket payloads. On failure it writes the error response and returns
// ok=false.
func (s *Server) buildTickets(w http.ResponseWriter, r *http.Request, body ticketsRequest) ([]ticket.Payload, bool) {
	var clusters []models.VulnerabilityCluster
	if body.UseDB {
		var err error
		clusters, _, err = s.loadClusters(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "loading findings: "+err.Error())
			return nil, false
		}
	} else {
		clusters = body.Clusters
	}
	if len(clusters) > maxClustersPerRequest {
		writeError(w, http.StatusUnprocessableEntity, "At most 100 clusters are allowed per request.")
		return nil, false
	}

	notesByID := make(map[string]*models.ClusterNote)
	tiersByID := make(map[string]*models.ClusterRiskTierResult)
	servicesByID := make(map[string][]string)

	if body.UseReasoning && len(clusters) > 0 {
		result, err := s.reasoner.Analyze(r.Context(), clusters)
		if err != nil {
			writeReasoningError(w, err)
			return nil, false
		}
		tierResults := risktier.AssignAll(clusters, result, nil)
		for i := range result.ClusterNotes {
			note := result.ClusterNotes[i]
			if _, seen := notesByID[note.VulnerabilityID]; !seen {
				notesByID[note.VulnerabilityID] = &note
			}
		}
		for i := range tierResults {
			tiersByID[tierResults[i].VulnerabilityID] = &tierResults[i]
		}
	}

	// Clusters flagged "multiple" get their member repos resolved so the
	// ticket lists real service names.
	for _, c := range clusters {
		if c.Repo != "multiple" {
			continue
		}
		repos, err := ticket.ResolveAffectedServices(r.Context(), s.db, c.FindingIDs)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "resolving affected services: "+err.Error())
			return nil, false
		}
		if len(repos) > 0 {
			servicesByID[c.VulnerabilityID] = repos
		}
	}

	return ticket.FromClusters(clusters, notesByID, tiersByID, servicesByID), true
}

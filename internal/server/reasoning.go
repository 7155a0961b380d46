package server

import (
	"encoding/json"
	"net/http"

	"github.com/helionsec/helion/internal/cluster"
	"github.com/helionsec/helion/internal/reasoning"
	"github.com/helionsec/helion/internal/risktier"
	"github.com/helionsec/helion/models"
)

// maxClustersPerRequest bounds how many clusters one reasoning or ticket
// request may carry; use_db requests are capped to the same size instead.
const maxClustersPerRequest = 100

const reasoningLimitedNote = "Reasoning limited to top 100 clusters."

type reasoningRequest struct {
	Clusters []models.VulnerabilityCluster `json:"clusters"`
	UseDB    bool                          `json:"use_db"`
}

type reasoningResponse struct {
	Summary      string               `json:"summary"`
	ClusterNotes []models.ClusterNote `json:"cluster_notes"`
}

// handleReasoning sends clusters to the LLM and returns its notes enriched
// with deterministic tier assignments. The model only informs the tier; the
// override rules decide it.
func (s *Server) handleReasoning(w http.ResponseWriter, r *http.Request) {
	var body reasoningRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}

	var clusters []models.VulnerabilityCluster
	var limitedNote string
	if body.UseDB {
		var err error
		clusters, _, err = s.loadClusters(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "loading findings: "+err.Error())
			return
		}
		if len(clusters) > maxClustersPerRequest {
			cluster.SortBySeverityCVSS(clusters)
			clusters = clusters[:maxClustersPerRequest]
			limitedNote = reasoningLimitedNote
		}
	} else {
		clusters = body.Clusters
		if len(clusters) > maxClustersPerRequest {
			writeError(w, http.StatusUnprocessableEntity, "At most 100 clusters are allowed per request.")
			return
		}
	}

	result, err := s.reasoner.Analyze(r.Context(), clusters)
	if err != nil {
		writeReasoningError(w, err)
		return
	}

	// Tier assignment is deterministic; notes only inform it.
	tierResults := risktier.AssignAll(clusters, result, nil)
	tierByID := make(map[string]models.ClusterRiskTierResult, len(tierResults))
	for _, tr := range tierResults {
		tierByID[tr.VulnerabilityID] = tr
	}

	enriched := make([]models.ClusterNote, 0, len(result.ClusterNotes))
	for _, note := range result.ClusterNotes {
		if tr, ok := tierByID[note.VulnerabilityID]; ok {
			note.AssignedTier = tr.AssignedTier
			note.OverrideApplied = tr.OverrideApplied
		}
		enriched = append(enriched, note)
	}

	summary := result.Summary
	if limitedNote != "" {
		summary = summary + "\n\n" + limitedNote
	}
	writeJSON(w, http.StatusOK, reasoningResponse{Summary: summary, ClusterNotes: enriched})
}

// writeReasoningError maps provider failure kinds to HTTP statuses:
// unreachable or timed out 503, bad upstream status 502, unusable model
// output 422.
func writeReasoningError(w http.ResponseWriter, err error) {
	if re, ok := reasoning.AsError(err); ok {
		switch re.Kind {
		case reasoning.KindUnreachable:
			writeError(w, http.StatusServiceUnavailable, re.Error())
		case reasoning.KindUpstreamStatus:
			writeError(w, http.StatusBadGateway, re.Error())
		default:
			writeError(w, http.StatusUnprocessableEntity, re.Error())
		}
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

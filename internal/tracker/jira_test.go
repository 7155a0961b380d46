package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/helionsec/helion/internal/config"
	"github.com/helionsec/helion/internal/ticket"
)

func jiraTestTickets() []ticket.Payload {
	return []ticket.Payload{
		{
			Title:                  "[Tier 1] CVE-2024-0001 | api | lodash",
			Description:            "Vulnerability: CVE-2024-0001\nSeverity: critical",
			AffectedServices:       []string{"api"},
			AcceptanceCriteria:     []string{"Vulnerability remediated and verified."},
			RecommendedRemediation: "Upgrade lodash.",
			RiskTierLabel:          "Tier 1",
		},
		{
			Title:                  "[Tier 3] rule.eval | web",
			Description:            "Vulnerability: rule.eval\nSeverity: low",
			AffectedServices:       []string{"web"},
			AcceptanceCriteria:     []string{"Vulnerability remediated and verified."},
			RecommendedRemediation: "Remove eval.",
			RiskTierLabel:          "Tier 3",
		},
	}
}

func jiraExporterFor(srvURL string) *JiraExporter {
	return NewJira(config.JiraConfig{
		BaseURL:    srvURL,
		Email:      "sec@example.com",
		APIToken:   "token",
		ProjectKey: "SEC",
		TimeoutSec: 5,
	})
}

func TestJiraExport(t *testing.T) {
	var summaries []string
	counter := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/3/issue" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "sec@example.com" || pass != "token" {
			t.Errorf("missing or wrong basic auth")
		}
		var payload struct {
			Fields map[string]any `json:"fields"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decoding payload: %v", err)
		}
		summaries = append(summaries, payload.Fields["summary"].(string))
		counter++
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"key": fmt.Sprintf("SEC-%d", counter)})
	}))
	defer srv.Close()

	result, err := jiraExporterFor(srv.URL).Export(context.Background(), jiraTestTickets())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	// Two epics (tiers 1 and 3 in use) and two issues.
	if result.Epics["Tier 1"] != "SEC-1" || result.Epics["Tier 3"] != "SEC-2" {
		t.Errorf("unexpected epics %v", result.Epics)
	}
	if len(result.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(result.Issues))
	}
	if result.Issues[0].Key != "SEC-3" || result.Issues[0].Tier != "Tier 1" {
		t.Errorf("unexpected issue %+v", result.Issues[0])
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors %v", result.Errors)
	}
	if summaries[0] != "Helion – Tier 1 (Highest risk)" {
		t.Errorf("unexpected epic summary %q", summaries[0])
	}
}

func TestJiraExportAuthFailureAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := jiraExporterFor(srv.URL).Export(context.Background(), jiraTestTickets())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
}

func TestJiraExportPartialFailure(t *testing.T) {
	counter := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counter++
		// Epics succeed; the first issue is rejected by validation.
		if counter == 3 {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"errorMessages": []string{"summary too long"}})
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"key": fmt.Sprintf("SEC-%d", counter)})
	}))
	defer srv.Close()

	result, err := jiraExporterFor(srv.URL).Export(context.Background(), jiraTestTickets())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(result.Issues) != 1 {
		t.Errorf("expected 1 created issue, got %d", len(result.Issues))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", result.Errors)
	}
}

func TestJiraExportNotConfigured(t *testing.T) {
	j := NewJira(config.JiraConfig{})

	_, err := j.Export(context.Background(), jiraTestTickets())
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestPlainTextToADF(t *testing.T) {
	doc := plainTextToADF("line one\nline two")
	content := doc["content"].([]any)
	if len(content) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", len(content))
	}

	empty := plainTextToADF("   ")
	if len(empty["content"].([]any)) != 0 {
		t.Errorf("expected empty content for blank text")
	}
}

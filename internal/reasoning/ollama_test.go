package reasoning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/helionsec/helion/internal/config"
	"github.com/helionsec/helion/models"
)

func testClusters() []models.VulnerabilityCluster {
	return []models.VulnerabilityCluster{
		{
			VulnerabilityID:       "CVE-2024-0001",
			Severity:              models.SeverityHigh,
			Repo:                  "api",
			Dependency:            "lodash",
			CVSSScore:             7.5,
			Description:           "Prototype pollution",
			AffectedServicesCount: 1,
			FindingCount:          2,
		},
	}
}

func ollamaStub(t *testing.T, handler http.HandlerFunc) *OllamaProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOllama(config.OllamaConfig{BaseURL: srv.URL, Model: "test-model", TimeoutSec: 5})
}

func TestAnalyzeParsesModelOutput(t *testing.T) {
	modelReply := `{"summary":"One high severity dependency issue.","cluster_notes":[{"vulnerability_id":"CVE-2024-0001","priority":"high","reasoning":"Upgrade lodash."}]}`
	p := ollamaStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Format != "json" {
			t.Errorf("expected format json, got %q", req.Format)
		}
		if req.Model != "test-model" {
			t.Errorf("expected model test-model, got %q", req.Model)
		}
		json.NewEncoder(w).Encode(map[string]any{"response": modelReply, "done": true})
	})

	result, err := p.Analyze(context.Background(), testClusters())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Summary != "One high severity dependency issue." {
		t.Errorf("unexpected summary %q", result.Summary)
	}
	if len(result.ClusterNotes) != 1 || result.ClusterNotes[0].Priority != "high" {
		t.Errorf("unexpected notes %+v", result.ClusterNotes)
	}
}

func TestAnalyzeStripsCodeFence(t *testing.T) {
	modelReply := "```json\n{\"summary\":\"ok\",\"cluster_notes\":[]}\n```"
	p := ollamaStub(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"response": modelReply, "done": true})
	})

	result, err := p.Analyze(context.Background(), testClusters())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Summary != "ok" {
		t.Errorf("unexpected summary %q", result.Summary)
	}
}

func TestAnalyzeInvalidModelJSON(t *testing.T) {
	p := ollamaStub(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"response": "sorry, not json", "done": true})
	})

	_, err := p.Analyze(context.Background(), testClusters())
	re, ok := AsError(err)
	if !ok || re.Kind != KindInvalidOutput {
		t.Fatalf("expected invalid-output error, got %v", err)
	}
}

func TestAnalyzeMissingNoteFields(t *testing.T) {
	modelReply := `{"summary":"ok","cluster_notes":[{"vulnerability_id":"","priority":"high","reasoning":"x"}]}`
	p := ollamaStub(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"response": modelReply, "done": true})
	})

	_, err := p.Analyze(context.Background(), testClusters())
	re, ok := AsError(err)
	if !ok || re.Kind != KindInvalidOutput {
		t.Fatalf("expected invalid-output error, got %v", err)
	}
}

func TestAnalyzeUpstreamStatus(t *testing.T) {
	p := ollamaStub(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	_, err := p.Analyze(context.Background(), testClusters())
	re, ok := AsError(err)
	if !ok || re.Kind != KindUpstreamStatus {
		t.Fatalf("expected upstream-status error, got %v", err)
	}
}

func TestAnalyzeRetriesServerErrors(t *testing.T) {
	attempts := 0
	p := ollamaStub(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"response": `{"summary":"ok","cluster_notes":[]}`, "done": true})
	})
	p.retryBackoff = 0

	result, err := p.Analyze(context.Background(), testClusters())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
	if result.Summary != "ok" {
		t.Errorf("unexpected summary %q", result.Summary)
	}
}

func TestAnalyzeUnreachable(t *testing.T) {
	p := NewOllama(config.OllamaConfig{BaseURL: "http://127.0.0.1:1", Model: "test-model", TimeoutSec: 1})
	p.retryBackoff = 0
	p.maxAttempts = 1

	_, err := p.Analyze(context.Background(), testClusters())
	re, ok := AsError(err)
	if !ok || re.Kind != KindUnreachable {
		t.Fatalf("expected unreachable error, got %v", err)
	}
}

func TestAnalyzeEmptyClusters(t *testing.T) {
	p := NewOllama(config.OllamaConfig{})

	result, err := p.Analyze(context.Background(), nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Summary != "No clusters provided." {
		t.Errorf("unexpected summary %q", result.Summary)
	}
}

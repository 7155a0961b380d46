package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/helionsec/helion/internal/config"
	"github.com/helionsec/helion/models"
)

// OllamaProvider implements Provider against a local Ollama server.
// Generation options are pinned (temperature 0, fixed seed) so the same
// cluster set yields the same assessment.
type OllamaProvider struct {
	baseURL      string
	model        string
	client       *http.Client
	options      ollamaOptions
	maxAttempts  int
	retryBackoff time.Duration
}

// NewOllama creates an OllamaProvider from cfg.
func NewOllama(cfg config.OllamaConfig) *OllamaProvider {
	base := cfg.BaseURL
	if base == "" {
		base = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "llama3.2"
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaProvider{
		baseURL: strings.TrimRight(base, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
		options: ollamaOptions{
			Temperature:   cfg.Temperature,
			TopP:          cfg.TopP,
			RepeatPenalty: cfg.RepeatPenalty,
			Seed:          cfg.Seed,
		},
		maxAttempts:  2,
		retryBackoff: 1500 * time.Millisecond,
	}
}

func (o *OllamaProvider) Name() string { return "ollama" }

func (o *OllamaProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Analyze sends the cluster set to the model and parses its JSON reply.
func (o *OllamaProvider) Analyze(ctx context.Context, clusters []models.VulnerabilityCluster) (*models.ReasoningResult, error) {
	if len(clusters) == 0 {
		return &models.ReasoningResult{Summary: "No clusters provided.", ClusterNotes: []models.ClusterNote{}}, nil
	}

	start := time.Now()
	raw, err := o.generate(ctx, buildPrompt(clusters))
	elapsed := time.Since(start)
	if err != nil {
		slog.Info("reasoning request failed",
			"model", o.model,
			"cluster_count", len(clusters),
			"elapsed", elapsed,
			"error", err,
		)
		return nil, err
	}
	slog.Info("reasoning request completed",
		"model", o.model,
		"cluster_count", len(clusters),
		"elapsed", elapsed,
	)

	result, err := parseModelOutput(raw)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// buildPrompt renders the cluster set as JSON with instructions to answer in
// a fixed JSON shape only.
func buildPrompt(clusters []models.VulnerabilityCluster) string {
	type promptCluster struct {
		VulnerabilityID       string  `json:"vulnerability_id"`
		Severity              string  `json:"severity"`
		Repo                  string  `json:"repo"`
		FilePath              string  `json:"file_path"`
		Dependency            string  `json:"dependency"`
		CVSSScore             float64 `json:"cvss_score"`
		Description           string  `json:"description"`
		AffectedServicesCount int     `json:"affected_services_count"`
		FindingCount          int     `json:"finding_count"`
	}
	data := make([]promptCluster, len(clusters))
	for i, c := range clusters {
		data[i] = promptCluster{
			VulnerabilityID:       c.VulnerabilityID,
			Severity:              c.Severity.String(),
			Repo:                  c.Repo,
			FilePath:              c.FilePath,
			Dependency:            c.Dependency,
			CVSSScore:             c.CVSSScore,
			Description:           c.Description,
			AffectedServicesCount: c.AffectedServicesCount,
			FindingCount:          c.FindingCount,
		}
	}
	clustersJSON, _ := json.MarshalIndent(data, "", "  ")

	return fmt.Sprintf(`You are a security analyst. Below is a list of vulnerability clusters (grouped findings). For each cluster, provide a short priority label and reasoning/remediation hint.

Vulnerability clusters (JSON):
%s

Respond with ONLY a single valid JSON object (no markdown, no code fence, no extra text). The JSON must have exactly this shape:
{
  "summary": "One short overall assessment of these clusters (1-3 sentences).",
  "cluster_notes": [
    {
      "vulnerability_id": "<same as in the list>",
      "priority": "critical|high|medium|low",
      "reasoning": "Short explanation or remediation hint for this cluster."
    }
  ]
}

Include one object in "cluster_notes" for each cluster in the input list, in the same order. Output only the JSON object.`, clustersJSON)
}

type ollamaOptions struct {
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	RepeatPenalty float64 `json:"repeat_penalty"`
	Seed          int     `json:"seed"`
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format"`
	Options ollamaOptions `json:"options"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (o *OllamaProvider) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:   o.model,
		Prompt:  prompt,
		Stream:  false,
		Format:  "json",
		Options: o.options,
	})
	if err != nil {
		return "", &Error{Kind: KindInvalidOutput, Msg: "marshalling ollama request", Err: err}
	}

	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			o.baseURL+"/api/generate", bytes.NewReader(body))
		if err != nil {
			return "", &Error{Kind: KindUnreachable, Msg: "building ollama request", Err: err}
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := o.client.Do(req)
		if err != nil {
			lastErr = &Error{
				Kind: KindUnreachable,
				Msg:  "ollama is unreachable; ensure it is running and the base URL is correct",
				Err:  err,
			}
		} else {
			data, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = &Error{Kind: KindUnreachable, Msg: "reading ollama response", Err: readErr}
			} else if resp.StatusCode != http.StatusOK {
				lastErr = &Error{
					Kind: KindUpstreamStatus,
					Msg: fmt.Sprintf("ollama returned status %d; check that the model is pulled (ollama pull %s)",
						resp.StatusCode, o.model),
				}
				if !retryableStatus(resp.StatusCode) {
					return "", lastErr
				}
			} else {
				var apiResp ollamaResponse
				if err := json.Unmarshal(data, &apiResp); err != nil {
					return "", &Error{Kind: KindInvalidOutput, Msg: "ollama response body is not valid JSON", Err: err}
				}
				return strings.TrimSpace(apiResp.Response), nil
			}
		}

		if attempt >= o.maxAttempts || ctx.Err() != nil {
			break
		}
		slog.Warn("ollama generate failed; retrying",
			"attempt", attempt,
			"max_attempts", o.maxAttempts,
			"error", lastErr,
		)
		select {
		case <-time.After(o.retryBackoff):
		case <-ctx.Done():
			return "", &Error{Kind: KindUnreachable, Msg: "ollama request cancelled", Err: ctx.Err()}
		}
	}
	if lastErr == nil {
		lastErr = &Error{Kind: KindUnreachable, Msg: "ollama generate failed"}
	}
	return "", lastErr
}

// parseModelOutput parses the model's generated text into a ReasoningResult,
// tolerating a markdown code fence around the JSON.
func parseModelOutput(raw string) (*models.ReasoningResult, error) {
	raw = stripCodeFence(strings.TrimSpace(raw))

	var result models.ReasoningResult
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&result); err != nil {
		return nil, &Error{
			Kind: KindInvalidOutput,
			Msg:  "invalid JSON from model; the model must respond with only valid JSON",
			Err:  err,
		}
	}
	for _, n := range result.ClusterNotes {
		if n.VulnerabilityID == "" || n.Priority == "" {
			return nil, &Error{
				Kind: KindInvalidOutput,
				Msg:  "model output does not match expected schema (summary, cluster_notes with vulnerability_id, priority, reasoning)",
			}
		}
	}
	if result.ClusterNotes == nil {
		result.ClusterNotes = []models.ClusterNote{}
	}
	return &result, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// AsError extracts a reasoning *Error from err, if present.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

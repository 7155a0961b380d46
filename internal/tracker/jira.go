package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/helionsec/helion/internal/config"
	"github.com/helionsec/helion/internal/ticket"
)

// JiraExporter creates epics per risk tier and one issue per ticket on a
// Jira Cloud project.
type JiraExporter struct {
	cfg    config.JiraConfig
	client *retryablehttp.Client
}

// NewJira creates a JiraExporter from cfg.
func NewJira(cfg config.JiraConfig) *JiraExporter {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 || timeout > 120*time.Second {
		timeout = 30 * time.Second
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	return &JiraExporter{cfg: cfg, client: client}
}

func (j *JiraExporter) Name() string { return "jira" }

func (j *JiraExporter) IsConfigured() bool {
	return strings.TrimSpace(j.cfg.BaseURL) != "" &&
		strings.TrimSpace(j.cfg.Email) != "" &&
		strings.TrimSpace(j.cfg.APIToken) != "" &&
		strings.TrimSpace(j.cfg.ProjectKey) != ""
}

// Export creates one epic per tier in use, then issues under the matching
// epic. Auth and project-not-found failures abort the run; other per-issue
// failures are collected and the run continues.
func (j *JiraExporter) Export(ctx context.Context, tickets []ticket.Payload) (*ExportResult, error) {
	if !j.IsConfigured() {
		return nil, fmt.Errorf("jira: base URL, email, API token and project key are required: %w", ErrNotConfigured)
	}

	result := &ExportResult{
		Tracker: "jira",
		Epics:   map[string]string{},
		Issues:  []CreatedIssue{},
		Errors:  []string{},
	}

	used := tiersInUse(tickets)
	for _, tier := range riskTierLabels {
		if !used[tier] {
			continue
		}
		key, err := j.createEpic(ctx, epicSummaries[tier])
		if err != nil {
			if isFatal(err) {
				return nil, err
			}
			result.Errors = append(result.Errors, fmt.Sprintf("Epic %s: %v", tier, err))
			continue
		}
		result.Epics[tier] = key
	}

	for _, t := range tickets {
		epicKey := epicForTier(result.Epics, t.RiskTierLabel)
		if epicKey == "" {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Issue '%s': no epic for tier '%s'", truncate(t.Title, 50), t.RiskTierLabel))
			continue
		}
		key, err := j.createIssue(ctx, t, epicKey)
		if err != nil {
			if isFatal(err) {
				return nil, err
			}
			result.Errors = append(result.Errors, fmt.Sprintf("Issue '%s': %v", truncate(t.Title, 50), err))
			continue
		}
		result.Issues = append(result.Issues, CreatedIssue{Title: t.Title, Key: key, Tier: t.RiskTierLabel})
	}

	return result, nil
}

func isFatal(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusNotFound)
}

func (j *JiraExporter) createEpic(ctx context.Context, summary string) (string, error) {
	issueType := strings.TrimSpace(j.cfg.EpicIssueType)
	if issueType == "" {
		issueType = "Epic"
	}
	fields := map[string]any{
		"project":   map[string]string{"key": strings.TrimSpace(j.cfg.ProjectKey)},
		"issuetype": map[string]string{"name": issueType},
		"summary":   summary,
	}
	return j.postIssue(ctx, fields)
}

func (j *JiraExporter) createIssue(ctx context.Context, t ticket.Payload, epicKey string) (string, error) {
	issueType := strings.TrimSpace(j.cfg.IssueType)
	if issueType == "" {
		issueType = "Task"
	}
	fields := map[string]any{
		"project":     map[string]string{"key": strings.TrimSpace(j.cfg.ProjectKey)},
		"issuetype":   map[string]string{"name": issueType},
		"summary":     truncate(t.Title, 255),
		"description": plainTextToADF(issueBody(t)),
	}
	if field := strings.TrimSpace(j.cfg.EpicLinkFieldID); field != "" {
		fields[field] = epicKey
	} else {
		fields["parent"] = map[string]string{"key": epicKey}
	}
	return j.postIssue(ctx, fields)
}

func (j *JiraExporter) postIssue(ctx context.Context, fields map[string]any) (string, error) {
	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return "", fmt.Errorf("marshalling jira payload: %w", err)
	}

	url := strings.TrimRight(strings.TrimSpace(j.cfg.BaseURL), "/") + "/rest/api/3/issue"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(strings.TrimSpace(j.cfg.Email), strings.TrimSpace(j.cfg.APIToken))
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling jira API: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading jira response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", &APIError{StatusCode: 401, Msg: "jira authentication failed (invalid email or API token)"}
	case resp.StatusCode == http.StatusNotFound:
		return "", &APIError{StatusCode: 404, Msg: "jira project or resource not found"}
	case resp.StatusCode >= 400:
		return "", &APIError{StatusCode: resp.StatusCode, Msg: "jira returned an error: " + jiraErrorDetail(data)}
	}

	var created struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(data, &created); err != nil || created.Key == "" {
		return "", &APIError{Msg: "jira response missing issue key"}
	}
	return created.Key, nil
}

func jiraErrorDetail(data []byte) string {
	var body struct {
		ErrorMessages []string          `json:"errorMessages"`
		Errors        map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if len(body.ErrorMessages) > 0 {
			return strings.Join(body.ErrorMessages, "; ")
		}
		if len(body.Errors) > 0 {
			detail, _ := json.Marshal(body.Errors)
			return truncate(string(detail), 500)
		}
	}
	return truncate(strings.TrimSpace(string(data)), 500)
}

// issueBody renders a ticket into the plain-text issue description.
func issueBody(t ticket.Payload) string {
	var sb strings.Builder
	sb.WriteString(t.Description)
	sb.WriteString("\n\nAffected services: ")
	sb.WriteString(strings.Join(t.AffectedServices, ", "))
	sb.WriteString("\n\nRecommended remediation:\n")
	sb.WriteString(t.RecommendedRemediation)
	sb.WriteString("\n\nAcceptance criteria:\n")
	for _, ac := range t.AcceptanceCriteria {
		sb.WriteString("- ")
		sb.WriteString(ac)
		sb.WriteString("\n")
	}
	return sb.String()
}

// plainTextToADF converts plain text to Atlassian Document Format, one
// paragraph per line.
func plainTextToADF(plain string) map[string]any {
	content := []any{}
	for _, line := range strings.Split(strings.TrimSpace(plain), "\n") {
		text := strings.TrimSpace(line)
		if text == "" {
			text = " "
		}
		content = append(content, map[string]any{
			"type":    "paragraph",
			"content": []any{map[string]any{"type": "text", "text": text}},
		})
	}
	if strings.TrimSpace(plain) == "" {
		content = []any{}
	}
	return map[string]any{"type": "doc", "version": 1, "content": content}
}

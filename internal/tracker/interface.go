package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/helionsec/helion/internal/config"
	"github.com/helionsec/helion/internal/ticket"
)

// riskTierLabels lists the tier groupings exported to trackers, in creation
// order so runs are deterministic.
var riskTierLabels = []string{"Tier 1", "Tier 2", "Tier 3"}

// epicSummaries maps a tier label to the grouping epic's summary.
var epicSummaries = map[string]string{
	"Tier 1": "Helion – Tier 1 (Highest risk)",
	"Tier 2": "Helion – Tier 2",
	"Tier 3": "Helion – Tier 3",
}

// ErrNotConfigured is returned when an exporter is invoked without the
// settings it needs.
var ErrNotConfigured = errors.New("tracker is not configured")

// APIError is a tracker API failure carrying the upstream status code.
type APIError struct {
	StatusCode int
	Msg        string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status %d)", e.Msg, e.StatusCode)
	}
	return e.Msg
}

// CreatedIssue records one issue created during an export.
type CreatedIssue struct {
	Title string `json:"title"`
	Key   string `json:"key"`
	Tier  string `json:"tier"`
}

// ExportResult is the outcome of one export run. Per-issue failures land in
// Errors while the run continues (partial success).
type ExportResult struct {
	Tracker string            `json:"tracker"`
	Epics   map[string]string `json:"epics"`
	Issues  []CreatedIssue    `json:"issues"`
	Errors  []string          `json:"errors"`
}

// Exporter pushes ticket payloads to an external issue tracker, grouping
// them under one epic per risk tier.
type Exporter interface {
	// Name returns the tracker identifier, e.g. "jira".
	Name() string
	// IsConfigured reports whether the exporter has the settings it needs.
	IsConfigured() bool
	// Export creates tier epics and one issue per ticket.
	Export(ctx context.Context, tickets []ticket.Payload) (*ExportResult, error)
}

// New returns the exporter for name. Supported: jira (default), github, gitlab.
func New(name string, cfg *config.Config) (Exporter, error) {
	switch name {
	case "jira", "":
		return NewJira(cfg.Jira), nil
	case "github":
		return NewGitHub(cfg.GitHub)
	case "gitlab":
		return NewGitLab(cfg.GitLab)
	default:
		return nil, fmt.Errorf("unsupported tracker %q (supported: jira, github, gitlab)", name)
	}
}

// epicForTier picks the epic key for a ticket's tier label, falling back
// through Tier 2, Tier 1, Tier 3 when the label has no epic of its own.
func epicForTier(epics map[string]string, label string) string {
	if key, ok := epics[label]; ok {
		return key
	}
	for _, tier := range []string{"Tier 2", "Tier 1", "Tier 3"} {
		if key, ok := epics[tier]; ok {
			return key
		}
	}
	return ""
}

// tiersInUse returns the distinct tier labels across tickets.
func tiersInUse(tickets []ticket.Payload) map[string]bool {
	used := make(map[string]bool, len(tickets))
	for _, t := range tickets {
		used[t.RiskTierLabel] = true
	}
	return used
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

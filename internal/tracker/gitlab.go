package tracker

import (
	"context"
	"fmt"
	"strconv"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/helionsec/helion/internal/config"
	"github.com/helionsec/helion/internal/ticket"
)

// GitLabExporter creates one tracking issue per risk tier and one labelled
// issue per ticket on a GitLab project.
type GitLabExporter struct {
	client  *gitlab.Client
	project string
}

// NewGitLab creates a GitLabExporter from cfg.
func NewGitLab(cfg config.GitLabConfig) (*GitLabExporter, error) {
	opts := []gitlab.ClientOptionFunc{}
	if cfg.Host != "" && cfg.Host != "gitlab.com" {
		base := fmt.Sprintf("https://%s/api/v4/", cfg.Host)
		opts = append(opts, gitlab.WithBaseURL(base))
	}

	client, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}

	return &GitLabExporter{client: client, project: cfg.Project}, nil
}

func (g *GitLabExporter) Name() string { return "gitlab" }

func (g *GitLabExporter) IsConfigured() bool {
	return g.project != ""
}

func (g *GitLabExporter) Export(ctx context.Context, tickets []ticket.Payload) (*ExportResult, error) {
	if !g.IsConfigured() {
		return nil, fmt.Errorf("gitlab: token and project are required: %w", ErrNotConfigured)
	}

	result := &ExportResult{
		Tracker: "gitlab",
		Epics:   map[string]string{},
		Issues:  []CreatedIssue{},
		Errors:  []string{},
	}

	used := tiersInUse(tickets)
	for _, tier := range riskTierLabels {
		if !used[tier] {
			continue
		}
		issue, _, err := g.client.Issues.CreateIssue(g.project, &gitlab.CreateIssueOptions{
			Title:       gitlab.Ptr(epicSummaries[tier]),
			Description: gitlab.Ptr("Tracking issue for " + tier + " vulnerability tickets."),
			Labels:      &gitlab.LabelOptions{tierLabelSlug(tier)},
		}, gitlab.WithContext(ctx))
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Epic %s: %v", tier, err))
			continue
		}
		result.Epics[tier] = "#" + strconv.FormatInt(issue.IID, 10)
	}

	for _, t := range tickets {
		epicRef := epicForTier(result.Epics, t.RiskTierLabel)
		if epicRef == "" {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Issue '%s': no tracking issue for tier '%s'", truncate(t.Title, 50), t.RiskTierLabel))
			continue
		}
		body := issueBody(t) + "\nTracked by " + epicRef + "\n"
		issue, _, err := g.client.Issues.CreateIssue(g.project, &gitlab.CreateIssueOptions{
			Title:       gitlab.Ptr(truncate(t.Title, 255)),
			Description: gitlab.Ptr(body),
			Labels:      &gitlab.LabelOptions{"security", tierLabelSlug(t.RiskTierLabel)},
		}, gitlab.WithContext(ctx))
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Issue '%s': %v", truncate(t.Title, 50), err))
			continue
		}
		result.Issues = append(result.Issues, CreatedIssue{
			Title: t.Title,
			Key:   "#" + strconv.FormatInt(issue.IID, 10),
			Tier:  t.RiskTierLabel,
		})
	}

	return result, nil
}

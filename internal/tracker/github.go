package tracker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/helionsec/helion/internal/config"
	"github.com/helionsec/helion/internal/ticket"
)

// GitHubExporter creates one tracking issue per risk tier and one labelled
// issue per ticket on a GitHub repository. GitHub has no epics, so tier
// tracking issues play that role and per-ticket issues reference them.
type GitHubExporter struct {
	client *gogithub.Client
	owner  string
	repo   string
}

// NewGitHub creates a GitHubExporter from cfg.
func NewGitHub(cfg config.GitHubConfig) (*GitHubExporter, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(context.Background(), ts)
	client := gogithub.NewClient(tc)

	if cfg.Host != "" && cfg.Host != "github.com" {
		base := fmt.Sprintf("https://%s/api/v3/", cfg.Host)
		upload := fmt.Sprintf("https://%s/api/uploads/", cfg.Host)
		var err error
		client, err = client.WithEnterpriseURLs(base, upload)
		if err != nil {
			return nil, fmt.Errorf("configuring GitHub enterprise URLs: %w", err)
		}
	}

	return &GitHubExporter{client: client, owner: cfg.Owner, repo: cfg.Repo}, nil
}

func (g *GitHubExporter) Name() string { return "github" }

func (g *GitHubExporter) IsConfigured() bool {
	return g.owner != "" && g.repo != ""
}

func (g *GitHubExporter) Export(ctx context.Context, tickets []ticket.Payload) (*ExportResult, error) {
	if !g.IsConfigured() {
		return nil, fmt.Errorf("github: token, owner and repo are required: %w", ErrNotConfigured)
	}

	result := &ExportResult{
		Tracker: "github",
		Epics:   map[string]string{},
		Issues:  []CreatedIssue{},
		Errors:  []string{},
	}

	used := tiersInUse(tickets)
	for _, tier := range riskTierLabels {
		if !used[tier] {
			continue
		}
		issue, _, err := g.client.Issues.Create(ctx, g.owner, g.repo, &gogithub.IssueRequest{
			Title:  gogithub.Ptr(epicSummaries[tier]),
			Body:   gogithub.Ptr("Tracking issue for " + tier + " vulnerability tickets."),
			Labels: &[]string{tierLabelSlug(tier)},
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Epic %s: %v", tier, err))
			continue
		}
		result.Epics[tier] = "#" + strconv.Itoa(issue.GetNumber())
	}

	for _, t := range tickets {
		epicRef := epicForTier(result.Epics, t.RiskTierLabel)
		if epicRef == "" {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Issue '%s': no tracking issue for tier '%s'", truncate(t.Title, 50), t.RiskTierLabel))
			continue
		}
		body := issueBody(t) + "\nTracked by " + epicRef + "\n"
		issue, _, err := g.client.Issues.Create(ctx, g.owner, g.repo, &gogithub.IssueRequest{
			Title:  gogithub.Ptr(truncate(t.Title, 255)),
			Body:   gogithub.Ptr(body),
			Labels: &[]string{"security", tierLabelSlug(t.RiskTierLabel)},
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Issue '%s': %v", truncate(t.Title, 50), err))
			continue
		}
		result.Issues = append(result.Issues, CreatedIssue{
			Title: t.Title,
			Key:   "#" + strconv.Itoa(issue.GetNumber()),
			Tier:  t.RiskTierLabel,
		})
	}

	return result, nil
}

// tierLabelSlug converts "Tier 1" into the label "tier-1".
func tierLabelSlug(label string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "-")
}

package ticket

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/helionsec/helion/internal/database"
	"github.com/helionsec/helion/models"
)

const (
	titleMaxLength       = 255
	descriptionMaxLength = 32000
	remediationMaxLength = 2000
	serviceMaxLength     = 1024

	fallbackRemediation      = "Review and remediate per security guidance."
	multipleReposPlaceholder = "multiple repositories"
)

// defaultAcceptanceCriteria apply to every vulnerability ticket.
var defaultAcceptanceCriteria = []string{
	"Vulnerability remediated and verified.",
	"No findings in rescans for affected services.",
}

// Payload is a tracker-ready ticket for one vulnerability cluster.
type Payload struct {
	Title                  string   `json:"title"`
	Description            string   `json:"description"`
	AffectedServices       []string `json:"affected_services"`
	AcceptanceCriteria     []string `json:"acceptance_criteria"`
	RecommendedRemediation string   `json:"recommended_remediation"`
	RiskTierLabel          string   `json:"risk_tier_label"`
}

func tierLabel(tier int) string {
	switch tier {
	case 1, 2, 3:
		return "Tier " + strconv.Itoa(tier)
	default:
		return "Tier 2"
	}
}

func severityTierLabel(severity models.Severity) string {
	switch models.Severity(strings.ToLower(strings.TrimSpace(string(severity)))) {
	case models.SeverityCritical:
		return "Tier 1"
	case models.SeverityHigh:
		return "Tier 2"
	case models.SeverityMedium, models.SeverityLow, models.SeverityInfo:
		return "Tier 3"
	default:
		return "Tier 2"
	}
}

// buildTitle produces a short deterministic title: "[Tier N] <id>" with an
// optional repo/dependency suffix when it still fits the length limit.
func buildTitle(label string, c models.VulnerabilityCluster) string {
	base := fmt.Sprintf("[%s] %s", label, c.VulnerabilityID)
	if len(base) >= titleMaxLength {
		return strings.TrimRight(base[:titleMaxLength], " ")
	}
	var extra []string
	if c.Repo != "" && c.Repo != "multiple" && len(c.Repo) <= 60 {
		extra = append(extra, c.Repo)
	}
	if c.Dependency != "" && len(c.Dependency) <= 50 {
		extra = append(extra, c.Dependency)
	}
	if len(extra) == 0 {
		return base
	}
	candidate := base + " | " + strings.Join(extra, " | ")
	if len(candidate) <= titleMaxLength {
		return candidate
	}
	return base
}

func buildDescription(c models.VulnerabilityCluster) string {
	lines := []string{
		"Vulnerability: " + c.VulnerabilityID,
		"Description: " + c.Description,
		"Severity: " + c.Severity.String(),
		"CVSS: " + strconv.FormatFloat(c.CVSSScore, 'g', -1, 64),
		"Finding count: " + strconv.Itoa(c.FindingCount),
		"Affected services count: " + strconv.Itoa(c.AffectedServicesCount),
	}
	if p := strings.TrimSpace(c.FilePath); p != "" {
		lines = append(lines, "File path: "+p)
	}
	if d := strings.TrimSpace(c.Dependency); d != "" {
		lines = append(lines, "Dependency: "+d)
	}
	text := strings.Join(lines, "\n")
	if len(text) > descriptionMaxLength {
		return strings.TrimRight(text[:descriptionMaxLength], " ")
	}
	return text
}

func truncateRemediation(text string) string {
	t := strings.TrimSpace(text)
	if t == "" {
		return fallbackRemediation
	}
	if len(t) <= remediationMaxLength {
		return t
	}
	return strings.TrimRight(t[:remediationMaxLength-3], " ") + "..."
}

// FromCluster converts one cluster into a ticket payload. affectedServices
// carries resolved repo names for multi-repo clusters; note and tier are
// optional per-cluster enrichments.
func FromCluster(c models.VulnerabilityCluster, affectedServices []string, note *models.ClusterNote, tier *models.ClusterRiskTierResult) Payload {
	var services []string
	for _, s := range affectedServices {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if len(s) > serviceMaxLength {
			s = s[:serviceMaxLength]
		}
		services = append(services, s)
	}
	if len(services) == 0 {
		if repo := strings.TrimSpace(c.Repo); repo != "" && repo != "multiple" {
			services = []string{repo}
		} else {
			services = []string{multipleReposPlaceholder}
		}
	}

	label := severityTierLabel(c.Severity)
	if tier != nil {
		label = tierLabel(tier.AssignedTier)
	}

	remediation := fallbackRemediation
	if note != nil && strings.TrimSpace(note.Reasoning) != "" {
		remediation = truncateRemediation(note.Reasoning)
	} else if strings.TrimSpace(c.Description) != "" {
		remediation = truncateRemediation(c.Description)
	}

	return Payload{
		Title:                  buildTitle(label, c),
		Description:            buildDescription(c),
		AffectedServices:       services,
		AcceptanceCriteria:     defaultAcceptanceCriteria,
		RecommendedRemediation: remediation,
		RiskTierLabel:          label,
	}
}

// FromClusters converts clusters to ticket payloads using optional per-id
// notes, tier results and resolved affected services.
func FromClusters(
	clusters []models.VulnerabilityCluster,
	notesByID map[string]*models.ClusterNote,
	tiersByID map[string]*models.ClusterRiskTierResult,
	servicesByID map[string][]string,
) []Payload {
	payloads := make([]Payload, 0, len(clusters))
	for _, c := range clusters {
		payloads = append(payloads, FromCluster(
			c,
			servicesByID[c.VulnerabilityID],
			notesByID[c.VulnerabilityID],
			tiersByID[c.VulnerabilityID],
		))
	}
	return payloads
}

// ApplyTierOverrides rewrites tier labels and titles per consultant override.
// Unknown vulnerability ids are ignored. tickets and clusters must be
// parallel lists; on length mismatch the input is returned unchanged.
func ApplyTierOverrides(tickets []Payload, clusters []models.VulnerabilityCluster, overrides map[string]string) []Payload {
	if len(overrides) == 0 || len(tickets) != len(clusters) {
		return tickets
	}
	out := make([]Payload, len(tickets))
	copy(out, tickets)
	for i, c := range clusters {
		label, ok := overrides[c.VulnerabilityID]
		if !ok {
			continue
		}
		out[i].RiskTierLabel = label
		out[i].Title = buildTitle(label, c)
	}
	return out
}

// ResolveAffectedServices returns the sorted distinct repo names behind a set
// of finding ids, used to expand "multiple" into concrete service names.
func ResolveAffectedServices(ctx context.Context, db database.DB, findingIDs []string) ([]string, error) {
	ids := make([]any, 0, len(findingIDs))
	for _, fid := range findingIDs {
		n, err := strconv.ParseInt(strings.TrimSpace(fid), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, n)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(
		"SELECT DISTINCT repo FROM findings WHERE id IN (%s)",
		strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","),
	)
	var rows []struct {
		Repo string `db:"repo"`
	}
	if err := db.Select(ctx, &rows, query, ids...); err != nil {
		return nil, fmt.Errorf("resolving affected services: %w", err)
	}

	seen := make(map[string]struct{}, len(rows))
	var repos []string
	for _, r := range rows {
		repo := strings.TrimSpace(r.Repo)
		if repo == "" {
			continue
		}
		if _, ok := seen[repo]; ok {
			continue
		}
		seen[repo] = struct{}{}
		repos = append(repos, repo)
	}
	sort.Strings(repos)
	return repos, nil
}

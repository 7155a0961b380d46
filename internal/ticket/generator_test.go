package ticket

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helionsec/helion/models"
)

func sampleCluster() models.VulnerabilityCluster {
	return models.VulnerabilityCluster{
		VulnerabilityID:       "CVE-2024-0001",
		Severity:              models.SeverityHigh,
		Repo:                  "api",
		FilePath:              "go.sum",
		Dependency:            "lodash",
		CVSSScore:             7.5,
		Description:           "Prototype pollution in lodash",
		FindingIDs:            []string{"1", "2"},
		AffectedServicesCount: 1,
		FindingCount:          2,
	}
}

func TestFromClusterBasics(t *testing.T) {
	got := FromCluster(sampleCluster(), nil, nil, nil)

	assert.Equal(t, "[Tier 2] CVE-2024-0001 | api | lodash", got.Title)
	assert.Equal(t, "Tier 2", got.RiskTierLabel)
	assert.Equal(t, []string{"api"}, got.AffectedServices)
	assert.Equal(t, defaultAcceptanceCriteria, got.AcceptanceCriteria)
	assert.Equal(t, "Prototype pollution in lodash", got.RecommendedRemediation)
	assert.Contains(t, got.Description, "Vulnerability: CVE-2024-0001")
	assert.Contains(t, got.Description, "Severity: high")
	assert.Contains(t, got.Description, "CVSS: 7.5")
	assert.Contains(t, got.Description, "Dependency: lodash")
}

func TestFromClusterTierResultWins(t *testing.T) {
	tier := &models.ClusterRiskTierResult{VulnerabilityID: "CVE-2024-0001", AssignedTier: 1, OverrideApplied: "cvss_high"}
	got := FromCluster(sampleCluster(), nil, nil, tier)

	assert.Equal(t, "Tier 1", got.RiskTierLabel)
	assert.True(t, strings.HasPrefix(got.Title, "[Tier 1] "))
}

func TestFromClusterSeverityFallbackLabels(t *testing.T) {
	tests := []struct {
		sev  models.Severity
		want string
	}{
		{sev: models.SeverityCritical, want: "Tier 1"},
		{sev: models.SeverityHigh, want: "Tier 2"},
		{sev: models.SeverityMedium, want: "Tier 3"},
		{sev: models.SeverityInfo, want: "Tier 3"},
		{sev: "bogus", want: "Tier 2"},
	}
	for _, tt := range tests {
		c := sampleCluster()
		c.Severity = tt.sev
		assert.Equal(t, tt.want, FromCluster(c, nil, nil, nil).RiskTierLabel)
	}
}

func TestFromClusterRemediationFromNote(t *testing.T) {
	note := &models.ClusterNote{VulnerabilityID: "CVE-2024-0001", Priority: "high", Reasoning: "Upgrade lodash to 4.17.21."}
	got := FromCluster(sampleCluster(), nil, note, nil)

	assert.Equal(t, "Upgrade lodash to 4.17.21.", got.RecommendedRemediation)
}

func TestFromClusterRemediationFallback(t *testing.T) {
	c := sampleCluster()
	c.Description = "   "
	got := FromCluster(c, nil, nil, nil)

	assert.Equal(t, fallbackRemediation, got.RecommendedRemediation)
}

func TestFromClusterRemediationTruncated(t *testing.T) {
	note := &models.ClusterNote{VulnerabilityID: "x", Priority: "high", Reasoning: strings.Repeat("a", 3000)}
	got := FromCluster(sampleCluster(), nil, note, nil)

	assert.Len(t, got.RecommendedRemediation, remediationMaxLength)
	assert.True(t, strings.HasSuffix(got.RecommendedRemediation, "..."))
}

func TestFromClusterMultipleRepos(t *testing.T) {
	c := sampleCluster()
	c.Repo = "multiple"
	c.AffectedServicesCount = 3

	got := FromCluster(c, nil, nil, nil)
	assert.Equal(t, []string{multipleReposPlaceholder}, got.AffectedServices)
	assert.NotContains(t, got.Title, "multiple")

	resolved := FromCluster(c, []string{"api", "web", "worker"}, nil, nil)
	assert.Equal(t, []string{"api", "web", "worker"}, resolved.AffectedServices)
}

func TestFromClusterLongTitleDropsSuffix(t *testing.T) {
	c := sampleCluster()
	c.Dependency = strings.Repeat("d", 51)
	c.Repo = strings.Repeat("r", 61)
	got := FromCluster(c, nil, nil, nil)

	assert.Equal(t, "[Tier 2] CVE-2024-0001", got.Title)
}

func TestFromClusterVeryLongIDTruncatesTitle(t *testing.T) {
	c := sampleCluster()
	c.VulnerabilityID = strings.Repeat("x", 300)
	got := FromCluster(c, nil, nil, nil)

	assert.LessOrEqual(t, len(got.Title), titleMaxLength)
}

func TestApplyTierOverrides(t *testing.T) {
	clusters := []models.VulnerabilityCluster{sampleCluster()}
	tickets := FromClusters(clusters, nil, nil, nil)

	got := ApplyTierOverrides(tickets, clusters, map[string]string{"CVE-2024-0001": "Tier 3"})
	require.Len(t, got, 1)
	assert.Equal(t, "Tier 3", got[0].RiskTierLabel)
	assert.True(t, strings.HasPrefix(got[0].Title, "[Tier 3] "))
	// Original slice untouched.
	assert.Equal(t, "Tier 2", tickets[0].RiskTierLabel)

	unchanged := ApplyTierOverrides(tickets, clusters, map[string]string{"CVE-9999-0000": "Tier 1"})
	assert.Equal(t, tickets, unchanged)
}

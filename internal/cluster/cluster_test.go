package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helionsec/helion/models"
)

func finding(id int64, vid, sev, repo, path, dep string, cvss float64) models.Finding {
	return models.Finding{
		ID:              id,
		VulnerabilityID: vid,
		Severity:        models.Severity(sev),
		Repo:            repo,
		FilePath:        path,
		Dependency:      dep,
		CVSSScore:       cvss,
	}
}

func TestBuildEmpty(t *testing.T) {
	assert.Empty(t, Build(nil))
}

func TestBuildSCAKeyIncludesDependency(t *testing.T) {
	in := []models.Finding{
		finding(1, "CVE-2023-0001", "high", "api", "go.sum", "lodash", 7.5),
		finding(2, "CVE-2023-0001", "high", "api", "package.json", "lodash", 7.5),
		finding(3, "CVE-2023-0001", "high", "api", "go.sum", "openssl", 7.5),
	}
	got := Build(in)

	require.Len(t, got, 2)
	assert.Equal(t, []string{"1", "2"}, got[0].FindingIDs)
	assert.Equal(t, "lodash", got[0].Dependency)
	assert.Equal(t, []string{"3"}, got[1].FindingIDs)
	assert.Equal(t, "openssl", got[1].Dependency)
}

func TestBuildSASTKeyUsesPathPattern(t *testing.T) {
	// Same rule, same path once the repo prefix and separators are normalized.
	in := []models.Finding{
		finding(1, "rule.eval", "medium", "api", "api/src/handlers.py", "", 0),
		finding(2, "rule.eval", "medium", "api", `src\handlers.py`, "", 0),
		finding(3, "rule.eval", "medium", "api", "src/other.py", "", 0),
	}
	got := Build(in)

	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].FindingCount)
	assert.Equal(t, 1, got[1].FindingCount)
}

func TestBuildPathEqualToRepoCollapses(t *testing.T) {
	in := []models.Finding{
		finding(1, "rule.x", "low", "api", "api", "", 0),
		finding(2, "rule.x", "low", "api", "", "", 0),
	}
	got := Build(in)

	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].FindingCount)
}

func TestBuildWorstSeverityWins(t *testing.T) {
	in := []models.Finding{
		finding(1, "CVE-2023-0002", "low", "api", "", "pkg", 3.0),
		finding(2, "CVE-2023-0002", "critical", "api", "", "pkg", 3.0),
		finding(3, "CVE-2023-0002", "bogus", "api", "", "pkg", 3.0),
	}
	got := Build(in)

	require.Len(t, got, 1)
	assert.Equal(t, models.SeverityCritical, got[0].Severity)
}

func TestBuildMultipleRepos(t *testing.T) {
	in := []models.Finding{
		finding(1, "CVE-2023-0003", "high", "api", "", "pkg", 8.0),
		finding(2, "CVE-2023-0003", "high", "web", "", "pkg", 8.0),
		finding(3, "CVE-2023-0003", "high", "  ", "", "pkg", 8.0),
	}
	got := Build(in)

	require.Len(t, got, 1)
	assert.Equal(t, "multiple", got[0].Repo)
	assert.Equal(t, 2, got[0].AffectedServicesCount)
}

func TestBuildSingleRepoKeepsName(t *testing.T) {
	in := []models.Finding{
		finding(1, "CVE-2023-0004", "high", "api", "", "pkg", 8.0),
		finding(2, "CVE-2023-0004", "medium", "api", "", "pkg", 5.0),
	}
	got := Build(in)

	require.Len(t, got, 1)
	assert.Equal(t, "api", got[0].Repo)
	assert.Equal(t, 1, got[0].AffectedServicesCount)
}

func TestBuildFirstMemberFields(t *testing.T) {
	in := []models.Finding{
		finding(1, "CVE-2023-0005", "low", "api", "go.sum", "pkg", 2.0),
		finding(2, "CVE-2023-0005", "high", "api", "other.sum", "pkg", 9.9),
	}
	got := Build(in)

	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].CVSSScore)
	assert.Equal(t, "go.sum", got[0].FilePath)
}

func TestBuildIsPartition(t *testing.T) {
	in := []models.Finding{
		finding(1, "CVE-2023-0001", "high", "api", "", "a", 7.0),
		finding(2, "rule.one", "medium", "api", "x.py", "", 0),
		finding(3, "", "info", "api", "y.py", "", 0),
		finding(4, "CVE-2023-0001", "high", "web", "", "b", 7.0),
	}
	got := Build(in)

	total := 0
	seen := map[string]bool{}
	for _, c := range got {
		total += c.FindingCount
		assert.Equal(t, c.FindingCount, len(c.FindingIDs))
		for _, id := range c.FindingIDs {
			assert.False(t, seen[id])
			seen[id] = true
		}
	}
	assert.Equal(t, len(in), total)
}

func TestBuildBlankIDStillClusters(t *testing.T) {
	in := []models.Finding{finding(1, "", "info", "api", "z.py", "", 0)}
	got := Build(in)

	require.Len(t, got, 1)
	assert.Equal(t, "unknown", got[0].VulnerabilityID)
}

func TestMetrics(t *testing.T) {
	m := Metrics(10, 4)
	assert.Equal(t, 10, m.RawFindingCount)
	assert.Equal(t, 4, m.ClusterCount)
	assert.Equal(t, 2.5, m.CompressionRatio)

	assert.Equal(t, 0.0, Metrics(0, 0).CompressionRatio)
}

func TestSortBySeverityCVSS(t *testing.T) {
	clusters := []models.VulnerabilityCluster{
		{VulnerabilityID: "a", Severity: models.SeverityLow, CVSSScore: 3.0},
		{VulnerabilityID: "b", Severity: models.SeverityCritical, CVSSScore: 9.0},
		{VulnerabilityID: "c", Severity: models.SeverityCritical, CVSSScore: 9.8},
		{VulnerabilityID: "d", Severity: models.SeverityHigh, CVSSScore: 8.0},
	}
	SortBySeverityCVSS(clusters)

	ids := []string{clusters[0].VulnerabilityID, clusters[1].VulnerabilityID, clusters[2].VulnerabilityID, clusters[3].VulnerabilityID}
	assert.Equal(t, []string{"c", "b", "d", "a"}, ids)
}

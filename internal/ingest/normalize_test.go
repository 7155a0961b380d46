package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helionsec/helion/models"
)

func TestNormalizeDefaults(t *testing.T) {
	got := Normalize(models.RawFinding{})

	assert.Equal(t, "unknown", got.VulnerabilityID)
	assert.Equal(t, models.SeverityInfo, got.Severity)
	assert.Equal(t, "unknown", got.Repo)
	assert.Equal(t, "", got.FilePath)
	assert.Equal(t, "", got.Dependency)
	assert.Equal(t, 0.0, got.CVSSScore)
	assert.Equal(t, "No description", got.Description)
}

func TestNormalizeSeverity(t *testing.T) {
	cvss := func(v float64) *float64 { return &v }

	tests := []struct {
		name string
		raw  models.RawFinding
		want models.Severity
	}{
		{name: "canonical passes through", raw: models.RawFinding{Severity: "high"}, want: models.SeverityHigh},
		{name: "alias crit", raw: models.RawFinding{Severity: "CRIT"}, want: models.SeverityCritical},
		{name: "alias moderate", raw: models.RawFinding{Severity: "Moderate"}, want: models.SeverityMedium},
		{name: "numeric code 1", raw: models.RawFinding{Severity: "1"}, want: models.SeverityCritical},
		{name: "numeric code 5", raw: models.RawFinding{Severity: "5"}, want: models.SeverityInfo},
		{name: "unrecognized falls back to cvss band", raw: models.RawFinding{Severity: "weird", CVSSScore: cvss(8.1)}, want: models.SeverityHigh},
		{name: "missing severity uses cvss band", raw: models.RawFinding{CVSSScore: cvss(9.8)}, want: models.SeverityCritical},
		{name: "cvss band low edge", raw: models.RawFinding{CVSSScore: cvss(0.1)}, want: models.SeverityLow},
		{name: "cvss band info edge", raw: models.RawFinding{CVSSScore: cvss(0.05)}, want: models.SeverityInfo},
		{name: "no signal at all", raw: models.RawFinding{}, want: models.SeverityInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw).Severity)
		})
	}
}

func TestNormalizeClampsCVSS(t *testing.T) {
	over := 12.5
	under := -3.0

	assert.Equal(t, 10.0, Normalize(models.RawFinding{CVSSScore: &over}).CVSSScore)
	assert.Equal(t, 0.0, Normalize(models.RawFinding{CVSSScore: &under}).CVSSScore)
}

func TestResolveVulnerabilityID(t *testing.T) {
	tests := []struct {
		name string
		raw  models.RawFinding
		want string
	}{
		{
			name: "exact cve verbatim",
			raw:  models.RawFinding{VulnerabilityID: "CVE-2024-12345"},
			want: "CVE-2024-12345",
		},
		{
			name: "exact ghsa verbatim",
			raw:  models.RawFinding{VulnerabilityID: "GHSA-abcd-1234-ef56"},
			want: "GHSA-abcd-1234-ef56",
		},
		{
			name: "cve found in description",
			raw:  models.RawFinding{VulnerabilityID: "SNYK-JS-LODASH-567746", Description: "Prototype pollution, see CVE-2019-10744 for details"},
			want: "CVE-2019-10744",
		},
		{
			name: "cve wins over ghsa regardless of position",
			raw:  models.RawFinding{Description: "GHSA-jfh8-c2jp-5v3q tracked as CVE-2021-44228"},
			want: "CVE-2021-44228",
		},
		{
			name: "ghsa found in payload",
			raw: models.RawFinding{
				VulnerabilityID: "rule-42",
				RawPayload:      map[string]any{"advisory": "GHSA-jfh8-c2jp-5v3q"},
			},
			want: "GHSA-jfh8-c2jp-5v3q",
		},
		{
			name: "no pattern keeps raw id",
			raw:  models.RawFinding{VulnerabilityID: "python.lang.security.audit.eval-detected"},
			want: "python.lang.security.audit.eval-detected",
		},
		{
			name: "empty id defaults to unknown",
			raw:  models.RawFinding{},
			want: "unknown",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveVulnerabilityID(tt.raw))
		})
	}
}

func TestDeduplicateFirstWins(t *testing.T) {
	mk := func(id, repo, path, dep, desc string) Pair {
		return Pair{Normalized: models.NormalizedFinding{
			VulnerabilityID: id, Repo: repo, FilePath: path, Dependency: dep, Description: desc,
		}}
	}

	in := []Pair{
		mk("CVE-2024-1111", "api", "go.sum", "lodash", "first"),
		mk("CVE-2024-1111", "api", "go.sum", "lodash", "second"),
		mk("CVE-2024-1111", "web", "go.sum", "lodash", "other repo"),
		mk("CVE-2024-2222", "api", "go.sum", "lodash", "other id"),
	}
	got := Deduplicate(in)

	assert.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Normalized.Description)
	assert.Equal(t, "other repo", got[1].Normalized.Description)
	assert.Equal(t, "other id", got[2].Normalized.Description)
}

func TestDeduplicateNormalizesPathSeparators(t *testing.T) {
	in := []Pair{
		{Normalized: models.NormalizedFinding{VulnerabilityID: "rule-1", Repo: "api", FilePath: `src\main.go`}},
		{Normalized: models.NormalizedFinding{VulnerabilityID: "rule-1", Repo: "api", FilePath: "src/main.go"}},
	}
	got := Deduplicate(in)

	assert.Len(t, got, 1)
}

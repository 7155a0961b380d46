package cluster

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/helionsec/helion/models"
)

var (
	cvePattern  = regexp.MustCompile(`^(?i:CVE-\d{4}-\d{4,})$`)
	ghsaPattern = regexp.MustCompile(`^(?i:GHSA-[a-z0-9]{4}-[a-z0-9]{4}-[a-z0-9]{4})$`)
)

// isSCA reports whether a finding identifies a dependency vulnerability.
// Everything without an exact CVE/GHSA identifier is treated as a code finding.
func isSCA(vulnerabilityID string) bool {
	id := strings.TrimSpace(vulnerabilityID)
	if id == "" {
		return false
	}
	return cvePattern.MatchString(id) || ghsaPattern.MatchString(id)
}

// filePathPattern normalizes a file path for SAST cluster identity: slashes
// are unified, a leading "<repo>/" prefix is stripped, and a path equal to
// the repo name collapses to empty.
func filePathPattern(repo, filePath string) string {
	path := strings.ReplaceAll(strings.TrimSpace(filePath), "\\", "/")
	if path == "" {
		return ""
	}
	repoNorm := strings.Trim(strings.ReplaceAll(strings.TrimSpace(repo), "\\", "/"), "/")
	if repoNorm == "" {
		return path
	}
	if strings.HasPrefix(path, repoNorm+"/") {
		return strings.TrimLeft(path[len(repoNorm)+1:], "/")
	}
	if path == repoNorm {
		return ""
	}
	return path
}

// clusterKey returns the identity key for one finding. SCA findings group by
// vulnerability id plus dependency, so one CVE hitting both lodash and
// openssl forms two clusters. SAST findings group by id plus the normalized
// file-path pattern.
func clusterKey(f models.Finding) string {
	vid := strings.TrimSpace(f.VulnerabilityID)
	if isSCA(vid) {
		return vid + "\x00" + strings.TrimSpace(f.Dependency)
	}
	return vid + "\x00" + filePathPattern(f.Repo, f.FilePath)
}

// Build groups persisted findings into vulnerability clusters. Output order
// follows the first appearance of each distinct cluster key. Every input
// finding appears in exactly one cluster.
func Build(findings []models.Finding) []models.VulnerabilityCluster {
	if len(findings) == 0 {
		return nil
	}

	groups := make(map[string][]models.Finding, len(findings))
	var order []string
	for _, f := range findings {
		key := clusterKey(f)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], f)
	}

	clusters := make([]models.VulnerabilityCluster, 0, len(order))
	for _, key := range order {
		group := groups[key]
		first := group[0]

		findingIDs := make([]string, len(group))
		severities := make([]models.Severity, len(group))
		repos := make(map[string]struct{})
		for i, f := range group {
			findingIDs[i] = strconv.FormatInt(f.ID, 10)
			severities[i] = f.Severity
			if r := strings.TrimSpace(f.Repo); r != "" {
				repos[r] = struct{}{}
			}
		}

		affected := len(repos)
		if affected < 1 {
			affected = 1
		}
		repo := strings.TrimSpace(first.Repo)
		if repo == "" {
			repo = "unknown"
		}
		if affected > 1 {
			repo = "multiple"
		}
		vid := first.VulnerabilityID
		if strings.TrimSpace(vid) == "" {
			vid = "unknown"
		}
		description := first.Description
		if strings.TrimSpace(description) == "" {
			description = "No description"
		}

		clusters = append(clusters, models.VulnerabilityCluster{
			VulnerabilityID:       vid,
			Severity:              models.WorstSeverity(severities),
			Repo:                  repo,
			FilePath:              first.FilePath,
			Dependency:            first.Dependency,
			CVSSScore:             first.CVSSScore,
			Description:           description,
			FindingIDs:            findingIDs,
			AffectedServicesCount: affected,
			FindingCount:          len(findingIDs),
		})
	}

	return clusters
}

// Metrics computes how much clustering compressed the raw finding set.
func Metrics(findingCount, clusterCount int) models.CompressionMetrics {
	m := models.CompressionMetrics{
		RawFindingCount: findingCount,
		ClusterCount:    clusterCount,
	}
	if clusterCount > 0 {
		m.CompressionRatio = float64(findingCount) / float64(clusterCount)
	}
	return m
}

// SortBySeverityCVSS orders clusters most severe first, breaking ties by CVSS
// score descending. The sort is stable so equal clusters keep build order.
func SortBySeverityCVSS(clusters []models.VulnerabilityCluster) {
	sort.SliceStable(clusters, func(i, j int) bool {
		wi, wj := clusters[i].Severity.Weight(), clusters[j].Severity.Weight()
		if wi != wj {
			return wi > wj
		}
		return clusters[i].CVSSScore > clusters[j].CVSSScore
	})
}

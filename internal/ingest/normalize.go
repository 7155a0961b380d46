package ingest

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/helionsec/helion/models"
)

const (
	defaultVulnID      = "unknown"
	defaultRepo        = "unknown"
	defaultDescription = "No description"

	maxVulnIDLen = 255
)

var (
	cvePattern  = regexp.MustCompile(`(?i)CVE-\d{4}-\d{4,}`)
	ghsaPattern = regexp.MustCompile(`(?i)GHSA-[a-z0-9]{4}-[a-z0-9]{4}-[a-z0-9]{4}`)

	cveExact  = regexp.MustCompile(`^(?i:CVE-\d{4}-\d{4,})$`)
	ghsaExact = regexp.MustCompile(`^(?i:GHSA-[a-z0-9]{4}-[a-z0-9]{4}-[a-z0-9]{4})$`)
)

// Pair keeps the original payload next to its normalized form so ingestion
// can persist both.
type Pair struct {
	Raw        models.RawFinding
	Normalized models.NormalizedFinding
}

// Process runs the full ingestion pipeline over a batch of scanner payload
// objects: shape mapping, normalization, then first-wins deduplication.
func Process(objs []map[string]any) []Pair {
	pairs := make([]Pair, 0, len(objs))
	for _, obj := range objs {
		raw := MapShape(obj)
		pairs = append(pairs, Pair{Raw: raw, Normalized: Normalize(raw)})
	}
	return Deduplicate(pairs)
}

// Normalize converts one RawFinding into a fully populated NormalizedFinding.
// Missing or malformed scalar fields resolve to documented defaults; the
// function never fails.
func Normalize(raw models.RawFinding) models.NormalizedFinding {
	cvss := 0.0
	if raw.CVSSScore != nil {
		cvss = models.ClampCVSS(*raw.CVSSScore)
	}

	description := strings.TrimSpace(raw.Description)
	if description == "" {
		description = defaultDescription
	}

	repo := strings.TrimSpace(raw.Repo)
	if repo == "" {
		repo = defaultRepo
	}

	return models.NormalizedFinding{
		VulnerabilityID: ResolveVulnerabilityID(raw),
		Severity:        resolveSeverity(raw.Severity, raw.CVSSScore),
		Repo:            repo,
		FilePath:        strings.TrimSpace(raw.FilePath),
		Dependency:      strings.TrimSpace(raw.Dependency),
		CVSSScore:       cvss,
		Description:     description,
	}
}

// ResolveVulnerabilityID chooses the canonical identifier for a raw finding.
// An id that is already a CVE or GHSA identifier is used verbatim. Otherwise
// the id, description and serialized payload are searched for the first CVE
// match, then the first GHSA match. Failing both, the raw id stands as typed,
// or "unknown" when empty.
func ResolveVulnerabilityID(raw models.RawFinding) string {
	id := strings.TrimSpace(raw.VulnerabilityID)
	if cveExact.MatchString(id) || ghsaExact.MatchString(id) {
		return truncateID(id)
	}

	haystack := id + " " + raw.Description
	if len(raw.RawPayload) > 0 {
		if b, err := json.Marshal(raw.RawPayload); err == nil {
			haystack += " " + string(b)
		}
	}
	if m := cvePattern.FindString(haystack); m != "" {
		return truncateID(m)
	}
	if m := ghsaPattern.FindString(haystack); m != "" {
		return truncateID(m)
	}

	if id == "" {
		return defaultVulnID
	}
	return truncateID(id)
}

// resolveSeverity maps the raw severity string through the alias table, or
// derives severity from the CVSS score when the string is absent or
// unrecognized. With neither signal available it defaults to info.
func resolveSeverity(raw string, cvss *float64) models.Severity {
	if sev, ok := models.ParseSeverity(raw); ok {
		return sev
	}
	if cvss != nil {
		return models.SeverityFromCVSS(models.ClampCVSS(*cvss))
	}
	return models.SeverityInfo
}

// Deduplicate removes duplicate findings by canonical identity, keeping the
// first occurrence and preserving input order for survivors.
func Deduplicate(pairs []Pair) []Pair {
	seen := make(map[string]struct{}, len(pairs))
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		key := dedupKey(p.Normalized)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

func dedupKey(f models.NormalizedFinding) string {
	path := strings.ReplaceAll(strings.TrimSpace(f.FilePath), "\\", "/")
	return strings.Join([]string{
		strings.TrimSpace(f.VulnerabilityID),
		strings.TrimSpace(f.Repo),
		path,
		strings.TrimSpace(f.Dependency),
	}, "\x00")
}

func truncateID(id string) string {
	if len(id) > maxVulnIDLen {
		return id[:maxVulnIDLen]
	}
	return id
}

package models

import "strings"

// Severity is the canonical severity of a finding or cluster.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// SeverityLevels lists all canonical values from least to most severe.
var SeverityLevels = []Severity{
	SeverityInfo,
	SeverityLow,
	SeverityMedium,
	SeverityHigh,
	SeverityCritical,
}

// Weight returns a numeric weight for ordering (higher = more severe).
// Unrecognised values weigh 0, below info.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is one of the canonical severity values.
func (s Severity) Valid() bool {
	return s.Weight() > 0
}

func (s Severity) String() string { return string(s) }

// severityAliases maps scanner-specific severity vocabulary to canonical values.
// Canonical values map to themselves so parsing is idempotent.
var severityAliases = map[string]Severity{
	"critical": SeverityCritical,
	"crit":     SeverityCritical,
	"blocker":  SeverityCritical,

	"high":      SeverityHigh,
	"error":     SeverityHigh,
	"important": SeverityHigh,
	"severe":    SeverityHigh,

	"medium":   SeverityMedium,
	"med":      SeverityMedium,
	"moderate": SeverityMedium,
	"warning":  SeverityMedium,
	"warn":     SeverityMedium,

	"low":   SeverityLow,
	"minor": SeverityLow,

	"info":          SeverityInfo,
	"informational": SeverityInfo,
	"negligible":    SeverityInfo,
	"note":          SeverityInfo,
	"none":          SeverityInfo,
	"unknown":       SeverityInfo,
}

// ParseSeverity maps a raw severity string (scanner vocabulary or numeric code
// 0-5) to a canonical Severity. ok is false when raw matches neither an alias
// nor a digit, in which case callers fall back to CVSS-derived severity.
func ParseSeverity(raw string) (Severity, bool) {
	norm := strings.ToLower(strings.TrimSpace(raw))
	if norm == "" {
		return SeverityInfo, false
	}
	if sev, ok := severityAliases[norm]; ok {
		return sev, true
	}
	// Numeric severity codes used by a few scanners: 1 is worst, 0/5 informational.
	if len(norm) == 1 && norm[0] >= '0' && norm[0] <= '9' {
		switch norm[0] {
		case '1':
			return SeverityCritical, true
		case '2':
			return SeverityHigh, true
		case '3':
			return SeverityMedium, true
		case '4':
			return SeverityLow, true
		default:
			return SeverityInfo, true
		}
	}
	return SeverityInfo, false
}

// SeverityFromCVSS derives severity from a CVSS score using fixed bands.
// The bands are exhaustive and non-overlapping over [0, 10].
func SeverityFromCVSS(score float64) Severity {
	switch {
	case score >= 9.0:
		return SeverityCritical
	case score >= 7.0:
		return SeverityHigh
	case score >= 4.0:
		return SeverityMedium
	case score >= 0.1:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// WorstSeverity returns the most severe recognised value among the inputs,
// falling back to info when nothing is recognised.
func WorstSeverity(severities []Severity) Severity {
	worst := SeverityInfo
	worstWeight := 0
	for _, s := range severities {
		norm := Severity(strings.ToLower(strings.TrimSpace(string(s))))
		if w := norm.Weight(); w > worstWeight {
			worstWeight = w
			worst = norm
		}
	}
	return worst
}

// ClampCVSS bounds a CVSS score to the valid [0, 10] range.
func ClampCVSS(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}

package risktier

import (
	"strings"

	"github.com/helionsec/helion/models"
)

// Tier assignment is AI-assisted, not AI-dependent: a reasoning note only
// supplies a suggested tier, and deterministic override rules are checked
// before falling back to the suggestion.

const (
	// cvssTier1Threshold is exclusive: exactly 9.0 does not force tier 1.
	cvssTier1Threshold = 9.0
	// cvssTier2Min is inclusive: 7.0 lifts a tier 3 suggestion to tier 2.
	cvssTier2Min = 7.0

	// defaultTier applies when neither priority nor severity is recognized.
	defaultTier = 2

	OverrideCVSSHigh         = "cvss_high"
	OverrideDevOnlyDowngrade = "dev_only_downgrade"
	OverrideCVSSBand79       = "cvss_band_7_9"
)

// normalizePriority maps a reasoning priority label to a canonical value in
// {critical, high, medium, low}, or "" when unrecognized.
func normalizePriority(priority string) string {
	switch strings.ToLower(strings.TrimSpace(priority)) {
	case "critical", "crit":
		return "critical"
	case "high":
		return "high"
	case "medium", "med", "moderate":
		return "medium"
	case "low":
		return "low"
	default:
		return ""
	}
}

func priorityToTier(priority string) int {
	switch normalizePriority(priority) {
	case "critical":
		return 1
	case "high":
		return 2
	case "medium", "low":
		return 3
	default:
		return defaultTier
	}
}

func severityToTier(severity models.Severity) int {
	switch models.Severity(strings.ToLower(strings.TrimSpace(string(severity)))) {
	case models.SeverityCritical:
		return 1
	case models.SeverityHigh:
		return 2
	case models.SeverityMedium, models.SeverityLow, models.SeverityInfo:
		return 3
	default:
		return defaultTier
	}
}

// Assign decides the final tier for one cluster. note may be nil. The
// override rules run in fixed order and never compose; every cluster always
// lands in tier 1, 2 or 3.
func Assign(c models.VulnerabilityCluster, note *models.ClusterNote, devOnly bool) models.ClusterRiskTierResult {
	cvss := models.ClampCVSS(c.CVSSScore)

	var suggested int
	var reasoning string
	if note != nil && normalizePriority(note.Priority) != "" {
		suggested = priorityToTier(note.Priority)
		reasoning = note.Reasoning
	} else {
		suggested = severityToTier(c.Severity)
		if note != nil {
			reasoning = note.Reasoning
		}
	}

	tier := suggested
	override := ""
	switch {
	case cvss > cvssTier1Threshold && devOnly:
		tier = 2
		override = OverrideDevOnlyDowngrade
	case cvss > cvssTier1Threshold:
		tier = 1
		override = OverrideCVSSHigh
	case cvss >= cvssTier2Min && suggested > 2:
		tier = 2
		override = OverrideCVSSBand79
	}

	return models.ClusterRiskTierResult{
		VulnerabilityID: c.VulnerabilityID,
		AssignedTier:    tier,
		LLMReasoning:    reasoning,
		OverrideApplied: override,
	}
}

// AssignAll assigns tiers to every cluster. reasoning may be nil; its notes
// are matched to clusters by vulnerability id with first occurrence winning
// on duplicates. Clusters absent from devOnly are treated as not dev-only.
func AssignAll(clusters []models.VulnerabilityCluster, reasoning *models.ReasoningResult, devOnly map[string]bool) []models.ClusterRiskTierResult {
	notesByID := make(map[string]*models.ClusterNote)
	if reasoning != nil {
		for i := range reasoning.ClusterNotes {
			n := &reasoning.ClusterNotes[i]
			if n.VulnerabilityID == "" {
				continue
			}
			if _, ok := notesByID[n.VulnerabilityID]; !ok {
				notesByID[n.VulnerabilityID] = n
			}
		}
	}

	results := make([]models.ClusterRiskTierResult, 0, len(clusters))
	for _, c := range clusters {
		results = append(results, Assign(c, notesByID[c.VulnerabilityID], devOnly[c.VulnerabilityID]))
	}
	return results
}

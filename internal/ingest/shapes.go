package ingest

import (
	"strconv"
	"strings"

	"github.com/goark/go-cvss/v3/metric"

	"github.com/helionsec/helion/models"
)

// genericAliases maps common scanner field names onto RawFinding fields.
// Severity synonyms are handled later by the normalizer.
var genericAliases = map[string]string{
	"cve_id":          "vulnerability_id",
	"cve":             "vulnerability_id",
	"id":              "vulnerability_id",
	"vulnerability":   "vulnerability_id",
	"VulnerabilityID": "vulnerability_id",
	"file":            "file_path",
	"path":            "file_path",
	"filepath":        "file_path",
	"package":         "dependency",
	"pkg":             "dependency",
	"dependency_name": "dependency",
	"repository":      "repo",
	"project":         "repo",
	"cvss":            "cvss_score",
	"score":           "cvss_score",
	"message":         "description",
	"title":           "description",
	"summary":         "description",
	"scanner":         "scanner_source",
	"source":          "scanner_source",
	"tool":            "scanner_source",
}

// shapeMapper pairs a detection predicate with the field mapper for one
// scanner output shape. Detection runs in table order; the first match wins,
// so a payload carrying both Trivy and Snyk markers routes through Trivy.
type shapeMapper struct {
	name  string
	match func(map[string]any) bool
	mapTo func(map[string]any) models.RawFinding
}

var shapeMappers = []shapeMapper{
	{name: "trivy", match: isTrivyLike, mapTo: mapTrivy},
	{name: "snyk", match: isSnykLike, mapTo: mapSnyk},
	{name: "semgrep", match: isSemgrepLike, mapTo: mapSemgrep},
}

// MapShape converts one arbitrary scanner payload object into a RawFinding,
// routing through the first recognized scanner shape or the generic alias
// table when none matches. The original object is always preserved verbatim
// in RawPayload.
func MapShape(obj map[string]any) models.RawFinding {
	for _, m := range shapeMappers {
		if m.match(obj) {
			return m.mapTo(obj)
		}
	}
	return mapGeneric(obj)
}

func isTrivyLike(obj map[string]any) bool {
	if _, ok := obj["VulnerabilityID"]; ok {
		return true
	}
	if v, ok := obj["Vulnerability"].(map[string]any); ok {
		if _, ok := v["ID"]; ok {
			return true
		}
		if _, ok := v["VulnerabilityID"]; ok {
			return true
		}
	}
	return false
}

func isSnykLike(obj map[string]any) bool {
	_, hasIssue := obj["issue_id"]
	_, hasSev := obj["severity"]
	return hasIssue && hasSev
}

func isSemgrepLike(obj map[string]any) bool {
	if _, ok := obj["check_id"]; !ok {
		return false
	}
	if _, ok := obj["path"]; ok {
		return true
	}
	_, ok := obj["metadata"]
	return ok
}

func mapTrivy(obj map[string]any) models.RawFinding {
	raw := models.RawFinding{ScannerSource: "trivy", RawPayload: obj}
	raw.VulnerabilityID = stringField(obj, "VulnerabilityID")
	if v, ok := obj["Vulnerability"].(map[string]any); ok {
		setIfEmpty(&raw.VulnerabilityID, stringField(v, "VulnerabilityID"))
		setIfEmpty(&raw.Severity, stringField(v, "Severity"))
		desc := stringField(v, "Description")
		if desc == "" {
			desc = stringField(v, "Title")
		}
		setIfEmpty(&raw.Description, desc)
		if cvss, ok := v["CVSS"].(map[string]any); ok {
			raw.CVSSScore = trivyCVSS(cvss)
		}
	}
	setIfEmpty(&raw.Severity, stringField(obj, "Severity"))
	setIfEmpty(&raw.Dependency, stringField(obj, "PkgName"))
	setIfEmpty(&raw.Description, stringField(obj, "Title"))
	setIfEmpty(&raw.VulnerabilityID, stringField(obj, "PrimaryURL"))
	mergeAliases(&raw, obj)
	return raw
}

// trivyCVSS extracts a numeric score from Trivy's CVSS source map, preferring
// sources in nvd, redhat, ghsa order and V3Score over V2Score. When a source
// carries only a V3Vector the score is computed from the vector.
func trivyCVSS(cvss map[string]any) *float64 {
	for _, source := range []string{"nvd", "redhat", "ghsa"} {
		entry, ok := cvss[source].(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"V3Score", "V2Score"} {
			if score, ok := numericValue(entry[key]); ok {
				return &score
			}
		}
		if vector, ok := entry["V3Vector"].(string); ok && vector != "" {
			if bm, err := metric.NewBase().Decode(vector); err == nil {
				score := bm.Score()
				return &score
			}
		}
	}
	return nil
}

func mapSnyk(obj map[string]any) models.RawFinding {
	raw := models.RawFinding{ScannerSource: "snyk", RawPayload: obj}
	raw.VulnerabilityID = stringField(obj, "issue_id")
	raw.Severity = stringField(obj, "severity")
	switch pkg := obj["package"].(type) {
	case string:
		raw.Dependency = strings.TrimSpace(pkg)
	case map[string]any:
		raw.Dependency = stringField(pkg, "name")
	}
	raw.Description = stringField(obj, "title")
	if score, ok := numericValue(obj["cvss_score"]); ok {
		raw.CVSSScore = &score
	}
	mergeAliases(&raw, obj)
	return raw
}

func mapSemgrep(obj map[string]any) models.RawFinding {
	raw := models.RawFinding{ScannerSource: "semgrep", RawPayload: obj}
	raw.VulnerabilityID = stringField(obj, "check_id")
	raw.FilePath = stringField(obj, "path")
	if extra, ok := obj["extra"].(map[string]any); ok {
		setIfEmpty(&raw.Severity, stringField(extra, "severity"))
		setIfEmpty(&raw.Description, stringField(extra, "message"))
	}
	if meta, ok := obj["metadata"].(map[string]any); ok {
		setIfEmpty(&raw.Severity, stringField(meta, "severity"))
		setIfEmpty(&raw.Description, stringField(meta, "description"))
	}
	mergeAliases(&raw, obj)
	return raw
}

func mapGeneric(obj map[string]any) models.RawFinding {
	raw := models.RawFinding{RawPayload: obj}
	// Canonical names win over aliases when both appear.
	raw.VulnerabilityID = stringField(obj, "vulnerability_id")
	raw.Severity = stringField(obj, "severity")
	raw.Repo = stringField(obj, "repo")
	raw.FilePath = stringField(obj, "file_path")
	raw.Dependency = stringField(obj, "dependency")
	raw.Description = stringField(obj, "description")
	raw.ScannerSource = stringField(obj, "scanner_source")
	if score, ok := numericValue(obj["cvss_score"]); ok {
		raw.CVSSScore = &score
	}
	mergeAliases(&raw, obj)
	return raw
}

// mergeAliases fills any still-empty RawFinding field from generic alias keys
// present in the original object. Already-mapped fields are never overwritten.
func mergeAliases(raw *models.RawFinding, obj map[string]any) {
	for alias, target := range genericAliases {
		val, ok := obj[alias]
		if !ok || val == nil {
			continue
		}
		switch target {
		case "vulnerability_id":
			setIfEmpty(&raw.VulnerabilityID, stringValue(val))
		case "severity":
			setIfEmpty(&raw.Severity, stringValue(val))
		case "repo":
			setIfEmpty(&raw.Repo, stringValue(val))
		case "file_path":
			setIfEmpty(&raw.FilePath, stringValue(val))
		case "dependency":
			setIfEmpty(&raw.Dependency, stringValue(val))
		case "description":
			setIfEmpty(&raw.Description, stringValue(val))
		case "scanner_source":
			setIfEmpty(&raw.ScannerSource, stringValue(val))
		case "cvss_score":
			if raw.CVSSScore == nil {
				if score, ok := numericValue(val); ok {
					raw.CVSSScore = &score
				}
			}
		}
	}
}

func setIfEmpty(dst *string, val string) {
	if *dst == "" && val != "" {
		*dst = val
	}
}

func stringField(obj map[string]any, key string) string {
	return stringValue(obj[key])
}

func stringValue(val any) string {
	s, ok := val.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// numericValue coerces JSON numbers and numeric strings to float64.
// Non-numeric values are ignored rather than treated as errors.
func numericValue(val any) (float64, bool) {
	switch n := val.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

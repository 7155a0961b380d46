package models

import "time"

// RawFinding is the scanner-agnostic ingestion shape. Every field is optional;
// the normalizer fills defaults. CVSSScore is a pointer so a missing score can
// be told apart from an explicit 0.0.
type RawFinding struct {
	VulnerabilityID string         `json:"vulnerability_id,omitempty"`
	Severity        string         `json:"severity,omitempty"`
	Repo            string         `json:"repo,omitempty"`
	FilePath        string         `json:"file_path,omitempty"`
	Dependency      string         `json:"dependency,omitempty"`
	CVSSScore       *float64       `json:"cvss_score,omitempty"`
	Description     string         `json:"description,omitempty"`
	ScannerSource   string         `json:"scanner_source,omitempty"`
	RawPayload      map[string]any `json:"raw_payload,omitempty"`
}

// NormalizedFinding is the unified internal representation of one finding,
// regardless of which scanner produced it. All fields are populated.
type NormalizedFinding struct {
	VulnerabilityID string   `json:"vulnerability_id"`
	Severity        Severity `json:"severity"`
	Repo            string   `json:"repo"`
	FilePath        string   `json:"file_path"`
	Dependency      string   `json:"dependency"`
	CVSSScore       float64  `json:"cvss_score"`
	Description     string   `json:"description"`
}

// Finding is a persisted finding row, aligned with NormalizedFinding plus
// traceability fields.
type Finding struct {
	ID              int64     `json:"id"               db:"id"`
	VulnerabilityID string    `json:"vulnerability_id" db:"vulnerability_id"`
	Severity        Severity  `json:"severity"         db:"severity"`
	Repo            string    `json:"repo"             db:"repo"`
	FilePath        string    `json:"file_path"        db:"file_path"`
	Dependency      string    `json:"dependency"       db:"dependency"`
	CVSSScore       float64   `json:"cvss_score"       db:"cvss_score"`
	Description     string    `json:"description"      db:"description"`
	ScannerSource   string    `json:"scanner_source"   db:"scanner_source"`
	RawPayload      string    `json:"raw_payload"      db:"raw_payload"` // JSON
	CreatedAt       time.Time `json:"created_at"       db:"created_at"`
}

// VulnerabilityCluster is one logical vulnerability (e.g. one CVE) that may
// appear in multiple repos/files, with canonical fields and references to the
// findings that belong to it.
type VulnerabilityCluster struct {
	VulnerabilityID string   `json:"vulnerability_id"`
	Severity        Severity `json:"severity"`
	// Repo is the single repository, or "multiple" when the cluster spans
	// more than one distinct repo.
	Repo                  string   `json:"repo"`
	FilePath              string   `json:"file_path"`
	Dependency            string   `json:"dependency"`
	CVSSScore             float64  `json:"cvss_score"`
	Description           string   `json:"description"`
	FindingIDs            []string `json:"finding_ids"`
	AffectedServicesCount int      `json:"affected_services_count"`
	FindingCount          int      `json:"finding_count"`
}

// CompressionMetrics describes how much clustering reduced the raw finding set.
type CompressionMetrics struct {
	RawFindingCount  int     `json:"raw_finding_count"`
	ClusterCount     int     `json:"cluster_count"`
	CompressionRatio float64 `json:"compression_ratio"`
}

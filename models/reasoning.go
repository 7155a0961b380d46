package models

// ClusterNote is one per-cluster entry of a reasoning result: a suggested
// priority label and a short explanation. Tier fields are filled in after
// deterministic assignment so responses show the final decision next to the
// suggestion that informed it.
type ClusterNote struct {
	VulnerabilityID string `json:"vulnerability_id"`
	Priority        string `json:"priority"`
	Reasoning       string `json:"reasoning"`
	AssignedTier    int    `json:"assigned_tier,omitempty"`
	OverrideApplied string `json:"override_applied,omitempty"`
}

// ReasoningResult is the structured output of the reasoning provider.
type ReasoningResult struct {
	Summary      string        `json:"summary"`
	ClusterNotes []ClusterNote `json:"cluster_notes"`
}

// ClusterRiskTierResult is the tier decision for one cluster. The tier is
// always set by deterministic rules; the reasoning text is passthrough.
type ClusterRiskTierResult struct {
	VulnerabilityID string `json:"vulnerability_id"`
	AssignedTier    int    `json:"assigned_tier"`
	LLMReasoning    string `json:"llm_reasoning,omitempty"`
	OverrideApplied string `json:"override_applied,omitempty"`
}

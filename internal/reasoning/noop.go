package reasoning

import (
	"context"

	"github.com/helionsec/helion/models"
)

// NoopProvider is used when no reasoning backend is configured. It reports
// itself unavailable so callers fall back to severity-only tiering.
type NoopProvider struct{}

func (n *NoopProvider) Name() string { return "noop" }

func (n *NoopProvider) IsAvailable(ctx context.Context) bool { return false }

func (n *NoopProvider) Analyze(ctx context.Context, clusters []models.VulnerabilityCluster) (*models.ReasoningResult, error) {
	return nil, &Error{Kind: KindUnreachable, Msg: "no reasoning provider configured"}
}

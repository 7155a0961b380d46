package reasoning

import (
	"context"
	"fmt"

	"github.com/helionsec/helion/internal/config"
	"github.com/helionsec/helion/models"
)

// Provider generates a structured assessment of vulnerability clusters.
// The final risk tier never comes from the provider; its output only feeds
// the deterministic tier rules as a suggestion.
type Provider interface {
	// Name returns the provider identifier, e.g. "ollama".
	Name() string
	// IsAvailable reports whether the provider can currently serve requests.
	IsAvailable(ctx context.Context) bool
	// Analyze produces a summary and per-cluster priority notes.
	Analyze(ctx context.Context, clusters []models.VulnerabilityCluster) (*models.ReasoningResult, error)
}

// ErrorKind classifies provider failures so the caller can map them to the
// right response.
type ErrorKind int

const (
	// KindUnreachable covers connection failures and timeouts.
	KindUnreachable ErrorKind = iota
	// KindUpstreamStatus covers non-200 responses from the provider.
	KindUpstreamStatus
	// KindInvalidOutput covers model output that is not the expected JSON.
	KindInvalidOutput
)

// Error is a classified reasoning failure.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewProvider builds the configured reasoning provider. An empty base URL
// yields the noop provider.
func NewProvider(cfg config.OllamaConfig) Provider {
	if cfg.BaseURL == "" {
		return &NoopProvider{}
	}
	return NewOllama(cfg)
}

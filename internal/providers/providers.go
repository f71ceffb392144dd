package providers

import (
	"context"
)

// Request is a single text generation call.
type Request struct {
	Model       string
	Temperature float64
	Prompt      string
	// JSON asks the provider to constrain output to a JSON object.
	JSON bool
}

// Provider defines the interface for an LLM provider
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

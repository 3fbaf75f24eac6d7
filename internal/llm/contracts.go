package llm

import "context"

// ExtractRequest is the prepared content handed to one provider call.
type ExtractRequest struct {
	Images []string // base64 page images, page order
	Prompt string   // empty = ExtractionPrompt
}

// Provider sends prepared content to one extraction backend and returns the
// model's raw text. It does not parse or score.
type Provider interface {
	Name() string
	Extract(ctx context.Context, req ExtractRequest) (string, error)
}

// HealthChecker is implemented by providers that can report readiness.
type HealthChecker interface {
	Available(ctx context.Context) (bool, error)
}

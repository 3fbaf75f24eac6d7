package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/docextract/internal/llm"
)

// call invokes one provider with a per-call timeout, retrying transient
// failures up to maxAttempts. Returns the number of calls made.
func (o *Orchestrator) call(ctx context.Context, p llm.Provider, images []string) (string, int, error) {
	var lastErr error
	calls := 0
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		calls++
		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		raw, err := p.Extract(callCtx, llm.ExtractRequest{Images: images})
		cancel()
		if err == nil {
			return raw, calls, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) || attempt == o.maxAttempts {
			break
		}
		o.logger.Warn("pipeline.call.retry", "provider", p.Name(), "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return "", calls, lastErr
		case <-time.After(o.retryBackoff * time.Duration(attempt)):
		}
	}
	return "", calls, lastErr
}

// retryable treats client-side HTTP errors as final; timeouts, transport
// errors and 5xx/429 are retried.
func retryable(err error) bool {
	var se *llm.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return !errors.Is(err, context.Canceled)
}

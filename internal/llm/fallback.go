package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"adpulse/internal/core"
	"adpulse/internal/logger"
)

// Invoker performs one call to one backend and classifies the result.
// *Client satisfies it; tests substitute fakes.
type Invoker interface {
	Invoke(ctx context.Context, backendID, prompt string) core.Attempt
}

// FatalError aborts the fallback run: the failure would repeat identically on
// every remaining backend.
type FatalError struct {
	BackendID string
	Reason    string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("backend %s failed fatally: %s", e.BackendID, e.Reason)
}

// ExhaustedError means every configured backend failed retryably.
type ExhaustedError struct {
	Tried      int
	LastReason string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d backends exhausted, last failure: %s", e.Tried, e.LastReason)
}

// Orchestrator tries an ordered list of backends until one succeeds. Order
// encodes preference (cost, quality, quota headroom).
type Orchestrator struct {
	invoker  Invoker
	backends []string
	backoff  time.Duration
	log      *slog.Logger
}

// NewOrchestrator creates an orchestrator over the ordered backend list.
// backoff is the fixed wait after a retryable failure before the next
// candidate is tried; it must be nonzero to avoid hammering a rate-limited
// backend.
func NewOrchestrator(invoker Invoker, backends []string, backoff time.Duration) *Orchestrator {
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &Orchestrator{
		invoker:  invoker,
		backends: backends,
		backoff:  backoff,
		log:      logger.Get(),
	}
}

// Generate runs the prompt through the backends in order. The first success
// wins and no further backend is tried. A retryable failure waits the backoff
// (unless it was the last candidate) and escalates; a fatal failure aborts
// immediately without touching the remaining backends.
func (o *Orchestrator) Generate(ctx context.Context, prompt string) (string, error) {
	if len(o.backends) == 0 {
		return "", fmt.Errorf("no backends configured")
	}

	var lastReason string
	for i, backendID := range o.backends {
		attempt := o.invoker.Invoke(ctx, backendID, prompt)

		switch attempt.Outcome {
		case core.OutcomeSuccess:
			o.log.Debug("Backend succeeded", "backend", backendID, "attempt", i+1)
			return attempt.Text, nil

		case core.OutcomeFatal:
			o.log.Error("Backend failed fatally, aborting fallback",
				"backend", backendID, "reason", attempt.Reason)
			return "", &FatalError{BackendID: backendID, Reason: attempt.Reason}

		default:
			lastReason = attempt.Reason
			o.log.Warn("Backend failed, trying next",
				"backend", backendID, "reason", attempt.Reason, "remaining", len(o.backends)-i-1)
			if i < len(o.backends)-1 {
				select {
				case <-time.After(o.backoff):
				case <-ctx.Done():
					return "", ctx.Err()
				}
			}
		}
	}

	return "", &ExhaustedError{Tried: len(o.backends), LastReason: lastReason}
}

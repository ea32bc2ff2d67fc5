package llm

import (
	"errors"

	"google.golang.org/genai"

	"adpulse/internal/core"
)

// statusClasses maps an HTTP-style backend status code to its outcome class.
// Throughput and availability signals escalate to the next backend;
// validation and authorization signals would repeat identically against any
// backend and must abort the whole run.
var statusClasses = map[int]core.AttemptOutcome{
	429: core.OutcomeRetryable, // rate limited
	500: core.OutcomeRetryable, // internal backend error
	503: core.OutcomeRetryable, // temporarily unavailable
	400: core.OutcomeFatal,     // malformed request
	401: core.OutcomeFatal,     // unauthorized
	403: core.OutcomeFatal,     // forbidden
}

// Classify maps a backend call error to an attempt outcome. Unknown errors,
// timeouts, and cancellations classify as retryable to bias toward resilience.
func Classify(err error) core.AttemptOutcome {
	if err == nil {
		return core.OutcomeSuccess
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if outcome, ok := statusClasses[apiErr.Code]; ok {
			return outcome
		}
	}

	return core.OutcomeRetryable
}

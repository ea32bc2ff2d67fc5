package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/genai"

	"adpulse/internal/core"
)

func TestClassify_StatusCodes(t *testing.T) {
	cases := []struct {
		code int
		want core.AttemptOutcome
	}{
		{429, core.OutcomeRetryable},
		{500, core.OutcomeRetryable},
		{503, core.OutcomeRetryable},
		{400, core.OutcomeFatal},
		{401, core.OutcomeFatal},
		{403, core.OutcomeFatal},
		{418, core.OutcomeRetryable}, // unclassified status biases toward resilience
	}

	for _, tc := range cases {
		err := genai.APIError{Code: tc.code, Message: "backend error"}
		if got := Classify(err); got != tc.want {
			t.Errorf("Classify(status %d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestClassify_WrappedAPIError(t *testing.T) {
	err := fmt.Errorf("failed to generate content: %w", genai.APIError{Code: 401, Message: "bad key"})
	if got := Classify(err); got != core.OutcomeFatal {
		t.Errorf("Classify(wrapped 401) = %v, want fatal", got)
	}
}

func TestClassify_UnknownError(t *testing.T) {
	if got := Classify(errors.New("connection reset by peer")); got != core.OutcomeRetryable {
		t.Errorf("Classify(unknown error) = %v, want retryable", got)
	}
}

func TestClassify_DeadlineIsRetryable(t *testing.T) {
	if got := Classify(context.DeadlineExceeded); got != core.OutcomeRetryable {
		t.Errorf("Classify(deadline) = %v, want retryable", got)
	}
}

func TestClassify_NilIsSuccess(t *testing.T) {
	if got := Classify(nil); got != core.OutcomeSuccess {
		t.Errorf("Classify(nil) = %v, want success", got)
	}
}

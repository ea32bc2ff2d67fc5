package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"adpulse/internal/core"
)

// scriptedInvoker returns a preconfigured attempt per backend and records
// the order backends were called in.
type scriptedInvoker struct {
	outcomes map[string]core.Attempt
	calls    []string
}

func (s *scriptedInvoker) Invoke(ctx context.Context, backendID, prompt string) core.Attempt {
	s.calls = append(s.calls, backendID)
	attempt := s.outcomes[backendID]
	attempt.BackendID = backendID
	return attempt
}

func TestGenerate_FirstSuccessWins(t *testing.T) {
	invoker := &scriptedInvoker{outcomes: map[string]core.Attempt{
		"model-a": {Outcome: core.OutcomeSuccess, Text: "analysis from a"},
		"model-b": {Outcome: core.OutcomeSuccess, Text: "analysis from b"},
	}}
	orch := NewOrchestrator(invoker, []string{"model-a", "model-b"}, time.Millisecond)

	text, err := orch.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "analysis from a" {
		t.Errorf("Expected first backend's text, got %q", text)
	}
	if len(invoker.calls) != 1 {
		t.Errorf("No backend should be called after a success, got calls %v", invoker.calls)
	}
}

func TestGenerate_RetryableEscalates(t *testing.T) {
	invoker := &scriptedInvoker{outcomes: map[string]core.Attempt{
		"model-a": {Outcome: core.OutcomeRetryable, Reason: "rate limited"},
		"model-b": {Outcome: core.OutcomeSuccess, Text: "analysis from b"},
	}}
	orch := NewOrchestrator(invoker, []string{"model-a", "model-b"}, time.Millisecond)

	text, err := orch.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "analysis from b" {
		t.Errorf("Expected fallback backend's text, got %q", text)
	}
	if len(invoker.calls) != 2 || invoker.calls[0] != "model-a" || invoker.calls[1] != "model-b" {
		t.Errorf("Expected ordered calls [model-a model-b], got %v", invoker.calls)
	}
}

func TestGenerate_FatalAbortsImmediately(t *testing.T) {
	invoker := &scriptedInvoker{outcomes: map[string]core.Attempt{
		"model-a": {Outcome: core.OutcomeFatal, Reason: "API key not valid"},
		"model-b": {Outcome: core.OutcomeSuccess, Text: "would succeed"},
	}}
	orch := NewOrchestrator(invoker, []string{"model-a", "model-b"}, time.Millisecond)

	_, err := orch.Generate(context.Background(), "prompt")
	if err == nil {
		t.Fatal("Expected fatal error")
	}

	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("Expected FatalError, got %T: %v", err, err)
	}
	if fatal.BackendID != "model-a" {
		t.Errorf("FatalError.BackendID = %q, want model-a", fatal.BackendID)
	}
	for _, call := range invoker.calls {
		if call == "model-b" {
			t.Error("Remaining backends must not be invoked after a fatal failure")
		}
	}
}

func TestGenerate_Exhausted(t *testing.T) {
	invoker := &scriptedInvoker{outcomes: map[string]core.Attempt{
		"model-a": {Outcome: core.OutcomeRetryable, Reason: "rate limited"},
		"model-b": {Outcome: core.OutcomeRetryable, Reason: "service unavailable"},
	}}
	orch := NewOrchestrator(invoker, []string{"model-a", "model-b"}, time.Millisecond)

	_, err := orch.Generate(context.Background(), "prompt")
	if err == nil {
		t.Fatal("Expected exhaustion error")
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Expected ExhaustedError, got %T: %v", err, err)
	}
	if exhausted.Tried != 2 {
		t.Errorf("ExhaustedError.Tried = %d, want 2", exhausted.Tried)
	}
	if exhausted.LastReason != "service unavailable" {
		t.Errorf("ExhaustedError.LastReason = %q, want the last observed reason", exhausted.LastReason)
	}
}

func TestGenerate_NoBackoffAfterLastCandidate(t *testing.T) {
	invoker := &scriptedInvoker{outcomes: map[string]core.Attempt{
		"model-a": {Outcome: core.OutcomeRetryable, Reason: "rate limited"},
	}}
	orch := NewOrchestrator(invoker, []string{"model-a"}, time.Minute)

	start := time.Now()
	_, err := orch.Generate(context.Background(), "prompt")
	if err == nil {
		t.Fatal("Expected exhaustion error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("No backoff should follow the last candidate, took %v", elapsed)
	}
}

func TestGenerate_ContextCancelDuringBackoff(t *testing.T) {
	invoker := &scriptedInvoker{outcomes: map[string]core.Attempt{
		"model-a": {Outcome: core.OutcomeRetryable, Reason: "rate limited"},
		"model-b": {Outcome: core.OutcomeSuccess, Text: "text"},
	}}
	orch := NewOrchestrator(invoker, []string{"model-a", "model-b"}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := orch.Generate(ctx, "prompt")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled during backoff, got %v", err)
	}
}

func TestGenerate_NoBackends(t *testing.T) {
	orch := NewOrchestrator(&scriptedInvoker{outcomes: map[string]core.Attempt{}}, nil, time.Millisecond)
	if _, err := orch.Generate(context.Background(), "prompt"); err == nil {
		t.Error("Expected error with no backends configured")
	}
}

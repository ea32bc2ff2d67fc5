// Package llm calls the Gemini text-generation backends and drives the
// ordered fallback across them. A "backend" is one model identifier served
// through a single API client; the orchestrator walks the configured list
// until one call succeeds or a fatal classification aborts the run.
package llm

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"adpulse/internal/core"
)

// DefaultModel is the preferred Gemini model for analysis generation.
const DefaultModel = "gemini-2.5-flash"

// Client represents a client for interacting with the Gemini API.
type Client struct {
	apiKey         string
	gClient        *genai.Client
	attemptTimeout time.Duration
}

// NewClient creates a new LLM client. The attemptTimeout bounds each
// individual backend call so the orchestrator never hangs on one backend.
func NewClient(ctx context.Context, apiKey string, attemptTimeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or ai.gemini.api_key in config file")
	}
	if attemptTimeout <= 0 {
		attemptTimeout = 30 * time.Second
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		apiKey:         apiKey,
		gClient:        gClient,
		attemptTimeout: attemptTimeout,
	}, nil
}

// Invoke sends the prompt to one backend and classifies the outcome. It never
// returns an error: failures are folded into the attempt's outcome so the
// orchestrator can decide whether to escalate. The call itself is the only
// side effect.
func (c *Client) Invoke(ctx context.Context, backendID, prompt string) core.Attempt {
	attempt := core.Attempt{BackendID: backendID}

	callCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	resp, err := c.gClient.Models.GenerateContent(callCtx, backendID, contents, nil)
	if err != nil {
		attempt.Outcome = Classify(err)
		attempt.Reason = err.Error()
		return attempt
	}

	text := resp.Text()
	if text == "" {
		// Observationally equivalent to a backend hiccup.
		attempt.Outcome = core.OutcomeRetryable
		attempt.Reason = "empty response from model"
		return attempt
	}

	attempt.Outcome = core.OutcomeSuccess
	attempt.Text = text
	return attempt
}

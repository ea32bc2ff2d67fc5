// Package analysis coordinates weekly-analysis generation: cache consult,
// single-flight guarding, prompt construction, fallback-driven generation,
// and persistence, plus the history/override path over the store.
package analysis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"adpulse/internal/core"
	"adpulse/internal/dataset"
	"adpulse/internal/logger"
)

// Store is the slice of the persistence layer the coordinator needs.
type Store interface {
	Get(ctx context.Context, day time.Time, fingerprint string) (*core.CacheEntry, error)
	Put(ctx context.Context, day time.Time, fingerprint, text string, ttl time.Duration) error
}

// Generator produces analysis text from a rendered prompt. The fallback
// orchestrator satisfies it; tests substitute fakes.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Request describes one generation invocation.
type Request struct {
	// ContextKey identifies the logical UI context holding the single-flight
	// guard. Falls back to the fingerprint when empty.
	ContextKey string
	// Fingerprint is the derived cache key for the current filtered dataset.
	Fingerprint string
	// ForceRefresh bypasses the cache consult and regenerates.
	ForceRefresh bool
	// Current holds the current-period rows; empty short-circuits to the
	// no-data sentinel.
	Current []core.CampaignRecord
	// Historical holds older rows the comparison period is derived from.
	Historical []core.CampaignRecord
}

// Options configures a Coordinator.
type Options struct {
	TTL        time.Duration             // Retention for persisted analyses
	PeriodDays int                       // Length of the comparison window
	Benchmarks map[string]core.Benchmark // Per-vehicle targets for the prompt
}

// lastRun memoizes the most recent successful run for a context so an
// unchanged fingerprint does not refire generation on every render.
type lastRun struct {
	fingerprint string
	result      core.AnalysisResult
}

// Coordinator is the top-level entry point of the generation pipeline.
type Coordinator struct {
	store     Store
	generator Generator
	opts      Options
	flight    singleflight.Group

	mu   sync.Mutex
	last map[string]lastRun
	log  *slog.Logger
}

// NewCoordinator creates a generation coordinator.
func NewCoordinator(store Store, generator Generator, opts Options) *Coordinator {
	if opts.PeriodDays <= 0 {
		opts.PeriodDays = 7
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &Coordinator{
		store:     store,
		generator: generator,
		opts:      opts,
		last:      make(map[string]lastRun),
		log:       logger.Get(),
	}
}

// EnsureAnalysis returns the analysis for the request's dataset, generating
// and persisting it when no valid cached copy exists. Concurrent calls for
// the same context share a single in-flight generation; the guard is released
// on every exit path, success or failure.
func (c *Coordinator) EnsureAnalysis(ctx context.Context, req Request) (core.AnalysisResult, error) {
	if len(req.Current) == 0 {
		// No cache interaction and no backend call for an empty dataset.
		return core.AnalysisResult{Text: NoDataText, GeneratedAt: time.Now().UTC()}, nil
	}

	key := req.ContextKey
	if key == "" {
		key = req.Fingerprint
	}

	value, err, _ := c.flight.Do(key, func() (interface{}, error) {
		return c.ensure(ctx, req)
	})
	if err != nil {
		return core.AnalysisResult{}, err
	}

	return value.(core.AnalysisResult), nil
}

// ensure runs under the single-flight guard.
func (c *Coordinator) ensure(ctx context.Context, req Request) (core.AnalysisResult, error) {
	today := core.Day(time.Now())

	if !req.ForceRefresh {
		// Unchanged fingerprint since the last successful run for this
		// context: nothing to recompute.
		c.mu.Lock()
		prev, ok := c.last[c.memoKey(req)]
		c.mu.Unlock()
		if ok && prev.fingerprint == req.Fingerprint {
			result := prev.result
			result.WasCached = true
			return result, nil
		}

		entry, err := c.store.Get(ctx, today, req.Fingerprint)
		if err != nil {
			// A read failure degrades to a miss; generation still proceeds.
			c.log.Warn("Analysis cache read failed, treating as miss",
				"fingerprint", req.Fingerprint, "error", err.Error())
		}
		if entry != nil {
			result := core.AnalysisResult{
				Text:        entry.Text,
				WasCached:   true,
				GeneratedAt: entry.GeneratedAt,
			}
			c.remember(req, result)
			return result, nil
		}
	}

	runID := uuid.NewString()
	c.log.Info("Generating analysis",
		"run_id", runID, "fingerprint", req.Fingerprint, "force_refresh", req.ForceRefresh)

	currentStart := earliestDay(req.Current)
	previous := dataset.PreviousPeriod(req.Historical, currentStart, c.opts.PeriodDays)
	prompt := BuildPrompt(req.Current, previous, c.opts.Benchmarks)

	text, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		c.log.Error("Analysis generation failed", "error", err, "run_id", runID, "fingerprint", req.Fingerprint)
		return core.AnalysisResult{}, err
	}

	result := core.AnalysisResult{
		Text:        text,
		WasCached:   false,
		GeneratedAt: time.Now().UTC(),
	}

	if err := c.store.Put(ctx, today, req.Fingerprint, text, c.opts.TTL); err != nil {
		// The generated text is not wasted: the caller still gets it.
		c.log.Warn("Failed to persist analysis, returning in-memory result",
			"run_id", runID, "fingerprint", req.Fingerprint, "error", err.Error())
	}

	c.remember(req, result)
	return result, nil
}

func (c *Coordinator) memoKey(req Request) string {
	if req.ContextKey != "" {
		return req.ContextKey
	}
	return req.Fingerprint
}

// remember records the fingerprint and result of a successful run.
func (c *Coordinator) remember(req Request, result core.AnalysisResult) {
	c.mu.Lock()
	c.last[c.memoKey(req)] = lastRun{fingerprint: req.Fingerprint, result: result}
	c.mu.Unlock()
}

// earliestDay returns the earliest calendar day among the records.
func earliestDay(records []core.CampaignRecord) time.Time {
	earliest := core.Day(records[0].Date)
	for _, r := range records[1:] {
		if day := core.Day(r.Date); day.Before(earliest) {
			earliest = day
		}
	}
	return earliest
}

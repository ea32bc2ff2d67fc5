package handlers

import (
	"context"
	"fmt"

	"adpulse/internal/analysis"
	"adpulse/internal/config"
	"adpulse/internal/llm"
	"adpulse/internal/sheets"
	"adpulse/internal/store"
)

// pipeline bundles the wired analysis components the commands share.
type pipeline struct {
	store       *store.Store
	coordinator *analysis.Coordinator
	history     *analysis.History
	source      *sheets.Source
}

// buildPipeline wires the store, the Gemini-backed fallback orchestrator, the
// generation coordinator, and the history reader-writer from configuration.
// The sheets source is optional: it stays nil unless a spreadsheet is
// configured, and commands that need it must check.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	st, err := store.NewStore(cfg.Cache.Directory, cfg.Cache.TTLDuration())
	if err != nil {
		return nil, fmt.Errorf("failed to open analysis store: %w", err)
	}

	client, err := llm.NewClient(ctx, cfg.AI.Gemini.APIKey, cfg.AI.Gemini.AttemptTimeout())
	if err != nil {
		st.Close()
		return nil, err
	}

	orchestrator := llm.NewOrchestrator(client, cfg.Analysis.Backends, cfg.Analysis.BackoffDuration())

	coordinator := analysis.NewCoordinator(st, orchestrator, analysis.Options{
		TTL:        cfg.Cache.TTLDuration(),
		PeriodDays: cfg.Analysis.PeriodDays,
		Benchmarks: cfg.Benchmarks,
	})

	history := analysis.NewHistory(st, cfg.Analysis.HistoryWindowDays)

	p := &pipeline{
		store:       st,
		coordinator: coordinator,
		history:     history,
	}

	if cfg.Sheets.SpreadsheetID != "" {
		source, err := sheets.New(ctx, cfg.Sheets)
		if err != nil {
			st.Close()
			return nil, err
		}
		p.source = source
	}

	return p, nil
}

// Close releases the pipeline's resources.
func (p *pipeline) Close() {
	if p.store != nil {
		_ = p.store.Close()
	}
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"adpulse/internal/analysis"
	"adpulse/internal/core"
	"adpulse/internal/dataset"
	"adpulse/internal/fingerprint"
	"adpulse/internal/llm"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

// notFoundResponse distinguishes an explicit miss from a server failure.
type notFoundResponse struct {
	Status string `json:"status"`
}

// analysisResponse is the body for a cache hit.
type analysisResponse struct {
	Day         string    `json:"day"`
	Fingerprint string    `json:"fingerprint"`
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generated_at"`
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if err := s.store.Ping(r.Context()); err != nil {
		checks["store"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Checks: checks})
		return
	}
	checks["store"] = "ok"

	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Checks: checks})
}

// handleGetAnalysis handles GET /api/analysis?fingerprint=…[&day=YYYY-MM-DD].
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	fp := r.URL.Query().Get("fingerprint")
	if fp == "" {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "fingerprint query parameter is required"})
		return
	}

	day := core.Day(time.Now())
	if raw := r.URL.Query().Get("day"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "day must use the YYYY-MM-DD format"})
			return
		}
		day = core.Day(parsed)
	}

	entry, err := s.store.Get(r.Context(), day, fp)
	if err != nil {
		s.log.Error("Analysis lookup failed", "error", err, "fingerprint", fp)
		s.respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read analysis"})
		return
	}
	if entry == nil {
		s.respondJSON(w, http.StatusNotFound, notFoundResponse{Status: "not_found"})
		return
	}

	s.respondJSON(w, http.StatusOK, analysisResponse{
		Day:         core.DayString(entry.Day),
		Fingerprint: entry.Fingerprint,
		Text:        entry.Text,
		GeneratedAt: entry.GeneratedAt,
	})
}

// historyResponse is the body for the history listing.
type historyResponse struct {
	Fingerprint string             `json:"fingerprint"`
	Items       []core.HistoryItem `json:"items"`
}

// historyEntryResponse is the body for a single-day history read.
type historyEntryResponse struct {
	Day         string `json:"day"`
	Fingerprint string `json:"fingerprint"`
	Text        string `json:"text"`
}

// handleHistory handles GET /api/analysis/history?fingerprint=…[&day=YYYY-MM-DD].
// Without a day it lists the trailing window; with one it returns that day's
// full text.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	fp := r.URL.Query().Get("fingerprint")
	if fp == "" {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "fingerprint query parameter is required"})
		return
	}

	if raw := r.URL.Query().Get("day"); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "day must use the YYYY-MM-DD format"})
			return
		}

		text, err := s.history.ReadByDay(r.Context(), fp, day)
		if errors.Is(err, analysis.ErrNotFound) {
			s.respondJSON(w, http.StatusNotFound, notFoundResponse{Status: "not_found"})
			return
		}
		if err != nil {
			s.log.Error("History read failed", "error", err, "fingerprint", fp, "day", raw)
			s.respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read analysis"})
			return
		}

		s.respondJSON(w, http.StatusOK, historyEntryResponse{Day: raw, Fingerprint: fp, Text: text})
		return
	}

	items, err := s.history.ListHistory(r.Context(), fp)
	if err != nil {
		s.log.Error("History listing failed", "error", err, "fingerprint", fp)
		s.respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list history"})
		return
	}
	if items == nil {
		items = []core.HistoryItem{}
	}

	s.respondJSON(w, http.StatusOK, historyResponse{Fingerprint: fp, Items: items})
}

// saveRequest is the body for the manual override endpoint.
type saveRequest struct {
	Fingerprint string `json:"fingerprint"`
	Text        string `json:"text"`
}

// handleSaveAnalysis handles POST /api/analysis, overwriting today's entry.
func (s *Server) handleSaveAnalysis(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.Fingerprint == "" || req.Text == "" {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "fingerprint and text are required"})
		return
	}

	if err := s.history.Save(r.Context(), req.Fingerprint, req.Text); err != nil {
		s.log.Error("Manual save failed", "error", err, "fingerprint", req.Fingerprint)
		s.respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to save analysis"})
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "saved",
		"day":    core.DayString(core.Day(time.Now())),
	})
}

// generateRequest is the body for the on-demand generation endpoint.
type generateRequest struct {
	SelectionID  string `json:"selection_id"`
	ForceRefresh bool   `json:"force_refresh"`
}

// generateResponse is the generation result body.
type generateResponse struct {
	Fingerprint string    `json:"fingerprint"`
	Text        string    `json:"text"`
	WasCached   bool      `json:"was_cached"`
	GeneratedAt time.Time `json:"generated_at"`
}

// handleGenerate handles POST /api/analysis/generate: fetches the dataset,
// derives the fingerprint, and drives the generation coordinator.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.source == nil {
		s.respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no dataset source configured"})
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	records, err := s.source.FetchRecords(r.Context())
	if err != nil {
		s.log.Error("Dataset fetch failed", "error", err)
		s.respondJSON(w, http.StatusBadGateway, errorResponse{Error: "failed to fetch campaign data"})
		return
	}

	selected := dataset.FilterByCampaign(records, req.SelectionID)
	current, historical := dataset.SplitPeriods(selected, time.Now(), s.periodDays)
	fp := fingerprint.Derive(req.SelectionID, len(current), dataset.SumImpressions(current))

	result, err := s.coordinator.EnsureAnalysis(r.Context(), analysis.Request{
		ContextKey:   req.SelectionID,
		Fingerprint:  fp,
		ForceRefresh: req.ForceRefresh,
		Current:      current,
		Historical:   historical,
	})
	if err != nil {
		s.respondGenerationError(w, fp, err)
		return
	}

	s.respondJSON(w, http.StatusOK, generateResponse{
		Fingerprint: fp,
		Text:        result.Text,
		WasCached:   result.WasCached,
		GeneratedAt: result.GeneratedAt,
	})
}

// respondGenerationError maps pipeline failures to HTTP statuses: fatal
// backend errors need caller intervention, exhaustion is an upstream outage.
func (s *Server) respondGenerationError(w http.ResponseWriter, fp string, err error) {
	s.log.Error("Analysis generation failed", "error", err, "fingerprint", fp)

	var fatal *llm.FatalError
	if errors.As(err, &fatal) {
		s.respondJSON(w, http.StatusBadGateway, errorResponse{Error: fatal.Error()})
		return
	}
	var exhausted *llm.ExhaustedError
	if errors.As(err, &exhausted) {
		s.respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: exhausted.Error()})
		return
	}
	s.respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "analysis generation failed"})
}

// respondJSON writes a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

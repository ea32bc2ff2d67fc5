package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"adpulse/internal/analysis"
	"adpulse/internal/config"
	"adpulse/internal/core"
	"adpulse/internal/llm"
)

// fakeStore implements Store.
type fakeStore struct {
	entries map[string]core.CacheEntry
	failGet bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]core.CacheEntry)}
}

func (f *fakeStore) put(day time.Time, fp, text string) {
	f.entries[core.DayString(day)+"|"+fp] = core.CacheEntry{
		Day: core.Day(day), Fingerprint: fp, Text: text, GeneratedAt: time.Now().UTC(),
	}
}

func (f *fakeStore) Get(ctx context.Context, day time.Time, fp string) (*core.CacheEntry, error) {
	if f.failGet {
		return nil, errors.New("store failure")
	}
	entry, ok := f.entries[core.DayString(day)+"|"+fp]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

// fakeHistory implements HistoryService.
type fakeHistory struct {
	items   []core.HistoryItem
	saved   map[string]string
	failAll bool
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{saved: make(map[string]string)}
}

func (f *fakeHistory) ListHistory(ctx context.Context, fp string) ([]core.HistoryItem, error) {
	if f.failAll {
		return nil, errors.New("history failure")
	}
	return f.items, nil
}

func (f *fakeHistory) ReadByDay(ctx context.Context, fp string, day time.Time) (string, error) {
	if text, ok := f.saved[fp]; ok {
		return text, nil
	}
	return "", analysis.ErrNotFound
}

func (f *fakeHistory) Save(ctx context.Context, fp, text string) error {
	if f.failAll {
		return errors.New("history failure")
	}
	f.saved[fp] = text
	return nil
}

// fakeCoordinator implements GenerationService.
type fakeCoordinator struct {
	result core.AnalysisResult
	err    error
	calls  int
}

func (f *fakeCoordinator) EnsureAnalysis(ctx context.Context, req analysis.Request) (core.AnalysisResult, error) {
	f.calls++
	if f.err != nil {
		return core.AnalysisResult{}, f.err
	}
	return f.result, nil
}

// fakeSource implements DataSource.
type fakeSource struct {
	records []core.CampaignRecord
	err     error
}

func (f *fakeSource) FetchRecords(ctx context.Context) ([]core.CampaignRecord, error) {
	return f.records, f.err
}

func newTestServer(store *fakeStore, history *fakeHistory, coord *fakeCoordinator, source DataSource) *Server {
	cfg := config.Server{APIToken: "secret"}
	return New(store, history, coord, source, cfg, 7)
}

func TestHandleGetAnalysis_Hit(t *testing.T) {
	store := newFakeStore()
	store.put(core.Day(time.Now()), "all-245-1582340", "the narrative")
	srv := newTestServer(store, newFakeHistory(), &fakeCoordinator{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/analysis?fingerprint=all-245-1582340", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp analysisResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if resp.Text != "the narrative" {
		t.Errorf("Unexpected text: %q", resp.Text)
	}
	if resp.GeneratedAt.IsZero() {
		t.Error("Response should carry a generation timestamp")
	}
}

func TestHandleGetAnalysis_MissIsNotAnError(t *testing.T) {
	srv := newTestServer(newFakeStore(), newFakeHistory(), &fakeCoordinator{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/analysis?fingerprint=unknown", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
	var resp notFoundResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if resp.Status != "not_found" {
		t.Errorf("Miss should be an explicit not_found body, got %+v", resp)
	}
}

func TestHandleGetAnalysis_StoreFailureIsDistinctFromMiss(t *testing.T) {
	store := newFakeStore()
	store.failGet = true
	srv := newTestServer(store, newFakeHistory(), &fakeCoordinator{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/analysis?fingerprint=fp", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500 for store failure, got %d", rec.Code)
	}
}

func TestHandleGetAnalysis_RequiresFingerprint(t *testing.T) {
	srv := newTestServer(newFakeStore(), newFakeHistory(), &fakeCoordinator{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/analysis", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

func TestHandleGetAnalysis_ExplicitDay(t *testing.T) {
	store := newFakeStore()
	yesterday := core.Day(time.Now()).AddDate(0, 0, -1)
	store.put(yesterday, "fp", "yesterday's narrative")
	srv := newTestServer(store, newFakeHistory(), &fakeCoordinator{}, nil)

	rec := httptest.NewRecorder()
	url := "/api/analysis?fingerprint=fp&day=" + core.DayString(yesterday)
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", url, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
}

func TestHandleHistory(t *testing.T) {
	history := newFakeHistory()
	now := time.Now().UTC()
	history.items = []core.HistoryItem{
		{Day: core.Day(now), GeneratedAt: now},
		{Day: core.Day(now).AddDate(0, 0, -2), GeneratedAt: now.AddDate(0, 0, -2)},
	}
	srv := newTestServer(newFakeStore(), history, &fakeCoordinator{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/analysis/history?fingerprint=fp", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp historyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Errorf("Expected 2 history items, got %d", len(resp.Items))
	}
}

func TestHandleSaveAnalysis(t *testing.T) {
	history := newFakeHistory()
	srv := newTestServer(newFakeStore(), history, &fakeCoordinator{}, nil)

	body, _ := json.Marshal(saveRequest{Fingerprint: "fp", Text: "edited text"})
	req := httptest.NewRequest("POST", "/api/analysis", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if history.saved["fp"] != "edited text" {
		t.Errorf("Save should write the edited text, got %q", history.saved["fp"])
	}
}

func TestHandleSaveAnalysis_RequiresToken(t *testing.T) {
	srv := newTestServer(newFakeStore(), newFakeHistory(), &fakeCoordinator{}, nil)

	body, _ := json.Marshal(saveRequest{Fingerprint: "fp", Text: "edited"})

	// Missing token.
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/analysis", bytes.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", rec.Code)
	}

	// Wrong token.
	req := httptest.NewRequest("POST", "/api/analysis", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong token, got %d", rec.Code)
	}
}

func TestHandleSaveAnalysis_NoTokenConfigured(t *testing.T) {
	srv := New(newFakeStore(), newFakeHistory(), &fakeCoordinator{}, nil, config.Server{}, 7)

	body, _ := json.Marshal(saveRequest{Fingerprint: "fp", Text: "edited"})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/analysis", bytes.NewReader(body)))

	if rec.Code != http.StatusForbidden {
		t.Errorf("Write endpoints should be disabled without a configured token, got %d", rec.Code)
	}
}

func TestHandleGenerate(t *testing.T) {
	today := core.Day(time.Now())
	source := &fakeSource{records: []core.CampaignRecord{
		{Date: today, Vehicle: "Google", Campaign: "Brand", Impressions: 1000},
		{Date: today.AddDate(0, 0, -20), Vehicle: "Google", Campaign: "Brand", Impressions: 500},
	}}
	coord := &fakeCoordinator{result: core.AnalysisResult{Text: "generated", GeneratedAt: time.Now().UTC()}}
	srv := newTestServer(newFakeStore(), newFakeHistory(), coord, source)

	body, _ := json.Marshal(generateRequest{SelectionID: "all"})
	req := httptest.NewRequest("POST", "/api/analysis/generate", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp generateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if resp.Text != "generated" {
		t.Errorf("Unexpected text: %q", resp.Text)
	}
	// One current-period row with 1000 impressions.
	if resp.Fingerprint != "all-1-1000" {
		t.Errorf("Fingerprint = %q, want all-1-1000", resp.Fingerprint)
	}
	if coord.calls != 1 {
		t.Errorf("Expected 1 coordinator call, got %d", coord.calls)
	}
}

func TestHandleGenerate_SourceFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("sheets unavailable")}
	srv := newTestServer(newFakeStore(), newFakeHistory(), &fakeCoordinator{}, source)

	body, _ := json.Marshal(generateRequest{})
	req := httptest.NewRequest("POST", "/api/analysis/generate", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("Expected 502 for dataset fetch failure, got %d", rec.Code)
	}
}

func TestHandleGenerate_NoSource(t *testing.T) {
	srv := newTestServer(newFakeStore(), newFakeHistory(), &fakeCoordinator{}, nil)

	body, _ := json.Marshal(generateRequest{})
	req := httptest.NewRequest("POST", "/api/analysis/generate", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without a dataset source, got %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(newFakeStore(), newFakeHistory(), &fakeCoordinator{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
}

func TestHandleGenerate_ErrorStatusMapping(t *testing.T) {
	today := core.Day(time.Now())
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"fatal backend error", &llm.FatalError{BackendID: "gemini-2.5-flash", Reason: "invalid api key"}, http.StatusBadGateway},
		{"all backends exhausted", &llm.ExhaustedError{Tried: 3, LastReason: "rate limited"}, http.StatusServiceUnavailable},
		{"unclassified failure", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			source := &fakeSource{records: []core.CampaignRecord{
				{Date: today, Vehicle: "Google", Campaign: "Brand", Impressions: 1000},
			}}
			coord := &fakeCoordinator{err: tc.err}
			srv := newTestServer(newFakeStore(), newFakeHistory(), coord, source)

			body, _ := json.Marshal(generateRequest{SelectionID: "all"})
			req := httptest.NewRequest("POST", "/api/analysis/generate", bytes.NewReader(body))
			req.Header.Set("Authorization", "Bearer secret")

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Errorf("Status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestHandleHistory_ReadByDay(t *testing.T) {
	history := newFakeHistory()
	history.saved["all-245-1582340"] = "that day's narrative"
	srv := newTestServer(newFakeStore(), history, &fakeCoordinator{}, nil)

	req := httptest.NewRequest("GET", "/api/analysis/history?fingerprint=all-245-1582340&day=2026-08-24", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp historyEntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if resp.Text != "that day's narrative" {
		t.Errorf("Unexpected text: %q", resp.Text)
	}
	if resp.Day != "2026-08-24" {
		t.Errorf("Day = %q, want 2026-08-24", resp.Day)
	}
}

func TestHandleHistory_ReadByDayMiss(t *testing.T) {
	srv := newTestServer(newFakeStore(), newFakeHistory(), &fakeCoordinator{}, nil)

	req := httptest.NewRequest("GET", "/api/analysis/history?fingerprint=all-1-1&day=2026-08-24", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an absent day, got %d", rec.Code)
	}

	req = httptest.NewRequest("GET", "/api/analysis/history?fingerprint=all-1-1&day=not-a-day", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a malformed day, got %d", rec.Code)
	}
}

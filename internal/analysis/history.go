package analysis

import (
	"context"
	"errors"
	"time"

	"adpulse/internal/core"
)

// ErrNotFound is returned when no analysis exists for the requested day.
var ErrNotFound = errors.New("analysis not found")

// HistoryStore is the slice of the persistence layer the history path needs.
type HistoryStore interface {
	Get(ctx context.Context, day time.Time, fingerprint string) (*core.CacheEntry, error)
	Overwrite(ctx context.Context, day time.Time, fingerprint, text string) error
	ListWindow(ctx context.Context, fingerprint string, windowDays int) ([]core.CacheEntry, error)
}

// History lists previously persisted analyses over the trailing window and
// writes manual overrides into today's slot. Past days are read-only.
type History struct {
	store      HistoryStore
	windowDays int
}

// NewHistory creates a history reader-writer scanning windowDays trailing days.
func NewHistory(store HistoryStore, windowDays int) *History {
	if windowDays <= 0 {
		windowDays = 30
	}
	return &History{store: store, windowDays: windowDays}
}

// ListHistory returns the days that have a persisted analysis for the
// fingerprint, most recent first.
func (h *History) ListHistory(ctx context.Context, fingerprint string) ([]core.HistoryItem, error) {
	entries, err := h.store.ListWindow(ctx, fingerprint, h.windowDays)
	if err != nil {
		return nil, err
	}

	items := make([]core.HistoryItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, core.HistoryItem{Day: entry.Day, GeneratedAt: entry.GeneratedAt})
	}
	return items, nil
}

// ReadByDay returns the persisted text for (fingerprint, day), or ErrNotFound.
func (h *History) ReadByDay(ctx context.Context, fingerprint string, day time.Time) (string, error) {
	entry, err := h.store.Get(ctx, day, fingerprint)
	if err != nil {
		return "", err
	}
	if entry == nil {
		return "", ErrNotFound
	}
	return entry.Text, nil
}

// Save overwrites today's entry for the fingerprint with manually edited
// text. Only today's slot is writable; history stays immutable.
func (h *History) Save(ctx context.Context, fingerprint, text string) error {
	return h.store.Overwrite(ctx, core.Day(time.Now()), fingerprint, text)
}

package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"adpulse/internal/core"
)

func TestHistory_SaveAndReadByDay(t *testing.T) {
	store := newFakeStore()
	history := NewHistory(store, 30)
	ctx := context.Background()
	today := core.Day(time.Now())
	yesterday := today.AddDate(0, 0, -1)

	_ = store.Overwrite(ctx, yesterday, "fp", "yesterday's narrative")

	if err := history.Save(ctx, "fp", "edited text"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	text, err := history.ReadByDay(ctx, "fp", today)
	if err != nil {
		t.Fatalf("ReadByDay failed: %v", err)
	}
	if text != "edited text" {
		t.Errorf("Expected edited text for today, got %q", text)
	}

	// Saving today must not touch past days.
	text, err = history.ReadByDay(ctx, "fp", yesterday)
	if err != nil {
		t.Fatalf("ReadByDay failed: %v", err)
	}
	if text != "yesterday's narrative" {
		t.Errorf("Yesterday's entry should be unaffected, got %q", text)
	}
}

func TestHistory_ReadByDay_NotFound(t *testing.T) {
	history := NewHistory(newFakeStore(), 30)

	_, err := history.ReadByDay(context.Background(), "fp", core.Day(time.Now()))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestHistory_ListHistory(t *testing.T) {
	store := newFakeStore()
	history := NewHistory(store, 30)
	ctx := context.Background()
	today := core.Day(time.Now())

	for _, offset := range []int{0, 2, 5} {
		_ = store.Overwrite(ctx, today.AddDate(0, 0, -offset), "fp", "text")
	}

	items, err := history.ListHistory(ctx, "fp")
	if err != nil {
		t.Fatalf("ListHistory failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Expected 3 history items, got %d", len(items))
	}
	if !items[0].Day.Equal(today) {
		t.Errorf("First item should be today, got %v", items[0].Day)
	}
	for i := 1; i < len(items); i++ {
		if items[i].Day.After(items[i-1].Day) {
			t.Error("History should be ordered most-recent-first")
		}
	}
}

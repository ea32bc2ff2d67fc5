package analysis

import (
	"strings"
	"testing"
	"time"

	"adpulse/internal/core"
)

func TestBuildPrompt(t *testing.T) {
	now := time.Now()
	current := []core.CampaignRecord{
		{Date: now, Vehicle: "Google", Campaign: "Brand", Impressions: 200000, Clicks: 3000, Cost: 450, Conversions: 90},
		{Date: now, Vehicle: "Meta", Campaign: "Retargeting", Impressions: 80000, Clicks: 800, Cost: 120, Conversions: 10},
	}
	previous := []core.CampaignRecord{
		{Date: now.AddDate(0, 0, -8), Vehicle: "Google", Campaign: "Brand", Impressions: 150000, Clicks: 2000, Cost: 400, Conversions: 70},
	}
	benchmarks := map[string]core.Benchmark{
		"Google": {CTR: 1.2, CPM: 2.5, CPA: 6.0},
	}

	prompt := BuildPrompt(current, previous, benchmarks)

	for _, want := range []string{
		"CURRENT PERIOD BY VEHICLE:",
		"PREVIOUS PERIOD BY VEHICLE:",
		"BENCHMARK TARGETS:",
		"Google", "Meta",
		"200000 impressions",
		"TOTALS (current period): 280000 impressions",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}

	// Vehicles are ordered by impressions: Google before Meta.
	if strings.Index(prompt, "- Google:") > strings.Index(prompt, "- Meta:") {
		t.Error("Prompt should list the highest-impression vehicle first")
	}
}

func TestBuildPrompt_NoPreviousPeriod(t *testing.T) {
	current := []core.CampaignRecord{
		{Date: time.Now(), Vehicle: "Google", Impressions: 100, Clicks: 1, Cost: 1, Conversions: 1},
	}

	prompt := BuildPrompt(current, nil, nil)

	if !strings.Contains(prompt, "(no data for the previous period)") {
		t.Error("Prompt should state when the previous period is empty")
	}
	if strings.Contains(prompt, "BENCHMARK TARGETS:") {
		t.Error("Prompt should omit the benchmark section when none are configured")
	}
}

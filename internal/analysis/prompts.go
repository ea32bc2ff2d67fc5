package analysis

import (
	"fmt"
	"strings"

	"adpulse/internal/core"
	"adpulse/internal/dataset"
)

// NoDataText is the sentinel narrative returned when the current period has
// no rows. It is never persisted and never costs a backend call.
const NoDataText = "No campaign data is available for the selected period, so there is nothing to analyze yet."

// BuildPrompt renders the weekly-analysis prompt from the current period, the
// period immediately preceding it, and the configured per-vehicle benchmarks.
// Pure data-to-text transformation; the coordinator owns when it runs.
func BuildPrompt(current, previous []core.CampaignRecord, benchmarks map[string]core.Benchmark) string {
	var prompt strings.Builder

	prompt.WriteString("You are a marketing analyst writing the weekly performance summary for an advertising dashboard.\n\n")
	prompt.WriteString("Analyze the campaign metrics below. For each vehicle, compare current performance against its benchmark targets and against the previous period, then summarize the overall picture.\n\n")

	prompt.WriteString("CURRENT PERIOD BY VEHICLE:\n")
	writeStatsTable(&prompt, dataset.AggregateByVehicle(current))

	prompt.WriteString("\nPREVIOUS PERIOD BY VEHICLE:\n")
	if len(previous) == 0 {
		prompt.WriteString("(no data for the previous period)\n")
	} else {
		writeStatsTable(&prompt, dataset.AggregateByVehicle(previous))
	}

	if len(benchmarks) > 0 {
		prompt.WriteString("\nBENCHMARK TARGETS:\n")
		for _, stats := range dataset.AggregateByVehicle(current) {
			if bench, ok := benchmarks[stats.Vehicle]; ok {
				prompt.WriteString(fmt.Sprintf("- %s: CTR %.2f%%, CPM %.2f, CPA %.2f\n",
					stats.Vehicle, bench.CTR, bench.CPM, bench.CPA))
			}
		}
	}

	total := dataset.Totals(current)
	prompt.WriteString(fmt.Sprintf("\nTOTALS (current period): %d impressions, %d clicks, %.2f spend, %d conversions\n",
		total.Impressions, total.Clicks, total.Cost, total.Conversions))

	prompt.WriteString(`
REQUIREMENTS:
- Write 3-4 short paragraphs of plain prose, no headers or bullet lists
- Lead with the most significant change versus the previous period
- Call out each vehicle that is beating or missing its benchmark targets, with the numbers
- Close with one concrete recommendation for the coming week
- Do not invent metrics that are not in the data above

Write the analysis:`)

	return prompt.String()
}

// writeStatsTable renders one line per vehicle with raw and derived metrics.
func writeStatsTable(prompt *strings.Builder, stats []core.VehicleStats) {
	if len(stats) == 0 {
		prompt.WriteString("(no data)\n")
		return
	}
	for _, s := range stats {
		prompt.WriteString(fmt.Sprintf("- %s: %d impressions, %d clicks (CTR %.2f%%), %.2f spend (CPM %.2f), %d conversions (CPA %.2f)\n",
			s.Vehicle, s.Impressions, s.Clicks, s.CTR(), s.Cost, s.CPM(), s.Conversions, s.CPA()))
	}
}

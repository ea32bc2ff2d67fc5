// Package dataset holds the pure aggregations the analysis prompt is built
// from: per-vehicle rollups, totals, and period slicing. No I/O happens here.
package dataset

import (
	"sort"
	"strings"
	"time"

	"adpulse/internal/core"
)

// Totals aggregates every record into one VehicleStats with an empty vehicle name.
func Totals(records []core.CampaignRecord) core.VehicleStats {
	var total core.VehicleStats
	for _, r := range records {
		total.Impressions += r.Impressions
		total.Clicks += r.Clicks
		total.Cost += r.Cost
		total.Conversions += r.Conversions
	}
	return total
}

// SumImpressions returns the impression sum, the aggregate measure the
// fingerprint is derived from.
func SumImpressions(records []core.CampaignRecord) int64 {
	var sum int64
	for _, r := range records {
		sum += r.Impressions
	}
	return sum
}

// AggregateByVehicle rolls records up per vehicle, sorted by impressions
// descending so the most significant vehicle leads the analysis.
func AggregateByVehicle(records []core.CampaignRecord) []core.VehicleStats {
	byVehicle := make(map[string]*core.VehicleStats)
	for _, r := range records {
		stats, ok := byVehicle[r.Vehicle]
		if !ok {
			stats = &core.VehicleStats{Vehicle: r.Vehicle}
			byVehicle[r.Vehicle] = stats
		}
		stats.Impressions += r.Impressions
		stats.Clicks += r.Clicks
		stats.Cost += r.Cost
		stats.Conversions += r.Conversions
	}

	result := make([]core.VehicleStats, 0, len(byVehicle))
	for _, stats := range byVehicle {
		result = append(result, *stats)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Impressions != result[j].Impressions {
			return result[i].Impressions > result[j].Impressions
		}
		return result[i].Vehicle < result[j].Vehicle
	})
	return result
}

// FilterByCampaign returns the records belonging to one campaign. An empty
// or "all" selection returns the input unchanged.
func FilterByCampaign(records []core.CampaignRecord, campaign string) []core.CampaignRecord {
	if campaign == "" || strings.EqualFold(campaign, "all") {
		return records
	}
	var filtered []core.CampaignRecord
	for _, r := range records {
		if r.Campaign == campaign {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// SplitPeriods partitions records into the current period (the periodDays
// calendar days ending at reference, inclusive) and everything older.
func SplitPeriods(records []core.CampaignRecord, reference time.Time, periodDays int) (current, historical []core.CampaignRecord) {
	end := core.Day(reference)
	start := end.AddDate(0, 0, -(periodDays - 1))

	for _, r := range records {
		day := core.Day(r.Date)
		switch {
		case day.After(end):
			// Rows dated in the future are ignored.
		case !day.Before(start):
			current = append(current, r)
		default:
			historical = append(historical, r)
		}
	}
	return current, historical
}

// PreviousPeriod extracts from historical the periodDays-day window
// immediately preceding currentStart.
func PreviousPeriod(historical []core.CampaignRecord, currentStart time.Time, periodDays int) []core.CampaignRecord {
	end := core.Day(currentStart)                 // exclusive
	start := end.AddDate(0, 0, -periodDays)       // inclusive

	var previous []core.CampaignRecord
	for _, r := range historical {
		day := core.Day(r.Date)
		if !day.Before(start) && day.Before(end) {
			previous = append(previous, r)
		}
	}
	return previous
}

// PeriodStart returns the first day of the current period given its last day.
func PeriodStart(reference time.Time, periodDays int) time.Time {
	return core.Day(reference).AddDate(0, 0, -(periodDays - 1))
}

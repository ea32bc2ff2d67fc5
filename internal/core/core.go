package core

import "time"

// CampaignRecord represents one advertising-campaign row pulled from the
// spreadsheet source. Dates are calendar days; monetary values are in the
// account currency.
type CampaignRecord struct {
	Date        time.Time `json:"date"`        // Calendar day the metrics belong to
	Vehicle     string    `json:"vehicle"`     // Advertising vehicle/channel (e.g., "Google", "Meta")
	Campaign    string    `json:"campaign"`    // Campaign name within the vehicle
	Impressions int64     `json:"impressions"` // Ad impressions for the day
	Clicks      int64     `json:"clicks"`      // Ad clicks for the day
	Cost        float64   `json:"cost"`        // Spend for the day
	Conversions int64     `json:"conversions"` // Recorded conversions for the day
}

// VehicleStats holds metrics aggregated over one vehicle (or over the whole
// dataset when Vehicle is empty).
type VehicleStats struct {
	Vehicle     string  `json:"vehicle"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Cost        float64 `json:"cost"`
	Conversions int64   `json:"conversions"`
}

// CTR returns the click-through rate as a percentage. Zero impressions yield zero.
func (v VehicleStats) CTR() float64 {
	if v.Impressions == 0 {
		return 0
	}
	return float64(v.Clicks) / float64(v.Impressions) * 100
}

// CPM returns the cost per thousand impressions. Zero impressions yield zero.
func (v VehicleStats) CPM() float64 {
	if v.Impressions == 0 {
		return 0
	}
	return v.Cost / float64(v.Impressions) * 1000
}

// CPA returns the cost per conversion. Zero conversions yield zero.
func (v VehicleStats) CPA() float64 {
	if v.Conversions == 0 {
		return 0
	}
	return v.Cost / float64(v.Conversions)
}

// Benchmark holds the target metrics a vehicle is compared against in the
// generated analysis. Benchmarks come from configuration, not from the store.
type Benchmark struct {
	CTR float64 `json:"ctr" mapstructure:"ctr"` // Target click-through rate, percent
	CPM float64 `json:"cpm" mapstructure:"cpm"` // Target cost per mille
	CPA float64 `json:"cpa" mapstructure:"cpa"` // Target cost per acquisition
}

// CacheEntry represents one persisted analysis, keyed by (day, fingerprint).
type CacheEntry struct {
	Day         time.Time `json:"day"`          // Calendar day the entry belongs to
	Fingerprint string    `json:"fingerprint"`  // Dataset fingerprint the text was generated for
	Text        string    `json:"text"`         // The generated (or manually saved) narrative
	GeneratedAt time.Time `json:"generated_at"` // When the text was generated or last overwritten
}

// AnalysisResult is what the generation coordinator returns to its caller.
type AnalysisResult struct {
	Text        string    `json:"text"`
	WasCached   bool      `json:"was_cached"`
	GeneratedAt time.Time `json:"generated_at"`
}

// HistoryItem is one row of the trailing-window history listing.
type HistoryItem struct {
	Day         time.Time `json:"day"`
	GeneratedAt time.Time `json:"generated_at"`
}

// AttemptOutcome classifies the result of one backend call.
type AttemptOutcome int

const (
	// OutcomeSuccess means the backend returned usable text.
	OutcomeSuccess AttemptOutcome = iota
	// OutcomeRetryable means the failure is transient (quota, availability,
	// timeout, empty response) and the next backend should be tried.
	OutcomeRetryable
	// OutcomeFatal means the failure indicates a caller-side defect (bad
	// request, bad credentials) that would repeat identically on any backend.
	OutcomeFatal
)

// String returns a stable label for logging.
func (o AttemptOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Attempt records one call to one backend.
type Attempt struct {
	BackendID string         `json:"backend_id"` // Model identifier the call went to
	Outcome   AttemptOutcome `json:"outcome"`
	Text      string         `json:"text,omitempty"`   // Generated text when Outcome is success
	Reason    string         `json:"reason,omitempty"` // Failure description otherwise
}

// Day truncates t to its calendar day in UTC. Store keys and history listings
// operate on day granularity.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayString formats a day the way it appears in store keys (YYYY-MM-DD).
func DayString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

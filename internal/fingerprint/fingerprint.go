// Package fingerprint derives the cache key that stands in for "this filtered
// dataset, right now". Two datasets with the same selection, row count and
// impression sum share a fingerprint even when individual rows differ; the
// collision is intentional and keeps regeneration (and backend spend) tied to
// material changes in the data rather than row-level churn.
package fingerprint

import (
	"fmt"
	"strings"
)

// AllCampaigns is the sentinel selection identifier meaning no campaign
// filter is applied.
const AllCampaigns = "all"

// Derive computes a deterministic fingerprint from the selected campaign,
// the number of rows in the filtered dataset, and the impression sum.
// An empty selectionID is treated as AllCampaigns. The result is safe to
// embed in a colon-delimited store key.
func Derive(selectionID string, rowCount int, impressions int64) string {
	if selectionID == "" {
		selectionID = AllCampaigns
	}
	return fmt.Sprintf("%s-%d-%d", sanitize(selectionID), rowCount, impressions)
}

// sanitize replaces characters that would collide with the store's key
// delimiter or make the fingerprint awkward in URLs.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '/', ' ', '\t', '\n':
			return '-'
		}
		return r
	}, s)
}

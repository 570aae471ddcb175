package output

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/Aman-CERP/resourcesearch/internal/errors"
	"github.com/Aman-CERP/resourcesearch/internal/telemetry"
)

// maxStatsTerms caps the top terms printed in text mode.
const maxStatsTerms = 5

var bucketOrder = []telemetry.LatencyBucket{
	telemetry.BucketP1,
	telemetry.BucketP10,
	telemetry.BucketP50,
	telemetry.BucketP250,
	telemetry.BucketP1000,
}

// Stats writes a search metrics snapshot.
func (w *Writer) Stats(snap telemetry.Snapshot, format Format) error {
	if format == FormatJSON {
		enc := json.NewEncoder(w.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return errors.InternalError("encode stats", err)
		}
		return nil
	}

	w.Statusf("📊", "%d %s since %s", snap.TotalSearches,
		plural(int(snap.TotalSearches), "search", "searches"),
		snap.Since.Format("15:04:05"))
	if snap.TotalSearches == 0 {
		return nil
	}

	w.Statusf("", "status: %s", countsLine(snap.StatusCounts))
	w.Statusf("", "resources: %s", countsLine(snap.ResourceCounts))

	var latency []string
	for _, b := range bucketOrder {
		if n := snap.LatencyDistribution[b]; n > 0 {
			latency = append(latency, pair(string(b), n))
		}
	}
	if len(latency) > 0 {
		w.Statusf("", "latency: %s", strings.Join(latency, " "))
	}

	if snap.ZeroResultCount > 0 {
		w.Statusf("", "zero results: %d (%.0f%%)", snap.ZeroResultCount, snap.ZeroResultPercentage())
	}

	if len(snap.TopTerms) > 0 {
		terms := snap.TopTerms
		if len(terms) > maxStatsTerms {
			terms = terms[:maxStatsTerms]
		}
		parts := make([]string, len(terms))
		for i, tc := range terms {
			parts[i] = pair(tc.Term, tc.Count)
		}
		w.Statusf("", "top terms: %s", strings.Join(parts, " "))
	}
	return nil
}

// countsLine renders counts as "key=n" pairs in key order.
func countsLine(counts map[string]int64) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = pair(k, counts[k])
	}
	return strings.Join(parts, " ")
}

func pair(key string, n int64) string {
	return key + "=" + strconv.FormatInt(n, 10)
}

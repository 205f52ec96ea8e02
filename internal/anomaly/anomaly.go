// Package anomaly flags year-over-year value jumps implausible enough to be
// parse errors rather than genuine regulatory changes.
package anomaly

import (
	"fmt"
	"math"
	"sort"

	"github.com/huntwise/regwatch/internal/regdata"
)

// DefaultThreshold is the absolute delta beyond which an item is
// quarantined. Point requirements ordinarily move one unit per year.
const DefaultThreshold = 3.0

// Check joins old and new series by item id and quarantines any item whose
// |delta| exceeds the threshold. The check is symmetric: drops and jumps are
// equally suspicious, both being common symptoms of scrambled digits.
// Quarantined items are held for human review, never auto-applied or
// auto-discarded. Items present in only one series have no baseline and are
// passed over.
func Check(oldSeries, newSeries map[string]float64, threshold float64) []regdata.AnomalyResult {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	ids := make([]string, 0, len(newSeries))
	for id := range newSeries {
		if _, ok := oldSeries[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	results := make([]regdata.AnomalyResult, 0, len(ids))
	for _, id := range ids {
		oldVal := oldSeries[id]
		newVal := newSeries[id]
		delta := newVal - oldVal
		r := regdata.AnomalyResult{ItemID: id, Delta: delta}
		if math.Abs(delta) > threshold {
			r.Quarantined = true
			r.Reason = fmt.Sprintf(
				"value moved from %g to %g (delta %+g, threshold %g); held for human review",
				oldVal, newVal, delta, threshold,
			)
		}
		results = append(results, r)
	}
	return results
}

// Quarantined filters a result set down to the held items.
func Quarantined(results []regdata.AnomalyResult) []regdata.AnomalyResult {
	var out []regdata.AnomalyResult
	for _, r := range results {
		if r.Quarantined {
			out = append(out, r)
		}
	}
	return out
}

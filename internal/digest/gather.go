package digest

import (
	"context"
	"strings"
	"time"

	"github.com/huntwise/regwatch/internal/backoff"
	"github.com/huntwise/regwatch/internal/pipeline"
	"github.com/huntwise/regwatch/internal/regdata"
)

// Gather assembles the digest inputs for the trailing 7 days from the alert
// log and the persisted backoff states, then compiles the report.
// Frequency changes are cycle-over-cycle schedule diffs owned by the
// caller, so they are passed in.
func Gather(
	ctx context.Context,
	alerts regdata.AlertLog,
	backoffs regdata.BackoffStore,
	frequencyChanges []FrequencyChange,
	now time.Time,
) (WeeklyDigest, error) {
	cutoff := now.Add(-7 * 24 * time.Hour)
	logged, err := alerts.Since(ctx, cutoff)
	if err != nil {
		return WeeklyDigest{}, err
	}

	var (
		updates    []Update
		anomalies  []PendingAnomaly
		selfHealed []Repair
	)
	for _, a := range logged {
		switch a.Code {
		case pipeline.CodeDataVerified:
			updates = append(updates, Update{
				SourceID:   a.SourceID,
				Category:   a.Category,
				Field:      "snapshot",
				NewValue:   a.Message,
				VerifiedAt: a.RaisedAt,
			})
		case pipeline.CodeAnomalyQuarantined:
			anomalies = append(anomalies, PendingAnomaly{
				SourceID: a.SourceID,
				ItemID:   anomalyItemID(a.Message),
				Reason:   a.Message,
			})
		case pipeline.CodeLKGFallback:
			selfHealed = append(selfHealed, Repair{
				SourceID:    a.SourceID,
				Field:       "snapshot",
				Description: a.Message,
			})
		}
	}

	failures, err := gatherFailures(ctx, backoffs)
	if err != nil {
		return WeeklyDigest{}, err
	}

	return Compile(updates, anomalies, frequencyChanges, failures, selfHealed, now), nil
}

func gatherFailures(ctx context.Context, backoffs regdata.BackoffStore) ([]Failure, error) {
	states, err := backoffs.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []Failure
	for _, s := range states {
		if s.Failures == 0 {
			continue
		}
		status := FailureRetrying
		if s.Failures >= backoff.PauseThreshold {
			status = FailurePaused
		}
		out = append(out, Failure{
			SourceID:  s.SourceID,
			Category:  s.Category,
			Status:    status,
			Failures:  s.Failures,
			LastError: s.LastError,
		})
	}
	return out, nil
}

// anomalyItemID recovers the item id from the "item: reason" message form
// the pipeline writes to the alert log.
func anomalyItemID(message string) string {
	if i := strings.Index(message, ":"); i > 0 {
		return strings.TrimSpace(message[:i])
	}
	return ""
}

// Package digest compiles a period's pipeline outcomes into the weekly
// health report posted to the operations channel.
package digest

import (
	"fmt"
	"time"

	"github.com/huntwise/regwatch/internal/regdata"
)

// Health score deductions.
const (
	pausedCrawlerPenalty  = 15
	pendingAnomalyPenalty = 10
)

// Update is one verified data refresh that reached users this period.
type Update struct {
	SourceID   string           `json:"source_id"`
	Category   regdata.Category `json:"category"`
	Field      string           `json:"field"`
	NewValue   string           `json:"new_value"`
	VerifiedAt time.Time        `json:"verified_at"`
}

// PendingAnomaly is a quarantined item still awaiting human approval.
type PendingAnomaly struct {
	SourceID string  `json:"source_id"`
	ItemID   string  `json:"item_id"`
	Delta    float64 `json:"delta"`
	Reason   string  `json:"reason"`
}

// FrequencyChange records a scheduling cadence shift for a pair.
type FrequencyChange struct {
	SourceID string            `json:"source_id"`
	Category regdata.Category  `json:"category"`
	From     regdata.Frequency `json:"from"`
	To       regdata.Frequency `json:"to"`
	Reason   string            `json:"reason"`
}

// Failure statuses carried in the digest.
const (
	FailureRetrying = "retrying"
	FailurePaused   = "paused"
)

// Failure is one crawler currently in backoff or paused.
type Failure struct {
	SourceID  string           `json:"source_id"`
	Category  regdata.Category `json:"category"`
	Status    string           `json:"status"`
	Failures  int              `json:"failures"`
	LastError string           `json:"last_error,omitempty"`
}

// Repair is a self-healed or low-confidence fix awaiting approval.
type Repair struct {
	SourceID    string `json:"source_id"`
	Field       string `json:"field"`
	Description string `json:"description"`
}

// WeeklyDigest is the full health report for one 7-day period.
type WeeklyDigest struct {
	Updates          []Update          `json:"updates"`
	Anomalies        []PendingAnomaly  `json:"anomalies"`
	FrequencyChanges []FrequencyChange `json:"frequency_changes"`
	Failures         []Failure         `json:"failures"`
	SelfHealed       []Repair          `json:"self_healed"`
	HealthScore      int               `json:"health_score"`
	Summary          string            `json:"summary"`
	PeriodStart      time.Time         `json:"period_start"`
	PeriodEnd        time.Time         `json:"period_end"`
}

// Compile bundles the period's outcome lists and scores overall health: 100
// minus 15 per paused crawler and 10 per anomaly still awaiting approval,
// clamped to [0,100]. The period is exactly the 7 days ending at now.
func Compile(
	updates []Update,
	anomalies []PendingAnomaly,
	frequencyChanges []FrequencyChange,
	failures []Failure,
	selfHealed []Repair,
	now time.Time,
) WeeklyDigest {
	score := 100
	for _, f := range failures {
		if f.Status == FailurePaused {
			score -= pausedCrawlerPenalty
		}
	}
	score -= pendingAnomalyPenalty * len(anomalies)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	summary := fmt.Sprintf(
		"%d verified updates, %d quarantined for review, %d self-healed repairs pending approval; health %d/100",
		len(updates), len(anomalies), len(selfHealed), score,
	)

	return WeeklyDigest{
		Updates:          updates,
		Anomalies:        anomalies,
		FrequencyChanges: frequencyChanges,
		Failures:         failures,
		SelfHealed:       selfHealed,
		HealthScore:      score,
		Summary:          summary,
		PeriodStart:      now.Add(-7 * 24 * time.Hour),
		PeriodEnd:        now,
	}
}

package confidence

import (
	"fmt"
	"time"
)

// Level classifies elapsed time since verification.
type Level string

// Freshness levels.
const (
	LevelFresh    Level = "fresh"
	LevelAging    Level = "aging"
	LevelStale    Level = "stale"
	LevelCritical Level = "critical"
)

// Method records how a fact was last verified, for audit.
type Method string

// Verification methods.
const (
	MethodCrawl       Method = "crawl"
	MethodManual      Method = "manual"
	MethodLKGFallback Method = "lkg_fallback"
)

// FreshnessPolicy sets the day boundaries between levels. The aging/stale
// boundary in particular varies by deployment, so it is configuration, not
// a constant.
type FreshnessPolicy struct {
	AgingAfterDays    int `mapstructure:"aging_after_days"`
	StaleAfterDays    int `mapstructure:"stale_after_days"`
	CriticalAfterDays int `mapstructure:"critical_after_days"`
}

// DefaultFreshnessPolicy: same-day is fresh, a week is stale, a month is
// critical.
func DefaultFreshnessPolicy() FreshnessPolicy {
	return FreshnessPolicy{
		AgingAfterDays:    1,
		StaleAfterDays:    7,
		CriticalAfterDays: 30,
	}
}

// Stamp is the audit record attached to one verified field.
type Stamp struct {
	SourceID   string    `json:"source_id"`
	Field      string    `json:"field"`
	VerifiedAt time.Time `json:"verified_at"`
	URL        string    `json:"url"`
	Method     Method    `json:"method"`
	Level      Level     `json:"level"`
	Display    string    `json:"display"`
}

// ComputeFreshnessStamp classifies the elapsed time since verifiedAt and
// renders the human label. Now is injected for deterministic tests.
func ComputeFreshnessStamp(
	sourceID, field string,
	verifiedAt time.Time,
	url string,
	method Method,
	now time.Time,
	policy FreshnessPolicy,
) Stamp {
	elapsed := now.Sub(verifiedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	days := int(elapsed.Hours() / 24)

	stamp := Stamp{
		SourceID:   sourceID,
		Field:      field,
		VerifiedAt: verifiedAt,
		URL:        url,
		Method:     method,
	}

	switch {
	case days < policy.AgingAfterDays:
		stamp.Level = LevelFresh
		if elapsed < time.Minute {
			stamp.Display = "just now"
		} else {
			stamp.Display = fmt.Sprintf("%d hours ago", int(elapsed.Hours()))
		}
	case days < policy.StaleAfterDays:
		stamp.Level = LevelAging
		stamp.Display = fmt.Sprintf("%d days ago", days)
	case days < policy.CriticalAfterDays:
		stamp.Level = LevelStale
		stamp.Display = fmt.Sprintf("%d days ago", days)
	default:
		stamp.Level = LevelCritical
		stamp.Display = fmt.Sprintf("STALE: verified %d days ago", days)
	}
	return stamp
}

// Package confidence wraps published facts with provenance, trust tier, and
// staleness so downstream surfaces can never present a fact as fresher or
// more trustworthy than it is.
package confidence

import (
	"time"
)

// Tier ranks how much trust a fact deserves. The numeric order is the
// comparison: lower rank always wins when facts are combined.
type Tier int

// Tiers from least to most trusted.
const (
	TierStale Tier = iota
	TierUserReported
	TierEstimated
	TierVerified
)

func (t Tier) String() string {
	switch t {
	case TierStale:
		return "stale"
	case TierUserReported:
		return "user_reported"
	case TierEstimated:
		return "estimated"
	case TierVerified:
		return "verified"
	default:
		return "unknown"
	}
}

// Provenance records where and when a fact was confirmed.
type Provenance struct {
	URL        string    `json:"url,omitempty"`
	VerifiedAt time.Time `json:"verified_at,omitzero"`
	Label      string    `json:"label,omitempty"`
}

// Datum wraps a value with its trust metadata. The presentation layer must
// check Confidence and IsStale before rendering the value.
type Datum[T any] struct {
	Value         T          `json:"value"`
	Provenance    Provenance `json:"provenance"`
	Confidence    Tier       `json:"confidence"`
	StalenessDays *int       `json:"staleness_days,omitempty"`
	IsStale       bool       `json:"is_stale"`
	Basis         string     `json:"basis,omitempty"`
	ReportedAt    time.Time  `json:"reported_at,omitzero"`
}

// EffectiveTier is the tier the datum contributes when combined: a stale
// verified fact counts as stale, full stop.
func (d Datum[T]) EffectiveTier() Tier {
	if d.IsStale {
		return TierStale
	}
	return d.Confidence
}

// DefaultStaleAfterDays applies when a category has no override.
const DefaultStaleAfterDays = 10

// StalenessPolicy holds the per-category staleness thresholds in days.
type StalenessPolicy struct {
	DefaultDays  int            `mapstructure:"default_days"`
	CategoryDays map[string]int `mapstructure:"category_days"`
}

// DefaultStalenessPolicy carries the compiled-in category overrides.
func DefaultStalenessPolicy() StalenessPolicy {
	return StalenessPolicy{
		DefaultDays: DefaultStaleAfterDays,
		CategoryDays: map[string]int{
			"flight_prices": 1,
			"macro_indices": 45,
			"deadlines":     30,
		},
	}
}

// DaysFor returns the staleness threshold for a category.
func (p StalenessPolicy) DaysFor(category string) int {
	if d, ok := p.CategoryDays[category]; ok {
		return d
	}
	if p.DefaultDays > 0 {
		return p.DefaultDays
	}
	return DefaultStaleAfterDays
}

// Verified builds a datum confirmed against its authoritative source.
// Staleness is days elapsed between verifiedAt and now, compared against
// the threshold. Now is injected; this function never reads a clock.
func Verified[T any](value T, url string, verifiedAt time.Time, label string, now time.Time, staleAfterDays int) Datum[T] {
	days := int(now.Sub(verifiedAt).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return Datum[T]{
		Value: value,
		Provenance: Provenance{
			URL:        url,
			VerifiedAt: verifiedAt,
			Label:      label,
		},
		Confidence:    TierVerified,
		StalenessDays: &days,
		IsStale:       days > staleAfterDays,
	}
}

// Estimated builds a datum derived from a model or heuristic. It carries a
// textual basis instead of a URL and never goes stale; it was never fresh
// from a timestamped source to begin with.
func Estimated[T any](value T, basis string) Datum[T] {
	return Datum[T]{
		Value:      value,
		Confidence: TierEstimated,
		Basis:      basis,
	}
}

// UserReported builds a datum from a self-reported fact. It never goes
// stale; such facts are evaluated on trust, not recency.
func UserReported[T any](value T, reportedAt time.Time) Datum[T] {
	return Datum[T]{
		Value:      value,
		Confidence: TierUserReported,
		ReportedAt: reportedAt,
	}
}

// Derive returns the lowest tier among the inputs. A composite figure can
// never claim more trust than its weakest ingredient; a stale input
// dominates no matter how many verified inputs surround it.
func Derive(tiers ...Tier) Tier {
	min := TierVerified
	for _, t := range tiers {
		if t < min {
			min = t
		}
	}
	return min
}

package confidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTierOrder(t *testing.T) {
	t.Parallel()

	require.True(t, TierStale < TierUserReported)
	require.True(t, TierUserReported < TierEstimated)
	require.True(t, TierEstimated < TierVerified)
}

func TestVerifiedStaleness(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	recent := Verified(828.0, "https://cpw.state.co.us/fees", now.AddDate(0, 0, -6), "CPW fee schedule", now, DefaultStaleAfterDays)
	require.False(t, recent.IsStale, "6 days against a 10-day threshold is not stale")
	require.Equal(t, 6, *recent.StalenessDays)
	require.Equal(t, TierVerified, recent.Confidence)
	require.Equal(t, TierVerified, recent.EffectiveTier())

	old := Verified(828.0, "https://cpw.state.co.us/fees", now.AddDate(0, 0, -15), "CPW fee schedule", now, DefaultStaleAfterDays)
	require.True(t, old.IsStale, "15 days against a 10-day threshold is stale")
	require.Equal(t, 15, *old.StalenessDays)
	require.Equal(t, TierStale, old.EffectiveTier())
}

func TestEstimatedAndUserReportedNeverGoStale(t *testing.T) {
	t.Parallel()

	est := Estimated(450.0, "median of 2023-2025 published fees")
	require.False(t, est.IsStale)
	require.Nil(t, est.StalenessDays)
	require.Equal(t, TierEstimated, est.EffectiveTier())

	rep := UserReported(500.0, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	require.False(t, rep.IsStale)
	require.Equal(t, TierUserReported, rep.EffectiveTier())
}

func TestDeriveIsMinimumAndCommutative(t *testing.T) {
	t.Parallel()

	require.Equal(t, TierUserReported, Derive(TierVerified, TierUserReported, TierEstimated))
	require.Equal(t, TierUserReported, Derive(TierEstimated, TierUserReported, TierVerified))
	require.Equal(t, TierVerified, Derive(TierVerified, TierVerified))
	require.Equal(t, TierVerified, Derive(), "empty input derives the identity of min")
}

func TestDeriveStaleIsAbsolute(t *testing.T) {
	t.Parallel()

	tiers := []Tier{TierVerified, TierVerified, TierVerified, TierStale, TierVerified}
	require.Equal(t, TierStale, Derive(tiers...))
}

func TestStalenessPolicyCategoryOverrides(t *testing.T) {
	t.Parallel()

	p := DefaultStalenessPolicy()
	require.Equal(t, 1, p.DaysFor("flight_prices"))
	require.Equal(t, 45, p.DaysFor("macro_indices"))
	require.Equal(t, 30, p.DaysFor("deadlines"))
	require.Equal(t, 10, p.DaysFor("fees"))
}

func TestComputeFreshnessStampLevels(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	policy := DefaultFreshnessPolicy()

	cases := []struct {
		name        string
		verifiedAt  time.Time
		wantLevel   Level
		wantDisplay string
	}{
		{"seconds ago", now.Add(-30 * time.Second), LevelFresh, "just now"},
		{"same day", now.Add(-5 * time.Hour), LevelFresh, "5 hours ago"},
		{"a few days", now.AddDate(0, 0, -3), LevelAging, "3 days ago"},
		{"over a week", now.AddDate(0, 0, -8), LevelStale, "8 days ago"},
		{"over a month", now.AddDate(0, 0, -34), LevelCritical, "STALE: verified 34 days ago"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			stamp := ComputeFreshnessStamp("CO", "tag_fees.elk", tc.verifiedAt, "https://cpw.state.co.us/fees", MethodCrawl, now, policy)
			require.Equal(t, tc.wantLevel, stamp.Level)
			require.Equal(t, tc.wantDisplay, stamp.Display)
			require.Equal(t, MethodCrawl, stamp.Method)
		})
	}
}

func TestComputeFreshnessStampRecordsMethod(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0).UTC()
	stamp := ComputeFreshnessStamp("WY", "deadlines.elk", now, "", MethodLKGFallback, now, DefaultFreshnessPolicy())
	require.Equal(t, MethodLKGFallback, stamp.Method)
	require.Equal(t, LevelFresh, stamp.Level)
}

package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDelayDoublesAndCaps(t *testing.T) {
	t.Parallel()

	cases := []struct {
		failures int
		want     time.Duration
	}{
		{1, 5 * time.Minute},
		{2, 10 * time.Minute},
		{3, 20 * time.Minute},
		{4, 40 * time.Minute},
		{5, 80 * time.Minute},
		{6, 160 * time.Minute},
		{7, 320 * time.Minute},
		{8, 640 * time.Minute},
		{9, 1280 * time.Minute},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Delay(tc.failures), "failures=%d", tc.failures)
	}
}

func TestComputeRetryingUnderThreshold(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for n := 1; n <= 9; n++ {
		d := Compute("CO", n, now)
		retrying, ok := d.(Retrying)
		require.True(t, ok, "failures=%d should still retry", n)
		require.Equal(t, now.Add(Delay(n)), retrying.NextRetryAt)
	}
}

func TestComputeThirdFailureExample(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := Compute("CO", 3, now)

	retrying, ok := d.(Retrying)
	require.True(t, ok)
	require.Equal(t, 20*time.Minute, retrying.Delay)
	require.Equal(t, time.Date(2026, 3, 1, 12, 20, 0, 0, time.UTC), retrying.NextRetryAt)
}

func TestComputePausesAtThreshold(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0).UTC()
	for _, n := range []int{10, 11, 50} {
		d := Compute("WY", n, now)
		paused, ok := d.(Paused)
		require.True(t, ok, "failures=%d should pause", n)
		require.Contains(t, paused.Reason, "manual investigation")
		require.Equal(t, n, paused.Failures)
	}
}

func TestDelayNeverExceedsCap(t *testing.T) {
	t.Parallel()

	for n := 1; n < 100; n++ {
		require.LessOrEqual(t, Delay(n), MaxDelay)
	}
	require.Equal(t, time.Duration(0), Delay(0))
	require.Equal(t, time.Duration(0), Delay(-3))
}

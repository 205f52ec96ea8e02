package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/huntwise/regwatch/internal/regdata"
)

func intPtr(n int) *int { return &n }

func TestOptimalDeadlineTiers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		days     *int
		open     bool
		wantFreq regdata.Frequency
		wantPrio int
	}{
		{"imminent", intPtr(2), true, regdata.FrequencySixHours, 1},
		{"deadline day", intPtr(0), true, regdata.FrequencySixHours, 1},
		{"within week", intPtr(7), true, regdata.FrequencyTwiceWeek, 2},
		{"within month", intPtr(30), true, regdata.FrequencyDaily, 2},
		{"far out", intPtr(90), true, regdata.FrequencyWeekly, 4},
		{"window closed", intPtr(5), false, regdata.FrequencyWeekly, 5},
		{"no deadline data", nil, true, regdata.FrequencyWeekly, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctx := regdata.SourceContext{
				SourceID:          "CO",
				DaysUntilDeadline: tc.days,
				WindowOpen:        tc.open,
			}
			rec := Optimal(ctx, regdata.CategoryDeadlines)
			require.Equal(t, tc.wantFreq, rec.Frequency)
			require.Equal(t, tc.wantPrio, rec.Priority)
			require.NotEmpty(t, rec.Reason)
		})
	}
}

func TestOptimalMissingDeadlineDataSaysSo(t *testing.T) {
	t.Parallel()

	rec := Optimal(regdata.SourceContext{SourceID: "NM", WindowOpen: true}, regdata.CategoryDeadlines)
	require.Contains(t, rec.Reason, "no deadline data")
}

func TestOptimalImminentDeadlineMentionsServerLoad(t *testing.T) {
	t.Parallel()

	ctx := regdata.SourceContext{SourceID: "CO", DaysUntilDeadline: intPtr(1), WindowOpen: true}
	rec := Optimal(ctx, regdata.CategoryDeadlines)
	require.Contains(t, rec.Reason, "server load")
}

func TestOptimalFeesElevatedNearDeadline(t *testing.T) {
	t.Parallel()

	quiet := regdata.SourceContext{SourceID: "MT"}
	rec := Optimal(quiet, regdata.CategoryFees)
	require.Equal(t, regdata.FrequencyWeekly, rec.Frequency)

	near := regdata.SourceContext{SourceID: "MT", DaysUntilDeadline: intPtr(14), WindowOpen: true}
	rec = Optimal(near, regdata.CategoryFees)
	require.Equal(t, regdata.FrequencyDaily, rec.Frequency)
	require.Contains(t, rec.Reason, "elevated")

	rec = Optimal(near, regdata.CategoryRegulations)
	require.Equal(t, regdata.FrequencyDaily, rec.Frequency)
}

func TestOptimalDrawOddsAreEventDriven(t *testing.T) {
	t.Parallel()

	ctx := regdata.SourceContext{SourceID: "WY", DaysUntilDeadline: intPtr(1), WindowOpen: true}
	rec := Optimal(ctx, regdata.CategoryDrawOdds)
	require.Equal(t, regdata.FrequencyOnTrigger, rec.Frequency)
	require.Equal(t, 5, rec.Priority)
}

func TestBuildIsTotalAndSorted(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	contexts := []regdata.SourceContext{
		{SourceID: "CO", DaysUntilDeadline: intPtr(1), WindowOpen: true},
		{SourceID: "WY", DaysUntilDeadline: intPtr(60), WindowOpen: true},
		{SourceID: "NM"},
	}

	plan := Build(contexts, now)

	require.Len(t, plan.Tasks, len(contexts)*len(regdata.AllCategories()))

	// Every pair appears exactly once.
	seen := make(map[string]int)
	for _, task := range plan.Tasks {
		seen[task.SourceID+"/"+string(task.Category)]++
	}
	for key, n := range seen {
		require.Equal(t, 1, n, "pair %s", key)
	}

	// More urgent tasks always sort first.
	for i := 1; i < len(plan.Tasks); i++ {
		require.LessOrEqual(t, plan.Tasks[i-1].Priority, plan.Tasks[i].Priority)
	}
	require.Equal(t, 1, plan.Tasks[0].Priority)
	require.Equal(t, regdata.FrequencySixHours, plan.Tasks[0].Frequency)

	total := 0
	for _, n := range plan.PriorityCounts {
		total += n
	}
	require.Equal(t, len(plan.Tasks), total)

	// Earliest due task is the six-hour one.
	require.Equal(t, now.Add(6*time.Hour), plan.NextCrawl)
}

func TestBuildOnTriggerTasksHaveNoDueTime(t *testing.T) {
	t.Parallel()

	plan := Build([]regdata.SourceContext{{SourceID: "AZ"}}, time.Unix(1700000000, 0).UTC())
	for _, task := range plan.Tasks {
		if task.Frequency == regdata.FrequencyOnTrigger {
			require.True(t, task.NextDue.IsZero())
		} else {
			require.False(t, task.NextDue.IsZero())
		}
	}
}

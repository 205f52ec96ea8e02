// Package schedule decides how urgently each (source, category) pair is
// re-checked and assembles the global crawl plan.
package schedule

import (
	"fmt"

	"github.com/huntwise/regwatch/internal/regdata"
)

// Recommendation is the output of the frequency policy for one pair.
type Recommendation struct {
	Frequency regdata.Frequency
	Priority  int
	Reason    string
}

// Optimal computes the re-check cadence for one (context, category) pair.
// Pure function of its inputs; no hidden state.
func Optimal(ctx regdata.SourceContext, category regdata.Category) Recommendation {
	switch category {
	case regdata.CategoryDeadlines:
		return deadlineCadence(ctx)
	case regdata.CategoryFees, regdata.CategoryRegulations:
		return legislativeCadence(ctx, category)
	case regdata.CategoryDrawOdds:
		return Recommendation{
			Frequency: regdata.FrequencyOnTrigger,
			Priority:  5,
			Reason:    "draw odds change once per year on result publication; re-check is event-driven, not polled",
		}
	default:
		return Recommendation{
			Frequency: regdata.FrequencyWeekly,
			Priority:  5,
			Reason:    fmt.Sprintf("unknown category %q; conservative weekly default", category),
		}
	}
}

func deadlineCadence(ctx regdata.SourceContext) Recommendation {
	if ctx.DaysUntilDeadline == nil {
		// Never default silently: the reason must say the data is missing.
		return Recommendation{
			Frequency: regdata.FrequencyWeekly,
			Priority:  4,
			Reason:    "no deadline data available for this source; conservative weekly cadence until the calendar is populated",
		}
	}
	days := *ctx.DaysUntilDeadline
	if !ctx.WindowOpen {
		return Recommendation{
			Frequency: regdata.FrequencyWeekly,
			Priority:  5,
			Reason:    "application window is closed; weekly cadence until it reopens",
		}
	}
	switch {
	case days <= 2:
		return Recommendation{
			Frequency: regdata.FrequencySixHours,
			Priority:  1,
			Reason:    fmt.Sprintf("critical: deadline in %d day(s), server load expected on deadline day", days),
		}
	case days <= 7:
		return Recommendation{
			Frequency: regdata.FrequencyTwiceWeek,
			Priority:  2,
			Reason:    fmt.Sprintf("deadline in %d days", days),
		}
	case days <= 30:
		return Recommendation{
			Frequency: regdata.FrequencyDaily,
			Priority:  2,
			Reason:    fmt.Sprintf("deadline in %d days", days),
		}
	default:
		return Recommendation{
			Frequency: regdata.FrequencyWeekly,
			Priority:  4,
			Reason:    fmt.Sprintf("deadline %d days out", days),
		}
	}
}

func legislativeCadence(ctx regdata.SourceContext, category regdata.Category) Recommendation {
	if ctx.DaysUntilDeadline != nil && *ctx.DaysUntilDeadline <= 30 {
		return Recommendation{
			Frequency: regdata.FrequencyDaily,
			Priority:  3,
			Reason: fmt.Sprintf(
				"%s elevated to daily: application deadline in %d days",
				category, *ctx.DaysUntilDeadline,
			),
		}
	}
	return Recommendation{
		Frequency: regdata.FrequencyWeekly,
		Priority:  4,
		Reason:    string(category) + " follow the legislative-change monitoring cadence",
	}
}

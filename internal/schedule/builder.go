package schedule

import (
	"sort"
	"time"

	"github.com/huntwise/regwatch/internal/regdata"
)

// Build turns every (context, category) pair into exactly one CrawlTask and
// assembles the global plan: tasks sorted by priority then interval, a
// priority histogram, and the earliest next-due time. The function is total;
// no pair is ever skipped.
func Build(contexts []regdata.SourceContext, now time.Time) regdata.Schedule {
	tasks := make([]regdata.CrawlTask, 0, len(contexts)*len(regdata.AllCategories()))
	counts := make(map[int]int)

	for _, ctx := range contexts {
		for _, category := range regdata.AllCategories() {
			rec := Optimal(ctx, category)
			task := regdata.CrawlTask{
				SourceID:  ctx.SourceID,
				Category:  category,
				Frequency: rec.Frequency,
				Priority:  rec.Priority,
				Reason:    rec.Reason,
			}
			if iv := rec.Frequency.Interval(); iv > 0 {
				task.NextDue = now.Add(iv)
			}
			tasks = append(tasks, task)
			counts[rec.Priority]++
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Priority != tasks[j].Priority {
			return tasks[i].Priority < tasks[j].Priority
		}
		return tasks[i].Frequency.SortInterval() < tasks[j].Frequency.SortInterval()
	})

	var next time.Time
	for _, task := range tasks {
		if task.NextDue.IsZero() {
			continue
		}
		if next.IsZero() || task.NextDue.Before(next) {
			next = task.NextDue
		}
	}

	return regdata.Schedule{
		Tasks:          tasks,
		PriorityCounts: counts,
		NextCrawl:      next,
	}
}

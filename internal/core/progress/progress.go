// Package progress turns goal checkbox state into the 0..1 completion ratios
// behind heatmaps, charts and streaks. All functions are pure: the caller
// supplies goal definitions, checked state and the date, and gets a number
// back. Ratios are always defined; an empty goal set yields 0, never NaN.
package progress

import (
	"sort"
	"time"

	"github.com/kaizen-app/kaizen-sync-engine/internal/core/schedule"
)

// Goal pairs a daily goal's name with its optional schedule.
type Goal struct {
	Name     string
	Schedule *schedule.Schedule
}

// DailyCompletion computes the completion ratio for one day. Goals whose
// schedule is inactive on the date are excluded from both the numerator and
// the denominator, so an off-day goal can neither help nor hurt the ratio.
func DailyCompletion(goals []Goal, checked map[string]bool, year int, month time.Month, day int) float64 {
	considered := 0
	done := 0

	for _, g := range goals {
		if !g.Schedule.ActiveOn(year, month, day) {
			continue
		}
		considered++
		if checked[g.Name] {
			done++
		}
	}

	if considered == 0 {
		return 0
	}
	return float64(done) / float64(considered)
}

// MonthlyCompletion computes the unweighted ratio of checked monthly goals.
// Monthly goals carry no schedule, every key counts.
func MonthlyCompletion(checked map[string]bool) float64 {
	if len(checked) == 0 {
		return 0
	}

	done := 0
	for _, ok := range checked {
		if ok {
			done++
		}
	}
	return float64(done) / float64(len(checked))
}

// Streaks measures consecutive runs of perfect days. dates holds the
// YYYY-MM-DD keys of days with a 1.0 completion ratio, in any order and
// possibly with duplicates; today anchors the current streak, which stays
// alive only while the most recent perfect day is today or yesterday.
// Unparseable keys are skipped.
func Streaks(dates []string, today string) (current, longest int) {
	seen := make(map[string]bool, len(dates))
	var days []time.Time

	for _, key := range dates {
		if seen[key] {
			continue
		}
		year, month, day, ok := schedule.ParseDateKey(key)
		if !ok {
			continue
		}
		seen[key] = true
		days = append(days, time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
	}
	if len(days) == 0 {
		return 0, 0
	}

	sort.Slice(days, func(i, j int) bool {
		return days[i].After(days[j])
	})

	if year, month, day, ok := schedule.ParseDateKey(today); ok {
		now := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		if now.Sub(days[0]) <= 24*time.Hour {
			current = 1
			for i := 0; i < len(days)-1; i++ {
				if days[i].Sub(days[i+1]) == 24*time.Hour {
					current++
				} else {
					break
				}
			}
		}
	}

	run := 1
	for i := 0; i < len(days)-1; i++ {
		if days[i].Sub(days[i+1]) == 24*time.Hour {
			run++
		} else {
			if run > longest {
				longest = run
			}
			run = 1
		}
	}
	if run > longest {
		longest = run
	}

	return current, longest
}

// Package streak derives the activity streak from raw history. The streak
// is always recomputed from the full set of qualifying days, never
// incremented in place, so it cannot drift.
package streak

import (
	"time"
)

// Calculator computes streaks from calendar days. Pure, no I/O.
type Calculator struct{}

// NewCalculator creates a new Calculator
func NewCalculator() *Calculator {
	return &Calculator{}
}

// DayOf truncates a timestamp to its UTC calendar day
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CurrentStreak returns the number of consecutive calendar days, ending
// today or yesterday, that each carry at least one qualifying event. A run
// that ended before yesterday counts as zero.
func (c *Calculator) CurrentStreak(days []time.Time, today time.Time) int {
	set := daySet(days)
	if len(set) == 0 {
		return 0
	}

	cursor := DayOf(today)
	if _, ok := set[cursor]; !ok {
		// forgiveness: a streak that ended yesterday is still alive today
		cursor = cursor.AddDate(0, 0, -1)
		if _, ok := set[cursor]; !ok {
			return 0
		}
	}

	streak := 1
	for {
		cursor = cursor.AddDate(0, 0, -1)
		if _, ok := set[cursor]; !ok {
			return streak
		}
		streak++
	}
}

// LongestRun returns the longest run of strictly consecutive qualifying
// days anywhere in history.
func (c *Calculator) LongestRun(days []time.Time) int {
	set := daySet(days)
	longest := 0
	for day := range set {
		// only start counting at the beginning of a run
		if _, ok := set[day.AddDate(0, 0, -1)]; ok {
			continue
		}
		length := 1
		cursor := day
		for {
			cursor = cursor.AddDate(0, 0, 1)
			if _, ok := set[cursor]; !ok {
				break
			}
			length++
		}
		if length > longest {
			longest = length
		}
	}
	return longest
}

func daySet(days []time.Time) map[time.Time]struct{} {
	set := make(map[time.Time]struct{}, len(days))
	for _, d := range days {
		set[DayOf(d)] = struct{}{}
	}
	return set
}

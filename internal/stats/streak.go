package stats

import (
	"slices"
	"time"
)

// day truncates t to its calendar date in loc, expressed as midnight UTC so
// that stepping by AddDate never crosses a DST boundary.
func day(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Streak counts consecutive training days ending at the most recent one.
// The streak is broken, and 0 returned, when the most recent training day
// is neither today nor yesterday in loc.
func Streak(dates []time.Time, today time.Time, loc *time.Location) int {
	if len(dates) == 0 {
		return 0
	}
	days := make([]time.Time, 0, len(dates))
	for _, t := range dates {
		days = append(days, day(t, loc))
	}
	slices.SortFunc(days, func(a, b time.Time) int { return b.Compare(a) })
	days = slices.Compact(days)

	now := day(today, loc)
	if !days[0].Equal(now) && !days[0].Equal(now.AddDate(0, 0, -1)) {
		return 0
	}

	streak := 1
	for i := 1; i < len(days); i++ {
		if !days[i].Equal(days[i-1].AddDate(0, 0, -1)) {
			break
		}
		streak++
	}
	return streak
}

// WeekStart is Monday 00:00 of t's week in loc.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	offset := (int(local.Weekday()) + 6) % 7
	return time.Date(local.Year(), local.Month(), local.Day()-offset, 0, 0, 0, 0, loc)
}

// MonthStart is the first day of t's month at 00:00 in loc.
func MonthStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
}

// CountBetween counts the times in [from, to).
func CountBetween(dates []time.Time, from, to time.Time) int {
	n := 0
	for _, t := range dates {
		if !t.Before(from) && t.Before(to) {
			n++
		}
	}
	return n
}

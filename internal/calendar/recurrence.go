package calendar

import (
	"fmt"
	"slices"
	"time"

	"github.com/fittrack/fittrack/internal/models"
)

const (
	// maxOccurrences bounds the occurrences returned for one window.
	maxOccurrences = 1000
	secondsPerDay  = 24 * 60 * 60
)

// ValidateRecurrence normalizes r in place and rejects impossible rules.
func ValidateRecurrence(r *models.Recurrence, start time.Time) error {
	switch r.Freq {
	case models.FreqDaily, models.FreqWeekly, models.FreqMonthly:
	default:
		return fmt.Errorf("%w: unknown recurrence frequency %q", models.ErrValidation, r.Freq)
	}
	if r.Interval == 0 {
		r.Interval = 1
	}
	if r.Interval < 1 || r.Interval > 365 {
		return fmt.Errorf("%w: recurrence interval must be between 1 and 365", models.ErrValidation)
	}
	if r.Count < 0 {
		return fmt.Errorf("%w: recurrence count must not be negative", models.ErrValidation)
	}
	if r.Until != nil && r.Until.Before(start) {
		return fmt.Errorf("%w: recurrence ends before the event starts", models.ErrValidation)
	}
	if len(r.Weekdays) > 0 && r.Freq != models.FreqWeekly {
		return fmt.Errorf("%w: weekdays apply to weekly recurrences only", models.ErrValidation)
	}
	for _, d := range r.Weekdays {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("%w: invalid weekday %d", models.ErrValidation, d)
		}
	}
	return nil
}

// Occurrences returns the start times of a series that overlap [from, to],
// in order. Start times are computed on the wall clock of loc so a series
// keeps its local time across DST changes. Count bounds the series as a
// whole, not the window.
func Occurrences(master *models.CalendarEvent, loc *time.Location, from, to time.Time) []time.Time {
	r := master.Recurrence
	if r == nil {
		return nil
	}
	interval := max(r.Interval, 1)
	duration := master.Duration()
	first := master.Start.In(loc)

	var out []time.Time
	n := 0
	emit := func(start time.Time) bool {
		if start.Before(first) {
			return true
		}
		if r.Until != nil && start.After(*r.Until) {
			return false
		}
		if start.After(to) {
			return false
		}
		n++
		if r.Count > 0 && n > r.Count {
			return false
		}
		if !start.Add(duration).Before(from) {
			out = append(out, start)
		}
		return len(out) < maxOccurrences
	}

	clock := func(day time.Time) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), first.Hour(), first.Minute(), first.Second(), first.Nanosecond(), loc)
	}

	// Periods that end well before the window are skipped arithmetically;
	// n still counts their occurrences so Count keeps bounding the series.
	lead := from.Add(-duration)
	periodsBefore := func(origin time.Time, days int) int {
		k := int((lead.Unix()-origin.Unix())/secondsPerDay)/days - 1
		return max(k, 0)
	}

	switch r.Freq {
	case models.FreqDaily:
		skip := periodsBefore(first, interval)
		n = skip
		for i := skip; ; i++ {
			if !emit(clock(first.AddDate(0, 0, i*interval))) {
				return out
			}
		}
	case models.FreqWeekly:
		days := weekdayOffsets(r.Weekdays, first.Weekday())
		monday := first.AddDate(0, 0, -mondayOffset(first.Weekday()))
		skip := periodsBefore(monday, 7*interval)
		if skip > 0 {
			n = skip * len(days)
			for _, off := range days {
				if clock(monday.AddDate(0, 0, off)).Before(first) {
					n--
				}
			}
		}
		for w := skip; ; w++ {
			week := monday.AddDate(0, 0, 7*w*interval)
			for _, off := range days {
				if !emit(clock(week.AddDate(0, 0, off))) {
					return out
				}
			}
		}
	case models.FreqMonthly:
		for i := 0; ; i++ {
			month := time.Date(first.Year(), first.Month()+time.Month(i*interval), 1, 0, 0, 0, 0, loc)
			if first.Day() > daysIn(month) {
				// Months without the day are skipped rather than rolled over.
				continue
			}
			if !emit(clock(month.AddDate(0, 0, first.Day()-1))) {
				return out
			}
		}
	}
	return out
}

// weekdayOffsets converts weekdays to day offsets from Monday, sorted.
func weekdayOffsets(days []time.Weekday, fallback time.Weekday) []int {
	if len(days) == 0 {
		days = []time.Weekday{fallback}
	}
	out := make([]int, 0, len(days))
	for _, d := range days {
		off := mondayOffset(d)
		if !slices.Contains(out, off) {
			out = append(out, off)
		}
	}
	slices.Sort(out)
	return out
}

func mondayOffset(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func daysIn(month time.Time) int {
	return time.Date(month.Year(), month.Month()+1, 0, 0, 0, 0, 0, month.Location()).Day()
}

// occurrence builds the virtual event for one start of a series.
func occurrence(master *models.CalendarEvent, start time.Time) models.CalendarEvent {
	e := *master
	e.Recurrence = nil
	e.Start = start.UTC()
	end := e.Start.Add(master.Duration())
	e.End = &end
	e.ParentID = &master.ID
	occ := e.Start
	e.OccurrenceStart = &occ
	e.Status = models.EventScheduled
	e.Virtual = true
	return e
}

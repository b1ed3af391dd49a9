package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fittrack/fittrack/internal/models"
)

func series(start time.Time, r models.Recurrence) *models.CalendarEvent {
	end := start.Add(45 * time.Minute)
	return &models.CalendarEvent{ID: 1, Start: start, End: &end, Recurrence: &r}
}

func dates(ts []time.Time) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Format("2006-01-02 15:04")
	}
	return out
}

// TestOccurrencesDaily verifies a daily series with an interval.
func TestOccurrencesDaily(t *testing.T) {
	start := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)
	m := series(start, models.Recurrence{Freq: models.FreqDaily, Interval: 2})

	got := Occurrences(m, time.UTC, start.AddDate(0, 0, 3), start.AddDate(0, 0, 8))
	assert.Equal(t, []string{"2025-03-05 07:00", "2025-03-07 07:00", "2025-03-09 07:00"}, dates(got))
}

// TestOccurrencesCountBoundsSeries verifies that Count limits the whole
// series rather than the window.
func TestOccurrencesCountBoundsSeries(t *testing.T) {
	start := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)
	m := series(start, models.Recurrence{Freq: models.FreqDaily, Count: 3})

	got := Occurrences(m, time.UTC, start.AddDate(0, 0, 1), start.AddDate(0, 1, 0))
	assert.Equal(t, []string{"2025-03-02 07:00", "2025-03-03 07:00"}, dates(got))
}

// TestOccurrencesWeeklyWeekdays verifies a weekly series on several weekdays.
func TestOccurrencesWeeklyWeekdays(t *testing.T) {
	// Wednesday.
	start := time.Date(2025, 3, 5, 18, 30, 0, 0, time.UTC)
	m := series(start, models.Recurrence{
		Freq:     models.FreqWeekly,
		Weekdays: []time.Weekday{time.Friday, time.Monday, time.Wednesday},
	})

	got := Occurrences(m, time.UTC, start, time.Date(2025, 3, 12, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{
		"2025-03-05 18:30",
		"2025-03-07 18:30",
		"2025-03-10 18:30",
		"2025-03-12 18:30",
	}, dates(got))
}

// TestOccurrencesWeeklyUntil verifies that Until ends a biweekly series.
func TestOccurrencesWeeklyUntil(t *testing.T) {
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	until := time.Date(2025, 3, 24, 0, 0, 0, 0, time.UTC)
	m := series(start, models.Recurrence{Freq: models.FreqWeekly, Interval: 2, Until: &until})

	got := Occurrences(m, time.UTC, start, start.AddDate(1, 0, 0))
	assert.Equal(t, []string{"2025-03-03 09:00", "2025-03-17 09:00"}, dates(got))
}

// TestOccurrencesMonthlySkipsShortMonths verifies that months without the
// start day are skipped.
func TestOccurrencesMonthlySkipsShortMonths(t *testing.T) {
	start := time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC)
	m := series(start, models.Recurrence{Freq: models.FreqMonthly})

	got := Occurrences(m, time.UTC, start, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"2025-01-31 08:00", "2025-03-31 08:00", "2025-05-31 08:00"}, dates(got))
}

// TestOccurrencesKeepLocalTimeAcrossDST verifies occurrences keep their wall
// clock time over a DST change.
func TestOccurrencesKeepLocalTimeAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)
	start := time.Date(2025, 3, 29, 8, 0, 0, 0, loc)
	m := series(start.UTC(), models.Recurrence{Freq: models.FreqDaily})

	got := Occurrences(m, loc, start, start.AddDate(0, 0, 1))
	require.Len(t, got, 2)
	assert.Equal(t, 8, got[1].In(loc).Hour())
	assert.Equal(t, 23*time.Hour, got[1].Sub(got[0]))
}

// TestOccurrencesOverlapWindowStart verifies that an occurrence running
// into the window is included.
func TestOccurrencesOverlapWindowStart(t *testing.T) {
	start := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)
	m := series(start, models.Recurrence{Freq: models.FreqDaily})

	// The 07:00 occurrence runs until 07:45 and overlaps a window from 07:30.
	got := Occurrences(m, time.UTC, start.Add(30*time.Minute), start.Add(time.Hour))
	assert.Equal(t, []string{"2025-03-01 07:00"}, dates(got))
}

// TestOccurrencesFarFutureWindow verifies series expansion for a window far
// after the series start.
func TestOccurrencesFarFutureWindow(t *testing.T) {
	start := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)
	daily := series(start, models.Recurrence{Freq: models.FreqDaily})
	from := time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)

	got := Occurrences(daily, time.UTC, from, from.Add(60*time.Hour))
	assert.Equal(t, []string{"2200-01-01 07:00", "2200-01-02 07:00", "2200-01-03 07:00"}, dates(got))

	weekly := series(start, models.Recurrence{Freq: models.FreqWeekly, Interval: 2})
	got = Occurrences(weekly, time.UTC, from, from.AddDate(0, 0, 28))
	require.Len(t, got, 2)
	for _, occ := range got {
		assert.Equal(t, time.Saturday, occ.Weekday())
		assert.Zero(t, int(occ.Sub(start).Hours()/24)%14)
	}
}

// TestOccurrencesCountAfterSkippedPeriods verifies that Count still applies
// when earlier periods are skipped.
func TestOccurrencesCountAfterSkippedPeriods(t *testing.T) {
	start := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)
	daily := series(start, models.Recurrence{Freq: models.FreqDaily, Count: 10})
	got := Occurrences(daily, time.UTC, time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"2025-03-08 07:00", "2025-03-09 07:00", "2025-03-10 07:00"}, dates(got))

	// Wednesday; the Monday of the first week precedes the series.
	wed := time.Date(2025, 3, 5, 18, 30, 0, 0, time.UTC)
	weekly := series(wed, models.Recurrence{
		Freq:     models.FreqWeekly,
		Weekdays: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		Count:    10,
	})
	got = Occurrences(weekly, time.UTC, time.Date(2025, 3, 24, 0, 0, 0, 0, time.UTC), time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"2025-03-24 18:30", "2025-03-26 18:30"}, dates(got))
}

// TestValidateRecurrence verifies rule normalization and rejection.
func TestValidateRecurrence(t *testing.T) {
	start := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)

	r := models.Recurrence{Freq: models.FreqDaily}
	require.NoError(t, ValidateRecurrence(&r, start))
	assert.Equal(t, 1, r.Interval)

	for name, bad := range map[string]models.Recurrence{
		"frequency":        {Freq: "yearly"},
		"interval":         {Freq: models.FreqDaily, Interval: -1},
		"count":            {Freq: models.FreqDaily, Count: -2},
		"until":            {Freq: models.FreqDaily, Until: &before},
		"weekdays":         {Freq: models.FreqDaily, Weekdays: []time.Weekday{time.Monday}},
		"weekday in range": {Freq: models.FreqWeekly, Weekdays: []time.Weekday{9}},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateRecurrence(&bad, start), models.ErrValidation)
		})
	}
}

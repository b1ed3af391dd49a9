package stats

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fittrack/fittrack/internal/models"
	"github.com/fittrack/fittrack/internal/storage/memstore"
)

func at(day, hour int) time.Time {
	return time.Date(2025, 6, day, hour, 0, 0, 0, time.UTC)
}

// TestStreak verifies consecutive training days are counted.
func TestStreak(t *testing.T) {
	today := at(12, 20)
	tests := []struct {
		name  string
		dates []time.Time
		want  int
	}{
		{"empty", nil, 0},
		{"today only", []time.Time{at(12, 7)}, 1},
		{"ending yesterday", []time.Time{at(11, 7), at(10, 7), at(9, 7)}, 3},
		{"two days ago breaks", []time.Time{at(10, 7), at(9, 7)}, 0},
		{"gap stops count", []time.Time{at(12, 7), at(11, 7), at(9, 7), at(8, 7)}, 2},
		{"duplicates count once", []time.Time{at(12, 7), at(12, 18), at(11, 7), at(11, 9)}, 2},
		{"unsorted input", []time.Time{at(10, 7), at(12, 7), at(11, 7)}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Streak(tt.dates, today, time.UTC))
		})
	}
}

// TestStreakUsesLocation verifies days are split in the configured zone.
func TestStreakUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// 02:00 UTC on the 12th is still the 11th in New York.
	today := time.Date(2025, 6, 12, 2, 0, 0, 0, time.UTC)
	dates := []time.Time{at(11, 2), at(10, 12)}

	// Both dates fall on the 10th in New York, so only one day counts there.
	assert.Equal(t, 2, Streak(dates, today, time.UTC))
	assert.Equal(t, 1, Streak(dates, today, loc))
}

// TestWeekAndMonthStart verifies Monday week starts and month starts.
func TestWeekAndMonthStart(t *testing.T) {
	// Sunday.
	sunday := time.Date(2025, 6, 15, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC), WeekStart(sunday, time.UTC))
	assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), WeekStart(sunday.Add(2*time.Hour), time.UTC))
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), MonthStart(sunday, time.UTC))
}

// TestDashboard verifies the dashboard counts.
func TestDashboard(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	u, err := store.GetOrCreateUser(ctx, models.Principal{Subject: "runner"})
	require.NoError(t, err)
	target := 4
	u.WeeklyWorkouts = &target
	require.NoError(t, store.UpdateUser(ctx, u))

	complete := func(started time.Time, completed bool) {
		ws := &models.WorkoutSession{ID: uuid.New(), UserID: u.ID, PlanID: 1, StartedAt: started, Source: models.SourceTracked}
		if completed {
			end := started.Add(time.Hour)
			ws.CompletedAt = &end
			ws.IsCompleted = true
		}
		require.NoError(t, store.InsertSession(ctx, ws))
	}
	complete(at(12, 7), true)   // Thursday
	complete(at(11, 7), true)   // Wednesday
	complete(at(2, 7), true)    // previous week
	complete(at(12, 18), false) // still active

	event := func(start time.Time, typ models.EventType, status models.EventStatus) {
		require.NoError(t, store.InsertEvent(ctx, &models.CalendarEvent{
			UserID: u.ID, Title: "x", Start: start, Type: typ, Status: status, Color: models.DefaultEventColor,
		}))
	}
	event(at(10, 7), models.EventCardio, models.EventCompleted)
	event(at(9, 7), models.EventRest, models.EventCompleted)
	event(at(8, 7), models.EventWorkout, models.EventScheduled)

	svc := NewService(store, time.UTC)
	svc.now = func() time.Time { return at(12, 21) }

	d, err := svc.Dashboard(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Streak)
	assert.Equal(t, 3, d.WorkoutsThisWeek)
	assert.Equal(t, 4, d.WorkoutsThisMonth)
	assert.Equal(t, &target, d.WeeklyTarget)
	assert.Equal(t, 3, d.TotalSessions)
	require.NotNil(t, d.LastSession)
	assert.Equal(t, at(12, 7), d.LastSession.StartedAt)
}

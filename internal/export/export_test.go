package export

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fittrack/fittrack/internal/activesession"
	"github.com/fittrack/fittrack/internal/calendar"
	"github.com/fittrack/fittrack/internal/metrics"
	"github.com/fittrack/fittrack/internal/models"
	"github.com/fittrack/fittrack/internal/storage/memstore"
	"github.com/fittrack/fittrack/internal/weight"
	"github.com/fittrack/fittrack/internal/workout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) (*memstore.Store, int64) {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewTestManager()
	store := memstore.New()

	u, err := store.GetOrCreateUser(ctx, models.Principal{Subject: "athlete", Email: "a@example.com"})
	require.NoError(t, err)

	squat := &models.Exercise{Name: "Squat", Category: models.CategoryStrength, IsPublic: true}
	row := &models.Exercise{Name: "Rowing", Category: models.CategoryCardio, IsPublic: true}
	require.NoError(t, store.InsertExercise(ctx, squat))
	require.NoError(t, store.InsertExercise(ctx, row))

	plan := &models.WorkoutPlan{UserID: u.ID, Name: "Full body"}
	require.NoError(t, store.InsertPlan(ctx, plan))
	strength := models.PlanExercise{PlanID: plan.ID, ExerciseID: squat.ID, Sets: 2, Target: models.StrengthTarget{Reps: 5, WeightKg: 100}}
	cardio := models.PlanExercise{PlanID: plan.ID, ExerciseID: row.ID, Position: 1, Sets: 1, Target: models.CardioTarget{DurationMinutes: 20, DistanceKm: 4}}
	require.NoError(t, store.InsertPlanExercise(ctx, &strength))
	require.NoError(t, store.InsertPlanExercise(ctx, &cardio))

	workouts := workout.NewService(store, activesession.NewMemoryStore(0), m, log)
	_, err = workouts.Start(ctx, u.ID, plan.ID)
	require.NoError(t, err)
	for n := range 2 {
		reps, kg := 5, 100.0
		_, _, err := workouts.SaveSet(ctx, u.ID, workout.SetInput{PlanExerciseID: strength.ID, SetNumber: &n, Completed: true, Reps: &reps, WeightKg: &kg})
		require.NoError(t, err)
	}
	n, minutes := 0, 20.0
	_, _, err = workouts.SaveSet(ctx, u.ID, workout.SetInput{PlanExerciseID: cardio.ID, SetNumber: &n, Completed: true, DurationMinutes: &minutes})
	require.NoError(t, err)
	_, err = workouts.Complete(ctx, u.ID, plan.ID)
	require.NoError(t, err)

	_, err = weight.NewService(store, log).Log(ctx, u.ID, 82.5, "morning")
	require.NoError(t, err)

	title := "Leg day"
	start := time.Date(2025, 3, 3, 18, 0, 0, 0, time.UTC)
	_, err = calendar.NewService(store, m, log, time.UTC).Create(ctx, u.ID, calendar.EventInput{
		Title:      &title,
		Start:      &start,
		PlanID:     &plan.ID,
		Recurrence: &models.Recurrence{Freq: models.FreqWeekly, Interval: 1},
	})
	require.NoError(t, err)

	// Another user's data must not leak into the export.
	other, err := store.GetOrCreateUser(ctx, models.Principal{Subject: "other"})
	require.NoError(t, err)
	require.NoError(t, store.InsertPlan(ctx, &models.WorkoutPlan{UserID: other.ID, Name: "Theirs"}))

	return store, u.ID
}

func count(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// TestExport verifies that one user's data lands in the SQLite file.
func TestExport(t *testing.T) {
	store, userID := seed(t)
	path := filepath.Join(t.TempDir(), "fittrack.db")

	sum, err := New(store, slog.New(slog.NewTextHandler(io.Discard, nil))).Export(context.Background(), userID, path)
	require.NoError(t, err)
	assert.Equal(t, &Summary{
		Exercises:     2,
		Plans:         1,
		PlanExercises: 2,
		Sessions:      1,
		SetLogs:       3,
		ExerciseLogs:  2,
		WeightLogs:    1,
		Events:        1,
	}, sum)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	for table, want := range map[string]int{
		"users":                  1,
		"exercises":              2,
		"workout_plans":          1,
		"workout_plan_exercises": 2,
		"workout_sessions":       1,
		"set_logs":               3,
		"exercise_logs":          2,
		"weight_logs":            1,
		"calendar_events":        1,
	} {
		assert.Equal(t, want, count(t, db, table), table)
	}

	var kind string
	var reps sql.NullInt64
	var duration sql.NullFloat64
	require.NoError(t, db.QueryRow(`SELECT kind, reps, duration_minutes FROM set_logs WHERE duration_minutes IS NOT NULL`).Scan(&kind, &reps, &duration))
	assert.Equal(t, "cardio", kind)
	assert.False(t, reps.Valid)
	assert.InDelta(t, 20.0, duration.Float64, 0.001)

	var totalReps int
	var completed bool
	require.NoError(t, db.QueryRow(`SELECT total_reps, is_completed FROM workout_sessions`).Scan(&totalReps, &completed))
	assert.Equal(t, 11, totalReps)
	assert.True(t, completed)

	var freq, start string
	require.NoError(t, db.QueryRow(`SELECT recurrence_freq, start_at FROM calendar_events`).Scan(&freq, &start))
	assert.Equal(t, "weekly", freq)
	assert.Equal(t, "2025-03-03T18:00:00Z", start)
}

// TestExportRefusesExistingFile verifies that an existing file is never overwritten.
func TestExportRefusesExistingFile(t *testing.T) {
	store, userID := seed(t)
	path := filepath.Join(t.TempDir(), "fittrack.db")
	require.NoError(t, os.WriteFile(path, []byte("keep"), 0o600))

	_, err := New(store, slog.New(slog.NewTextHandler(io.Discard, nil))).Export(context.Background(), userID, path)
	require.ErrorIs(t, err, models.ErrConflict)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
}

// TestExportUnknownUser verifies that no file is left behind for a missing user.
func TestExportUnknownUser(t *testing.T) {
	store, _ := seed(t)
	path := filepath.Join(t.TempDir(), "fittrack.db")

	_, err := New(store, slog.New(slog.NewTextHandler(io.Discard, nil))).Export(context.Background(), 9999, path)
	require.ErrorIs(t, err, models.ErrNotFound)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

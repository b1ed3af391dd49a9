// Package export writes a user's training data into a standalone SQLite file.
package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/fittrack/fittrack/internal/models"
	"github.com/fittrack/fittrack/internal/storage"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE users (
	id                INTEGER PRIMARY KEY,
	subject           TEXT NOT NULL,
	email             TEXT NOT NULL,
	display_name      TEXT NOT NULL,
	current_weight_kg REAL,
	goal_weight_kg    REAL,
	weekly_workouts   INTEGER,
	created_at        TEXT NOT NULL
);
CREATE TABLE exercises (
	id        INTEGER PRIMARY KEY,
	name      TEXT NOT NULL,
	category  TEXT NOT NULL,
	level     TEXT NOT NULL,
	equipment TEXT NOT NULL
);
CREATE TABLE workout_plans (
	id          INTEGER PRIMARY KEY,
	name        TEXT NOT NULL,
	is_archived INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE TABLE workout_plan_exercises (
	id               INTEGER PRIMARY KEY,
	plan_id          INTEGER NOT NULL REFERENCES workout_plans(id),
	exercise_id      INTEGER NOT NULL REFERENCES exercises(id),
	position         INTEGER NOT NULL,
	sets             INTEGER NOT NULL,
	kind             TEXT NOT NULL,
	reps             INTEGER,
	weight_kg        REAL,
	duration_minutes REAL,
	distance_km      REAL
);
CREATE TABLE workout_sessions (
	id                TEXT PRIMARY KEY,
	plan_id           INTEGER NOT NULL,
	started_at        TEXT NOT NULL,
	completed_at      TEXT,
	is_completed      INTEGER NOT NULL,
	is_archived       INTEGER NOT NULL,
	source            TEXT NOT NULL,
	calendar_event_id INTEGER,
	total_sets        INTEGER NOT NULL,
	total_reps        INTEGER NOT NULL,
	total_weight_kg   REAL NOT NULL,
	duration_minutes  INTEGER NOT NULL
);
CREATE TABLE set_logs (
	id               INTEGER PRIMARY KEY,
	session_id       TEXT NOT NULL REFERENCES workout_sessions(id),
	plan_exercise_id INTEGER NOT NULL,
	exercise_id      INTEGER NOT NULL,
	set_number       INTEGER NOT NULL,
	completed        INTEGER NOT NULL,
	completed_at     TEXT,
	kind             TEXT NOT NULL,
	reps             INTEGER,
	weight_kg        REAL,
	duration_minutes REAL,
	distance_km      REAL
);
CREATE TABLE exercise_logs (
	id           INTEGER PRIMARY KEY,
	session_id   TEXT NOT NULL,
	plan_id      INTEGER NOT NULL,
	exercise_id  INTEGER NOT NULL,
	sets         INTEGER NOT NULL,
	reps         REAL NOT NULL,
	weight_kg    REAL NOT NULL,
	completed_at TEXT NOT NULL
);
CREATE TABLE weight_logs (
	id        INTEGER PRIMARY KEY,
	weight_kg REAL NOT NULL,
	logged_at TEXT NOT NULL,
	note      TEXT NOT NULL
);
CREATE TABLE calendar_events (
	id               INTEGER PRIMARY KEY,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL,
	start_at         TEXT NOT NULL,
	end_at           TEXT,
	event_type       TEXT NOT NULL,
	status           TEXT NOT NULL,
	color            TEXT NOT NULL,
	workout_plan_id  INTEGER,
	recurrence_freq  TEXT,
	parent_id        INTEGER,
	occurrence_start TEXT
);`

// Summary counts the rows written per table.
type Summary struct {
	Exercises     int `json:"exercises"`
	Plans         int `json:"plans"`
	PlanExercises int `json:"plan_exercises"`
	Sessions      int `json:"sessions"`
	SetLogs       int `json:"set_logs"`
	ExerciseLogs  int `json:"exercise_logs"`
	WeightLogs    int `json:"weight_logs"`
	Events        int `json:"events"`
}

// Exporter reads a user's rows from the store and writes them to SQLite.
type Exporter struct {
	store storage.Queries
	log   *slog.Logger
}

func New(store storage.Queries, log *slog.Logger) *Exporter {
	return &Exporter{store: store, log: log}
}

// Export writes every plan, session, set log, exercise log, weight log and
// calendar event of userID into a new SQLite database at path. An existing
// file is never overwritten.
func (e *Exporter) Export(ctx context.Context, userID int64, path string) (*Summary, error) {
	data, err := e.collect(ctx, userID)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s already exists", models.ErrConflict, path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("checking export path: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening export db: %w", err)
	}

	sum, err := write(ctx, db, data)
	if cerr := db.Close(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("closing export db: %w", cerr))
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	e.log.Info("export written", "user_id", userID, "path", path,
		"sessions", sum.Sessions, "set_logs", sum.SetLogs, "events", sum.Events)
	return sum, nil
}

type userData struct {
	user          *models.User
	exercises     map[int64]*models.Exercise
	plans         []models.WorkoutPlan
	planExercises []models.PlanExercise
	sessions      []models.WorkoutSession
	setLogs       []models.SetLog
	exerciseLogs  []models.ExerciseLog
	weightLogs    []models.WeightLog
	events        []models.CalendarEvent
}

func (e *Exporter) collect(ctx context.Context, userID int64) (*userData, error) {
	d := &userData{exercises: map[int64]*models.Exercise{}}
	var err error

	if d.user, err = e.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	for _, archived := range []bool{false, true} {
		plans, err := e.store.ListPlans(ctx, userID, archived)
		if err != nil {
			return nil, err
		}
		d.plans = append(d.plans, plans...)
	}
	for _, p := range d.plans {
		pes, err := e.store.ListPlanExercises(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		d.planExercises = append(d.planExercises, pes...)
	}
	if d.sessions, err = e.store.ListSessions(ctx, models.SessionFilter{UserID: userID}); err != nil {
		return nil, err
	}
	for _, s := range d.sessions {
		logs, err := e.store.ListSetLogs(ctx, s.ID, false)
		if err != nil {
			return nil, err
		}
		d.setLogs = append(d.setLogs, logs...)
	}
	if d.exerciseLogs, err = e.store.ListExerciseLogs(ctx, userID, 0, 0); err != nil {
		return nil, err
	}
	if d.weightLogs, err = e.store.ListWeightLogs(ctx, userID, 0, 0); err != nil {
		return nil, err
	}
	if d.events, err = e.store.ListEvents(ctx, models.EventFilter{UserID: userID}); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(d.planExercises)+len(d.setLogs))
	for _, pe := range d.planExercises {
		ids = append(ids, pe.ExerciseID)
	}
	for _, l := range d.setLogs {
		ids = append(ids, l.ExerciseID)
	}
	for _, id := range ids {
		if _, ok := d.exercises[id]; ok {
			continue
		}
		ex, err := e.store.GetExercise(ctx, id)
		if err != nil {
			return nil, err
		}
		d.exercises[id] = ex
	}
	return d, nil
}

func write(ctx context.Context, db *sql.DB, d *userData) (sum *Summary, err error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating export schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning export: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
		}
	}()

	sum = &Summary{}
	exec := func(query string, args ...any) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	}

	u := d.user
	if err := exec(`INSERT INTO users VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Subject, u.Email, u.DisplayName, u.CurrentWeightKg, u.GoalWeightKg, u.WeeklyWorkouts, ts(u.CreatedAt)); err != nil {
		return nil, fmt.Errorf("writing user: %w", err)
	}

	for _, ex := range d.exercises {
		if err := exec(`INSERT INTO exercises VALUES (?, ?, ?, ?, ?)`,
			ex.ID, ex.Name, string(ex.Category), ex.Level, ex.Equipment); err != nil {
			return nil, fmt.Errorf("writing exercise %d: %w", ex.ID, err)
		}
		sum.Exercises++
	}

	for _, p := range d.plans {
		if err := exec(`INSERT INTO workout_plans VALUES (?, ?, ?, ?)`,
			p.ID, p.Name, p.IsArchived, ts(p.CreatedAt)); err != nil {
			return nil, fmt.Errorf("writing plan %d: %w", p.ID, err)
		}
		sum.Plans++
	}

	for _, pe := range d.planExercises {
		var (
			reps             *int
			weight, duration *float64
			distance         *float64
		)
		switch t := pe.Target.(type) {
		case models.StrengthTarget:
			reps, weight = &t.Reps, &t.WeightKg
		case models.CardioTarget:
			duration, distance = &t.DurationMinutes, &t.DistanceKm
		}
		if err := exec(`INSERT INTO workout_plan_exercises VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			pe.ID, pe.PlanID, pe.ExerciseID, pe.Position, pe.Sets, string(pe.Target.Kind()),
			reps, weight, duration, distance); err != nil {
			return nil, fmt.Errorf("writing plan exercise %d: %w", pe.ID, err)
		}
		sum.PlanExercises++
	}

	for _, s := range d.sessions {
		if err := exec(`INSERT INTO workout_sessions VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID.String(), s.PlanID, ts(s.StartedAt), tsp(s.CompletedAt), s.IsCompleted, s.IsArchived,
			string(s.Source), s.CalendarEventID, s.TotalSets, s.TotalReps, s.TotalWeightKg, s.DurationMinutes); err != nil {
			return nil, fmt.Errorf("writing session %s: %w", s.ID, err)
		}
		sum.Sessions++
	}

	for _, l := range d.setLogs {
		var (
			reps             *int
			weight, duration *float64
			distance         *float64
		)
		switch p := l.Payload.(type) {
		case models.StrengthSet:
			reps, weight = &p.Reps, &p.WeightKg
		case models.CardioSet:
			duration, distance = &p.DurationMinutes, &p.DistanceKm
		}
		if err := exec(`INSERT INTO set_logs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.SessionID.String(), l.PlanExerciseID, l.ExerciseID, l.SetNumber, l.Completed,
			tsp(l.CompletedAt), string(l.Payload.Kind()), reps, weight, duration, distance); err != nil {
			return nil, fmt.Errorf("writing set log %d: %w", l.ID, err)
		}
		sum.SetLogs++
	}

	for _, l := range d.exerciseLogs {
		if err := exec(`INSERT INTO exercise_logs VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.SessionID.String(), l.PlanID, l.ExerciseID, l.Sets, l.Reps, l.WeightKg, ts(l.CompletedAt)); err != nil {
			return nil, fmt.Errorf("writing exercise log %d: %w", l.ID, err)
		}
		sum.ExerciseLogs++
	}

	for _, w := range d.weightLogs {
		if err := exec(`INSERT INTO weight_logs VALUES (?, ?, ?, ?)`,
			w.ID, w.WeightKg, ts(w.LoggedAt), w.Note); err != nil {
			return nil, fmt.Errorf("writing weight log %d: %w", w.ID, err)
		}
		sum.WeightLogs++
	}

	for _, ev := range d.events {
		var freq *string
		if ev.Recurrence != nil {
			f := string(ev.Recurrence.Freq)
			freq = &f
		}
		if err := exec(`INSERT INTO calendar_events VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, ev.Title, ev.Description, ts(ev.Start), tsp(ev.End), string(ev.Type), string(ev.Status),
			ev.Color, ev.PlanID, freq, ev.ParentID, tsp(ev.OccurrenceStart)); err != nil {
			return nil, fmt.Errorf("writing event %d: %w", ev.ID, err)
		}
		sum.Events++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing export: %w", err)
	}
	return sum, nil
}

func ts(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func tsp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := ts(*t)
	return &s
}

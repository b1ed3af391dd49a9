package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/fittrack/fittrack/internal/models"
	"github.com/google/uuid"
)

const sessionColumns = `id, user_id, plan_id, started_at, completed_at, is_completed, is_archived,
	source, calendar_event_id, total_sets, total_reps, total_weight_kg, duration_minutes`

func scanSession(row rowScanner) (*models.WorkoutSession, error) {
	var s models.WorkoutSession
	err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.StartedAt, &s.CompletedAt, &s.IsCompleted,
		&s.IsArchived, &s.Source, &s.CalendarEventID, &s.TotalSets, &s.TotalReps,
		&s.TotalWeightKg, &s.DurationMinutes)
	return &s, err
}

func (q *queries) InsertSession(ctx context.Context, s *models.WorkoutSession) error {
	_, err := q.q.Exec(ctx, `
		INSERT INTO workout_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.UserID, s.PlanID, s.StartedAt, s.CompletedAt, s.IsCompleted, s.IsArchived,
		string(s.Source), s.CalendarEventID, s.TotalSets, s.TotalReps, s.TotalWeightKg, s.DurationMinutes)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

func (q *queries) GetSession(ctx context.Context, id uuid.UUID) (*models.WorkoutSession, error) {
	s, err := scanSession(q.q.QueryRow(ctx, `SELECT `+sessionColumns+` FROM workout_sessions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "workout session")
	}
	return s, nil
}

// GetSessionForUpdate reads a session and locks its row until the surrounding
// transaction ends. Outside a transaction the lock is released immediately.
func (q *queries) GetSessionForUpdate(ctx context.Context, id uuid.UUID) (*models.WorkoutSession, error) {
	s, err := scanSession(q.q.QueryRow(ctx, `SELECT `+sessionColumns+` FROM workout_sessions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "workout session")
	}
	return s, nil
}

// UpdateSession writes lifecycle flags and aggregate totals.
func (q *queries) UpdateSession(ctx context.Context, s *models.WorkoutSession) error {
	tag, err := q.q.Exec(ctx, `
		UPDATE workout_sessions
		SET completed_at = $2, is_completed = $3, is_archived = $4, total_sets = $5,
		    total_reps = $6, total_weight_kg = $7, duration_minutes = $8
		WHERE id = $1`,
		s.ID, s.CompletedAt, s.IsCompleted, s.IsArchived, s.TotalSets, s.TotalReps,
		s.TotalWeightKg, s.DurationMinutes)
	return expectOne(tag, err, "workout session")
}

// UpdateSessionTotals writes only the aggregate totals, leaving the lifecycle
// flags as committed.
func (q *queries) UpdateSessionTotals(ctx context.Context, s *models.WorkoutSession) error {
	tag, err := q.q.Exec(ctx, `
		UPDATE workout_sessions
		SET total_sets = $2, total_reps = $3, total_weight_kg = $4, duration_minutes = $5
		WHERE id = $1`,
		s.ID, s.TotalSets, s.TotalReps, s.TotalWeightKg, s.DurationMinutes)
	return expectOne(tag, err, "workout session")
}

// ListSessions returns matching sessions ordered by completion (falling back
// to start) time, newest first.
func (q *queries) ListSessions(ctx context.Context, f models.SessionFilter) ([]models.WorkoutSession, error) {
	where := []string{"user_id = $1"}
	args := []any{f.UserID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.PlanID != nil {
		add("plan_id = $%d", *f.PlanID)
	}
	if f.Completed != nil {
		add("is_completed = $%d", *f.Completed)
	}
	if f.Archived != nil {
		add("is_archived = $%d", *f.Archived)
	}
	if f.StartedFrom != nil {
		add("started_at >= $%d", *f.StartedFrom)
	}
	if f.StartedTo != nil {
		add("started_at < $%d", *f.StartedTo)
	}

	query := `SELECT ` + sessionColumns + ` FROM workout_sessions WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY COALESCE(completed_at, started_at) DESC, id`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := q.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []models.WorkoutSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

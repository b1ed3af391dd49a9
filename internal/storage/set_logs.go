package storage

import (
	"context"
	"fmt"

	"github.com/fittrack/fittrack/internal/models"
	"github.com/google/uuid"
)

// payloadColumns maps a payload onto the stored columns. Cardio rows always
// carry reps=1 and weight=0; strength rows never carry duration or distance.
func payloadColumns(p models.SetPayload) (reps int, weight float64, duration, distance *float64) {
	switch p := p.(type) {
	case models.StrengthSet:
		return p.Reps, p.WeightKg, nil, nil
	case models.CardioSet:
		return 1, 0, &p.DurationMinutes, &p.DistanceKm
	}
	return 0, 0, nil, nil
}

// UpsertSetLog inserts a set or overwrites the one already logged for
// (session, plan exercise, set number).
func (q *queries) UpsertSetLog(ctx context.Context, l *models.SetLog) error {
	reps, weight, duration, distance := payloadColumns(l.Payload)
	err := q.q.QueryRow(ctx, `
		INSERT INTO set_logs (session_id, user_id, plan_id, plan_exercise_id, exercise_id, set_number,
			completed, completed_at, reps, weight_kg, duration_minutes, distance_km)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (session_id, plan_exercise_id, set_number) DO UPDATE
			SET completed = EXCLUDED.completed,
			    completed_at = COALESCE(EXCLUDED.completed_at, set_logs.completed_at),
			    reps = EXCLUDED.reps,
			    weight_kg = EXCLUDED.weight_kg,
			    duration_minutes = EXCLUDED.duration_minutes,
			    distance_km = EXCLUDED.distance_km
		RETURNING id`,
		l.SessionID, l.UserID, l.PlanID, l.PlanExerciseID, l.ExerciseID, l.SetNumber,
		l.Completed, l.CompletedAt, reps, weight, duration, distance).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("upserting set log: %w", err)
	}
	return nil
}

// ListSetLogs returns a session's sets ordered by exercise and set number.
func (q *queries) ListSetLogs(ctx context.Context, sessionID uuid.UUID, completedOnly bool) ([]models.SetLog, error) {
	rows, err := q.q.Query(ctx, `
		SELECT s.id, s.session_id, s.user_id, s.plan_id, s.plan_exercise_id, s.exercise_id,
			s.set_number, s.completed, s.completed_at, s.reps, s.weight_kg,
			s.duration_minutes, s.distance_km, e.category
		FROM set_logs s
		JOIN exercises e ON e.id = s.exercise_id
		WHERE s.session_id = $1 AND (s.completed OR NOT $2)
		ORDER BY s.exercise_id, s.set_number`, sessionID, completedOnly)
	if err != nil {
		return nil, fmt.Errorf("listing set logs: %w", err)
	}
	defer rows.Close()

	var out []models.SetLog
	for rows.Next() {
		var (
			l                  models.SetLog
			reps               int
			weight             float64
			duration, distance *float64
			category           models.Category
		)
		if err := rows.Scan(&l.ID, &l.SessionID, &l.UserID, &l.PlanID, &l.PlanExerciseID,
			&l.ExerciseID, &l.SetNumber, &l.Completed, &l.CompletedAt, &reps, &weight,
			&duration, &distance, &category); err != nil {
			return nil, fmt.Errorf("scanning set log: %w", err)
		}
		if category.IsCardio() {
			l.Payload = models.CardioSet{DurationMinutes: deref(duration), DistanceKm: deref(distance)}
		} else {
			l.Payload = models.StrengthSet{Reps: reps, WeightKg: weight}
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// DeleteSetLogs removes every set of a session.
func (q *queries) DeleteSetLogs(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := q.q.Exec(ctx, `DELETE FROM set_logs WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("deleting set logs: %w", err)
	}
	return nil
}

func (q *queries) InsertExerciseLog(ctx context.Context, l *models.ExerciseLog) error {
	err := q.q.QueryRow(ctx, `
		INSERT INTO exercise_logs (session_id, user_id, plan_id, exercise_id, sets, reps, weight_kg, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		l.SessionID, l.UserID, l.PlanID, l.ExerciseID, l.Sets, l.Reps, l.WeightKg, l.CompletedAt).Scan(&l.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: exercise %d already logged for session %s", models.ErrConflict, l.ExerciseID, l.SessionID)
	}
	if err != nil {
		return fmt.Errorf("inserting exercise log: %w", err)
	}
	return nil
}

// ListExerciseLogs returns a user's exercise logs newest first. exerciseID 0
// returns logs of every exercise; limit 0 returns all rows.
func (q *queries) ListExerciseLogs(ctx context.Context, userID, exerciseID int64, limit int) ([]models.ExerciseLog, error) {
	query := `
		SELECT id, session_id, user_id, plan_id, exercise_id, sets, reps, weight_kg, completed_at
		FROM exercise_logs
		WHERE user_id = $1 AND ($2 = 0 OR exercise_id = $2)
		ORDER BY completed_at DESC, id DESC`
	args := []any{userID, exerciseID}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := q.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing exercise logs: %w", err)
	}
	defer rows.Close()

	var out []models.ExerciseLog
	for rows.Next() {
		var l models.ExerciseLog
		if err := rows.Scan(&l.ID, &l.SessionID, &l.UserID, &l.PlanID, &l.ExerciseID,
			&l.Sets, &l.Reps, &l.WeightKg, &l.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning exercise log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

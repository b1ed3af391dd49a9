package storage

import (
	"context"
	"fmt"

	"github.com/fittrack/fittrack/internal/models"
)

const planColumns = `id, user_id, name, is_archived, created_at, updated_at`

func scanPlan(row rowScanner) (*models.WorkoutPlan, error) {
	var p models.WorkoutPlan
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.IsArchived, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (q *queries) InsertPlan(ctx context.Context, p *models.WorkoutPlan) error {
	err := q.q.QueryRow(ctx, `
		INSERT INTO workout_plans (user_id, name, is_archived)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		p.UserID, p.Name, p.IsArchived).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting plan: %w", err)
	}
	return nil
}

// GetPlan returns the plan row without its exercises.
func (q *queries) GetPlan(ctx context.Context, id int64) (*models.WorkoutPlan, error) {
	p, err := scanPlan(q.q.QueryRow(ctx, `SELECT `+planColumns+` FROM workout_plans WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "workout plan")
	}
	return p, nil
}

// ListPlans returns a user's plans, newest first.
func (q *queries) ListPlans(ctx context.Context, userID int64, archived bool) ([]models.WorkoutPlan, error) {
	rows, err := q.q.Query(ctx, `
		SELECT `+planColumns+` FROM workout_plans
		WHERE user_id = $1 AND is_archived = $2
		ORDER BY created_at DESC, id DESC`, userID, archived)
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	defer rows.Close()

	var out []models.WorkoutPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning plan: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (q *queries) UpdatePlan(ctx context.Context, p *models.WorkoutPlan) error {
	err := q.q.QueryRow(ctx, `
		UPDATE workout_plans SET name = $2, is_archived = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`, p.ID, p.Name, p.IsArchived).Scan(&p.UpdatedAt)
	if err != nil {
		return notFound(err, "workout plan")
	}
	return nil
}

const planExerciseColumns = `pe.id, pe.plan_id, pe.exercise_id, pe.position, pe.sets,
	pe.reps, pe.weight_kg, pe.duration_minutes, pe.distance_km, ` + exerciseColumns

func scanPlanExercise(row rowScanner) (*models.PlanExercise, error) {
	var (
		pe                         models.PlanExercise
		reps                       *int
		weight, duration, distance *float64
		e                          models.Exercise
	)
	err := row.Scan(&pe.ID, &pe.PlanID, &pe.ExerciseID, &pe.Position, &pe.Sets,
		&reps, &weight, &duration, &distance,
		&e.ID, &e.Name, &e.Category, &e.Level, &e.Mechanic, &e.Equipment,
		&e.PrimaryMuscles, &e.Instructions, &e.Images, &e.Video, &e.OwnerID, &e.IsPublic)
	if err != nil {
		return nil, err
	}
	pe.Exercise = &e
	if e.IsCardio() {
		pe.Target = models.CardioTarget{DurationMinutes: deref(duration), DistanceKm: deref(distance)}
	} else {
		pe.Target = models.StrengthTarget{Reps: deref(reps), WeightKg: deref(weight)}
	}
	return &pe, nil
}

// targetColumns splits a target into the four nullable prescription columns.
func targetColumns(t models.Target) (reps *int, weight, duration, distance *float64) {
	switch t := t.(type) {
	case models.StrengthTarget:
		return &t.Reps, &t.WeightKg, nil, nil
	case models.CardioTarget:
		return nil, nil, &t.DurationMinutes, &t.DistanceKm
	}
	return nil, nil, nil, nil
}

// ListPlanExercises returns the plan's exercises ordered by position, with
// catalog data attached.
func (q *queries) ListPlanExercises(ctx context.Context, planID int64) ([]models.PlanExercise, error) {
	rows, err := q.q.Query(ctx, `
		SELECT `+planExerciseColumns+`
		FROM workout_plan_exercises pe
		JOIN exercises e ON e.id = pe.exercise_id
		WHERE pe.plan_id = $1
		ORDER BY pe.position, pe.id`, planID)
	if err != nil {
		return nil, fmt.Errorf("listing plan exercises: %w", err)
	}
	defer rows.Close()

	var out []models.PlanExercise
	for rows.Next() {
		pe, err := scanPlanExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning plan exercise: %w", err)
		}
		out = append(out, *pe)
	}
	return out, rows.Err()
}

func (q *queries) GetPlanExercise(ctx context.Context, id int64) (*models.PlanExercise, error) {
	pe, err := scanPlanExercise(q.q.QueryRow(ctx, `
		SELECT `+planExerciseColumns+`
		FROM workout_plan_exercises pe
		JOIN exercises e ON e.id = pe.exercise_id
		WHERE pe.id = $1`, id))
	if err != nil {
		return nil, notFound(err, "plan exercise")
	}
	return pe, nil
}

func (q *queries) InsertPlanExercise(ctx context.Context, pe *models.PlanExercise) error {
	reps, weight, duration, distance := targetColumns(pe.Target)
	err := q.q.QueryRow(ctx, `
		INSERT INTO workout_plan_exercises (plan_id, exercise_id, position, sets,
			reps, weight_kg, duration_minutes, distance_km)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		pe.PlanID, pe.ExerciseID, pe.Position, pe.Sets, reps, weight, duration, distance).Scan(&pe.ID)
	if err != nil {
		return fmt.Errorf("inserting plan exercise: %w", err)
	}
	return nil
}

func (q *queries) UpdatePlanExercise(ctx context.Context, pe *models.PlanExercise) error {
	reps, weight, duration, distance := targetColumns(pe.Target)
	tag, err := q.q.Exec(ctx, `
		UPDATE workout_plan_exercises
		SET position = $2, sets = $3, reps = $4, weight_kg = $5, duration_minutes = $6, distance_km = $7
		WHERE id = $1`,
		pe.ID, pe.Position, pe.Sets, reps, weight, duration, distance)
	return expectOne(tag, err, "plan exercise")
}

func (q *queries) DeletePlanExercise(ctx context.Context, id int64) error {
	tag, err := q.q.Exec(ctx, `DELETE FROM workout_plan_exercises WHERE id = $1`, id)
	return expectOne(tag, err, "plan exercise")
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/fittrack/fittrack/internal/models"
)

const exerciseColumns = `e.id, e.name, e.category, e.level, COALESCE(e.mechanic, ''),
	COALESCE(e.equipment, ''), e.primary_muscles, e.instructions, e.images, e.video,
	e.owner_id, e.is_public`

func scanExercise(row rowScanner) (*models.Exercise, error) {
	var e models.Exercise
	err := row.Scan(&e.ID, &e.Name, &e.Category, &e.Level, &e.Mechanic, &e.Equipment,
		&e.PrimaryMuscles, &e.Instructions, &e.Images, &e.Video, &e.OwnerID, &e.IsPublic)
	return &e, err
}

func (q *queries) GetExercise(ctx context.Context, id int64) (*models.Exercise, error) {
	e, err := scanExercise(q.q.QueryRow(ctx, `SELECT `+exerciseColumns+` FROM exercises e WHERE e.id = $1`, id))
	if err != nil {
		return nil, notFound(err, "exercise")
	}
	return e, nil
}

// SearchExercises returns exercises visible to f.UserID, ordered by name.
func (q *queries) SearchExercises(ctx context.Context, f models.ExerciseFilter) ([]models.Exercise, error) {
	where := []string{"(e.is_public OR e.owner_id = $1)"}
	args := []any{f.UserID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Query != "" {
		add("e.name ILIKE '%%' || $%d || '%%'", f.Query)
	}
	if f.Category != "" {
		add("e.category = $%d", string(f.Category))
	}
	if f.Level != "" {
		add("e.level = $%d", f.Level)
	}
	if f.Equipment != "" {
		add("e.equipment = $%d", f.Equipment)
	}

	query := `SELECT ` + exerciseColumns + ` FROM exercises e WHERE ` + strings.Join(where, " AND ") + ` ORDER BY e.name, e.id`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := q.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching exercises: %w", err)
	}
	defer rows.Close()

	var out []models.Exercise
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (q *queries) InsertExercise(ctx context.Context, e *models.Exercise) error {
	err := q.q.QueryRow(ctx, `
		INSERT INTO exercises (name, category, level, mechanic, equipment, primary_muscles,
			instructions, images, video, owner_id, is_public)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		e.Name, string(e.Category), e.Level, e.Mechanic, e.Equipment, nonNil(e.PrimaryMuscles),
		nonNil(e.Instructions), nonNil(e.Images), e.Video, e.OwnerID, e.IsPublic).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("inserting exercise: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

package memstore

import (
	"context"

	"github.com/fittrack/fittrack/internal/models"
)

// defaultCatalog mirrors the exercises seeded by the SQL migrations.
var defaultCatalog = []models.Exercise{
	{Name: "Barbell Bench Press", Category: models.CategoryStrength, Level: "intermediate", Mechanic: "compound", Equipment: "barbell", PrimaryMuscles: []string{"chest"}},
	{Name: "Barbell Squat", Category: models.CategoryStrength, Level: "intermediate", Mechanic: "compound", Equipment: "barbell", PrimaryMuscles: []string{"quadriceps"}},
	{Name: "Deadlift", Category: models.CategoryPowerlifting, Level: "intermediate", Mechanic: "compound", Equipment: "barbell", PrimaryMuscles: []string{"lower back"}},
	{Name: "Pull-up", Category: models.CategoryStrength, Level: "beginner", Mechanic: "compound", Equipment: "body only", PrimaryMuscles: []string{"lats"}},
	{Name: "Dumbbell Shoulder Press", Category: models.CategoryStrength, Level: "beginner", Mechanic: "compound", Equipment: "dumbbell", PrimaryMuscles: []string{"shoulders"}},
	{Name: "Running, Treadmill", Category: models.CategoryCardio, Level: "beginner", Equipment: "machine", PrimaryMuscles: []string{"quadriceps"}},
	{Name: "Rowing, Stationary", Category: models.CategoryCardio, Level: "beginner", Equipment: "machine", PrimaryMuscles: []string{"quadriceps"}},
	{Name: "Jump Rope", Category: models.CategoryCardio, Level: "beginner", Equipment: "other", PrimaryMuscles: []string{"calves"}},
	{Name: "Box Jump", Category: models.CategoryPlyometrics, Level: "intermediate", Mechanic: "compound", Equipment: "other", PrimaryMuscles: []string{"quadriceps"}},
	{Name: "Hamstring Stretch", Category: models.CategoryStretching, Level: "beginner", Equipment: "body only", PrimaryMuscles: []string{"hamstrings"}},
}

// SeedCatalog inserts the built-in public exercises.
func (s *Store) SeedCatalog(ctx context.Context) error {
	for _, e := range defaultCatalog {
		e.IsPublic = true
		if err := s.InsertExercise(ctx, &e); err != nil {
			return err
		}
	}
	return nil
}

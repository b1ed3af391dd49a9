package plans

import (
	"fmt"

	"github.com/fittrack/fittrack/internal/models"
)

const (
	minSets, maxSets         = 1, 20
	minReps, maxReps         = 1, 100
	maxWeightKg              = 1000.0
	minDuration, maxDuration = 0.1, 600.0
	maxDistanceKm            = 100.0
)

// Prescription carries optional per-set values for a plan exercise. Unset
// fields keep their current or default value.
type Prescription struct {
	ExerciseID      int64    `json:"exercise_id,omitempty"`
	Sets            *int     `json:"sets,omitempty"`
	Reps            *int     `json:"reps,omitempty"`
	WeightKg        *float64 `json:"weight,omitempty"`
	DurationMinutes *float64 `json:"duration_minutes,omitempty"`
	DistanceKm      *float64 `json:"distance_km,omitempty"`
}

// apply overlays p on the current sets and target and validates the result.
// Fields of the other kind are rejected.
func (p Prescription) apply(sets int, target models.Target) (int, models.Target, error) {
	if p.Sets != nil {
		sets = *p.Sets
	}
	if sets < minSets || sets > maxSets {
		return 0, nil, fmt.Errorf("%w: sets must be between %d and %d", models.ErrValidation, minSets, maxSets)
	}

	switch t := target.(type) {
	case models.StrengthTarget:
		if p.DurationMinutes != nil || p.DistanceKm != nil {
			return 0, nil, fmt.Errorf("%w: duration and distance apply to cardio exercises only", models.ErrValidation)
		}
		if p.Reps != nil {
			t.Reps = *p.Reps
		}
		if p.WeightKg != nil {
			t.WeightKg = *p.WeightKg
		}
		if t.Reps < minReps || t.Reps > maxReps {
			return 0, nil, fmt.Errorf("%w: reps must be between %d and %d", models.ErrValidation, minReps, maxReps)
		}
		if t.WeightKg < 0 || t.WeightKg > maxWeightKg {
			return 0, nil, fmt.Errorf("%w: weight must be between 0 and %g", models.ErrValidation, maxWeightKg)
		}
		return sets, t, nil
	case models.CardioTarget:
		if p.Reps != nil || p.WeightKg != nil {
			return 0, nil, fmt.Errorf("%w: reps and weight apply to strength exercises only", models.ErrValidation)
		}
		if p.DurationMinutes != nil {
			t.DurationMinutes = *p.DurationMinutes
		}
		if p.DistanceKm != nil {
			t.DistanceKm = *p.DistanceKm
		}
		if t.DurationMinutes < minDuration || t.DurationMinutes > maxDuration {
			return 0, nil, fmt.Errorf("%w: duration_minutes must be between %g and %g", models.ErrValidation, minDuration, maxDuration)
		}
		if t.DistanceKm < 0 || t.DistanceKm > maxDistanceKm {
			return 0, nil, fmt.Errorf("%w: distance_km must be between 0 and %g", models.ErrValidation, maxDistanceKm)
		}
		return sets, t, nil
	}
	return 0, nil, fmt.Errorf("%w: unknown prescription kind", models.ErrValidation)
}

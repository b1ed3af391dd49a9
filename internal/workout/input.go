package workout

import (
	"fmt"

	"github.com/fittrack/fittrack/internal/models"
)

// Accepted ranges for logged values.
const (
	maxReps     = 1000
	maxWeightKg = 1000.0
	maxDuration = 600.0
	maxDistance = 100.0
)

// SetInput is one set as submitted by a client. Which of the measurement
// pairs applies depends on the exercise behind PlanExerciseID.
type SetInput struct {
	PlanExerciseID  int64    `json:"wpe_id"`
	SetNumber       *int     `json:"set_number"`
	Completed       bool     `json:"completed"`
	Reps            *int     `json:"reps,omitempty"`
	WeightKg        *float64 `json:"weight,omitempty"`
	DurationMinutes *float64 `json:"duration_minutes,omitempty"`
	DistanceKm      *float64 `json:"distance_km,omitempty"`
}

func (in SetInput) validateKeys() error {
	if in.PlanExerciseID == 0 || in.SetNumber == nil {
		return fmt.Errorf("%w: wpe_id and set_number are required", models.ErrValidation)
	}
	if *in.SetNumber < 0 {
		return fmt.Errorf("%w: set_number must not be negative", models.ErrValidation)
	}
	return nil
}

// payloadFor builds the payload matching the exercise's kind. The pair that
// does not apply is dropped.
func payloadFor(e *models.Exercise, in SetInput) (models.SetPayload, error) {
	switch models.KindOf(e) {
	case models.KindCardio:
		duration, distance := value(in.DurationMinutes), value(in.DistanceKm)
		if in.Completed && duration <= 0 {
			return nil, fmt.Errorf("%w: duration is required for cardio exercises", models.ErrValidation)
		}
		if duration < 0 || duration > maxDuration {
			return nil, fmt.Errorf("%w: duration_minutes must be between 0 and %g", models.ErrValidation, maxDuration)
		}
		if distance < 0 || distance > maxDistance {
			return nil, fmt.Errorf("%w: distance_km must be between 0 and %g", models.ErrValidation, maxDistance)
		}
		return models.CardioSet{DurationMinutes: duration, DistanceKm: distance}, nil
	case models.KindStrength:
		reps, weight := value(in.Reps), value(in.WeightKg)
		if in.Completed && reps <= 0 {
			return nil, fmt.Errorf("%w: reps are required for strength exercises", models.ErrValidation)
		}
		if reps < 0 || reps > maxReps {
			return nil, fmt.Errorf("%w: reps must be between 0 and %d", models.ErrValidation, maxReps)
		}
		if weight < 0 || weight > maxWeightKg {
			return nil, fmt.Errorf("%w: weight must be between 0 and %g", models.ErrValidation, maxWeightKg)
		}
		return models.StrengthSet{Reps: reps, WeightKg: weight}, nil
	}
	return nil, fmt.Errorf("%w: unknown exercise kind", models.ErrValidation)
}

func value[T int | float64](p *T) T {
	if p == nil {
		return 0
	}
	return *p
}

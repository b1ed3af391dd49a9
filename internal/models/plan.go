package models

import (
	"encoding/json"
	"time"
)

// Kind tells strength and cardio prescriptions apart on the wire.
type Kind string

const (
	KindStrength Kind = "strength"
	KindCardio   Kind = "cardio"
)

// KindOf returns the kind used for an exercise.
func KindOf(e *Exercise) Kind {
	if e.IsCardio() {
		return KindCardio
	}
	return KindStrength
}

// Target is the per-set prescription of a plan exercise.
// It is either StrengthTarget or CardioTarget.
type Target interface {
	Kind() Kind
}

// StrengthTarget prescribes reps at a weight for each set.
type StrengthTarget struct {
	Reps     int
	WeightKg float64
}

// CardioTarget prescribes an interval by duration and distance.
type CardioTarget struct {
	DurationMinutes float64
	DistanceKm      float64
}

func (StrengthTarget) Kind() Kind { return KindStrength }
func (CardioTarget) Kind() Kind { return KindCardio }

// Default prescriptions used when an exercise is added without explicit values.
const (
	DefaultStrengthSets     = 3
	DefaultStrengthReps     = 10
	DefaultCardioSets       = 1
	DefaultCardioDuration   = 30.0
	DefaultCardioDistanceKm = 5.0
)

// DefaultPrescription returns the default set count and target for an exercise.
func DefaultPrescription(e *Exercise) (int, Target) {
	if e.IsCardio() {
		return DefaultCardioSets, CardioTarget{DurationMinutes: DefaultCardioDuration, DistanceKm: DefaultCardioDistanceKm}
	}
	return DefaultStrengthSets, StrengthTarget{Reps: DefaultStrengthReps}
}

// WorkoutPlan is a user's ordered list of exercises.
type WorkoutPlan struct {
	ID         int64          `json:"id"`
	UserID     int64          `json:"user_id"`
	Name       string         `json:"name"`
	IsArchived bool           `json:"is_archived"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Exercises  []PlanExercise `json:"exercises,omitempty"`
}

// PlannedSets is the number of sets prescribed across all exercises.
func (p *WorkoutPlan) PlannedSets() int {
	n := 0
	for _, pe := range p.Exercises {
		n += pe.Sets
	}
	return n
}

// PlanExercise links a catalog exercise into a plan with its prescription.
type PlanExercise struct {
	ID         int64
	PlanID     int64
	ExerciseID int64
	Position   int
	Sets       int
	Target     Target
	Exercise   *Exercise
}

type planExerciseJSON struct {
	ID              int64     `json:"id"`
	PlanID          int64     `json:"plan_id"`
	ExerciseID      int64     `json:"exercise_id"`
	Position        int       `json:"position"`
	Sets            int       `json:"sets"`
	Kind            Kind      `json:"kind"`
	Reps            *int      `json:"reps,omitempty"`
	WeightKg        *float64  `json:"weight_kg,omitempty"`
	DurationMinutes *float64  `json:"duration_minutes,omitempty"`
	DistanceKm      *float64  `json:"distance_km,omitempty"`
	Exercise        *Exercise `json:"exercise,omitempty"`
}

// MarshalJSON flattens the target into kind-specific fields.
func (pe PlanExercise) MarshalJSON() ([]byte, error) {
	out := planExerciseJSON{
		ID:         pe.ID,
		PlanID:     pe.PlanID,
		ExerciseID: pe.ExerciseID,
		Position:   pe.Position,
		Sets:       pe.Sets,
		Exercise:   pe.Exercise,
	}
	switch t := pe.Target.(type) {
	case StrengthTarget:
		out.Kind = KindStrength
		out.Reps = &t.Reps
		out.WeightKg = &t.WeightKg
	case CardioTarget:
		out.Kind = KindCardio
		out.DurationMinutes = &t.DurationMinutes
		out.DistanceKm = &t.DistanceKm
	}
	return json.Marshal(out)
}

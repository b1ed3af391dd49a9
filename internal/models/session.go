package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SessionSource records how a session came to exist.
type SessionSource string

const (
	SourceTracked  SessionSource = "tracked"
	SourceCalendar SessionSource = "calendar"
)

// SessionState is the lifecycle position of a WorkoutSession.
type SessionState string

const (
	StateActive    SessionState = "active"
	StateCompleted SessionState = "completed"
	StateArchived  SessionState = "archived"
)

// WorkoutSession is one timed execution of a plan.
type WorkoutSession struct {
	ID              uuid.UUID     `json:"id"`
	UserID          int64         `json:"user_id"`
	PlanID          int64         `json:"plan_id"`
	StartedAt       time.Time     `json:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	IsCompleted     bool          `json:"is_completed"`
	IsArchived      bool          `json:"is_archived"`
	Source          SessionSource `json:"source"`
	CalendarEventID *int64        `json:"calendar_event_id,omitempty"`
	TotalSets       int           `json:"total_sets"`
	TotalReps       int           `json:"total_reps"`
	TotalWeightKg   float64       `json:"total_weight_kg"`
	DurationMinutes int           `json:"duration_minutes"`
}

// State derives the lifecycle state from the flags.
func (s *WorkoutSession) State() SessionState {
	switch {
	case s.IsArchived:
		return StateArchived
	case s.IsCompleted:
		return StateCompleted
	default:
		return StateActive
	}
}

// SetPayload is the measured content of a set: StrengthSet or CardioSet.
type SetPayload interface {
	Kind() Kind
}

// StrengthSet is a set of reps at a weight.
type StrengthSet struct {
	Reps     int
	WeightKg float64
}

// CardioSet is a timed interval with an optional distance.
type CardioSet struct {
	DurationMinutes float64
	DistanceKm      float64
}

func (StrengthSet) Kind() Kind { return KindStrength }
func (CardioSet) Kind() Kind { return KindCardio }

// SetLog is one logged set or interval inside a session.
type SetLog struct {
	ID             int64
	SessionID      uuid.UUID
	UserID         int64
	PlanID         int64
	PlanExerciseID int64
	ExerciseID     int64
	SetNumber      int
	Completed      bool
	CompletedAt    *time.Time
	Payload        SetPayload
}

// RepsAndWeight returns the values used for totals and averages.
// A cardio interval counts as one rep with no weight.
func (l *SetLog) RepsAndWeight() (int, float64) {
	switch p := l.Payload.(type) {
	case StrengthSet:
		return p.Reps, p.WeightKg
	case CardioSet:
		return 1, 0
	default:
		return 0, 0
	}
}

type setLogJSON struct {
	ID              int64      `json:"id"`
	SessionID       uuid.UUID  `json:"session_id"`
	PlanExerciseID  int64      `json:"plan_exercise_id"`
	ExerciseID      int64      `json:"exercise_id"`
	SetNumber       int        `json:"set_number"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Kind            Kind       `json:"kind"`
	Reps            int        `json:"reps"`
	WeightKg        float64    `json:"weight_kg"`
	DurationMinutes *float64   `json:"duration_minutes,omitempty"`
	DistanceKm      *float64   `json:"distance_km,omitempty"`
}

// MarshalJSON flattens the payload into kind-specific fields.
func (l SetLog) MarshalJSON() ([]byte, error) {
	out := setLogJSON{
		ID:             l.ID,
		SessionID:      l.SessionID,
		PlanExerciseID: l.PlanExerciseID,
		ExerciseID:     l.ExerciseID,
		SetNumber:      l.SetNumber,
		Completed:      l.Completed,
		CompletedAt:    l.CompletedAt,
	}
	out.Reps, out.WeightKg = l.RepsAndWeight()
	switch p := l.Payload.(type) {
	case StrengthSet:
		out.Kind = KindStrength
	case CardioSet:
		out.Kind = KindCardio
		out.DurationMinutes = &p.DurationMinutes
		out.DistanceKm = &p.DistanceKm
	}
	return json.Marshal(out)
}

// ExerciseLog is the per-exercise summary written once when a session completes.
type ExerciseLog struct {
	ID          int64     `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	UserID      int64     `json:"user_id"`
	PlanID      int64     `json:"plan_id"`
	ExerciseID  int64     `json:"exercise_id"`
	Sets        int       `json:"sets"`
	Reps        float64   `json:"reps"`
	WeightKg    float64   `json:"weight_kg"`
	CompletedAt time.Time `json:"completed_at"`
}

// SessionFilter selects sessions of one user. Nil fields do not filter.
type SessionFilter struct {
	UserID      int64
	PlanID      *int64
	Completed   *bool
	Archived    *bool
	StartedFrom *time.Time
	StartedTo   *time.Time
	Limit       int
	Offset      int
}

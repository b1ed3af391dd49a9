package models

import "time"

// EventType classifies calendar events.
type EventType string

const (
	EventWorkout   EventType = "workout"
	EventCardio    EventType = "cardio"
	EventRest      EventType = "rest"
	EventNutrition EventType = "nutrition"
	EventOther     EventType = "other"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventWorkout, EventCardio, EventRest, EventNutrition, EventOther:
		return true
	}
	return false
}

// IsTraining reports whether completing an event of this type counts as a workout.
func (t EventType) IsTraining() bool {
	return t == EventWorkout || t == EventCardio
}

// EventStatus is scheduled until the user checks the event off.
type EventStatus string

const (
	EventScheduled EventStatus = "scheduled"
	EventCompleted EventStatus = "completed"
)

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	return s == EventScheduled || s == EventCompleted
}

// Event defaults.
const (
	DefaultEventColor    = "#FF6B35"
	DefaultEventDuration = 60 * time.Minute
)

// Frequency is the repeat unit of a recurring event.
type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
)

// Recurrence describes how a master event repeats. Until and Count both
// bound the series; zero values mean unbounded.
type Recurrence struct {
	Freq     Frequency      `json:"freq"`
	Interval int            `json:"interval"`
	Weekdays []time.Weekday `json:"weekdays,omitempty"`
	Until    *time.Time     `json:"until,omitempty"`
	Count    int            `json:"count,omitempty"`
}

// CalendarEvent is a scheduled entry. Children of a recurring master carry
// ParentID and the OccurrenceStart they replace.
type CalendarEvent struct {
	ID              int64       `json:"id"`
	UserID          int64       `json:"user_id"`
	Title           string      `json:"title"`
	Description     string      `json:"description,omitempty"`
	Start           time.Time   `json:"start"`
	End             *time.Time  `json:"end,omitempty"`
	Type            EventType   `json:"event_type"`
	Status          EventStatus `json:"status"`
	Color           string      `json:"color"`
	PlanID          *int64      `json:"workout_plan_id,omitempty"`
	Recurrence      *Recurrence `json:"recurrence,omitempty"`
	ParentID        *int64      `json:"parent_id,omitempty"`
	OccurrenceStart *time.Time  `json:"occurrence_start,omitempty"`
	Virtual         bool        `json:"virtual,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Duration is End-Start, or DefaultEventDuration when the event has no end.
func (e *CalendarEvent) Duration() time.Duration {
	if e.End == nil || !e.End.After(e.Start) {
		return DefaultEventDuration
	}
	return e.End.Sub(e.Start)
}

// EffectiveEnd is the end used for window overlap checks.
func (e *CalendarEvent) EffectiveEnd() time.Time {
	return e.Start.Add(e.Duration())
}

// EventFilter selects events of one user. Nil fields do not filter.
type EventFilter struct {
	UserID   int64
	From     *time.Time
	To       *time.Time
	Status   *EventStatus
	ParentID *int64

	// Recurring selects masters that carry a recurrence rule.
	Recurring bool
}

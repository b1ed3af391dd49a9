// Package calendar manages calendar events, expands recurring series and
// bridges completed training events into workout sessions.
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fittrack/fittrack/internal/metrics"
	"github.com/fittrack/fittrack/internal/models"
	"github.com/fittrack/fittrack/internal/storage"
)

const maxTitleLength = 200

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

type Service struct {
	store   storage.Store
	metrics *metrics.Manager
	log     *slog.Logger
	loc     *time.Location
	now     func() time.Time
}

// NewService returns a calendar service. Dates are matched in loc.
func NewService(store storage.Store, m *metrics.Manager, log *slog.Logger, loc *time.Location) *Service {
	return &Service{store: store, metrics: m, log: log, loc: loc, now: time.Now}
}

// EventInput is a create or partial update request. Nil fields are left
// unchanged on update. A PlanID of 0 clears the plan; a Recurrence with an
// empty Freq clears the rule.
type EventInput struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Start       *time.Time          `json:"start"`
	End         *time.Time          `json:"end"`
	Type        *models.EventType   `json:"event_type"`
	Status      *models.EventStatus `json:"status"`
	Color       *string             `json:"color"`
	PlanID      *int64              `json:"workout_plan_id"`
	Recurrence  *models.Recurrence  `json:"recurrence"`
}

func (s *Service) owned(ctx context.Context, q storage.Queries, userID, eventID int64) (*models.CalendarEvent, error) {
	e, err := q.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.UserID != userID {
		return nil, fmt.Errorf("%w: calendar event %d", models.ErrForbidden, eventID)
	}
	return e, nil
}

// apply overlays in on e and validates the result.
func (s *Service) apply(ctx context.Context, q storage.Queries, e *models.CalendarEvent, in EventInput) error {
	if in.Title != nil {
		e.Title = strings.TrimSpace(*in.Title)
	}
	if e.Title == "" || len(e.Title) > maxTitleLength {
		return fmt.Errorf("%w: title must be 1 to %d characters", models.ErrValidation, maxTitleLength)
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.Start != nil {
		e.Start = in.Start.UTC()
	}
	if e.Start.IsZero() {
		return fmt.Errorf("%w: start is required", models.ErrValidation)
	}
	if in.End != nil {
		end := in.End.UTC()
		e.End = &end
	}
	if e.End != nil && !e.End.After(e.Start) {
		return fmt.Errorf("%w: end must be after start", models.ErrValidation)
	}
	if in.Type != nil {
		e.Type = *in.Type
	}
	if !e.Type.Valid() {
		return fmt.Errorf("%w: unknown event type %q", models.ErrValidation, e.Type)
	}
	if in.Status != nil {
		e.Status = *in.Status
	}
	if !e.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", models.ErrValidation, e.Status)
	}
	if in.Color != nil {
		e.Color = *in.Color
	}
	if !colorPattern.MatchString(e.Color) {
		return fmt.Errorf("%w: color must look like #RRGGBB", models.ErrValidation)
	}

	if in.PlanID != nil {
		e.PlanID = nil
		if *in.PlanID != 0 {
			plan, err := q.GetPlan(ctx, *in.PlanID)
			if err != nil {
				return err
			}
			if plan.UserID != e.UserID {
				return fmt.Errorf("%w: plan %d", models.ErrForbidden, plan.ID)
			}
			e.PlanID = &plan.ID
		}
	}

	if in.Recurrence != nil {
		e.Recurrence = nil
		if in.Recurrence.Freq != "" {
			r := *in.Recurrence
			e.Recurrence = &r
		}
	}
	if e.Recurrence != nil {
		if e.ParentID != nil {
			return fmt.Errorf("%w: an occurrence cannot recur", models.ErrValidation)
		}
		if e.Status == models.EventCompleted {
			return fmt.Errorf("%w: complete occurrences of a series individually", models.ErrValidation)
		}
		if err := ValidateRecurrence(e.Recurrence, e.Start); err != nil {
			return err
		}
	}
	return nil
}

// Create stores a new event for userID.
func (s *Service) Create(ctx context.Context, userID int64, in EventInput) (*models.CalendarEvent, error) {
	e := &models.CalendarEvent{
		UserID: userID,
		Type:   models.EventWorkout,
		Status: models.EventScheduled,
		Color:  models.DefaultEventColor,
	}
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		if err := s.apply(ctx, q, e, in); err != nil {
			return err
		}
		return q.InsertEvent(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("calendar event created", "event_id", e.ID, "user_id", userID, "type", e.Type)
	return e, nil
}

// Update applies a partial update to an owned event.
func (s *Service) Update(ctx context.Context, userID, eventID int64, in EventInput) (*models.CalendarEvent, error) {
	var e *models.CalendarEvent
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		var err error
		e, err = s.owned(ctx, q, userID, eventID)
		if err != nil {
			return err
		}
		if err := s.apply(ctx, q, e, in); err != nil {
			return err
		}
		return q.UpdateEvent(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Delete removes an owned event. Deleting a series removes its materialized
// occurrences too.
func (s *Service) Delete(ctx context.Context, userID, eventID int64) error {
	return s.store.WithTx(ctx, func(q storage.Queries) error {
		if _, err := s.owned(ctx, q, userID, eventID); err != nil {
			return err
		}
		return q.DeleteEvent(ctx, eventID)
	})
}

// List returns the events overlapping [from, to] with recurring series
// expanded into occurrences. Occurrences that were materialized are returned
// as their stored child event instead.
func (s *Service) List(ctx context.Context, userID int64, from, to time.Time) ([]models.CalendarEvent, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: end must be after start", models.ErrValidation)
	}

	stored, err := s.store.ListEvents(ctx, models.EventFilter{UserID: userID, From: &from, To: &to})
	if err != nil {
		return nil, err
	}
	out := make([]models.CalendarEvent, 0, len(stored))
	for _, e := range stored {
		if e.Recurrence == nil {
			out = append(out, e)
		}
	}

	masters, err := s.store.ListEvents(ctx, models.EventFilter{UserID: userID, To: &to, Recurring: true})
	if err != nil {
		return nil, err
	}
	for i := range masters {
		master := &masters[i]
		materialized, err := materialized(ctx, s.store, userID, master.ID)
		if err != nil {
			return nil, err
		}
		for _, start := range Occurrences(master, s.loc, from, to) {
			if materialized[start.Unix()] {
				continue
			}
			out = append(out, occurrence(master, start))
		}
	}

	sortEvents(out)
	return out, nil
}

// materialized returns the occurrence starts of a series that have a child event.
func materialized(ctx context.Context, q storage.Queries, userID, masterID int64) (map[int64]bool, error) {
	children, err := q.ListEvents(ctx, models.EventFilter{UserID: userID, ParentID: &masterID})
	if err != nil {
		return nil, err
	}
	out := make(map[int64]bool, len(children))
	for _, c := range children {
		if c.OccurrenceStart != nil {
			out[c.OccurrenceStart.Unix()] = true
		}
	}
	return out, nil
}

func sortEvents(events []models.CalendarEvent) {
	slices.SortStableFunc(events, func(a, b models.CalendarEvent) int {
		return a.Start.Compare(b.Start)
	})
}

// Completion is the outcome of completing an event.
type Completion struct {
	Event   *models.CalendarEvent  `json:"event"`
	Session *models.WorkoutSession `json:"session,omitempty"`
}

// Complete marks an event completed. For a recurring series, occurrence
// names the start to complete and a completed child event is materialized
// for it. Completing a training event that references a plan synthesizes a
// completed workout session unless one already exists for that plan and day.
// Completing an already completed event changes nothing.
func (s *Service) Complete(ctx context.Context, userID, eventID int64, occurrence *time.Time) (*Completion, error) {
	result := &Completion{}
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		e, err := s.owned(ctx, q, userID, eventID)
		if err != nil {
			return err
		}
		if e.Recurrence != nil {
			if occurrence == nil {
				return fmt.Errorf("%w: occurrence_start is required to complete a recurring event", models.ErrValidation)
			}
			e, err = s.materialize(ctx, q, e, *occurrence)
			if err != nil {
				return err
			}
		}
		result.Event = e
		if e.Status == models.EventCompleted {
			return nil
		}

		e.Status = models.EventCompleted
		if err := q.UpdateEvent(ctx, e); err != nil {
			return err
		}
		result.Session, err = s.synthesize(ctx, q, e)
		return err
	})
	if err != nil {
		return nil, err
	}
	if result.Session != nil {
		s.metrics.CounterSyntheticSessions.WithLabelValues("complete").Inc()
	}
	s.log.Debug("calendar event completed", "event_id", result.Event.ID, "user_id", userID,
		"synthetic_session", result.Session != nil)
	return result, nil
}

// materialize returns the child event for one occurrence of a series,
// creating it when it does not exist yet.
func (s *Service) materialize(ctx context.Context, q storage.Queries, master *models.CalendarEvent, at time.Time) (*models.CalendarEvent, error) {
	at = at.UTC()
	children, err := q.ListEvents(ctx, models.EventFilter{UserID: master.UserID, ParentID: &master.ID})
	if err != nil {
		return nil, err
	}
	for i := range children {
		if children[i].OccurrenceStart != nil && children[i].OccurrenceStart.Equal(at) {
			return &children[i], nil
		}
	}

	match := false
	for _, start := range Occurrences(master, s.loc, at, at) {
		if start.Equal(at) {
			match = true
			break
		}
	}
	if !match {
		return nil, fmt.Errorf("%w: %s is not an occurrence of event %d", models.ErrValidation, at.Format(time.RFC3339), master.ID)
	}

	child := occurrence(master, at)
	child.ID = 0
	child.Virtual = false
	if err := q.InsertEvent(ctx, &child); err != nil {
		return nil, err
	}
	return &child, nil
}

// synthesize creates a completed session for a completed training event
// linked to a plan. It returns nil when the event does not qualify or a
// session for the same plan and day exists.
func (s *Service) synthesize(ctx context.Context, q storage.Queries, e *models.CalendarEvent) (*models.WorkoutSession, error) {
	if !e.Type.IsTraining() || e.PlanID == nil {
		return nil, nil
	}
	exists, err := s.hasSession(ctx, q, e)
	if err != nil || exists {
		return nil, err
	}

	now := s.now().UTC()
	eventID := e.ID
	session := &models.WorkoutSession{
		ID:              uuid.New(),
		UserID:          e.UserID,
		PlanID:          *e.PlanID,
		StartedAt:       e.Start,
		CompletedAt:     &now,
		IsCompleted:     true,
		Source:          models.SourceCalendar,
		CalendarEventID: &eventID,
		DurationMinutes: int(math.Round(e.Duration().Minutes())),
	}
	if err := q.InsertSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// hasSession reports whether a completed session for the event's plan
// started on the event's day.
func (s *Service) hasSession(ctx context.Context, q storage.Queries, e *models.CalendarEvent) (bool, error) {
	local := e.Start.In(s.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)
	completed := true
	sessions, err := q.ListSessions(ctx, models.SessionFilter{
		UserID:      e.UserID,
		PlanID:      e.PlanID,
		Completed:   &completed,
		StartedFrom: &dayStart,
		StartedTo:   &dayEnd,
		Limit:       1,
	})
	if err != nil {
		return false, err
	}
	return len(sessions) > 0, nil
}

// SyncWorkoutStats backfills synthetic sessions for completed training
// events that have no session for their plan and day. Running it again
// without new completions syncs nothing.
func (s *Service) SyncWorkoutStats(ctx context.Context, userID int64) (int, error) {
	synced := 0
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		status := models.EventCompleted
		events, err := q.ListEvents(ctx, models.EventFilter{UserID: userID, Status: &status})
		if err != nil {
			return err
		}
		for i := range events {
			session, err := s.synthesize(ctx, q, &events[i])
			if err != nil {
				return fmt.Errorf("syncing event %d: %w", events[i].ID, err)
			}
			if session != nil {
				synced++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.metrics.CounterSyntheticSessions.WithLabelValues("sync").Add(float64(synced))
	s.log.Info("workout stats synced", "user_id", userID, "synced_count", synced)
	return synced, nil
}

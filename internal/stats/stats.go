// Package stats derives training statistics from completed sessions and
// completed calendar events.
package stats

import (
	"context"
	"slices"
	"time"

	"github.com/fittrack/fittrack/internal/models"
	"github.com/fittrack/fittrack/internal/storage"
)

type Service struct {
	store storage.Queries
	loc   *time.Location
	now   func() time.Time
}

// NewService returns a stats service that buckets days and weeks in loc.
func NewService(store storage.Queries, loc *time.Location) *Service {
	return &Service{store: store, loc: loc, now: time.Now}
}

// Dashboard is the summary shown on the home screen.
type Dashboard struct {
	Streak            int                    `json:"streak"`
	WorkoutsThisWeek  int                    `json:"workouts_this_week"`
	WorkoutsThisMonth int                    `json:"workouts_this_month"`
	WeeklyTarget      *int                   `json:"weekly_target,omitempty"`
	TotalSessions     int                    `json:"total_sessions"`
	LastSession       *models.WorkoutSession `json:"last_session,omitempty"`
}

// Activity holds the dates of a user's completed training.
type Activity struct {
	Sessions []models.WorkoutSession
	// SessionDates are completion times of Sessions.
	SessionDates []time.Time
	// EventDates are start times of completed workout and cardio events.
	EventDates []time.Time
}

// Activity loads every completed session and completed training event of a user.
func (s *Service) Activity(ctx context.Context, userID int64) (*Activity, error) {
	completed := true
	sessions, err := s.store.ListSessions(ctx, models.SessionFilter{UserID: userID, Completed: &completed})
	if err != nil {
		return nil, err
	}
	status := models.EventCompleted
	events, err := s.store.ListEvents(ctx, models.EventFilter{UserID: userID, Status: &status})
	if err != nil {
		return nil, err
	}

	a := &Activity{Sessions: sessions}
	for _, ws := range sessions {
		when := ws.StartedAt
		if ws.CompletedAt != nil {
			when = *ws.CompletedAt
		}
		a.SessionDates = append(a.SessionDates, when)
	}
	for _, e := range events {
		if e.Type.IsTraining() {
			a.EventDates = append(a.EventDates, e.Start)
		}
	}
	return a, nil
}

// Dashboard computes the streak and the week and month counts. Counts add
// sessions and events without deduplication; the streak uses the union of
// their dates.
func (s *Service) Dashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	a, err := s.Activity(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	week := WeekStart(now, s.loc)
	month := MonthStart(now, s.loc)
	weekly := CountBetween(a.SessionDates, week, week.AddDate(0, 0, 7)) +
		CountBetween(a.EventDates, week, week.AddDate(0, 0, 7))
	monthly := CountBetween(a.SessionDates, month, month.AddDate(0, 1, 0)) +
		CountBetween(a.EventDates, month, month.AddDate(0, 1, 0))

	dates := append(slices.Clone(a.SessionDates), a.EventDates...)
	d := &Dashboard{
		Streak:            Streak(dates, now, s.loc),
		WorkoutsThisWeek:  weekly,
		WorkoutsThisMonth: monthly,
		WeeklyTarget:      user.WeeklyWorkouts,
		TotalSessions:     len(a.Sessions),
	}
	if len(a.Sessions) > 0 {
		last := a.Sessions[0]
		d.LastSession = &last
	}
	return d, nil
}

// Package workout runs the workout session lifecycle: start a session against
// a plan, log sets into it, complete it and derive exercise logs.
package workout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/fittrack/fittrack/internal/activesession"
	"github.com/fittrack/fittrack/internal/metrics"
	"github.com/fittrack/fittrack/internal/models"
	"github.com/fittrack/fittrack/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// HistoryPageSize is the number of sessions per history page.
const HistoryPageSize = 10

// ActiveSessionError reports that the user already has a session in progress.
type ActiveSessionError struct {
	SessionID uuid.UUID
}

func (e *ActiveSessionError) Error() string {
	return fmt.Sprintf("workout session %s is still active", e.SessionID)
}

func (e *ActiveSessionError) Unwrap() error { return models.ErrConflict }

type Service struct {
	store    storage.Store
	pointers activesession.Store
	metrics  *metrics.Manager
	log      *slog.Logger
	now      func() time.Time
}

func NewService(store storage.Store, pointers activesession.Store, m *metrics.Manager, log *slog.Logger) *Service {
	return &Service{store: store, pointers: pointers, metrics: m, log: log, now: time.Now}
}

// Start opens a new session on a plan the user owns and points the user's
// active session at it.
func (s *Service) Start(ctx context.Context, userID, planID int64) (*models.WorkoutSession, error) {
	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.UserID != userID {
		return nil, fmt.Errorf("%w: plan %d", models.ErrForbidden, planID)
	}
	if plan.IsArchived {
		return nil, fmt.Errorf("%w: plan %d is archived", models.ErrValidation, planID)
	}

	session := &models.WorkoutSession{
		ID:        uuid.New(),
		UserID:    userID,
		PlanID:    planID,
		StartedAt: s.now().UTC(),
		Source:    models.SourceTracked,
	}
	if err := s.claim(ctx, userID, session.ID); err != nil {
		return nil, err
	}
	if err := s.store.InsertSession(ctx, session); err != nil {
		if _, rerr := s.pointers.Release(ctx, userID, session.ID); rerr != nil {
			err = multierr.Append(err, rerr)
		}
		return nil, err
	}

	s.metrics.CounterSessionsStarted.Inc()
	s.log.Debug("workout session started", "session_id", session.ID, "plan_id", planID, "user_id", userID)
	return session, nil
}

// claim points the user's active session at id. A pointer to a session that
// is completed or gone is replaced; a pointer to a live session is a conflict.
func (s *Service) claim(ctx context.Context, userID int64, id uuid.UUID) error {
	ok, err := s.pointers.Claim(ctx, userID, id)
	if err != nil || ok {
		return err
	}

	current, found, err := s.pointers.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !found {
		// Expired between the two calls.
		ok, err = s.pointers.Claim(ctx, userID, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: concurrent workout start", models.ErrConflict)
		}
		return nil
	}

	existing, err := s.store.GetSession(ctx, current)
	switch {
	case err == nil && existing.State() == models.StateActive:
		return &ActiveSessionError{SessionID: current}
	case err != nil && !errors.Is(err, models.ErrNotFound):
		return err
	}

	ok, err = s.pointers.Replace(ctx, userID, current, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: concurrent workout start", models.ErrConflict)
	}
	s.log.Debug("replaced stale active session pointer", "user_id", userID, "stale_session_id", current)
	return nil
}

// Active returns the session the user is currently logging, or nil.
func (s *Service) Active(ctx context.Context, userID int64) (*models.WorkoutSession, error) {
	id, found, err := s.pointers.Get(ctx, userID)
	if err != nil || !found {
		return nil, err
	}
	session, err := s.store.GetSession(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if session.UserID != userID || session.State() != models.StateActive {
		return nil, nil
	}
	return session, nil
}

// activeSession resolves the pointer to a session the caller may write to.
func (s *Service) activeSession(ctx context.Context, q storage.Queries, userID int64) (*models.WorkoutSession, error) {
	id, found, err := s.pointers.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrNoActiveSession
	}
	session, err := q.GetSessionForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("%w: session %s", models.ErrForbidden, id)
	}
	if session.IsCompleted {
		return nil, fmt.Errorf("%w: session %s is already completed", models.ErrConflict, id)
	}
	return session, nil
}

// SaveSet upserts one set into the active session and refreshes its totals.
func (s *Service) SaveSet(ctx context.Context, userID int64, in SetInput) (*models.SetLog, *models.WorkoutSession, error) {
	if err := in.validateKeys(); err != nil {
		return nil, nil, err
	}

	var (
		saved   *models.SetLog
		session *models.WorkoutSession
	)
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		var err error
		session, err = s.activeSession(ctx, q, userID)
		if err != nil {
			return err
		}
		saved, err = s.saveSet(ctx, q, userID, session, in)
		if err != nil {
			return err
		}
		return s.recompute(ctx, q, session)
	})
	if err != nil {
		return nil, nil, err
	}

	s.metrics.CounterSetsSaved.Inc()
	s.log.Debug("set saved", "session_id", session.ID, "wpe_id", in.PlanExerciseID, "set_number", *in.SetNumber)
	return saved, session, nil
}

// SaveSets replaces every set of the active session with the submitted batch.
// Either the whole batch is stored or nothing is.
func (s *Service) SaveSets(ctx context.Context, userID, planID int64, inputs []SetInput) (*models.WorkoutSession, error) {
	for _, in := range inputs {
		if err := in.validateKeys(); err != nil {
			return nil, err
		}
	}

	var session *models.WorkoutSession
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		var err error
		session, err = s.activeSession(ctx, q, userID)
		if err != nil {
			return err
		}
		if session.PlanID != planID {
			return fmt.Errorf("%w: active session belongs to plan %d", models.ErrValidation, session.PlanID)
		}
		if err := q.DeleteSetLogs(ctx, session.ID); err != nil {
			return err
		}
		for _, in := range inputs {
			if _, err := s.saveSet(ctx, q, userID, session, in); err != nil {
				return err
			}
		}
		return s.recompute(ctx, q, session)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CounterSetsSaved.Add(float64(len(inputs)))
	s.log.Debug("set batch saved", "session_id", session.ID, "sets", len(inputs))
	return session, nil
}

func (s *Service) saveSet(ctx context.Context, q storage.Queries, userID int64, session *models.WorkoutSession, in SetInput) (*models.SetLog, error) {
	pe, err := q.GetPlanExercise(ctx, in.PlanExerciseID)
	if err != nil {
		return nil, err
	}
	plan, err := q.GetPlan(ctx, pe.PlanID)
	if err != nil {
		return nil, err
	}
	if plan.UserID != userID {
		return nil, fmt.Errorf("%w: plan exercise %d", models.ErrForbidden, pe.ID)
	}
	if pe.PlanID != session.PlanID {
		return nil, fmt.Errorf("%w: plan exercise %d is not part of the session's plan", models.ErrValidation, pe.ID)
	}

	payload, err := payloadFor(pe.Exercise, in)
	if err != nil {
		return nil, err
	}

	l := &models.SetLog{
		SessionID:      session.ID,
		UserID:         userID,
		PlanID:         session.PlanID,
		PlanExerciseID: pe.ID,
		ExerciseID:     pe.ExerciseID,
		SetNumber:      *in.SetNumber,
		Completed:      in.Completed,
		Payload:        payload,
	}
	if in.Completed {
		now := s.now().UTC()
		l.CompletedAt = &now
	}
	if err := q.UpsertSetLog(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// recompute rebuilds the session totals from its completed set logs.
func (s *Service) recompute(ctx context.Context, q storage.Queries, session *models.WorkoutSession) error {
	logs, err := q.ListSetLogs(ctx, session.ID, true)
	if err != nil {
		return err
	}
	ApplyTotals(session, logs)
	return q.UpdateSessionTotals(ctx, session)
}

// Completion is the outcome of completing a session.
type Completion struct {
	Session      *models.WorkoutSession `json:"session"`
	ExerciseLogs []models.ExerciseLog   `json:"exercise_logs"`
}

// Complete finishes the active session on planID, writes its totals and one
// exercise log per exercise, and clears the active-session pointer.
func (s *Service) Complete(ctx context.Context, userID, planID int64) (*Completion, error) {
	id, found, err := s.pointers.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrNoActiveSession
	}

	result := &Completion{}
	err = s.store.WithTx(ctx, func(q storage.Queries) error {
		session, err := q.GetSessionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if session.UserID != userID {
			return fmt.Errorf("%w: session %s", models.ErrForbidden, id)
		}
		plan, err := q.GetPlan(ctx, session.PlanID)
		if err != nil {
			return err
		}
		if plan.UserID != userID {
			return fmt.Errorf("%w: plan %d", models.ErrForbidden, plan.ID)
		}
		if plan.ID != planID {
			return fmt.Errorf("%w: active session belongs to plan %d", models.ErrValidation, plan.ID)
		}
		if session.IsCompleted {
			return fmt.Errorf("%w: session %s is already completed", models.ErrConflict, id)
		}

		now := s.now().UTC()
		session.CompletedAt = &now
		session.IsCompleted = true

		logs, err := q.ListSetLogs(ctx, session.ID, true)
		if err != nil {
			return err
		}
		ApplyTotals(session, logs)
		if err := q.UpdateSession(ctx, session); err != nil {
			return err
		}

		for _, agg := range AggregateByExercise(logs) {
			el := models.ExerciseLog{
				SessionID:   session.ID,
				UserID:      userID,
				PlanID:      session.PlanID,
				ExerciseID:  agg.ExerciseID,
				Sets:        agg.Sets,
				Reps:        agg.MeanReps,
				WeightKg:    agg.MeanWeightKg,
				CompletedAt: now,
			}
			if err := q.InsertExerciseLog(ctx, &el); err != nil {
				return err
			}
			result.ExerciseLogs = append(result.ExerciseLogs, el)
		}
		result.Session = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The session is committed; a pointer left behind is stale and gets replaced on the next start.
	if _, err := s.pointers.Release(ctx, userID, id); err != nil {
		s.log.Warn("releasing active session pointer", "session_id", id, "error", err)
	}
	s.metrics.CounterSessionsCompleted.Inc()
	s.log.Info("workout session completed", "session_id", id, "total_sets", result.Session.TotalSets,
		"duration_minutes", result.Session.DurationMinutes)
	return result, nil
}

// Abandon clears the active-session pointer without completing the session.
func (s *Service) Abandon(ctx context.Context, userID int64) error {
	id, found, err := s.pointers.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !found {
		return models.ErrNoActiveSession
	}
	if _, err := s.pointers.Release(ctx, userID, id); err != nil {
		return err
	}
	s.log.Debug("workout session abandoned", "session_id", id, "user_id", userID)
	return nil
}

// Archive hides a completed session from the history list.
func (s *Service) Archive(ctx context.Context, userID int64, sessionID uuid.UUID) (*models.WorkoutSession, error) {
	var session *models.WorkoutSession
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		var err error
		session, err = q.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.UserID != userID {
			return fmt.Errorf("%w: session %s", models.ErrForbidden, sessionID)
		}
		switch session.State() {
		case models.StateArchived:
			return nil
		case models.StateActive:
			return fmt.Errorf("%w: only completed sessions can be archived", models.ErrConflict)
		}
		session.IsArchived = true
		return q.UpdateSession(ctx, session)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) owned(ctx context.Context, userID int64, sessionID uuid.UUID) (*models.WorkoutSession, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("%w: session %s", models.ErrForbidden, sessionID)
	}
	return session, nil
}

// Detail is a session with its completed sets grouped per exercise.
type Detail struct {
	Session   *models.WorkoutSession `json:"session"`
	Exercises []ExerciseGroup        `json:"exercises"`
}

// Detail loads a session the user owns with per-exercise groups.
func (s *Service) Detail(ctx context.Context, userID int64, sessionID uuid.UUID) (*Detail, error) {
	session, err := s.owned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	logs, err := s.store.ListSetLogs(ctx, sessionID, true)
	if err != nil {
		return nil, err
	}
	groups := GroupSets(logs)
	for i := range groups {
		e, err := s.store.GetExercise(ctx, groups[i].Exercise.ID)
		if err != nil {
			return nil, err
		}
		groups[i].Exercise = e
	}
	return &Detail{Session: session, Exercises: groups}, nil
}

// Progress reports how far a session is through its plan.
type Progress struct {
	CompletedSets      int     `json:"completed_sets"`
	TotalPlannedSets   int     `json:"total_planned_sets"`
	ProgressPercentage float64 `json:"progress_percentage"`
	ElapsedMinutes     float64 `json:"session_duration"`
}

func (s *Service) Progress(ctx context.Context, userID int64, sessionID uuid.UUID) (*Progress, error) {
	session, err := s.owned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	logs, err := s.store.ListSetLogs(ctx, sessionID, true)
	if err != nil {
		return nil, err
	}
	exercises, err := s.store.ListPlanExercises(ctx, session.PlanID)
	if err != nil {
		return nil, err
	}
	plan := models.WorkoutPlan{Exercises: exercises}

	p := &Progress{CompletedSets: len(logs), TotalPlannedSets: plan.PlannedSets()}
	if p.TotalPlannedSets > 0 {
		p.ProgressPercentage = math.Round(float64(p.CompletedSets)/float64(p.TotalPlannedSets)*1000) / 10
	}
	end := s.now()
	if session.CompletedAt != nil {
		end = *session.CompletedAt
	}
	p.ElapsedMinutes = math.Round(end.Sub(session.StartedAt).Minutes()*10) / 10
	return p, nil
}

// History lists completed, non-archived sessions newest first. Pages start at 1.
func (s *Service) History(ctx context.Context, userID int64, page int) ([]models.WorkoutSession, error) {
	if page < 1 {
		page = 1
	}
	completed, archived := true, false
	return s.store.ListSessions(ctx, models.SessionFilter{
		UserID:    userID,
		Completed: &completed,
		Archived:  &archived,
		Limit:     HistoryPageSize,
		Offset:    (page - 1) * HistoryPageSize,
	})
}

// Between lists completed sessions started in [from, to), newest first,
// archived ones included.
func (s *Service) Between(ctx context.Context, userID int64, from, to time.Time) ([]models.WorkoutSession, error) {
	completed := true
	return s.store.ListSessions(ctx, models.SessionFilter{
		UserID:      userID,
		Completed:   &completed,
		StartedFrom: &from,
		StartedTo:   &to,
	})
}

// ExerciseProgress returns the most recent exercise logs for one exercise.
func (s *Service) ExerciseProgress(ctx context.Context, userID, exerciseID int64, limit int) ([]models.ExerciseLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListExerciseLogs(ctx, userID, exerciseID, limit)
}

// Package memstore is an in-process implementation of storage.Store used by
// the "memory" database driver and by service tests.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fittrack/fittrack/internal/models"
	"github.com/fittrack/fittrack/internal/storage"
	"github.com/google/uuid"
)

var _ storage.Store = (*Store)(nil)

// Store keeps every table in maps guarded by a mutex. Transactions are
// serialized; each runs against its own handle that journals the writes it
// makes so a rollback undoes only those.
type Store struct {
	*shared
	undo *[]func()
}

type shared struct {
	txMu sync.Mutex
	mu   sync.Mutex
	d    *tables
	now  func() time.Time
}

type tables struct {
	nextID        int64
	users         map[int64]models.User
	exercises     map[int64]models.Exercise
	plans         map[int64]models.WorkoutPlan
	planExercises map[int64]models.PlanExercise
	sessions      map[uuid.UUID]models.WorkoutSession
	setLogs       map[int64]models.SetLog
	exerciseLogs  map[int64]models.ExerciseLog
	weights       map[int64]models.WeightLog
	events        map[int64]models.CalendarEvent
}

// New returns an empty store.
func New() *Store {
	return &Store{shared: &shared{
		d: &tables{
			users:         map[int64]models.User{},
			exercises:     map[int64]models.Exercise{},
			plans:         map[int64]models.WorkoutPlan{},
			planExercises: map[int64]models.PlanExercise{},
			sessions:      map[uuid.UUID]models.WorkoutSession{},
			setLogs:       map[int64]models.SetLog{},
			exerciseLogs:  map[int64]models.ExerciseLog{},
			weights:       map[int64]models.WeightLog{},
			events:        map[int64]models.CalendarEvent{},
		},
		now: time.Now,
	}}
}

// WithTx runs fn against a journaling handle and undoes the writes made
// through it if fn fails or panics. Writes made concurrently through other
// handles are kept. IDs handed out inside a failed transaction are not reused.
func (s *Store) WithTx(ctx context.Context, fn func(q storage.Queries) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	var undo []func()
	tx := &Store{shared: s.shared, undo: &undo}

	rollback := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		rollback()
		return err
	}
	return nil
}

// put sets m[k] = v, journaling the previous entry when s is a transaction.
// Callers hold mu.
func put[K comparable, V any](s *Store, m map[K]V, k K, v V) {
	if s.undo != nil {
		prev, existed := m[k]
		*s.undo = append(*s.undo, func() {
			if existed {
				m[k] = prev
			} else {
				delete(m, k)
			}
		})
	}
	m[k] = v
}

// remove deletes m[k], journaling it when s is a transaction. Callers hold mu.
func remove[K comparable, V any](s *Store, m map[K]V, k K) {
	prev, existed := m[k]
	if !existed {
		return
	}
	if s.undo != nil {
		*s.undo = append(*s.undo, func() { m[k] = prev })
	}
	delete(m, k)
}

// SetClock replaces the clock used for created/updated timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) id() int64 {
	s.d.nextID++
	return s.d.nextID
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, models.ErrNotFound)
}

// --- users ---

func (s *Store) GetOrCreateUser(ctx context.Context, p models.Principal) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, u := range s.d.users {
		if u.Subject != p.Subject {
			continue
		}
		u.LastSeen = now
		if p.Email != "" {
			u.Email = p.Email
		}
		if u.DisplayName == "" {
			u.DisplayName = p.DisplayName
		}
		put(s, s.d.users, id, u)
		return &u, nil
	}
	u := models.User{ID: s.id(), Subject: p.Subject, Email: p.Email, DisplayName: p.DisplayName, CreatedAt: now, LastSeen: now}
	put(s, s.d.users, u.ID, u)
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.d.users[id]
	if !ok {
		return nil, notFound("user")
	}
	return &u, nil
}

func (s *Store) ListUserIDs(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := slices.Collect(maps.Keys(s.d.users))
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.d.users[u.ID]
	if !ok {
		return notFound("user")
	}
	cur.DisplayName = u.DisplayName
	cur.CurrentWeightKg = u.CurrentWeightKg
	cur.GoalWeightKg = u.GoalWeightKg
	cur.WeeklyWorkouts = u.WeeklyWorkouts
	put(s, s.d.users, u.ID, cur)
	return nil
}

// --- exercises ---

func (s *Store) GetExercise(ctx context.Context, id int64) (*models.Exercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.d.exercises[id]
	if !ok {
		return nil, notFound("exercise")
	}
	return &e, nil
}

func (s *Store) SearchExercises(ctx context.Context, f models.ExerciseFilter) ([]models.Exercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := strings.ToLower(f.Query)
	var out []models.Exercise
	for _, e := range s.d.exercises {
		switch {
		case !e.VisibleTo(f.UserID):
		case query != "" && !strings.Contains(strings.ToLower(e.Name), query):
		case f.Category != "" && e.Category != f.Category:
		case f.Level != "" && e.Level != f.Level:
		case f.Equipment != "" && e.Equipment != f.Equipment:
		default:
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b models.Exercise) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmpInt(a.ID, b.ID)
	})
	return page(out, f.Limit, f.Offset), nil
}

func (s *Store) InsertExercise(ctx context.Context, e *models.Exercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.id()
	put(s, s.d.exercises, e.ID, *e)
	return nil
}

// --- plans ---

func (s *Store) InsertPlan(ctx context.Context, p *models.WorkoutPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	stored := *p
	stored.Exercises = nil
	put(s, s.d.plans, p.ID, stored)
	return nil
}

func (s *Store) GetPlan(ctx context.Context, id int64) (*models.WorkoutPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.d.plans[id]
	if !ok {
		return nil, notFound("workout plan")
	}
	return &p, nil
}

func (s *Store) ListPlans(ctx context.Context, userID int64, archived bool) ([]models.WorkoutPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WorkoutPlan
	for _, p := range s.d.plans {
		if p.UserID == userID && p.IsArchived == archived {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b models.WorkoutPlan) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmpInt(b.ID, a.ID)
	})
	return out, nil
}

func (s *Store) UpdatePlan(ctx context.Context, p *models.WorkoutPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.d.plans[p.ID]
	if !ok {
		return notFound("workout plan")
	}
	cur.Name = p.Name
	cur.IsArchived = p.IsArchived
	cur.UpdatedAt = s.now()
	p.UpdatedAt = cur.UpdatedAt
	put(s, s.d.plans, p.ID, cur)
	return nil
}

func (s *Store) withExercise(pe models.PlanExercise) models.PlanExercise {
	if e, ok := s.d.exercises[pe.ExerciseID]; ok {
		pe.Exercise = &e
	}
	return pe
}

func (s *Store) ListPlanExercises(ctx context.Context, planID int64) ([]models.PlanExercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PlanExercise
	for _, pe := range s.d.planExercises {
		if pe.PlanID == planID {
			out = append(out, s.withExercise(pe))
		}
	}
	slices.SortFunc(out, func(a, b models.PlanExercise) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return cmpInt(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) GetPlanExercise(ctx context.Context, id int64) (*models.PlanExercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pe, ok := s.d.planExercises[id]
	if !ok {
		return nil, notFound("plan exercise")
	}
	pe = s.withExercise(pe)
	return &pe, nil
}

func (s *Store) InsertPlanExercise(ctx context.Context, pe *models.PlanExercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.d.planExercises {
		if other.PlanID == pe.PlanID && other.ExerciseID == pe.ExerciseID {
			return fmt.Errorf("inserting plan exercise: duplicate exercise %d in plan %d", pe.ExerciseID, pe.PlanID)
		}
	}
	pe.ID = s.id()
	stored := *pe
	stored.Exercise = nil
	put(s, s.d.planExercises, pe.ID, stored)
	return nil
}

func (s *Store) UpdatePlanExercise(ctx context.Context, pe *models.PlanExercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.d.planExercises[pe.ID]
	if !ok {
		return notFound("plan exercise")
	}
	cur.Position = pe.Position
	cur.Sets = pe.Sets
	cur.Target = pe.Target
	put(s, s.d.planExercises, pe.ID, cur)
	return nil
}

func (s *Store) DeletePlanExercise(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.planExercises[id]; !ok {
		return notFound("plan exercise")
	}
	remove(s, s.d.planExercises, id)
	return nil
}

// --- sessions ---

func (s *Store) InsertSession(ctx context.Context, ws *models.WorkoutSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.sessions[ws.ID]; ok {
		return fmt.Errorf("inserting session: duplicate id %s", ws.ID)
	}
	put(s, s.d.sessions, ws.ID, *ws)
	return nil
}

func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*models.WorkoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.d.sessions[id]
	if !ok {
		return nil, notFound("workout session")
	}
	return &ws, nil
}

// GetSessionForUpdate is GetSession; transactions already run one at a time.
func (s *Store) GetSessionForUpdate(ctx context.Context, id uuid.UUID) (*models.WorkoutSession, error) {
	return s.GetSession(ctx, id)
}

func (s *Store) UpdateSession(ctx context.Context, ws *models.WorkoutSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.d.sessions[ws.ID]
	if !ok {
		return notFound("workout session")
	}
	cur.CompletedAt = ws.CompletedAt
	cur.IsCompleted = ws.IsCompleted
	cur.IsArchived = ws.IsArchived
	cur.TotalSets = ws.TotalSets
	cur.TotalReps = ws.TotalReps
	cur.TotalWeightKg = ws.TotalWeightKg
	cur.DurationMinutes = ws.DurationMinutes
	put(s, s.d.sessions, ws.ID, cur)
	return nil
}

func (s *Store) UpdateSessionTotals(ctx context.Context, ws *models.WorkoutSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.d.sessions[ws.ID]
	if !ok {
		return notFound("workout session")
	}
	cur.TotalSets = ws.TotalSets
	cur.TotalReps = ws.TotalReps
	cur.TotalWeightKg = ws.TotalWeightKg
	cur.DurationMinutes = ws.DurationMinutes
	put(s, s.d.sessions, ws.ID, cur)
	return nil
}

func (s *Store) ListSessions(ctx context.Context, f models.SessionFilter) ([]models.WorkoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WorkoutSession
	for _, ws := range s.d.sessions {
		switch {
		case ws.UserID != f.UserID:
		case f.PlanID != nil && ws.PlanID != *f.PlanID:
		case f.Completed != nil && ws.IsCompleted != *f.Completed:
		case f.Archived != nil && ws.IsArchived != *f.Archived:
		case f.StartedFrom != nil && ws.StartedAt.Before(*f.StartedFrom):
		case f.StartedTo != nil && !ws.StartedAt.Before(*f.StartedTo):
		default:
			out = append(out, ws)
		}
	}
	sortKey := func(ws models.WorkoutSession) time.Time {
		if ws.CompletedAt != nil {
			return *ws.CompletedAt
		}
		return ws.StartedAt
	}
	slices.SortFunc(out, func(a, b models.WorkoutSession) int {
		if c := sortKey(b).Compare(sortKey(a)); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return page(out, f.Limit, f.Offset), nil
}

// --- set and exercise logs ---

func (s *Store) UpsertSetLog(ctx context.Context, l *models.SetLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cur := range s.d.setLogs {
		if cur.SessionID != l.SessionID || cur.PlanExerciseID != l.PlanExerciseID || cur.SetNumber != l.SetNumber {
			continue
		}
		if l.CompletedAt == nil {
			l.CompletedAt = cur.CompletedAt
		}
		l.ID = id
		put(s, s.d.setLogs, id, *l)
		return nil
	}
	l.ID = s.id()
	put(s, s.d.setLogs, l.ID, *l)
	return nil
}

func (s *Store) ListSetLogs(ctx context.Context, sessionID uuid.UUID, completedOnly bool) ([]models.SetLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SetLog
	for _, l := range s.d.setLogs {
		if l.SessionID == sessionID && (l.Completed || !completedOnly) {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b models.SetLog) int {
		if a.ExerciseID != b.ExerciseID {
			return cmpInt(a.ExerciseID, b.ExerciseID)
		}
		return a.SetNumber - b.SetNumber
	})
	return out, nil
}

func (s *Store) DeleteSetLogs(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, l := range s.d.setLogs {
		if l.SessionID == sessionID {
			remove(s, s.d.setLogs, id)
		}
	}
	return nil
}

func (s *Store) InsertExerciseLog(ctx context.Context, l *models.ExerciseLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.d.exerciseLogs {
		if cur.SessionID == l.SessionID && cur.ExerciseID == l.ExerciseID {
			return fmt.Errorf("%w: exercise %d already logged for session %s", models.ErrConflict, l.ExerciseID, l.SessionID)
		}
	}
	l.ID = s.id()
	put(s, s.d.exerciseLogs, l.ID, *l)
	return nil
}

func (s *Store) ListExerciseLogs(ctx context.Context, userID, exerciseID int64, limit int) ([]models.ExerciseLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ExerciseLog
	for _, l := range s.d.exerciseLogs {
		if l.UserID == userID && (exerciseID == 0 || l.ExerciseID == exerciseID) {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b models.ExerciseLog) int {
		if c := b.CompletedAt.Compare(a.CompletedAt); c != 0 {
			return c
		}
		return cmpInt(b.ID, a.ID)
	})
	return page(out, limit, 0), nil
}

// --- weight ---

func (s *Store) InsertWeightLog(ctx context.Context, w *models.WeightLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.ID = s.id()
	if w.LoggedAt.IsZero() {
		w.LoggedAt = s.now()
	}
	put(s, s.d.weights, w.ID, *w)
	return nil
}

func (s *Store) ListWeightLogs(ctx context.Context, userID int64, limit, offset int) ([]models.WeightLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WeightLog
	for _, w := range s.d.weights {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	slices.SortFunc(out, func(a, b models.WeightLog) int {
		if c := b.LoggedAt.Compare(a.LoggedAt); c != 0 {
			return c
		}
		return cmpInt(b.ID, a.ID)
	})
	return page(out, limit, offset), nil
}

// --- calendar ---

func (s *Store) InsertEvent(ctx context.Context, e *models.CalendarEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ParentID != nil && e.OccurrenceStart != nil {
		for _, other := range s.d.events {
			if other.ParentID != nil && *other.ParentID == *e.ParentID &&
				other.OccurrenceStart != nil && other.OccurrenceStart.Equal(*e.OccurrenceStart) {
				return fmt.Errorf("inserting calendar event: occurrence already materialized")
			}
		}
	}
	e.ID = s.id()
	e.CreatedAt = s.now()
	e.UpdatedAt = e.CreatedAt
	put(s, s.d.events, e.ID, *e)
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id int64) (*models.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.d.events[id]
	if !ok {
		return nil, notFound("calendar event")
	}
	return &e, nil
}

func (s *Store) UpdateEvent(ctx context.Context, e *models.CalendarEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.d.events[e.ID]
	if !ok {
		return notFound("calendar event")
	}
	cur.Title = e.Title
	cur.Description = e.Description
	cur.Start = e.Start
	cur.End = e.End
	cur.Type = e.Type
	cur.Status = e.Status
	cur.Color = e.Color
	cur.PlanID = e.PlanID
	cur.Recurrence = e.Recurrence
	cur.UpdatedAt = s.now()
	e.UpdatedAt = cur.UpdatedAt
	put(s, s.d.events, e.ID, cur)
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.events[id]; !ok {
		return notFound("calendar event")
	}
	remove(s, s.d.events, id)
	for childID, e := range s.d.events {
		if e.ParentID != nil && *e.ParentID == id {
			remove(s, s.d.events, childID)
		}
	}
	for sid, ws := range s.d.sessions {
		if ws.CalendarEventID == nil {
			continue
		}
		if _, ok := s.d.events[*ws.CalendarEventID]; !ok {
			ws.CalendarEventID = nil
			put(s, s.d.sessions, sid, ws)
		}
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, f models.EventFilter) ([]models.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CalendarEvent
	for _, e := range s.d.events {
		switch {
		case e.UserID != f.UserID:
		case f.From != nil && e.EffectiveEnd().Before(*f.From):
		case f.To != nil && e.Start.After(*f.To):
		case f.Status != nil && e.Status != *f.Status:
		case f.ParentID != nil && (e.ParentID == nil || *e.ParentID != *f.ParentID):
		case f.Recurring && e.Recurrence == nil:
		default:
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b models.CalendarEvent) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return cmpInt(a.ID, b.ID)
	})
	return out, nil
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

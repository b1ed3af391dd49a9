package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/fittrack/fittrack/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Queries is the repository surface used by the services. It is satisfied by
// the pool-backed DB and by the handle passed to WithTx callbacks.
type Queries interface {
	GetOrCreateUser(ctx context.Context, p models.Principal) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	ListUserIDs(ctx context.Context) ([]int64, error)

	GetExercise(ctx context.Context, id int64) (*models.Exercise, error)
	SearchExercises(ctx context.Context, f models.ExerciseFilter) ([]models.Exercise, error)
	InsertExercise(ctx context.Context, e *models.Exercise) error

	InsertPlan(ctx context.Context, p *models.WorkoutPlan) error
	GetPlan(ctx context.Context, id int64) (*models.WorkoutPlan, error)
	ListPlans(ctx context.Context, userID int64, archived bool) ([]models.WorkoutPlan, error)
	UpdatePlan(ctx context.Context, p *models.WorkoutPlan) error

	ListPlanExercises(ctx context.Context, planID int64) ([]models.PlanExercise, error)
	GetPlanExercise(ctx context.Context, id int64) (*models.PlanExercise, error)
	InsertPlanExercise(ctx context.Context, pe *models.PlanExercise) error
	UpdatePlanExercise(ctx context.Context, pe *models.PlanExercise) error
	DeletePlanExercise(ctx context.Context, id int64) error

	InsertSession(ctx context.Context, s *models.WorkoutSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.WorkoutSession, error)
	GetSessionForUpdate(ctx context.Context, id uuid.UUID) (*models.WorkoutSession, error)
	UpdateSession(ctx context.Context, s *models.WorkoutSession) error
	UpdateSessionTotals(ctx context.Context, s *models.WorkoutSession) error
	ListSessions(ctx context.Context, f models.SessionFilter) ([]models.WorkoutSession, error)

	UpsertSetLog(ctx context.Context, l *models.SetLog) error
	ListSetLogs(ctx context.Context, sessionID uuid.UUID, completedOnly bool) ([]models.SetLog, error)
	DeleteSetLogs(ctx context.Context, sessionID uuid.UUID) error

	InsertExerciseLog(ctx context.Context, l *models.ExerciseLog) error
	ListExerciseLogs(ctx context.Context, userID, exerciseID int64, limit int) ([]models.ExerciseLog, error)

	InsertWeightLog(ctx context.Context, w *models.WeightLog) error
	ListWeightLogs(ctx context.Context, userID int64, limit, offset int) ([]models.WeightLog, error)

	InsertEvent(ctx context.Context, e *models.CalendarEvent) error
	GetEvent(ctx context.Context, id int64) (*models.CalendarEvent, error)
	UpdateEvent(ctx context.Context, e *models.CalendarEvent) error
	DeleteEvent(ctx context.Context, id int64) error
	ListEvents(ctx context.Context, f models.EventFilter) ([]models.CalendarEvent, error)
}

// Store is a Queries that can also open transactions.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(q Queries) error) error
}

// querier is implemented by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queries implements Queries over a pool or a transaction.
type queries struct {
	q querier
}

type rowScanner interface {
	Scan(dest ...any) error
}

// notFound maps pgx.ErrNoRows to models.ErrNotFound and wraps anything else.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return fmt.Errorf("querying %s: %w", what, err)
}

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// expectOne turns a zero-row update or delete into models.ErrNotFound.
func expectOne(tag pgconn.CommandTag, err error, what string) error {
	if err != nil {
		return fmt.Errorf("writing %s: %w", what, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return nil
}

//go:build integration

package storage

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/fittrack/fittrack/internal/config"
	"github.com/fittrack/fittrack/internal/models"
	"github.com/google/uuid"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/suite"
)

type PostgresSuite struct {
	suite.Suite

	db       *DB
	pool     *dockertest.Pool
	resource *dockertest.Resource
}

// TestPostgresSuite runs the repository against a Postgres container.
func TestPostgresSuite(t *testing.T) {
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	var err error
	s.pool, err = dockertest.NewPool("")
	s.Require().NoError(err, "could not create dockertest pool")
	s.Require().NoError(s.pool.Client.Ping(), "could not ping docker")

	s.resource, err = s.pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16",
		Env: []string{
			"POSTGRES_USER=fittrack",
			"POSTGRES_PASSWORD=fittrack",
			"POSTGRES_DB=fittrack",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	s.Require().NoError(err, "could not start postgres")
	_ = s.resource.Expire(300)

	port, err := strconv.Atoi(s.resource.GetPort("5432/tcp"))
	s.Require().NoError(err)
	cfg := config.DatabaseConfig{
		Host:     "localhost",
		Port:     port,
		Name:     "fittrack",
		User:     "fittrack",
		Password: "fittrack",
		MaxConns: 4,
	}

	s.pool.MaxWait = 60 * time.Second
	s.Require().NoError(s.pool.Retry(func() error {
		db, err := New(context.Background(), cfg)
		if err != nil {
			return err
		}
		s.db = db
		return nil
	}), "postgres never became ready")

	s.Require().NoError(RunMigrations(cfg.DSN(), "../../migrations"))
}

func (s *PostgresSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.resource != nil {
		_ = s.pool.Purge(s.resource)
	}
}

func (s *PostgresSuite) user(subject string) *models.User {
	u, err := s.db.GetOrCreateUser(context.Background(), models.Principal{Subject: subject, Email: subject + "@example.com"})
	s.Require().NoError(err)
	return u
}

func (s *PostgresSuite) seededExercise(name string) *models.Exercise {
	found, err := s.db.SearchExercises(context.Background(), models.ExerciseFilter{Query: name})
	s.Require().NoError(err)
	s.Require().NotEmpty(found, "exercise %q is seeded by migrations", name)
	return &found[0]
}

// TestUsers verifies user upsert, update and listing.
func (s *PostgresSuite) TestUsers() {
	ctx := context.Background()
	u := s.user("users-a")
	again, err := s.db.GetOrCreateUser(ctx, models.Principal{Subject: "users-a", DisplayName: "Alex"})
	s.Require().NoError(err)
	s.Equal(u.ID, again.ID)
	s.Equal("Alex", again.DisplayName)
	s.Equal("users-a@example.com", again.Email)

	kg := 80.5
	again.CurrentWeightKg = &kg
	s.Require().NoError(s.db.UpdateUser(ctx, again))
	got, err := s.db.GetUser(ctx, u.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.CurrentWeightKg)
	s.InDelta(80.5, *got.CurrentWeightKg, 0.001)

	_, err = s.db.GetUser(ctx, -1)
	s.ErrorIs(err, models.ErrNotFound)

	ids, err := s.db.ListUserIDs(ctx)
	s.Require().NoError(err)
	s.Contains(ids, u.ID)
}

// TestPlanExerciseTargets verifies targets round-trip for both kinds.
func (s *PostgresSuite) TestPlanExerciseTargets() {
	ctx := context.Background()
	u := s.user("plans")
	plan := &models.WorkoutPlan{UserID: u.ID, Name: "Mixed"}
	s.Require().NoError(s.db.InsertPlan(ctx, plan))

	squat := s.seededExercise("Barbell Squat")
	run := s.seededExercise("Running")
	strength := &models.PlanExercise{PlanID: plan.ID, ExerciseID: squat.ID, Sets: 3, Target: models.StrengthTarget{Reps: 8, WeightKg: 90}}
	cardio := &models.PlanExercise{PlanID: plan.ID, ExerciseID: run.ID, Position: 1, Sets: 1, Target: models.CardioTarget{DurationMinutes: 25, DistanceKm: 5}}
	s.Require().NoError(s.db.InsertPlanExercise(ctx, strength))
	s.Require().NoError(s.db.InsertPlanExercise(ctx, cardio))

	pes, err := s.db.ListPlanExercises(ctx, plan.ID)
	s.Require().NoError(err)
	s.Require().Len(pes, 2)
	s.Equal(models.StrengthTarget{Reps: 8, WeightKg: 90}, pes[0].Target)
	s.Equal(models.CardioTarget{DurationMinutes: 25, DistanceKm: 5}, pes[1].Target)

	dup := &models.PlanExercise{PlanID: plan.ID, ExerciseID: squat.ID, Position: 2, Sets: 1, Target: models.StrengthTarget{Reps: 1}}
	s.Error(s.db.InsertPlanExercise(ctx, dup), "an exercise appears once per plan")
}

// TestSetLogUpsertAndTx verifies set upserts and transaction rollback.
func (s *PostgresSuite) TestSetLogUpsertAndTx() {
	ctx := context.Background()
	u := s.user("sessions")
	plan := &models.WorkoutPlan{UserID: u.ID, Name: "Push"}
	s.Require().NoError(s.db.InsertPlan(ctx, plan))
	bench := s.seededExercise("Barbell Bench Press")
	pe := &models.PlanExercise{PlanID: plan.ID, ExerciseID: bench.ID, Sets: 2, Target: models.StrengthTarget{Reps: 5, WeightKg: 60}}
	s.Require().NoError(s.db.InsertPlanExercise(ctx, pe))

	session := &models.WorkoutSession{
		ID:        uuid.New(),
		UserID:    u.ID,
		PlanID:    plan.ID,
		StartedAt: time.Now().UTC().Truncate(time.Microsecond),
		Source:    models.SourceTracked,
	}
	s.Require().NoError(s.db.InsertSession(ctx, session))

	log := &models.SetLog{
		SessionID: session.ID, UserID: u.ID, PlanID: plan.ID, PlanExerciseID: pe.ID, ExerciseID: bench.ID,
		Completed: true, Payload: models.StrengthSet{Reps: 5, WeightKg: 60},
	}
	s.Require().NoError(s.db.UpsertSetLog(ctx, log))
	firstID := log.ID
	log.Payload = models.StrengthSet{Reps: 6, WeightKg: 62.5}
	s.Require().NoError(s.db.UpsertSetLog(ctx, log))
	s.Equal(firstID, log.ID, "upsert overwrites the same set")

	logs, err := s.db.ListSetLogs(ctx, session.ID, true)
	s.Require().NoError(err)
	s.Require().Len(logs, 1)
	s.Equal(models.StrengthSet{Reps: 6, WeightKg: 62.5}, logs[0].Payload)

	errBoom := fmt.Errorf("boom")
	err = s.db.WithTx(ctx, func(q Queries) error {
		if err := q.DeleteSetLogs(ctx, session.ID); err != nil {
			return err
		}
		return errBoom
	})
	s.ErrorIs(err, errBoom)
	logs, err = s.db.ListSetLogs(ctx, session.ID, false)
	s.Require().NoError(err)
	s.Len(logs, 1, "rolled back delete keeps the set")

	now := time.Now().UTC()
	session.IsCompleted, session.CompletedAt, session.TotalSets, session.TotalReps = true, &now, 1, 6
	s.Require().NoError(s.db.UpdateSession(ctx, session))
	completed := true
	sessions, err := s.db.ListSessions(ctx, models.SessionFilter{UserID: u.ID, Completed: &completed})
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)
	s.Equal(6, sessions[0].TotalReps)

	_, err = s.db.GetSession(ctx, uuid.New())
	s.ErrorIs(err, models.ErrNotFound)
}

// TestSessionLockSerializesCompletion verifies that a locked session read
// waits for the concurrent completion to commit.
func (s *PostgresSuite) TestSessionLockSerializesCompletion() {
	ctx := context.Background()
	u := s.user("locking")
	plan := &models.WorkoutPlan{UserID: u.ID, Name: "Legs"}
	s.Require().NoError(s.db.InsertPlan(ctx, plan))
	squat := s.seededExercise("Barbell Squat")
	session := &models.WorkoutSession{ID: uuid.New(), UserID: u.ID, PlanID: plan.ID, StartedAt: time.Now().UTC(), Source: models.SourceTracked}
	s.Require().NoError(s.db.InsertSession(ctx, session))

	locked := make(chan struct{})
	release := make(chan struct{})
	first := make(chan error, 1)
	go func() {
		first <- s.db.WithTx(ctx, func(q Queries) error {
			cur, err := q.GetSessionForUpdate(ctx, session.ID)
			if err != nil {
				close(locked)
				return err
			}
			close(locked)
			<-release
			now := time.Now().UTC()
			cur.IsCompleted, cur.CompletedAt = true, &now
			return q.UpdateSession(ctx, cur)
		})
	}()
	<-locked

	seen := make(chan bool, 1)
	second := make(chan error, 1)
	go func() {
		second <- s.db.WithTx(ctx, func(q Queries) error {
			cur, err := q.GetSessionForUpdate(ctx, session.ID)
			if err != nil {
				return err
			}
			seen <- cur.IsCompleted
			cur.TotalSets = 9
			return q.UpdateSessionTotals(ctx, cur)
		})
	}()
	time.Sleep(200 * time.Millisecond)
	s.Empty(seen, "second reader waits for the row lock")
	close(release)

	s.Require().NoError(<-first)
	s.Require().NoError(<-second)
	s.True(<-seen, "second reader sees the committed completion")

	got, err := s.db.GetSession(ctx, session.ID)
	s.Require().NoError(err)
	s.True(got.IsCompleted)
	s.Equal(9, got.TotalSets)

	el := &models.ExerciseLog{SessionID: session.ID, UserID: u.ID, PlanID: plan.ID, ExerciseID: squat.ID, Sets: 1, CompletedAt: time.Now().UTC()}
	s.Require().NoError(s.db.InsertExerciseLog(ctx, el))
	dup := *el
	s.ErrorIs(s.db.InsertExerciseLog(ctx, &dup), models.ErrConflict)
}

// TestWeightAndEvents verifies weight logs and recurring events.
func (s *PostgresSuite) TestWeightAndEvents() {
	ctx := context.Background()
	u := s.user("weight")
	for i, kg := range []float64{82, 81.2, 80.9} {
		w := &models.WeightLog{UserID: u.ID, WeightKg: kg, LoggedAt: time.Date(2025, 1, 1+i, 8, 0, 0, 0, time.UTC)}
		s.Require().NoError(s.db.InsertWeightLog(ctx, w))
	}
	logs, err := s.db.ListWeightLogs(ctx, u.ID, 2, 0)
	s.Require().NoError(err)
	s.Require().Len(logs, 2)
	s.InDelta(80.9, logs[0].WeightKg, 0.001)

	ev := &models.CalendarEvent{
		UserID:     u.ID,
		Title:      "Run",
		Start:      time.Date(2025, 1, 6, 7, 0, 0, 0, time.UTC),
		Type:       models.EventCardio,
		Status:     models.EventScheduled,
		Color:      models.DefaultEventColor,
		Recurrence: &models.Recurrence{Freq: models.FreqWeekly, Interval: 1, Weekdays: []time.Weekday{time.Monday}},
	}
	s.Require().NoError(s.db.InsertEvent(ctx, ev))
	got, err := s.db.GetEvent(ctx, ev.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.Recurrence)
	s.Equal(models.FreqWeekly, got.Recurrence.Freq)
	s.True(got.Start.Equal(ev.Start))

	s.Require().NoError(s.db.DeleteEvent(ctx, ev.ID))
	s.ErrorIs(s.db.DeleteEvent(ctx, ev.ID), models.ErrNotFound)
}

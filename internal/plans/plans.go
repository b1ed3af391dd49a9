// Package plans manages workout plans and the exercises prescribed in them.
package plans

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fittrack/fittrack/internal/models"
	"github.com/fittrack/fittrack/internal/storage"
)

const maxNameLength = 100

type Service struct {
	store storage.Store
	log   *slog.Logger
}

func NewService(store storage.Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log}
}

// Create makes a plan and appends the given exercises with default prescriptions.
func (s *Service) Create(ctx context.Context, userID int64, name string, exerciseIDs []int64) (*models.WorkoutPlan, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return nil, fmt.Errorf("%w: plan name must be 1 to %d characters", models.ErrValidation, maxNameLength)
	}

	plan := &models.WorkoutPlan{UserID: userID, Name: name}
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		if err := q.InsertPlan(ctx, plan); err != nil {
			return err
		}
		for _, id := range exerciseIDs {
			pe, err := s.add(ctx, q, userID, plan.ID, Prescription{ExerciseID: id})
			if err != nil {
				return err
			}
			plan.Exercises = append(plan.Exercises, *pe)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("workout plan created", "plan_id", plan.ID, "user_id", userID, "exercises", len(exerciseIDs))
	return plan, nil
}

// owned loads a plan and checks that userID owns it.
func owned(ctx context.Context, q storage.Queries, userID, planID int64) (*models.WorkoutPlan, error) {
	plan, err := q.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.UserID != userID {
		return nil, fmt.Errorf("%w: plan %d", models.ErrForbidden, planID)
	}
	return plan, nil
}

// Get returns an owned plan with its exercises in order.
func (s *Service) Get(ctx context.Context, userID, planID int64) (*models.WorkoutPlan, error) {
	plan, err := owned(ctx, s.store, userID, planID)
	if err != nil {
		return nil, err
	}
	plan.Exercises, err = s.store.ListPlanExercises(ctx, planID)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// List returns the user's active or archived plans, newest first.
func (s *Service) List(ctx context.Context, userID int64, archived bool) ([]models.WorkoutPlan, error) {
	return s.store.ListPlans(ctx, userID, archived)
}

// AddExercise appends an exercise to an owned plan.
func (s *Service) AddExercise(ctx context.Context, userID, planID int64, p Prescription) (*models.PlanExercise, error) {
	var pe *models.PlanExercise
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		plan, err := owned(ctx, q, userID, planID)
		if err != nil {
			return err
		}
		if plan.IsArchived {
			return fmt.Errorf("%w: plan %d is archived", models.ErrValidation, planID)
		}
		pe, err = s.add(ctx, q, userID, planID, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pe, nil
}

func (s *Service) add(ctx context.Context, q storage.Queries, userID, planID int64, p Prescription) (*models.PlanExercise, error) {
	exercise, err := q.GetExercise(ctx, p.ExerciseID)
	if err != nil {
		return nil, err
	}
	if !exercise.VisibleTo(userID) {
		return nil, fmt.Errorf("%w: exercise %d", models.ErrNotFound, p.ExerciseID)
	}

	existing, err := q.ListPlanExercises(ctx, planID)
	if err != nil {
		return nil, err
	}
	position := 0
	for _, pe := range existing {
		if pe.ExerciseID == exercise.ID {
			return nil, fmt.Errorf("%w: %s is already in this plan", models.ErrConflict, exercise.Name)
		}
		position = max(position, pe.Position+1)
	}

	sets, target := models.DefaultPrescription(exercise)
	sets, target, err = p.apply(sets, target)
	if err != nil {
		return nil, err
	}

	pe := &models.PlanExercise{
		PlanID:     planID,
		ExerciseID: exercise.ID,
		Position:   position,
		Sets:       sets,
		Target:     target,
	}
	if err := q.InsertPlanExercise(ctx, pe); err != nil {
		return nil, err
	}
	pe.Exercise = exercise
	return pe, nil
}

// planExercise loads a plan exercise and checks it belongs to an owned plan.
func planExercise(ctx context.Context, q storage.Queries, userID, planID, peID int64) (*models.PlanExercise, error) {
	if _, err := owned(ctx, q, userID, planID); err != nil {
		return nil, err
	}
	pe, err := q.GetPlanExercise(ctx, peID)
	if err != nil {
		return nil, err
	}
	if pe.PlanID != planID {
		return nil, fmt.Errorf("%w: plan exercise %d", models.ErrNotFound, peID)
	}
	return pe, nil
}

// UpdateExercise changes the prescription of a plan exercise. Only fields of
// the exercise's own kind are accepted.
func (s *Service) UpdateExercise(ctx context.Context, userID, planID, peID int64, p Prescription) (*models.PlanExercise, error) {
	var pe *models.PlanExercise
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		var err error
		pe, err = planExercise(ctx, q, userID, planID, peID)
		if err != nil {
			return err
		}
		pe.Sets, pe.Target, err = p.apply(pe.Sets, pe.Target)
		if err != nil {
			return err
		}
		return q.UpdatePlanExercise(ctx, pe)
	})
	if err != nil {
		return nil, err
	}
	return pe, nil
}

// RemoveExercise deletes a plan exercise and closes the gap in positions.
func (s *Service) RemoveExercise(ctx context.Context, userID, planID, peID int64) error {
	return s.store.WithTx(ctx, func(q storage.Queries) error {
		removed, err := planExercise(ctx, q, userID, planID, peID)
		if err != nil {
			return err
		}
		if err := q.DeletePlanExercise(ctx, peID); err != nil {
			return err
		}
		rest, err := q.ListPlanExercises(ctx, planID)
		if err != nil {
			return err
		}
		for i := range rest {
			if rest[i].Position > removed.Position {
				rest[i].Position--
				if err := q.UpdatePlanExercise(ctx, &rest[i]); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Reorder sets positions from the given order of plan-exercise ids, which
// must name every exercise of the plan exactly once.
func (s *Service) Reorder(ctx context.Context, userID, planID int64, order []int64) ([]models.PlanExercise, error) {
	var out []models.PlanExercise
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		if _, err := owned(ctx, q, userID, planID); err != nil {
			return err
		}
		current, err := q.ListPlanExercises(ctx, planID)
		if err != nil {
			return err
		}
		if len(order) != len(current) {
			return fmt.Errorf("%w: order must list all %d plan exercises", models.ErrValidation, len(current))
		}
		byID := make(map[int64]*models.PlanExercise, len(current))
		for i := range current {
			byID[current[i].ID] = &current[i]
		}
		for pos, id := range order {
			pe, ok := byID[id]
			if !ok {
				return fmt.Errorf("%w: plan exercise %d is not in the plan or listed twice", models.ErrValidation, id)
			}
			delete(byID, id)
			pe.Position = pos
			if err := q.UpdatePlanExercise(ctx, pe); err != nil {
				return err
			}
			out = append(out, *pe)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CopyExercise appends an exercise of one owned plan, with its prescription,
// to another owned plan.
func (s *Service) CopyExercise(ctx context.Context, userID, targetPlanID, sourcePEID int64) (*models.PlanExercise, error) {
	var pe *models.PlanExercise
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		source, err := q.GetPlanExercise(ctx, sourcePEID)
		if err != nil {
			return err
		}
		if _, err := owned(ctx, q, userID, source.PlanID); err != nil {
			return err
		}
		target, err := owned(ctx, q, userID, targetPlanID)
		if err != nil {
			return err
		}
		if target.IsArchived {
			return fmt.Errorf("%w: plan %d is archived", models.ErrValidation, targetPlanID)
		}
		pe, err = s.add(ctx, q, userID, targetPlanID, Prescription{ExerciseID: source.ExerciseID})
		if err != nil {
			return err
		}
		pe.Sets, pe.Target = source.Sets, source.Target
		return q.UpdatePlanExercise(ctx, pe)
	})
	if err != nil {
		return nil, err
	}
	return pe, nil
}

// Archive soft-deletes a plan. Sessions that reference it are kept.
func (s *Service) Archive(ctx context.Context, userID, planID int64) (*models.WorkoutPlan, error) {
	plan, err := owned(ctx, s.store, userID, planID)
	if err != nil {
		return nil, err
	}
	if plan.IsArchived {
		return plan, nil
	}
	plan.IsArchived = true
	if err := s.store.UpdatePlan(ctx, plan); err != nil {
		return nil, err
	}
	s.log.Debug("workout plan archived", "plan_id", planID, "user_id", userID)
	return plan, nil
}

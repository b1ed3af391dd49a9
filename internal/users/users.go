// Package users maps authenticated principals to accounts and manages profiles.
package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fittrack/fittrack/internal/models"
	"github.com/fittrack/fittrack/internal/storage"
)

// ProfileWeightNote is attached to weight logs written by a profile update.
const ProfileWeightNote = "updated via profile"

const (
	maxDisplayName    = 100
	maxWeightKg       = 1000.0
	maxWeeklyWorkouts = 14
)

type Service struct {
	store storage.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewService(store storage.Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// Resolve returns the user for a principal, creating it on first sight.
func (s *Service) Resolve(ctx context.Context, p models.Principal) (*models.User, error) {
	if strings.TrimSpace(p.Subject) == "" {
		return nil, fmt.Errorf("%w: principal without subject", models.ErrForbidden)
	}
	return s.store.GetOrCreateUser(ctx, p)
}

// Profile is a user with the onboarding step still to complete.
type Profile struct {
	*models.User
	OnboardingStep string `json:"onboarding_step"`
}

func (s *Service) Profile(ctx context.Context, userID int64) (*Profile, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: u, OnboardingStep: u.OnboardingStep()}, nil
}

// ProfileInput is a partial profile update.
type ProfileInput struct {
	DisplayName     *string  `json:"display_name"`
	CurrentWeightKg *float64 `json:"current_weight_kg"`
	GoalWeightKg    *float64 `json:"goal_weight_kg"`
	WeeklyWorkouts  *int     `json:"weekly_workouts"`
}

func validWeight(kg float64) bool { return kg > 0 && kg <= maxWeightKg }

// UpdateProfile applies in. A changed current weight is also appended to the
// weight history in the same transaction.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*Profile, error) {
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" || len(name) > maxDisplayName {
			return nil, fmt.Errorf("%w: display name must be 1 to %d characters", models.ErrValidation, maxDisplayName)
		}
		in.DisplayName = &name
	}
	if in.CurrentWeightKg != nil && !validWeight(*in.CurrentWeightKg) {
		return nil, fmt.Errorf("%w: current weight must be greater than 0 and at most %g kg", models.ErrValidation, maxWeightKg)
	}
	if in.GoalWeightKg != nil && !validWeight(*in.GoalWeightKg) {
		return nil, fmt.Errorf("%w: goal weight must be greater than 0 and at most %g kg", models.ErrValidation, maxWeightKg)
	}
	if in.WeeklyWorkouts != nil && (*in.WeeklyWorkouts < 1 || *in.WeeklyWorkouts > maxWeeklyWorkouts) {
		return nil, fmt.Errorf("%w: weekly workouts must be between 1 and %d", models.ErrValidation, maxWeeklyWorkouts)
	}

	var user *models.User
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		var err error
		user, err = q.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if in.DisplayName != nil {
			user.DisplayName = *in.DisplayName
		}
		if in.GoalWeightKg != nil {
			user.GoalWeightKg = in.GoalWeightKg
		}
		if in.WeeklyWorkouts != nil {
			user.WeeklyWorkouts = in.WeeklyWorkouts
		}
		if in.CurrentWeightKg != nil {
			changed := user.CurrentWeightKg == nil || *user.CurrentWeightKg != *in.CurrentWeightKg
			user.CurrentWeightKg = in.CurrentWeightKg
			if changed {
				w := &models.WeightLog{
					UserID:   userID,
					WeightKg: *in.CurrentWeightKg,
					LoggedAt: s.now().UTC(),
					Note:     ProfileWeightNote,
				}
				if err := q.InsertWeightLog(ctx, w); err != nil {
					return err
				}
			}
		}
		return q.UpdateUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("profile updated", "user_id", userID, "onboarding_step", user.OnboardingStep())
	return &Profile{User: user, OnboardingStep: user.OnboardingStep()}, nil
}

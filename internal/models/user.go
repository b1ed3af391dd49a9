package models

import "time"

// Principal is the authenticated identity handed over by the identity boundary.
type Principal struct {
	Subject     string `json:"subject"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// User is a registered account with its profile fields.
type User struct {
	ID              int64     `json:"id"`
	Subject         string    `json:"subject"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"display_name"`
	CurrentWeightKg *float64  `json:"current_weight_kg,omitempty"`
	GoalWeightKg    *float64  `json:"goal_weight_kg,omitempty"`
	WeeklyWorkouts  *int      `json:"weekly_workouts,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	LastSeen        time.Time `json:"last_seen"`
}

// Onboarding steps, in the order a new user completes them.
const (
	OnboardingName          = "name"
	OnboardingCurrentWeight = "current_weight"
	OnboardingGoalWeight    = "goal_weight"
	OnboardingDone          = "done"
)

// OnboardingStep returns the first profile step the user still has to fill in.
func (u *User) OnboardingStep() string {
	switch {
	case u.DisplayName == "":
		return OnboardingName
	case u.CurrentWeightKg == nil:
		return OnboardingCurrentWeight
	case u.GoalWeightKg == nil:
		return OnboardingGoalWeight
	default:
		return OnboardingDone
	}
}

package models

// Category classifies a catalog exercise. Only CategoryCardio changes how
// plans and set logs are shaped; every other category is treated as strength.
type Category string

const (
	CategoryStrength     Category = "strength"
	CategoryCardio       Category = "cardio"
	CategoryStretching   Category = "stretching"
	CategoryPlyometrics  Category = "plyometrics"
	CategoryPowerlifting Category = "powerlifting"
	CategoryOlympic      Category = "olympic_weightlifting"
	CategoryStrongman    Category = "strongman"
)

var validCategories = map[Category]bool{
	CategoryStrength:     true,
	CategoryCardio:       true,
	CategoryStretching:   true,
	CategoryPlyometrics:  true,
	CategoryPowerlifting: true,
	CategoryOlympic:      true,
	CategoryStrongman:    true,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool { return validCategories[c] }

// IsCardio reports whether exercises of this category log duration/distance.
func (c Category) IsCardio() bool { return c == CategoryCardio }

// Exercise is a catalog entry. OwnerID is set for user-authored exercises.
type Exercise struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Category       Category `json:"category"`
	Level          string   `json:"level"`
	Mechanic       string   `json:"mechanic,omitempty"`
	Equipment      string   `json:"equipment,omitempty"`
	PrimaryMuscles []string `json:"primary_muscles"`
	Instructions   []string `json:"instructions"`
	Images         []string `json:"images"`
	Video          string   `json:"video,omitempty"`
	OwnerID        *int64   `json:"owner_id,omitempty"`
	IsPublic       bool     `json:"is_public"`
}

// IsCardio reports whether the exercise is logged as a cardio interval.
func (e *Exercise) IsCardio() bool { return e.Category.IsCardio() }

// VisibleTo reports whether userID may read the exercise.
func (e *Exercise) VisibleTo(userID int64) bool {
	return e.IsPublic || (e.OwnerID != nil && *e.OwnerID == userID)
}

// ExerciseFilter selects catalog exercises. Empty fields do not filter.
type ExerciseFilter struct {
	UserID    int64
	Query     string
	Category  Category
	Level     string
	Equipment string
	Limit     int
	Offset    int
}

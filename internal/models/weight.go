package models

import "time"

// WeightLog is an append-only body weight measurement.
type WeightLog struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"user_id"`
	WeightKg float64   `json:"weight_kg"`
	LoggedAt time.Time `json:"logged_at"`
	Note     string    `json:"note,omitempty"`
}

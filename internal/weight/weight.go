// Package weight records body weight measurements and derives statistics
// and charts from them.
package weight

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/fittrack/fittrack/internal/models"
	"github.com/fittrack/fittrack/internal/storage"
)

const (
	// PageSize is the number of measurements per history page.
	PageSize = 20

	maxWeightKg   = 1000.0
	maxNoteLength = 500
	maxRecent     = 365
	recentWindow  = 30 * 24 * time.Hour
)

// ErrInsufficientData is returned when there are too few measurements to chart.
var ErrInsufficientData = fmt.Errorf("%w: insufficient data", models.ErrValidation)

type Service struct {
	store storage.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewService(store storage.Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// Log appends a measurement and makes it the user's current weight.
func (s *Service) Log(ctx context.Context, userID int64, weightKg float64, note string) (*models.WeightLog, error) {
	if weightKg <= 0 || weightKg > maxWeightKg || math.IsNaN(weightKg) {
		return nil, fmt.Errorf("%w: weight must be greater than 0 and at most %g kg", models.ErrValidation, maxWeightKg)
	}
	note = strings.TrimSpace(note)
	if len(note) > maxNoteLength {
		return nil, fmt.Errorf("%w: note must be at most %d characters", models.ErrValidation, maxNoteLength)
	}

	w := &models.WeightLog{UserID: userID, WeightKg: weightKg, LoggedAt: s.now().UTC(), Note: note}
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		user, err := q.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := q.InsertWeightLog(ctx, w); err != nil {
			return err
		}
		user.CurrentWeightKg = &w.WeightKg
		return q.UpdateUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("weight logged", "user_id", userID, "weight_kg", weightKg)
	return w, nil
}

// History returns one page of measurements, newest first. Pages start at 1.
func (s *Service) History(ctx context.Context, userID int64, page int) ([]models.WeightLog, error) {
	if page < 1 {
		page = 1
	}
	return s.store.ListWeightLogs(ctx, userID, PageSize, (page-1)*PageSize)
}

// Recent returns up to limit measurements, newest first.
func (s *Service) Recent(ctx context.Context, userID int64, limit int) ([]models.WeightLog, error) {
	if limit <= 0 || limit > maxRecent {
		limit = maxRecent
	}
	return s.store.ListWeightLogs(ctx, userID, limit, 0)
}

// Statistics summarizes a user's measurements.
type Statistics struct {
	Current          float64  `json:"current_weight"`
	Start            float64  `json:"start_weight"`
	TotalChange      float64  `json:"total_change"`
	Average          float64  `json:"average_weight"`
	Min              float64  `json:"min_weight"`
	Max              float64  `json:"max_weight"`
	RecentAverage    *float64 `json:"recent_average"`
	Count            int      `json:"total_entries"`
	MeasurementsDays int      `json:"measurement_period_days"`
}

// Statistics returns nil when the user has no measurements.
func (s *Service) Statistics(ctx context.Context, userID int64) (*Statistics, error) {
	logs, err := s.store.ListWeightLogs(ctx, userID, 0, 0)
	if err != nil {
		return nil, err
	}
	return summarize(logs, s.now()), nil
}

// summarize expects logs newest first.
func summarize(logs []models.WeightLog, now time.Time) *Statistics {
	if len(logs) == 0 {
		return nil
	}
	values := make([]float64, len(logs))
	var recent []float64
	for i, l := range logs {
		values[i] = l.WeightKg
		if now.Sub(l.LoggedAt) <= recentWindow {
			recent = append(recent, l.WeightKg)
		}
	}

	newest, oldest := logs[0], logs[len(logs)-1]
	st := &Statistics{
		Current:          newest.WeightKg,
		Start:            oldest.WeightKg,
		TotalChange:      round1(newest.WeightKg - oldest.WeightKg),
		Average:          round1(stat.Mean(values, nil)),
		Min:              floats.Min(values),
		Max:              floats.Max(values),
		Count:            len(logs),
		MeasurementsDays: int(newest.LoggedAt.Sub(oldest.LoggedAt).Hours() / 24),
	}
	if len(recent) > 0 {
		avg := round1(stat.Mean(recent, nil))
		st.RecentAverage = &avg
	}
	return st
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

package workout

import (
	"math"
	"slices"
	"time"

	"github.com/fittrack/fittrack/internal/models"
)

// Totals are the session-level aggregates over completed sets.
type Totals struct {
	Sets     int
	Reps     int
	WeightKg float64
}

// SessionTotals sums completed sets: the set count, reps, and weight×reps.
// Incomplete sets are ignored.
func SessionTotals(logs []models.SetLog) Totals {
	var t Totals
	for i := range logs {
		if !logs[i].Completed {
			continue
		}
		reps, weight := logs[i].RepsAndWeight()
		t.Sets++
		t.Reps += reps
		t.WeightKg += weight * float64(reps)
	}
	return t
}

// DurationMinutes is end-start rounded to whole minutes, never negative.
func DurationMinutes(start, end time.Time) int {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return int(math.Round(d.Minutes()))
}

// ApplyTotals recomputes a session's aggregates from its set logs. Duration
// is only known once the session has completed.
func ApplyTotals(s *models.WorkoutSession, logs []models.SetLog) {
	t := SessionTotals(logs)
	s.TotalSets = t.Sets
	s.TotalReps = t.Reps
	s.TotalWeightKg = t.WeightKg
	if s.CompletedAt != nil {
		s.DurationMinutes = DurationMinutes(s.StartedAt, *s.CompletedAt)
	}
}

// ExerciseAggregate is the per-exercise summary of completed sets.
type ExerciseAggregate struct {
	ExerciseID   int64
	Sets         int
	MeanReps     float64
	MeanWeightKg float64
}

// AggregateByExercise groups completed sets by exercise and averages reps and
// weight with every set weighted equally. Cardio sets count as one rep at zero
// weight. Results are ordered by exercise id.
func AggregateByExercise(logs []models.SetLog) []ExerciseAggregate {
	type acc struct {
		sets   int
		reps   float64
		weight float64
	}
	groups := map[int64]*acc{}
	for i := range logs {
		if !logs[i].Completed {
			continue
		}
		a, ok := groups[logs[i].ExerciseID]
		if !ok {
			a = &acc{}
			groups[logs[i].ExerciseID] = a
		}
		reps, weight := logs[i].RepsAndWeight()
		a.sets++
		a.reps += float64(reps)
		a.weight += weight
	}

	out := make([]ExerciseAggregate, 0, len(groups))
	for id, a := range groups {
		out = append(out, ExerciseAggregate{
			ExerciseID:   id,
			Sets:         a.sets,
			MeanReps:     a.reps / float64(a.sets),
			MeanWeightKg: a.weight / float64(a.sets),
		})
	}
	slices.SortFunc(out, func(a, b ExerciseAggregate) int {
		switch {
		case a.ExerciseID < b.ExerciseID:
			return -1
		case a.ExerciseID > b.ExerciseID:
			return 1
		}
		return 0
	})
	return out
}

// ExerciseGroup is the detail view of one exercise inside a session.
type ExerciseGroup struct {
	Exercise      *models.Exercise `json:"exercise"`
	Sets          []models.SetLog  `json:"sets"`
	TotalReps     int              `json:"total_reps"`
	TotalWeightKg float64          `json:"total_weight_kg"`
	MaxWeightKg   float64          `json:"max_weight_kg"`
}

// GroupSets splits completed sets per exercise, keeping the order in which
// exercises first appear.
func GroupSets(logs []models.SetLog) []ExerciseGroup {
	var out []ExerciseGroup
	index := map[int64]int{}
	for _, l := range logs {
		if !l.Completed {
			continue
		}
		i, ok := index[l.ExerciseID]
		if !ok {
			i = len(out)
			index[l.ExerciseID] = i
			out = append(out, ExerciseGroup{Exercise: &models.Exercise{ID: l.ExerciseID}})
		}
		g := &out[i]
		reps, weight := l.RepsAndWeight()
		g.Sets = append(g.Sets, l)
		g.TotalReps += reps
		g.TotalWeightKg += weight * float64(reps)
		g.MaxWeightKg = max(g.MaxWeightKg, weight)
	}
	return out
}

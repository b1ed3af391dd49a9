package weight

import (
	"bytes"
	"context"
	"image/png"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fittrack/fittrack/internal/models"
	"github.com/fittrack/fittrack/internal/storage/memstore"
)

func newService(t *testing.T) (*Service, *memstore.Store, int64, *time.Time) {
	t.Helper()
	store := memstore.New()
	u, err := store.GetOrCreateUser(context.Background(), models.Principal{Subject: gofakeit.UUID()})
	require.NoError(t, err)
	clock := time.Date(2025, 4, 30, 8, 0, 0, 0, time.UTC)
	svc := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return clock }
	return svc, store, u.ID, &clock
}

// TestLogUpdatesCurrentWeight verifies a measurement updates the profile weight.
func TestLogUpdatesCurrentWeight(t *testing.T) {
	ctx := context.Background()
	svc, store, userID, _ := newService(t)

	w, err := svc.Log(ctx, userID, 82.4, "  after holidays ")
	require.NoError(t, err)
	assert.Equal(t, "after holidays", w.Note)

	u, err := store.GetUser(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, u.CurrentWeightKg)
	assert.InDelta(t, 82.4, *u.CurrentWeightKg, 1e-9)
}

// TestLogValidation verifies weights outside the accepted range are rejected.
func TestLogValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, userID, _ := newService(t)

	for _, kg := range []float64{0, -3, 1000.1} {
		_, err := svc.Log(ctx, userID, kg, "")
		assert.ErrorIs(t, err, models.ErrValidation, "weight %v", kg)
	}
	_, err := svc.Log(ctx, userID, 1000, "")
	assert.NoError(t, err)

	_, err = svc.Log(ctx, userID+99, 80, "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

// TestHistoryPages verifies history paging.
func TestHistoryPages(t *testing.T) {
	ctx := context.Background()
	svc, _, userID, clock := newService(t)
	for i := range PageSize + 5 {
		*clock = clock.Add(24 * time.Hour)
		_, err := svc.Log(ctx, userID, 90-float64(i)*0.1, "")
		require.NoError(t, err)
	}

	first, err := svc.History(ctx, userID, 1)
	require.NoError(t, err)
	assert.Len(t, first, PageSize)
	assert.True(t, first[0].LoggedAt.After(first[1].LoggedAt))

	second, err := svc.History(ctx, userID, 2)
	require.NoError(t, err)
	assert.Len(t, second, 5)
}

// TestStatistics verifies the summary statistics.
func TestStatistics(t *testing.T) {
	ctx := context.Background()
	svc, _, userID, clock := newService(t)

	st, err := svc.Statistics(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, st)

	for _, m := range []struct {
		at time.Time
		kg float64
	}{
		{time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC), 90},
		{time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC), 86},
		{time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC), 85},
	} {
		*clock = m.at
		_, err = svc.Log(ctx, userID, m.kg, "")
		require.NoError(t, err)
	}

	st, err = svc.Statistics(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.InDelta(t, 85, st.Current, 1e-9)
	assert.InDelta(t, 90, st.Start, 1e-9)
	assert.InDelta(t, -5, st.TotalChange, 1e-9)
	assert.InDelta(t, 87, st.Average, 1e-9)
	assert.InDelta(t, 85, st.Min, 1e-9)
	assert.InDelta(t, 90, st.Max, 1e-9)
	require.NotNil(t, st.RecentAverage)
	assert.InDelta(t, 85, *st.RecentAverage, 1e-9)
	assert.Equal(t, 3, st.Count)
	assert.Equal(t, 61, st.MeasurementsDays)
}

// TestRenderChart verifies the chart renders as PNG and needs two measurements.
func TestRenderChart(t *testing.T) {
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	var logs []models.WeightLog
	for i := range 5 {
		logs = append(logs, models.WeightLog{WeightKg: 80 - float64(i)*0.5, LoggedAt: base.AddDate(0, 0, 7*i)})
	}
	goal := 75.0

	data, err := RenderChart(logs, &goal)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())

	_, err = RenderChart(logs[:1], nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.ErrorIs(t, err, models.ErrValidation)
}

// TestRenderChartCloseMeasurements verifies that measurements logged within
// the same second still render.
func TestRenderChartCloseMeasurements(t *testing.T) {
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	logs := []models.WeightLog{
		{WeightKg: 80, LoggedAt: base},
		{WeightKg: 80.2, LoggedAt: base.Add(100 * time.Millisecond)},
		{WeightKg: 80.1, LoggedAt: base.Add(200 * time.Millisecond)},
	}
	data, err := RenderChart(logs, nil)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	for i := range logs {
		logs[i].LoggedAt = base
	}
	data, err = RenderChart(logs, nil)
	require.NoError(t, err, "identical timestamps skip the trend line")
	assert.NotEmpty(t, data)
}

// TestRecentIsNewestFirst verifies recent measurements are newest first.
func TestRecentIsNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _, userID, clock := newService(t)
	for _, kg := range []float64{90, 89, 88} {
		_, err := svc.Log(ctx, userID, kg, "")
		require.NoError(t, err)
		*clock = clock.Add(24 * time.Hour)
	}

	got, err := svc.Recent(ctx, userID, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 88.0, got[0].WeightKg)
	assert.Equal(t, 89.0, got[1].WeightKg)

	all, err := svc.Recent(ctx, userID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

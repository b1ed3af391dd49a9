package weight

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/fittrack/fittrack/internal/models"
)

var (
	weightColor = color.RGBA{R: 0xFF, G: 0x6B, B: 0x35, A: 0xFF}
	trendColor  = color.RGBA{R: 0x4E, G: 0x79, B: 0xA7, A: 0xFF}
	goalColor   = color.RGBA{R: 0x59, G: 0xA1, B: 0x4F, A: 0xFF}
)

// Chart renders the user's weight history as a PNG.
func (s *Service) Chart(ctx context.Context, userID int64) ([]byte, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	logs, err := s.store.ListWeightLogs(ctx, userID, 0, 0)
	if err != nil {
		return nil, err
	}
	return RenderChart(logs, user.GoalWeightKg)
}

// RenderChart draws measurements as a line with markers. With more than two
// measurements spread over time a least-squares trend line is added, and a
// goal line when goal is set.
func RenderChart(logs []models.WeightLog, goal *float64) ([]byte, error) {
	if len(logs) < 2 {
		return nil, ErrInsufficientData
	}
	logs = slices.Clone(logs)
	slices.SortFunc(logs, func(a, b models.WeightLog) int { return a.LoggedAt.Compare(b.LoggedAt) })

	pts := make(plotter.XYs, len(logs))
	xs := make([]float64, len(logs))
	ys := make([]float64, len(logs))
	for i, l := range logs {
		pts[i].X = float64(l.LoggedAt.UnixNano()) / float64(time.Second)
		pts[i].Y = l.WeightKg
		xs[i], ys[i] = pts[i].X, pts[i].Y
	}

	p := plot.New()
	p.Title.Text = "Weight"
	p.Y.Label.Text = "kg"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.Add(plotter.NewGrid())

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, fmt.Errorf("building weight line: %w", err)
	}
	line.Color = weightColor
	line.Width = vg.Points(2)
	points.GlyphStyle.Color = weightColor
	points.GlyphStyle.Radius = vg.Points(3)
	p.Add(line, points)
	p.Legend.Add("weight", line, points)

	first, last := xs[0], xs[len(xs)-1]
	if len(logs) > 2 && last > first {
		alpha, beta := stat.LinearRegression(xs, ys, nil, false)
		from, to := alpha+beta*first, alpha+beta*last
		if finite(from) && finite(to) {
			trend, err := plotter.NewLine(plotter.XYs{{X: first, Y: from}, {X: last, Y: to}})
			if err != nil {
				return nil, fmt.Errorf("building trend line: %w", err)
			}
			trend.Color = trendColor
			trend.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
			p.Add(trend)
			p.Legend.Add("trend", trend)
		}
	}

	if goal != nil {
		g, err := plotter.NewLine(plotter.XYs{{X: first, Y: *goal}, {X: last, Y: *goal}})
		if err != nil {
			return nil, fmt.Errorf("building goal line: %w", err)
		}
		g.Color = goalColor
		g.Dashes = []vg.Length{vg.Points(2), vg.Points(3)}
		p.Add(g)
		p.Legend.Add(fmt.Sprintf("goal %.1f kg", *goal), g)
	}
	p.Legend.Top = true

	w, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("rendering weight chart: %w", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encoding weight chart: %w", err)
	}
	return buf.Bytes(), nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

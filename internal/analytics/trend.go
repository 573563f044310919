package analytics

import (
	"errors"
	"slices"
)

// ErrInsufficientData is returned when fewer than two usable points remain.
var ErrInsufficientData = errors.New("analytics: insufficient data for trend")

// Point is one (day index, return ratio) observation.
type Point struct {
	X float64
	Y float64
}

// Trend is an ordinary least squares fit y = Intercept + Slope*x.
type Trend struct {
	Slope     float64
	Intercept float64
	Points    []Point
}

// At evaluates the fitted line at x.
func (t Trend) At(x float64) float64 {
	return t.Intercept + t.Slope*x
}

// FitTrend regresses return ratio against the zero-based position of each
// record in the chronological series. Records without a usable return ratio
// still consume an index so the spacing between surviving days is preserved.
func FitTrend(series []DailyRecord, policy Policy) (Trend, error) {
	ordered := slices.Clone(series)
	slices.SortStableFunc(ordered, func(a, b DailyRecord) int {
		return a.Date.Compare(b.Date)
	})

	points := make([]Point, 0, len(ordered))
	for i, rec := range ordered {
		if !policy.Usable(rec.ReturnRatio) {
			continue
		}
		points = append(points, Point{X: float64(i), Y: *rec.ReturnRatio})
	}
	if len(points) < 2 {
		return Trend{Points: points}, ErrInsufficientData
	}
	return fitOLS(points), nil
}

func fitOLS(points []Point) Trend {
	var sumX, sumY, sumXY, sumXX float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
		sumXY += p.X * p.Y
		sumXX += p.X * p.X
	}
	n := float64(len(points))

	// x values are distinct indices, so the denominator is never zero here.
	slope := (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
	intercept := (sumY - slope*sumX) / n
	return Trend{Slope: slope, Intercept: intercept, Points: points}
}

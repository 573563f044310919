package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitTrendInsufficientData(t *testing.T) {
	_, err := FitTrend(nil, ExcludeNonFinite)
	assert.ErrorIs(t, err, ErrInsufficientData)

	one := 1.0
	_, err = FitTrend([]DailyRecord{withRatio(t, "2019-01-25", &one), withRatio(t, "2019-01-26", nil)}, ExcludeNonFinite)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestFitTrendTwoPoints(t *testing.T) {
	y0, y1 := 1.0, 3.0
	trend, err := FitTrend([]DailyRecord{withRatio(t, "2019-01-25", &y0), withRatio(t, "2019-01-26", &y1)}, ExcludeNonFinite)
	require.NoError(t, err)
	assert.Equal(t, 2.0, trend.Slope)
	assert.Equal(t, 1.0, trend.Intercept)
	assert.Equal(t, 5.0, trend.At(2))
}

func TestFitTrendGapKeepsIndex(t *testing.T) {
	// Day 1 has no usable ratio; the surviving points sit at x=0 and x=2.
	y0, y2 := 1.0, 5.0
	nan := math.NaN()
	series := []DailyRecord{
		withRatio(t, "2019-01-25", &y0),
		withRatio(t, "2019-01-26", &nan),
		withRatio(t, "2019-01-27", &y2),
	}
	trend, err := FitTrend(series, ExcludeNonFinite)
	require.NoError(t, err)
	assert.Equal(t, []Point{{X: 0, Y: 1}, {X: 2, Y: 5}}, trend.Points)
	assert.Equal(t, 2.0, trend.Slope)
}

func TestFitTrendOrdersChronologically(t *testing.T) {
	y0, y1, y2 := 3.0, 2.0, 1.0
	series := []DailyRecord{
		withRatio(t, "2019-01-27", &y2),
		withRatio(t, "2019-01-25", &y0),
		withRatio(t, "2019-01-26", &y1),
	}
	trend, err := FitTrend(series, ExcludeNonFinite)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, trend.Slope, 1e-12)
}

func TestFitTrendAppendKeepsEarlierIndices(t *testing.T) {
	y0, y1, y2 := 1.0, 2.0, 4.0
	base := []DailyRecord{withRatio(t, "2019-01-25", &y0), withRatio(t, "2019-01-26", &y1)}
	before, err := FitTrend(base, ExcludeNonFinite)
	require.NoError(t, err)

	after, err := FitTrend(append(base, withRatio(t, "2019-01-27", &y2)), ExcludeNonFinite)
	require.NoError(t, err)

	assert.Equal(t, before.Points, after.Points[:2])
	assert.Equal(t, Point{X: 2, Y: 4}, after.Points[2])
}

func TestFitTrendInfinityPolicy(t *testing.T) {
	y0, y1 := 1.0, 2.0
	inf := math.Inf(1)
	series := []DailyRecord{
		withRatio(t, "2019-01-25", &y0),
		withRatio(t, "2019-01-26", &y1),
		withRatio(t, "2019-01-27", &inf),
	}

	trend, err := FitTrend(series, ExcludeNonFinite)
	require.NoError(t, err)
	assert.Equal(t, 1.0, trend.Slope)

	trend, err = FitTrend(series, IncludeInfinite)
	require.NoError(t, err)
	assert.Len(t, trend.Points, 3)
	assert.True(t, math.IsNaN(trend.Slope) || math.IsInf(trend.Slope, 0), "infinite input should poison the slope, got %v", trend.Slope)
}

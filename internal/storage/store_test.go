package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adbudget/internal/analytics"
)

func day(d int) time.Time {
	return time.Date(2019, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestRecordReplacesSameDay(t *testing.T) {
	s := NewSeriesStore()
	s.Record("a", day(25), analytics.Raw{"spend": 10, "revenue": 10})
	s.Record("a", day(25).Add(15*time.Hour), analytics.Raw{"spend": 10, "revenue": 30})

	series := s.SeriesFor("a")
	require.Len(t, series, 1)
	require.NotNil(t, series[0].ReturnRatio)
	assert.Equal(t, 3.0, *series[0].ReturnRatio)
}

func TestSeriesForOrdersByDate(t *testing.T) {
	s := NewSeriesStore()
	for _, d := range []int{27, 25, 26} {
		s.Record("a", day(d), analytics.Raw{"spend": 1})
	}

	series := s.SeriesFor("a")
	require.Len(t, series, 3)
	for i, want := range []int{25, 26, 27} {
		assert.Equal(t, day(want), series[i].Date)
	}
	assert.Empty(t, s.SeriesFor("missing"))
}

func TestAdIDsSorted(t *testing.T) {
	s := NewSeriesStore()
	for _, id := range []string{"c", "a", "b", "a"} {
		s.Record(id, day(25), analytics.Raw{})
	}
	assert.Equal(t, []string{"a", "b", "c"}, s.AdIDs())
	assert.Equal(t, 3, s.Len())
}

func TestSeriesForReturnsCopies(t *testing.T) {
	s := NewSeriesStore()
	s.Record("a", day(25), analytics.Raw{"spend": 10, "revenue": 20})

	series := s.SeriesFor("a")
	series[0].Raw["spend"] = 99
	*series[0].ReturnRatio = 99

	again := s.SeriesFor("a")
	assert.Equal(t, 10.0, again[0].Raw["spend"])
	assert.Equal(t, 2.0, *again[0].ReturnRatio)
}

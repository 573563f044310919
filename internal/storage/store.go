package storage

import (
	"slices"
	"sync"
	"time"

	"adbudget/internal/analytics"
)

// SeriesStore holds the per-ad daily time series of one analysis run.
// It is safe for concurrent use.
type SeriesStore struct {
	mu     sync.RWMutex
	series map[string]map[time.Time]analytics.DailyRecord
}

// NewSeriesStore returns an empty store.
func NewSeriesStore() *SeriesStore {
	return &SeriesStore{series: make(map[string]map[time.Time]analytics.DailyRecord)}
}

// Record derives the metrics for raw and stores them under (adID, date),
// replacing any earlier record for the same day.
func (s *SeriesStore) Record(adID string, date time.Time, raw analytics.Raw) analytics.DailyRecord {
	rec := analytics.NewDailyRecord(adID, date, raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	days, ok := s.series[adID]
	if !ok {
		days = make(map[time.Time]analytics.DailyRecord)
		s.series[adID] = days
	}
	days[rec.Date] = rec
	return rec
}

// AdIDs lists the ads seen so far in ascending order.
func (s *SeriesStore) AdIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.series))
	for id := range s.series {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SeriesFor returns the records of one ad in ascending date order.
// Unknown ads yield an empty slice.
func (s *SeriesStore) SeriesFor(adID string) []analytics.DailyRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	days := s.series[adID]
	out := make([]analytics.DailyRecord, 0, len(days))
	for _, rec := range days {
		out = append(out, rec.Clone())
	}
	slices.SortFunc(out, func(a, b analytics.DailyRecord) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

// Len returns the number of ads with at least one record.
func (s *SeriesStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series)
}

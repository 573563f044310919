package service

import (
	"github.com/shopspring/decimal"

	"adbudget/internal/analytics"
	"adbudget/internal/budget"
)

// State tracks how far the pipeline got for one ad.
type State int

const (
	StateNoData State = iota
	StatePartiallyDerived
	StateSummarized
)

func (s State) String() string {
	switch s {
	case StatePartiallyDerived:
		return "partially_derived"
	case StateSummarized:
		return "summarized"
	default:
		return "no_data"
	}
}

// AdSummary collects the per-ad results of a run. Nil fields are unknown.
type AdSummary struct {
	AdID                       string
	State                      State
	Days                       int
	CurrentBudget              *decimal.Decimal
	AverageReturnRatio         *float64
	AverageProfitPerImpression *float64
	TrendSlope                 *float64
	Trend                      *analytics.Trend
	ProposedBudget             *decimal.Decimal
	Action                     budget.Action
}

func (s AdSummary) clone() AdSummary {
	out := s
	out.CurrentBudget = cloneDecimal(s.CurrentBudget)
	out.ProposedBudget = cloneDecimal(s.ProposedBudget)
	out.AverageReturnRatio = cloneFloat(s.AverageReturnRatio)
	out.AverageProfitPerImpression = cloneFloat(s.AverageProfitPerImpression)
	out.TrendSlope = cloneFloat(s.TrendSlope)
	if s.Trend != nil {
		t := *s.Trend
		t.Points = append([]analytics.Point(nil), s.Trend.Points...)
		out.Trend = &t
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneDecimal(v *decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Feed is the read-only result of a run handed to the report layer.
type Feed struct {
	adIDs     []string
	summaries map[string]AdSummary
	series    map[string][]analytics.DailyRecord
}

// AdIDs lists the ads in the feed in ascending order.
func (f *Feed) AdIDs() []string {
	return append([]string(nil), f.adIDs...)
}

// Summary returns a copy of the summary for adID.
func (f *Feed) Summary(adID string) (AdSummary, bool) {
	s, ok := f.summaries[adID]
	if !ok {
		return AdSummary{}, false
	}
	return s.clone(), true
}

// Summaries returns copies of all summaries ordered by ad id. Ads whose
// series holds no usable value have a series but no summary.
func (f *Feed) Summaries() []AdSummary {
	out := make([]AdSummary, 0, len(f.summaries))
	for _, id := range f.adIDs {
		if s, ok := f.summaries[id]; ok {
			out = append(out, s.clone())
		}
	}
	return out
}

// Series returns a copy of the chronological time series for adID.
func (f *Feed) Series(adID string) []analytics.DailyRecord {
	src := f.series[adID]
	out := make([]analytics.DailyRecord, 0, len(src))
	for _, rec := range src {
		out = append(out, rec.Clone())
	}
	return out
}

// Len returns the number of ads in the feed, summarised or not.
func (f *Feed) Len() int {
	return len(f.adIDs)
}

package analytics

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by the insight API and in reports.
const DateLayout = "2006-01-02"

// Metric names understood by the derivation step.
const (
	MetricSpend       = "spend"
	MetricRevenue     = "revenue"
	MetricImpressions = "impressions"
	MetricClicks      = "clicks"
)

// DefaultMetrics is the metric list requested when none is configured.
var DefaultMetrics = []string{MetricSpend, MetricRevenue, MetricImpressions, MetricClicks}

// Raw maps a metric name to its value for one ad on one day.
// A metric that never arrived is absent from the map, never zero.
type Raw map[string]float64

// Get returns the metric value and whether it was reported.
func (r Raw) Get(name string) (float64, bool) {
	v, ok := r[name]
	return v, ok
}

// Clone returns an independent copy.
func (r Raw) Clone() Raw {
	if r == nil {
		return Raw{}
	}
	return maps.Clone(r)
}

// DailyRecord holds raw and derived metrics for one ad on one calendar date.
// Derived fields are nil when an input metric is missing and may be non-finite
// when a denominator is zero.
type DailyRecord struct {
	AdID                string
	Date                time.Time
	Raw                 Raw
	ReturnRatio         *float64
	ProfitPerImpression *float64
}

// NewDailyRecord normalises the date to a UTC calendar day and derives the
// efficiency metrics from raw.
func NewDailyRecord(adID string, date time.Time, raw Raw) DailyRecord {
	owned := raw.Clone()
	roas, ppi := Derive(owned)
	return DailyRecord{
		AdID:                adID,
		Date:                Day(date),
		Raw:                 owned,
		ReturnRatio:         roas,
		ProfitPerImpression: ppi,
	}
}

// Clone returns a deep copy so callers cannot reach the stored values.
func (r DailyRecord) Clone() DailyRecord {
	r.Raw = r.Raw.Clone()
	r.ReturnRatio = clonePtr(r.ReturnRatio)
	r.ProfitPerImpression = clonePtr(r.ProfitPerImpression)
	return r
}

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// DateString formats the record date as YYYY-MM-DD.
func (r DailyRecord) DateString() string {
	return r.Date.Format(DateLayout)
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// Field selects a derived metric of a DailyRecord.
type Field int

const (
	FieldReturnRatio Field = iota
	FieldProfitPerImpression
)

func (f Field) String() string {
	switch f {
	case FieldReturnRatio:
		return "return_ratio"
	case FieldProfitPerImpression:
		return "profit_per_impression"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

func (f Field) of(rec DailyRecord) *float64 {
	switch f {
	case FieldReturnRatio:
		return rec.ReturnRatio
	case FieldProfitPerImpression:
		return rec.ProfitPerImpression
	default:
		return nil
	}
}

package analytics

import (
	"fmt"
	"math"
	"strings"
)

// Derive computes the return ratio (revenue / spend) and the profit per
// thousand impressions (1000 * (revenue - spend) / impressions).
// Zero denominators follow IEEE semantics: ±Inf, or NaN for 0/0.
func Derive(raw Raw) (returnRatio, profitPerImpression *float64) {
	revenue, hasRevenue := raw.Get(MetricRevenue)
	spend, hasSpend := raw.Get(MetricSpend)
	impressions, hasImpressions := raw.Get(MetricImpressions)

	if hasRevenue && hasSpend {
		v := revenue / spend
		returnRatio = &v
	}
	if hasRevenue && hasSpend && hasImpressions {
		v := 1000 * (revenue - spend) / impressions
		profitPerImpression = &v
	}
	return returnRatio, profitPerImpression
}

// Policy decides which derived values take part in averaging and regression.
type Policy int

const (
	// ExcludeNonFinite treats NaN and ±Inf as unusable.
	ExcludeNonFinite Policy = iota
	// IncludeInfinite drops only NaN and lets ±Inf through.
	IncludeInfinite
)

// ParsePolicy maps a configuration string onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exclude", "exclude-non-finite":
		return ExcludeNonFinite, nil
	case "include", "include-infinite":
		return IncludeInfinite, nil
	default:
		return ExcludeNonFinite, fmt.Errorf("unknown infinite value policy %q", s)
	}
}

func (p Policy) String() string {
	if p == IncludeInfinite {
		return "include-infinite"
	}
	return "exclude-non-finite"
}

// Usable reports whether v is present and a number the policy accepts.
func (p Policy) Usable(v *float64) bool {
	if v == nil || math.IsNaN(*v) {
		return false
	}
	if math.IsInf(*v, 0) {
		return p == IncludeInfinite
	}
	return true
}

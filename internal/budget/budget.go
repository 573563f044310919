package budget

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Rules holds the constants of the recommendation heuristic.
type Rules struct {
	ROASThreshold float64 `mapstructure:"roas_threshold"`
	ScaleUpFactor float64 `mapstructure:"scale_up_factor"`
	ProfitWeight  float64 `mapstructure:"profit_weight"`
}

// DefaultRules returns the stock heuristic: break-even at a return ratio of 1,
// scale up by 10% of the ratio, weight profit per mille by 0.3.
func DefaultRules() Rules {
	return Rules{ROASThreshold: 1, ScaleUpFactor: 0.1, ProfitWeight: 0.3}
}

// Validate performs basic sanity checks on the rule constants.
func (r Rules) Validate() error {
	for name, v := range map[string]float64{
		"roas_threshold":  r.ROASThreshold,
		"scale_up_factor": r.ScaleUpFactor,
		"profit_weight":   r.ProfitWeight,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("recommendation.%s must be finite", name)
		}
	}
	if r.ScaleUpFactor < 0 {
		return fmt.Errorf("recommendation.scale_up_factor cannot be negative")
	}
	return nil
}

// Action names the branch of the heuristic that decided the base adjustment.
type Action string

const (
	ActionDefund  Action = "defund"
	ActionScaleUp Action = "scale_up"
	ActionHold    Action = "hold"
)

// Input carries the per-ad figures. A nil field is unknown.
type Input struct {
	CurrentBudget              *decimal.Decimal
	AverageReturnRatio         *float64
	TrendSlope                 *float64
	AverageProfitPerImpression *float64
}

// Recommendation is the outcome of the heuristic for one ad.
type Recommendation struct {
	Proposed decimal.Decimal
	Delta    decimal.Decimal
	Action   Action
}

// Recommend applies the budget rules. The second return value is false when
// the current budget, average return ratio or trend slope is unknown; an
// unknown profit per impression only drops the profit term.
//
// Unprofitable and flat-or-declining ads are defunded; profitable and
// flat-or-rising ads grow in proportion to their return ratio. When ratio and
// trend disagree neither branch fires and only the profit term moves the
// budget. The result is never negative.
func Recommend(in Input, rules Rules) (Recommendation, bool) {
	if in.CurrentBudget == nil || !finite(in.AverageReturnRatio) || !finite(in.TrendSlope) {
		return Recommendation{}, false
	}

	current := *in.CurrentBudget
	roas := *in.AverageReturnRatio
	slope := *in.TrendSlope

	delta := decimal.Zero
	action := ActionHold
	switch {
	case roas <= rules.ROASThreshold && slope <= 0:
		delta = delta.Sub(current)
		action = ActionDefund
	case roas > rules.ROASThreshold && slope >= 0:
		delta = delta.Add(current.Mul(decimal.NewFromFloat(roas)).Mul(decimal.NewFromFloat(rules.ScaleUpFactor)))
		action = ActionScaleUp
	}

	if finite(in.AverageProfitPerImpression) {
		ppi := decimal.NewFromFloat(*in.AverageProfitPerImpression)
		delta = delta.Add(current.Mul(ppi).Mul(decimal.NewFromFloat(rules.ProfitWeight)))
	}

	proposed := current.Add(delta)
	if proposed.IsNegative() {
		proposed = decimal.Zero
	}
	return Recommendation{Proposed: proposed, Delta: proposed.Sub(current), Action: action}, true
}

// ChangePct returns the relative change from current to proposed in percent.
// It reports false for a zero current budget.
func ChangePct(current, proposed decimal.Decimal) (decimal.Decimal, bool) {
	if current.IsZero() {
		return decimal.Zero, false
	}
	return proposed.Sub(current).Div(current).Mul(decimal.NewFromInt(100)), true
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

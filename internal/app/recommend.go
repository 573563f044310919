package app

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"adbudget/internal/budget"
)

// Recommend evaluates the budget rules for the given figures without
// contacting any data source.
func (a *App) Recommend(opts RecommendOptions) error {
	if opts.Budget == nil {
		return errors.New("--budget is required")
	}
	for flag, v := range map[string]*float64{
		"--budget": opts.Budget,
		"--roas":   opts.AverageReturnRatio,
		"--slope":  opts.TrendSlope,
		"--ppi":    opts.AverageProfit,
	} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return fmt.Errorf("%s must be a finite number", flag)
		}
	}
	if *opts.Budget < 0 {
		return errors.New("--budget cannot be negative")
	}

	current := decimal.NewFromFloat(*opts.Budget)
	rec, ok := budget.Recommend(budget.Input{
		CurrentBudget:              &current,
		AverageReturnRatio:         opts.AverageReturnRatio,
		TrendSlope:                 opts.TrendSlope,
		AverageProfitPerImpression: opts.AverageProfit,
	}, a.Config.Recommendation)
	if !ok {
		return errors.New("--roas and --slope are required to compute a proposal")
	}

	fmt.Fprintf(a.Out, "current:  %s\n", current.StringFixed(2))
	fmt.Fprintf(a.Out, "proposed: %s\n", rec.Proposed.StringFixed(2))
	fmt.Fprintf(a.Out, "delta:    %s\n", rec.Delta.StringFixed(2))
	fmt.Fprintf(a.Out, "action:   %s\n", rec.Action)
	if opts.AverageProfit == nil {
		fmt.Fprintln(a.Out, "note:     profit per impression unknown; profit term skipped")
	}
	return nil
}

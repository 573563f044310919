package cli

import (
	"github.com/spf13/cobra"

	"adbudget/internal/app"
)

var (
	recommendBudget float64
	recommendROAS   float64
	recommendSlope  float64
	recommendPPI    float64
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Evaluate the budget rules for the given figures",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		opts := app.RecommendOptions{}
		if flags.Changed("budget") {
			opts.Budget = &recommendBudget
		}
		if flags.Changed("roas") {
			opts.AverageReturnRatio = &recommendROAS
		}
		if flags.Changed("slope") {
			opts.TrendSlope = &recommendSlope
		}
		if flags.Changed("ppi") {
			opts.AverageProfit = &recommendPPI
		}
		return getApp().Recommend(opts)
	},
}

func init() {
	recommendCmd.Flags().Float64Var(&recommendBudget, "budget", 0, "Current budget")
	recommendCmd.Flags().Float64Var(&recommendROAS, "roas", 0, "Average return ratio (revenue / spend)")
	recommendCmd.Flags().Float64Var(&recommendSlope, "slope", 0, "Trend slope of the return ratio per day")
	recommendCmd.Flags().Float64Var(&recommendPPI, "ppi", 0, "Average profit per thousand impressions (optional)")
}

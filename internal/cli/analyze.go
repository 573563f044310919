package cli

import (
	"github.com/spf13/cobra"

	"adbudget/internal/app"
)

var analyzeOpts app.AnalyzeOptions

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Fetch insights for the date range and print per-ad budget recommendations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Analyze(cmd.Context(), analyzeOpts)
	},
}

func init() {
	addRunFlags(analyzeCmd, &analyzeOpts.RunOptions)
	analyzeCmd.Flags().BoolVar(&analyzeOpts.Detail, "detail", false, "Also print the daily table of every ad")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.NoColor, "no-color", false, "Disable coloured output")
}

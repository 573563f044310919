package cli

import (
	"github.com/spf13/cobra"

	"adbudget/internal/app"
)

var exportOpts app.ExportOptions

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export daily series and summaries as CSV and/or a PNG trend chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Export(cmd.Context(), exportOpts)
	},
}

func init() {
	addRunFlags(exportCmd, &exportOpts.RunOptions)
	exportCmd.Flags().StringVar(&exportOpts.CSVPath, "csv", "", "Path to write the daily series CSV (defaults to export.csv_path)")
	exportCmd.Flags().StringVar(&exportOpts.SummaryCSVPath, "summary-csv", "", "Path to write the per-ad summary CSV")
	exportCmd.Flags().StringVar(&exportOpts.PNGPath, "png", "", "Path to write the PNG trend chart (defaults to export.png_path)")
}

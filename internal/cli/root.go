package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"adbudget/internal/app"
	"adbudget/internal/config"
	"adbudget/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	appHandle *app.App
)

var rootCmd = &cobra.Command{
	Use:           "adbudget",
	Short:         "Analyse ad performance and recommend budget changes",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appHandle != nil {
			return nil
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger := logging.NewLogger(cfg.Logging)
		appHandle = app.NewApp(cfg, logger)
		appHandle.Out = cmd.OutOrStdout()
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(versionCmd)
}

func getApp() *app.App {
	if appHandle == nil {
		panic("application not initialized; PersistentPreRunE not executed")
	}
	return appHandle
}

func addRunFlags(cmd *cobra.Command, opts *app.RunOptions) {
	cmd.Flags().StringVar(&opts.From, "from", "", "Start date (YYYY-MM-DD, inclusive); defaults to analysis.start_date")
	cmd.Flags().StringVar(&opts.To, "to", "", "End date (YYYY-MM-DD, inclusive); defaults to analysis.end_date")
	cmd.Flags().StringVar(&opts.InputPath, "input", "", "Read insights and budgets from a captured JSON file instead of the API")
}

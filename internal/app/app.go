package app

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"adbudget/internal/alerting"
	"adbudget/internal/analytics"
	"adbudget/internal/budget"
	"adbudget/internal/config"
	"adbudget/internal/fetcher"
	"adbudget/internal/service"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

// RunOptions select the data of one analysis run.
type RunOptions struct {
	From      string
	To        string
	InputPath string
}

// AnalyzeOptions configure the analyze command.
type AnalyzeOptions struct {
	RunOptions
	Detail  bool
	NoColor bool
}

// ExportOptions configure the export command.
type ExportOptions struct {
	RunOptions
	CSVPath        string
	SummaryCSVPath string
	PNGPath        string
}

// RecommendOptions carry the figures for a one-off recommendation. Nil
// pointers are unknown.
type RecommendOptions struct {
	Budget             *float64
	AverageReturnRatio *float64
	TrendSlope         *float64
	AverageProfit      *float64
}

func (a *App) newSources(opts RunOptions) (fetcher.InsightFetcher, fetcher.BudgetFetcher, error) {
	if opts.InputPath != "" {
		src, err := fetcher.LoadFileSource(opts.InputPath)
		if err != nil {
			return nil, nil, err
		}
		return src, src, nil
	}

	cfg := a.Config.Shareably
	if cfg.AccessToken == "" {
		a.Logger.Warn().Msg("shareably.access_token not configured; requests will be unauthenticated")
	}
	client := fetcher.NewShareably(fetcher.ShareablyOptions{
		BaseURL:           cfg.BaseURL,
		AccessToken:       cfg.AccessToken,
		Timeout:           cfg.RequestTimeout,
		UserAgent:         cfg.UserAgent,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, a.Logger)
	return client, client, nil
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return alerting.NewLogNotifier(a.Logger)
}

type runResult struct {
	feed *service.Feed
	from time.Time
	to   time.Time
}

// runPipeline ingests the configured range and summarises every ad.
func (a *App) runPipeline(ctx context.Context, opts RunOptions) (*runResult, error) {
	from, to, err := a.Config.ResolveRange(opts.From, opts.To)
	if err != nil {
		return nil, err
	}
	policy, err := a.Config.Policy()
	if err != nil {
		return nil, err
	}

	insights, budgets, err := a.newSources(opts)
	if err != nil {
		return nil, err
	}

	logger := a.Logger.With().Str("run_id", uuid.NewString()).Logger()
	svc := service.New(service.Options{
		Metrics: a.Config.Analysis.Metrics,
		Workers: a.Config.Analysis.Workers,
		Policy:  policy,
		Rules:   a.Config.Recommendation,
	}, insights, budgets, logger)

	logger.Info().
		Str("from", from.Format(analytics.DateLayout)).
		Str("to", to.Format(analytics.DateLayout)).
		Str("infinite_values", policy.String()).
		Msg("starting analysis")

	feed, err := svc.Run(ctx, from, to)
	if err != nil {
		return nil, err
	}
	logger.Info().Int("ads", feed.Len()).Msg("analysis complete")
	return &runResult{feed: feed, from: from, to: to}, nil
}

// Analyze runs the pipeline and prints the summary table.
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := a.runPipeline(ctx, opts.RunOptions)
	if err != nil {
		return err
	}

	if err := a.printSummaries(res.feed, opts.NoColor); err != nil {
		return err
	}
	if opts.Detail {
		if err := a.printSeries(res.feed); err != nil {
			return err
		}
	}

	a.dispatchAlerts(ctx, res)
	return nil
}

// dispatchAlerts notifies about proposals that move a budget by at least the
// configured percentage. Delivery failures are logged, not returned.
func (a *App) dispatchAlerts(ctx context.Context, res *runResult) {
	if !a.Config.Alerting.Enabled {
		return
	}
	notifier := a.newNotifier()
	threshold := decimal.NewFromFloat(a.Config.Alerting.ChangeThresholdPct)
	for _, note := range buildNotifications(res, threshold) {
		if err := notifier.Notify(ctx, note); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			a.Logger.Error().Err(err).Str("ad_id", note.AdID).Msg("failed to dispatch budget alert")
		}
	}
}

func buildNotifications(res *runResult, threshold decimal.Decimal) []alerting.Notification {
	var notes []alerting.Notification
	for _, s := range res.feed.Summaries() {
		if s.CurrentBudget == nil || s.ProposedBudget == nil {
			continue
		}
		change, ok := budget.ChangePct(*s.CurrentBudget, *s.ProposedBudget)
		if !ok || change.Abs().LessThan(threshold) {
			continue
		}
		notes = append(notes, alerting.Notification{
			AdID:               s.AdID,
			From:               res.from,
			To:                 res.to,
			CurrentBudget:      *s.CurrentBudget,
			ProposedBudget:     *s.ProposedBudget,
			ChangePct:          change,
			ThresholdPct:       threshold,
			Action:             string(s.Action),
			AverageReturnRatio: s.AverageReturnRatio,
			TrendSlope:         s.TrendSlope,
		})
	}
	return notes
}

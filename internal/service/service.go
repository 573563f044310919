package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"adbudget/internal/analytics"
	"adbudget/internal/budget"
	"adbudget/internal/fetcher"
	"adbudget/internal/storage"
)

// Options tune a Service.
type Options struct {
	Metrics []string
	Workers int
	Policy  analytics.Policy
	Rules   budget.Rules
}

// Service orchestrates ingestion, budget lookup and summarisation for one run.
// It owns the time-series store and the budgets; callers only see the Feed.
type Service struct {
	insights fetcher.InsightFetcher
	budgets  fetcher.BudgetFetcher
	store    *storage.SeriesStore
	logger   zerolog.Logger

	metrics []string
	workers int
	policy  analytics.Policy
	rules   budget.Rules

	mu      sync.Mutex
	current map[string]decimal.Decimal
}

// New constructs the orchestrator. Either fetcher may be nil, in which case
// the corresponding data is simply missing.
func New(opts Options, insights fetcher.InsightFetcher, budgets fetcher.BudgetFetcher, logger zerolog.Logger) *Service {
	metrics := opts.Metrics
	if len(metrics) == 0 {
		metrics = analytics.DefaultMetrics
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		insights: insights,
		budgets:  budgets,
		store:    storage.NewSeriesStore(),
		logger:   logger.With().Str("component", "service").Logger(),
		metrics:  append([]string(nil), metrics...),
		workers:  workers,
		policy:   opts.Policy,
		rules:    opts.Rules,
		current:  make(map[string]decimal.Decimal),
	}
}

// IngestReport summarises an ingestion pass.
type IngestReport struct {
	Dates   int
	Failed  int
	Records int
}

// Run ingests every date in [from, to], loads budgets and summarises all ads.
// Upstream failures degrade to missing data; only context cancellation aborts.
func (s *Service) Run(ctx context.Context, from, to time.Time) (*Feed, error) {
	report, err := s.Ingest(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int("dates", report.Dates).Int("failed", report.Failed).
		Int("records", report.Records).Int("ads", s.store.Len()).
		Msg("ingestion complete")

	if err := s.LoadBudgets(ctx); err != nil {
		return nil, err
	}
	return s.Summarize(ctx)
}

// Ingest fetches and records each date of the inclusive range in order.
func (s *Service) Ingest(ctx context.Context, from, to time.Time) (IngestReport, error) {
	var report IngestReport
	from, to = analytics.Day(from), analytics.Day(to)
	if to.Before(from) {
		return report, fmt.Errorf("range end %s before start %s", to.Format(analytics.DateLayout), from.Format(analytics.DateLayout))
	}

	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Dates++

		n, err := s.IngestDate(ctx, date)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed++
			s.logger.Error().Err(err).Str("date", date.Format(analytics.DateLayout)).Msg("insight fetch failed; date treated as missing")
			continue
		}
		report.Records += n
	}
	return report, nil
}

// IngestDate fetches insights for one date and records every returned row.
func (s *Service) IngestDate(ctx context.Context, date time.Time) (int, error) {
	if s.insights == nil {
		return 0, errors.New("insight source not configured")
	}
	rows, err := s.insights.FetchInsights(ctx, date, s.metrics)
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		s.Record(row.AdID, date, row.Metrics)
	}
	s.logger.Debug().Str("date", date.Format(analytics.DateLayout)).Int("rows", len(rows)).Msg("date ingested")
	return len(rows), nil
}

// Record stores one day of raw metrics, keeping only the configured metrics.
func (s *Service) Record(adID string, date time.Time, raw analytics.Raw) analytics.DailyRecord {
	kept := analytics.Raw{}
	for _, name := range s.metrics {
		if v, ok := raw.Get(name); ok {
			kept[name] = v
		}
	}
	return s.store.Record(adID, date, kept)
}

// SetBudget records a known current budget for adID.
func (s *Service) SetBudget(adID string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current[adID] = amount
}

func (s *Service) budgetFor(adID string) *decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.current[adID]
	if !ok {
		return nil
	}
	return &b
}

// LoadBudgets fetches the current budget of every ad seen so far. It returns
// only after every fetch has finished so recommendations never race budgets.
func (s *Service) LoadBudgets(ctx context.Context) error {
	if s.budgets == nil {
		s.logger.Warn().Msg("budget source not configured; recommendations disabled")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, adID := range s.store.AdIDs() {
		if s.budgetFor(adID) != nil {
			continue
		}
		adID := adID
		g.Go(func() error {
			amount, err := s.budgets.FetchBudget(gctx, adID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Error().Err(err).Str("ad_id", adID).Msg("budget fetch failed; budget treated as unknown")
				return nil
			}
			s.SetBudget(adID, amount)
			return nil
		})
	}
	return g.Wait()
}

// Summarize runs aggregation, trend estimation and recommendation for every
// ad in parallel. Each goroutine writes only its own slot.
func (s *Service) Summarize(ctx context.Context) (*Feed, error) {
	ids := s.store.AdIDs()
	series := make([][]analytics.DailyRecord, len(ids))
	summaries := make([]*AdSummary, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, adID := range ids {
		i, adID := i, adID
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			series[i] = s.store.SeriesFor(adID)
			if !s.hasUsableValue(series[i]) {
				s.logger.Debug().Str("ad_id", adID).Int("days", len(series[i])).Msg("no usable derived value; ad not summarised")
				return nil
			}
			summary := s.summarizeAd(adID, series[i])
			summaries[i] = &summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	feed := &Feed{
		adIDs:     ids,
		summaries: make(map[string]AdSummary, len(ids)),
		series:    make(map[string][]analytics.DailyRecord, len(ids)),
	}
	for i, id := range ids {
		if summaries[i] != nil {
			feed.summaries[id] = *summaries[i]
		}
		feed.series[id] = series[i]
	}
	return feed, nil
}

// hasUsableValue reports whether any record carries a return ratio or profit
// per impression the policy accepts. Ads without one get no summary.
func (s *Service) hasUsableValue(series []analytics.DailyRecord) bool {
	for _, rec := range series {
		if s.policy.Usable(rec.ReturnRatio) || s.policy.Usable(rec.ProfitPerImpression) {
			return true
		}
	}
	return false
}

func (s *Service) summarizeAd(adID string, series []analytics.DailyRecord) AdSummary {
	summary := AdSummary{AdID: adID, Days: len(series), CurrentBudget: s.budgetFor(adID)}
	if len(series) == 0 {
		return summary
	}
	summary.State = StatePartiallyDerived

	summary.AverageReturnRatio = analytics.AverageOf(series, analytics.FieldReturnRatio, s.policy)
	summary.AverageProfitPerImpression = analytics.AverageOf(series, analytics.FieldProfitPerImpression, s.policy)

	trend, err := analytics.FitTrend(series, s.policy)
	switch {
	case err == nil:
		slope := trend.Slope
		summary.TrendSlope = &slope
		summary.Trend = &trend
	case errors.Is(err, analytics.ErrInsufficientData):
		s.logger.Debug().Str("ad_id", adID).Int("points", len(trend.Points)).Msg("not enough usable days for a trend")
	default:
		s.logger.Error().Err(err).Str("ad_id", adID).Msg("trend estimation failed")
	}

	rec, ok := budget.Recommend(budget.Input{
		CurrentBudget:              summary.CurrentBudget,
		AverageReturnRatio:         summary.AverageReturnRatio,
		TrendSlope:                 summary.TrendSlope,
		AverageProfitPerImpression: summary.AverageProfitPerImpression,
	}, s.rules)
	if ok {
		proposed := rec.Proposed
		summary.ProposedBudget = &proposed
		summary.Action = rec.Action
	}

	summary.State = StateSummarized
	return summary
}

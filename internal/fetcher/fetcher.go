package fetcher

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"adbudget/internal/analytics"
)

// InsightRow is one ad's metrics for the requested date.
type InsightRow struct {
	AdID    string
	Metrics analytics.Raw
}

// InsightFetcher retrieves per-ad daily metrics for a single date.
type InsightFetcher interface {
	FetchInsights(ctx context.Context, date time.Time, metrics []string) ([]InsightRow, error)
}

// BudgetFetcher retrieves the current budget of an ad.
type BudgetFetcher interface {
	FetchBudget(ctx context.Context, adID string) (decimal.Decimal, error)
}

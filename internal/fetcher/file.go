package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"adbudget/internal/analytics"
)

// FileSource serves insights and budgets from a captured JSON document:
//
//	{"insights": {"2019-01-25": [{"id": "a", "spend": 10}]}, "budgets": {"a": 100}}
//
// Dates absent from the document have no rows.
type FileSource struct {
	insights map[string]json.RawMessage
	budgets  map[string]decimal.Decimal
}

type fileDocument struct {
	Insights map[string]json.RawMessage `json:"insights"`
	Budgets  map[string]decimal.Decimal `json:"budgets"`
}

// LoadFileSource reads a capture from path.
func LoadFileSource(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}
	return ParseFileSource(data)
}

// ParseFileSource decodes a capture document.
func ParseFileSource(data []byte) (*FileSource, error) {
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode input file: %w", err)
	}
	src := &FileSource{insights: make(map[string]json.RawMessage), budgets: doc.Budgets}
	for date, rows := range doc.Insights {
		d, err := analytics.ParseDate(date)
		if err != nil {
			return nil, err
		}
		src.insights[d.Format(analytics.DateLayout)] = rows
	}
	return src, nil
}

// FetchInsights returns the captured rows for date.
func (f *FileSource) FetchInsights(ctx context.Context, date time.Time, metrics []string) ([]InsightRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, ok := f.insights[date.Format(analytics.DateLayout)]
	if !ok {
		return nil, nil
	}
	rows, _, err := decodeInsightRows(payload, metrics)
	return rows, err
}

// FetchBudget returns the captured budget for adID.
func (f *FileSource) FetchBudget(ctx context.Context, adID string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Decimal{}, err
	}
	b, ok := f.budgets[strings.TrimSpace(adID)]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("ad %s: %w", adID, ErrBudgetMissing)
	}
	if b.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("ad %s: %w", adID, ErrNegativeBudget)
	}
	return b, nil
}

var (
	_ InsightFetcher = (*FileSource)(nil)
	_ BudgetFetcher  = (*FileSource)(nil)
)

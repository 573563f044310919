package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adbudget/internal/analytics"
	"adbudget/internal/budget"
	"adbudget/internal/config"
)

const captureJSON = `{
  "insights": {
    "2019-01-25": [
      {"id": "a", "spend": 10, "revenue": 20},
      {"id": "b", "spend": 10, "revenue": 5},
      {"id": "c", "spend": 2, "revenue": 3}
    ],
    "2019-01-26": [
      {"id": "a", "spend": 10, "revenue": 30},
      {"id": "b", "spend": 10, "revenue": 4}
    ],
    "2019-01-27": [
      {"id": "a", "spend": 10, "revenue": 40}
    ]
  },
  "budgets": {"a": 100, "b": 50}
}`

func testConfig() *config.Config {
	return &config.Config{
		Analysis: config.AnalysisConfig{
			StartDate: "2019-01-25",
			EndDate:   "2019-01-27",
			Metrics:   analytics.DefaultMetrics,
			Workers:   2,
		},
		Recommendation: budget.DefaultRules(),
		Alerting:       config.AlertingConfig{ChangeThresholdPct: 20},
		Export:         config.ExportConfig{Width: 640, Height: 360},
	}
}

func testApp(t *testing.T) (*App, *bytes.Buffer, RunOptions) {
	t.Helper()
	color.NoColor = true

	path := filepath.Join(t.TempDir(), "capture.json")
	require.NoError(t, os.WriteFile(path, []byte(captureJSON), 0o644))

	var out bytes.Buffer
	a := NewApp(testConfig(), zerolog.Nop())
	a.Out = &out
	return a, &out, RunOptions{InputPath: path}
}

func TestAnalyzePrintsSummaries(t *testing.T) {
	a, out, run := testApp(t)

	require.NoError(t, a.Analyze(context.Background(), AnalyzeOptions{RunOptions: run, NoColor: true, Detail: true}))

	text := out.String()
	assert.Contains(t, text, "130.00")
	assert.Contains(t, text, "+30.0%")
	assert.Contains(t, text, "scale_up")
	assert.Contains(t, text, "defund")
	assert.Contains(t, text, "-100.0%")
	assert.Contains(t, text, "2019-01-27")
}

func TestAnalyzeEmptyRange(t *testing.T) {
	a, out, run := testApp(t)
	run.From, run.To = "2020-01-01", "2020-01-02"

	require.NoError(t, a.Analyze(context.Background(), AnalyzeOptions{RunOptions: run}))
	assert.Contains(t, out.String(), "no ad data found")
}

func TestAnalyzeDispatchesAlerts(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	a, _, run := testApp(t)
	a.Config.Alerting.Enabled = true
	a.Config.Alerting.Telegram = config.TelegramConfig{Enabled: true, BotToken: "t", ChatID: "c", APIBase: srv.URL}

	require.NoError(t, a.Analyze(context.Background(), AnalyzeOptions{RunOptions: run}))
	assert.Equal(t, int32(2), posts.Load())
}

func TestBuildNotificationsThreshold(t *testing.T) {
	a, _, run := testApp(t)
	res, err := a.runPipeline(context.Background(), run)
	require.NoError(t, err)

	notes := buildNotifications(res, decimal.NewFromInt(50))
	require.Len(t, notes, 1)
	assert.Equal(t, "b", notes[0].AdID)
	assert.True(t, notes[0].ChangePct.Equal(decimal.NewFromInt(-100)))
	assert.Equal(t, string(budget.ActionDefund), notes[0].Action)

	assert.Len(t, buildNotifications(res, decimal.NewFromInt(20)), 2)
}

func TestExportWritesReports(t *testing.T) {
	a, _, run := testApp(t)
	dir := t.TempDir()
	opts := ExportOptions{
		RunOptions:     run,
		CSVPath:        filepath.Join(dir, "out", "series.csv"),
		SummaryCSVPath: filepath.Join(dir, "summary.csv"),
		PNGPath:        filepath.Join(dir, "trend.png"),
	}

	require.NoError(t, a.Export(context.Background(), opts))

	series := readCSV(t, opts.CSVPath)
	require.Len(t, series, 7)
	assert.Equal(t, []string{"ad_id", "date", "spend", "revenue", "impressions", "clicks", "return_ratio", "profit_per_impression"}, series[0])
	assert.Equal(t, []string{"a", "2019-01-25", "10", "20", "", "", "2", ""}, series[1])

	summary := readCSV(t, opts.SummaryCSVPath)
	require.Len(t, summary, 4)
	assert.Equal(t, "a", summary[1][0])
	assert.Equal(t, "summarized", summary[1][1])
	assert.Equal(t, "130", summary[1][7])
	assert.Equal(t, "", summary[3][7], "single-day ad has no proposal")

	png, err := os.ReadFile(opts.PNGPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestExportRequiresOutput(t *testing.T) {
	a, _, run := testApp(t)
	assert.Error(t, a.Export(context.Background(), ExportOptions{RunOptions: run}))
}

func TestExportNothingToChart(t *testing.T) {
	a, _, run := testApp(t)
	run.From, run.To = "2019-01-25", "2019-01-25"

	err := a.Export(context.Background(), ExportOptions{RunOptions: run, PNGPath: filepath.Join(t.TempDir(), "x.png")})
	assert.True(t, errors.Is(err, ErrNothingToChart), "got %v", err)
}

func TestRecommendCommand(t *testing.T) {
	a, out, _ := testApp(t)
	roas, slope, ppi := 1.5, -1.0, 0.1

	require.NoError(t, a.Recommend(RecommendOptions{Budget: ptr(100), AverageReturnRatio: &roas, TrendSlope: &slope, AverageProfit: &ppi}))
	assert.Contains(t, out.String(), "proposed: 103.00")
	assert.Contains(t, out.String(), "action:   hold")

	out.Reset()
	require.NoError(t, a.Recommend(RecommendOptions{Budget: ptr(100), AverageReturnRatio: ptr(0.5), TrendSlope: &slope}))
	assert.Contains(t, out.String(), "proposed: 0.00")
	assert.Contains(t, out.String(), "profit term skipped")

	assert.Error(t, a.Recommend(RecommendOptions{AverageReturnRatio: &roas, TrendSlope: &slope}))
	assert.Error(t, a.Recommend(RecommendOptions{Budget: ptr(-1), AverageReturnRatio: &roas, TrendSlope: &slope}))
	assert.Error(t, a.Recommend(RecommendOptions{Budget: ptr(100), TrendSlope: &slope}))
}

func TestRecommendRejectsNonFinite(t *testing.T) {
	a, out, _ := testApp(t)
	roas, slope := 2.0, 1.0

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.NotPanics(t, func() {
			err := a.Recommend(RecommendOptions{Budget: ptr(bad), AverageReturnRatio: &roas, TrendSlope: &slope})
			assert.ErrorContains(t, err, "--budget must be a finite number")
		})
		assert.ErrorContains(t, a.Recommend(RecommendOptions{Budget: ptr(100), AverageReturnRatio: ptr(bad), TrendSlope: &slope}), "--roas")
		assert.ErrorContains(t, a.Recommend(RecommendOptions{Budget: ptr(100), AverageReturnRatio: &roas, TrendSlope: ptr(bad)}), "--slope")
		assert.ErrorContains(t, a.Recommend(RecommendOptions{Budget: ptr(100), AverageReturnRatio: &roas, TrendSlope: &slope, AverageProfit: ptr(bad)}), "--ppi")
	}
	assert.Empty(t, out.String())
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func ptr(v float64) *float64 {
	return &v
}

func TestFormatHelpers(t *testing.T) {
	color.NoColor = true
	assert.Equal(t, unknown, formatFloat(nil, 2))
	assert.Equal(t, "+Inf", formatFloat(ptr(math.Inf(1)), 2))
	assert.Equal(t, "1.50", formatMoney(decPtr("1.5")))
	assert.Equal(t, "0.0%", colorChange(decimal.Zero))
	assert.True(t, strings.HasPrefix(colorChange(decimal.NewFromInt(5)), "+"))
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

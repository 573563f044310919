package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"adbudget/internal/analytics"
	"adbudget/internal/service"
)

// ErrNothingToChart is returned when no ad has two plottable days.
var ErrNothingToChart = errors.New("not enough data points to chart")

// Export runs the pipeline and writes CSV and/or PNG reports.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" {
		opts.CSVPath = a.Config.Export.CSVPath
	}
	if opts.PNGPath == "" {
		opts.PNGPath = a.Config.Export.PNGPath
	}
	if opts.CSVPath == "" && opts.SummaryCSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv, --summary-csv or --png must be provided")
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := a.runPipeline(ctx, opts.RunOptions)
	if err != nil {
		return err
	}
	if res.feed.Len() == 0 {
		a.Logger.Info().Msg("no ad data found for export range")
		return nil
	}

	if opts.CSVPath != "" {
		if err := writeSeriesCSV(opts.CSVPath, res.feed, a.Config.Analysis.Metrics); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.CSVPath).Msg("daily series written")
	}
	if opts.SummaryCSVPath != "" {
		if err := writeSummaryCSV(opts.SummaryCSVPath, res.feed); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.SummaryCSVPath).Msg("summaries written")
	}
	if opts.PNGPath != "" {
		if err := writeTrendPNG(opts.PNGPath, res.feed, a.Config.Export.Width, a.Config.Export.Height); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.PNGPath).Msg("chart written")
	}
	return nil
}

func writeSeriesCSV(path string, feed *service.Feed, metrics []string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := append([]string{"ad_id", "date"}, metrics...)
	header = append(header, "return_ratio", "profit_per_impression")
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, id := range feed.AdIDs() {
		for _, rec := range feed.Series(id) {
			record := []string{id, rec.DateString()}
			for _, m := range metrics {
				record = append(record, csvMetric(rec.Raw, m))
			}
			record = append(record, csvFloat(rec.ReturnRatio), csvFloat(rec.ProfitPerImpression))
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeSummaryCSV(path string, feed *service.Feed) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"ad_id", "state", "days", "current_budget", "average_return_ratio", "average_profit_per_impression", "trend_slope", "proposed_budget", "action"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, s := range feed.Summaries() {
		current, proposed := "", ""
		if s.CurrentBudget != nil {
			current = s.CurrentBudget.String()
		}
		if s.ProposedBudget != nil {
			proposed = s.ProposedBudget.String()
		}
		record := []string{
			s.AdID,
			s.State.String(),
			strconv.Itoa(s.Days),
			current,
			csvFloat(s.AverageReturnRatio),
			csvFloat(s.AverageProfitPerImpression),
			csvFloat(s.TrendSlope),
			proposed,
			string(s.Action),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// writeTrendPNG plots each ad's daily return ratio with its fitted trend line.
func writeTrendPNG(path string, feed *service.Feed, width, height int) error {
	var (
		series     []chart.Series
		minY, maxY = math.Inf(1), math.Inf(-1)
	)

	for i, id := range feed.AdIDs() {
		var (
			x []time.Time
			y []float64
		)
		for _, rec := range feed.Series(id) {
			if rec.ReturnRatio == nil || math.IsNaN(*rec.ReturnRatio) || math.IsInf(*rec.ReturnRatio, 0) {
				continue
			}
			x = append(x, rec.Date)
			y = append(y, *rec.ReturnRatio)
			minY, maxY = math.Min(minY, *rec.ReturnRatio), math.Max(maxY, *rec.ReturnRatio)
		}
		if len(x) < 2 {
			continue
		}

		stroke := chart.GetDefaultColor(i)
		series = append(series, chart.TimeSeries{
			Name:    id,
			Style:   chart.Style{StrokeColor: stroke, StrokeWidth: 2},
			XValues: x,
			YValues: y,
		})

		summary, ok := feed.Summary(id)
		if !ok || summary.Trend == nil || !finite(summary.Trend.Slope) || !finite(summary.Trend.Intercept) {
			continue
		}
		tx, ty := trendLine(feed.Series(id), *summary.Trend)
		for _, v := range ty {
			minY, maxY = math.Min(minY, v), math.Max(maxY, v)
		}
		series = append(series, chart.TimeSeries{
			Name:    id + " trend",
			Style:   chart.Style{StrokeColor: stroke, StrokeWidth: 1, StrokeDashArray: []float64{5, 5}},
			XValues: tx,
			YValues: ty,
		})
	}
	if len(series) == 0 {
		return ErrNothingToChart
	}
	if minY == maxY {
		minY, maxY = minY-1, maxY+1
	}

	if err := ensureDir(path); err != nil {
		return err
	}

	graph := chart.Chart{
		Width:  width,
		Height: height,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat(analytics.DateLayout),
		},
		YAxis: chart.YAxis{
			Name:  "Return ratio (revenue / spend)",
			Range: &chart.ContinuousRange{Min: minY, Max: maxY},
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := graph.Render(chart.PNG, file); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// trendLine evaluates the fit at the first and last day of the series; day
// indices follow the chronological position used by the regression.
func trendLine(series []analytics.DailyRecord, trend analytics.Trend) ([]time.Time, []float64) {
	last := len(series) - 1
	return []time.Time{series[0].Date, series[last].Date},
		[]float64{trend.At(0), trend.At(float64(last))}
}

func csvMetric(raw analytics.Raw, name string) string {
	v, ok := raw.Get(name)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func csvFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

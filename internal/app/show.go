package app

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/shopspring/decimal"

	"adbudget/internal/analytics"
	"adbudget/internal/budget"
	"adbudget/internal/service"
)

const unknown = "-"

var summaryHeader = []string{"Ad", "Days", "Budget", "Avg ROAS", "Avg PPI", "Trend", "Proposed", "Change", "Action"}

func (a *App) printSummaries(feed *service.Feed, noColor bool) error {
	if noColor {
		color.NoColor = true
	}
	if feed.Len() == 0 {
		fmt.Fprintln(a.Out, "no ad data found for the selected range")
		return nil
	}

	rows := make([][]string, 0, feed.Len())
	for _, s := range feed.Summaries() {
		rows = append(rows, summaryRow(s))
	}
	return renderTable(a.Out, summaryHeader, rows)
}

func summaryRow(s service.AdSummary) []string {
	change := unknown
	if s.CurrentBudget != nil && s.ProposedBudget != nil {
		if pct, ok := budget.ChangePct(*s.CurrentBudget, *s.ProposedBudget); ok {
			change = colorChange(pct)
		}
	}
	action := unknown
	if s.Action != "" {
		action = string(s.Action)
	}
	return []string{
		s.AdID,
		strconv.Itoa(s.Days),
		formatMoney(s.CurrentBudget),
		formatFloat(s.AverageReturnRatio, 3),
		formatFloat(s.AverageProfitPerImpression, 3),
		formatFloat(s.TrendSlope, 4),
		formatMoney(s.ProposedBudget),
		change,
		action,
	}
}

func (a *App) printSeries(feed *service.Feed) error {
	for _, id := range feed.AdIDs() {
		series := feed.Series(id)
		if len(series) == 0 {
			continue
		}
		color.New(color.Bold).Fprintf(a.Out, "\n%s\n", id)

		rows := make([][]string, 0, len(series))
		for _, rec := range series {
			rows = append(rows, []string{
				rec.DateString(),
				formatMetric(rec.Raw, analytics.MetricRevenue),
				formatMetric(rec.Raw, analytics.MetricSpend),
				formatMetric(rec.Raw, analytics.MetricImpressions),
				formatMetric(rec.Raw, analytics.MetricClicks),
				formatFloat(rec.ReturnRatio, 3),
				formatFloat(rec.ProfitPerImpression, 3),
			})
		}
		if err := renderTable(a.Out, []string{"Date", "Revenue", "Spend", "Impressions", "Clicks", "ROAS", "PPI"}, rows); err != nil {
			return err
		}
	}
	return nil
}

func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignRight},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{Borders: tw.BorderNone}),
	)
	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("build table: %w", err)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return nil
}

func colorChange(pct decimal.Decimal) string {
	text := pct.StringFixed(1) + "%"
	switch pct.Sign() {
	case 1:
		return color.GreenString("+" + text)
	case -1:
		return color.RedString(text)
	default:
		return text
	}
}

func formatFloat(v *float64, prec int) string {
	if v == nil {
		return unknown
	}
	if math.IsInf(*v, 0) || math.IsNaN(*v) {
		return strconv.FormatFloat(*v, 'f', -1, 64)
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func formatMetric(raw analytics.Raw, name string) string {
	v, ok := raw.Get(name)
	if !ok {
		return unknown
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatMoney(v *decimal.Decimal) string {
	if v == nil {
		return unknown
	}
	return v.StringFixed(2)
}

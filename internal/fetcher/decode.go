package fetcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"adbudget/internal/analytics"
)

type rawRow map[string]json.RawMessage

// decodeInsightRows accepts either a JSON array of rows or an object whose
// values are rows. Only the requested metrics are kept; rows without an id
// are counted as skipped.
func decodeInsightRows(payload []byte, metrics []string) ([]InsightRow, int, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil, 0, nil
	}

	var rows []rawRow
	switch payload[0] {
	case '[':
		if err := json.Unmarshal(payload, &rows); err != nil {
			return nil, 0, err
		}
	case '{':
		var keyed map[string]rawRow
		if err := json.Unmarshal(payload, &keyed); err != nil {
			return nil, 0, err
		}
		keys := make([]string, 0, len(keyed))
		for k := range keyed {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			rows = append(rows, keyed[k])
		}
	default:
		return nil, 0, fmt.Errorf("unexpected insight payload starting with %q", payload[0])
	}

	out := make([]InsightRow, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		id, ok := parseID(row["id"])
		if !ok {
			skipped++
			continue
		}
		raw := analytics.Raw{}
		for _, name := range metrics {
			if v, ok := parseNumber(row[name]); ok {
				raw[name] = v
			}
		}
		out = append(out, InsightRow{AdID: id, Metrics: raw})
	}
	return out, skipped, nil
}

func parseID(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false
	}
	return n.String(), true
}

// parseNumber reads a JSON number or a numeric string. Null and anything
// unparsable count as a missing metric.
func parseNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

package analytics

// AverageOf returns the arithmetic mean of field over the usable entries of
// series, or nil when none remain.
func AverageOf(series []DailyRecord, field Field, policy Policy) *float64 {
	var (
		sum   float64
		first float64
		n     int
	)
	for _, rec := range series {
		v := field.of(rec)
		if !policy.Usable(v) {
			continue
		}
		if n == 0 {
			first = *v
		}
		sum += *v
		n++
	}

	switch n {
	case 0:
		return nil
	case 1:
		return &first
	}
	avg := sum / float64(n)
	return &avg
}

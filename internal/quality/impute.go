package quality

import (
	"sort"
	"time"

	"github.com/roach88/pmgate/internal/eventlog"
)

// imputeTimestamps fills nil times with the per-activity median or mean of
// known times, then with the median or mean of the column after that first
// fill. Rows that stay unknown remain nil.
func imputeTimestamps(t *eventlog.Table, strategy string) error {
	var agg func([]time.Time) time.Time
	switch strategy {
	case ImputeMedian:
		agg = medianTime
	case ImputeMean:
		agg = meanTime
	default:
		return eventlog.NewConfigurationError("unsupported timestamp_impute_strategy: %s", strategy)
	}

	ai := t.Index(eventlog.ColActivity)
	known := make(map[string][]time.Time)
	for i, r := range t.Rows {
		if ts := t.Times[i]; ts != nil {
			known[r[ai].S] = append(known[r[ai].S], *ts)
		}
	}
	byActivity := make(map[string]time.Time, len(known))
	for act, times := range known {
		byActivity[act] = agg(times)
	}

	for i, r := range t.Rows {
		if t.Times[i] != nil {
			continue
		}
		if ts, ok := byActivity[r[ai].S]; ok {
			v := ts
			t.Times[i] = &v
		}
	}

	var column []time.Time
	for _, ts := range t.Times {
		if ts != nil {
			column = append(column, *ts)
		}
	}
	if len(column) == 0 {
		return nil
	}
	overall := agg(column)
	for i := range t.Times {
		if t.Times[i] == nil {
			v := overall
			t.Times[i] = &v
		}
	}
	return nil
}

// medianTime averages the two middle instants for even counts.
func medianTime(times []time.Time) time.Time {
	sorted := append([]time.Time(nil), times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	lo, hi := sorted[n/2-1], sorted[n/2]
	return lo.Add(hi.Sub(lo) / 2)
}

// meanTime averages offsets from the earliest instant to avoid overflow.
func meanTime(times []time.Time) time.Time {
	base := times[0]
	for _, ts := range times[1:] {
		if ts.Before(base) {
			base = ts
		}
	}
	var sum float64
	for _, ts := range times {
		sum += float64(ts.Sub(base))
	}
	return base.Add(time.Duration(sum / float64(len(times))))
}

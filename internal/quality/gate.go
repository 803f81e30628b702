package quality

import (
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/pmgate/internal/audit"
	"github.com/roach88/pmgate/internal/eventlog"
	"github.com/roach88/pmgate/internal/mask"
	"github.com/roach88/pmgate/internal/normalize"
)

// lifecycleTopN bounds the lifecycle summary.
const lifecycleTopN = 10

// Evaluate runs the gate checks in order against t.
//
// The input table is not modified. On success the returned table satisfies the
// post-gate invariant: every row has a case id, an activity and a parsed
// timestamp, and the timestamp column text reflects the parsed instants.
func Evaluate(t *eventlog.Table, cfg Config) (*eventlog.Table, Report, Recommendations, error) {
	recs := Recommendations{}

	// 1. Required columns.
	var missingCols []string
	for _, col := range eventlog.RequiredColumns {
		if !t.Has(col) {
			missingCols = append(missingCols, col)
		}
	}
	if len(missingCols) > 0 {
		return nil, Report{}, nil, eventlog.NewSchemaError(missingCols)
	}

	work := t.Clone()
	if !work.Parsed() {
		work.Times = normalize.ParseTimestamps(work.Column(eventlog.ColTimestamp), cfg.Timestamps)
	}
	total := work.Len()

	// 2. Parse failures: present raw text that did not parse.
	tsIdx := work.Index(eventlog.ColTimestamp)
	failures := 0
	for i, r := range work.Rows {
		raw := r[tsIdx]
		if raw.Valid && strings.TrimSpace(raw.S) != "" && work.Times[i] == nil {
			failures++
		}
	}
	parseFailureRate := fraction(failures, total)
	if parseFailureRate > cfg.TimestampParseThreshold {
		return nil, Report{}, nil, eventlog.NewValidationError(eventlog.SubkindTimestampParse,
			"timestamp parse failure rate %.2f%% exceeds threshold %.2f%%",
			parseFailureRate*100, cfg.TimestampParseThreshold*100)
	}

	// 3. Missing values.
	missing := map[string]float64{
		eventlog.ColCase:      nullRate(work, eventlog.ColCase),
		eventlog.ColActivity:  nullRate(work, eventlog.ColActivity),
		eventlog.ColTimestamp: nilTimeRate(work),
	}
	for _, col := range []string{eventlog.ColCase, eventlog.ColActivity} {
		rate := missing[col]
		if rate > cfg.MissingValueThreshold {
			return nil, Report{}, nil, eventlog.NewValidationError(eventlog.SubkindMissingValues,
				"missing values for %s exceed threshold %.2f%%", col, cfg.MissingValueThreshold*100)
		}
		if rate > 0 {
			idx := work.Index(col)
			work = work.Filter(func(i int) bool { return work.Rows[i][idx].Valid })
		}
	}

	if rate := missing[eventlog.ColTimestamp]; rate > 0 {
		if rate <= cfg.MissingValueThreshold {
			work = dropUnknownTimes(work)
		} else {
			if !cfg.ImputeMissingTimestamps {
				return nil, Report{}, nil, eventlog.NewValidationError(eventlog.SubkindMissingValues,
					"missing timestamps exceed threshold %.2f%%; enable imputation or clean upstream data",
					cfg.MissingValueThreshold*100)
			}
			// 4. Imputation.
			if err := imputeTimestamps(work, cfg.TimestampImputeStrategy); err != nil {
				return nil, Report{}, nil, err
			}
			work = dropUnknownTimes(work)
			recs[RecTimestampImputation] = cfg.TimestampImputeStrategy
			slog.Debug("timestamps imputed", "strategy", cfg.TimestampImputeStrategy, "missing_rate", rate)
		}
	}

	// 5. Duplicates.
	keys := cfg.DedupeKeys
	if len(keys) == 0 {
		keys = audit.DefaultDedupeKeys
	}
	dups := audit.Duplicates(work, keys)
	if dups.RowRate > 0 {
		var dropped int
		work, dropped = audit.DropDuplicateRows(work)
		slog.Debug("duplicate rows dropped", "count", dropped)
	}
	if dups.KeyRate > cfg.DuplicateThreshold {
		on := strings.Join(dups.Keys, "+")
		if on == "" {
			on = "row"
		}
		recs[RecHighDuplicateRate] = dups.KeyRate
		recs[RecDuplicateAction] = "dropped_duplicates_on_" + on
	}

	// 6. Masking.
	if cfg.AutoMaskSensitive {
		strategy, err := mask.ParseStrategy(cfg.MaskStrategy)
		if err != nil {
			return nil, Report{}, nil, err
		}
		if cols := mask.Detect(work.Columns, cfg.SensitivePatterns); len(cols) > 0 {
			if err := mask.Apply(work, cols, strategy, cfg.MaskSalt); err != nil {
				return nil, Report{}, nil, err
			}
			recs[RecMaskedColumns] = cols
			recs[RecMaskStrategy] = string(strategy)
		}
	}

	// 7. Range filter.
	lo, hi, err := parseBounds(cfg)
	if err != nil {
		return nil, Report{}, nil, err
	}
	if lo != nil || hi != nil {
		work = work.Filter(func(i int) bool {
			ts := work.Times[i]
			return (lo == nil || !ts.Before(*lo)) && (hi == nil || !ts.After(*hi))
		})
	}

	// 8. Rare activities.
	freq, distinct := activityShares(work)
	if cfg.AutoFilterRareActivities {
		ai := work.Index(eventlog.ColActivity)
		work = work.Filter(func(i int) bool {
			return freq[work.Rows[i][ai].S] >= cfg.MinActivityFrequency
		})
		recs[RecActivityFilterMinFreq] = cfg.MinActivityFrequency
	} else if distinct > 0 {
		recs[RecSuggestedMinFrequency] = max(0.01, 1.0/float64(distinct))
	}

	// 9. Case order.
	order := audit.CaseOrder(work)
	if order.ViolationRate > cfg.OrderViolationThreshold {
		recs[RecCaseOrderViolationRate] = order.ViolationRate
		recs[RecCaseOrderAction] = CaseOrderAction
		if cfg.FailOnOrderViolations {
			return nil, Report{}, nil, eventlog.NewValidationError(eventlog.SubkindOrderViolation,
				"case order violation rate %.2f%% exceeds threshold %.2f%%",
				order.ViolationRate*100, cfg.OrderViolationThreshold*100)
		}
		if cfg.RepairCaseOrder {
			work = audit.SortByCaseTimestamp(work)
			recs[RecCaseOrderRepaired] = true
		}
	}

	// 10. Lifecycle summary.
	lifecycle := map[string]int{}
	if cfg.LifecycleColumn != "" && work.Has(cfg.LifecycleColumn) {
		counts := make(map[string]int)
		for _, v := range work.Column(cfg.LifecycleColumn) {
			if v.Valid {
				counts[v.S]++
			}
		}
		lifecycle = topCounts(counts, lifecycleTopN)
	}

	work.SyncTimestampColumn()
	report := Report{
		MissingRates:              missing,
		TimestampParseFailureRate: parseFailureRate,
		DuplicateRate:             dups.RowRate,
		KeyDuplicateRate:          dups.KeyRate,
		CaseOrderViolationRate:    order.ViolationRate,
		UnsortedCases:             order.UnsortedCount,
		LifecycleSummary:          lifecycle,
		RowsAfterCleaning:         work.Len(),
	}
	slog.Info("data quality evaluated",
		"rows_in", total,
		"rows_after_cleaning", report.RowsAfterCleaning,
		"recommendations", len(recs),
	)
	return work, report, recs, nil
}

func fraction(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func nullRate(t *eventlog.Table, col string) float64 {
	idx := t.Index(col)
	n := 0
	for _, r := range t.Rows {
		if !r[idx].Valid {
			n++
		}
	}
	return fraction(n, t.Len())
}

func nilTimeRate(t *eventlog.Table) float64 {
	n := 0
	for _, ts := range t.Times {
		if ts == nil {
			n++
		}
	}
	return fraction(n, t.Len())
}

func dropUnknownTimes(t *eventlog.Table) *eventlog.Table {
	return t.Filter(func(i int) bool { return t.Times[i] != nil })
}

func parseBounds(cfg Config) (lo, hi *time.Time, err error) {
	parse := func(name, s string) (*time.Time, error) {
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		ts, ok := normalize.ParseTimestamp(s, cfg.Timestamps)
		if !ok {
			return nil, eventlog.NewConfigurationError("%s is not a valid timestamp: %q", name, s)
		}
		return &ts, nil
	}
	if lo, err = parse("min_timestamp", cfg.MinTimestamp); err != nil {
		return nil, nil, err
	}
	if hi, err = parse("max_timestamp", cfg.MaxTimestamp); err != nil {
		return nil, nil, err
	}
	return lo, hi, nil
}

// activityShares returns each activity's relative frequency and the number
// of distinct activities.
func activityShares(t *eventlog.Table) (map[string]float64, int) {
	ai := t.Index(eventlog.ColActivity)
	counts := make(map[string]int)
	for _, r := range t.Rows {
		counts[r[ai].S]++
	}
	shares := make(map[string]float64, len(counts))
	for act, c := range counts {
		shares[act] = fraction(c, t.Len())
	}
	return shares, len(counts)
}

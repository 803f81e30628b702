package quality

import (
	"sort"
)

// Report is the data-quality record produced by one gate evaluation.
type Report struct {
	MissingRates              map[string]float64 `json:"missing_rates"`
	TimestampParseFailureRate float64            `json:"timestamp_parse_failure_rate"`
	DuplicateRate             float64            `json:"duplicate_rate"`
	KeyDuplicateRate          float64            `json:"key_duplicate_rate"`
	CaseOrderViolationRate    float64            `json:"case_order_violation_rate"`
	UnsortedCases             int                `json:"unsorted_cases"`
	LifecycleSummary          map[string]int     `json:"lifecycle_summary"`
	RowsAfterCleaning         int                `json:"rows_after_cleaning"`
}

// Recommendations maps advisory keys to values. Empty recommendations are not
// persisted.
type Recommendations map[string]any

// Recommendation keys.
const (
	RecTimestampImputation    = "timestamp_imputation"
	RecHighDuplicateRate      = "high_duplicate_rate"
	RecDuplicateAction        = "duplicate_action"
	RecMaskedColumns          = "masked_sensitive_columns"
	RecMaskStrategy           = "mask_strategy"
	RecActivityFilterMinFreq  = "activity_filter_min_freq"
	RecSuggestedMinFrequency  = "suggested_min_activity_frequency"
	RecCaseOrderViolationRate = "case_order_violation_rate"
	RecCaseOrderAction        = "case_order_action"
	RecCaseOrderRepaired      = "case_order_repaired"
)

// CaseOrderAction is the advised repair for unsorted cases.
const CaseOrderAction = "sort_by_case_timestamp"

// Keys returns the recommendation keys in ascending order.
func (r Recommendations) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// topCounts returns the n most frequent values, ties broken by value.
func topCounts(counts map[string]int, n int) map[string]int {
	type kv struct {
		value string
		count int
	}
	all := make([]kv, 0, len(counts))
	for v, c := range counts {
		all = append(all, kv{v, c})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].value < all[j].value
	})
	if len(all) > n {
		all = all[:n]
	}
	out := make(map[string]int, len(all))
	for _, e := range all {
		out[e.value] = e.count
	}
	return out
}

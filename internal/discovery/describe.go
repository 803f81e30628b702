package discovery

import (
	"strings"

	"github.com/roach88/pmgate/internal/eventlog"
)

// VariantStat is one variant's share of the cases. Percent values are in
// [0, 100]; CumPercent accumulates in variant order.
type VariantStat struct {
	Variant    string  `json:"variant"`
	Count      int     `json:"count"`
	Percent    float64 `json:"percent"`
	CumPercent float64 `json:"cum_percent"`
}

// LogSummary describes the log discovery runs on.
type LogSummary struct {
	Events          int            `json:"num_events"`
	Cases           int            `json:"num_cases"`
	VariantCount    int            `json:"num_variants"`
	StartActivities map[string]int `json:"start_activities"`
	EndActivities   map[string]int `json:"end_activities"`

	// Variants follow eventlog.Log.Variants order: count descending, then key.
	Variants []VariantStat `json:"-"`
}

// VariantSeparator joins activities in a variant label.
const VariantSeparator = ","

// Describe counts events, cases and variants, the first and last activity
// of every case, and each variant's share of the cases.
func Describe(log *eventlog.Log) LogSummary {
	s := LogSummary{
		Events:          log.EventCount(),
		Cases:           len(log.Cases),
		StartActivities: map[string]int{},
		EndActivities:   map[string]int{},
	}
	for _, c := range log.Cases {
		if len(c.Events) == 0 {
			continue
		}
		s.StartActivities[c.Events[0].Activity]++
		s.EndActivities[c.Events[len(c.Events)-1].Activity]++
	}

	variants := log.Variants()
	s.VariantCount = len(variants)
	s.Variants = make([]VariantStat, len(variants))
	var cum float64
	for i, v := range variants {
		pct := 0.0
		if s.Cases > 0 {
			pct = float64(v.Count) / float64(s.Cases) * 100
		}
		cum += pct
		s.Variants[i] = VariantStat{
			Variant:    strings.Join(v.Activities, VariantSeparator),
			Count:      v.Count,
			Percent:    pct,
			CumPercent: cum,
		}
	}
	return s
}

package performance

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/roach88/pmgate/internal/eventlog"
)

const (
	// HeavyTailRatio is the p95/median ratio above which durations are
	// considered heavy-tailed.
	HeavyTailRatio = 5.0

	// MedianFloor keeps the heavy-tail ratio finite for zero medians.
	MedianFloor = 1e-4

	// SigmaWidth is the SPC band half-width in standard deviations.
	SigmaWidth = 3.0

	// RecHeavyTail is emitted when the heavy-tail ratio trips.
	RecHeavyTail = "Heavy tail detected in case durations; consider trimming, winsorizing, or sampling."
)

// ResourceAttrs are the attribute names searched for a resource when the
// canonical resource column is empty throughout the log.
var ResourceAttrs = []string{"agent_name", "adjuster_name", "user", "user_type", "resource"}

// DurationStats summarizes case durations in hours.
type DurationStats struct {
	Mean   float64 `json:"mean_hours"`
	Median float64 `json:"median_hours"`
	P95    float64 `json:"p95_hours"`
	Max    float64 `json:"max_hours"`
}

// SPCBand is a mean ± k·σ control band over case durations ordered by case
// start. σ is the population standard deviation.
type SPCBand struct {
	Mean         float64  `json:"mean_hours"`
	Std          float64  `json:"std_hours"`
	UCL          float64  `json:"ucl_hours"`
	LCL          float64  `json:"lcl_hours"`
	OutOfControl []string `json:"out_of_control_cases"`
}

// Arrival holds inter-arrival statistics between case starts.
type Arrival struct {
	MeanHours   float64 `json:"mean_interarrival_hours"`
	MedianHours float64 `json:"median_interarrival_hours"`
}

// Handover counts transfers of work between consecutive resources in a case.
type Handover struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// CaseDuration is one case's duration.
type CaseDuration struct {
	CaseID string    `json:"case_id"`
	Start  time.Time `json:"start"`
	Hours  float64   `json:"case_duration_hours"`
}

// Sojourn is the average sojourn time of one activity.
type Sojourn struct {
	Activity string  `json:"activity"`
	AvgHours float64 `json:"avg_sojourn_hours"`
	Samples  int     `json:"samples"`
}

// Summary is the performance report.
type Summary struct {
	CaseCount       int            `json:"case_count"`
	Stats           *DurationStats `json:"duration_stats"`
	TailRatio       *float64       `json:"p95_to_median_ratio"`
	HeavyTail       bool           `json:"heavy_tail"`
	SPC             *SPCBand       `json:"spc"`
	Arrival         *Arrival       `json:"arrival"`
	Handovers       []Handover     `json:"handovers"`
	Sojourns        []Sojourn      `json:"sojourn_times"`
	Recommendations []string       `json:"recommendations"`

	// Durations are ordered by case start, then case id.
	Durations []CaseDuration `json:"-"`
}

// Analyze computes the performance summary of log.
func Analyze(log *eventlog.Log) Summary {
	s := Summary{
		CaseCount:       len(log.Cases),
		Handovers:       []Handover{},
		Sojourns:        []Sojourn{},
		Recommendations: []string{},
		Durations:       []CaseDuration{},
	}

	sojourns := map[string][]float64{}
	var starts []time.Time
	for _, c := range log.Cases {
		if len(c.Events) == 0 {
			continue
		}
		first, last := c.Events[0].Timestamp, c.Events[len(c.Events)-1].Timestamp
		starts = append(starts, first)
		if len(c.Events) >= 2 {
			s.Durations = append(s.Durations, CaseDuration{CaseID: c.ID, Start: first, Hours: hours(last.Sub(first))})
		}
		for i := 0; i < len(c.Events)-1; i++ {
			ev := c.Events[i]
			sojourns[ev.Activity] = append(sojourns[ev.Activity], hours(c.Events[i+1].Timestamp.Sub(ev.Timestamp)))
		}
	}

	sort.SliceStable(s.Durations, func(i, j int) bool {
		a, b := s.Durations[i], s.Durations[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.CaseID < b.CaseID
	})

	if len(s.Durations) > 0 {
		values := make([]float64, len(s.Durations))
		for i, d := range s.Durations {
			values[i] = d.Hours
		}
		s.Stats = durationStats(values)
		ratio := s.Stats.P95 / max(s.Stats.Median, MedianFloor)
		s.TailRatio = &ratio
		if ratio > HeavyTailRatio {
			s.HeavyTail = true
			s.Recommendations = append(s.Recommendations, RecHeavyTail)
		}
		s.SPC = spcBand(s.Durations)
	}

	s.Sojourns = averageSojourns(sojourns)
	s.Arrival = arrival(starts)
	s.Handovers = Handovers(log)

	slog.Info("performance analysis complete",
		"cases", s.CaseCount,
		"durations", len(s.Durations),
		"heavy_tail", s.HeavyTail,
	)
	return s
}

func durationStats(values []float64) *DurationStats {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return &DurationStats{
		Mean:   mean(sorted),
		Median: Quantile(sorted, 0.5),
		P95:    Quantile(sorted, 0.95),
		Max:    sorted[len(sorted)-1],
	}
}

func spcBand(durations []CaseDuration) *SPCBand {
	values := make([]float64, len(durations))
	for i, d := range durations {
		values[i] = d.Hours
	}
	m := mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	std := math.Sqrt(sq / float64(len(values)))
	band := &SPCBand{
		Mean:         m,
		Std:          std,
		UCL:          m + SigmaWidth*std,
		LCL:          max(0, m-SigmaWidth*std),
		OutOfControl: []string{},
	}
	for _, d := range durations {
		if d.Hours > band.UCL || d.Hours < band.LCL {
			band.OutOfControl = append(band.OutOfControl, d.CaseID)
		}
	}
	return band
}

func averageSojourns(samples map[string][]float64) []Sojourn {
	out := make([]Sojourn, 0, len(samples))
	for act, xs := range samples {
		out = append(out, Sojourn{Activity: act, AvgHours: mean(xs), Samples: len(xs)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Activity < out[j].Activity })
	return out
}

func arrival(starts []time.Time) *Arrival {
	if len(starts) < 2 {
		return nil
	}
	sorted := append([]time.Time(nil), starts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	gaps := make([]float64, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps[i-1] = hours(sorted[i].Sub(sorted[i-1]))
	}
	sort.Float64s(gaps)
	return &Arrival{MeanHours: mean(gaps), MedianHours: Quantile(gaps, 0.5)}
}

// Handovers counts consecutive resource changes within each case, sorted by
// count descending then by pair.
func Handovers(log *eventlog.Log) []Handover {
	resource := resourceFunc(log)
	if resource == nil {
		return []Handover{}
	}
	type pair struct{ from, to string }
	counts := map[pair]int{}
	for _, c := range log.Cases {
		prev := ""
		for _, ev := range c.Events {
			res := resource(ev)
			if prev != "" && res != "" && res != prev {
				counts[pair{prev, res}]++
			}
			prev = res
		}
	}
	out := make([]Handover, 0, len(counts))
	for p, n := range counts {
		out = append(out, Handover{From: p.from, To: p.to, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// resourceFunc picks the first resource source with a non-empty value.
func resourceFunc(log *eventlog.Log) func(eventlog.Event) string {
	for _, c := range log.Cases {
		for _, ev := range c.Events {
			if ev.Resource != "" {
				return func(e eventlog.Event) string { return e.Resource }
			}
		}
	}
	for _, key := range ResourceAttrs {
		for _, c := range log.Cases {
			for _, ev := range c.Events {
				if ev.Attrs[key] != "" {
					return func(e eventlog.Event) string { return e.Attrs[key] }
				}
			}
		}
	}
	return nil
}

// Quantile returns the q-quantile of sorted using linear interpolation
// between closest ranks. sorted must be ascending and non-empty.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func hours(d time.Duration) float64 {
	return d.Hours()
}

package cli

import (
	"fmt"
	"strings"

	"github.com/roach88/pmgate/internal/conformance"
	"github.com/roach88/pmgate/internal/discovery"
	"github.com/roach88/pmgate/internal/eventlog"
	"github.com/roach88/pmgate/internal/performance"
	"github.com/roach88/pmgate/internal/quality"
)

// IngestResult is printed after a successful ingest.
type IngestResult struct {
	Stage   string `json:"stage"`
	Dir     string `json:"dir"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

func newIngestResult(dir string, t *eventlog.Table) IngestResult {
	return IngestResult{Stage: "ingest", Dir: dir, Rows: t.Len(), Columns: len(t.Columns)}
}

func (r IngestResult) String() string {
	return fmt.Sprintf("ingest ok: %d rows, %d columns -> %s", r.Rows, r.Columns, r.Dir)
}

// GateResult is printed after the data quality gate passes.
type GateResult struct {
	Stage           string   `json:"stage"`
	Dir             string   `json:"dir"`
	InputRows       int      `json:"input_rows"`
	Rows            int      `json:"rows"`
	ParseFailures   float64  `json:"timestamp_parse_failure_rate"`
	DuplicateRate   float64  `json:"duplicate_rate"`
	OrderViolations float64  `json:"case_order_violation_rate"`
	Recommendations []string `json:"recommendations"`
}

func newGateResult(dir string, inputRows int, report quality.Report, recs quality.Recommendations) GateResult {
	return GateResult{
		Stage:           "data_quality",
		Dir:             dir,
		InputRows:       inputRows,
		Rows:            report.RowsAfterCleaning,
		ParseFailures:   report.TimestampParseFailureRate,
		DuplicateRate:   report.DuplicateRate,
		OrderViolations: report.CaseOrderViolationRate,
		Recommendations: recs.Keys(),
	}
}

func (r GateResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "data quality ok: %d of %d rows kept -> %s\n", r.Rows, r.InputRows, r.Dir)
	fmt.Fprintf(&b, "  timestamp parse failures: %.2f%%\n", r.ParseFailures*100)
	fmt.Fprintf(&b, "  duplicates: %.2f%%\n", r.DuplicateRate*100)
	fmt.Fprintf(&b, "  case order violations: %.2f%%", r.OrderViolations*100)
	if len(r.Recommendations) > 0 {
		fmt.Fprintf(&b, "\n  recommendations: %s", strings.Join(r.Recommendations, ", "))
	}
	return b.String()
}

// DiscoverResult describes a discovery attempt. Models is empty when every
// miner failed.
type DiscoverResult struct {
	Stage    string               `json:"stage"`
	Dir      string               `json:"dir"`
	Summary  discovery.LogSummary `json:"summary"`
	Strategy discovery.Strategy   `json:"strategy"`
	Signals  discovery.Signals    `json:"signals"`
	Models   []string             `json:"models"`
	Failures []discovery.Failure  `json:"failures"`
}

func newDiscoverResult(dir string, summary discovery.LogSummary, sel discovery.Selection, out discovery.Outcome) DiscoverResult {
	names := make([]string, len(out.Models))
	for i, m := range out.Models {
		names[i] = m.Name
	}
	failures := out.Failures
	if failures == nil {
		failures = []discovery.Failure{}
	}
	return DiscoverResult{
		Stage:    "discovery",
		Dir:      dir,
		Summary:  summary,
		Strategy: sel.Strategy,
		Signals:  sel.Signals,
		Models:   names,
		Failures: failures,
	}
}

func (r DiscoverResult) String() string {
	var b strings.Builder
	status := "ok"
	if len(r.Models) == 0 {
		status = "produced no model"
	}
	fmt.Fprintf(&b, "discovery %s: strategy %s, %d variants over %d cases -> %s\n",
		status, r.Strategy, r.Summary.VariantCount, r.Summary.Cases, r.Dir)
	fmt.Fprintf(&b, "  events: %d, start activities: %d, end activities: %d",
		r.Summary.Events, len(r.Summary.StartActivities), len(r.Summary.EndActivities))
	if len(r.Models) > 0 {
		fmt.Fprintf(&b, "\n  models: %s", strings.Join(r.Models, ", "))
	}
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "\n  %s failed: %s", f.Miner, f.Reason)
	}
	return b.String()
}

// ConformanceResult describes a conformance attempt. Summaries is empty when
// no model produced replay output.
type ConformanceResult struct {
	Stage         string                     `json:"stage"`
	Dir           string                     `json:"dir"`
	ModelMetrics  []conformance.ModelQuality `json:"model_metrics"`
	Summaries     []conformance.Summary      `json:"summaries"`
	TopDeviations []conformance.Deviation    `json:"top_deviations"`
	Skipped       []conformance.Skipped      `json:"skipped"`
}

func newConformanceResult(dir string, metrics []conformance.ModelQuality, report conformance.Report, top int) ConformanceResult {
	return ConformanceResult{
		Stage:         "conformance",
		Dir:           dir,
		ModelMetrics:  nonNil(metrics),
		Summaries:     nonNil(report.Summaries),
		TopDeviations: conformance.TopDeviations(report.Deviations, top),
		Skipped:       nonNil(report.Skipped),
	}
}

// nonNil keeps empty lists as [] in JSON output.
func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}

func (r ConformanceResult) String() string {
	var b strings.Builder
	if len(r.Summaries) == 0 {
		fmt.Fprintf(&b, "conformance produced no output -> %s", r.Dir)
	} else {
		fmt.Fprintf(&b, "conformance ok -> %s", r.Dir)
	}
	for _, m := range r.ModelMetrics {
		if m.Reason != "" {
			fmt.Fprintf(&b, "\n  %s quality not evaluated: %s", m.Model, m.Reason)
			continue
		}
		fmt.Fprintf(&b, "\n  %s quality: fitness %s, precision %s, generalization %s, simplicity %s",
			m.Model, optMetric(m.Fitness), optMetric(m.Precision), optMetric(m.Generalization), optMetric(m.Simplicity))
	}
	for _, s := range r.Summaries {
		fmt.Fprintf(&b, "\n  %s (%s): %d cases", s.Model, s.Method, s.CaseCount)
		if s.AvgCost != nil {
			fmt.Fprintf(&b, ", avg cost %.3f, max cost %.3f", *s.AvgCost, *s.MaxCost)
		}
		if s.AvgFitness != nil {
			fmt.Fprintf(&b, ", avg fitness %.3f, min fitness %.3f", *s.AvgFitness, *s.MinFitness)
		}
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(&b, "\n  %s skipped: %s", s.Model, s.Reason)
	}
	return b.String()
}

func optMetric(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", *v)
}

// PerformanceResult is printed after the performance stage.
type PerformanceResult struct {
	Stage           string                     `json:"stage"`
	Dir             string                     `json:"dir"`
	CaseCount       int                        `json:"case_count"`
	Stats           *performance.DurationStats `json:"duration_stats"`
	HeavyTail       bool                       `json:"heavy_tail"`
	OutOfControl    []string                   `json:"out_of_control_cases"`
	Recommendations []string                   `json:"recommendations"`
}

func newPerformanceResult(dir string, s performance.Summary) PerformanceResult {
	ooc := []string{}
	if s.SPC != nil {
		ooc = s.SPC.OutOfControl
	}
	recs := s.Recommendations
	if recs == nil {
		recs = []string{}
	}
	return PerformanceResult{
		Stage:           "performance",
		Dir:             dir,
		CaseCount:       s.CaseCount,
		Stats:           s.Stats,
		HeavyTail:       s.HeavyTail,
		OutOfControl:    ooc,
		Recommendations: recs,
	}
}

func (r PerformanceResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "performance ok: %d cases -> %s", r.CaseCount, r.Dir)
	if r.Stats != nil {
		fmt.Fprintf(&b, "\n  duration hours: mean %.2f, median %.2f, p95 %.2f, max %.2f",
			r.Stats.Mean, r.Stats.Median, r.Stats.P95, r.Stats.Max)
	}
	if len(r.OutOfControl) > 0 {
		fmt.Fprintf(&b, "\n  out of control: %s", strings.Join(r.OutOfControl, ", "))
	}
	for _, rec := range r.Recommendations {
		fmt.Fprintf(&b, "\n  %s", rec)
	}
	return b.String()
}

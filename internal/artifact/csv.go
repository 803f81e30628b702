package artifact

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/roach88/pmgate/internal/conformance"
	"github.com/roach88/pmgate/internal/discovery"
	"github.com/roach88/pmgate/internal/eventlog"
	"github.com/roach88/pmgate/internal/performance"
)

// Artifact file names.
const (
	CleanedLogCSV           = "cleaned_log.csv"
	NormalisedLogCSV        = "normalised_log.csv"
	IngestProfileJSON       = "ingest_profile.json"
	QualityReportJSON       = "data_quality.json"
	RecommendationsJSON     = "data_quality_recommendations.json"
	StrategyJSON            = "strategy.json"
	ModelsManifestJSON      = "models_manifest.json"
	ConformanceMetricsCSV   = "conformance_metrics.csv"
	ConformanceDeviationCSV = "conformance_case_deviations.csv"
	ConformanceSummaryJSON  = "conformance_summary.json"
	PerformanceSummaryJSON  = "performance_summary.json"
	CaseDurationsCSV        = "case_durations.csv"
	SojournTimesCSV         = "sojourn_times.csv"
	HandoversCSV            = "handover_of_work.csv"
	ModelMetricsCSV         = "model_metrics.csv"
	SummaryStatsJSON        = "summary_stats.json"
	VariantCountsCSV        = "variant_counts.csv"
	ManifestJSON            = "manifest.json"
)

// WriteCSV writes header and rows to path.
func WriteCSV(path string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return WriteFileAtomic(path, buf.Bytes())
}

// WriteTable writes an event table. Null cells are written empty.
func WriteTable(path string, t *eventlog.Table) error {
	rows := make([][]string, t.Len())
	for i, row := range t.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = v.String()
		}
		rows[i] = cells
	}
	return WriteCSV(path, t.Columns, rows)
}

// WriteConformanceMetrics writes one row per model. Cells for aggregates the
// method does not produce are left empty.
func WriteConformanceMetrics(path string, summaries []conformance.Summary) error {
	header := []string{"model", "method", "cases", "avg_cost", "max_cost", "avg_fitness", "min_fitness"}
	rows := make([][]string, len(summaries))
	for i, s := range summaries {
		rows[i] = []string{
			s.Model,
			string(s.Method),
			strconv.Itoa(s.CaseCount),
			optFloat(s.AvgCost),
			optFloat(s.MaxCost),
			optFloat(s.AvgFitness),
			optFloat(s.MinFitness),
		}
	}
	return WriteCSV(path, header, rows)
}

// WriteModelMetrics writes one row per evaluated model. Metrics the oracle
// could not compute are left empty.
func WriteModelMetrics(path string, rows []conformance.ModelQuality) error {
	header := []string{"model", "fitness", "precision", "generalization", "simplicity", "soundness", "reason"}
	out := make([][]string, len(rows))
	for i, r := range rows {
		soundness := ""
		if r.Soundness != nil {
			soundness = strconv.FormatBool(*r.Soundness)
		}
		out[i] = []string{
			r.Model,
			optFloat(r.Fitness),
			optFloat(r.Precision),
			optFloat(r.Generalization),
			optFloat(r.Simplicity),
			soundness,
			r.Reason,
		}
	}
	return WriteCSV(path, header, out)
}

// WriteVariantCounts writes variant shares in variant order.
func WriteVariantCounts(path string, variants []discovery.VariantStat) error {
	rows := make([][]string, len(variants))
	for i, v := range variants {
		rows[i] = []string{v.Variant, strconv.Itoa(v.Count), formatFloat(v.Percent), formatFloat(v.CumPercent)}
	}
	return WriteCSV(path, []string{"variant", "count", "percent", "cum_percent"}, rows)
}

// WriteDeviations writes per-case deviation records.
func WriteDeviations(path string, devs []conformance.Deviation) error {
	header := []string{"model", "case_id", "alignment_cost", "fitness", "deviation_count", "log_move_count", "model_move_count"}
	rows := make([][]string, len(devs))
	for i, d := range devs {
		rows[i] = []string{
			d.Model,
			d.CaseID,
			formatFloat(d.AlignmentCost),
			formatFloat(d.Fitness),
			strconv.Itoa(d.DeviationCount),
			strconv.Itoa(d.LogMoveCount),
			strconv.Itoa(d.ModelMoveCount),
		}
	}
	return WriteCSV(path, header, rows)
}

// WriteCaseDurations writes durations in case start order.
func WriteCaseDurations(path string, durations []performance.CaseDuration) error {
	rows := make([][]string, len(durations))
	for i, d := range durations {
		rows[i] = []string{d.CaseID, eventlog.FormatTimestamp(d.Start), formatFloat(d.Hours)}
	}
	return WriteCSV(path, []string{"case_id", "start", "case_duration_hours"}, rows)
}

// WriteSojourns writes average sojourn time per activity.
func WriteSojourns(path string, sojourns []performance.Sojourn) error {
	rows := make([][]string, len(sojourns))
	for i, s := range sojourns {
		rows[i] = []string{s.Activity, formatFloat(s.AvgHours), strconv.Itoa(s.Samples)}
	}
	return WriteCSV(path, []string{"activity", "avg_sojourn_hours", "samples"}, rows)
}

// WriteHandovers writes resource handover counts.
func WriteHandovers(path string, handovers []performance.Handover) error {
	rows := make([][]string, len(handovers))
	for i, h := range handovers {
		rows[i] = []string{h.From, h.To, strconv.Itoa(h.Count)}
	}
	return WriteCSV(path, []string{"from", "to", "count"}, rows)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func optFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

package stage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/roach88/pmgate/internal/artifact"
	"github.com/roach88/pmgate/internal/config"
	"github.com/roach88/pmgate/internal/conformance"
	"github.com/roach88/pmgate/internal/discovery"
	"github.com/roach88/pmgate/internal/eventlog"
	"github.com/roach88/pmgate/internal/normalize"
	"github.com/roach88/pmgate/internal/oracle"
	"github.com/roach88/pmgate/internal/performance"
	"github.com/roach88/pmgate/internal/quality"
)

// Pipeline sequences the stages strictly: ingest, data quality, discovery,
// conformance, performance. Each step runs through Runner.
type Pipeline struct {
	Config config.Config
	Runner *Runner

	// Oracle serves discovery and conformance. Nil fails those stages with a
	// configuration error.
	Oracle oracle.Oracle

	// Opener reads ingest sources. Defaults to normalize.FileOpener.
	Opener normalize.Opener
}

// Result carries every stage output of a full run. Fields are filled as far
// as the run got.
type Result struct {
	Normalized      *eventlog.Table
	Cleaned         *eventlog.Table
	Report          quality.Report
	Recommendations quality.Recommendations
	Summary         discovery.LogSummary
	Selection       discovery.Selection
	Discovery       discovery.Outcome
	ModelQuality    []conformance.ModelQuality
	Conformance     conformance.Report
	Performance     performance.Summary

	// Degraded holds the oracle stages that failed without stopping the run.
	Degraded []*Error
}

type strategyDoc struct {
	discovery.Selection
	Failures []discovery.Failure `json:"failures"`
}

type conformanceDoc struct {
	conformance.Report
	TopDeviations []conformance.Deviation `json:"top_deviations"`
}

// Recoverable reports whether err is an oracle failure that leaves the
// remaining stages able to run.
func Recoverable(err error) bool {
	return eventlog.IsOracleError(err) || errors.Is(err, conformance.ErrNoConformanceOutput)
}

// degrade records a recoverable stage failure and returns any other error.
func (r *Result) degrade(err error) error {
	var se *Error
	if err != nil && Recoverable(err) && errors.As(err, &se) {
		r.Degraded = append(r.Degraded, se)
		return nil
	}
	return err
}

// Run executes every stage in order. Ingest, data quality and configuration
// failures stop the run. Oracle failures in discovery or conformance are
// recorded in those stages' state and in Result.Degraded, and the remaining
// stages still run.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	var res Result
	var err error

	if res.Normalized, err = p.Ingest(ctx); err != nil {
		return res, err
	}
	if res.Cleaned, res.Report, res.Recommendations, err = p.Gate(ctx, Value(res.Normalized)); err != nil {
		return res, err
	}
	log := eventlog.FromTable(res.Cleaned)

	res.Summary, res.Selection, res.Discovery, err = p.Discover(ctx, Value(log))
	if err = res.degrade(err); err != nil {
		return res, err
	}

	if len(res.Discovery.Models) > 0 {
		res.ModelQuality, res.Conformance, err = p.Conform(ctx, Value(log), Value(res.Discovery.Models))
	} else {
		err = p.skipConformance(ctx)
	}
	if err = res.degrade(err); err != nil {
		return res, err
	}

	if res.Performance, err = p.Analyze(ctx, Value(log)); err != nil {
		return res, err
	}
	return res, nil
}

// Ingest loads the configured source, either a single input file or a
// multi-source ingest config, and writes the normalized log and its profile.
func (p *Pipeline) Ingest(ctx context.Context) (*eventlog.Table, error) {
	cfg := p.Config
	var out *eventlog.Table
	err := p.Runner.Run(ctx, Named(Ingest), func(ctx context.Context, dir string) (Output, error) {
		var err error
		switch {
		case cfg.IngestConfig != "":
			var ic *normalize.IngestConfig
			if ic, err = normalize.LoadIngestConfig(cfg.IngestConfig); err != nil {
				return Output{}, err
			}
			out, err = normalize.Ingest(ic, p.opener())
		case cfg.Input != "":
			out, err = LoadInput(cfg)
		default:
			err = eventlog.NewConfigurationError("no input: set input or ingest_config")
		}
		if err != nil {
			return Output{}, err
		}

		logPath := filepath.Join(dir, artifact.NormalisedLogCSV)
		profilePath := filepath.Join(dir, artifact.IngestProfileJSON)
		if err := artifact.WriteTable(logPath, out); err != nil {
			return Output{}, err
		}
		if err := artifact.WriteJSON(profilePath, normalize.BuildProfile(out)); err != nil {
			return Output{}, err
		}
		return Output{
			Params: map[string]any{
				"input":         cfg.Input,
				"input_format":  cfg.InputFormat,
				"ingest_config": cfg.IngestConfig,
				"mapping":       cfg.Mapping(),
				"timestamps":    cfg.Timestamps(),
			},
			Artifacts: map[string]string{
				"normalised_log_csv":  logPath,
				"ingest_profile_json": profilePath,
			},
		}, nil
	})
	return out, err
}

// LoadInput reads cfg.Input in its configured or inferred format.
func LoadInput(cfg config.Config) (*eventlog.Table, error) {
	csvOpts, err := cfg.CSV()
	if err != nil {
		return nil, err
	}
	return normalize.LoadInput(cfg.Input, cfg.InputFormat, csvOpts, cfg.Mapping(), cfg.Timestamps())
}

// Gate runs the quality gate over the table src yields and writes the
// cleaned log, the report and, when non-empty, the recommendations.
func (p *Pipeline) Gate(ctx context.Context, src Source[*eventlog.Table]) (*eventlog.Table, quality.Report, quality.Recommendations, error) {
	var (
		cleaned *eventlog.Table
		report  quality.Report
		recs    quality.Recommendations
	)
	err := p.Runner.Run(ctx, Named(DataQuality), func(ctx context.Context, dir string) (Output, error) {
		qcfg, err := p.Config.Quality()
		if err != nil {
			return Output{}, err
		}
		t, err := src()
		if err != nil {
			return Output{}, err
		}
		if cleaned, report, recs, err = quality.Evaluate(t, qcfg); err != nil {
			return Output{}, err
		}

		arts := map[string]string{
			"cleaned_log_csv":   filepath.Join(dir, artifact.CleanedLogCSV),
			"data_quality_json": filepath.Join(dir, artifact.QualityReportJSON),
		}
		if err := artifact.WriteTable(arts["cleaned_log_csv"], cleaned); err != nil {
			return Output{}, err
		}
		if err := artifact.WriteJSON(arts["data_quality_json"], report); err != nil {
			return Output{}, err
		}
		if len(recs) > 0 {
			arts["recommendations_json"] = filepath.Join(dir, artifact.RecommendationsJSON)
			if err := artifact.WriteJSON(arts["recommendations_json"], recs); err != nil {
				return Output{}, err
			}
		}
		return Output{Params: qualityParams(p.Config), Artifacts: arts}, nil
	})
	return cleaned, report, recs, err
}

// Discover describes the log, selects a strategy and runs the selected
// miners. The log summary and strategy are written even when every miner
// fails; the stage itself fails only when no miner produced a model.
func (p *Pipeline) Discover(ctx context.Context, src Source[*eventlog.Log]) (discovery.LogSummary, discovery.Selection, discovery.Outcome, error) {
	var (
		summary discovery.LogSummary
		sel     discovery.Selection
		outcome discovery.Outcome
	)
	err := p.Runner.Run(ctx, Named(Discovery), func(ctx context.Context, dir string) (Output, error) {
		req, err := p.Config.Discovery()
		if err != nil {
			return Output{}, err
		}
		log, err := src()
		if err != nil {
			return Output{}, err
		}

		arts := map[string]string{
			"summary_stats_json": filepath.Join(dir, artifact.SummaryStatsJSON),
			"variant_counts_csv": filepath.Join(dir, artifact.VariantCountsCSV),
			"strategy_json":      filepath.Join(dir, artifact.StrategyJSON),
		}
		summary = discovery.Describe(log)
		if err := artifact.WriteJSON(arts["summary_stats_json"], summary); err != nil {
			return Output{}, err
		}
		if err := artifact.WriteVariantCounts(arts["variant_counts_csv"], summary.Variants); err != nil {
			return Output{}, err
		}

		if p.Oracle == nil {
			return Output{}, eventlog.NewConfigurationError("no oracle configured")
		}
		if sel, err = discovery.Select(log, req); err != nil {
			return Output{}, err
		}
		outcome = discovery.Discover(ctx, log, sel, p.Oracle)

		if err := artifact.WriteJSON(arts["strategy_json"], strategyDoc{Selection: sel, Failures: outcome.Failures}); err != nil {
			return Output{}, err
		}
		if len(outcome.Models) == 0 {
			return Output{}, eventlog.NewOracleError("discover", errors.New("no miner produced a model"))
		}

		for i, m := range outcome.Models {
			path := filepath.Join(dir, m.Name+".model.json")
			m.Path = path
			if err := artifact.WriteJSON(path, m); err != nil {
				return Output{}, err
			}
			outcome.Models[i] = m
		}
		arts["models_manifest_json"] = filepath.Join(dir, artifact.ModelsManifestJSON)
		if err := artifact.WriteJSON(arts["models_manifest_json"], outcome.ModelPaths()); err != nil {
			return Output{}, err
		}
		return Output{Params: map[string]any{"request": req}, Artifacts: arts}, nil
	})
	return summary, sel, outcome, err
}

// Conform evaluates and replays the log against the models. It writes the
// model quality table, the conformance metrics, the per-case deviations and
// a summary document.
func (p *Pipeline) Conform(ctx context.Context, logSrc Source[*eventlog.Log], modelSrc Source[[]oracle.Model]) ([]conformance.ModelQuality, conformance.Report, error) {
	var (
		metrics []conformance.ModelQuality
		report  conformance.Report
	)
	err := p.Runner.Run(ctx, Named(Conformance), func(ctx context.Context, dir string) (Output, error) {
		method, err := p.Config.Method()
		if err != nil {
			return Output{}, err
		}
		if p.Oracle == nil {
			return Output{}, eventlog.NewConfigurationError("no oracle configured")
		}
		log, err := logSrc()
		if err != nil {
			return Output{}, err
		}
		models, err := modelSrc()
		if err != nil {
			return Output{}, err
		}

		arts := map[string]string{
			"model_metrics_csv":        filepath.Join(dir, artifact.ModelMetricsCSV),
			"conformance_metrics_csv":  filepath.Join(dir, artifact.ConformanceMetricsCSV),
			"conformance_summary_json": filepath.Join(dir, artifact.ConformanceSummaryJSON),
		}
		metrics = conformance.EvaluateModels(ctx, log, models, p.Oracle)
		if err := artifact.WriteModelMetrics(arts["model_metrics_csv"], metrics); err != nil {
			return Output{}, err
		}

		if report, err = conformance.Aggregate(ctx, log, models, p.Oracle, method); err != nil {
			return Output{}, err
		}
		if err := artifact.WriteConformanceMetrics(arts["conformance_metrics_csv"], report.Summaries); err != nil {
			return Output{}, err
		}
		if len(report.Deviations) > 0 {
			arts["conformance_case_deviations_csv"] = filepath.Join(dir, artifact.ConformanceDeviationCSV)
			if err := artifact.WriteDeviations(arts["conformance_case_deviations_csv"], report.Deviations); err != nil {
				return Output{}, err
			}
		}
		doc := conformanceDoc{Report: report, TopDeviations: conformance.TopDeviations(report.Deviations, p.Config.TopDeviations)}
		if err := artifact.WriteJSON(arts["conformance_summary_json"], doc); err != nil {
			return Output{}, err
		}
		return Output{
			Params:    map[string]any{"method": method, "models": modelNames(models)},
			Artifacts: arts,
		}, nil
	})
	return metrics, report, err
}

// skipConformance records a failed conformance attempt when discovery left
// nothing to replay.
func (p *Pipeline) skipConformance(ctx context.Context) error {
	return p.Runner.Run(ctx, Named(Conformance), func(context.Context, string) (Output, error) {
		return Output{}, fmt.Errorf("no discovered models to replay: %w", conformance.ErrNoConformanceOutput)
	})
}

// Analyze computes performance statistics for the log src yields and writes
// them. It needs no oracle.
func (p *Pipeline) Analyze(ctx context.Context, src Source[*eventlog.Log]) (performance.Summary, error) {
	var summary performance.Summary
	err := p.Runner.Run(ctx, Named(Performance), func(ctx context.Context, dir string) (Output, error) {
		log, err := src()
		if err != nil {
			return Output{}, err
		}
		summary = performance.Analyze(log)

		arts := map[string]string{
			"performance_summary_json": filepath.Join(dir, artifact.PerformanceSummaryJSON),
			"case_durations_csv":       filepath.Join(dir, artifact.CaseDurationsCSV),
			"sojourn_times_csv":        filepath.Join(dir, artifact.SojournTimesCSV),
			"handover_of_work_csv":     filepath.Join(dir, artifact.HandoversCSV),
		}
		if err := artifact.WriteJSON(arts["performance_summary_json"], summary); err != nil {
			return Output{}, err
		}
		if err := artifact.WriteCaseDurations(arts["case_durations_csv"], summary.Durations); err != nil {
			return Output{}, err
		}
		if err := artifact.WriteSojourns(arts["sojourn_times_csv"], summary.Sojourns); err != nil {
			return Output{}, err
		}
		if err := artifact.WriteHandovers(arts["handover_of_work_csv"], summary.Handovers); err != nil {
			return Output{}, err
		}
		return Output{
			Params:    map[string]any{"heavy_tail_ratio": performance.HeavyTailRatio, "sigma_width": performance.SigmaWidth},
			Artifacts: arts,
		}, nil
	})
	return summary, err
}

func (p *Pipeline) opener() normalize.Opener {
	if p.Opener != nil {
		return p.Opener
	}
	return normalize.FileOpener
}

// RequireOK fails unless the named stage under outputDir finished ok. Stage
// outputs are only trusted through the state file.
func RequireOK(outputDir, name string) error {
	s, err := ReadState(filepath.Join(outputDir, name))
	if err != nil {
		return err
	}
	if s.Status != OK {
		return eventlog.NewConfigurationError("stage %s has status %s; run it successfully first", name, s.Status)
	}
	return nil
}

// LoadCleaned reads the data quality stage's cleaned log.
func LoadCleaned(outputDir string) (*eventlog.Table, error) {
	if err := RequireOK(outputDir, DataQuality); err != nil {
		return nil, err
	}
	path := filepath.Join(outputDir, DataQuality, artifact.CleanedLogCSV)
	return normalize.LoadCSV(path, normalize.CSVOptions{}, normalize.ColumnMapping{}, normalize.TimestampOptions{})
}

// LoadNormalized reads the ingest stage's normalized log.
func LoadNormalized(outputDir string, ts normalize.TimestampOptions) (*eventlog.Table, error) {
	if err := RequireOK(outputDir, Ingest); err != nil {
		return nil, err
	}
	path := filepath.Join(outputDir, Ingest, artifact.NormalisedLogCSV)
	return normalize.LoadCSV(path, normalize.CSVOptions{}, normalize.ColumnMapping{}, ts)
}

// LoadModels reads the discovery stage's models in name order.
func LoadModels(outputDir string) ([]oracle.Model, error) {
	if err := RequireOK(outputDir, Discovery); err != nil {
		return nil, err
	}
	var paths map[string]string
	if err := artifact.ReadJSON(filepath.Join(outputDir, Discovery, artifact.ModelsManifestJSON), &paths); err != nil {
		return nil, fmt.Errorf("read models manifest: %w", err)
	}
	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)

	models := make([]oracle.Model, 0, len(names))
	for _, name := range names {
		var m oracle.Model
		if err := artifact.ReadJSON(paths[name], &m); err != nil {
			return nil, fmt.Errorf("read model %s: %w", name, err)
		}
		models = append(models, m)
	}
	return models, nil
}

func modelNames(models []oracle.Model) []string {
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	return names
}

func qualityParams(c config.Config) map[string]any {
	return map[string]any{
		"missing_value_threshold":     c.MissingValueThreshold,
		"timestamp_parse_threshold":   c.TimestampParseThreshold,
		"duplicate_threshold":         c.DuplicateThreshold,
		"order_violation_threshold":   c.OrderViolationThreshold,
		"impute_missing_timestamps":   c.ImputeMissingTimestamps,
		"timestamp_impute_strategy":   c.TimestampImputeStrategy,
		"dedupe_keys":                 c.DedupeKeys,
		"auto_mask_sensitive":         c.AutoMaskSensitive,
		"mask_strategy":               c.MaskStrategy,
		"min_timestamp":               c.MinTimestamp,
		"max_timestamp":               c.MaxTimestamp,
		"auto_filter_rare_activities": c.AutoFilterRareActivities,
		"min_activity_frequency":      c.MinActivityFrequency,
		"fail_on_order_violations":    c.FailOnOrderViolations,
		"repair_case_order":           c.RepairCaseOrder,
	}
}

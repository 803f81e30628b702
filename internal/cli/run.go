package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pmgate/internal/config"
	"github.com/roach88/pmgate/internal/stage"
)

// PipelineResult is printed after a full run.
type PipelineResult struct {
	RunID       string            `json:"run_id"`
	Ingest      IngestResult      `json:"ingest"`
	Gate        GateResult        `json:"data_quality"`
	Discovery   DiscoverResult    `json:"discovery"`
	Conformance ConformanceResult `json:"conformance"`
	Performance PerformanceResult `json:"performance"`
	Degraded    []stageFailure    `json:"degraded"`
}

func (r PipelineResult) String() string {
	parts := []string{
		r.Ingest.String(),
		r.Gate.String(),
		r.Discovery.String(),
		r.Conformance.String(),
		r.Performance.String(),
	}
	for _, d := range r.Degraded {
		parts = append(parts, fmt.Sprintf("degraded: %s (failure %d): %s", d.Stage, d.FailureCount, d.Error))
	}
	return fmt.Sprintf("run %s\n%s", r.RunID, strings.Join(parts, "\n"))
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every stage in order",
		Long: `Run ingest, data quality, discovery, conformance and performance in order.
Ingest and data quality failures stop the run. Oracle failures in discovery
or conformance are recorded in those stages' state and reported as degraded,
and performance still runs. Each stage writes its artifacts, its
manifest and its state under its own directory in --output.

A stage that fails repeatedly prints its next steps once the attempt limit
is reached.

Example:
  pmgate run --input events.csv --oracle dir --oracle-dir precomputed
  pmgate run --config pipeline.yaml --ledger runs.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(rootOpts, cmd)
		},
	}

	d := config.Default()
	addOutputFlags(cmd.Flags(), d)
	addSourceFlags(cmd.Flags(), d)
	addQualityFlags(cmd.Flags(), d)
	addDiscoveryFlags(cmd.Flags(), d)
	addConformanceFlags(cmd.Flags(), d)
	addOracleFlags(cmd.Flags(), d)

	return cmd
}

func runPipeline(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	runner := s.pipeline.Runner
	slog.Info("pipeline starting", "run_id", runner.RunID, "output", s.cfg.Output)

	res, err := s.pipeline.Run(s.ctx)
	if err != nil {
		return fail(s.formatter, "pipeline failed", err)
	}
	degraded := make([]stageFailure, 0, len(res.Degraded))
	for _, se := range res.Degraded {
		d := newStageFailure(se)
		d.Error = se.Err.Error()
		degraded = append(degraded, d)
	}
	slog.Info("pipeline finished", "run_id", runner.RunID, "degraded", len(degraded))

	return s.formatter.Success(PipelineResult{
		RunID:       runner.RunID,
		Ingest:      newIngestResult(runner.Dir(stage.Ingest), res.Normalized),
		Gate:        newGateResult(runner.Dir(stage.DataQuality), res.Normalized.Len(), res.Report, res.Recommendations),
		Discovery:   newDiscoverResult(runner.Dir(stage.Discovery), res.Summary, res.Selection, res.Discovery),
		Conformance: newConformanceResult(runner.Dir(stage.Conformance), res.ModelQuality, res.Conformance, s.cfg.TopDeviations),
		Performance: newPerformanceResult(runner.Dir(stage.Performance), res.Performance),
		Degraded:    degraded,
	})
}

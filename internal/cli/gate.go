package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/pmgate/internal/config"
	"github.com/roach88/pmgate/internal/eventlog"
	"github.com/roach88/pmgate/internal/stage"
)

// NewGateCommand creates the gate command.
func NewGateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Run the data quality gate",
		Long: `Check the normalized log against the data quality thresholds, apply the
configured repairs, and write the cleaned log with its quality report.

The gate reads the ingest stage's output. With --input it reads that event
log (CSV or XES) directly instead, applying the column mapping.

Example:
  pmgate gate --output out --impute-missing-timestamps
  pmgate gate --input events.csv --auto-mask-sensitive --mask-strategy tokenize`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGate(rootOpts, cmd)
		},
	}

	d := config.Default()
	addOutputFlags(cmd.Flags(), d)
	addSourceFlags(cmd.Flags(), d)
	addQualityFlags(cmd.Flags(), d)

	return cmd
}

func runGate(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	var inputRows int
	src := func() (*eventlog.Table, error) {
		t, err := gateInput(s.cfg)
		if err == nil {
			inputRows = t.Len()
		}
		return t, err
	}

	_, report, recs, err := s.pipeline.Gate(s.ctx, src)
	if err != nil {
		return fail(s.formatter, "data quality gate failed", err)
	}
	return s.formatter.Success(newGateResult(s.pipeline.Runner.Dir(stage.DataQuality), inputRows, report, recs))
}

// gateInput prefers an explicit input file over the ingest stage's output.
func gateInput(cfg config.Config) (*eventlog.Table, error) {
	if cfg.Input == "" {
		return stage.LoadNormalized(cfg.Output, cfg.Timestamps())
	}
	slog.Debug("reading gate input directly", "path", cfg.Input, "format", cfg.InputFormat)
	return stage.LoadInput(cfg)
}

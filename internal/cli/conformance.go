package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/pmgate/internal/config"
	"github.com/roach88/pmgate/internal/oracle"
	"github.com/roach88/pmgate/internal/stage"
)

// NewConformanceCommand creates the conformance command.
func NewConformanceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conformance",
		Short: "Replay the cleaned log against the discovered models",
		Long: `Replay the cleaned log on every discovered model with alignments or token
replay, and write per-model metrics plus per-case deviations.

Requires successful data quality and discovery stages under --output.

Example:
  pmgate conformance --output out --oracle dir --oracle-dir precomputed
  pmgate conformance --output out --conformance-method token_replay`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConformance(rootOpts, cmd)
		},
	}

	d := config.Default()
	addOutputFlags(cmd.Flags(), d)
	addConformanceFlags(cmd.Flags(), d)
	addOracleFlags(cmd.Flags(), d)

	return cmd
}

func runConformance(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	models := stage.DiscoveredModels(s.cfg.Output)
	logged := func() ([]oracle.Model, error) {
		m, err := models()
		if err == nil {
			s.formatter.VerboseLog("Loaded %d model(s)", len(m))
		}
		return m, err
	}

	metrics, report, err := s.pipeline.Conform(s.ctx, stage.CleanedLog(s.cfg.Output), logged)
	if err != nil {
		return fail(s.formatter, "conformance failed", err)
	}
	return s.formatter.Success(newConformanceResult(s.pipeline.Runner.Dir(stage.Conformance), metrics, report, s.cfg.TopDeviations))
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/pmgate/internal/config"
	"github.com/roach88/pmgate/internal/stage"
)

// NewPerformanceCommand creates the performance command.
func NewPerformanceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "performance",
		Short: "Compute case durations, sojourn times and control bands",
		Long: `Compute duration statistics, sojourn times, arrival rates and handovers
over the cleaned log, flag heavy-tailed durations, and mark cases outside
the control band.

Requires a successful data quality stage under --output.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPerformance(rootOpts, cmd)
		},
	}

	addOutputFlags(cmd.Flags(), config.Default())

	return cmd
}

func runPerformance(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	summary, err := s.pipeline.Analyze(s.ctx, stage.CleanedLog(s.cfg.Output))
	if err != nil {
		return fail(s.formatter, "performance analysis failed", err)
	}
	return s.formatter.Success(newPerformanceResult(s.pipeline.Runner.Dir(stage.Performance), summary))
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/pmgate/internal/config"
	"github.com/roach88/pmgate/internal/stage"
)

// NewDiscoverCommand creates the discover command.
func NewDiscoverCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Select a discovery strategy and mine process models",
		Long: `Measure variant signals on the cleaned log, select the miners to run, and
ask the oracle for one model per selected miner. A failing miner is recorded
in strategy.json; the stage fails only when no miner produced a model.

Requires a successful data quality stage under --output.

Example:
  pmgate discover --output out --oracle dir --oracle-dir precomputed
  pmgate discover --output out --oracle exec --oracle-command ./miner --miner-selection both`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(rootOpts, cmd)
		},
	}

	d := config.Default()
	addOutputFlags(cmd.Flags(), d)
	addDiscoveryFlags(cmd.Flags(), d)
	addOracleFlags(cmd.Flags(), d)

	return cmd
}

func runDiscover(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	summary, sel, outcome, err := s.pipeline.Discover(s.ctx, stage.CleanedLog(s.cfg.Output))
	if err != nil {
		return fail(s.formatter, "discovery failed", err)
	}
	return s.formatter.Success(newDiscoverResult(s.pipeline.Runner.Dir(stage.Discovery), summary, sel, outcome))
}

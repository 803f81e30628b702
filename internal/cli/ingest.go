package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/pmgate/internal/config"
	"github.com/roach88/pmgate/internal/stage"
)

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Normalize an event log into the canonical schema",
		Long: `Read a CSV event log, or every source of a multi-source ingest config,
rename the mapped columns to the canonical schema, parse timestamps, and
write the normalized log and its profile.

Example:
  pmgate ingest --input events.csv --case order_id --activity step --timestamp at
  pmgate ingest --ingest-config sources.yaml --output out`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(rootOpts, cmd)
		},
	}

	d := config.Default()
	addOutputFlags(cmd.Flags(), d)
	addSourceFlags(cmd.Flags(), d)

	return cmd
}

func runIngest(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	t, err := s.pipeline.Ingest(s.ctx)
	if err != nil {
		return fail(s.formatter, "ingest failed", err)
	}
	return s.formatter.Success(newIngestResult(s.pipeline.Runner.Dir(stage.Ingest), t))
}

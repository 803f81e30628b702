package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pmgate/internal/config"
	"github.com/roach88/pmgate/internal/stage"
	"github.com/roach88/pmgate/internal/store"
)

// StatusResult lists every stage state and, with a ledger, the attempts of
// the most recent run.
type StatusResult struct {
	Output   string          `json:"output"`
	Stages   []stage.State   `json:"stages"`
	LastRun  string          `json:"last_run,omitempty"`
	Attempts []store.Attempt `json:"attempts,omitempty"`
}

func (r StatusResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Output: %s", r.Output)
	for _, s := range r.Stages {
		fmt.Fprintf(&b, "\n  %-22s %-8s failures=%d", s.Stage, s.Status, s.FailureCount)
		if s.LastError != "" {
			fmt.Fprintf(&b, "  %s", s.LastError)
		}
		for _, step := range s.NextSteps {
			fmt.Fprintf(&b, "\n    - %s", step)
		}
	}
	if r.LastRun != "" {
		fmt.Fprintf(&b, "\nLast run: %s", r.LastRun)
		for _, a := range r.Attempts {
			fmt.Fprintf(&b, "\n  %s #%d %s", a.Stage, a.Seq, a.Status)
		}
	}
	return b.String()
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of every stage",
		Long: `Read each stage's state file under --output and print its status,
failure count, last error and next steps. Stage artifacts are never used to
infer success.

With --ledger the attempts of the most recent run are listed as well.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}

	d := config.Default()
	cmd.Flags().StringP("output", "o", d.Output, "output directory holding one directory per stage")
	cmd.Flags().String("ledger", d.Ledger, "SQLite attempt ledger (optional)")

	return cmd
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	states, err := stage.Status(s.cfg.Output)
	if err != nil {
		return fail(s.formatter, "reading stage state", err)
	}
	res := StatusResult{Output: s.cfg.Output, Stages: states}

	if s.ledger != nil {
		runs, err := s.ledger.Runs(s.ctx)
		if err != nil {
			return fail(s.formatter, "reading ledger", err)
		}
		if len(runs) > 0 {
			res.LastRun = runs[len(runs)-1]
			if res.Attempts, err = s.ledger.RunAttempts(s.ctx, res.LastRun); err != nil {
				return fail(s.formatter, "reading ledger", err)
			}
		}
	}

	return s.formatter.Success(res)
}

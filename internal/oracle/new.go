package oracle

import (
	"github.com/roach88/pmgate/internal/eventlog"
)

// Kinds of oracle.
const (
	KindExec = "exec"
	KindDir  = "dir"
)

// Options configures the oracle chosen by New.
type Options struct {
	// Command and Args are used by the exec kind.
	Command string
	Args    []string
	// Dir is the precomputed-output directory of the dir kind, and the
	// working directory of the exec kind.
	Dir string
}

// New selects an oracle implementation once, at startup.
func New(kind string, opts Options) (Oracle, error) {
	switch kind {
	case KindExec:
		if opts.Command == "" {
			return nil, eventlog.NewConfigurationError("exec oracle requires a command")
		}
		return &Exec{Command: opts.Command, Args: opts.Args, Dir: opts.Dir}, nil
	case KindDir:
		if opts.Dir == "" {
			return nil, eventlog.NewConfigurationError("dir oracle requires a directory")
		}
		return &Dir{Root: opts.Dir}, nil
	}
	return nil, eventlog.NewConfigurationError("unsupported oracle kind: %q", kind)
}

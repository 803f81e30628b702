package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/pmgate/internal/config"
	"github.com/roach88/pmgate/internal/stage"
	"github.com/roach88/pmgate/internal/store"
)

// session is the per-invocation state shared by the stage commands.
type session struct {
	cfg       config.Config
	formatter *OutputFormatter
	pipeline  *stage.Pipeline

	ctx    context.Context
	cancel context.CancelFunc
	ledger *store.Store
}

// openSession configures logging, loads the layered config, and wires the
// pipeline. withOracle builds the configured oracle up front so a bad oracle
// setting fails before any stage runs.
func openSession(opts *RootOptions, cmd *cobra.Command, withOracle bool) (*session, error) {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
	setupLogging(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := config.Load(opts.ConfigPath, cmd.Flags())
	if err != nil {
		return nil, fail(formatter, "invalid configuration", err)
	}
	formatter.VerboseLog("Output directory: %s", cfg.Output)

	runner := stage.NewRunner(cfg.Output, cmd.ErrOrStderr())
	runner.AttemptLimit = cfg.AttemptLimit
	formatter.TraceID = runner.RunID

	s := &session{
		cfg:       cfg,
		formatter: formatter,
		pipeline:  &stage.Pipeline{Config: cfg, Runner: runner},
	}

	if withOracle {
		o, err := cfg.Oracle()
		if err != nil {
			return nil, fail(formatter, "invalid oracle configuration", err)
		}
		s.pipeline.Oracle = o
	}

	if cfg.Ledger != "" {
		slog.Debug("opening ledger", "path", cfg.Ledger)
		st, err := store.Open(cfg.Ledger)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return nil, WrapExitError(ExitCommandError, "failed to open ledger", err)
		}
		s.ledger = st
		runner.Ledger = st
	}

	s.ctx, s.cancel = signalContext(cmd)
	return s, nil
}

// Close releases the ledger and the signal handler.
func (s *session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			slog.Error("error closing ledger", "error", err)
		}
	}
}

// setupLogging installs a text handler on w, at debug level when verbose.
func setupLogging(w io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// signalContext derives a context from the command's that is cancelled on
// interrupt or SIGTERM. The returned cancel func also stops the handler.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, cancelling", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

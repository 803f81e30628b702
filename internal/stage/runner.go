package stage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/pmgate/internal/artifact"
	"github.com/roach88/pmgate/internal/store"
)

// DefaultAttemptLimit is the failure count at which hints escalate.
const DefaultAttemptLimit = 2

// EscalationHeader introduces surfaced remediation steps.
const EscalationHeader = "Repeated failure detected. Stop and review the next steps below:"

// Stage names a stage and its remediation hints.
type Stage struct {
	Name      string
	NextSteps []string
}

// Output is what a successful stage function reports for its manifest.
type Output struct {
	Params    any
	Artifacts map[string]string
}

// Func is the body of a stage. dir is the stage's own output directory.
type Func func(ctx context.Context, dir string) (Output, error)

// Ledger records attempts. *store.Store implements it.
type Ledger interface {
	RecordAttempt(ctx context.Context, a store.Attempt) (int, error)
}

// Error is returned for a failed stage attempt. It wraps the stage error.
type Error struct {
	Stage        string
	FailureCount int
	Escalated    bool
	NextSteps    []string
	Err          error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed (attempt %d): %v", e.Stage, e.FailureCount, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Runner executes stages under OutputDir.
type Runner struct {
	OutputDir    string
	AttemptLimit int

	// Out receives escalations. Nil discards them.
	Out io.Writer

	// Ledger is optional.
	Ledger Ledger

	// Now defaults to time.Now.
	Now func() time.Time

	RunID string
}

// NewRunner returns a runner with defaults and a fresh UUIDv7 run id.
func NewRunner(outputDir string, out io.Writer) *Runner {
	return &Runner{
		OutputDir:    outputDir,
		AttemptLimit: DefaultAttemptLimit,
		Out:          out,
		Now:          time.Now,
		RunID:        artifact.UUIDv7Generator{}.Generate(),
	}
}

// Dir returns the directory of a stage.
func (r *Runner) Dir(name string) string {
	return filepath.Join(r.OutputDir, name)
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Runner) limit() int {
	if r.AttemptLimit < 1 {
		return DefaultAttemptLimit
	}
	return r.AttemptLimit
}

// Run executes fn as stage st.
//
// The state moves to running before fn executes. On success the manifest is
// written and the state becomes ok with failure_count preserved. On failure
// failure_count increments, the state becomes failed with st.NextSteps, and
// once failure_count reaches the attempt limit the hints are written to Out.
// The returned *Error wraps fn's error.
func (r *Runner) Run(ctx context.Context, st Stage, fn Func) error {
	dir := r.Dir(st.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create stage dir: %w", err)
	}

	state, err := ReadState(dir)
	if err != nil {
		return fmt.Errorf("read %s state: %w", st.Name, err)
	}
	state.Stage = st.Name

	started := r.now()
	state.Status = Running
	state.UpdatedAt = stamp(started)
	if err := WriteState(dir, state); err != nil {
		return fmt.Errorf("write %s state: %w", st.Name, err)
	}
	slog.Info("stage started", "stage", st.Name, "run_id", r.RunID, "failure_count", state.FailureCount)

	out, runErr := fn(ctx, dir)
	if runErr == nil {
		runErr = r.writeManifest(st.Name, dir, out)
	}

	finished := r.now()
	state.UpdatedAt = stamp(finished)
	if runErr == nil {
		state.Status = OK
		state.LastError = ""
		state.NextSteps = []string{}
	} else {
		state.Status = Failed
		state.FailureCount++
		state.LastError = runErr.Error()
		state.NextSteps = append([]string{}, st.NextSteps...)
	}
	if err := WriteState(dir, state); err != nil {
		return fmt.Errorf("write %s state: %w", st.Name, err)
	}
	r.record(ctx, state, started, finished)

	if runErr == nil {
		slog.Info("stage completed", "stage", st.Name, "run_id", r.RunID)
		return nil
	}

	escalated := state.FailureCount >= r.limit()
	slog.Error("stage failed",
		"stage", st.Name,
		"failure_count", state.FailureCount,
		"escalated", escalated,
		"error", runErr,
	)
	if escalated {
		r.escalate(state.NextSteps)
	} else {
		for _, step := range state.NextSteps {
			slog.Info("next step", "stage", st.Name, "step", step)
		}
	}
	return &Error{
		Stage:        st.Name,
		FailureCount: state.FailureCount,
		Escalated:    escalated,
		NextSteps:    state.NextSteps,
		Err:          runErr,
	}
}

func (r *Runner) writeManifest(name, dir string, out Output) error {
	params := out.Params
	if params == nil {
		params = map[string]any{}
	}
	m, err := artifact.NewManifest(name, r.RunID, params, out.Artifacts, r.now())
	if err != nil {
		return err
	}
	return artifact.WriteManifest(dir, m)
}

func (r *Runner) escalate(steps []string) {
	if r.Out == nil {
		return
	}
	fmt.Fprintln(r.Out, EscalationHeader)
	for _, step := range steps {
		fmt.Fprintf(r.Out, "- %s\n", step)
	}
}

// record appends the attempt to the ledger. Ledger failures are logged only;
// the state file remains authoritative.
func (r *Runner) record(ctx context.Context, s State, started, finished time.Time) {
	if r.Ledger == nil {
		return
	}
	_, err := r.Ledger.RecordAttempt(ctx, store.Attempt{
		RunID:        r.RunID,
		OutputDir:    r.OutputDir,
		Stage:        s.Stage,
		Status:       string(s.Status),
		FailureCount: s.FailureCount,
		Error:        s.LastError,
		NextSteps:    s.NextSteps,
		StartedAt:    started,
		FinishedAt:   finished,
	})
	if err != nil {
		slog.Warn("ledger write failed", "stage", s.Stage, "error", err)
	}
}

// Status reads the state of every stage under outputDir in pipeline order.
func Status(outputDir string) ([]State, error) {
	states := make([]State, 0, len(Names))
	for _, name := range Names {
		s, err := ReadState(filepath.Join(outputDir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s state: %w", name, err)
		}
		s.Stage = name
		states = append(states, s)
	}
	return states, nil
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

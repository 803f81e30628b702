package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/pmgate/internal/conformance"
	"github.com/roach88/pmgate/internal/eventlog"
	"github.com/roach88/pmgate/internal/stage"
)

// Exit codes for CLI commands.
const (
	ExitSuccess       = 0  // Successful execution
	ExitFailure       = 1  // Unclassified failure
	ExitCommandError  = 2  // Command error (bad flags, unreadable paths)
	ExitSchema        = 10 // Required columns missing
	ExitTimestamp     = 11 // Timestamp parse failure rate over threshold
	ExitValidation    = 12 // Missing values, order violations, other gate breaches
	ExitConfiguration = 13 // Unsupported strategy or setting
	ExitRuntime       = 20 // External oracle failure or no conformance output
)

// Error codes reported in the JSON envelope.
const (
	ErrCodeGeneric       = "E001"
	ErrCodeSchema        = string(eventlog.KindSchema)
	ErrCodeValidation    = string(eventlog.KindValidation)
	ErrCodeOracle        = string(eventlog.KindExternalOracle)
	ErrCodeConfiguration = string(eventlog.KindConfiguration)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// exitCodeFor maps a pipeline error to its exit code by kind.
func exitCodeFor(err error) int {
	switch {
	case eventlog.IsSchemaError(err):
		return ExitSchema
	case eventlog.IsTimestampError(err):
		return ExitTimestamp
	case eventlog.IsValidationError(err):
		return ExitValidation
	case eventlog.IsConfigurationError(err):
		return ExitConfiguration
	case eventlog.IsOracleError(err), errors.Is(err, conformance.ErrNoConformanceOutput):
		return ExitRuntime
	}
	return ExitFailure
}

// errorCodeFor returns the envelope code for err.
func errorCodeFor(err error) string {
	var e *eventlog.Error
	if errors.As(err, &e) {
		return string(e.Kind)
	}
	if errors.Is(err, conformance.ErrNoConformanceOutput) {
		return ErrCodeOracle
	}
	return ErrCodeGeneric
}

// stageFailure is the error detail attached to a failed stage.
type stageFailure struct {
	Stage        string   `json:"stage"`
	FailureCount int      `json:"failure_count"`
	Escalated    bool     `json:"escalated"`
	NextSteps    []string `json:"next_steps"`
	Error        string   `json:"error,omitempty"`
}

func newStageFailure(se *stage.Error) stageFailure {
	return stageFailure{
		Stage:        se.Stage,
		FailureCount: se.FailureCount,
		Escalated:    se.Escalated,
		NextSteps:    se.NextSteps,
	}
}

// fail reports err through the formatter and returns it wrapped with the exit
// code for its kind.
func fail(f *OutputFormatter, message string, err error) error {
	var details interface{}
	var se *stage.Error
	if errors.As(err, &se) {
		details = newStageFailure(se)
	}
	_ = f.Error(errorCodeFor(err), err.Error(), details)
	return WrapExitError(exitCodeFor(err), message, err)
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
	TraceID   string // run id echoed in JSON envelopes
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status  string      `json:"status"`             // "ok" or "error"
	Data    interface{} `json:"data,omitempty"`     // success payload
	Error   *CLIError   `json:"error,omitempty"`    // error details
	TraceID string      `json:"trace_id,omitempty"` // run id of the pipeline invocation
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // error kind, e.g. "SCHEMA_ERROR"
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status:  "ok",
			Data:    data,
			TraceID: f.TraceID,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
			TraceID: f.TraceID,
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %+v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

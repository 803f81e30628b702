package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pmgate/internal/conformance"
	"github.com/roach88/pmgate/internal/eventlog"
	"github.com/roach88/pmgate/internal/stage"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "json",
		Writer:  buf,
		TraceID: "run-1",
	}

	err := formatter.Success(IngestResult{Stage: "ingest", Rows: 9, Columns: 3})
	require.NoError(t, err)

	var resp struct {
		Status  string       `json:"status"`
		Data    IngestResult `json:"data"`
		TraceID string       `json:"trace_id"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 9, resp.Data.Rows)
	assert.Equal(t, "run-1", resp.TraceID)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(ErrCodeSchema, "missing required columns", map[string]string{"column": "time:timestamp"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SCHEMA_ERROR", resp.Error.Code)
	assert.Equal(t, "missing required columns", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success(IngestResult{Dir: "out/stage_01_ingest", Rows: 9, Columns: 3})
	require.NoError(t, err)
	assert.Equal(t, "ingest ok: 9 rows, 3 columns -> out/stage_01_ingest\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			require.NoError(t, formatter.Error(ErrCodeValidation, "too many unparsable timestamps", []string{"r1"}))
			assert.Contains(t, buf.String(), "Error [VALIDATION_ERROR]: too many unparsable timestamps")
			assert.Equal(t, tt.wantDetails, bytes.Contains(buf.Bytes(), []byte("Details:")))
		})
	}
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, diag := &bytes.Buffer{}, &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: diag,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Loaded %d model(s)", 2)

			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Contains(t, diag.String(), "Loaded 2 model(s)")
			} else {
				assert.Empty(t, diag.String())
			}
		})
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"schema", eventlog.NewSchemaError([]string{"time:timestamp"}), ExitSchema},
		{"timestamp", eventlog.NewValidationError(eventlog.SubkindTimestampParse, "bad"), ExitTimestamp},
		{"missing values", eventlog.NewValidationError(eventlog.SubkindMissingValues, "bad"), ExitValidation},
		{"order", eventlog.NewValidationError(eventlog.SubkindOrderViolation, "bad"), ExitValidation},
		{"configuration", eventlog.NewConfigurationError("bad"), ExitConfiguration},
		{"oracle", eventlog.NewOracleError("replay", errors.New("boom")), ExitRuntime},
		{"no conformance output", conformance.ErrNoConformanceOutput, ExitRuntime},
		{"wrapped", fmt.Errorf("stage: %w", eventlog.NewSchemaError([]string{"concept:name"})), ExitSchema},
		{"plain", errors.New("disk full"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.err))
		})
	}
}

func TestFail_StageErrorDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	stageErr := &stage.Error{
		Stage:        stage.DataQuality,
		FailureCount: 2,
		Escalated:    true,
		NextSteps:    []string{"Inspect the raw timestamps."},
		Err:          eventlog.NewValidationError(eventlog.SubkindTimestampParse, "rate too high"),
	}

	err := fail(formatter, "data quality gate failed", stageErr)
	require.Error(t, err)
	assert.Equal(t, ExitTimestamp, GetExitCode(err))
	assert.Contains(t, err.Error(), "data quality gate failed")

	var resp struct {
		Error struct {
			Code    string       `json:"code"`
			Details stageFailure `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, stage.DataQuality, resp.Error.Details.Stage)
	assert.Equal(t, 2, resp.Error.Details.FailureCount)
	assert.True(t, resp.Error.Details.Escalated)
	assert.Equal(t, []string{"Inspect the raw timestamps."}, resp.Error.Details.NextSteps)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))
	assert.Equal(t, ExitRuntime, GetExitCode(fmt.Errorf("outer: %w", WrapExitError(ExitRuntime, "oracle", errors.New("x")))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

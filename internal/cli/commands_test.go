package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pmgate/internal/artifact"
	"github.com/roach88/pmgate/internal/stage"
)

const eventsCSV = `order,step,at,clerk
o1,register,2024-03-01 08:00:00,ann
o1,check,2024-03-01 09:00:00,bob
o1,close,2024-03-01 11:00:00,ann
o2,register,2024-03-02 08:00:00,ann
o2,check,2024-03-02 10:00:00,bob
o2,close,2024-03-02 11:00:00,bob
o3,register,2024-03-03 08:00:00,cid
o3,check,2024-03-03 08:30:00,bob
o3,close,2024-03-03 09:00:00,cid
`

const inductiveModel = `{"name": "inductive", "miner": "inductive", "payload": {"places": 4}}`

const inductiveAlignments = `{"results": [
  {"cost": 0, "fitness": 1, "alignment": [["register", "register"], ["check", "check"], ["close", "close"]]},
  {"cost": 2, "fitness": 0.6, "alignment": [["register", "register"], ["check", null], [null, "close"]]},
  {"cost": 0, "fitness": 1, "alignment": [["register", "register"], ["check", "check"], ["close", "close"]]}
]}`

type fixture struct {
	input  string
	oracle string
	output string
}

func newFixture(t *testing.T, csv string) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		input:  filepath.Join(dir, "events.csv"),
		oracle: filepath.Join(dir, "oracle"),
		output: filepath.Join(dir, "out"),
	}
	require.NoError(t, os.MkdirAll(f.oracle, 0o755))
	require.NoError(t, os.WriteFile(f.input, []byte(csv), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.oracle, "inductive.model.json"), []byte(inductiveModel), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.oracle, "inductive.alignments.json"), []byte(inductiveAlignments), 0o644))
	return f
}

func (f fixture) sourceArgs() []string {
	return []string{
		"--input", f.input,
		"--case", "order", "--activity", "step", "--timestamp", "at", "--resource", "clerk",
		"--output", f.output,
	}
}

func (f fixture) oracleArgs() []string {
	return []string{"--oracle", "dir", "--oracle-dir", f.oracle, "--output", f.output}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func args(groups ...[]string) []string {
	var all []string
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}

func TestRun_FullPipelineJSON(t *testing.T) {
	f := newFixture(t, eventsCSV)

	stdout, _, err := execute(t, args([]string{"run", "--format", "json"}, f.sourceArgs(), f.oracleArgs())...)
	require.NoError(t, err)

	var resp struct {
		Status  string         `json:"status"`
		Data    PipelineResult `json:"data"`
		TraceID string         `json:"trace_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, resp.Data.RunID, resp.TraceID)

	assert.Equal(t, 9, resp.Data.Ingest.Rows)
	assert.Equal(t, 9, resp.Data.Gate.Rows)
	assert.Equal(t, "inductive", string(resp.Data.Discovery.Strategy))
	assert.Equal(t, []string{"inductive"}, resp.Data.Discovery.Models)

	require.Len(t, resp.Data.Conformance.Summaries, 1)
	summary := resp.Data.Conformance.Summaries[0]
	assert.Equal(t, 3, summary.CaseCount)
	require.NotNil(t, summary.MaxCost)
	assert.Equal(t, 2.0, *summary.MaxCost)
	require.NotEmpty(t, resp.Data.Conformance.TopDeviations)
	top := resp.Data.Conformance.TopDeviations[0]
	assert.Equal(t, 2, top.DeviationCount)
	assert.Equal(t, 1, top.LogMoveCount)
	assert.Equal(t, 1, top.ModelMoveCount)

	assert.Equal(t, 3, resp.Data.Performance.CaseCount)

	for _, name := range stage.Names {
		s, err := stage.ReadState(filepath.Join(f.output, name))
		require.NoError(t, err)
		assert.Equal(t, stage.OK, s.Status, name)

		m, err := artifact.ReadManifest(filepath.Join(f.output, name))
		require.NoError(t, err)
		assert.Equal(t, resp.Data.RunID, m.RunID, name)
	}
}

func TestStageCommands_Sequence(t *testing.T) {
	f := newFixture(t, eventsCSV)

	stdout, _, err := execute(t, args([]string{"ingest"}, f.sourceArgs())...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "ingest ok: 9 rows")

	stdout, _, err = execute(t, "gate", "--output", f.output)
	require.NoError(t, err)
	assert.Contains(t, stdout, "data quality ok: 9 of 9 rows kept")

	stdout, _, err = execute(t, args([]string{"discover"}, f.oracleArgs())...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "strategy inductive")
	assert.Contains(t, stdout, "models: inductive")

	stdout, _, err = execute(t, args([]string{"conformance"}, f.oracleArgs())...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "inductive (alignments): 3 cases")

	stdout, _, err = execute(t, "performance", "--output", f.output)
	require.NoError(t, err)
	assert.Contains(t, stdout, "performance ok: 3 cases")

	assert.FileExists(t, filepath.Join(f.output, stage.Performance, artifact.HandoversCSV))
}

func TestStageCommands_RequirePriorStage(t *testing.T) {
	f := newFixture(t, eventsCSV)

	// Artifacts without an ok state do not count.
	dq := filepath.Join(f.output, stage.DataQuality)
	require.NoError(t, os.MkdirAll(dq, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dq, artifact.CleanedLogCSV), []byte(eventsCSV), 0o644))

	_, _, err := execute(t, "performance", "--output", f.output)
	require.Error(t, err)
	assert.Equal(t, ExitConfiguration, GetExitCode(err))
}

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name  string
		csv   string
		extra []string
		want  int
	}{
		{
			name: "missing timestamp column",
			csv:  "order,step,clerk\no1,register,ann\n",
			want: ExitSchema,
		},
		{
			name: "unparsable timestamps",
			csv:  eventsCSV + "o4,register,not a date,ann\n",
			want: ExitTimestamp,
		},
		{
			name:  "unsupported miner",
			csv:   eventsCSV,
			extra: []string{"--miner-selection", "alpha"},
			want:  ExitConfiguration,
		},
		{
			name:  "oracle without directory",
			csv:   eventsCSV,
			extra: []string{"--oracle-dir", ""},
			want:  ExitConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.csv)
			_, _, err := execute(t, args([]string{"run"}, f.sourceArgs(), f.oracleArgs(), tt.extra)...)
			require.Error(t, err)
			assert.Equal(t, tt.want, GetExitCode(err))
		})
	}
}

func TestRun_EscalatesRepeatedFailure(t *testing.T) {
	f := newFixture(t, "order,step,clerk\no1,register,ann\n")
	runArgs := args([]string{"run", "--format", "json"}, f.sourceArgs(), f.oracleArgs())

	_, stderr, err := execute(t, runArgs...)
	require.Error(t, err)
	assert.NotContains(t, stderr, stage.EscalationHeader)

	stdout, stderr, err := execute(t, runArgs...)
	require.Error(t, err)
	assert.Contains(t, stderr, stage.EscalationHeader)

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string       `json:"code"`
			Details stageFailure `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "SCHEMA_ERROR", resp.Error.Code)
	assert.Equal(t, stage.DataQuality, resp.Error.Details.Stage)
	assert.Equal(t, 2, resp.Error.Details.FailureCount)
	assert.True(t, resp.Error.Details.Escalated)
	assert.NotEmpty(t, resp.Error.Details.NextSteps)
}

func TestGate_MissingInputIsRecorded(t *testing.T) {
	f := newFixture(t, eventsCSV)
	gateArgs := []string{
		"gate", "--format", "json",
		"--input", filepath.Join(t.TempDir(), "missing.csv"),
		"--case", "order", "--activity", "step", "--timestamp", "at",
		"--output", f.output,
	}

	for attempt := 1; attempt <= 3; attempt++ {
		stdout, stderr, err := execute(t, gateArgs...)
		require.Error(t, err)

		var resp struct {
			Error struct {
				Details stageFailure `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
		assert.Equal(t, stage.DataQuality, resp.Error.Details.Stage)
		assert.Equal(t, attempt, resp.Error.Details.FailureCount)
		if attempt >= 2 {
			assert.Contains(t, stderr, stage.EscalationHeader)
		}
	}

	s, err := stage.ReadState(filepath.Join(f.output, stage.DataQuality))
	require.NoError(t, err)
	assert.Equal(t, stage.Failed, s.Status)
	assert.Equal(t, 3, s.FailureCount)
	assert.Contains(t, s.LastError, "missing.csv")
}

func TestRun_DegradesWhenOracleHasNoModels(t *testing.T) {
	f := newFixture(t, eventsCSV)
	require.NoError(t, os.Remove(filepath.Join(f.oracle, "inductive.model.json")))

	stdout, _, err := execute(t, args([]string{"run", "--format", "json"}, f.sourceArgs(), f.oracleArgs())...)
	require.NoError(t, err)

	var resp struct {
		Data PipelineResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Empty(t, resp.Data.Discovery.Models)
	assert.Equal(t, 3, resp.Data.Discovery.Summary.Cases)
	assert.Empty(t, resp.Data.Conformance.Summaries)
	assert.Equal(t, 3, resp.Data.Performance.CaseCount)

	require.Len(t, resp.Data.Degraded, 2)
	assert.Equal(t, stage.Discovery, resp.Data.Degraded[0].Stage)
	assert.Equal(t, stage.Conformance, resp.Data.Degraded[1].Stage)
	assert.Equal(t, 1, resp.Data.Degraded[0].FailureCount)

	want := map[string]stage.StageStatus{
		stage.Ingest:      stage.OK,
		stage.DataQuality: stage.OK,
		stage.Discovery:   stage.Failed,
		stage.Conformance: stage.Failed,
		stage.Performance: stage.OK,
	}
	for name, status := range want {
		s, err := stage.ReadState(filepath.Join(f.output, name))
		require.NoError(t, err)
		assert.Equal(t, status, s.Status, name)
	}
	assert.FileExists(t, filepath.Join(f.output, stage.Discovery, artifact.VariantCountsCSV))
}

const eventsXES = `<?xml version="1.0" encoding="UTF-8"?>
<log xes.version="1.0">
  <trace><string key="concept:name" value="o1"/>
    <event><string key="concept:name" value="register"/><date key="time:timestamp" value="2024-03-01T08:00:00+00:00"/><string key="org:resource" value="ann"/></event>
    <event><string key="concept:name" value="check"/><date key="time:timestamp" value="2024-03-01T09:00:00+00:00"/><string key="org:resource" value="bob"/></event>
    <event><string key="concept:name" value="close"/><date key="time:timestamp" value="2024-03-01T11:00:00+00:00"/><string key="org:resource" value="ann"/></event>
  </trace>
  <trace><string key="concept:name" value="o2"/>
    <event><string key="concept:name" value="register"/><date key="time:timestamp" value="2024-03-02T08:00:00+00:00"/><string key="org:resource" value="ann"/></event>
    <event><string key="concept:name" value="check"/><date key="time:timestamp" value="2024-03-02T10:00:00+00:00"/><string key="org:resource" value="bob"/></event>
    <event><string key="concept:name" value="close"/><date key="time:timestamp" value="2024-03-02T11:00:00+00:00"/><string key="org:resource" value="bob"/></event>
  </trace>
  <trace><string key="concept:name" value="o3"/>
    <event><string key="concept:name" value="register"/><date key="time:timestamp" value="2024-03-03T08:00:00+00:00"/><string key="org:resource" value="cid"/></event>
    <event><string key="concept:name" value="check"/><date key="time:timestamp" value="2024-03-03T08:30:00+00:00"/><string key="org:resource" value="bob"/></event>
    <event><string key="concept:name" value="close"/><date key="time:timestamp" value="2024-03-03T09:00:00+00:00"/><string key="org:resource" value="cid"/></event>
  </trace>
</log>
`

func TestRun_XESInput(t *testing.T) {
	f := newFixture(t, eventsCSV)
	input := filepath.Join(t.TempDir(), "events.xes")
	require.NoError(t, os.WriteFile(input, []byte(eventsXES), 0o644))

	stdout, _, err := execute(t, args([]string{"run", "--format", "json", "--input", input}, f.oracleArgs())...)
	require.NoError(t, err)

	var resp struct {
		Data PipelineResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, 9, resp.Data.Ingest.Rows)
	assert.Equal(t, map[string]int{"register": 3}, resp.Data.Discovery.Summary.StartActivities)
	assert.Empty(t, resp.Data.Degraded)
	assert.Equal(t, 3, resp.Data.Performance.CaseCount)
}

func TestStatus_WithLedger(t *testing.T) {
	f := newFixture(t, eventsCSV)
	ledger := filepath.Join(t.TempDir(), "runs.db")

	_, _, err := execute(t, args([]string{"run", "--ledger", ledger}, f.sourceArgs(), f.oracleArgs())...)
	require.NoError(t, err)

	stdout, _, err := execute(t, "status", "--output", f.output, "--ledger", ledger, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data StatusResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data.Stages, len(stage.Names))
	for i, s := range resp.Data.Stages {
		assert.Equal(t, stage.Names[i], s.Stage)
		assert.Equal(t, stage.OK, s.Status)
	}
	assert.NotEmpty(t, resp.Data.LastRun)
	assert.Len(t, resp.Data.Attempts, len(stage.Names))
}

func TestStatus_FreshOutput(t *testing.T) {
	stdout, _, err := execute(t, "status", "--output", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, stdout, "stage_01_ingest")
	assert.Contains(t, stdout, "not_run")
}

func TestRun_ConfigFile(t *testing.T) {
	f := newFixture(t, eventsCSV)
	cfgPath := filepath.Join(t.TempDir(), "pmgate.yaml")
	cfg := "input: " + f.input + "\n" +
		"case: order\nactivity: step\ntimestamp: at\nresource: clerk\n" +
		"output: " + f.output + "\n" +
		"oracle: dir\noracle_dir: " + f.oracle + "\n" +
		"conformance_method: alignments\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	stdout, _, err := execute(t, "run", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "performance ok: 3 cases")
}

package stage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pmgate/internal/artifact"
	"github.com/roach88/pmgate/internal/config"
	"github.com/roach88/pmgate/internal/conformance"
	"github.com/roach88/pmgate/internal/discovery"
	"github.com/roach88/pmgate/internal/eventlog"
	"github.com/roach88/pmgate/internal/oracle"
	"github.com/roach88/pmgate/internal/quality"
)

type fakeOracle struct {
	oracle.DiscoverFunc
	oracle.ReplayFunc
	oracle.EvaluateFunc
}

func newFakeOracle(failMiner oracle.Miner) fakeOracle {
	return fakeOracle{
		DiscoverFunc: func(_ context.Context, _ *eventlog.Log, miner oracle.Miner, _ oracle.MinerParams) oracle.Result[oracle.Model] {
			if miner == failMiner {
				return oracle.Fail[oracle.Model](errors.New("miner crashed"))
			}
			return oracle.Succeed(oracle.Model{Name: string(miner), Miner: miner, Payload: json.RawMessage(`{"places":3}`)})
		},
		ReplayFunc: func(_ context.Context, log *eventlog.Log, _ oracle.Model, method oracle.Method) oracle.Result[oracle.Replay] {
			results := make([]oracle.CaseResult, len(log.Cases))
			for i := range results {
				results[i] = oracle.CaseResult{Fitness: 1, Moves: []oracle.Move{{Log: "a", Model: "a"}}}
			}
			results[0] = oracle.CaseResult{Cost: 1, Fitness: 0.8, Moves: []oracle.Move{{Log: "x", Model: oracle.Skip}}}
			return oracle.Succeed(oracle.Replay{Method: method, Cases: results})
		},
		EvaluateFunc: func(_ context.Context, _ *eventlog.Log, m oracle.Model) oracle.Result[oracle.ModelMetrics] {
			if m.Name == "heuristic" {
				return oracle.Fail[oracle.ModelMetrics](errors.New("not a workflow net"))
			}
			fitness, precision := 0.95, 0.8
			return oracle.Succeed(oracle.ModelMetrics{Fitness: &fitness, Precision: &precision})
		},
	}
}

const eventCSV = `case:concept:name,concept:name,time:timestamp
c1,register,2024-03-01T08:00:00Z
c1,check,2024-03-01T09:00:00Z
c1,close,2024-03-01T11:00:00Z
c2,register,2024-03-02T08:00:00Z
c2,check,2024-03-02T10:00:00Z
c2,close,2024-03-02T11:00:00Z
c3,register,2024-03-03T08:00:00Z
c3,check,2024-03-03T08:30:00Z
c3,close,2024-03-03T09:00:00Z
`

func newTestPipeline(t *testing.T, o oracle.Oracle) *Pipeline {
	t.Helper()
	input := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(input, []byte(eventCSV), 0o644))

	cfg := config.Default()
	cfg.Input = input
	return &Pipeline{
		Config: cfg,
		Runner: newTestRunner(t, &bytes.Buffer{}),
		Oracle: o,
	}
}

func TestPipeline_RunEndToEnd(t *testing.T) {
	p := newTestPipeline(t, newFakeOracle(""))

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 9, res.Report.RowsAfterCleaning)
	assert.Equal(t, 0.0, res.Report.TimestampParseFailureRate)
	assert.Equal(t, discovery.Inductive, res.Selection.Strategy)
	require.Len(t, res.Discovery.Models, 1)
	require.Len(t, res.Conformance.Summaries, 1)
	assert.Equal(t, 3, res.Conformance.Summaries[0].CaseCount)
	assert.Equal(t, 1, res.Conformance.Deviations[0].LogMoveCount)
	require.NotNil(t, res.Performance.Stats)
	assert.Equal(t, 3.0, res.Performance.Stats.Max)
	assert.Empty(t, res.Degraded)

	assert.Equal(t, 3, res.Summary.Cases)
	assert.Equal(t, map[string]int{"register": 3}, res.Summary.StartActivities)
	require.Len(t, res.ModelQuality, 1)
	assert.Equal(t, 0.8, *res.ModelQuality[0].Precision)

	states, err := Status(p.Runner.OutputDir)
	require.NoError(t, err)
	for _, s := range states {
		assert.Equal(t, OK, s.Status, s.Stage)
	}

	out := p.Runner.OutputDir
	for _, rel := range []string{
		filepath.Join(Ingest, artifact.NormalisedLogCSV),
		filepath.Join(Ingest, artifact.IngestProfileJSON),
		filepath.Join(DataQuality, artifact.CleanedLogCSV),
		filepath.Join(DataQuality, artifact.QualityReportJSON),
		filepath.Join(Discovery, artifact.SummaryStatsJSON),
		filepath.Join(Discovery, artifact.VariantCountsCSV),
		filepath.Join(Discovery, artifact.StrategyJSON),
		filepath.Join(Discovery, artifact.ModelsManifestJSON),
		filepath.Join(Discovery, "inductive.model.json"),
		filepath.Join(Conformance, artifact.ModelMetricsCSV),
		filepath.Join(Conformance, artifact.ConformanceMetricsCSV),
		filepath.Join(Conformance, artifact.ConformanceDeviationCSV),
		filepath.Join(Performance, artifact.PerformanceSummaryJSON),
		filepath.Join(Performance, artifact.CaseDurationsCSV),
		filepath.Join(Performance, artifact.SojournTimesCSV),
	} {
		assert.FileExists(t, filepath.Join(out, rel))
	}
	for _, name := range Names {
		assert.FileExists(t, filepath.Join(out, name, artifact.ManifestJSON))
	}
	var recs map[string]any
	require.NoError(t, artifact.ReadJSON(filepath.Join(out, DataQuality, artifact.RecommendationsJSON), &recs))
	assert.InDelta(t, 1.0/3.0, recs[quality.RecSuggestedMinFrequency], 1e-12)
}

func TestPipeline_ReloadsStageOutputs(t *testing.T) {
	p := newTestPipeline(t, newFakeOracle(""))
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	cleaned, err := LoadCleaned(p.Runner.OutputDir)
	require.NoError(t, err)
	assert.Equal(t, 9, cleaned.Len())
	assert.NotNil(t, cleaned.Timestamp(0))

	models, err := LoadModels(p.Runner.OutputDir)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "inductive", models[0].Name)
	assert.JSONEq(t, `{"places":3}`, string(models[0].Payload))
}

func TestPipeline_DeterministicArtifacts(t *testing.T) {
	read := func(p *Pipeline, rel string) string {
		data, err := os.ReadFile(filepath.Join(p.Runner.OutputDir, rel))
		require.NoError(t, err)
		return string(data)
	}
	a := newTestPipeline(t, newFakeOracle(""))
	b := newTestPipeline(t, newFakeOracle(""))
	_, err := a.Run(context.Background())
	require.NoError(t, err)
	_, err = b.Run(context.Background())
	require.NoError(t, err)

	for _, rel := range []string{
		filepath.Join(DataQuality, artifact.QualityReportJSON),
		filepath.Join(Discovery, artifact.StrategyJSON),
		filepath.Join(Conformance, artifact.ConformanceMetricsCSV),
		filepath.Join(Conformance, artifact.ModelMetricsCSV),
		filepath.Join(Discovery, artifact.VariantCountsCSV),
	} {
		assert.Equal(t, read(a, rel), read(b, rel), rel)
	}
}

func TestPipeline_MinerFailureIsRecorded(t *testing.T) {
	p := newTestPipeline(t, newFakeOracle(oracle.Inductive))
	p.Config.MinerSelection = "both"

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Discovery.Failures, 1)
	assert.Equal(t, oracle.Inductive, res.Discovery.Failures[0].Miner)
	require.Len(t, res.Discovery.Models, 1)
	assert.Equal(t, "heuristic", res.Discovery.Models[0].Name)
}

func TestPipeline_FailedModelEvaluationKeepsRow(t *testing.T) {
	p := newTestPipeline(t, newFakeOracle(""))
	p.Config.MinerSelection = "both"

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.ModelQuality, 2)
	assert.Equal(t, "inductive", res.ModelQuality[0].Model)
	assert.Equal(t, "heuristic", res.ModelQuality[1].Model)
	assert.Nil(t, res.ModelQuality[1].Fitness)
	assert.Equal(t, "not a workflow net", res.ModelQuality[1].Reason)
	require.Len(t, res.Conformance.Summaries, 2, "replay still covers the model")

	data, err := os.ReadFile(filepath.Join(p.Runner.OutputDir, Conformance, artifact.ModelMetricsCSV))
	require.NoError(t, err)
	assert.Contains(t, string(data), "heuristic,,,,,,not a workflow net\n")
}

func TestPipeline_AllMinersFailStillAnalyzesPerformance(t *testing.T) {
	p := newTestPipeline(t, newFakeOracle(oracle.Inductive))

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Degraded, 2)
	assert.Equal(t, Discovery, res.Degraded[0].Stage)
	assert.True(t, eventlog.IsOracleError(res.Degraded[0]))
	assert.Equal(t, Conformance, res.Degraded[1].Stage)
	assert.ErrorIs(t, res.Degraded[1], conformance.ErrNoConformanceOutput)
	require.NotNil(t, res.Performance.Stats)

	states, err := Status(p.Runner.OutputDir)
	require.NoError(t, err)
	assert.Equal(t, OK, states[1].Status)
	assert.Equal(t, Failed, states[2].Status)
	assert.Equal(t, Failed, states[3].Status)
	assert.Contains(t, states[3].LastError, "no conformance output")
	assert.Equal(t, OK, states[4].Status)

	out := p.Runner.OutputDir
	assert.FileExists(t, filepath.Join(out, Discovery, artifact.StrategyJSON))
	assert.FileExists(t, filepath.Join(out, Discovery, artifact.SummaryStatsJSON))
	assert.FileExists(t, filepath.Join(out, Performance, artifact.PerformanceSummaryJSON))
}

func TestPipeline_SourceFailureIsRecorded(t *testing.T) {
	p := newTestPipeline(t, newFakeOracle(""))
	missing := errors.New("open cleaned log: no such file")
	src := func() (*eventlog.Log, error) { return nil, missing }

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := p.Analyze(context.Background(), src)
		require.ErrorIs(t, err, missing)

		var se *Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, attempt, se.FailureCount)
		assert.Equal(t, attempt >= p.Runner.AttemptLimit, se.Escalated)
	}

	s, err := ReadState(p.Runner.Dir(Performance))
	require.NoError(t, err)
	assert.Equal(t, Failed, s.Status)
	assert.Equal(t, 3, s.FailureCount)
	assert.Contains(t, s.LastError, "no such file")
}

func TestPipeline_StandaloneStageRequiresPriorStage(t *testing.T) {
	p := newTestPipeline(t, newFakeOracle(""))

	_, err := p.Analyze(context.Background(), CleanedLog(p.Runner.OutputDir))
	require.Error(t, err)
	assert.True(t, eventlog.IsConfigurationError(err))

	s, err := ReadState(p.Runner.Dir(Performance))
	require.NoError(t, err)
	assert.Equal(t, Failed, s.Status)
	assert.Equal(t, 1, s.FailureCount)
}

func TestPipeline_GateFailureStopsRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "bad.csv")
	body := "case:concept:name,concept:name,time:timestamp\n" +
		"c1,a,2024-03-01T08:00:00Z\nc1,b,not a time\nc2,a,2024-03-02T08:00:00Z\nc2,b,garbage\n"
	require.NoError(t, os.WriteFile(input, []byte(body), 0o644))

	p := newTestPipeline(t, newFakeOracle(""))
	p.Config.Input = input

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, eventlog.IsTimestampError(err))

	states, err := Status(p.Runner.OutputDir)
	require.NoError(t, err)
	assert.Equal(t, OK, states[0].Status)
	assert.Equal(t, Failed, states[1].Status)
	assert.Equal(t, Remediation(DataQuality), states[1].NextSteps)
}

func TestPipeline_NoOracle(t *testing.T) {
	p := newTestPipeline(t, nil)
	_, err := p.Run(context.Background())
	assert.True(t, eventlog.IsConfigurationError(err))
}

func TestPipeline_StandaloneGateFromNormalizedLog(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "dup.csv")
	body := "case:concept:name,concept:name,time:timestamp,customer_email\n" +
		"c1,a,2024-03-01T08:00:00Z,x@example.com\n" +
		"c1,b,2024-03-01T09:00:00Z,x@example.com\n"
	require.NoError(t, os.WriteFile(input, []byte(body), 0o644))

	p := newTestPipeline(t, newFakeOracle(""))
	p.Config.Input = input

	_, err := p.Ingest(context.Background())
	require.NoError(t, err)
	normalized, err := LoadNormalized(p.Runner.OutputDir, p.Config.Timestamps())
	require.NoError(t, err)

	_, _, recs, err := p.Gate(context.Background(), Value(normalized))
	require.NoError(t, err)
	assert.Contains(t, recs, quality.RecMaskedColumns)

	var onDisk map[string]any
	require.NoError(t, artifact.ReadJSON(filepath.Join(p.Runner.OutputDir, DataQuality, artifact.RecommendationsJSON), &onDisk))
	assert.Contains(t, onDisk, quality.RecMaskedColumns)
}

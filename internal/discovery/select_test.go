package discovery

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pmgate/internal/eventlog"
	"github.com/roach88/pmgate/internal/oracle"
	"github.com/roach88/pmgate/internal/testutil"
)

func autoRequest() Request {
	return Request{Strategy: Auto, Params: DefaultParams(), VariantNoiseThreshold: DefaultVariantNoiseThreshold}
}

func TestSelect_HighVariantRatioPicksHeuristic(t *testing.T) {
	// 10 cases, 9 distinct variants: variant_ratio 0.9.
	var traces [][]string
	for i := 0; i < 9; i++ {
		traces = append(traces, []string{"start", fmt.Sprintf("step%d", i), "end"})
	}
	traces = append(traces, traces[0])
	log := testutil.Log(testutil.Sequential(traces...)...)

	sel, err := Select(log, autoRequest())
	require.NoError(t, err)

	assert.Equal(t, Heuristic, sel.Strategy)
	assert.InDelta(t, 0.9, sel.Signals.VariantRatio, 1e-12)
	assert.GreaterOrEqual(t, sel.Params.FrequencyThreshold, 0.02)
	assert.Equal(t, []oracle.Miner{oracle.Heuristic}, sel.Miners())

	req := autoRequest()
	req.Params.FrequencyThreshold = 0.1
	sel, err = Select(log, req)
	require.NoError(t, err)
	assert.Equal(t, 0.1, sel.Params.FrequencyThreshold, "higher thresholds kept")
}

func TestSelect_SingleVariantPicksInductive(t *testing.T) {
	log := testutil.Log(testutil.Sequential(testutil.Repeat(25, "a", "b", "c")...)...)

	sel, err := Select(log, autoRequest())
	require.NoError(t, err)
	assert.Equal(t, Inductive, sel.Strategy)
	assert.Equal(t, 1, sel.Signals.VariantCount)
	assert.Equal(t, 0.0, sel.Params.FrequencyThreshold, "floor only applies to heuristic")
}

func TestSelect_MostlyRareVariantsPickHeuristic(t *testing.T) {
	traces := testutil.Repeat(197, "a", "b")
	traces = append(traces, []string{"x"}, []string{"y"}, []string{"z"})
	log := testutil.Log(testutil.Sequential(traces...)...)

	sel, err := Select(log, autoRequest())
	require.NoError(t, err)
	assert.InDelta(t, 0.02, sel.Signals.VariantRatio, 1e-12)
	assert.Equal(t, 3, sel.Signals.LowFreqVariants)
	assert.InDelta(t, 0.75, sel.Signals.LowFreqRatio, 1e-12)
	assert.Equal(t, Heuristic, sel.Strategy)
}

func TestSelect_EmptyLog(t *testing.T) {
	sel, err := Select(&eventlog.Log{}, autoRequest())
	require.NoError(t, err)
	assert.Equal(t, Inductive, sel.Strategy)
	assert.Zero(t, sel.Signals.VariantRatio)
}

func TestSelect_ExplicitStrategies(t *testing.T) {
	log := testutil.Log(testutil.Sequential([]string{"a"}, []string{"b"})...)
	for _, s := range []Strategy{Inductive, Heuristic, Both} {
		req := autoRequest()
		req.Strategy = s
		sel, err := Select(log, req)
		require.NoError(t, err)
		assert.Equal(t, s, sel.Strategy)
		assert.Equal(t, 0.0, sel.Params.FrequencyThreshold, "explicit selection leaves params alone")
	}

	req := autoRequest()
	req.Strategy = "alpha"
	_, err := Select(log, req)
	assert.True(t, eventlog.IsConfigurationError(err))
}

func TestSelect_Deterministic(t *testing.T) {
	events := testutil.Sequential([]string{"a", "b"}, []string{"b", "a"}, []string{"a", "b"})
	first, err := Select(testutil.Log(events...), autoRequest())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Select(testutil.Log(events...), autoRequest())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSelect_Golden(t *testing.T) {
	traces := testutil.Repeat(3, "a", "b")
	traces = append(traces, []string{"a", "c"})
	sel, err := Select(testutil.Log(testutil.Sequential(traces...)...), autoRequest())
	require.NoError(t, err)

	data, err := json.MarshalIndent(sel, "", "  ")
	require.NoError(t, err)
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "strategy", append(data, '\n'))
}

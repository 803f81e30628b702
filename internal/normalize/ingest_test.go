package normalize

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pmgate/internal/eventlog"
)

func memOpener(files map[string]string) Opener {
	return func(path string) (io.ReadCloser, error) {
		body, ok := files[path]
		if !ok {
			return nil, fmt.Errorf("no such file: %s", path)
		}
		return io.NopCloser(strings.NewReader(body)), nil
	}
}

func TestParseIngestConfig(t *testing.T) {
	cfg, err := ParseIngestConfig([]byte(`
sources:
  - path: erp.csv
    case: order
    activity: step
    timestamp: at
    prefix: erp_
merge:
  strategy: join
`))
	require.NoError(t, err)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "order", cfg.Sources[0].Case)
	assert.Equal(t, []string{eventlog.ColCase}, cfg.Merge.JoinKeys)
	assert.Equal(t, "outer", cfg.Merge.How)
}

func TestParseIngestConfig_JSON(t *testing.T) {
	cfg, err := ParseIngestConfig([]byte(`{"sources":[{"path":"a.csv"}]}`))
	require.NoError(t, err)
	assert.Equal(t, MergeConcat, cfg.Merge.Strategy)
}

func TestParseIngestConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no sources", `sources: []`},
		{"empty path", `sources: [{path: ""}]`},
		{"unknown field", `sources: [{path: a.csv, colour: red}]`},
		{"bad merge", "sources: [{path: a.csv}]\nmerge: {strategy: zip}"},
		{"bad how", "sources: [{path: a.csv}]\nmerge: {strategy: join, how: left}"},
		{"bad format", `sources: [{path: a.xlsx, format: excel}]`},
		{"not yaml", `sources: [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIngestConfig([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, eventlog.IsConfigurationError(err), "got %v", err)
		})
	}
}

func TestIngest_ConcatWithPrefixAndEventID(t *testing.T) {
	files := map[string]string{
		"erp.csv": "order,step,at,doc\n1,Create,2024-01-01T08:00:00Z,D1\n1,Ship,2024-01-02T08:00:00Z,D2\n",
		"crm.csv": "case:concept:name,concept:name,time:timestamp,agent\n1,Call,2024-01-01T09:00:00Z,ann\n2,Call,,bob\n",
	}
	cfg := &IngestConfig{
		Sources: []SourceConfig{
			{Path: "erp.csv", Name: "erp", Case: "order", Activity: "step", Timestamp: "at", Prefix: "erp_", EventIDColumns: []string{"erp_doc", eventlog.ColCase}},
			{Path: "crm.csv", ColumnMap: map[string]string{"agent": eventlog.ColResource}},
		},
		Merge: MergeConfig{Strategy: MergeConcat},
	}

	tbl, err := Ingest(cfg, memOpener(files))
	require.NoError(t, err)

	assert.Equal(t, 3, tbl.Len(), "row without timestamp dropped")
	assert.True(t, tbl.Has("erp_doc"))
	assert.True(t, tbl.Has(eventlog.ColResource))
	assert.Equal(t, "D1::1", tbl.Get(0, EventIDColumn).S)
	assert.Equal(t, "crm.csv", tbl.Get(2, SourceSystemColumn).S, "name defaults to base name")
	require.NotNil(t, tbl.Times[2])

	profile := BuildProfile(tbl)
	assert.Equal(t, []string{"crm.csv", "erp"}, profile.SourceSystems)
	assert.Equal(t, 3, profile.RowCount)
	assert.InDelta(t, 1.0/3.0, profile.MissingRates[EventIDColumn], 1e-9)
}

func TestIngest_JoinSuffixesCollisions(t *testing.T) {
	files := map[string]string{
		"a.csv": "case:concept:name,concept:name,time:timestamp,amount\n1,A,2024-01-01T00:00:00Z,10\n2,B,2024-01-02T00:00:00Z,20\n",
		"b.csv": "case:concept:name,amount,region\n1,11,north\n3,33,south\n",
	}
	base := IngestConfig{
		Sources: []SourceConfig{{Path: "a.csv", Name: "a"}, {Path: "b.csv", Name: "b"}},
	}

	outer := base
	outer.Merge = MergeConfig{Strategy: MergeJoin, JoinKeys: []string{eventlog.ColCase}, How: "outer"}
	tbl, err := Ingest(&outer, memOpener(files))
	require.NoError(t, err)
	assert.True(t, tbl.Has("amount_dup"))
	assert.True(t, tbl.Has("source_system_dup"))
	// Case 3 only exists on the right and has no activity, so it is dropped.
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "11", tbl.Get(0, "amount_dup").S)
	assert.False(t, tbl.Get(1, "region").Valid)

	inner := base
	inner.Merge = MergeConfig{Strategy: MergeJoin, JoinKeys: []string{eventlog.ColCase}, How: "inner"}
	tbl, err = Ingest(&inner, memOpener(files))
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, "north", tbl.Get(0, "region").S)
}

func TestIngest_CaseIDStrategy(t *testing.T) {
	files := map[string]string{
		"a.csv": "region,order,concept:name,time:timestamp\nEU,1,A,2024-01-01T00:00:00Z\n",
	}
	cfg := &IngestConfig{
		Sources:        []SourceConfig{{Path: "a.csv"}},
		Merge:          MergeConfig{Strategy: MergeConcat},
		CaseIDStrategy: &CaseIDStrategy{Type: "concat", Columns: []string{"region", "order"}, Delimiter: "-"},
	}
	tbl, err := Ingest(cfg, memOpener(files))
	require.NoError(t, err)
	assert.Equal(t, "EU-1", tbl.Get(0, eventlog.ColCase).S)

	cfg.CaseIDStrategy.Columns = []string{"nope"}
	_, err = Ingest(cfg, memOpener(files))
	assert.True(t, eventlog.IsConfigurationError(err))
}

func TestIngest_Errors(t *testing.T) {
	_, err := Ingest(&IngestConfig{}, memOpener(nil))
	assert.True(t, eventlog.IsConfigurationError(err))

	_, err = Ingest(&IngestConfig{Sources: []SourceConfig{{Path: "missing.csv"}}}, memOpener(nil))
	assert.Error(t, err)
}

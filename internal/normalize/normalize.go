package normalize

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/pmgate/internal/eventlog"
)

// ColumnMapping names the source columns holding each canonical field.
// Empty fields mean the source already uses the canonical name.
type ColumnMapping struct {
	Case      string `json:"case,omitempty" yaml:"case,omitempty"`
	Activity  string `json:"activity,omitempty" yaml:"activity,omitempty"`
	Timestamp string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Resource  string `json:"resource,omitempty" yaml:"resource,omitempty"`
}

func (m ColumnMapping) renames() map[string]string {
	out := make(map[string]string, 4)
	add := func(from, to string) {
		if from != "" && from != to {
			out[norm.NFC.String(from)] = to
		}
	}
	add(m.Case, eventlog.ColCase)
	add(m.Activity, eventlog.ColActivity)
	add(m.Timestamp, eventlog.ColTimestamp)
	add(m.Resource, eventlog.ColResource)
	return out
}

// Normalize renames mapped columns to canonical names, NFC-normalizes header
// names and text cells, and parses the timestamp column into t.Times.
//
// Mapped columns that do not exist are left alone; the quality gate reports
// the resulting missing canonical columns. The input table is modified in place
// and returned.
func Normalize(t *eventlog.Table, m ColumnMapping, ts TimestampOptions) *eventlog.Table {
	for i, c := range t.Columns {
		t.Columns[i] = norm.NFC.String(c)
	}
	for _, r := range t.Rows {
		for j, v := range r {
			if v.Valid && !norm.NFC.IsNormalString(v.S) {
				r[j] = eventlog.Str(norm.NFC.String(v.S))
			}
		}
	}

	t.Rename(m.renames())

	if t.Has(eventlog.ColTimestamp) {
		t.Times = ParseTimestamps(t.Column(eventlog.ColTimestamp), ts)
	} else {
		t.Times = make([]*time.Time, t.Len())
	}
	return t
}

// LoadCSV reads a single delimited source from path and normalizes it.
func LoadCSV(path string, csvOpts CSVOptions, m ColumnMapping, ts TimestampOptions) (*eventlog.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	t, err := ReadCSV(f, csvOpts)
	if err != nil {
		return nil, err
	}
	return Normalize(t, m, ts), nil
}

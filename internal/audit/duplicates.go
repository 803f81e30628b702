package audit

import (
	"github.com/roach88/pmgate/internal/eventlog"
)

// DefaultDedupeKeys is the key subset used when none is configured.
var DefaultDedupeKeys = []string{eventlog.ColCase, eventlog.ColActivity, eventlog.ColTimestamp}

// DupResult reports duplicate rates.
type DupResult struct {
	// RowRate is the fraction of rows that exactly duplicate an earlier row.
	RowRate float64
	// KeyRate is the same fraction computed over Keys only.
	KeyRate float64
	// Keys are the key columns actually present in the table.
	Keys []string
}

// Duplicates computes full-row and key-subset duplicate rates.
//
// Keys absent from the table are ignored; when none remain, KeyRate equals
// RowRate.
func Duplicates(t *eventlog.Table, keys []string) DupResult {
	res := DupResult{Keys: []string{}}
	for _, k := range keys {
		if t.Has(k) {
			res.Keys = append(res.Keys, k)
		}
	}
	res.RowRate = duplicateRate(t, nil)
	if len(res.Keys) == 0 {
		res.KeyRate = res.RowRate
		return res
	}
	res.KeyRate = duplicateRate(t, res.Keys)
	return res
}

func duplicateRate(t *eventlog.Table, cols []string) float64 {
	if t.Len() == 0 {
		return 0
	}
	seen := make(map[string]struct{}, t.Len())
	dups := 0
	for i := range t.Rows {
		k := t.RowKey(i, cols)
		if _, ok := seen[k]; ok {
			dups++
			continue
		}
		seen[k] = struct{}{}
	}
	return float64(dups) / float64(t.Len())
}

// DropDuplicateRows removes exact duplicate rows, keeping first occurrences.
// It returns the filtered table and the number of rows removed.
func DropDuplicateRows(t *eventlog.Table) (*eventlog.Table, int) {
	seen := make(map[string]struct{}, t.Len())
	out := t.Filter(func(i int) bool {
		k := t.RowKey(i, nil)
		if _, ok := seen[k]; ok {
			return false
		}
		seen[k] = struct{}{}
		return true
	})
	return out, t.Len() - out.Len()
}

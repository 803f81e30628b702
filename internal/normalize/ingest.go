package normalize

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/roach88/pmgate/internal/eventlog"
)

// SourceSystemColumn records which source a row came from.
const SourceSystemColumn = "source_system"

// EventIDColumn holds the synthetic event id.
const EventIDColumn = "event_id"

// Opener opens a source path for reading.
type Opener func(path string) (io.ReadCloser, error)

// FileOpener opens sources from the local filesystem.
func FileOpener(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Profile summarizes an ingested table.
type Profile struct {
	RowCount      int                `json:"row_count"`
	ColumnCount   int                `json:"column_count"`
	Columns       []string           `json:"columns"`
	MissingRates  map[string]float64 `json:"missing_rates"`
	SourceSystems []string           `json:"source_systems"`
}

// Ingest reads, normalizes and merges every configured source.
//
// Rows lacking a case id, activity or parsed timestamp are dropped after
// merging. Paths are resolved by the opener as given.
func Ingest(cfg *IngestConfig, open Opener) (*eventlog.Table, error) {
	if len(cfg.Sources) == 0 {
		return nil, eventlog.NewConfigurationError("no sources defined in ingest config")
	}
	if open == nil {
		open = FileOpener
	}

	tables := make([]*eventlog.Table, 0, len(cfg.Sources))
	for i, src := range cfg.Sources {
		t, err := ingestSource(src, open)
		if err != nil {
			return nil, fmt.Errorf("source %d (%s): %w", i, src.Path, err)
		}
		slog.Debug("source ingested", "path", src.Path, "rows", t.Len(), "columns", len(t.Columns))
		tables = append(tables, t)
	}

	var merged *eventlog.Table
	switch cfg.Merge.Strategy {
	case MergeJoin:
		merged = tables[0]
		for _, t := range tables[1:] {
			merged = joinTables(merged, t, cfg.Merge.JoinKeys, cfg.Merge.How == "inner")
		}
	case MergeConcat, "":
		merged = concatTables(tables)
	default:
		return nil, eventlog.NewConfigurationError("unsupported merge strategy %q", cfg.Merge.Strategy)
	}

	if s := cfg.CaseIDStrategy; s != nil {
		if err := applyCaseIDStrategy(merged, *s); err != nil {
			return nil, err
		}
	}

	restoreTimes(merged)
	ci, ai := merged.Index(eventlog.ColCase), merged.Index(eventlog.ColActivity)
	out := merged.Filter(func(i int) bool {
		r := merged.Rows[i]
		return ci >= 0 && ai >= 0 && r[ci].Valid && r[ai].Valid && merged.Times[i] != nil
	})
	if dropped := merged.Len() - out.Len(); dropped > 0 {
		slog.Warn("dropped rows without case, activity or timestamp", "rows", dropped, "of", merged.Len())
	}
	return out, nil
}

func ingestSource(src SourceConfig, open Opener) (*eventlog.Table, error) {
	if src.Format != "" && src.Format != "csv" {
		return nil, eventlog.NewConfigurationError("unsupported format for multi-source ingest: %s", src.Format)
	}
	delim, err := DelimiterRune(src.Delimiter)
	if err != nil {
		return nil, err
	}
	rc, err := open(src.Path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer rc.Close()

	t, err := ReadCSV(rc, CSVOptions{Delimiter: delim})
	if err != nil {
		return nil, err
	}
	Normalize(t, src.Mapping(), src.TimestampOptions())
	t.SyncTimestampColumn()

	t.Rename(src.ColumnMap)
	if src.Prefix != "" {
		renames := make(map[string]string)
		for _, c := range t.Columns {
			if !eventlog.IsCanonical(c) {
				renames[c] = src.Prefix + c
			}
		}
		t.Rename(renames)
	}

	name := src.Name
	if name == "" {
		name = filepath.Base(src.Path)
	}
	sys := make([]eventlog.Value, t.Len())
	for i := range sys {
		sys[i] = eventlog.Str(name)
	}
	t.SetColumn(SourceSystemColumn, sys)

	delimiter := src.EventIDDelimiter
	if delimiter == "" {
		delimiter = DefaultEventIDDelimiter
	}
	joinColumns(t, EventIDColumn, src.EventIDColumns, delimiter)
	return t, nil
}

// joinColumns writes dest as the delimiter-joined text of the existing
// columns among cols. Null cells join as empty strings. It reports whether any
// column existed.
func joinColumns(t *eventlog.Table, dest string, cols []string, delimiter string) bool {
	var existing []int
	for _, c := range cols {
		if idx := t.Index(c); idx >= 0 {
			existing = append(existing, idx)
		}
	}
	if len(existing) == 0 {
		return false
	}
	values := make([]eventlog.Value, t.Len())
	parts := make([]string, len(existing))
	for i, r := range t.Rows {
		for j, idx := range existing {
			parts[j] = r[idx].String()
		}
		values[i] = eventlog.Str(strings.Join(parts, delimiter))
	}
	t.SetColumn(dest, values)
	return true
}

func applyCaseIDStrategy(t *eventlog.Table, s CaseIDStrategy) error {
	if s.Type != "concat" {
		return eventlog.NewConfigurationError("unsupported case_id_strategy type %q", s.Type)
	}
	delimiter := s.Delimiter
	if delimiter == "" {
		delimiter = DefaultEventIDDelimiter
	}
	if !joinColumns(t, eventlog.ColCase, s.Columns, delimiter) {
		return eventlog.NewConfigurationError("case_id_strategy columns not found in merged data")
	}
	return nil
}

// concatTables stacks tables; the column set is the union in first-seen order.
func concatTables(tables []*eventlog.Table) *eventlog.Table {
	var cols []string
	seen := make(map[string]bool)
	for _, t := range tables {
		for _, c := range t.Columns {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	out := eventlog.NewTable(cols...)
	for _, t := range tables {
		idx := make([]int, len(cols))
		for j, c := range cols {
			idx[j] = t.Index(c)
		}
		for _, r := range t.Rows {
			row := make([]eventlog.Value, len(cols))
			for j, src := range idx {
				if src >= 0 {
					row[j] = r[src]
				}
			}
			out.Append(row...)
		}
	}
	return out
}

// joinTables joins right onto left on keys. Non-key columns of right that
// collide with left get the suffix "_dup". An outer join keeps unmatched rows
// of both sides; inner keeps matches only.
func joinTables(left, right *eventlog.Table, keys []string, inner bool) *eventlog.Table {
	var present []string
	for _, k := range keys {
		if left.Has(k) && right.Has(k) {
			present = append(present, k)
		}
	}
	isKey := make(map[string]bool, len(present))
	for _, k := range present {
		isKey[k] = true
	}

	cols := append([]string(nil), left.Columns...)
	rightCols := make([]string, 0, len(right.Columns))
	for _, c := range right.Columns {
		if isKey[c] {
			continue
		}
		name := c
		if left.Has(c) {
			name = c + "_dup"
		}
		rightCols = append(rightCols, c)
		cols = append(cols, name)
	}
	out := eventlog.NewTable(cols...)

	rightByKey := make(map[string][]int)
	var rightOrder []string
	for i := range right.Rows {
		k := right.RowKey(i, present)
		if _, ok := rightByKey[k]; !ok {
			rightOrder = append(rightOrder, k)
		}
		rightByKey[k] = append(rightByKey[k], i)
	}

	emit := func(li, ri int) {
		row := make([]eventlog.Value, len(cols))
		if li >= 0 {
			copy(row, left.Rows[li])
		} else {
			for j, c := range left.Columns {
				if isKey[c] {
					row[j] = right.Get(ri, c)
				}
			}
		}
		if ri >= 0 {
			for j, c := range rightCols {
				row[len(left.Columns)+j] = right.Get(ri, c)
			}
		}
		out.Append(row...)
	}

	matched := make(map[string]bool)
	for li := range left.Rows {
		k := left.RowKey(li, present)
		rows, ok := rightByKey[k]
		if !ok {
			if !inner {
				emit(li, -1)
			}
			continue
		}
		matched[k] = true
		for _, ri := range rows {
			emit(li, ri)
		}
	}
	if !inner {
		for _, k := range rightOrder {
			if matched[k] {
				continue
			}
			for _, ri := range rightByKey[k] {
				emit(-1, ri)
			}
		}
	}
	return out
}

// restoreTimes re-derives Times from the synced RFC 3339 timestamp column.
func restoreTimes(t *eventlog.Table) {
	t.Times = make([]*time.Time, t.Len())
	idx := t.Index(eventlog.ColTimestamp)
	if idx < 0 {
		return
	}
	for i, r := range t.Rows {
		if !r[idx].Valid {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, r[idx].S)
		if err == nil {
			t.Times[i] = &ts
		}
	}
}

// BuildProfile summarizes t.
func BuildProfile(t *eventlog.Table) Profile {
	p := Profile{
		RowCount:      t.Len(),
		ColumnCount:   len(t.Columns),
		Columns:       append([]string{}, t.Columns...),
		MissingRates:  make(map[string]float64, len(t.Columns)),
		SourceSystems: []string{},
	}
	for j, c := range t.Columns {
		missing := 0
		for i, r := range t.Rows {
			if !r[j].Valid || (c == eventlog.ColTimestamp && t.Times != nil && t.Times[i] == nil) {
				missing++
			}
		}
		p.MissingRates[c] = rate(missing, t.Len())
	}
	if t.Has(SourceSystemColumn) {
		seen := make(map[string]bool)
		for _, v := range t.Column(SourceSystemColumn) {
			if v.Valid && !seen[v.S] {
				seen[v.S] = true
				p.SourceSystems = append(p.SourceSystems, v.S)
			}
		}
		sort.Strings(p.SourceSystems)
	}
	return p
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

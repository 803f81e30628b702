package eventlog

import (
	"fmt"
	"strings"
	"time"
)

// Canonical column names.
const (
	ColCase      = "case:concept:name"
	ColActivity  = "concept:name"
	ColTimestamp = "time:timestamp"
	ColResource  = "org:resource"
)

// RequiredColumns lists the columns every event table must carry, in check order.
var RequiredColumns = []string{ColCase, ColActivity, ColTimestamp}

// IsCanonical reports whether col is one of the canonical event columns.
func IsCanonical(col string) bool {
	switch col {
	case ColCase, ColActivity, ColTimestamp, ColResource:
		return true
	}
	return false
}

// Value is a nullable string cell.
type Value struct {
	S     string
	Valid bool
}

// Str returns a valid Value holding s.
func Str(s string) Value {
	return Value{S: s, Valid: true}
}

// Null is the null cell.
var Null = Value{}

// String returns the cell text, or "" when null.
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return v.S
}

// Row is a slice of cells aligned with Table.Columns.
type Row []Value

// Table is an ordered, column-named event table.
//
// Times is either nil (timestamps not parsed yet) or aligned with Rows; a nil
// entry is a null or unparsable timestamp.
type Table struct {
	Columns []string
	Rows    []Row
	Times   []*time.Time
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of col, or -1 when absent.
func (t *Table) Index(col string) int {
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// Has reports whether col exists.
func (t *Table) Has(col string) bool {
	return t.Index(col) >= 0
}

// Parsed reports whether the timestamp column has been parsed.
func (t *Table) Parsed() bool {
	return t.Times != nil
}

// Append adds a row. Missing trailing cells are padded with nulls.
func (t *Table) Append(cells ...Value) {
	row := make(Row, len(t.Columns))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
	if t.Times != nil {
		t.Times = append(t.Times, nil)
	}
}

// AppendStrings adds a row of non-null cells; empty strings become null.
func (t *Table) AppendStrings(cells ...string) {
	row := make([]Value, len(cells))
	for i, c := range cells {
		if c != "" {
			row[i] = Str(c)
		}
	}
	t.Append(row...)
}

// Get returns the cell at (row, col); a missing column yields Null.
func (t *Table) Get(row int, col string) Value {
	idx := t.Index(col)
	if idx < 0 {
		return Null
	}
	return t.Rows[row][idx]
}

// Set writes the cell at (row, col). The column must exist.
func (t *Table) Set(row int, col string, v Value) {
	idx := t.Index(col)
	if idx < 0 {
		panic(fmt.Sprintf("eventlog: unknown column %q", col))
	}
	t.Rows[row][idx] = v
}

// Column returns a copy of all cells of col, or nil when col is absent.
func (t *Table) Column(col string) []Value {
	idx := t.Index(col)
	if idx < 0 {
		return nil
	}
	out := make([]Value, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out
}

// SetColumn adds col (or replaces it when present) with the given values.
func (t *Table) SetColumn(col string, values []Value) {
	if len(values) != len(t.Rows) {
		panic(fmt.Sprintf("eventlog: column %q has %d values for %d rows", col, len(values), len(t.Rows)))
	}
	idx := t.Index(col)
	if idx < 0 {
		t.Columns = append(t.Columns, col)
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], values[i])
		}
		return
	}
	for i := range t.Rows {
		t.Rows[i][idx] = values[i]
	}
}

// Rename renames columns per mapping (old -> new). Unknown keys are ignored.
// When a new name collides with an existing column, the existing column is
// dropped first, matching last-writer-wins rename semantics.
func (t *Table) Rename(mapping map[string]string) {
	for oldName, newName := range mapping {
		if oldName == newName || oldName == "" || newName == "" {
			continue
		}
		if t.Index(oldName) < 0 {
			continue
		}
		if t.Index(newName) >= 0 {
			t.Drop(newName)
		}
		t.Columns[t.Index(oldName)] = newName
	}
}

// Drop removes col if present.
func (t *Table) Drop(col string) {
	idx := t.Index(col)
	if idx < 0 {
		return
	}
	t.Columns = append(t.Columns[:idx:idx], t.Columns[idx+1:]...)
	for i, r := range t.Rows {
		t.Rows[i] = append(r[:idx:idx], r[idx+1:]...)
	}
}

// Filter returns a new table holding only the rows for which keep is true.
// Cells are shared with the receiver; Times stays aligned.
func (t *Table) Filter(keep func(i int) bool) *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	if t.Times != nil {
		out.Times = []*time.Time{}
	}
	for i, r := range t.Rows {
		if !keep(i) {
			continue
		}
		out.Rows = append(out.Rows, r)
		if t.Times != nil {
			out.Times = append(out.Times, t.Times[i])
		}
	}
	return out
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append(Row(nil), r...)
	}
	if t.Times != nil {
		out.Times = make([]*time.Time, len(t.Times))
		for i, ts := range t.Times {
			if ts != nil {
				v := *ts
				out.Times[i] = &v
			}
		}
	}
	return out
}

// Timestamp returns the parsed timestamp of row i, or nil.
func (t *Table) Timestamp(i int) *time.Time {
	if t.Times == nil {
		return nil
	}
	return t.Times[i]
}

// CellKey renders a cell for equality keys. Nulls never collide with the
// empty string. The timestamp column uses its parsed instant when available so
// that differently formatted but equal instants compare equal.
func (t *Table) CellKey(row int, col string) string {
	if col == ColTimestamp && t.Times != nil {
		if ts := t.Times[row]; ts != nil {
			return "t:" + ts.UTC().Format(time.RFC3339Nano)
		}
		return "\x00"
	}
	v := t.Get(row, col)
	if !v.Valid {
		return "\x00"
	}
	return "s:" + v.S
}

// RowKey builds an equality key over cols (all columns when cols is empty).
func (t *Table) RowKey(row int, cols []string) string {
	if len(cols) == 0 {
		cols = t.Columns
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = t.CellKey(row, c)
	}
	return strings.Join(parts, "\x1f")
}

// FormatTimestamp renders a parsed timestamp for tabular output.
func FormatTimestamp(ts time.Time) string {
	return ts.Format(time.RFC3339Nano)
}

// SyncTimestampColumn rewrites the timestamp column text from Times so the
// table can be written back out. Null times become null cells.
func (t *Table) SyncTimestampColumn() {
	if t.Times == nil || !t.Has(ColTimestamp) {
		return
	}
	idx := t.Index(ColTimestamp)
	for i, ts := range t.Times {
		if ts == nil {
			t.Rows[i][idx] = Null
			continue
		}
		t.Rows[i][idx] = Str(FormatTimestamp(*ts))
	}
}

package audit

import (
	"sort"
	"time"

	"github.com/roach88/pmgate/internal/eventlog"
)

// OrderResult reports per-case timestamp monotonicity.
type OrderResult struct {
	// ViolationRate is UnsortedCount / CheckedCases, or 0 when no case has
	// fully known timestamps.
	ViolationRate float64
	// UnsortedCount is the number of checked cases with a decreasing pair.
	UnsortedCount int
	// Unsorted lists the unsorted case ids in ascending order.
	Unsorted []string
	// CheckedCases counts cases whose timestamps are all known.
	CheckedCases int
	// TotalCases counts all distinct case ids.
	TotalCases int
}

// CaseOrder checks that each case's timestamps are non-decreasing in table
// row order. Cases with any null timestamp are indeterminate and excluded.
func CaseOrder(t *eventlog.Table) OrderResult {
	ci := t.Index(eventlog.ColCase)
	if ci < 0 || t.Times == nil {
		return OrderResult{}
	}

	type caseState struct {
		last     *time.Time
		unknown  bool
		violated bool
	}
	states := make(map[string]*caseState)
	var order []string
	for i, r := range t.Rows {
		if !r[ci].Valid {
			continue
		}
		id := r[ci].S
		st, ok := states[id]
		if !ok {
			st = &caseState{}
			states[id] = st
			order = append(order, id)
		}
		ts := t.Times[i]
		if ts == nil {
			st.unknown = true
			continue
		}
		if st.last != nil && ts.Before(*st.last) {
			st.violated = true
		}
		st.last = ts
	}

	res := OrderResult{TotalCases: len(order), Unsorted: []string{}}
	for _, id := range order {
		st := states[id]
		if st.unknown {
			continue
		}
		res.CheckedCases++
		if st.violated {
			res.Unsorted = append(res.Unsorted, id)
		}
	}
	sort.Strings(res.Unsorted)
	res.UnsortedCount = len(res.Unsorted)
	if res.CheckedCases > 0 {
		res.ViolationRate = float64(res.UnsortedCount) / float64(res.CheckedCases)
	}
	return res
}

// SortByCaseTimestamp returns a copy of t stably sorted by case id, then
// timestamp. Rows with null timestamps sort last within their case; rows with
// a null case id sort last overall.
func SortByCaseTimestamp(t *eventlog.Table) *eventlog.Table {
	out := t.Clone()
	ci := out.Index(eventlog.ColCase)
	if ci < 0 || out.Times == nil {
		return out
	}
	idx := make([]int, out.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := out.Rows[idx[a]], out.Rows[idx[b]]
		ca, cb := ra[ci], rb[ci]
		if ca.Valid != cb.Valid {
			return ca.Valid
		}
		if ca.S != cb.S {
			return ca.S < cb.S
		}
		ta, tb := out.Times[idx[a]], out.Times[idx[b]]
		switch {
		case ta == nil:
			return false
		case tb == nil:
			return true
		}
		return ta.Before(*tb)
	})

	rows := make([]eventlog.Row, len(idx))
	times := make([]*time.Time, len(idx))
	for i, j := range idx {
		rows[i] = out.Rows[j]
		times[i] = out.Times[j]
	}
	out.Rows, out.Times = rows, times
	return out
}

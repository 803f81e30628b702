package testutil

import (
	"fmt"
	"time"

	"github.com/roach88/pmgate/internal/eventlog"
)

// Ev is a compact event description for fixture tables.
//
// Offset is the event time relative to the fixture base instant. A zero-value
// Raw with Missing=false renders the timestamp from Offset.
type Ev struct {
	Case     string
	Activity string
	Offset   time.Duration
	Resource string

	// Raw overrides the rendered timestamp text when non-empty.
	Raw string
	// Missing leaves the timestamp cell null.
	Missing bool
}

// Base is the anchor instant for fixture offsets.
var Base = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

// Hours is shorthand for a duration of h hours.
func Hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

// RawTable builds an unparsed event table with canonical columns.
// A resource column is included when any event names a resource.
func RawTable(events ...Ev) *eventlog.Table {
	withResource := false
	for _, e := range events {
		if e.Resource != "" {
			withResource = true
			break
		}
	}
	cols := []string{eventlog.ColCase, eventlog.ColActivity, eventlog.ColTimestamp}
	if withResource {
		cols = append(cols, eventlog.ColResource)
	}
	t := eventlog.NewTable(cols...)
	for _, e := range events {
		ts := e.Raw
		if ts == "" && !e.Missing {
			ts = Base.Add(e.Offset).Format(time.RFC3339)
		}
		cells := []string{e.Case, e.Activity, ts}
		if withResource {
			cells = append(cells, e.Resource)
		}
		t.AppendStrings(cells...)
	}
	return t
}

// ParsedTable builds a table whose Times are already populated from offsets.
// Events with Missing or Raw set get a nil time.
func ParsedTable(events ...Ev) *eventlog.Table {
	t := RawTable(events...)
	t.Times = make([]*time.Time, len(events))
	for i, e := range events {
		if e.Missing || e.Raw != "" {
			continue
		}
		ts := Base.Add(e.Offset)
		t.Times[i] = &ts
	}
	return t
}

// Log builds an event log from fixture events.
func Log(events ...Ev) *eventlog.Log {
	return eventlog.FromTable(ParsedTable(events...))
}

// Sequential builds one case per trace where activities are one hour apart.
// Case ids are c1, c2, ... in trace order.
func Sequential(traces ...[]string) []Ev {
	var out []Ev
	for ci, trace := range traces {
		for ai, act := range trace {
			out = append(out, Ev{
				Case:     fmt.Sprintf("c%d", ci+1),
				Activity: act,
				Offset:   time.Duration(ci)*24*time.Hour + time.Duration(ai)*time.Hour,
			})
		}
	}
	return out
}

// Repeat returns n copies of trace.
func Repeat(n int, trace ...string) [][]string {
	out := make([][]string, n)
	for i := range out {
		out[i] = trace
	}
	return out
}

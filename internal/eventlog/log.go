package eventlog

import (
	"sort"
	"strings"
	"time"
)

// Event is a single cleaned event.
type Event struct {
	CaseID    string
	Activity  string
	Timestamp time.Time
	Resource  string
	Attrs     map[string]string
}

// Case is the ordered event sequence sharing one case id.
//
// Attrs carries case-level attributes; conformance reads the case id from
// "concept:name" or "case:concept:name" there.
type Case struct {
	ID     string
	Events []Event
	Attrs  map[string]string
}

// Trace returns the ordered activity names of the case.
func (c Case) Trace() []string {
	out := make([]string, len(c.Events))
	for i, e := range c.Events {
		out[i] = e.Activity
	}
	return out
}

// Log is a collection of cases.
type Log struct {
	Cases []Case
}

// EventCount returns the total number of events.
func (l *Log) EventCount() int {
	n := 0
	for _, c := range l.Cases {
		n += len(c.Events)
	}
	return n
}

// FromTable builds a Log from a cleaned table.
//
// Cases appear in first-appearance order; events within a case are stably
// sorted by timestamp. Rows lacking a case id, activity or parsed timestamp are
// skipped. Non-canonical columns become event attributes.
func FromTable(t *Table) *Log {
	ci, ai, ri := t.Index(ColCase), t.Index(ColActivity), t.Index(ColResource)
	if ci < 0 || ai < 0 || t.Times == nil {
		return &Log{}
	}

	byCase := make(map[string]int)
	log := &Log{}
	for i, r := range t.Rows {
		cv, av, ts := r[ci], r[ai], t.Times[i]
		if !cv.Valid || !av.Valid || ts == nil {
			continue
		}
		ev := Event{CaseID: cv.S, Activity: av.S, Timestamp: *ts}
		if ri >= 0 && r[ri].Valid {
			ev.Resource = r[ri].S
		}
		for j, col := range t.Columns {
			if IsCanonical(col) || !r[j].Valid {
				continue
			}
			if ev.Attrs == nil {
				ev.Attrs = make(map[string]string)
			}
			ev.Attrs[col] = r[j].S
		}

		idx, ok := byCase[cv.S]
		if !ok {
			idx = len(log.Cases)
			byCase[cv.S] = idx
			log.Cases = append(log.Cases, Case{
				ID:    cv.S,
				Attrs: map[string]string{ColActivity: cv.S},
			})
		}
		log.Cases[idx].Events = append(log.Cases[idx].Events, ev)
	}

	for i := range log.Cases {
		evs := log.Cases[i].Events
		sort.SliceStable(evs, func(a, b int) bool {
			return evs[a].Timestamp.Before(evs[b].Timestamp)
		})
	}
	return log
}

// ActivityFrequencies counts events per activity.
func (l *Log) ActivityFrequencies() map[string]int {
	out := make(map[string]int)
	for _, c := range l.Cases {
		for _, e := range c.Events {
			out[e.Activity]++
		}
	}
	return out
}

// Variant is a distinct activity sequence and the number of cases producing it.
type Variant struct {
	Activities []string
	Count      int
}

// Key returns a stable string identity for the variant.
func (v Variant) Key() string {
	return strings.Join(v.Activities, "\x1f")
}

// Variants collapses cases into distinct activity sequences.
//
// Result order is descending by count, then by key, so the view is
// deterministic regardless of case order.
func (l *Log) Variants() []Variant {
	idx := make(map[string]int)
	var out []Variant
	for _, c := range l.Cases {
		trace := c.Trace()
		key := strings.Join(trace, "\x1f")
		if i, ok := idx[key]; ok {
			out[i].Count++
			continue
		}
		idx[key] = len(out)
		out = append(out, Variant{Activities: trace, Count: 1})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Count != out[b].Count {
			return out[a].Count > out[b].Count
		}
		return out[a].Key() < out[b].Key()
	})
	return out
}

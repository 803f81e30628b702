// Package eventlog provides the canonical event-table and event-log types
// shared by every pipeline stage.
//
// This package contains data types and pure helpers only. All other internal
// packages import eventlog; eventlog imports nothing internal.
//
// Two representations exist:
//   - Table: the tabular, possibly dirty view produced by ingest. Cells are
//     nullable strings; the timestamp column is parsed into Table.Times.
//   - Log: the case-oriented view built from a cleaned Table. Every Event has a
//     non-null case id, activity and timestamp.
//
// Canonical column names follow the XES conventions used by process-mining
// tooling (case:concept:name, concept:name, time:timestamp, org:resource).
package eventlog

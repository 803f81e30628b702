// Package stage runs pipeline stages under a persisted state machine.
//
// Each stage owns a directory under the output root holding its artifacts, a
// manifest, and stage_state.json. The state file is the only record consulted
// when resuming or diagnosing a run:
//
//	not_run → running → ok | failed
//
// A failure increments failure_count and attaches the stage's remediation
// hints. Counts are never reset by the runner; deleting the state file is the
// only reset. Once failure_count reaches the attempt limit the hints are
// written to the operator writer as an escalation.
package stage

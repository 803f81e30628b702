// Package oracle defines the capabilities the pipeline consumes from
// external process-mining tooling: model discovery, conformance replay and
// model quality evaluation.
//
// The pipeline never computes nets or alignments itself. It asks a
// Discoverer for a model per miner and a Replayer for per-case results, and
// only owns the decisions made around those calls.
//
// Every call returns a Result instead of panicking or swallowing errors:
// callers decide whether a failure is skipped (one miner, one model) or
// fatal. Variants are chosen once at startup with New:
//
//   - exec: runs an external command speaking JSON on stdin/stdout
//   - dir: reads precomputed models and replay results from a directory
//
// DiscoverFunc, ReplayFunc and EvaluateFunc adapt plain functions, mainly
// for tests.
package oracle

// Package discovery chooses a process-discovery strategy from log complexity
// signals and runs the chosen miners through an oracle.
//
// Selection is pure: identical logs and requests always yield identical
// selections. Automatic selection prefers the heuristic miner for noisy logs,
// where noisy means many distinct variants relative to cases, or mostly rare
// variants. Otherwise it prefers the inductive miner.
//
// Discovery is best-effort per miner. A failed miner is logged and recorded
// in the Outcome; it never prevents the other miner from running.
package discovery

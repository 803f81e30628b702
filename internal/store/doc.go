// Package store provides the SQLite-backed attempt ledger.
//
// Every stage attempt is appended as one row: run id, stage, attempt
// sequence, final status, failure count, error text and remediation hints.
// The ledger is an audit trail only. Resume decisions are made from the
// stage state files, never from this database.
//
// # Ordering
//
// All reads are ordered by the autoincrement row id, which is the append
// order. Attempt sequence numbers are assigned per (run_id, stage) inside the
// inserting transaction.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store

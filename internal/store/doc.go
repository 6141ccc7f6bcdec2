// Package store records digest traces in SQLite.
//
// It is a diagnostic sink for the CLI and the conformance harness: runs,
// listener firings and listener failures are written as they happen, and
// read back by `dirtycheck trace`. Watched data is never stored, only its
// canonical rendering at the moment a listener fired.
//
// # Tables
//
//   - runs: one row per digest, keyed by run ID
//   - firings: one row per listener call, keyed by (run_id, seq)
//   - listener_errors: failed listeners and getters
//
// Recording a run ID that already exists replaces the earlier run and all of
// its rows, so re-running a scenario against the same database is safe.
//
// All read queries order by the logical seq column so output is identical
// across executions.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Cascade deletes when a run is replaced
package store

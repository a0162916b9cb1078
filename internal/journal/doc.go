// Package journal provides a SQLite-backed call journal.
//
// A stub repository configured with a journal run tees every recorded
// call into it, so call histories can be inspected after the test
// process has exited (see the callcheck journal command).
//
// # Layout
//
//   - runs: one row per journaled session, in creation order
//   - calls: one row per recorded invocation, keyed by (run_id, seq)
//
// seq is the invocation's logical timestamp. All reads order by it, never
// by wall time. Appends are idempotent: re-appending a call with the same
// (run_id, seq) is silently ignored.
//
// Arguments are stored twice: a msgpack blob holding the encodable values
// and their printed form, so entries stay readable when a value (a func,
// a channel, a double) has no portable encoding.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package journal

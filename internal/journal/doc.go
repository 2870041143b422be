// Package journal provides an optional SQLite audit log of artifact moves.
//
// The journal is append-only:
//   - Cycles: one row per harvest or restore invocation
//   - Moves: one row per attempted move, including the failed one
//
// All ordering uses the seq column, never timestamps, so two journals of
// the same cycle compare equal row for row.
//
// The journal is never read back by Restore. The ledger in the staging
// directory stays the single source of truth; the journal exists so an
// operator can reconstruct what happened after a partial failure.
//
// # Database Configuration
//
//   - WAL mode
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package journal

// Package store provides SQLite-backed storage for loaded observations.
//
// Each parsed payload becomes one row per record, keyed by
// (dataset, fingerprint, record). Writing a table replaces whatever an
// earlier load stored for the same fingerprint, so reloading after a
// re-download never leaves stale records behind.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Query results are ordered by (request, record) so listings and exports
// are stable across runs.
package store

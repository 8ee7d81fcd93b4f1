// Package history provides a SQLite-backed journal of proof lifecycle
// transitions.
//
// Every anchor, upgrade and verify that changes a record appends one
// event. The journal is an audit trail only: the registry file stays the
// single source of truth, and a journal that cannot be written never fails
// an operation.
//
// # Ordering
//
// Events are ordered by seq (INTEGER PRIMARY KEY), never by timestamp, so
// two events recorded within the same clock tick still list in the order
// they happened.
//
// # Database Configuration
//
//   - WAL mode
//   - synchronous=NORMAL
//   - busy_timeout=5000
//
// Event IDs are UUIDv7, which sort by creation time.
package history

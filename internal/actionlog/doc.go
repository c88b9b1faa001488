// Package actionlog provides the durable, ordered record of mutations
// queued while the device was offline.
//
// The log is SQLite-backed, one database file per device, with every
// collection's pending actions in a single pending_actions table keyed by
// collection. Keeping collections in one file lets a temp-ID remap reach
// cross-collection payload references in one transaction.
//
// Steady state holds only uncommitted work: MarkCommitted removes the row
// once the remote store acknowledges the write, and removing an absent ID
// is a no-op so retried drains stay idempotent.
//
// # Ordering
//
// Action IDs are UUIDv7, so per-entity causal order is simply
// ORDER BY created_at ASC, id ASC - the ID breaks ties within the same
// millisecond and the synchronizer never reorders a group.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
//   - single connection: SQLite supports one writer at a time
//
// Writes are additionally serialized behind a process-level mutex:
// Append, MarkCommitted, and Remap must not interleave or a remap could
// miss a row mid-drain.
package actionlog

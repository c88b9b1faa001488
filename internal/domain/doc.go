// Package domain defines the data model shared by every layer of the sync
// engine: entities (orders, tables), pending actions, the error taxonomy,
// and ID generation.
//
// The central type is PendingAction - the unit stored in the action log
// while the device is offline. Its payload is a tagged union keyed by
// ActionKind: exactly one payload variant is populated per action, each
// with a statically-typed shape. Untyped field bags are not allowed
// anywhere in the persisted model.
//
// ORDERING:
// Actions for the same entity must replay against the remote store in the
// order they were created. Action IDs are UUIDv7, which embed a millisecond
// timestamp in the most significant bits, so lexicographic ID order is
// creation order. CreatedAt is retained for display and for tie-breaking
// within the same millisecond.
//
// Canonical JSON serialization (canonical.go) is used for every persisted
// payload so that log dumps and golden traces are byte-stable across runs.
package domain

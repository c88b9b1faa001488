// Package testutil provides deterministic test doubles for the sync
// engine: a manual clock, sequential ID generation, a scripted
// connectivity source, and an in-memory fake of the remote document
// store with controllable failures.
package testutil

package domain

import (
	"strings"

	"github.com/google/uuid"
)

// TempIDPrefix marks client-generated placeholder entity IDs. A temp ID
// stands in for an entity that has not been created on the remote store
// yet; it is remapped to the server-assigned ID once the Create commits.
const TempIDPrefix = "temp_"

// IDGenerator produces action IDs and temporary entity IDs.
// Implemented by UUIDv7Generator (production) and testutil.SeqIDGenerator.
type IDGenerator interface {
	// NewActionID returns a unique, time-sortable action ID.
	NewActionID() string

	// NewTempID returns a placeholder entity ID carrying TempIDPrefix.
	NewTempID() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a millisecond timestamp in the most significant bits, so
// IDs sort lexicographically by creation time. No separate sort key is
// needed: per-entity causal order falls out of ordering by ID.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewActionID creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) NewActionID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewTempID creates a placeholder entity ID, e.g.
// "temp_0190cafe-1234-7abc-8def-0123456789ab".
func (g UUIDv7Generator) NewTempID() string {
	return TempIDPrefix + uuid.Must(uuid.NewV7()).String()
}

// IsTempID reports whether id is a client-generated placeholder.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

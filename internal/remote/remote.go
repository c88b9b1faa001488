// Package remote defines the contract the engine requires from the hosted
// document store. The engine never assumes a concrete backend; production
// wires a client SDK behind Store, tests wire testutil.FakeRemote.
package remote

import (
	"context"

	"github.com/tableside/syncengine/internal/domain"
)

// Snapshot is one push-delivered unit of server truth for an entity.
// Entity is nil when the entity was deleted remotely.
type Snapshot struct {
	Collection domain.Collection
	EntityID   string
	Entity     domain.Entity
}

// Store is the remote document store.
//
// Required semantics:
//   - Create assigns and returns the server-side entity ID. The entity's
//     own ID field (usually a temp ID) is ignored by the server.
//   - Write applies one non-Create action with per-document atomicity.
//     Updates and transitions are field-level patches: last write wins per
//     mutated field, matching the hosted store's merge behavior.
//   - WriteBatch applies independent non-Create actions atomically: all
//     documents commit or none do.
//   - Subscribe delivers snapshots for every remote change in the
//     collection, including echoes of this client's own writes. The stop
//     function ends delivery and closes the channel.
//
// All methods surface transport failures as-is; callers classify them as
// RemoteUnavailable.
type Store interface {
	Create(ctx context.Context, collection domain.Collection, e domain.Entity) (serverID string, err error)
	Write(ctx context.Context, a domain.PendingAction) error
	WriteBatch(ctx context.Context, actions []domain.PendingAction) error
	Subscribe(ctx context.Context, collection domain.Collection) (<-chan Snapshot, func(), error)
}

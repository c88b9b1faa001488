package domain

import "time"

// Collection names a logical entity collection. Each collection owns an
// independent action log and entity cache; ordering is only guaranteed
// within a collection's individual entities.
type Collection string

const (
	// CollectionOrders holds Order entities.
	CollectionOrders Collection = "orders"

	// CollectionTables holds Table entities.
	CollectionTables Collection = "tables"
)

// Entity is implemented by every domain object the engine manages.
//
// Implementations must be value-semantics friendly: Clone returns a deep
// copy so the cache can hand out snapshots without aliasing its internal
// state.
type Entity interface {
	// ID returns the entity identifier. May be a temp ID (TempIDPrefix)
	// for entities created offline and not yet committed.
	ID() string

	// Clone returns a deep copy.
	Clone() Entity
}

// StatusChange is one entry in an order's immutable status history.
// History entries are only ever appended, never rewritten, including
// during offline replay.
type StatusChange struct {
	Status  OrderStatus `json:"status"`
	ActorID string      `json:"actor_id"`
	At      time.Time   `json:"at"`
	Note    string      `json:"note,omitempty"`
}

// Apply folds a single pending action onto a base entity and returns the
// resulting optimistic view. base is nil for Create actions. The returned
// entity never aliases base.
//
// Apply assumes the action passed dispatcher validation when it was
// queued; a stale base that no longer satisfies the action's precondition
// does not fail the fold (server truth wins once the action commits).
func Apply(base Entity, a PendingAction) (Entity, error) {
	switch a.Collection {
	case CollectionOrders:
		return applyOrder(base, a)
	case CollectionTables:
		return applyTable(base, a)
	default:
		return nil, &Error{
			Code:       ErrCodeNotFound,
			Message:    "unknown collection",
			Collection: string(a.Collection),
			EntityID:   a.EntityID,
		}
	}
}

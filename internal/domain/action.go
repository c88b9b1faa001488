package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionKind classifies a pending action.
type ActionKind string

const (
	// ActionCreate creates a new entity under a temp ID.
	ActionCreate ActionKind = "create"

	// ActionUpdate applies a partial patch to an existing entity.
	ActionUpdate ActionKind = "update"

	// ActionDelete removes an entity.
	ActionDelete ActionKind = "delete"

	// ActionTransition performs an entity-specific state machine move
	// (reserve/occupy/release/merge/split for tables, status advance for
	// orders).
	ActionTransition ActionKind = "transition"
)

// PendingAction is the unit stored in the action log: one locally-applied
// mutation awaiting replay against the remote store.
//
// ID is the log deduplication key, never the entity's identity. EntityID
// may be a temp ID for offline creates; it is rewritten by RemapEntityID
// once the Create commits. CreatedAt orders actions within the same
// entity; the UUIDv7 ID carries the same ordering and breaks ties.
type PendingAction struct {
	ID         string     `json:"id"`
	Collection Collection `json:"collection"`
	EntityID   string     `json:"entity_id"`
	Kind       ActionKind `json:"kind"`
	Payload    Payload    `json:"-"`
	ActorID    string     `json:"actor_id"`
	CreatedAt  time.Time  `json:"created_at"`

	Committed   bool       `json:"committed"`
	CommittedAt *time.Time `json:"committed_at,omitempty"`

	// AtRisk marks an action whose durable Append failed. It lives only in
	// memory: the optimistic patch applies for the session but the action
	// is lost on restart.
	AtRisk bool `json:"-"`
}

// Payload is the tagged union of action payloads. Exactly one concrete
// variant exists per payload tag, so decoding recovers a fully typed
// value instead of an untyped field bag.
type Payload interface {
	// Kind returns the action kind this payload belongs to.
	Kind() ActionKind

	// Tag returns the stable serialization tag.
	Tag() string
}

// CreateOrderPayload carries the full object for an order Create.
type CreateOrderPayload struct {
	Order Order `json:"order"`
}

// CreateTablePayload carries the full object for a table Create.
type CreateTablePayload struct {
	Table Table `json:"table"`
}

// OrderPatchPayload is a partial order update. Nil fields are untouched.
type OrderPatchPayload struct {
	SetTableID *string    `json:"set_table_id,omitempty"`
	AddItem    *OrderItem `json:"add_item,omitempty"`
	RemoveItem *string    `json:"remove_item,omitempty"`
}

// TablePatchPayload is a partial table update. Nil fields are untouched.
type TablePatchPayload struct {
	SetName     *string `json:"set_name,omitempty"`
	SetCapacity *int    `json:"set_capacity,omitempty"`
}

// OrderStatusPayload advances the order state machine and appends a
// status history entry.
type OrderStatusPayload struct {
	Status OrderStatus `json:"status"`
	Note   string      `json:"note,omitempty"`
}

// TableReservePayload reserves a table until the given expiry.
type TableReservePayload struct {
	ReservedBy string    `json:"reserved_by"`
	Until      time.Time `json:"until"`
}

// TableOccupyPayload seats a party and binds the active order.
type TableOccupyPayload struct {
	OrderID string `json:"order_id"`
}

// TableReleasePayload frees a table, clearing occupancy, reservation,
// and merge linkage.
type TableReleasePayload struct{}

// TableMaintenancePayload toggles maintenance mode.
type TableMaintenancePayload struct {
	On bool `json:"on"`
}

// TableMergePayload links tables. On the primary's action SecondaryIDs is
// set; on each secondary's action IntoPrimary back-references the primary.
type TableMergePayload struct {
	SecondaryIDs []string `json:"secondary_ids,omitempty"`
	IntoPrimary  string   `json:"into_primary,omitempty"`
}

// TableSplitPayload undoes a merge, forcing the table available.
type TableSplitPayload struct{}

// DeletePayload carries no data; the action's EntityID names the target.
type DeletePayload struct{}

func (*CreateOrderPayload) Kind() ActionKind      { return ActionCreate }
func (*CreateTablePayload) Kind() ActionKind      { return ActionCreate }
func (*OrderPatchPayload) Kind() ActionKind       { return ActionUpdate }
func (*TablePatchPayload) Kind() ActionKind       { return ActionUpdate }
func (*OrderStatusPayload) Kind() ActionKind      { return ActionTransition }
func (*TableReservePayload) Kind() ActionKind     { return ActionTransition }
func (*TableOccupyPayload) Kind() ActionKind      { return ActionTransition }
func (*TableReleasePayload) Kind() ActionKind     { return ActionTransition }
func (*TableMaintenancePayload) Kind() ActionKind { return ActionTransition }
func (*TableMergePayload) Kind() ActionKind       { return ActionTransition }
func (*TableSplitPayload) Kind() ActionKind       { return ActionTransition }
func (*DeletePayload) Kind() ActionKind           { return ActionDelete }

func (*CreateOrderPayload) Tag() string      { return "order.create" }
func (*CreateTablePayload) Tag() string      { return "table.create" }
func (*OrderPatchPayload) Tag() string       { return "order.patch" }
func (*TablePatchPayload) Tag() string       { return "table.patch" }
func (*OrderStatusPayload) Tag() string      { return "order.status" }
func (*TableReservePayload) Tag() string     { return "table.reserve" }
func (*TableOccupyPayload) Tag() string      { return "table.occupy" }
func (*TableReleasePayload) Tag() string     { return "table.release" }
func (*TableMaintenancePayload) Tag() string { return "table.maintenance" }
func (*TableMergePayload) Tag() string       { return "table.merge" }
func (*TableSplitPayload) Tag() string       { return "table.split" }
func (*DeletePayload) Tag() string           { return "delete" }

// payloadEnvelope is the persisted form: a tag plus the variant's JSON.
type payloadEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodePayload serializes a payload into its tagged envelope using
// canonical JSON, so persisted bytes are stable across runs.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("encode payload: nil payload")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload %s: %w", p.Tag(), err)
	}
	return MarshalCanonical(map[string]any{
		"type": p.Tag(),
		"data": json.RawMessage(data),
	})
}

// DecodePayload deserializes a tagged envelope produced by EncodePayload.
// Unknown tags are an error: the log schema version gates compatibility.
func DecodePayload(raw []byte) (Payload, error) {
	var env payloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}

	p := newPayload(env.Type)
	if p == nil {
		return nil, fmt.Errorf("decode payload: unknown tag %q", env.Type)
	}
	if err := json.Unmarshal(env.Data, p); err != nil {
		return nil, fmt.Errorf("decode payload %s: %w", env.Type, err)
	}
	return p, nil
}

// newPayload returns a zero value of the variant for a tag, or nil.
func newPayload(tag string) Payload {
	switch tag {
	case "order.create":
		return &CreateOrderPayload{}
	case "table.create":
		return &CreateTablePayload{}
	case "order.patch":
		return &OrderPatchPayload{}
	case "table.patch":
		return &TablePatchPayload{}
	case "order.status":
		return &OrderStatusPayload{}
	case "table.reserve":
		return &TableReservePayload{}
	case "table.occupy":
		return &TableOccupyPayload{}
	case "table.release":
		return &TableReleasePayload{}
	case "table.maintenance":
		return &TableMaintenancePayload{}
	case "table.merge":
		return &TableMergePayload{}
	case "table.split":
		return &TableSplitPayload{}
	case "delete":
		return &DeletePayload{}
	default:
		return nil
	}
}

// EntityFromCreate extracts the full entity carried by a Create payload.
// Returns false for non-Create payloads.
func EntityFromCreate(p Payload) (Entity, bool) {
	switch v := p.(type) {
	case *CreateOrderPayload:
		o := v.Order
		return &o, true
	case *CreateTablePayload:
		t := v.Table
		return &t, true
	default:
		return nil, false
	}
}

// TempRefs returns the foreign temp IDs referenced inside a payload -
// identities of OTHER entities that have not been created remotely yet.
// The action's own EntityID is not included.
func TempRefs(p Payload) []string {
	var refs []string
	add := func(id string) {
		if IsTempID(id) {
			refs = append(refs, id)
		}
	}

	switch v := p.(type) {
	case *CreateOrderPayload:
		add(v.Order.TableID)
	case *OrderPatchPayload:
		if v.SetTableID != nil {
			add(*v.SetTableID)
		}
	case *TableOccupyPayload:
		add(v.OrderID)
	case *TableMergePayload:
		for _, id := range v.SecondaryIDs {
			add(id)
		}
		add(v.IntoPrimary)
	}
	return refs
}

// RemapRefs returns a copy of p with every reference to oldID rewritten
// to newID. Payloads without references are returned unchanged.
func RemapRefs(p Payload, oldID, newID string) Payload {
	switch v := p.(type) {
	case *CreateOrderPayload:
		if v.Order.TableID == oldID {
			c := *v
			c.Order.TableID = newID
			return &c
		}
	case *OrderPatchPayload:
		if v.SetTableID != nil && *v.SetTableID == oldID {
			c := *v
			id := newID
			c.SetTableID = &id
			return &c
		}
	case *TableOccupyPayload:
		if v.OrderID == oldID {
			return &TableOccupyPayload{OrderID: newID}
		}
	case *TableMergePayload:
		changed := false
		c := TableMergePayload{
			SecondaryIDs: append([]string(nil), v.SecondaryIDs...),
			IntoPrimary:  v.IntoPrimary,
		}
		for i, id := range c.SecondaryIDs {
			if id == oldID {
				c.SecondaryIDs[i] = newID
				changed = true
			}
		}
		if c.IntoPrimary == oldID {
			c.IntoPrimary = newID
			changed = true
		}
		if changed {
			return &c
		}
	}
	return p
}

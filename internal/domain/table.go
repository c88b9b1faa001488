package domain

import (
	"fmt"
	"time"
)

// TableStatus is the table state machine position.
type TableStatus string

const (
	TableAvailable   TableStatus = "available"
	TableReserved    TableStatus = "reserved"
	TableOccupied    TableStatus = "occupied"
	TableMaintenance TableStatus = "maintenance"
)

// tableTransitions maps each status to the statuses reachable from it.
// available → reserved → occupied → available is the normal cycle;
// maintenance is reachable from available only. reserved → available
// covers reservation expiry, and occupied → occupied covers merge
// linkage updates on an already-occupied secondary.
var tableTransitions = map[TableStatus][]TableStatus{
	TableAvailable:   {TableReserved, TableOccupied, TableMaintenance},
	TableReserved:    {TableOccupied, TableAvailable},
	TableOccupied:    {TableAvailable, TableOccupied},
	TableMaintenance: {TableAvailable},
}

// ValidTableStatus reports whether s is a known table status.
func ValidTableStatus(s TableStatus) bool {
	_, ok := tableTransitions[s]
	return ok
}

// CanTransitionTable reports whether a table may move from → to.
func CanTransitionTable(from, to TableStatus) bool {
	for _, next := range tableTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Table is a restaurant table.
//
// MergedWith (on the primary) and MergedInto (on each secondary) carry
// merge linkage; both are cleared by release and by split. UpdatedAt is
// the server timestamp, a display/debug ordering hint only.
type Table struct {
	TableID        string      `json:"id"`
	Name           string      `json:"name"`
	Capacity       int         `json:"capacity"`
	Status         TableStatus `json:"status"`
	ReservedBy     string      `json:"reserved_by,omitempty"`
	ReservedUntil  *time.Time  `json:"reserved_until,omitempty"`
	CurrentOrderID string      `json:"current_order_id,omitempty"`
	MergedWith     []string    `json:"merged_with,omitempty"`
	MergedInto     string      `json:"merged_into,omitempty"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ID implements Entity.
func (t *Table) ID() string { return t.TableID }

// Clone implements Entity with a deep copy.
func (t *Table) Clone() Entity {
	c := *t
	c.MergedWith = append([]string(nil), t.MergedWith...)
	if t.ReservedUntil != nil {
		until := *t.ReservedUntil
		c.ReservedUntil = &until
	}
	return &c
}

// clearOccupancy resets every occupancy, reservation, and merge field.
func (t *Table) clearOccupancy() {
	t.Status = TableAvailable
	t.ReservedBy = ""
	t.ReservedUntil = nil
	t.CurrentOrderID = ""
	t.MergedWith = nil
	t.MergedInto = ""
}

// applyTable folds one pending action onto a table snapshot.
func applyTable(base Entity, a PendingAction) (Entity, error) {
	switch p := a.Payload.(type) {
	case *CreateTablePayload:
		table := p.Table
		t := table.Clone().(*Table)
		t.TableID = a.EntityID
		if t.Status == "" {
			t.Status = TableAvailable
		}
		return t, nil

	case *TablePatchPayload:
		t, err := tableBase(base, a)
		if err != nil {
			return nil, err
		}
		if p.SetName != nil {
			t.Name = *p.SetName
		}
		if p.SetCapacity != nil {
			t.Capacity = *p.SetCapacity
		}
		return t, nil

	case *TableReservePayload:
		t, err := tableBase(base, a)
		if err != nil {
			return nil, err
		}
		until := p.Until
		t.Status = TableReserved
		t.ReservedBy = p.ReservedBy
		t.ReservedUntil = &until
		return t, nil

	case *TableOccupyPayload:
		t, err := tableBase(base, a)
		if err != nil {
			return nil, err
		}
		t.Status = TableOccupied
		t.CurrentOrderID = p.OrderID
		t.ReservedBy = ""
		t.ReservedUntil = nil
		return t, nil

	case *TableReleasePayload:
		t, err := tableBase(base, a)
		if err != nil {
			return nil, err
		}
		t.clearOccupancy()
		return t, nil

	case *TableMaintenancePayload:
		t, err := tableBase(base, a)
		if err != nil {
			return nil, err
		}
		if p.On {
			t.Status = TableMaintenance
		} else {
			t.Status = TableAvailable
		}
		return t, nil

	case *TableMergePayload:
		t, err := tableBase(base, a)
		if err != nil {
			return nil, err
		}
		// The action targets the primary; each secondary receives its own
		// queued action with a MergedInto back-reference.
		if p.IntoPrimary == "" {
			t.Status = TableOccupied
			t.MergedWith = append([]string(nil), p.SecondaryIDs...)
		} else {
			t.Status = TableOccupied
			t.MergedInto = p.IntoPrimary
		}
		return t, nil

	case *TableSplitPayload:
		t, err := tableBase(base, a)
		if err != nil {
			return nil, err
		}
		t.clearOccupancy()
		return t, nil

	case *DeletePayload:
		return nil, nil

	default:
		return nil, fmt.Errorf("apply table action %s: unexpected payload %T", a.ID, a.Payload)
	}
}

// tableBase clones the base entity for patching.
func tableBase(base Entity, a PendingAction) (*Table, error) {
	if base == nil {
		return nil, NewNotFound(string(CollectionTables), a.EntityID)
	}
	t, ok := base.(*Table)
	if !ok {
		return nil, fmt.Errorf("apply table action %s: base is %T, want *Table", a.ID, base)
	}
	return t.Clone().(*Table), nil
}

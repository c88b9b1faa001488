package dispatch

import (
	"context"
	"fmt"

	"github.com/tableside/syncengine/internal/domain"
)

// CreateTable adds a table to the floor plan. Returns the entity ID:
// server-assigned when online, a temp ID when offline.
func (d *Dispatcher) CreateTable(ctx context.Context, name string, capacity int) (string, error) {
	actorID, err := d.actor()
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", domain.NewInvalidTransition(string(domain.CollectionTables), "", "table name required")
	}
	if capacity <= 0 {
		return "", domain.NewInvalidTransition(string(domain.CollectionTables), "",
			"table capacity must be positive")
	}

	entityID := d.ids.NewTempID()
	table := domain.Table{
		TableID:  entityID,
		Name:     name,
		Capacity: capacity,
		Status:   domain.TableAvailable,
	}

	a := d.newAction(domain.CollectionTables, entityID, actorID, &domain.CreateTablePayload{Table: table})
	return d.submitCreate(ctx, d.tables, a, &table)
}

// UpdateTable patches a table's name and/or capacity. Nil fields are
// untouched.
func (d *Dispatcher) UpdateTable(ctx context.Context, tableID string, name *string, capacity *int) error {
	actorID, err := d.actor()
	if err != nil {
		return err
	}
	if name == nil && capacity == nil {
		return nil
	}
	if capacity != nil && *capacity <= 0 {
		return domain.NewInvalidTransition(string(domain.CollectionTables), tableID,
			"table capacity must be positive")
	}
	if _, err := d.getTable(tableID); err != nil {
		return err
	}

	a := d.newAction(domain.CollectionTables, tableID, actorID,
		&domain.TablePatchPayload{SetName: name, SetCapacity: capacity})
	return d.submit(ctx, d.tables, a)
}

// ReserveTable holds a table for a named party. The hold expires after
// the configured TTL (two hours by default); ExpireReservations releases
// lapsed holds.
func (d *Dispatcher) ReserveTable(ctx context.Context, tableID, reservedBy string) error {
	actorID, err := d.actor()
	if err != nil {
		return err
	}

	table, err := d.getTable(tableID)
	if err != nil {
		return err
	}
	if !domain.CanTransitionTable(table.Status, domain.TableReserved) {
		return domain.NewInvalidTransition(string(domain.CollectionTables), tableID,
			fmt.Sprintf("cannot reserve a %s table", table.Status))
	}

	a := d.newAction(domain.CollectionTables, tableID, actorID, &domain.TableReservePayload{
		ReservedBy: reservedBy,
		Until:      d.now().UTC().Add(d.reservationTTL),
	})
	return d.submit(ctx, d.tables, a)
}

// OccupyTable seats a party and binds the table to its active order.
// orderID may be a temp ID for an order created offline; the synchronizer
// substitutes the real ID once that order's Create commits.
func (d *Dispatcher) OccupyTable(ctx context.Context, tableID, orderID string) error {
	actorID, err := d.actor()
	if err != nil {
		return err
	}

	table, err := d.getTable(tableID)
	if err != nil {
		return err
	}
	if table.Status != domain.TableAvailable && table.Status != domain.TableReserved {
		return domain.NewInvalidTransition(string(domain.CollectionTables), tableID,
			fmt.Sprintf("cannot occupy a %s table", table.Status))
	}

	a := d.newAction(domain.CollectionTables, tableID, actorID, &domain.TableOccupyPayload{OrderID: orderID})
	return d.submit(ctx, d.tables, a)
}

// ReleaseTable frees an occupied table, clearing occupancy, reservation,
// and merge linkage. Also the compensating move for a reservation that is
// no longer wanted.
func (d *Dispatcher) ReleaseTable(ctx context.Context, tableID string) error {
	actorID, err := d.actor()
	if err != nil {
		return err
	}

	table, err := d.getTable(tableID)
	if err != nil {
		return err
	}
	if table.Status != domain.TableOccupied && table.Status != domain.TableReserved {
		return domain.NewInvalidTransition(string(domain.CollectionTables), tableID,
			fmt.Sprintf("cannot release a %s table", table.Status))
	}

	a := d.newAction(domain.CollectionTables, tableID, actorID, &domain.TableReleasePayload{})
	return d.submit(ctx, d.tables, a)
}

// SetMaintenance toggles maintenance mode. A table enters maintenance
// from available only, and leaving maintenance returns it to available.
func (d *Dispatcher) SetMaintenance(ctx context.Context, tableID string, on bool) error {
	actorID, err := d.actor()
	if err != nil {
		return err
	}

	table, err := d.getTable(tableID)
	if err != nil {
		return err
	}
	if on && table.Status != domain.TableAvailable {
		return domain.NewInvalidTransition(string(domain.CollectionTables), tableID,
			fmt.Sprintf("cannot start maintenance on a %s table", table.Status))
	}
	if !on && table.Status != domain.TableMaintenance {
		return domain.NewInvalidTransition(string(domain.CollectionTables), tableID,
			fmt.Sprintf("cannot end maintenance on a %s table", table.Status))
	}

	a := d.newAction(domain.CollectionTables, tableID, actorID, &domain.TableMaintenancePayload{On: on})
	return d.submit(ctx, d.tables, a)
}

// MergeTables joins one or more secondary tables onto a primary for a
// large party. The primary records the merged set; each secondary is
// marked occupied with a back-reference to the primary. Requires at least
// two distinct tables in total.
func (d *Dispatcher) MergeTables(ctx context.Context, primaryID string, secondaryIDs []string) error {
	actorID, err := d.actor()
	if err != nil {
		return err
	}
	if len(secondaryIDs) < 1 {
		return domain.NewInvalidTransition(string(domain.CollectionTables), primaryID,
			"merge requires at least two tables")
	}

	if _, err := d.getTable(primaryID); err != nil {
		return err
	}
	for _, id := range secondaryIDs {
		if id == primaryID {
			return domain.NewInvalidTransition(string(domain.CollectionTables), primaryID,
				"cannot merge a table with itself")
		}
		sec, err := d.getTable(id)
		if err != nil {
			return err
		}
		if sec.Status == domain.TableMaintenance {
			return domain.NewInvalidTransition(string(domain.CollectionTables), id,
				"cannot merge a table under maintenance")
		}
		if sec.MergedInto != "" {
			return domain.NewInvalidTransition(string(domain.CollectionTables), id,
				"table is already merged")
		}
	}

	// One action per affected table, primary first so the linkage is
	// established before the back-references replay.
	primary := d.newAction(domain.CollectionTables, primaryID, actorID,
		&domain.TableMergePayload{SecondaryIDs: append([]string(nil), secondaryIDs...)})
	if err := d.submit(ctx, d.tables, primary); err != nil {
		return err
	}
	for _, id := range secondaryIDs {
		sec := d.newAction(domain.CollectionTables, id, actorID,
			&domain.TableMergePayload{IntoPrimary: primaryID})
		if err := d.submit(ctx, d.tables, sec); err != nil {
			return err
		}
	}
	return nil
}

// SplitTable undoes a merge: the primary and every linked secondary reset
// their merge linkage and are forced available.
func (d *Dispatcher) SplitTable(ctx context.Context, primaryID string) error {
	actorID, err := d.actor()
	if err != nil {
		return err
	}

	table, err := d.getTable(primaryID)
	if err != nil {
		return err
	}
	if len(table.MergedWith) == 0 {
		return domain.NewInvalidTransition(string(domain.CollectionTables), primaryID,
			"table is not merged")
	}

	secondaries := append([]string(nil), table.MergedWith...)
	primary := d.newAction(domain.CollectionTables, primaryID, actorID, &domain.TableSplitPayload{})
	if err := d.submit(ctx, d.tables, primary); err != nil {
		return err
	}
	for _, id := range secondaries {
		sec := d.newAction(domain.CollectionTables, id, actorID, &domain.TableSplitPayload{})
		if err := d.submit(ctx, d.tables, sec); err != nil {
			return err
		}
	}
	return nil
}

// ExpireReservations releases every table whose reservation lapsed before
// now. Each release is an ordinary compensating action so offline sweeps
// queue like any other mutation. Returns the released table IDs.
func (d *Dispatcher) ExpireReservations(ctx context.Context) ([]string, error) {
	actorID, err := d.actor()
	if err != nil {
		return nil, err
	}

	now := d.now().UTC()
	var released []string
	for _, e := range d.tables.List() {
		t := e.(*domain.Table)
		if t.Status != domain.TableReserved || t.ReservedUntil == nil || t.ReservedUntil.After(now) {
			continue
		}
		a := d.newAction(domain.CollectionTables, t.TableID, actorID, &domain.TableReleasePayload{})
		if err := d.submit(ctx, d.tables, a); err != nil {
			return released, err
		}
		released = append(released, t.TableID)
	}
	return released, nil
}

// DeleteTable removes a table from the floor plan. Only available tables
// may be deleted.
func (d *Dispatcher) DeleteTable(ctx context.Context, tableID string) error {
	actorID, err := d.actor()
	if err != nil {
		return err
	}

	table, err := d.getTable(tableID)
	if err != nil {
		return err
	}
	if table.Status != domain.TableAvailable {
		return domain.NewInvalidTransition(string(domain.CollectionTables), tableID,
			fmt.Sprintf("cannot delete a %s table", table.Status))
	}

	a := d.newAction(domain.CollectionTables, tableID, actorID, &domain.DeletePayload{})
	return d.submit(ctx, d.tables, a)
}

// getTable reads the optimistic view of a table.
func (d *Dispatcher) getTable(tableID string) (*domain.Table, error) {
	e, ok := d.tables.Get(tableID)
	if !ok {
		return nil, domain.NewNotFound(string(domain.CollectionTables), tableID)
	}
	return e.(*domain.Table), nil
}

package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tableside/syncengine/internal/domain"
)

func TestCreateTable_Validation(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.disp.CreateTable(ctx, "", 4)
	assert.True(t, domain.IsInvalidTransition(err))

	_, err = f.disp.CreateTable(ctx, "T1", 0)
	assert.True(t, domain.IsInvalidTransition(err))

	id, err := f.disp.CreateTable(ctx, "T1", 4)
	require.NoError(t, err)
	assert.Equal(t, "srv-0001", id)
}

func TestReserveTable(t *testing.T) {
	f := newFixture(t, false, WithReservationTTL(30*time.Minute))
	f.seedTable(t, domain.Table{TableID: "t-1", Status: domain.TableAvailable})

	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, f.disp.ReserveTable(context.Background(), "t-1", "Smith party"))

	got, _ := f.tables.Get("t-1")
	tab := got.(*domain.Table)
	assert.Equal(t, domain.TableReserved, tab.Status)
	assert.Equal(t, "Smith party", tab.ReservedBy)
	require.NotNil(t, tab.ReservedUntil)
	// The manual clock starts at a known instant; the hold is TTL long.
	assert.WithinDuration(t, start.Add(30*time.Minute), *tab.ReservedUntil, 10*time.Millisecond)
}

func TestReserveTable_RejectsOccupied(t *testing.T) {
	f := newFixture(t, false)
	f.seedTable(t, domain.Table{TableID: "t-1", Status: domain.TableOccupied, CurrentOrderID: "o-1"})

	err := f.disp.ReserveTable(context.Background(), "t-1", "Jones")
	require.Error(t, err)
	assert.True(t, domain.IsInvalidTransition(err))
	assert.Zero(t, f.pendingCount(t, domain.CollectionTables))
}

func TestOccupyTable(t *testing.T) {
	f := newFixture(t, false)
	f.seedTable(t, domain.Table{TableID: "t-1", Status: domain.TableReserved, ReservedBy: "Smith party"})
	ctx := context.Background()

	require.NoError(t, f.disp.OccupyTable(ctx, "t-1", "o-1"))

	got, _ := f.tables.Get("t-1")
	tab := got.(*domain.Table)
	assert.Equal(t, domain.TableOccupied, tab.Status)
	assert.Equal(t, "o-1", tab.CurrentOrderID)
	assert.Empty(t, tab.ReservedBy)

	err := f.disp.OccupyTable(ctx, "t-1", "o-2")
	assert.True(t, domain.IsInvalidTransition(err), "already occupied")
}

func TestReleaseTable(t *testing.T) {
	f := newFixture(t, false)
	f.seedTable(t, domain.Table{TableID: "t-1", Status: domain.TableOccupied, CurrentOrderID: "o-1"})
	f.seedTable(t, domain.Table{TableID: "t-2", Status: domain.TableAvailable})
	ctx := context.Background()

	require.NoError(t, f.disp.ReleaseTable(ctx, "t-1"))
	got, _ := f.tables.Get("t-1")
	assert.Equal(t, domain.TableAvailable, got.(*domain.Table).Status)

	err := f.disp.ReleaseTable(ctx, "t-2")
	assert.True(t, domain.IsInvalidTransition(err), "nothing to release")
}

func TestSetMaintenance(t *testing.T) {
	f := newFixture(t, false)
	f.seedTable(t, domain.Table{TableID: "t-1", Status: domain.TableAvailable})
	f.seedTable(t, domain.Table{TableID: "t-2", Status: domain.TableOccupied, CurrentOrderID: "o-1"})
	ctx := context.Background()

	require.NoError(t, f.disp.SetMaintenance(ctx, "t-1", true))
	got, _ := f.tables.Get("t-1")
	assert.Equal(t, domain.TableMaintenance, got.(*domain.Table).Status)

	err := f.disp.SetMaintenance(ctx, "t-2", true)
	assert.True(t, domain.IsInvalidTransition(err), "maintenance only from available")

	err = f.disp.ReserveTable(ctx, "t-1", "Jones")
	assert.True(t, domain.IsInvalidTransition(err), "maintenance tables take no reservations")

	require.NoError(t, f.disp.SetMaintenance(ctx, "t-1", false))
	got, _ = f.tables.Get("t-1")
	assert.Equal(t, domain.TableAvailable, got.(*domain.Table).Status)
}

func TestMergeTables(t *testing.T) {
	f := newFixture(t, false)
	f.seedTable(t, domain.Table{TableID: "t-1", Status: domain.TableAvailable})
	f.seedTable(t, domain.Table{TableID: "t-2", Status: domain.TableAvailable})
	f.seedTable(t, domain.Table{TableID: "t-3", Status: domain.TableAvailable})
	ctx := context.Background()

	require.NoError(t, f.disp.MergeTables(ctx, "t-1", []string{"t-2", "t-3"}))

	got, _ := f.tables.Get("t-1")
	primary := got.(*domain.Table)
	assert.Equal(t, domain.TableOccupied, primary.Status)
	assert.Equal(t, []string{"t-2", "t-3"}, primary.MergedWith)

	got, _ = f.tables.Get("t-2")
	assert.Equal(t, "t-1", got.(*domain.Table).MergedInto)

	// One action per affected table.
	assert.Equal(t, 3, f.pendingCount(t, domain.CollectionTables))
}

func TestMergeTables_Validation(t *testing.T) {
	f := newFixture(t, false)
	f.seedTable(t, domain.Table{TableID: "t-1", Status: domain.TableAvailable})
	f.seedTable(t, domain.Table{TableID: "t-2", Status: domain.TableMaintenance})
	f.seedTable(t, domain.Table{TableID: "t-3", Status: domain.TableOccupied, MergedInto: "t-9"})
	ctx := context.Background()

	err := f.disp.MergeTables(ctx, "t-1", nil)
	assert.True(t, domain.IsInvalidTransition(err), "merge needs at least two tables")

	err = f.disp.MergeTables(ctx, "t-1", []string{"t-1"})
	assert.True(t, domain.IsInvalidTransition(err), "self merge")

	err = f.disp.MergeTables(ctx, "t-1", []string{"t-2"})
	assert.True(t, domain.IsInvalidTransition(err), "maintenance table")

	err = f.disp.MergeTables(ctx, "t-1", []string{"t-3"})
	assert.True(t, domain.IsInvalidTransition(err), "already merged elsewhere")
}

func TestSplitTable(t *testing.T) {
	f := newFixture(t, false)
	f.seedTable(t, domain.Table{TableID: "t-1", Status: domain.TableAvailable})
	f.seedTable(t, domain.Table{TableID: "t-2", Status: domain.TableAvailable})
	ctx := context.Background()

	require.NoError(t, f.disp.MergeTables(ctx, "t-1", []string{"t-2"}))
	require.NoError(t, f.disp.SplitTable(ctx, "t-1"))

	for _, id := range []string{"t-1", "t-2"} {
		got, _ := f.tables.Get(id)
		tab := got.(*domain.Table)
		assert.Equal(t, domain.TableAvailable, tab.Status, id)
		assert.Empty(t, tab.MergedWith, id)
		assert.Empty(t, tab.MergedInto, id)
	}

	err := f.disp.SplitTable(ctx, "t-1")
	assert.True(t, domain.IsInvalidTransition(err), "not merged any more")
}

func TestExpireReservations(t *testing.T) {
	f := newFixture(t, false, WithReservationTTL(30*time.Minute))
	f.seedTable(t, domain.Table{TableID: "t-1", Status: domain.TableAvailable})
	f.seedTable(t, domain.Table{TableID: "t-2", Status: domain.TableAvailable})
	ctx := context.Background()

	require.NoError(t, f.disp.ReserveTable(ctx, "t-1", "Smith party"))

	// Not yet lapsed: the sweep releases nothing.
	released, err := f.disp.ExpireReservations(ctx)
	require.NoError(t, err)
	assert.Empty(t, released)

	f.clock.Advance(31 * time.Minute)
	require.NoError(t, f.disp.ReserveTable(ctx, "t-2", "Jones"))

	released, err = f.disp.ExpireReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t-1"}, released, "only the lapsed hold is released")

	got, _ := f.tables.Get("t-1")
	assert.Equal(t, domain.TableAvailable, got.(*domain.Table).Status)
	got, _ = f.tables.Get("t-2")
	assert.Equal(t, domain.TableReserved, got.(*domain.Table).Status)
}

func TestDeleteTable(t *testing.T) {
	f := newFixture(t, false)
	f.seedTable(t, domain.Table{TableID: "t-1", Status: domain.TableAvailable})
	f.seedTable(t, domain.Table{TableID: "t-2", Status: domain.TableOccupied, CurrentOrderID: "o-1"})
	ctx := context.Background()

	require.NoError(t, f.disp.DeleteTable(ctx, "t-1"))
	_, ok := f.tables.Get("t-1")
	assert.False(t, ok)

	err := f.disp.DeleteTable(ctx, "t-2")
	assert.True(t, domain.IsInvalidTransition(err))
}

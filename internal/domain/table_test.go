package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionTable(t *testing.T) {
	tests := []struct {
		from, to TableStatus
		want     bool
	}{
		{TableAvailable, TableReserved, true},
		{TableAvailable, TableOccupied, true},
		{TableAvailable, TableMaintenance, true},
		{TableReserved, TableOccupied, true},
		{TableReserved, TableAvailable, true},
		{TableOccupied, TableAvailable, true},
		{TableMaintenance, TableAvailable, true},
		{TableReserved, TableMaintenance, false},
		{TableOccupied, TableMaintenance, false},
		{TableOccupied, TableReserved, false},
		{TableMaintenance, TableOccupied, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransitionTable(tt.from, tt.to),
			"%s → %s", tt.from, tt.to)
	}
}

func TestApplyTable_ReserveOccupyRelease(t *testing.T) {
	until := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	base := &Table{TableID: "t-1", Name: "T1", Capacity: 4, Status: TableAvailable}

	got, err := Apply(base, PendingAction{
		Collection: CollectionTables,
		EntityID:   "t-1",
		Payload:    &TableReservePayload{ReservedBy: "Smith party", Until: until},
	})
	require.NoError(t, err)
	tab := got.(*Table)
	assert.Equal(t, TableReserved, tab.Status)
	assert.Equal(t, "Smith party", tab.ReservedBy)
	require.NotNil(t, tab.ReservedUntil)
	assert.Equal(t, until, *tab.ReservedUntil)

	got, err = Apply(tab, PendingAction{
		Collection: CollectionTables,
		EntityID:   "t-1",
		Payload:    &TableOccupyPayload{OrderID: "o-1"},
	})
	require.NoError(t, err)
	tab = got.(*Table)
	assert.Equal(t, TableOccupied, tab.Status)
	assert.Equal(t, "o-1", tab.CurrentOrderID)
	assert.Empty(t, tab.ReservedBy, "occupy clears the reservation")
	assert.Nil(t, tab.ReservedUntil)

	got, err = Apply(tab, PendingAction{
		Collection: CollectionTables,
		EntityID:   "t-1",
		Payload:    &TableReleasePayload{},
	})
	require.NoError(t, err)
	tab = got.(*Table)
	assert.Equal(t, TableAvailable, tab.Status)
	assert.Empty(t, tab.CurrentOrderID)
}

func TestApplyTable_MergeAndSplit(t *testing.T) {
	primary := &Table{TableID: "t-1", Status: TableAvailable}
	secondary := &Table{TableID: "t-2", Status: TableAvailable}

	got, err := Apply(primary, PendingAction{
		Collection: CollectionTables,
		EntityID:   "t-1",
		Payload:    &TableMergePayload{SecondaryIDs: []string{"t-2"}},
	})
	require.NoError(t, err)
	p := got.(*Table)
	assert.Equal(t, TableOccupied, p.Status)
	assert.Equal(t, []string{"t-2"}, p.MergedWith)

	got, err = Apply(secondary, PendingAction{
		Collection: CollectionTables,
		EntityID:   "t-2",
		Payload:    &TableMergePayload{IntoPrimary: "t-1"},
	})
	require.NoError(t, err)
	s := got.(*Table)
	assert.Equal(t, TableOccupied, s.Status)
	assert.Equal(t, "t-1", s.MergedInto)

	got, err = Apply(p, PendingAction{
		Collection: CollectionTables,
		EntityID:   "t-1",
		Payload:    &TableSplitPayload{},
	})
	require.NoError(t, err)
	p = got.(*Table)
	assert.Equal(t, TableAvailable, p.Status)
	assert.Empty(t, p.MergedWith)
}

func TestApplyTable_Maintenance(t *testing.T) {
	base := &Table{TableID: "t-1", Status: TableAvailable}

	got, err := Apply(base, PendingAction{
		Collection: CollectionTables,
		EntityID:   "t-1",
		Payload:    &TableMaintenancePayload{On: true},
	})
	require.NoError(t, err)
	assert.Equal(t, TableMaintenance, got.(*Table).Status)

	got, err = Apply(got, PendingAction{
		Collection: CollectionTables,
		EntityID:   "t-1",
		Payload:    &TableMaintenancePayload{On: false},
	})
	require.NoError(t, err)
	assert.Equal(t, TableAvailable, got.(*Table).Status)
}

func TestTableClone_DeepCopy(t *testing.T) {
	until := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	orig := &Table{
		TableID:       "t-1",
		Status:        TableReserved,
		ReservedUntil: &until,
		MergedWith:    []string{"t-2"},
	}

	c := orig.Clone().(*Table)
	c.MergedWith[0] = "t-9"
	*c.ReservedUntil = until.Add(time.Hour)

	assert.Equal(t, "t-2", orig.MergedWith[0])
	assert.Equal(t, until, *orig.ReservedUntil)
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionOrder(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderPending, OrderPreparing, true},
		{OrderPreparing, OrderReady, true},
		{OrderReady, OrderCompleted, true},
		{OrderPending, OrderReady, false},
		{OrderPreparing, OrderPending, false},
		{OrderCompleted, OrderPreparing, false},
		{OrderCompleted, OrderPending, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransitionOrder(tt.from, tt.to),
			"%s → %s", tt.from, tt.to)
	}
}

func TestValidOrderStatus(t *testing.T) {
	assert.True(t, ValidOrderStatus(OrderPending))
	assert.True(t, ValidOrderStatus(OrderCompleted))
	assert.False(t, ValidOrderStatus("cancelled"))
	assert.False(t, ValidOrderStatus(""))
}

func TestApplyOrder_Create(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	a := PendingAction{
		ID:         "act-1",
		Collection: CollectionOrders,
		EntityID:   "temp_1",
		Kind:       ActionCreate,
		ActorID:    "waiter-7",
		CreatedAt:  at,
		Payload: &CreateOrderPayload{Order: Order{
			TableID: "t-1",
			Items:   []OrderItem{{Name: "Margherita", Quantity: 1, UnitPriceCents: 1200}},
		}},
	}

	got, err := Apply(nil, a)
	require.NoError(t, err)

	o := got.(*Order)
	assert.Equal(t, "temp_1", o.OrderID)
	assert.Equal(t, OrderPending, o.Status)
	require.Len(t, o.StatusHistory, 1)
	assert.Equal(t, OrderPending, o.StatusHistory[0].Status)
	assert.Equal(t, "waiter-7", o.StatusHistory[0].ActorID)
	assert.Equal(t, at, o.StatusHistory[0].At)
}

func TestApplyOrder_StatusAppendsHistory(t *testing.T) {
	base := &Order{
		OrderID:       "o-1",
		Status:        OrderPending,
		StatusHistory: []StatusChange{{Status: OrderPending, ActorID: "waiter-7"}},
	}

	got, err := Apply(base, PendingAction{
		ID:         "act-2",
		Collection: CollectionOrders,
		EntityID:   "o-1",
		Kind:       ActionTransition,
		ActorID:    "kitchen-1",
		CreatedAt:  time.Date(2024, 6, 1, 12, 5, 0, 0, time.UTC),
		Payload:    &OrderStatusPayload{Status: OrderPreparing, Note: "no onions"},
	})
	require.NoError(t, err)

	o := got.(*Order)
	assert.Equal(t, OrderPreparing, o.Status)
	require.Len(t, o.StatusHistory, 2)
	assert.Equal(t, OrderPending, o.StatusHistory[0].Status, "history is append-only")
	assert.Equal(t, OrderPreparing, o.StatusHistory[1].Status)
	assert.Equal(t, "no onions", o.StatusHistory[1].Note)

	// The base must not be mutated by the fold.
	assert.Equal(t, OrderPending, base.Status)
	assert.Len(t, base.StatusHistory, 1)
}

func TestApplyOrder_PatchItems(t *testing.T) {
	base := &Order{
		OrderID: "o-1",
		Status:  OrderPending,
		Items:   []OrderItem{{Name: "Margherita", Quantity: 1, UnitPriceCents: 1200}},
	}

	got, err := Apply(base, PendingAction{
		Collection: CollectionOrders,
		EntityID:   "o-1",
		Payload:    &OrderPatchPayload{AddItem: &OrderItem{Name: "Cola", Quantity: 2, UnitPriceCents: 300}},
	})
	require.NoError(t, err)
	o := got.(*Order)
	require.Len(t, o.Items, 2)
	assert.Equal(t, int64(1800), o.TotalCents())

	rm := "Margherita"
	got, err = Apply(o, PendingAction{
		Collection: CollectionOrders,
		EntityID:   "o-1",
		Payload:    &OrderPatchPayload{RemoveItem: &rm},
	})
	require.NoError(t, err)
	o = got.(*Order)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Cola", o.Items[0].Name)
}

func TestApplyOrder_PatchMissingBase(t *testing.T) {
	id := "t-9"
	_, err := Apply(nil, PendingAction{
		Collection: CollectionOrders,
		EntityID:   "o-gone",
		Payload:    &OrderPatchPayload{SetTableID: &id},
	})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestApplyOrder_Delete(t *testing.T) {
	base := &Order{OrderID: "o-1", Status: OrderPending}
	got, err := Apply(base, PendingAction{
		Collection: CollectionOrders,
		EntityID:   "o-1",
		Payload:    &DeletePayload{},
	})
	require.NoError(t, err)
	assert.Nil(t, got)
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodePayload_RoundTrip(t *testing.T) {
	until := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)

	payloads := []Payload{
		&CreateTablePayload{Table: Table{TableID: "temp_1", Name: "T5", Capacity: 4, Status: TableAvailable}},
		&OrderStatusPayload{Status: OrderPreparing, Note: "rush"},
		&TableReservePayload{ReservedBy: "Smith party", Until: until},
		&TableMergePayload{SecondaryIDs: []string{"t-2", "t-3"}},
		&DeletePayload{},
	}

	for _, p := range payloads {
		raw, err := EncodePayload(p)
		require.NoError(t, err, "encode %s", p.Tag())

		decoded, err := DecodePayload(raw)
		require.NoError(t, err, "decode %s", p.Tag())
		assert.Equal(t, p, decoded)
	}
}

func TestEncodePayload_Deterministic(t *testing.T) {
	p := &CreateOrderPayload{Order: Order{
		OrderID: "temp_9",
		Items:   []OrderItem{{Name: "Café crème", Quantity: 2, UnitPriceCents: 450}},
		Status:  OrderPending,
	}}

	first, err := EncodePayload(p)
	require.NoError(t, err)
	second, err := EncodePayload(p)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestDecodePayload_UnknownTag(t *testing.T) {
	_, err := DecodePayload([]byte(`{"type":"order.explode","data":{}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tag")
}

func TestEncodePayload_Nil(t *testing.T) {
	_, err := EncodePayload(nil)
	require.Error(t, err)
}

func TestTempRefs(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		want    []string
	}{
		{
			name:    "occupy with temp order",
			payload: &TableOccupyPayload{OrderID: "temp_order_9"},
			want:    []string{"temp_order_9"},
		},
		{
			name:    "occupy with real order",
			payload: &TableOccupyPayload{OrderID: "srv-0001"},
			want:    nil,
		},
		{
			name:    "create order bound to temp table",
			payload: &CreateOrderPayload{Order: Order{TableID: "temp_t1"}},
			want:    []string{"temp_t1"},
		},
		{
			name:    "merge with temp secondaries",
			payload: &TableMergePayload{SecondaryIDs: []string{"temp_a", "t-2"}},
			want:    []string{"temp_a"},
		},
		{
			name:    "release has no refs",
			payload: &TableReleasePayload{},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TempRefs(tt.payload))
		})
	}
}

func TestRemapRefs(t *testing.T) {
	t.Run("occupy", func(t *testing.T) {
		p := &TableOccupyPayload{OrderID: "temp_order_9"}
		got := RemapRefs(p, "temp_order_9", "srv-0007")
		require.IsType(t, &TableOccupyPayload{}, got)
		assert.Equal(t, "srv-0007", got.(*TableOccupyPayload).OrderID)
		// Original untouched.
		assert.Equal(t, "temp_order_9", p.OrderID)
	})

	t.Run("merge secondaries", func(t *testing.T) {
		p := &TableMergePayload{SecondaryIDs: []string{"temp_a", "t-2"}}
		got := RemapRefs(p, "temp_a", "srv-0002").(*TableMergePayload)
		assert.Equal(t, []string{"srv-0002", "t-2"}, got.SecondaryIDs)
	})

	t.Run("no match returns same payload", func(t *testing.T) {
		p := &TableOccupyPayload{OrderID: "srv-0001"}
		assert.Same(t, Payload(p), RemapRefs(p, "temp_x", "srv-9"))
	})
}

func TestEntityFromCreate(t *testing.T) {
	order, ok := EntityFromCreate(&CreateOrderPayload{Order: Order{OrderID: "temp_1"}})
	require.True(t, ok)
	assert.Equal(t, "temp_1", order.ID())

	_, ok = EntityFromCreate(&DeletePayload{})
	assert.False(t, ok)
}

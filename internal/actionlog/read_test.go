package actionlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tableside/syncengine/internal/domain"
)

func TestListPending_CausalOrder(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	// Append out of creation order; the listing must come back sorted by
	// created_at with the action ID breaking ties.
	require.NoError(t, l.Append(ctx, testAction("act-3", "o-1", base.Add(2*time.Millisecond),
		&domain.OrderStatusPayload{Status: domain.OrderReady})))
	require.NoError(t, l.Append(ctx, testAction("act-1", "o-1", base,
		&domain.OrderStatusPayload{Status: domain.OrderPreparing})))
	require.NoError(t, l.Append(ctx, testAction("act-2", "o-2", base.Add(time.Millisecond),
		&domain.CreateOrderPayload{})))
	require.NoError(t, l.Append(ctx, testAction("act-0", "o-1", base,
		&domain.OrderPatchPayload{})))

	pending, err := l.ListPending(ctx, domain.CollectionOrders)
	require.NoError(t, err)
	require.Len(t, pending, 4)

	ids := make([]string, len(pending))
	for i, a := range pending {
		ids[i] = a.ID
	}
	assert.Equal(t, []string{"act-0", "act-1", "act-2", "act-3"}, ids)
}

func TestListPending_MixedPrecisionTimestampsSortChronologically(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	// Timestamps chosen so a trimmed-fraction layout would invert the
	// order: "…00.015Z" sorts before "…00.01Z" as text, and a bare
	// "…00Z" sorts after every fractional stamp in its second. The
	// fixed-width layout keeps the column chronological regardless.
	require.NoError(t, l.Append(ctx, testAction("act-3", "o-1", base.Add(15*time.Millisecond),
		&domain.OrderStatusPayload{Status: domain.OrderReady})))
	require.NoError(t, l.Append(ctx, testAction("act-1", "o-1", base,
		&domain.CreateOrderPayload{})))
	require.NoError(t, l.Append(ctx, testAction("act-4", "o-1", base.Add(100*time.Millisecond),
		&domain.OrderStatusPayload{Status: domain.OrderCompleted})))
	require.NoError(t, l.Append(ctx, testAction("act-2", "o-1", base.Add(10*time.Millisecond),
		&domain.OrderStatusPayload{Status: domain.OrderPreparing})))

	pending, err := l.ListPending(ctx, domain.CollectionOrders)
	require.NoError(t, err)
	require.Len(t, pending, 4)

	ids := make([]string, len(pending))
	for i, a := range pending {
		ids[i] = a.ID
	}
	assert.Equal(t, []string{"act-1", "act-2", "act-3", "act-4"}, ids)
}

func TestListPending_FiltersCollection(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, testAction("act-1", "o-1", time.Now(), &domain.CreateOrderPayload{})))
	require.NoError(t, l.Append(ctx, testAction("act-2", "t-1", time.Now(), &domain.CreateTablePayload{})))

	orders, err := l.ListPending(ctx, domain.CollectionOrders)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "act-1", orders[0].ID)
}

func TestListPending_EmptyIsNotNil(t *testing.T) {
	l := openTestLog(t)

	pending, err := l.ListPending(context.Background(), domain.CollectionOrders)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Empty(t, pending)
}

func TestPendingForEntity(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.Append(ctx, testAction("act-1", "o-1", base,
		&domain.CreateOrderPayload{})))
	require.NoError(t, l.Append(ctx, testAction("act-2", "o-2", base.Add(time.Millisecond),
		&domain.CreateOrderPayload{})))
	require.NoError(t, l.Append(ctx, testAction("act-3", "o-1", base.Add(2*time.Millisecond),
		&domain.OrderStatusPayload{Status: domain.OrderPreparing})))

	pending, err := l.PendingForEntity(ctx, domain.CollectionOrders, "o-1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "act-1", pending[0].ID)
	assert.Equal(t, "act-3", pending[1].ID)
}

func TestCountPending(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	counts, err := l.CountPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)

	require.NoError(t, l.Append(ctx, testAction("act-1", "o-1", time.Now(), &domain.CreateOrderPayload{})))
	require.NoError(t, l.Append(ctx, testAction("act-2", "o-2", time.Now(), &domain.CreateOrderPayload{})))
	require.NoError(t, l.Append(ctx, testAction("act-3", "t-1", time.Now(), &domain.CreateTablePayload{})))

	counts, err = l.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[domain.Collection]int{
		domain.CollectionOrders: 2,
		domain.CollectionTables: 1,
	}, counts)
}

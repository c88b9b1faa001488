package dispatch

import (
	"context"
	"fmt"

	"github.com/tableside/syncengine/internal/domain"
)

// CreateOrder opens a new order, optionally bound to a table. Returns the
// entity ID: server-assigned when online, a temp ID when offline.
func (d *Dispatcher) CreateOrder(ctx context.Context, tableID string, items []domain.OrderItem) (string, error) {
	actorID, err := d.actor()
	if err != nil {
		return "", err
	}

	for _, it := range items {
		if err := validateItem(it); err != nil {
			return "", err
		}
	}

	entityID := d.ids.NewTempID()
	order := domain.Order{
		OrderID:   entityID,
		TableID:   tableID,
		Status:    domain.OrderPending,
		Items:     append([]domain.OrderItem(nil), items...),
		CreatedBy: actorID,
		StatusHistory: []domain.StatusChange{
			{Status: domain.OrderPending, ActorID: actorID, At: d.now().UTC()},
		},
	}

	a := d.newAction(domain.CollectionOrders, entityID, actorID, &domain.CreateOrderPayload{Order: order})
	return d.submitCreate(ctx, d.orders, a, &order)
}

// AddOrderItem appends a line item to an open order.
func (d *Dispatcher) AddOrderItem(ctx context.Context, orderID string, item domain.OrderItem) error {
	actorID, err := d.actor()
	if err != nil {
		return err
	}
	if err := validateItem(item); err != nil {
		return err
	}

	order, err := d.getOrder(orderID)
	if err != nil {
		return err
	}
	if order.Status == domain.OrderCompleted {
		return domain.NewInvalidTransition(string(domain.CollectionOrders), orderID,
			"cannot add items to a completed order")
	}

	a := d.newAction(domain.CollectionOrders, orderID, actorID, &domain.OrderPatchPayload{AddItem: &item})
	return d.submit(ctx, d.orders, a)
}

// RemoveOrderItem removes the first line item with the given name.
func (d *Dispatcher) RemoveOrderItem(ctx context.Context, orderID, name string) error {
	actorID, err := d.actor()
	if err != nil {
		return err
	}

	order, err := d.getOrder(orderID)
	if err != nil {
		return err
	}
	if order.Status == domain.OrderCompleted {
		return domain.NewInvalidTransition(string(domain.CollectionOrders), orderID,
			"cannot remove items from a completed order")
	}

	a := d.newAction(domain.CollectionOrders, orderID, actorID, &domain.OrderPatchPayload{RemoveItem: &name})
	return d.submit(ctx, d.orders, a)
}

// SetOrderTable rebinds an order to a different table.
func (d *Dispatcher) SetOrderTable(ctx context.Context, orderID, tableID string) error {
	actorID, err := d.actor()
	if err != nil {
		return err
	}
	if _, err := d.getOrder(orderID); err != nil {
		return err
	}

	a := d.newAction(domain.CollectionOrders, orderID, actorID, &domain.OrderPatchPayload{SetTableID: &tableID})
	return d.submit(ctx, d.orders, a)
}

// UpdateOrderStatus advances the order state machine and appends a status
// history entry. Fails with InvalidTransition if the move is not legal
// from the order's current optimistic status; no history entry is
// appended on failure.
func (d *Dispatcher) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, note string) error {
	actorID, err := d.actor()
	if err != nil {
		return err
	}
	if !domain.ValidOrderStatus(status) {
		return domain.NewInvalidTransition(string(domain.CollectionOrders), orderID,
			fmt.Sprintf("unknown order status %q", status))
	}

	order, err := d.getOrder(orderID)
	if err != nil {
		return err
	}
	if !domain.CanTransitionOrder(order.Status, status) {
		return domain.NewInvalidTransition(string(domain.CollectionOrders), orderID,
			fmt.Sprintf("cannot move order from %s to %s", order.Status, status))
	}

	a := d.newAction(domain.CollectionOrders, orderID, actorID, &domain.OrderStatusPayload{Status: status, Note: note})
	return d.submit(ctx, d.orders, a)
}

// DeleteOrder removes an order. Completed orders are retained for the
// day's records and cannot be deleted.
func (d *Dispatcher) DeleteOrder(ctx context.Context, orderID string) error {
	actorID, err := d.actor()
	if err != nil {
		return err
	}

	order, err := d.getOrder(orderID)
	if err != nil {
		return err
	}
	if order.Status == domain.OrderCompleted {
		return domain.NewInvalidTransition(string(domain.CollectionOrders), orderID,
			"cannot delete a completed order")
	}

	a := d.newAction(domain.CollectionOrders, orderID, actorID, &domain.DeletePayload{})
	return d.submit(ctx, d.orders, a)
}

// getOrder reads the optimistic view of an order.
func (d *Dispatcher) getOrder(orderID string) (*domain.Order, error) {
	e, ok := d.orders.Get(orderID)
	if !ok {
		return nil, domain.NewNotFound(string(domain.CollectionOrders), orderID)
	}
	return e.(*domain.Order), nil
}

// validateItem rejects malformed line items before they reach the log.
func validateItem(it domain.OrderItem) error {
	if it.Name == "" {
		return domain.NewInvalidTransition(string(domain.CollectionOrders), "", "item name required")
	}
	if it.Quantity <= 0 {
		return domain.NewInvalidTransition(string(domain.CollectionOrders), "",
			fmt.Sprintf("item %q quantity must be positive", it.Name))
	}
	if it.UnitPriceCents < 0 {
		return domain.NewInvalidTransition(string(domain.CollectionOrders), "",
			fmt.Sprintf("item %q price must not be negative", it.Name))
	}
	return nil
}

package domain

import (
	"fmt"
	"time"
)

// OrderStatus is the order state machine position.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderCompleted OrderStatus = "completed"
)

// orderTransitions maps each status to the statuses reachable from it.
// The machine only moves forward: pending → preparing → ready → completed.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderPreparing},
	OrderPreparing: {OrderReady},
	OrderReady:     {OrderCompleted},
	OrderCompleted: {},
}

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s OrderStatus) bool {
	_, ok := orderTransitions[s]
	return ok
}

// CanTransitionOrder reports whether an order may move from → to.
func CanTransitionOrder(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderItem is one line item on an order.
type OrderItem struct {
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// Order is a customer order.
//
// StatusHistory is append-only: every status transition adds an entry and
// no entry is ever rewritten, online or during offline replay. UpdatedAt
// is the server timestamp, used only as a display/debug ordering hint -
// never for conflict detection.
type Order struct {
	OrderID       string         `json:"id"`
	TableID       string         `json:"table_id,omitempty"`
	Status        OrderStatus    `json:"status"`
	Items         []OrderItem    `json:"items"`
	StatusHistory []StatusChange `json:"status_history"`
	CreatedBy     string         `json:"created_by"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// ID implements Entity.
func (o *Order) ID() string { return o.OrderID }

// Clone implements Entity with a deep copy.
func (o *Order) Clone() Entity {
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	c.StatusHistory = append([]StatusChange(nil), o.StatusHistory...)
	return &c
}

// TotalCents returns the order total across all line items.
func (o *Order) TotalCents() int64 {
	var total int64
	for _, it := range o.Items {
		total += int64(it.Quantity) * it.UnitPriceCents
	}
	return total
}

// applyOrder folds one pending action onto an order snapshot.
func applyOrder(base Entity, a PendingAction) (Entity, error) {
	switch p := a.Payload.(type) {
	case *CreateOrderPayload:
		order := p.Order
		o := order.Clone().(*Order)
		o.OrderID = a.EntityID
		if o.Status == "" {
			o.Status = OrderPending
		}
		if len(o.StatusHistory) == 0 {
			o.StatusHistory = []StatusChange{{Status: o.Status, ActorID: a.ActorID, At: a.CreatedAt}}
		}
		return o, nil

	case *OrderPatchPayload:
		o, err := orderBase(base, a)
		if err != nil {
			return nil, err
		}
		if p.SetTableID != nil {
			o.TableID = *p.SetTableID
		}
		if p.AddItem != nil {
			o.Items = append(o.Items, *p.AddItem)
		}
		if p.RemoveItem != nil {
			o.Items = removeOrderItem(o.Items, *p.RemoveItem)
		}
		return o, nil

	case *OrderStatusPayload:
		o, err := orderBase(base, a)
		if err != nil {
			return nil, err
		}
		o.Status = p.Status
		o.StatusHistory = append(o.StatusHistory, StatusChange{
			Status:  p.Status,
			ActorID: a.ActorID,
			At:      a.CreatedAt,
			Note:    p.Note,
		})
		return o, nil

	case *DeletePayload:
		// A nil result removes the entity from the optimistic view.
		return nil, nil

	default:
		return nil, fmt.Errorf("apply order action %s: unexpected payload %T", a.ID, a.Payload)
	}
}

// orderBase clones the base entity for patching.
func orderBase(base Entity, a PendingAction) (*Order, error) {
	if base == nil {
		return nil, NewNotFound(string(CollectionOrders), a.EntityID)
	}
	o, ok := base.(*Order)
	if !ok {
		return nil, fmt.Errorf("apply order action %s: base is %T, want *Order", a.ID, base)
	}
	return o.Clone().(*Order), nil
}

// removeOrderItem removes the first line item with the given name.
func removeOrderItem(items []OrderItem, name string) []OrderItem {
	for i, it := range items {
		if it.Name == name {
			return append(items[:i:i], items[i+1:]...)
		}
	}
	return items
}

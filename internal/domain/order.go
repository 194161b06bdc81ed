package domain

import "time"

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderPreparing OrderStatus = "PREPARING"
	OrderReady     OrderStatus = "READY"
	OrderServed    OrderStatus = "SERVED"
	OrderPaid      OrderStatus = "PAID"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderMerged    OrderStatus = "MERGED"
)

// orderTransitions is the full order-level transition table. Terminal
// statuses (PAID, CANCELLED, MERGED) have no outgoing edges.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderPreparing, OrderCancelled},
	OrderPreparing: {OrderReady, OrderCancelled},
	OrderReady:     {OrderServed, OrderCancelled},
	OrderServed:    {OrderPaid, OrderCancelled},
}

func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderPaid || s == OrderCancelled || s == OrderMerged
}

// Editable reports whether line items may still be added, resized or
// removed. Everything before payment or cancellation is editable.
func (s OrderStatus) Editable() bool {
	return !s.Terminal()
}

// SoftReconfirmable reports whether a CONFIRMED request against this
// status is accepted as an idempotent re-confirm: the order is already
// past PENDING but still in flight, so the kitchen may be re-notified
// without a status change.
func (s OrderStatus) SoftReconfirmable() bool {
	switch s {
	case OrderConfirmed, OrderPreparing, OrderReady, OrderServed:
		return true
	}
	return false
}

type Order struct {
	ID        int64       `json:"id"`
	TableID   int64       `json:"table_id"`
	CreatedBy string      `json:"created_by"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Items     []OrderItem `json:"items,omitempty"`
}

type ItemStatus string

const (
	ItemPending   ItemStatus = "PENDING"
	ItemConfirmed ItemStatus = "CONFIRMED"
	ItemPreparing ItemStatus = "PREPARING"
	ItemReady     ItemStatus = "READY"
	ItemServed    ItemStatus = "SERVED"
	ItemCancelled ItemStatus = "CANCELLED"
)

var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemPending:   {ItemConfirmed, ItemPreparing, ItemCancelled},
	ItemConfirmed: {ItemPreparing, ItemCancelled},
	ItemPreparing: {ItemReady, ItemCancelled},
	ItemReady:     {ItemServed, ItemCancelled},
}

func (s ItemStatus) CanTransitionTo(to ItemStatus) bool {
	for _, next := range itemTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s ItemStatus) Terminal() bool {
	return s == ItemServed || s == ItemCancelled
}

type OrderItem struct {
	ID          int64      `json:"id"`
	OrderID     int64      `json:"order_id"`
	MenuItemID  int64      `json:"menu_item_id"`
	Name        string     `json:"name"`
	Quantity    int        `json:"quantity"`
	Price       float64    `json:"price"`
	Note        string     `json:"note,omitempty"`
	Status      ItemStatus `json:"status"`
	BatchID     *int64     `json:"batch_id,omitempty"`
	CancelledBy *string    `json:"cancelled_by,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CancelNote  *string    `json:"cancel_note,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// DeriveOrderStatus computes the order status implied by its item
// statuses. Cancelled items are excluded from the aggregate; if every
// item is cancelled the order itself is cancelled. The result is a pure
// function of the item set.
func DeriveOrderStatus(items []OrderItem) OrderStatus {
	var live []ItemStatus
	for _, it := range items {
		if it.Status != ItemCancelled {
			live = append(live, it.Status)
		}
	}
	if len(live) == 0 {
		if len(items) == 0 {
			return OrderPending
		}
		return OrderCancelled
	}

	allServed := true
	allReadyOrServed := true
	anyReady := false
	anyPreparing := false
	anyConfirmed := false
	for _, st := range live {
		if st != ItemServed {
			allServed = false
		}
		if st != ItemReady && st != ItemServed {
			allReadyOrServed = false
		}
		switch st {
		case ItemReady:
			anyReady = true
		case ItemPreparing:
			anyPreparing = true
		case ItemConfirmed:
			anyConfirmed = true
		}
	}

	switch {
	case allServed:
		return OrderServed
	case allReadyOrServed && anyReady:
		return OrderReady
	case anyPreparing:
		return OrderPreparing
	case anyConfirmed:
		return OrderConfirmed
	default:
		return OrderPending
	}
}

// BulkResult tags the outcome of one row inside a bulk status update.
type BulkResult string

const (
	BulkApplied  BulkResult = "applied"
	BulkSkipped  BulkResult = "skipped-already-in-state"
	BulkRejected BulkResult = "rejected-invalid-transition"
)

type BulkOutcome struct {
	ID     int64      `json:"id"`
	From   ItemStatus `json:"from"`
	To     ItemStatus `json:"to"`
	Result BulkResult `json:"result"`
}

// StatusLog is one append-only history record of an order status change.
type StatusLog struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	Status    string    `json:"status"`
	ChangedBy string    `json:"changed_by"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Table struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Occupied bool   `json:"occupied"`
}

type MenuItem struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Available bool    `json:"available"`
}

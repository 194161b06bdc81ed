// Package fanout publishes role-scoped notifications after each
// committed mutation. Publishing is best-effort and at-least-once:
// failures are logged and swallowed, clients reconcile by refetching.
package fanout

import (
	"time"

	"dishpatch/pkg/logger"
)

// Subscriber groups.
const (
	GroupCashier = "cashier"
	GroupWaiter  = "waiter"
	GroupKitchen = "kitchen"
)

// Event types.
const (
	EventOrderChanged        = "order_changed"
	EventNewKitchenBatch     = "new_kitchen_batch"
	EventTicketStatusChanged = "ticket_status_changed"
	EventTicketsVoided       = "tickets_voided"
	EventOrderVoided         = "order_voided"
	EventLowStock            = "inventory_low_stock"
)

// Reason tags carried by order_changed events.
const (
	ReasonCreated        = "CREATED"
	ReasonItemsAdded     = "ITEMS_ADDED"
	ReasonItemQtySet     = "ITEM_QTY_SET"
	ReasonItemRemoved    = "ITEM_REMOVED"
	ReasonOrderStatus    = "ORDER_STATUS"
	ReasonOrderCancelled = "ORDER_CANCELLED"
	ReasonMerged         = "MERGED"
	ReasonSplit          = "SPLIT"
)

type Event struct {
	Type    string    `json:"type"`
	Reason  string    `json:"reason,omitempty"`
	OrderID int64     `json:"order_id,omitempty"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher is the transport capability the coordinator depends on.
// Production uses RabbitMQ; tests use the in-memory bus.
type Publisher interface {
	Publish(channel string, event Event) error
}

// Fanout wraps a Publisher with group addressing and the swallow-errors
// policy. It must only be invoked after the transaction committed.
type Fanout struct {
	pub Publisher
	log *logger.Logger
}

func New(pub Publisher, log *logger.Logger) *Fanout {
	return &Fanout{pub: pub, log: log}
}

// Emit publishes one event to each group. A failed publish never
// propagates; committed state already holds the truth. A nil Publisher
// disables fan-out entirely.
func (f *Fanout) Emit(requestID string, groups []string, ev Event) {
	if f.pub == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	for _, group := range groups {
		if err := f.pub.Publish(group, ev); err != nil {
			f.log.Error(requestID, "fanout_publish_failed", "Failed to publish "+ev.Type+" to "+group, err)
		}
	}
}

// AllGroups is the broadcast target for order-level changes.
var AllGroups = []string{GroupCashier, GroupWaiter, GroupKitchen}

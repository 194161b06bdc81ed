package domain

import "time"

type TicketStatus string

const (
	TicketPending   TicketStatus = "PENDING"
	TicketConfirmed TicketStatus = "CONFIRMED"
	TicketPreparing TicketStatus = "PREPARING"
	TicketReady     TicketStatus = "READY"
	TicketServed    TicketStatus = "SERVED"
	TicketCancelled TicketStatus = "CANCELLED"
)

// TicketLiveStatuses are the states a ticket can still be acted on from
// the kitchen display. TicketVoidableStatuses is the narrower set in
// which a partial void may shrink or delete the ticket.
var (
	TicketLiveStatuses     = []TicketStatus{TicketPending, TicketConfirmed, TicketPreparing, TicketReady}
	TicketVoidableStatuses = []TicketStatus{TicketPending, TicketConfirmed}
)

// Ticket transitions mirror item-level kitchen progress.
var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketPending:   {TicketConfirmed, TicketPreparing, TicketCancelled},
	TicketConfirmed: {TicketPreparing, TicketCancelled},
	TicketPreparing: {TicketReady, TicketCancelled},
	TicketReady:     {TicketServed, TicketCancelled},
}

func (s TicketStatus) CanTransitionTo(to TicketStatus) bool {
	for _, next := range ticketTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s TicketStatus) Voidable() bool {
	return s == TicketPending || s == TicketConfirmed
}

func (s TicketStatus) Live() bool {
	switch s {
	case TicketPending, TicketConfirmed, TicketPreparing, TicketReady:
		return true
	}
	return false
}

// KitchenBatch groups the tickets produced by one "notify kitchen"
// action. Batches are never merged; each notification is a new batch.
type KitchenBatch struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	TableName string          `json:"table_name"`
	StaffName string          `json:"staff_name"`
	Priority  bool            `json:"priority"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Tickets   []KitchenTicket `json:"tickets,omitempty"`
}

type KitchenTicket struct {
	ID          int64        `json:"id"`
	BatchID     int64        `json:"batch_id"`
	OrderID     int64        `json:"order_id"`
	MenuItemID  int64        `json:"menu_item_id"`
	OrderItemID *int64       `json:"order_item_id,omitempty"`
	Name        string       `json:"name"`
	Qty         int          `json:"qty"`
	Status      TicketStatus `json:"status"`
	DeletedAt   *time.Time   `json:"deleted_at,omitempty"`
	CancelledBy *string      `json:"cancelled_by,omitempty"`
	CancelledAt *time.Time   `json:"cancelled_at,omitempty"`
	CancelNote  *string      `json:"cancel_note,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// TicketPatch records one ticket mutation made by a void so clients can
// update their local state without a full refetch.
type TicketPatch struct {
	TicketID  int64  `json:"ticket_id"`
	Action    string `json:"action"` // deleted | updated
	QtyBefore int    `json:"qty_before"`
	QtyAfter  int    `json:"qty_after"`
}

// VoidEvent is the append-only audit record of one cancellation.
type VoidEvent struct {
	ID         int64     `json:"id"`
	OrderID    int64     `json:"order_id"`
	TableName  string    `json:"table_name"`
	MenuItemID int64     `json:"menu_item_id"`
	ItemName   string    `json:"item_name"`
	Quantity   int       `json:"quantity"`
	Source     string    `json:"source"` // cashier | waiter | kitchen
	Actor      string    `json:"actor"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Package dispatch manages kitchen batches and tickets. All functions
// run inside the caller's transaction; the coordinator owns commit,
// derived order status and fan-out.
package dispatch

import (
	"context"
	"fmt"

	"dishpatch/internal/domain"
	"dishpatch/internal/store"
)

// NotifyLine is one (menu item, positive delta) pair of a notify action.
type NotifyLine struct {
	MenuItemID  int64
	OrderItemID *int64
	Name        string
	Qty         int
}

// Notify creates one batch and one PENDING ticket per line. Tickets from
// different notify actions are never merged, so the batch list is the
// chronological notify history of the order.
func Notify(ctx context.Context, tx store.Tx, batch *domain.KitchenBatch, lines []NotifyLine) (*domain.KitchenBatch, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: notify requires at least one line", domain.ErrBadQuantity)
	}
	for _, line := range lines {
		if line.Qty <= 0 {
			return nil, fmt.Errorf("%w: notify qty must be positive, got %d", domain.ErrBadQuantity, line.Qty)
		}
	}

	if err := tx.InsertBatch(ctx, batch); err != nil {
		return nil, err
	}

	for _, line := range lines {
		ticket := domain.KitchenTicket{
			BatchID:     batch.ID,
			OrderID:     batch.OrderID,
			MenuItemID:  line.MenuItemID,
			OrderItemID: line.OrderItemID,
			Name:        line.Name,
			Qty:         line.Qty,
			Status:      domain.TicketPending,
		}
		if err := tx.InsertTicket(ctx, &ticket); err != nil {
			return nil, err
		}
		batch.Tickets = append(batch.Tickets, ticket)
	}
	return batch, nil
}

// VoidResult reports what a partial void actually did.
type VoidResult struct {
	Requested int                  `json:"requested"`
	Voided    int                  `json:"voided"`
	Remaining int                  `json:"remaining"`
	Patches   []domain.TicketPatch `json:"patches"`
}

// VoidByMenu cancels up to qty units of one menu item's tickets on one
// order. Only PENDING and CONFIRMED tickets are touched, newest first:
// a ticket smaller than the remainder is deleted outright, a larger one
// is shrunk and the walk stops. Requests beyond the voidable total
// clamp to it; the shortfall comes back in Remaining rather than as an
// error.
func VoidByMenu(ctx context.Context, tx store.Tx, orderID, menuItemID int64, qty int) (*VoidResult, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: void qty must be positive, got %d", domain.ErrBadQuantity, qty)
	}

	tickets, err := tx.ListVoidableTickets(ctx, orderID, menuItemID)
	if err != nil {
		return nil, err
	}

	res := &VoidResult{Requested: qty, Remaining: qty}
	for _, tk := range tickets {
		if res.Remaining == 0 {
			break
		}
		if tk.Qty <= res.Remaining {
			if err := tx.DeleteTicket(ctx, tk.ID); err != nil {
				return nil, err
			}
			res.Patches = append(res.Patches, domain.TicketPatch{
				TicketID: tk.ID, Action: "deleted", QtyBefore: tk.Qty, QtyAfter: 0,
			})
			res.Remaining -= tk.Qty
			res.Voided += tk.Qty
		} else {
			after := tk.Qty - res.Remaining
			if err := tx.SetTicketQty(ctx, tk.ID, after); err != nil {
				return nil, err
			}
			res.Patches = append(res.Patches, domain.TicketPatch{
				TicketID: tk.ID, Action: "updated", QtyBefore: tk.Qty, QtyAfter: after,
			})
			res.Voided += res.Remaining
			res.Remaining = 0
		}
	}
	return res, nil
}

// CancelAllByOrder soft-cancels every live ticket of the order. The
// count may be zero; callers still emit the clearing event so clients
// purge stale local state.
func CancelAllByOrder(ctx context.Context, tx store.Tx, orderID int64, by, note string) (int, error) {
	tickets, err := tx.ListTicketsByOrder(ctx, orderID, domain.TicketLiveStatuses)
	if err != nil {
		return 0, err
	}
	for _, tk := range tickets {
		if err := tx.CancelTicket(ctx, tk.ID, by, note); err != nil {
			return 0, err
		}
	}
	return len(tickets), nil
}

// TicketOutcome tags one row of a bulk ticket status update.
type TicketOutcome struct {
	TicketID int64               `json:"ticket_id"`
	From     domain.TicketStatus `json:"from"`
	To       domain.TicketStatus `json:"to"`
	Result   domain.BulkResult   `json:"result"`
}

// UpdateStatusBulk moves each ticket to the target status. Rows already
// at the target are skipped so client retries are idempotent; a row
// whose current state forbids the transition aborts the whole call.
func UpdateStatusBulk(ctx context.Context, tx store.Tx, ticketIDs []int64, to domain.TicketStatus) ([]TicketOutcome, error) {
	outcomes := make([]TicketOutcome, 0, len(ticketIDs))
	for _, id := range ticketIDs {
		tk, err := tx.GetTicket(ctx, id)
		if err != nil {
			return nil, err
		}
		if tk.Status == to {
			outcomes = append(outcomes, TicketOutcome{TicketID: id, From: tk.Status, To: to, Result: domain.BulkSkipped})
			continue
		}
		if !tk.Status.CanTransitionTo(to) {
			return nil, fmt.Errorf("%w: ticket %d %s -> %s", domain.ErrInvalidItemTransition, id, tk.Status, to)
		}
		if err := tx.SetTicketStatus(ctx, id, to); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, TicketOutcome{TicketID: id, From: tk.Status, To: to, Result: domain.BulkApplied})
	}
	return outcomes, nil
}

// ProgressRow summarizes one order line's kitchen state.
type ProgressRow struct {
	MenuItemID int64                       `json:"menu_item_id"`
	Name       string                      `json:"name"`
	ByStatus   map[domain.TicketStatus]int `json:"by_status"`
	Total      int                         `json:"total"`
}

// OrderProgress aggregates the order's live tickets per menu item.
func OrderProgress(ctx context.Context, tx store.Tx, orderID int64) ([]ProgressRow, error) {
	tickets, err := tx.ListTicketsByOrder(ctx, orderID, nil)
	if err != nil {
		return nil, err
	}

	index := map[int64]int{}
	var rows []ProgressRow
	for _, tk := range tickets {
		i, ok := index[tk.MenuItemID]
		if !ok {
			i = len(rows)
			index[tk.MenuItemID] = i
			rows = append(rows, ProgressRow{
				MenuItemID: tk.MenuItemID,
				Name:       tk.Name,
				ByStatus:   map[domain.TicketStatus]int{},
			})
		}
		rows[i].ByStatus[tk.Status] += tk.Qty
		rows[i].Total += tk.Qty
	}
	return rows, nil
}

// NotifyHistory returns the order's batches, oldest first, each with its
// surviving tickets.
func NotifyHistory(ctx context.Context, tx store.Tx, orderID int64) ([]domain.KitchenBatch, error) {
	batches, err := tx.ListBatchesByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for i := range batches {
		tickets, err := tx.ListTicketsByBatch(ctx, batches[i].ID)
		if err != nil {
			return nil, err
		}
		batches[i].Tickets = tickets
	}
	return batches, nil
}

package coordinator

import (
	"context"
	"errors"
	"fmt"

	"dishpatch/internal/dispatch"
	"dishpatch/internal/domain"
	"dishpatch/internal/fanout"
	"dishpatch/internal/ledger"
	"dishpatch/internal/recipe"
	"dishpatch/internal/store"
)

// NotifyLine selects what one notify action sends to the kitchen.
type NotifyLine struct {
	OrderItemID int64 `json:"order_item_id"`
	Qty         int   `json:"qty"`
}

// NotifyItems creates one kitchen batch with one ticket per line and
// confirms the linked items that were still pending. Every notify is a
// new batch; earlier tickets are untouched.
func (s *Service) NotifyItems(ctx context.Context, requestID string, orderID int64, lines []NotifyLine, staff string, priority bool, note string) (*domain.KitchenBatch, error) {
	var (
		batch  *domain.KitchenBatch
		events []pendingEvent
	)
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.Status.Editable() {
			return fmt.Errorf("%w: order %d is %s", domain.ErrOrderNotEditable, orderID, o.Status)
		}
		table, err := tx.GetTable(ctx, o.TableID)
		if err != nil {
			return err
		}

		notifyLines := make([]dispatch.NotifyLine, 0, len(lines))
		var confirmIDs []int64
		for _, line := range lines {
			it, err := tx.GetOrderItem(ctx, line.OrderItemID)
			if err != nil {
				return err
			}
			if it.OrderID != orderID {
				return fmt.Errorf("%w: item %d does not belong to order %d", domain.ErrItemNotFound, line.OrderItemID, orderID)
			}
			if it.Status == domain.ItemCancelled {
				return fmt.Errorf("%w: item %d is cancelled", domain.ErrItemNotFound, line.OrderItemID)
			}
			qty := line.Qty
			if qty <= 0 {
				qty = it.Quantity
			}
			itemID := it.ID
			notifyLines = append(notifyLines, dispatch.NotifyLine{
				MenuItemID:  it.MenuItemID,
				OrderItemID: &itemID,
				Name:        it.Name,
				Qty:         qty,
			})
			if it.Status == domain.ItemPending {
				confirmIDs = append(confirmIDs, it.ID)
			}
		}

		b, err := dispatch.Notify(ctx, tx, &domain.KitchenBatch{
			OrderID:   orderID,
			TableName: table.Name,
			StaffName: staff,
			Priority:  priority,
			Note:      note,
		}, notifyLines)
		if err != nil {
			return err
		}

		for _, id := range confirmIDs {
			if err := tx.SetOrderItemStatus(ctx, id, domain.ItemConfirmed); err != nil {
				return err
			}
		}
		evs, err := deriveOrderStatus(ctx, tx, o, staff)
		if err != nil {
			return err
		}
		events = append(events, evs...)

		batch = b
		events = append(events, pendingEvent{
			groups: []string{fanout.GroupKitchen},
			ev:     fanout.Event{Type: fanout.EventNewKitchenBatch, OrderID: orderID, Payload: b},
		})
		return nil
	})
	if err != nil {
		s.logger.Error(requestID, "notify_failed", "Failed to notify kitchen", err)
		return nil, err
	}

	s.logger.Info(requestID, "kitchen_notified", fmt.Sprintf("Batch %d sent for order %d", batch.ID, orderID))
	s.emit(requestID, events)
	return batch, nil
}

// ListTicketsByStatus returns live tickets in the given states for the
// kitchen display board.
func (s *Service) ListTicketsByStatus(ctx context.Context, statuses []domain.TicketStatus) ([]domain.KitchenTicket, error) {
	var tickets []domain.KitchenTicket
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		tickets, err = tx.ListTicketsByStatus(ctx, statuses)
		return err
	})
	return tickets, err
}

// UpdateTicketStatusBulk advances tickets on the kitchen display,
// mirrors the progress onto the linked order items and re-derives each
// affected order's status. Tickets already at the target are skipped;
// an invalid row aborts the whole call.
func (s *Service) UpdateTicketStatusBulk(ctx context.Context, requestID string, ticketIDs []int64, to domain.TicketStatus, actor string) ([]dispatch.TicketOutcome, error) {
	var (
		outcomes []dispatch.TicketOutcome
		events   []pendingEvent
	)
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		outcomes, err = dispatch.UpdateStatusBulk(ctx, tx, ticketIDs, to)
		if err != nil {
			return err
		}

		// Sync linked items and collect the orders to re-derive.
		affected := map[int64]bool{}
		itemStatus := domain.ItemStatus(to)
		for _, oc := range outcomes {
			if oc.Result != domain.BulkApplied {
				continue
			}
			tk, err := tx.GetTicket(ctx, oc.TicketID)
			if err != nil {
				return err
			}
			affected[tk.OrderID] = true
			if tk.OrderItemID == nil {
				continue
			}
			it, err := tx.GetOrderItem(ctx, *tk.OrderItemID)
			if errors.Is(err, domain.ErrItemNotFound) {
				continue // line already removed, ticket alone carries state
			}
			if err != nil {
				return err
			}
			if it.Status != itemStatus && it.Status.CanTransitionTo(itemStatus) {
				if err := tx.SetOrderItemStatus(ctx, it.ID, itemStatus); err != nil {
					return err
				}
			}
		}

		for orderID := range affected {
			o, err := tx.GetOrder(ctx, orderID)
			if err != nil {
				return err
			}
			evs, err := deriveOrderStatus(ctx, tx, o, actor)
			if err != nil {
				return err
			}
			events = append(events, evs...)
			events = append(events, pendingEvent{
				groups: fanout.AllGroups,
				ev: fanout.Event{
					Type: fanout.EventTicketStatusChanged, OrderID: orderID,
					Payload: map[string]any{"status": to, "outcomes": outcomes},
				},
			})
		}
		return nil
	})
	if err != nil {
		s.logger.Error(requestID, "bulk_ticket_status_failed", "Failed bulk ticket status update", err)
		return nil, err
	}

	s.emit(requestID, events)
	return outcomes, nil
}

// VoidTicketsByMenu cancels up to qty units of one menu item's tickets
// on an order, newest first. Requests beyond the voidable total clamp
// to it; the unsatisfied remainder is returned, not an error.
func (s *Service) VoidTicketsByMenu(ctx context.Context, requestID string, orderID, menuItemID int64, qty int, actor, source, reason string) (*dispatch.VoidResult, error) {
	var (
		result *dispatch.VoidResult
		events []pendingEvent
	)
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		res, err := dispatch.VoidByMenu(ctx, tx, orderID, menuItemID, qty)
		if err != nil {
			return err
		}
		if res.Voided > 0 {
			table, err := tx.GetTable(ctx, o.TableID)
			if err != nil {
				return err
			}
			menu, err := tx.GetMenuItem(ctx, menuItemID)
			if err != nil {
				return err
			}
			if err := tx.InsertVoidEvent(ctx, &domain.VoidEvent{
				OrderID:    orderID,
				TableName:  table.Name,
				MenuItemID: menuItemID,
				ItemName:   menu.Name,
				Quantity:   res.Voided,
				Source:     source,
				Actor:      actor,
				Reason:     reason,
			}); err != nil {
				return err
			}
			events = append(events, pendingEvent{
				groups: fanout.AllGroups,
				ev:     fanout.Event{Type: fanout.EventTicketsVoided, OrderID: orderID, Payload: res},
			})
		}
		result = res
		return nil
	})
	if err != nil {
		s.logger.Error(requestID, "void_by_menu_failed", "Failed to void tickets", err)
		return nil, err
	}

	s.emit(requestID, events)
	return result, nil
}

// CancelFromKitchen voids one ticket (or part of it) from the kitchen
// display: the linked order item shrinks or disappears, its inventory
// comes back, the void is audited and the waiter who opened the order
// is notified.
func (s *Service) CancelFromKitchen(ctx context.Context, requestID string, ticketID int64, qty int, actor, reason string) (*domain.KitchenTicket, error) {
	var (
		ticket *domain.KitchenTicket
		events []pendingEvent
	)
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		tk, err := tx.GetTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if !tk.Status.Voidable() {
			return fmt.Errorf("%w: ticket %d is %s", domain.ErrTicketNotCancellable, ticketID, tk.Status)
		}

		o, err := tx.GetOrderForUpdate(ctx, tk.OrderID)
		if err != nil {
			return err
		}
		table, err := tx.GetTable(ctx, o.TableID)
		if err != nil {
			return err
		}

		cancelQty := qty
		if cancelQty <= 0 || cancelQty > tk.Qty {
			cancelQty = tk.Qty
		}

		// Shrink or drop the originating line, crediting its stock. A
		// line already removed on the order side is fine; anything else
		// must fail the cancel rather than skip the restore.
		if tk.OrderItemID != nil {
			it, err := tx.GetOrderItem(ctx, *tk.OrderItemID)
			if err != nil && !errors.Is(err, domain.ErrItemNotFound) {
				return err
			}
			if err == nil {
				back, err := recipe.Resolve(ctx, tx, []recipe.ItemQty{{MenuItemID: it.MenuItemID, Qty: cancelQty}})
				if err != nil {
					return err
				}
				if err := ledger.Restore(ctx, tx, back, ledger.Ref{Type: domain.RefOrderCancel, ID: o.ID, Note: reason}); err != nil {
					return err
				}
				if cancelQty >= it.Quantity {
					if err := tx.DeleteOrderItem(ctx, it.ID); err != nil {
						return err
					}
				} else {
					if err := tx.SetOrderItemQuantity(ctx, it.ID, it.Quantity-cancelQty); err != nil {
						return err
					}
				}
			}
		}

		if cancelQty == tk.Qty {
			if err := tx.CancelTicket(ctx, tk.ID, actor, reason); err != nil {
				return err
			}
			tk.Status = domain.TicketCancelled
		} else {
			if err := tx.SetTicketQty(ctx, tk.ID, tk.Qty-cancelQty); err != nil {
				return err
			}
			tk.Qty -= cancelQty
		}

		if err := tx.InsertVoidEvent(ctx, &domain.VoidEvent{
			OrderID:    o.ID,
			TableName:  table.Name,
			MenuItemID: tk.MenuItemID,
			ItemName:   tk.Name,
			Quantity:   cancelQty,
			Source:     fanout.GroupKitchen,
			Actor:      actor,
			Reason:     reason,
		}); err != nil {
			return err
		}

		evs, err := deriveOrderStatus(ctx, tx, o, actor)
		if err != nil {
			return err
		}
		events = append(events, evs...)

		ticket = tk
		events = append(events, pendingEvent{
			groups: []string{fanout.GroupWaiter, fanout.GroupCashier},
			ev: fanout.Event{
				Type: fanout.EventTicketsVoided, OrderID: o.ID,
				Payload: map[string]any{
					"ticket_id": tk.ID, "cancelled_qty": cancelQty,
					"reason": reason, "waiter": o.CreatedBy,
				},
			},
		})
		return nil
	})
	if err != nil {
		s.logger.Error(requestID, "kitchen_cancel_failed", "Failed to cancel from kitchen", err)
		return nil, err
	}

	s.emit(requestID, events)
	return ticket, nil
}

// VoidAllByOrder soft-cancels every live ticket of an order on the
// kitchen side. The clearing event goes out even when nothing was live
// so clients purge stale local state.
func (s *Service) VoidAllByOrder(ctx context.Context, requestID string, orderID int64, actor, reason string) (int, error) {
	var cancelled int
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetOrder(ctx, orderID); err != nil {
			return err
		}
		var err error
		cancelled, err = dispatch.CancelAllByOrder(ctx, tx, orderID, actor, reason)
		return err
	})
	if err != nil {
		s.logger.Error(requestID, "void_all_failed", "Failed to void order tickets", err)
		return 0, err
	}

	s.fan.Emit(requestID, []string{fanout.GroupKitchen, fanout.GroupWaiter}, fanout.Event{
		Type: fanout.EventOrderVoided, OrderID: orderID,
		Payload: map[string]any{"cancelled": cancelled, "reason": reason},
	})
	return cancelled, nil
}

// GetOrderProgress aggregates the order's tickets per menu item.
func (s *Service) GetOrderProgress(ctx context.Context, orderID int64) ([]dispatch.ProgressRow, error) {
	var rows []dispatch.ProgressRow
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetOrder(ctx, orderID); err != nil {
			return err
		}
		var err error
		rows, err = dispatch.OrderProgress(ctx, tx, orderID)
		return err
	})
	return rows, err
}

// GetNotifyHistory returns the chronological batches of an order with
// their surviving tickets.
func (s *Service) GetNotifyHistory(ctx context.Context, orderID int64) ([]domain.KitchenBatch, error) {
	var batches []domain.KitchenBatch
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetOrder(ctx, orderID); err != nil {
			return err
		}
		var err error
		batches, err = dispatch.NotifyHistory(ctx, tx, orderID)
		return err
	})
	return batches, err
}

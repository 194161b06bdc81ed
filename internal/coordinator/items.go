package coordinator

import (
	"context"
	"fmt"

	"dishpatch/internal/dispatch"
	"dishpatch/internal/domain"
	"dishpatch/internal/fanout"
	"dishpatch/internal/ledger"
	"dishpatch/internal/recipe"
	"dishpatch/internal/store"
)

// AddItems appends line items to an editable order and debits their
// recipe requirement. It does not notify the kitchen; NotifyItems does.
func (s *Service) AddItems(ctx context.Context, requestID string, orderID int64, items []ItemRequest, batchID *int64, actor string) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items to add", domain.ErrBadQuantity)
	}

	var (
		order  *domain.Order
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

		pairs := make([]recipe.ItemQty, 0, len(items))
		for _, req := range items {
			if req.Quantity <= 0 {
				return fmt.Errorf("%w: quantity must be positive, got %d", domain.ErrBadQuantity, req.Quantity)
			}
			menu, err := tx.GetMenuItem(ctx, req.MenuItemID)
			if err != nil {
				return err
			}
			it := domain.OrderItem{
				OrderID:    o.ID,
				MenuItemID: menu.ID,
				Name:       menu.Name,
				Quantity:   req.Quantity,
				Price:      menu.Price,
				Note:       req.Note,
				Status:     domain.ItemPending,
				BatchID:    batchID,
			}
			if err := tx.InsertOrderItem(ctx, &it); err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
			pairs = append(pairs, recipe.ItemQty{MenuItemID: menu.ID, Qty: req.Quantity})
		}

		need, err := recipe.Resolve(ctx, tx, pairs)
		if err != nil {
			return err
		}
		lowStock, err := ledger.Consume(ctx, tx, need, ledger.Ref{Type: domain.RefOrder, ID: o.ID})
		if err != nil {
			return err
		}

		o.Items, err = tx.ListOrderItems(ctx, o.ID)
		if err != nil {
			return err
		}
		order = o
		events = append(events, orderChanged(o.ID, fanout.ReasonItemsAdded, o))
		events = append(events, lowStockEvents(lowStock)...)
		return nil
	})
	if err != nil {
		s.logger.Error(requestID, "add_items_failed", "Failed to add items", err)
		return nil, err
	}

	s.emit(requestID, events)
	return order, nil
}

// SetItemQuantity resizes one line. Zero deletes the row and restores
// its inventory; an increase debits the delta and notifies the kitchen
// for the increment; a decrease credits the delta and reconciles the
// already-notified kitchen tickets by the same amount.
func (s *Service) SetItemQuantity(ctx context.Context, requestID string, orderID, itemID int64, qty int, actor, source string) (*domain.Order, error) {
	if qty < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative, got %d", domain.ErrBadQuantity, qty)
	}

	var (
		order  *domain.Order
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
		it, err := tx.GetOrderItem(ctx, itemID)
		if err != nil {
			return err
		}
		if it.OrderID != orderID {
			return fmt.Errorf("%w: item %d does not belong to order %d", domain.ErrItemNotFound, itemID, orderID)
		}

		switch {
		case qty == it.Quantity:
			// No-op, idempotent.
		case qty == 0:
			evs, err := removeLine(ctx, tx, o, it, it.Quantity, actor, source, "quantity set to zero")
			if err != nil {
				return err
			}
			events = append(events, evs...)
		case qty > it.Quantity:
			delta := qty - it.Quantity
			need, err := recipe.Resolve(ctx, tx, []recipe.ItemQty{{MenuItemID: it.MenuItemID, Qty: delta}})
			if err != nil {
				return err
			}
			lowStock, err := ledger.Consume(ctx, tx, need, ledger.Ref{Type: domain.RefOrder, ID: o.ID})
			if err != nil {
				return err
			}
			if err := tx.SetOrderItemQuantity(ctx, itemID, qty); err != nil {
				return err
			}

			table, err := tx.GetTable(ctx, o.TableID)
			if err != nil {
				return err
			}
			batch, err := dispatch.Notify(ctx, tx, &domain.KitchenBatch{
				OrderID:   o.ID,
				TableName: table.Name,
				StaffName: actor,
				Note:      "quantity increase",
			}, []dispatch.NotifyLine{{MenuItemID: it.MenuItemID, OrderItemID: &it.ID, Name: it.Name, Qty: delta}})
			if err != nil {
				return err
			}
			events = append(events, pendingEvent{
				groups: []string{fanout.GroupKitchen},
				ev:     fanout.Event{Type: fanout.EventNewKitchenBatch, OrderID: o.ID, Payload: batch},
			})
			events = append(events, lowStockEvents(lowStock)...)
		default:
			delta := it.Quantity - qty
			evs, err := removeLine(ctx, tx, o, it, delta, actor, source, "quantity decrease")
			if err != nil {
				return err
			}
			events = append(events, evs...)
		}

		o.Items, err = tx.ListOrderItems(ctx, o.ID)
		if err != nil {
			return err
		}
		order = o
		events = append(events, orderChanged(o.ID, fanout.ReasonItemQtySet, map[string]any{"item_id": itemID, "quantity": qty}))
		return nil
	})
	if err != nil {
		s.logger.Error(requestID, "set_item_quantity_failed", "Failed to set item quantity", err)
		return nil, err
	}

	s.emit(requestID, events)
	return order, nil
}

// RemoveItem deletes one line entirely, restoring its inventory and
// voiding its kitchen tickets.
func (s *Service) RemoveItem(ctx context.Context, requestID string, orderID, itemID int64, actor, source, reason string) (*domain.Order, error) {
	var (
		order  *domain.Order
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
		it, err := tx.GetOrderItem(ctx, itemID)
		if err != nil {
			return err
		}
		if it.OrderID != orderID {
			return fmt.Errorf("%w: item %d does not belong to order %d", domain.ErrItemNotFound, itemID, orderID)
		}

		evs, err := removeLine(ctx, tx, o, it, it.Quantity, actor, source, reason)
		if err != nil {
			return err
		}
		events = append(events, evs...)

		o.Items, err = tx.ListOrderItems(ctx, o.ID)
		if err != nil {
			return err
		}
		order = o
		events = append(events, orderChanged(o.ID, fanout.ReasonItemRemoved, map[string]any{"item_id": itemID}))
		return nil
	})
	if err != nil {
		s.logger.Error(requestID, "remove_item_failed", "Failed to remove item", err)
		return nil, err
	}

	s.emit(requestID, events)
	return order, nil
}

// removeLine shrinks or deletes one line by qty units: credits the
// inventory delta, reconciles kitchen tickets for the same amount and
// writes the void audit record. Deleting the line recomputes the
// derived order status since the aggregate item set changed.
func removeLine(ctx context.Context, tx store.Tx, o *domain.Order, it *domain.OrderItem, qty int, actor, source, reason string) ([]pendingEvent, error) {
	back, err := recipe.Resolve(ctx, tx, []recipe.ItemQty{{MenuItemID: it.MenuItemID, Qty: qty}})
	if err != nil {
		return nil, err
	}
	refType := domain.RefSalesReturn
	if err := ledger.Restore(ctx, tx, back, ledger.Ref{Type: refType, ID: o.ID, Note: reason}); err != nil {
		return nil, err
	}

	deleted := qty == it.Quantity
	if deleted {
		if err := tx.DeleteOrderItem(ctx, it.ID); err != nil {
			return nil, err
		}
	} else {
		if err := tx.SetOrderItemQuantity(ctx, it.ID, it.Quantity-qty); err != nil {
			return nil, err
		}
	}

	voided, err := dispatch.VoidByMenu(ctx, tx, o.ID, it.MenuItemID, qty)
	if err != nil {
		return nil, err
	}

	table, err := tx.GetTable(ctx, o.TableID)
	if err != nil {
		return nil, err
	}
	if err := tx.InsertVoidEvent(ctx, &domain.VoidEvent{
		OrderID:    o.ID,
		TableName:  table.Name,
		MenuItemID: it.MenuItemID,
		ItemName:   it.Name,
		Quantity:   qty,
		Source:     source,
		Actor:      actor,
		Reason:     reason,
	}); err != nil {
		return nil, err
	}

	var events []pendingEvent
	if len(voided.Patches) > 0 {
		events = append(events, pendingEvent{
			groups: fanout.AllGroups,
			ev:     fanout.Event{Type: fanout.EventTicketsVoided, OrderID: o.ID, Payload: voided},
		})
	}
	if deleted {
		evs, err := deriveOrderStatus(ctx, tx, o, actor)
		if err != nil {
			return nil, err
		}
		events = append(events, evs...)
	}
	return events, nil
}

// UpdateItemStatusBulk moves a set of the order's items to one target
// status. Rows already there are skipped; an invalid row aborts the
// whole call. The order status is re-derived afterwards.
func (s *Service) UpdateItemStatusBulk(ctx context.Context, requestID string, orderID int64, itemIDs []int64, to domain.ItemStatus, actor string) ([]domain.BulkOutcome, error) {
	var (
		outcomes []domain.BulkOutcome
		events   []pendingEvent
	)
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		// One ticket fetch for the whole batch, indexed by linked item.
		tickets, err := tx.ListTicketsByOrder(ctx, orderID, domain.TicketLiveStatuses)
		if err != nil {
			return err
		}
		byItem := make(map[int64][]domain.KitchenTicket, len(tickets))
		for _, tk := range tickets {
			if tk.OrderItemID != nil {
				byItem[*tk.OrderItemID] = append(byItem[*tk.OrderItemID], tk)
			}
		}

		target := domain.TicketStatus(to)
		for _, id := range itemIDs {
			it, err := tx.GetOrderItem(ctx, id)
			if err != nil {
				return err
			}
			if it.OrderID != orderID {
				return fmt.Errorf("%w: item %d does not belong to order %d", domain.ErrItemNotFound, id, orderID)
			}
			if it.Status == to {
				outcomes = append(outcomes, domain.BulkOutcome{ID: id, From: it.Status, To: to, Result: domain.BulkSkipped})
				continue
			}
			if !it.Status.CanTransitionTo(to) {
				return fmt.Errorf("%w: item %d %s -> %s", domain.ErrInvalidItemTransition, id, it.Status, to)
			}
			if err := tx.SetOrderItemStatus(ctx, id, to); err != nil {
				return err
			}
			outcomes = append(outcomes, domain.BulkOutcome{ID: id, From: it.Status, To: to, Result: domain.BulkApplied})

			// Mirror the progress onto live linked tickets when their
			// own state machine allows it.
			for _, tk := range byItem[id] {
				if tk.Status.CanTransitionTo(target) {
					if err := tx.SetTicketStatus(ctx, tk.ID, target); err != nil {
						return err
					}
				}
			}
		}

		evs, err := deriveOrderStatus(ctx, tx, o, actor)
		if err != nil {
			return err
		}
		events = append(events, evs...)
		return nil
	})
	if err != nil {
		s.logger.Error(requestID, "bulk_item_status_failed", "Failed bulk item status update", err)
		return nil, err
	}

	s.emit(requestID, events)
	return outcomes, nil
}

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

// UpdateOrderStatus drives one explicit order transition. A CONFIRMED
// request against an order already past PENDING (and still in flight)
// is a soft re-confirm: no status change, one history record, one
// re-emitted event so the kitchen sees the order again.
func (s *Service) UpdateOrderStatus(ctx context.Context, requestID string, orderID int64, to domain.OrderStatus, actor string) (*domain.Order, error) {
	var (
		order      *domain.Order
		events     []pendingEvent
		transition bool
	)
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		if to == domain.OrderConfirmed && o.Status.SoftReconfirmable() {
			if err := tx.AppendStatusLog(ctx, &domain.StatusLog{
				OrderID: o.ID, Status: string(o.Status), ChangedBy: actor, Note: "soft re-confirm",
			}); err != nil {
				return err
			}
			order = o
			events = append(events, orderChanged(o.ID, fanout.ReasonOrderStatus, map[string]any{"status": o.Status, "reconfirm": true}))
			return nil
		}

		if !o.Status.CanTransitionTo(to) {
			return fmt.Errorf("%w: order %d %s -> %s", domain.ErrInvalidTransition, orderID, o.Status, to)
		}

		if to == domain.OrderCancelled {
			evs, err := s.cancelLocked(ctx, tx, o, actor, fanout.GroupCashier, "")
			if err != nil {
				return err
			}
			order = o
			transition = true
			events = append(events, evs...)
			return nil
		}

		if err := tx.SetOrderStatus(ctx, o.ID, to); err != nil {
			return err
		}
		if err := tx.AppendStatusLog(ctx, &domain.StatusLog{
			OrderID: o.ID, Status: string(to), ChangedBy: actor,
		}); err != nil {
			return err
		}
		o.Status = to
		order = o
		transition = true
		events = append(events, orderChanged(o.ID, fanout.ReasonOrderStatus, map[string]any{"status": to}))
		return nil
	})
	if err != nil {
		s.logger.Error(requestID, "order_status_failed", "Failed to update order status", err)
		return nil, err
	}

	// Invoice bookkeeping happens outside the order transaction and only
	// on an actual transition, never on a soft re-confirm.
	if transition && s.invoices != nil {
		switch order.Status {
		case domain.OrderServed:
			if err := s.invoices.CreateInvoiceFromOrder(ctx, order.ID); err != nil {
				s.logger.Error(requestID, "invoice_create_failed", "Failed to create invoice", err)
			}
		case domain.OrderPaid:
			if err := s.invoices.MarkPaid(ctx, order.ID); err != nil {
				s.logger.Error(requestID, "invoice_mark_paid_failed", "Failed to mark invoice paid", err)
			}
		case domain.OrderCancelled:
			if err := s.invoices.CancelInvoice(ctx, order.ID); err != nil {
				s.logger.Error(requestID, "invoice_cancel_failed", "Failed to cancel invoice", err)
			}
		}
	}

	s.emit(requestID, events)
	return order, nil
}

// CancelOrder cancels the whole order: inventory for every live item is
// restored, items are cancelled with audit records, every live kitchen
// ticket is voided and the table is freed if this order held it alone.
func (s *Service) CancelOrder(ctx context.Context, requestID string, orderID int64, actor, source, reason string) (*domain.Order, error) {
	var (
		order  *domain.Order
		events []pendingEvent
	)
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.Status.CanTransitionTo(domain.OrderCancelled) {
			return fmt.Errorf("%w: order %d %s -> %s", domain.ErrInvalidTransition, orderID, o.Status, domain.OrderCancelled)
		}

		evs, err := s.cancelLocked(ctx, tx, o, actor, source, reason)
		if err != nil {
			return err
		}
		order = o
		events = append(events, evs...)
		return nil
	})
	if err != nil {
		s.logger.Error(requestID, "order_cancel_failed", "Failed to cancel order", err)
		return nil, err
	}

	// Invoice bookkeeping is a collaborator concern outside the order
	// transaction. The invoice moves to its explicit CANCELLED terminal
	// state; a failure here is logged, never rolled back against.
	if s.invoices != nil {
		if err := s.invoices.CancelInvoice(ctx, orderID); err != nil {
			s.logger.Error(requestID, "invoice_cancel_failed", "Failed to cancel invoice", err)
		}
	}

	s.logger.Info(requestID, "order_cancelled", fmt.Sprintf("Order %d cancelled", orderID))
	s.emit(requestID, events)
	return order, nil
}

// cancelLocked performs the in-transaction part of a cancel. The order
// row must already be locked by the caller.
func (s *Service) cancelLocked(ctx context.Context, tx store.Tx, o *domain.Order, actor, source, reason string) ([]pendingEvent, error) {
	items, err := tx.LockOrderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	table, err := tx.GetTable(ctx, o.TableID)
	if err != nil {
		return nil, err
	}

	var pairs []recipe.ItemQty
	for _, it := range items {
		if it.Status == domain.ItemCancelled {
			continue
		}
		pairs = append(pairs, recipe.ItemQty{MenuItemID: it.MenuItemID, Qty: it.Quantity})
	}
	back, err := recipe.Resolve(ctx, tx, pairs)
	if err != nil {
		return nil, err
	}
	if err := ledger.Restore(ctx, tx, back, ledger.Ref{Type: domain.RefOrderCancel, ID: o.ID, Note: reason}); err != nil {
		return nil, err
	}

	for _, it := range items {
		if it.Status == domain.ItemCancelled {
			continue
		}
		if err := tx.CancelOrderItem(ctx, it.ID, actor, reason); err != nil {
			return nil, err
		}
		if err := tx.InsertVoidEvent(ctx, &domain.VoidEvent{
			OrderID:    o.ID,
			TableName:  table.Name,
			MenuItemID: it.MenuItemID,
			ItemName:   it.Name,
			Quantity:   it.Quantity,
			Source:     source,
			Actor:      actor,
			Reason:     reason,
		}); err != nil {
			return nil, err
		}
	}

	if _, err := dispatch.CancelAllByOrder(ctx, tx, o.ID, actor, reason); err != nil {
		return nil, err
	}

	if err := tx.SetOrderStatus(ctx, o.ID, domain.OrderCancelled); err != nil {
		return nil, err
	}
	if err := tx.AppendStatusLog(ctx, &domain.StatusLog{
		OrderID: o.ID, Status: string(domain.OrderCancelled), ChangedBy: actor, Note: reason,
	}); err != nil {
		return nil, err
	}
	o.Status = domain.OrderCancelled

	active, err := tx.CountActiveOrdersByTable(ctx, o.TableID, o.ID)
	if err != nil {
		return nil, err
	}
	if active == 0 {
		if err := tx.SetTableOccupied(ctx, o.TableID, false); err != nil {
			return nil, err
		}
	}

	return []pendingEvent{
		orderChanged(o.ID, fanout.ReasonOrderCancelled, map[string]any{"reason": reason}),
		{
			groups: []string{fanout.GroupKitchen},
			ev:     fanout.Event{Type: fanout.EventOrderVoided, OrderID: o.ID},
		},
	}, nil
}

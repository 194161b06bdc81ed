package coordinator

import (
	"context"
	"fmt"

	"dishpatch/internal/domain"
	"dishpatch/internal/fanout"
	"dishpatch/internal/store"
)

type foldKey struct {
	menuItemID int64
	note       string
}

// MergeOrders folds every live item of the source order into the target
// order, repoints the source's kitchen tickets and marks the source
// MERGED. Both order rows and the participating item rows are locked
// before any read that feeds a mutation, so concurrent merge, split and
// cancel attempts on the same orders serialize.
func (s *Service) MergeOrders(ctx context.Context, requestID string, fromID, toID int64, actor string) (*domain.Order, error) {
	if fromID == toID {
		return nil, fmt.Errorf("%w: cannot merge order %d into itself", domain.ErrOrderNotMergeable, fromID)
	}

	var (
		target *domain.Order
		events []pendingEvent
	)
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		// Lock in id order so two opposite merges cannot deadlock.
		firstID, secondID := fromID, toID
		if toID < fromID {
			firstID, secondID = toID, fromID
		}
		first, err := tx.GetOrderForUpdate(ctx, firstID)
		if err != nil {
			return err
		}
		second, err := tx.GetOrderForUpdate(ctx, secondID)
		if err != nil {
			return err
		}
		from, to := first, second
		if from.ID != fromID {
			from, to = second, first
		}

		if to.Status.Terminal() {
			return fmt.Errorf("%w: target order %d is %s", domain.ErrOrderNotMergeable, toID, to.Status)
		}
		if from.Status.Terminal() {
			return fmt.Errorf("%w: source order %d is %s", domain.ErrOrderNotMergeable, fromID, from.Status)
		}

		fromItems, err := tx.LockOrderItems(ctx, fromID)
		if err != nil {
			return err
		}
		toItems, err := tx.LockOrderItems(ctx, toID)
		if err != nil {
			return err
		}

		index := make(map[foldKey]domain.OrderItem, len(toItems))
		for _, it := range toItems {
			if it.Status != domain.ItemCancelled {
				index[foldKey{it.MenuItemID, it.Note}] = it
			}
		}

		for _, it := range fromItems {
			if it.Status == domain.ItemCancelled {
				continue
			}
			key := foldKey{it.MenuItemID, it.Note}
			if existing, ok := index[key]; ok {
				if err := tx.SetOrderItemQuantity(ctx, existing.ID, existing.Quantity+it.Quantity); err != nil {
					return err
				}
				existing.Quantity += it.Quantity
				index[key] = existing
				if err := tx.DeleteOrderItem(ctx, it.ID); err != nil {
					return err
				}
			} else {
				if err := tx.ReassignOrderItem(ctx, it.ID, toID); err != nil {
					return err
				}
				it.OrderID = toID
				index[key] = it
			}
		}

		if err := tx.ReassignTickets(ctx, fromID, toID); err != nil {
			return err
		}

		if err := tx.SetOrderStatus(ctx, fromID, domain.OrderMerged); err != nil {
			return err
		}
		if err := tx.AppendStatusLog(ctx, &domain.StatusLog{
			OrderID: fromID, Status: string(domain.OrderMerged), ChangedBy: actor,
			Note: fmt.Sprintf("merged into order %d", toID),
		}); err != nil {
			return err
		}
		if err := tx.AppendStatusLog(ctx, &domain.StatusLog{
			OrderID: toID, Status: string(to.Status), ChangedBy: actor,
			Note: fmt.Sprintf("absorbed order %d", fromID),
		}); err != nil {
			return err
		}

		// Free the source table unless another live order still sits on it.
		if from.TableID != to.TableID {
			active, err := tx.CountActiveOrdersByTable(ctx, from.TableID, fromID)
			if err != nil {
				return err
			}
			if active == 0 {
				if err := tx.SetTableOccupied(ctx, from.TableID, false); err != nil {
					return err
				}
			}
		}

		to.Items, err = tx.ListOrderItems(ctx, toID)
		if err != nil {
			return err
		}
		target = to
		events = append(events,
			orderChanged(fromID, fanout.ReasonMerged, map[string]any{"merged_into": toID}),
			orderChanged(toID, fanout.ReasonMerged, map[string]any{"absorbed": fromID}),
		)
		return nil
	})
	if err != nil {
		s.logger.Error(requestID, "merge_failed", "Failed to merge orders", err)
		return nil, err
	}

	s.logger.Info(requestID, "orders_merged", fmt.Sprintf("Order %d merged into %d", fromID, toID))
	s.emit(requestID, events)
	return target, nil
}

// SplitLine is one (source item, quantity to move) pair of a split.
type SplitLine struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

// SplitRequest moves quantities out of a source order into an existing
// order or a brand-new one on the given table (source's table when nil).
type SplitRequest struct {
	TargetOrderID *int64      `json:"target_order_id,omitempty"`
	TableID       *int64      `json:"table_id,omitempty"`
	Lines         []SplitLine `json:"items"`
}

// SplitOrder moves per-item quantities into the target order, folding
// by (menu item, note) like merge. The source must keep at least one
// unit of total quantity; a split can never empty it.
func (s *Service) SplitOrder(ctx context.Context, requestID string, fromID int64, req SplitRequest, actor string) (*domain.Order, error) {
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: no quantities to split", domain.ErrBadQuantity)
	}

	var (
		target *domain.Order
		events []pendingEvent
	)
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		from, err := tx.GetOrderForUpdate(ctx, fromID)
		if err != nil {
			return err
		}
		if !from.Status.Editable() {
			return fmt.Errorf("%w: order %d is %s", domain.ErrOrderNotEditable, fromID, from.Status)
		}

		fromItems, err := tx.LockOrderItems(ctx, fromID)
		if err != nil {
			return err
		}
		byID := make(map[int64]domain.OrderItem, len(fromItems))
		totalLive := 0
		for _, it := range fromItems {
			byID[it.ID] = it
			if it.Status != domain.ItemCancelled {
				totalLive += it.Quantity
			}
		}

		moved := 0
		for _, line := range req.Lines {
			it, ok := byID[line.ItemID]
			if !ok || it.OrderID != fromID {
				return fmt.Errorf("%w: item %d does not belong to order %d", domain.ErrItemNotFound, line.ItemID, fromID)
			}
			if it.Status == domain.ItemCancelled {
				return fmt.Errorf("%w: item %d is cancelled", domain.ErrItemNotFound, line.ItemID)
			}
			if line.Quantity <= 0 || line.Quantity > it.Quantity {
				return fmt.Errorf("%w: cannot move %d of %d from item %d",
					domain.ErrBadQuantity, line.Quantity, it.Quantity, line.ItemID)
			}
			moved += line.Quantity
		}
		if totalLive-moved < 1 {
			return fmt.Errorf("%w: split would leave order %d empty", domain.ErrSourceWouldBeEmpty, fromID)
		}

		var to *domain.Order
		if req.TargetOrderID != nil {
			to, err = tx.GetOrderForUpdate(ctx, *req.TargetOrderID)
			if err != nil {
				return err
			}
			if to.Status.Terminal() {
				return fmt.Errorf("%w: target order %d is %s", domain.ErrOrderNotMergeable, to.ID, to.Status)
			}
		} else {
			tableID := from.TableID
			if req.TableID != nil {
				tableID = *req.TableID
			}
			if _, err := tx.GetTable(ctx, tableID); err != nil {
				return err
			}
			to = &domain.Order{TableID: tableID, CreatedBy: actor, Status: domain.OrderPending}
			if err := tx.InsertOrder(ctx, to); err != nil {
				return err
			}
			if err := tx.SetTableOccupied(ctx, tableID, true); err != nil {
				return err
			}
			if err := tx.AppendStatusLog(ctx, &domain.StatusLog{
				OrderID: to.ID, Status: string(domain.OrderPending), ChangedBy: actor,
				Note: fmt.Sprintf("split from order %d", fromID),
			}); err != nil {
				return err
			}
		}

		toItems, err := tx.LockOrderItems(ctx, to.ID)
		if err != nil {
			return err
		}
		index := make(map[foldKey]domain.OrderItem, len(toItems))
		for _, it := range toItems {
			if it.Status != domain.ItemCancelled {
				index[foldKey{it.MenuItemID, it.Note}] = it
			}
		}

		for _, line := range req.Lines {
			src := byID[line.ItemID]
			key := foldKey{src.MenuItemID, src.Note}
			reassigned := false

			if existing, ok := index[key]; ok {
				if err := tx.SetOrderItemQuantity(ctx, existing.ID, existing.Quantity+line.Quantity); err != nil {
					return err
				}
				existing.Quantity += line.Quantity
				index[key] = existing
			} else if line.Quantity == src.Quantity {
				if err := tx.ReassignOrderItem(ctx, src.ID, to.ID); err != nil {
					return err
				}
				src.OrderID = to.ID
				index[key] = src
				reassigned = true
			} else {
				dst := domain.OrderItem{
					OrderID:    to.ID,
					MenuItemID: src.MenuItemID,
					Name:       src.Name,
					Quantity:   line.Quantity,
					Price:      src.Price,
					Note:       src.Note,
					Status:     src.Status,
				}
				if err := tx.InsertOrderItem(ctx, &dst); err != nil {
					return err
				}
				index[key] = dst
			}

			// Shrink the source row, or drop it when its whole quantity
			// folded into an existing target row.
			if reassigned {
				continue
			}
			if line.Quantity < src.Quantity {
				remaining := src.Quantity - line.Quantity
				if err := tx.SetOrderItemQuantity(ctx, src.ID, remaining); err != nil {
					return err
				}
				src.Quantity = remaining
				byID[line.ItemID] = src
			} else {
				if err := tx.DeleteOrderItem(ctx, src.ID); err != nil {
					return err
				}
			}
		}

		if err := tx.AppendStatusLog(ctx, &domain.StatusLog{
			OrderID: fromID, Status: string(from.Status), ChangedBy: actor,
			Note: fmt.Sprintf("split %d units into order %d", moved, to.ID),
		}); err != nil {
			return err
		}

		evs, err := deriveOrderStatus(ctx, tx, to, actor)
		if err != nil {
			return err
		}
		events = append(events, evs...)

		to.Items, err = tx.ListOrderItems(ctx, to.ID)
		if err != nil {
			return err
		}
		target = to
		events = append(events,
			orderChanged(fromID, fanout.ReasonSplit, map[string]any{"split_into": to.ID, "moved": moved}),
			orderChanged(to.ID, fanout.ReasonSplit, map[string]any{"split_from": fromID, "moved": moved}),
		)
		return nil
	})
	if err != nil {
		s.logger.Error(requestID, "split_failed", "Failed to split order", err)
		return nil, err
	}

	s.emit(requestID, events)
	return target, nil
}

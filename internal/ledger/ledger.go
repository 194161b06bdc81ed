// Package ledger is the only writer of inventory quantities. Every
// mutation runs inside the caller's transaction and appends one
// append-only InventoryTransaction per affected item, so the audit
// trail always matches the stock it describes.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"dishpatch/internal/domain"
	"dishpatch/internal/store"
)

// Ref ties a ledger movement back to the operation that caused it.
type Ref struct {
	Type string
	ID   int64
	Note string
}

// Consume debits the given per-item quantities (OUT). Stock is
// validated for every item before any row is touched; if one item is
// short the whole batch fails and nothing is debited. Returns the items
// whose on-hand quantity crossed their alert threshold.
func Consume(ctx context.Context, tx store.Tx, need map[int64]float64, ref Ref) ([]domain.InventoryItem, error) {
	if len(need) == 0 {
		return nil, nil
	}

	items, err := lockItems(ctx, tx, need)
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		if it.Quantity < need[it.ID] {
			return nil, fmt.Errorf("%w: %s cần %s, còn %s",
				domain.ErrInsufficientStock, it.Name, fmtQty(need[it.ID]), fmtQty(it.Quantity))
		}
	}

	var lowStock []domain.InventoryItem
	for _, it := range items {
		delta := need[it.ID]
		after := it.Quantity - delta
		if err := apply(ctx, tx, it, -delta, after, domain.InventoryOut, ref); err != nil {
			return nil, err
		}
		if it.AlertThreshold > 0 && it.Quantity > it.AlertThreshold && after <= it.AlertThreshold {
			crossed := it
			crossed.Quantity = after
			lowStock = append(lowStock, crossed)
		}
	}
	return lowStock, nil
}

// Restore credits the given per-item quantities (IN) without a stock
// check, used when cancels, voids and removals return ingredients.
func Restore(ctx context.Context, tx store.Tx, qty map[int64]float64, ref Ref) error {
	if len(qty) == 0 {
		return nil
	}

	items, err := lockItems(ctx, tx, qty)
	if err != nil {
		return err
	}

	for _, it := range items {
		delta := qty[it.ID]
		if err := apply(ctx, tx, it, delta, it.Quantity+delta, domain.InventoryIn, ref); err != nil {
			return err
		}
	}
	return nil
}

// Move applies one signed adjustment to a single item for back-office
// actions (IMPORT, ADJUST, WASTE). Negative deltas are validated
// against on-hand stock.
func Move(ctx context.Context, tx store.Tx, itemID int64, delta float64, action domain.InventoryAction, ref Ref) (*domain.InventoryItem, error) {
	items, err := tx.GetInventoryItemsForUpdate(ctx, []int64{itemID})
	if err != nil {
		return nil, err
	}
	it := items[0]

	after := it.Quantity + delta
	if after < 0 {
		return nil, fmt.Errorf("%w: %s cần %s, còn %s",
			domain.ErrInsufficientStock, it.Name, fmtQty(-delta), fmtQty(it.Quantity))
	}
	if err := apply(ctx, tx, it, delta, after, action, ref); err != nil {
		return nil, err
	}
	it.Quantity = after
	return &it, nil
}

func lockItems(ctx context.Context, tx store.Tx, deltas map[int64]float64) ([]domain.InventoryItem, error) {
	ids := make([]int64, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return tx.GetInventoryItemsForUpdate(ctx, ids)
}

func apply(ctx context.Context, tx store.Tx, it domain.InventoryItem, delta, after float64, action domain.InventoryAction, ref Ref) error {
	if err := tx.SetInventoryQuantity(ctx, it.ID, after); err != nil {
		return err
	}
	return tx.InsertInventoryTransaction(ctx, &domain.InventoryTransaction{
		ItemID:  it.ID,
		Delta:   delta,
		Action:  action,
		Before:  it.Quantity,
		After:   after,
		RefType: ref.Type,
		RefID:   ref.ID,
		Note:    ref.Note,
	})
}

func fmtQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

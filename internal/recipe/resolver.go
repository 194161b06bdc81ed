// Package recipe maps menu items to the stock they consume.
package recipe

import (
	"context"

	"dishpatch/internal/store"
)

// ItemQty is one (menu item, ordered quantity) pair.
type ItemQty struct {
	MenuItemID int64
	Qty        int
}

// Resolve expands each menu item into its recipe lines, multiplies each
// line by the ordered quantity and sums the result into one requirement
// per inventory item. Menu items sharing an ingredient combine into a
// single figure. Menu items without a recipe contribute nothing.
func Resolve(ctx context.Context, tx store.Tx, pairs []ItemQty) (map[int64]float64, error) {
	perMenuItem := make(map[int64]int, len(pairs))
	ids := make([]int64, 0, len(pairs))
	for _, p := range pairs {
		if _, seen := perMenuItem[p.MenuItemID]; !seen {
			ids = append(ids, p.MenuItemID)
		}
		perMenuItem[p.MenuItemID] += p.Qty
	}

	lines, err := tx.ListIngredientsByMenuItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	need := make(map[int64]float64)
	for _, line := range lines {
		qty := perMenuItem[line.MenuItemID]
		if qty == 0 {
			continue
		}
		need[line.InventoryItemID] += line.Quantity * float64(qty)
	}
	return need, nil
}

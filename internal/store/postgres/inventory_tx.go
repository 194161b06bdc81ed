package postgres

import (
	"context"
	"errors"
	"fmt"

	"dishpatch/internal/domain"

	"github.com/jackc/pgx/v5"
)

func (t *pgTx) InsertIngredient(ctx context.Context, ing *domain.Ingredient) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO ingredients (menu_item_id, inventory_item_id, quantity)
		VALUES ($1, $2, $3)
	`, ing.MenuItemID, ing.InventoryItemID, ing.Quantity)
	return err
}

func (t *pgTx) ListIngredientsByMenuItems(ctx context.Context, menuItemIDs []int64) ([]domain.Ingredient, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT menu_item_id, inventory_item_id, quantity
		FROM ingredients WHERE menu_item_id = ANY($1)
	`, menuItemIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Ingredient
	for rows.Next() {
		var ing domain.Ingredient
		if err := rows.Scan(&ing.MenuItemID, &ing.InventoryItemID, &ing.Quantity); err != nil {
			return nil, err
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertInventoryItem(ctx context.Context, it *domain.InventoryItem) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO inventory_items (name, unit, quantity, alert_threshold)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, it.Name, it.Unit, it.Quantity, it.AlertThreshold).Scan(&it.ID)
}

func (t *pgTx) GetInventoryItem(ctx context.Context, id int64) (*domain.InventoryItem, error) {
	var it domain.InventoryItem
	err := t.tx.QueryRow(ctx, `
		SELECT id, name, unit, quantity, alert_threshold FROM inventory_items WHERE id = $1
	`, id).Scan(&it.ID, &it.Name, &it.Unit, &it.Quantity, &it.AlertThreshold)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("inventory item %d not found", id)
		}
		return nil, err
	}
	return &it, nil
}

// GetInventoryItemsForUpdate locks the rows in ascending id order so two
// transactions debiting overlapping ingredient sets cannot deadlock.
func (t *pgTx) GetInventoryItemsForUpdate(ctx context.Context, ids []int64) ([]domain.InventoryItem, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, name, unit, quantity, alert_threshold
		FROM inventory_items WHERE id = ANY($1)
		ORDER BY id FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.InventoryItem
	for rows.Next() {
		var it domain.InventoryItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Unit, &it.Quantity, &it.AlertThreshold); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) != len(ids) {
		return nil, fmt.Errorf("inventory items missing: want %d rows, got %d", len(ids), len(out))
	}
	return out, nil
}

func (t *pgTx) SetInventoryQuantity(ctx context.Context, id int64, qty float64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE inventory_items SET quantity = $2 WHERE id = $1`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inventory item %d not found", id)
	}
	return nil
}

func (t *pgTx) InsertInventoryTransaction(ctx context.Context, txn *domain.InventoryTransaction) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO inventory_transactions (item_id, delta, action, before_qty, after_qty, ref_type, ref_id, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, txn.ItemID, txn.Delta, txn.Action, txn.Before, txn.After, txn.RefType, txn.RefID, txn.Note).
		Scan(&txn.ID, &txn.CreatedAt)
}

func (t *pgTx) ListInventoryTransactions(ctx context.Context, itemID int64) ([]domain.InventoryTransaction, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, item_id, delta, action, before_qty, after_qty, ref_type, ref_id, note, created_at
		FROM inventory_transactions WHERE item_id = $1 ORDER BY id
	`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.InventoryTransaction
	for rows.Next() {
		var txn domain.InventoryTransaction
		if err := rows.Scan(&txn.ID, &txn.ItemID, &txn.Delta, &txn.Action, &txn.Before, &txn.After,
			&txn.RefType, &txn.RefID, &txn.Note, &txn.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}

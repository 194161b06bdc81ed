package postgres

import (
	"context"
	"errors"
	"fmt"

	"dishpatch/internal/domain"

	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, table_id, created_by, status, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.TableID, &o.CreatedBy, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO orders (table_id, created_by, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, o.TableID, o.CreatedBy, o.Status).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (t *pgTx) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (t *pgTx) GetOrderForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	return scanOrder(row)
}

func (t *pgTx) SetOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %d", domain.ErrOrderNotFound, id)
	}
	return nil
}

const itemColumns = `id, order_id, menu_item_id, name, quantity, price, note, status,
	batch_id, cancelled_by, cancelled_at, cancel_note, created_at`

func scanItem(row pgx.Row) (*domain.OrderItem, error) {
	var it domain.OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.Quantity, &it.Price,
		&it.Note, &it.Status, &it.BatchID, &it.CancelledBy, &it.CancelledAt, &it.CancelNote, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}
	return &it, nil
}

func collectItems(rows pgx.Rows) ([]domain.OrderItem, error) {
	defer rows.Close()
	var out []domain.OrderItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertOrderItem(ctx context.Context, it *domain.OrderItem) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO order_items (order_id, menu_item_id, name, quantity, price, note, status, batch_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, it.OrderID, it.MenuItemID, it.Name, it.Quantity, it.Price, it.Note, it.Status, it.BatchID).
		Scan(&it.ID, &it.CreatedAt)
}

func (t *pgTx) GetOrderItem(ctx context.Context, id int64) (*domain.OrderItem, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM order_items WHERE id = $1`, id)
	return scanItem(row)
}

func (t *pgTx) ListOrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+itemColumns+` FROM order_items WHERE order_id = $1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

func (t *pgTx) LockOrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+itemColumns+` FROM order_items WHERE order_id = $1 ORDER BY id FOR UPDATE
	`, orderID)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

func (t *pgTx) SetOrderItemQuantity(ctx context.Context, id int64, qty int) error {
	tag, err := t.tx.Exec(ctx, `UPDATE order_items SET quantity = $2 WHERE id = $1`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: item %d", domain.ErrItemNotFound, id)
	}
	return nil
}

func (t *pgTx) SetOrderItemStatus(ctx context.Context, id int64, status domain.ItemStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE order_items SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: item %d", domain.ErrItemNotFound, id)
	}
	return nil
}

func (t *pgTx) CancelOrderItem(ctx context.Context, id int64, by, note string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE order_items
		SET status = $2, cancelled_by = $3, cancelled_at = now(), cancel_note = NULLIF($4, '')
		WHERE id = $1
	`, id, domain.ItemCancelled, by, note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: item %d", domain.ErrItemNotFound, id)
	}
	return nil
}

func (t *pgTx) ReassignOrderItem(ctx context.Context, id, toOrderID int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE order_items SET order_id = $2 WHERE id = $1`, id, toOrderID)
	return err
}

func (t *pgTx) DeleteOrderItem(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM order_items WHERE id = $1`, id)
	return err
}

func (t *pgTx) AppendStatusLog(ctx context.Context, l *domain.StatusLog) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, note)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, l.OrderID, l.Status, l.ChangedBy, l.Note).Scan(&l.ID, &l.CreatedAt)
}

func (t *pgTx) ListStatusLog(ctx context.Context, orderID int64) ([]domain.StatusLog, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, order_id, status, changed_by, note, created_at
		FROM order_status_log WHERE order_id = $1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.StatusLog
	for rows.Next() {
		var l domain.StatusLog
		if err := rows.Scan(&l.ID, &l.OrderID, &l.Status, &l.ChangedBy, &l.Note, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertTable(ctx context.Context, tb *domain.Table) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO tables (name, occupied) VALUES ($1, $2) RETURNING id
	`, tb.Name, tb.Occupied).Scan(&tb.ID)
}

func (t *pgTx) GetTable(ctx context.Context, id int64) (*domain.Table, error) {
	var tb domain.Table
	err := t.tx.QueryRow(ctx, `SELECT id, name, occupied FROM tables WHERE id = $1`, id).
		Scan(&tb.ID, &tb.Name, &tb.Occupied)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTableNotFound
		}
		return nil, err
	}
	return &tb, nil
}

func (t *pgTx) SetTableOccupied(ctx context.Context, id int64, occupied bool) error {
	tag, err := t.tx.Exec(ctx, `UPDATE tables SET occupied = $2 WHERE id = $1`, id, occupied)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: table %d", domain.ErrTableNotFound, id)
	}
	return nil
}

func (t *pgTx) CountActiveOrdersByTable(ctx context.Context, tableID, excludeOrderID int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(1) FROM orders
		WHERE table_id = $1 AND id <> $2 AND status NOT IN ('PAID', 'CANCELLED', 'MERGED')
	`, tableID, excludeOrderID).Scan(&n)
	return n, err
}

func (t *pgTx) InsertMenuItem(ctx context.Context, m *domain.MenuItem) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO menu_items (name, price, available) VALUES ($1, $2, $3) RETURNING id
	`, m.Name, m.Price, m.Available).Scan(&m.ID)
}

func (t *pgTx) GetMenuItem(ctx context.Context, id int64) (*domain.MenuItem, error) {
	var m domain.MenuItem
	err := t.tx.QueryRow(ctx, `SELECT id, name, price, available FROM menu_items WHERE id = $1`, id).
		Scan(&m.ID, &m.Name, &m.Price, &m.Available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMenuItemNotFound
		}
		return nil, err
	}
	return &m, nil
}

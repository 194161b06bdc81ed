package postgres

import (
	"context"
	"errors"
	"fmt"

	"dishpatch/internal/domain"

	"github.com/jackc/pgx/v5"
)

func (t *pgTx) InsertBatch(ctx context.Context, b *domain.KitchenBatch) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO kitchen_batches (order_id, table_name, staff_name, priority, note)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, b.OrderID, b.TableName, b.StaffName, b.Priority, b.Note).Scan(&b.ID, &b.CreatedAt)
}

func (t *pgTx) ListBatchesByOrder(ctx context.Context, orderID int64) ([]domain.KitchenBatch, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, order_id, table_name, staff_name, priority, note, created_at
		FROM kitchen_batches WHERE order_id = $1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.KitchenBatch
	for rows.Next() {
		var b domain.KitchenBatch
		if err := rows.Scan(&b.ID, &b.OrderID, &b.TableName, &b.StaffName, &b.Priority, &b.Note, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const ticketColumns = `id, batch_id, order_id, menu_item_id, order_item_id, name, qty, status,
	deleted_at, cancelled_by, cancelled_at, cancel_note, created_at`

func scanTicket(row pgx.Row) (*domain.KitchenTicket, error) {
	var tk domain.KitchenTicket
	err := row.Scan(&tk.ID, &tk.BatchID, &tk.OrderID, &tk.MenuItemID, &tk.OrderItemID, &tk.Name,
		&tk.Qty, &tk.Status, &tk.DeletedAt, &tk.CancelledBy, &tk.CancelledAt, &tk.CancelNote, &tk.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, err
	}
	return &tk, nil
}

func collectTickets(rows pgx.Rows) ([]domain.KitchenTicket, error) {
	defer rows.Close()
	var out []domain.KitchenTicket
	for rows.Next() {
		tk, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tk)
	}
	return out, rows.Err()
}

func ticketStatusStrings(statuses []domain.TicketStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (t *pgTx) InsertTicket(ctx context.Context, tk *domain.KitchenTicket) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO kitchen_tickets (batch_id, order_id, menu_item_id, order_item_id, name, qty, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, tk.BatchID, tk.OrderID, tk.MenuItemID, tk.OrderItemID, tk.Name, tk.Qty, tk.Status).
		Scan(&tk.ID, &tk.CreatedAt)
}

func (t *pgTx) GetTicket(ctx context.Context, id int64) (*domain.KitchenTicket, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+ticketColumns+` FROM kitchen_tickets WHERE id = $1 AND deleted_at IS NULL
	`, id)
	return scanTicket(row)
}

func (t *pgTx) ListTicketsByBatch(ctx context.Context, batchID int64) ([]domain.KitchenTicket, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+ticketColumns+` FROM kitchen_tickets
		WHERE batch_id = $1 AND deleted_at IS NULL ORDER BY id
	`, batchID)
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}

func (t *pgTx) ListTicketsByOrder(ctx context.Context, orderID int64, statuses []domain.TicketStatus) ([]domain.KitchenTicket, error) {
	if len(statuses) == 0 {
		rows, err := t.tx.Query(ctx, `
			SELECT `+ticketColumns+` FROM kitchen_tickets
			WHERE order_id = $1 AND deleted_at IS NULL ORDER BY id
		`, orderID)
		if err != nil {
			return nil, err
		}
		return collectTickets(rows)
	}
	rows, err := t.tx.Query(ctx, `
		SELECT `+ticketColumns+` FROM kitchen_tickets
		WHERE order_id = $1 AND status = ANY($2) AND deleted_at IS NULL ORDER BY id
	`, orderID, ticketStatusStrings(statuses))
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}

// ListVoidableTickets returns tickets newest first; the greedy partial
// void consumes from the most recent notification backwards.
func (t *pgTx) ListVoidableTickets(ctx context.Context, orderID, menuItemID int64) ([]domain.KitchenTicket, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+ticketColumns+` FROM kitchen_tickets
		WHERE order_id = $1 AND menu_item_id = $2 AND status = ANY($3) AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC
		FOR UPDATE
	`, orderID, menuItemID, ticketStatusStrings(domain.TicketVoidableStatuses))
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}

func (t *pgTx) ListTicketsByStatus(ctx context.Context, statuses []domain.TicketStatus) ([]domain.KitchenTicket, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+ticketColumns+` FROM kitchen_tickets
		WHERE status = ANY($1) AND deleted_at IS NULL ORDER BY id
	`, ticketStatusStrings(statuses))
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}

func (t *pgTx) SetTicketQty(ctx context.Context, id int64, qty int) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE kitchen_tickets SET qty = $2 WHERE id = $1 AND deleted_at IS NULL
	`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: ticket %d", domain.ErrTicketNotFound, id)
	}
	return nil
}

func (t *pgTx) SetTicketStatus(ctx context.Context, id int64, status domain.TicketStatus) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE kitchen_tickets SET status = $2 WHERE id = $1 AND deleted_at IS NULL
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: ticket %d", domain.ErrTicketNotFound, id)
	}
	return nil
}

func (t *pgTx) CancelTicket(ctx context.Context, id int64, by, note string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE kitchen_tickets
		SET status = $2, cancelled_by = $3, cancelled_at = now(), cancel_note = NULLIF($4, '')
		WHERE id = $1 AND deleted_at IS NULL
	`, id, domain.TicketCancelled, by, note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: ticket %d", domain.ErrTicketNotFound, id)
	}
	return nil
}

func (t *pgTx) DeleteTicket(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE kitchen_tickets SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: ticket %d", domain.ErrTicketNotFound, id)
	}
	return nil
}

func (t *pgTx) ReassignTickets(ctx context.Context, fromOrderID, toOrderID int64) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE kitchen_tickets SET order_id = $2 WHERE order_id = $1
	`, fromOrderID, toOrderID)
	return err
}

func (t *pgTx) InsertVoidEvent(ctx context.Context, v *domain.VoidEvent) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO void_events (order_id, table_name, menu_item_id, item_name, quantity, source, actor, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, v.OrderID, v.TableName, v.MenuItemID, v.ItemName, v.Quantity, v.Source, v.Actor, v.Reason).
		Scan(&v.ID, &v.CreatedAt)
}

func (t *pgTx) ListVoidEventsByOrder(ctx context.Context, orderID int64) ([]domain.VoidEvent, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, order_id, table_name, menu_item_id, item_name, quantity, source, actor, reason, created_at
		FROM void_events WHERE order_id = $1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.VoidEvent
	for rows.Next() {
		var v domain.VoidEvent
		if err := rows.Scan(&v.ID, &v.OrderID, &v.TableName, &v.MenuItemID, &v.ItemName,
			&v.Quantity, &v.Source, &v.Actor, &v.Reason, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

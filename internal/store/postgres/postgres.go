// Package postgres implements the coordinator store on PostgreSQL via
// pgx. Every unit of work maps to one database transaction; pessimistic
// locks use SELECT ... FOR UPDATE.
package postgres

import (
	"context"
	"fmt"

	"dishpatch/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

type pgTx struct {
	tx pgx.Tx
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tables (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		occupied BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS menu_items (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		available BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		table_id BIGINT NOT NULL REFERENCES tables(id),
		created_by TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		menu_item_id BIGINT NOT NULL REFERENCES menu_items(id),
		name TEXT NOT NULL,
		quantity INT NOT NULL CHECK (quantity > 0),
		price DOUBLE PRECISION NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		batch_id BIGINT,
		cancelled_by TEXT,
		cancelled_at TIMESTAMPTZ,
		cancel_note TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS order_status_log (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		changed_by TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS ingredients (
		menu_item_id BIGINT NOT NULL REFERENCES menu_items(id),
		inventory_item_id BIGINT NOT NULL,
		quantity DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (menu_item_id, inventory_item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_items (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
		alert_threshold DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_transactions (
		id BIGSERIAL PRIMARY KEY,
		item_id BIGINT NOT NULL REFERENCES inventory_items(id),
		delta DOUBLE PRECISION NOT NULL,
		action TEXT NOT NULL,
		before_qty DOUBLE PRECISION NOT NULL,
		after_qty DOUBLE PRECISION NOT NULL,
		ref_type TEXT NOT NULL DEFAULT '',
		ref_id BIGINT NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS kitchen_batches (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL REFERENCES orders(id),
		table_name TEXT NOT NULL,
		staff_name TEXT NOT NULL,
		priority BOOLEAN NOT NULL DEFAULT FALSE,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS kitchen_tickets (
		id BIGSERIAL PRIMARY KEY,
		batch_id BIGINT NOT NULL REFERENCES kitchen_batches(id),
		order_id BIGINT NOT NULL REFERENCES orders(id),
		menu_item_id BIGINT NOT NULL REFERENCES menu_items(id),
		order_item_id BIGINT,
		name TEXT NOT NULL,
		qty INT NOT NULL CHECK (qty > 0),
		status TEXT NOT NULL,
		deleted_at TIMESTAMPTZ,
		cancelled_by TEXT,
		cancelled_at TIMESTAMPTZ,
		cancel_note TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS void_events (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL,
		table_name TEXT NOT NULL DEFAULT '',
		menu_item_id BIGINT NOT NULL,
		item_name TEXT NOT NULL DEFAULT '',
		quantity INT NOT NULL,
		source TEXT NOT NULL,
		actor TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate creates missing tables. Safe to run on every startup.
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

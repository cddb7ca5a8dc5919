// Package migrations applies the database schema on startup. Statements are
// idempotent so re-running on an existing database is safe.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS pos_users (
		id            BIGSERIAL PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name     TEXT NOT NULL,
		email         TEXT NOT NULL,
		phone         TEXT,
		address       TEXT,
		role          TEXT NOT NULL,
		active        BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS pos_categories (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT,
		parent_id   BIGINT REFERENCES pos_categories(id),
		active      BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS pos_products (
		id          BIGSERIAL PRIMARY KEY,
		category_id BIGINT NOT NULL REFERENCES pos_categories(id),
		name        TEXT NOT NULL,
		description TEXT,
		barcode     TEXT UNIQUE,
		price       NUMERIC(18,2) NOT NULL CHECK (price >= 0),
		stock       INTEGER NOT NULL CHECK (stock >= 0),
		image_url   TEXT,
		active      BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS pos_orders (
		id           BIGSERIAL PRIMARY KEY,
		customer_id  BIGINT NOT NULL REFERENCES pos_users(id),
		employee_id  BIGINT REFERENCES pos_users(id),
		order_date   TIMESTAMPTZ NOT NULL,
		total_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		status       TEXT NOT NULL,
		order_type   TEXT NOT NULL,
		notes        TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS pos_order_lines (
		id           BIGSERIAL PRIMARY KEY,
		order_id     BIGINT NOT NULL REFERENCES pos_orders(id),
		product_id   BIGINT NOT NULL REFERENCES pos_products(id),
		product_name TEXT NOT NULL,
		quantity     INTEGER NOT NULL CHECK (quantity > 0),
		unit_price   NUMERIC(18,2) NOT NULL CHECK (unit_price >= 0),
		subtotal     NUMERIC(18,2) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pos_orders_order_date ON pos_orders (order_date)`,
}

// Apply executes every schema statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

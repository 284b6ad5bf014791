// internal/repository/postgres/schema.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		sku TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		family TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS monthly_sales (
		id BIGSERIAL PRIMARY KEY,
		product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		year INT NOT NULL,
		month INT NOT NULL CHECK (month BETWEEN 1 AND 12),
		quantity_sold DOUBLE PRECISION NOT NULL DEFAULT 0,
		net_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (product_id, year, month)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_monthly_sales_period
		ON monthly_sales (year, month)`,
	`CREATE TABLE IF NOT EXISTS current_month_sales (
		id BIGSERIAL PRIMARY KEY,
		product_id BIGINT NOT NULL UNIQUE REFERENCES products(id) ON DELETE CASCADE,
		quantity_sold DOUBLE PRECISION NOT NULL DEFAULT 0,
		net_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		stock_on_hand DOUBLE PRECISION NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_order_lines (
		id BIGSERIAL PRIMARY KEY,
		product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		year INT NOT NULL,
		month INT NOT NULL CHECK (month BETWEEN 1 AND 12),
		quantity DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (product_id, year, month)
	)`,
	`CREATE TABLE IF NOT EXISTS sync_log (
		id BIGSERIAL PRIMARY KEY,
		sync_type TEXT NOT NULL,
		target_year INT NOT NULL DEFAULT 0,
		target_month INT NOT NULL DEFAULT 0,
		document_count INT NOT NULL DEFAULT 0,
		product_count INT NOT NULL DEFAULT 0,
		products_with_sales INT NOT NULL DEFAULT 0,
		message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_log_type_created
		ON sync_log (sync_type, created_at DESC)`,
}

// Bootstrap creates every table and index the application needs. Safe to
// run repeatedly.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}

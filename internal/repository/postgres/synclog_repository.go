// internal/repository/postgres/synclog_repository.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tiendanorte/compraplan/internal/domain"
)

type syncLogRepository struct {
	db *DB
}

func NewSyncLogRepository(db *DB) *syncLogRepository {
	return &syncLogRepository{db: db}
}

func (r *syncLogRepository) Append(ctx context.Context, entry *domain.SyncLogEntry) error {
	query := `
		INSERT INTO sync_log (sync_type, target_year, target_month, document_count, product_count, products_with_sales, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		entry.SyncType, entry.TargetYear, entry.TargetMonth,
		entry.DocumentCount, entry.ProductCount, entry.ProductsWithSales, entry.Message).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append sync log: %w", err)
	}

	return nil
}

func (r *syncLogRepository) List(ctx context.Context, syncType string, limit, offset int) ([]domain.SyncLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, sync_type, target_year, target_month, document_count, product_count, products_with_sales, message, created_at
		FROM sync_log
		WHERE ($1 = '' OR sync_type = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	var entries []domain.SyncLogEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, syncType, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list sync log: %w", err)
	}

	return entries, nil
}

func (r *syncLogRepository) LatestByType(ctx context.Context) (map[string]domain.SyncLogEntry, error) {
	query := `
		SELECT DISTINCT ON (sync_type)
			id, sync_type, target_year, target_month, document_count, product_count, products_with_sales, message, created_at
		FROM sync_log
		ORDER BY sync_type, created_at DESC, id DESC
	`

	var entries []domain.SyncLogEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, query); err != nil {
		return nil, fmt.Errorf("failed to read latest sync log entries: %w", err)
	}

	latest := make(map[string]domain.SyncLogEntry, len(entries))
	for _, e := range entries {
		latest[e.SyncType] = e
	}

	return latest, nil
}

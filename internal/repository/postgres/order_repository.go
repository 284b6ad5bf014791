// internal/repository/postgres/order_repository.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tiendanorte/compraplan/internal/domain"
)

type orderRepository struct {
	db *DB
}

func NewOrderRepository(db *DB) *orderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Upsert(ctx context.Context, productID int64, period domain.Period, quantity float64) error {
	query := `
		INSERT INTO purchase_order_lines (product_id, year, month, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (product_id, year, month)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, productID, period.Year, period.Month, quantity); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
			return fmt.Errorf("product %d: %w", productID, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to upsert order line: %w", err)
	}

	return nil
}

func (r *orderRepository) Delete(ctx context.Context, productID int64, period domain.Period) error {
	query := `
		DELETE FROM purchase_order_lines
		WHERE product_id = $1 AND year = $2 AND month = $3
	`

	if _, err := r.db.ExecContext(ctx, query, productID, period.Year, period.Month); err != nil {
		return fmt.Errorf("failed to delete order line: %w", err)
	}

	return nil
}

func (r *orderRepository) ListForPeriod(ctx context.Context, period domain.Period) ([]domain.PurchaseOrderLine, error) {
	query := `
		SELECT id, product_id, year, month, quantity, created_at, updated_at
		FROM purchase_order_lines
		WHERE year = $1 AND month = $2
		ORDER BY product_id
	`

	var lines []domain.PurchaseOrderLine
	if err := sqlx.SelectContext(ctx, r.db, &lines, query, period.Year, period.Month); err != nil {
		return nil, fmt.Errorf("failed to list order lines: %w", err)
	}

	return lines, nil
}

func (r *orderRepository) ResetPeriod(ctx context.Context, period domain.Period) (int64, error) {
	query := `DELETE FROM purchase_order_lines WHERE year = $1 AND month = $2`

	res, err := r.db.ExecContext(ctx, query, period.Year, period.Month)
	if err != nil {
		return 0, fmt.Errorf("failed to reset order lines: %w", err)
	}
	n, _ := res.RowsAffected()

	return n, nil
}

func (r *orderRepository) DeleteBefore(ctx context.Context, cutoff domain.Period) (int64, error) {
	query := `DELETE FROM purchase_order_lines WHERE (year * 100 + month) < $1`

	res, err := r.db.ExecContext(ctx, query, cutoff.Year*100+cutoff.Month)
	if err != nil {
		return 0, fmt.Errorf("failed to prune order lines: %w", err)
	}
	n, _ := res.RowsAffected()

	return n, nil
}

// internal/repository/postgres/sales_repository.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tiendanorte/compraplan/internal/domain"
)

type salesRepository struct {
	db *DB
}

func NewSalesRepository(db *DB) *salesRepository {
	return &salesRepository{db: db}
}

func (r *salesRepository) AccumulateMonthly(ctx context.Context, rows []domain.MonthlySale) error {
	if len(rows) == 0 {
		return nil
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO monthly_sales (product_id, year, month, quantity_sold, net_amount, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			ON CONFLICT (product_id, year, month)
			DO UPDATE SET
				quantity_sold = monthly_sales.quantity_sold + EXCLUDED.quantity_sold,
				net_amount = monthly_sales.net_amount + EXCLUDED.net_amount,
				updated_at = NOW()
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare accumulate statement: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row.ProductID, row.Year, row.Month, row.QuantitySold, row.NetAmount); err != nil {
				return fmt.Errorf("failed to accumulate monthly sale: %w", err)
			}
		}

		return nil
	})
}

func (r *salesRepository) ReplaceMonth(ctx context.Context, period domain.Period, rows []domain.MonthlySale) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO monthly_sales (product_id, year, month, quantity_sold, net_amount, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			ON CONFLICT (product_id, year, month)
			DO UPDATE SET
				quantity_sold = EXCLUDED.quantity_sold,
				net_amount = EXCLUDED.net_amount,
				updated_at = NOW()
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare replace statement: %w", err)
		}
		defer stmt.Close()

		keepIDs := make([]int64, 0, len(rows))
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row.ProductID, period.Year, period.Month, row.QuantitySold, row.NetAmount); err != nil {
				return fmt.Errorf("failed to replace monthly sale: %w", err)
			}
			keepIDs = append(keepIDs, row.ProductID)
		}

		// Drop products the new aggregate no longer mentions.
		del := `
			DELETE FROM monthly_sales
			WHERE year = $1 AND month = $2 AND NOT (product_id = ANY($3::bigint[]))
		`
		if _, err := tx.ExecContext(ctx, del, period.Year, period.Month, pq.Array(keepIDs)); err != nil {
			return fmt.Errorf("failed to reconcile month: %w", err)
		}

		return nil
	})
}

func (r *salesRepository) GetWindow(ctx context.Context, from, to domain.Period, productIDs []int64) ([]domain.MonthlySale, error) {
	query := `
		SELECT id, product_id, year, month, quantity_sold, net_amount, updated_at
		FROM monthly_sales
		WHERE (year * 100 + month) BETWEEN $1 AND $2
		  AND (cardinality($3::bigint[]) = 0 OR product_id = ANY($3::bigint[]))
		ORDER BY product_id, year, month
	`

	var rows []domain.MonthlySale
	err := sqlx.SelectContext(ctx, r.db, &rows, query,
		from.Year*100+from.Month, to.Year*100+to.Month, pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get sales window: %w", err)
	}

	return rows, nil
}

func (r *salesRepository) DeleteMonthsBefore(ctx context.Context, cutoff domain.Period) (int64, error) {
	query := `DELETE FROM monthly_sales WHERE (year * 100 + month) < $1`

	res, err := r.db.ExecContext(ctx, query, cutoff.Year*100+cutoff.Month)
	if err != nil {
		return 0, fmt.Errorf("failed to prune monthly sales: %w", err)
	}
	n, _ := res.RowsAffected()

	return n, nil
}

func (r *salesRepository) ListCurrent(ctx context.Context) ([]domain.CurrentMonthSale, error) {
	query := `
		SELECT id, product_id, quantity_sold, net_amount, stock_on_hand, updated_at
		FROM current_month_sales
		ORDER BY product_id
	`

	var rows []domain.CurrentMonthSale
	if err := sqlx.SelectContext(ctx, r.db, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list current month sales: %w", err)
	}

	return rows, nil
}

func (r *salesRepository) UpsertCurrentSales(ctx context.Context, rows []domain.CurrentMonthSale) error {
	if len(rows) == 0 {
		return nil
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO current_month_sales (product_id, quantity_sold, net_amount, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (product_id)
			DO UPDATE SET
				quantity_sold = EXCLUDED.quantity_sold,
				net_amount = EXCLUDED.net_amount,
				updated_at = NOW()
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare current upsert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row.ProductID, row.QuantitySold, row.NetAmount); err != nil {
				return fmt.Errorf("failed to upsert current month sale: %w", err)
			}
		}

		return nil
	})
}

func (r *salesRepository) PruneCurrentExcept(ctx context.Context, keepIDs []int64) (int64, error) {
	query := `DELETE FROM current_month_sales WHERE NOT (product_id = ANY($1::bigint[]))`

	res, err := r.db.ExecContext(ctx, query, pq.Array(keepIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile current month sales: %w", err)
	}
	n, _ := res.RowsAffected()

	return n, nil
}

func (r *salesRepository) AttachStock(ctx context.Context, stockByProduct map[int64]float64) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO current_month_sales (product_id, quantity_sold, net_amount, stock_on_hand, updated_at)
			VALUES ($1, 0, 0, $2, NOW())
			ON CONFLICT (product_id)
			DO UPDATE SET stock_on_hand = EXCLUDED.stock_on_hand, updated_at = NOW()
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare stock upsert: %w", err)
		}
		defer stmt.Close()

		withStock := make([]int64, 0, len(stockByProduct))
		for productID, qty := range stockByProduct {
			if _, err := stmt.ExecContext(ctx, productID, qty); err != nil {
				return fmt.Errorf("failed to attach stock: %w", err)
			}
			withStock = append(withStock, productID)
		}

		zero := `
			UPDATE current_month_sales
			SET stock_on_hand = 0, updated_at = NOW()
			WHERE stock_on_hand <> 0 AND NOT (product_id = ANY($1::bigint[]))
		`
		if _, err := tx.ExecContext(ctx, zero, pq.Array(withStock)); err != nil {
			return fmt.Errorf("failed to zero stale stock: %w", err)
		}

		return nil
	})
}

func (r *salesRepository) LatestCurrentUpdate(ctx context.Context) (time.Time, bool, error) {
	query := `SELECT MAX(updated_at) FROM current_month_sales`

	var latest sql.NullTime
	if err := r.db.QueryRowContext(ctx, query).Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read latest current update: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}

	return latest.Time, true, nil
}

func (r *salesRepository) RotateCurrentInto(ctx context.Context, target domain.Period) (int64, error) {
	var moved int64

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		copyQuery := `
			INSERT INTO monthly_sales (product_id, year, month, quantity_sold, net_amount, updated_at)
			SELECT product_id, $1, $2, quantity_sold, net_amount, NOW()
			FROM current_month_sales
			ON CONFLICT (product_id, year, month)
			DO UPDATE SET
				quantity_sold = EXCLUDED.quantity_sold,
				net_amount = EXCLUDED.net_amount,
				updated_at = NOW()
		`
		if _, err := tx.ExecContext(ctx, copyQuery, target.Year, target.Month); err != nil {
			return fmt.Errorf("failed to archive current month: %w", err)
		}

		// Stock survives the rollover; only the sold totals restart.
		zeroQuery := `
			UPDATE current_month_sales
			SET quantity_sold = 0, net_amount = 0, updated_at = NOW()
		`
		res, err := tx.ExecContext(ctx, zeroQuery)
		if err != nil {
			return fmt.Errorf("failed to reset current month: %w", err)
		}
		moved, _ = res.RowsAffected()

		return nil
	})
	if err != nil {
		return 0, err
	}

	return moved, nil
}

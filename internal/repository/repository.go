// internal/repository/repository.go
package repository

import (
	"context"
	"time"

	"github.com/tiendanorte/compraplan/internal/domain"
)

type ProductRepository interface {
	// List returns products whose SKU starts with skuPrefix
	// (case-insensitive); an empty prefix returns the whole catalog.
	List(ctx context.Context, skuPrefix string) ([]domain.Product, error)
	GetBySKU(ctx context.Context, sku string) (*domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, p *domain.Product) error
}

type SalesRepository interface {
	// AccumulateMonthly adds the given quantities on top of whatever the
	// rows' (product, year, month) cells already hold. Used by the daily
	// incremental sync.
	AccumulateMonthly(ctx context.Context, rows []domain.MonthlySale) error

	// ReplaceMonth makes the stored month equal to rows: present products
	// are set to the new totals, absent ones are removed. Idempotent.
	ReplaceMonth(ctx context.Context, period domain.Period, rows []domain.MonthlySale) error

	// GetWindow returns monthly rows with from <= (year, month) <= to.
	// A non-empty productIDs restricts the result to those products.
	GetWindow(ctx context.Context, from, to domain.Period, productIDs []int64) ([]domain.MonthlySale, error)

	DeleteMonthsBefore(ctx context.Context, cutoff domain.Period) (int64, error)

	ListCurrent(ctx context.Context) ([]domain.CurrentMonthSale, error)

	// UpsertCurrentSales sets quantity/net for the given products in the
	// open month, preserving each row's stock_on_hand.
	UpsertCurrentSales(ctx context.Context, rows []domain.CurrentMonthSale) error

	// PruneCurrentExcept removes open-month rows whose product is not in
	// keepIDs. The reconcile step of the current-month rebuild.
	PruneCurrentExcept(ctx context.Context, keepIDs []int64) (int64, error)

	// AttachStock sets stock_on_hand per product, creating zero-sales rows
	// for products that only appear in the snapshot, and zeroes the stock
	// of rows absent from it.
	AttachStock(ctx context.Context, stock map[int64]float64) error

	// LatestCurrentUpdate returns the newest updated_at among open-month
	// rows; ok is false when the table is empty.
	LatestCurrentUpdate(ctx context.Context) (t time.Time, ok bool, err error)

	// RotateCurrentInto copies every open-month row into the monthly table
	// at target (replacing whatever that cell held) and zeroes the
	// open-month quantities in the same transaction, keeping stock values.
	RotateCurrentInto(ctx context.Context, target domain.Period) (int64, error)
}

type OrderRepository interface {
	Upsert(ctx context.Context, productID int64, period domain.Period, quantity float64) error
	Delete(ctx context.Context, productID int64, period domain.Period) error
	ListForPeriod(ctx context.Context, period domain.Period) ([]domain.PurchaseOrderLine, error)
	ResetPeriod(ctx context.Context, period domain.Period) (int64, error)
	DeleteBefore(ctx context.Context, cutoff domain.Period) (int64, error)
}

type SyncLogRepository interface {
	Append(ctx context.Context, entry *domain.SyncLogEntry) error
	// List returns entries newest first, optionally filtered by sync type.
	List(ctx context.Context, syncType string, limit, offset int) ([]domain.SyncLogEntry, error)
	// LatestByType returns the most recent entry of each sync type.
	LatestByType(ctx context.Context) (map[string]domain.SyncLogEntry, error)
}

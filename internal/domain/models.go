// internal/domain/models.go
package domain

import (
	"fmt"
	"time"
)

// Product represents a catalog product identified by its ERP SKU
type Product struct {
	ID          int64     `json:"id" db:"id"`
	SKU         string    `json:"sku" db:"sku"`
	Description string    `json:"description" db:"description"`
	Family      string    `json:"family" db:"family"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// MonthlySale represents a product's consolidated sales for one closed month
type MonthlySale struct {
	ID           int64     `json:"id" db:"id"`
	ProductID    int64     `json:"product_id" db:"product_id"`
	Year         int       `json:"year" db:"year"`
	Month        int       `json:"month" db:"month"`
	QuantitySold float64   `json:"quantity_sold" db:"quantity_sold"`
	NetAmount    float64   `json:"net_amount" db:"net_amount"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// CurrentMonthSale represents a product's running totals for the open month,
// together with the latest stock snapshot
type CurrentMonthSale struct {
	ID           int64     `json:"id" db:"id"`
	ProductID    int64     `json:"product_id" db:"product_id"`
	QuantitySold float64   `json:"quantity_sold" db:"quantity_sold"`
	NetAmount    float64   `json:"net_amount" db:"net_amount"`
	StockOnHand  float64   `json:"stock_on_hand" db:"stock_on_hand"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// PurchaseOrderLine represents an operator-entered order quantity for a
// product in a given planning period
type PurchaseOrderLine struct {
	ID        int64     `json:"id" db:"id"`
	ProductID int64     `json:"product_id" db:"product_id"`
	Year      int       `json:"year" db:"year"`
	Month     int       `json:"month" db:"month"`
	Quantity  float64   `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Sync log entry types.
const (
	SyncTypeProducts     = "products"
	SyncTypeDaily        = "daily"
	SyncTypeMonthly      = "monthly"
	SyncTypeCurrentMonth = "current-month"
	SyncTypeStock        = "stock"
	SyncTypeRotation     = "rotation"
	SyncTypePrune        = "prune"
	SyncTypeFull         = "full"
)

var syncTypes = map[string]bool{
	SyncTypeProducts:     true,
	SyncTypeDaily:        true,
	SyncTypeMonthly:      true,
	SyncTypeCurrentMonth: true,
	SyncTypeStock:        true,
	SyncTypeRotation:     true,
	SyncTypePrune:        true,
	SyncTypeFull:         true,
}

// ValidSyncType reports whether s names a known sync log entry type.
func ValidSyncType(s string) bool {
	return syncTypes[s]
}

// SyncLogEntry represents one recorded sync run
type SyncLogEntry struct {
	ID                int64     `json:"id" db:"id"`
	SyncType          string    `json:"sync_type" db:"sync_type"`
	TargetYear        int       `json:"target_year" db:"target_year"`
	TargetMonth       int       `json:"target_month" db:"target_month"`
	DocumentCount     int       `json:"document_count" db:"document_count"`
	ProductCount      int       `json:"product_count" db:"product_count"`
	ProductsWithSales int       `json:"products_with_sales" db:"products_with_sales"`
	Message           *string   `json:"message" db:"message"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Period identifies a calendar month.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// Before reports whether p is strictly earlier than q.
func (p Period) Before(q Period) bool {
	return p.Year < q.Year || (p.Year == q.Year && p.Month < q.Month)
}

// AddMonths returns the period n months after p (n may be negative).
func (p Period) AddMonths(n int) Period {
	t := time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// Label formats the period as "2006-01".
func (p Period) Label() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

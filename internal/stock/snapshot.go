// internal/stock/snapshot.go
package stock

import (
	"strings"

	"github.com/tiendanorte/compraplan/internal/erp"
)

// Warehouses whose name matches one of these fragments hold merchandise in
// transit or under repair and must not count toward sellable stock.
var excludedWarehouseFragments = []string{"temporal", "temporary"}

// OnHand folds per-warehouse snapshot entries into per-SKU totals.
// Entries from excluded warehouses are skipped; entries with no warehouse
// name are kept. Negative quantities pass through.
func OnHand(entries []erp.StockEntry) map[string]float64 {
	totals := make(map[string]float64)
	for _, e := range entries {
		if e.SKU == "" || excludedWarehouse(e.Warehouse) {
			continue
		}
		totals[e.SKU] += e.Quantity
	}
	return totals
}

func excludedWarehouse(name string) bool {
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	for _, fragment := range excludedWarehouseFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

package stock

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tiendanorte/compraplan/internal/erp"
)

func TestOnHand_SumsAcrossWarehouses(t *testing.T) {
	totals := OnHand([]erp.StockEntry{
		{SKU: "AB-100", Warehouse: "Central", Quantity: 10},
		{SKU: "AB-100", Warehouse: "Sucursal Norte", Quantity: 4.5},
		{SKU: "CD-900", Warehouse: "Central", Quantity: 2},
	})

	assert.Equal(t, 14.5, totals["AB-100"])
	assert.Equal(t, 2.0, totals["CD-900"])
}

func TestOnHand_ExcludesTemporaryWarehouses(t *testing.T) {
	totals := OnHand([]erp.StockEntry{
		{SKU: "AB-100", Warehouse: "Central", Quantity: 10},
		{SKU: "AB-100", Warehouse: "Deposito Temporal", Quantity: 99},
		{SKU: "AB-100", Warehouse: "TEMPORARY HOLD", Quantity: 50},
		{SKU: "AB-100", Warehouse: "temporal-2", Quantity: 7},
	})

	assert.Equal(t, 10.0, totals["AB-100"])
}

func TestOnHand_KeepsEntriesWithoutWarehouseName(t *testing.T) {
	totals := OnHand([]erp.StockEntry{
		{SKU: "AB-100", Warehouse: "", Quantity: 3},
		{SKU: "AB-100", Warehouse: "Central", Quantity: 2},
	})

	assert.Equal(t, 5.0, totals["AB-100"])
}

func TestOnHand_NegativeStockPassesThrough(t *testing.T) {
	totals := OnHand([]erp.StockEntry{
		{SKU: "AB-100", Warehouse: "Central", Quantity: -6},
	})

	assert.Equal(t, -6.0, totals["AB-100"])
}

func TestOnHand_SkipsEntriesWithoutSKU(t *testing.T) {
	totals := OnHand([]erp.StockEntry{
		{SKU: "", Warehouse: "Central", Quantity: 100},
		{SKU: "AB-100", Warehouse: "Central", Quantity: 1},
	})

	assert.Len(t, totals, 1)
	assert.Equal(t, 1.0, totals["AB-100"])
}

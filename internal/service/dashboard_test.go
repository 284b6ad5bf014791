// internal/service/dashboard_test.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tiendanorte/compraplan/internal/domain"
	"github.com/tiendanorte/compraplan/internal/erp"
)

func TestGetDashboard_WindowShapeAndAverage(t *testing.T) {
	f := newFixture()
	f.products.seed(1, "YER-500", "Yerba", "Almacen")
	f.sales.monthly = []domain.MonthlySale{
		{ProductID: 1, Year: 2025, Month: 1, QuantitySold: 30, NetAmount: 4500},
		{ProductID: 1, Year: 2025, Month: 2, QuantitySold: 30, NetAmount: 4500},
		{ProductID: 1, Year: 2024, Month: 11, QuantitySold: 99, NetAmount: 9900},
	}
	f.sales.current = []domain.CurrentMonthSale{{ProductID: 1, QuantitySold: 10, StockOnHand: 20}}

	resp, err := f.svc.GetDashboard(context.Background(), domain.DashboardQuery{Months: 3})
	require.NoError(t, err)

	require.Equal(t, []string{"2024-12", "2025-01", "2025-02"}, resp.Meta.Months)
	require.Equal(t, "2025-03", resp.Meta.CurrentPeriod)
	require.Equal(t, 1, resp.Meta.RowCount)

	row := resp.Rows[0]
	require.Len(t, row.Months, 3)
	require.Zero(t, row.Months[0].Quantity, "months without sales are zero-filled")
	require.Equal(t, 30.0, row.Months[1].Quantity)
	require.Equal(t, 30.0, row.Months[2].Quantity)
	require.Equal(t, 20.0, row.AverageMonthly)
	require.Equal(t, 10.0, row.CurrentMonthSold)
	require.Equal(t, 20.0, row.StockOnHand)
	require.Equal(t, 9000.0, row.NetAmountWindow)
	require.Equal(t, -10, row.SuggestedPurchase)
}

func TestGetDashboard_DefaultsToSixMonths(t *testing.T) {
	f := newFixture()
	f.products.seed(1, "YER-500", "Yerba", "Almacen")
	f.sales.current = []domain.CurrentMonthSale{{ProductID: 1, StockOnHand: 5}}

	resp, err := f.svc.GetDashboard(context.Background(), domain.DashboardQuery{})
	require.NoError(t, err)
	require.Len(t, resp.Meta.Months, 6)
	require.Equal(t, "2024-09", resp.Meta.Months[0])
	require.Equal(t, "2025-02", resp.Meta.Months[5])
}

func TestGetDashboard_RejectsUnsupportedWindow(t *testing.T) {
	f := newFixture()
	for _, months := range []int{1, 5, 24, -3} {
		_, err := f.svc.GetDashboard(context.Background(), domain.DashboardQuery{Months: months})
		require.ErrorIs(t, err, domain.ErrInvalidMonths, "months=%d", months)
	}
}

func TestGetDashboard_SuggestionMath(t *testing.T) {
	f := newFixture()
	f.products.seed(1, "AAA-1", "Producto A", "")
	f.products.seed(2, "BBB-1", "Producto B", "")
	f.products.seed(3, "CCC-1", "Producto C", "")
	f.sales.monthly = []domain.MonthlySale{
		{ProductID: 1, Year: 2025, Month: 2, QuantitySold: 300},
		{ProductID: 2, Year: 2025, Month: 2, QuantitySold: 30},
		{ProductID: 3, Year: 2025, Month: 2, QuantitySold: 100},
	}
	f.sales.current = []domain.CurrentMonthSale{
		{ProductID: 1, QuantitySold: 10, StockOnHand: 20},
		{ProductID: 2, QuantitySold: 20, StockOnHand: 30},
	}

	resp, err := f.svc.GetDashboard(context.Background(), domain.DashboardQuery{Months: 3})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 3)

	require.Equal(t, 100.0, resp.Rows[0].AverageMonthly)
	require.Equal(t, 70, resp.Rows[0].SuggestedPurchase)

	require.Equal(t, 10.0, resp.Rows[1].AverageMonthly)
	require.Equal(t, -40, resp.Rows[1].SuggestedPurchase, "overstock goes negative instead of clamping")

	require.Equal(t, 33.33, resp.Rows[2].AverageMonthly)
	require.Equal(t, 33, resp.Rows[2].SuggestedPurchase)
}

func TestGetDashboard_DropsRowsWithoutSignal(t *testing.T) {
	f := newFixture()
	f.products.seed(1, "QUI-1", "Sin movimiento", "")
	f.products.seed(2, "STK-1", "Solo stock", "")
	f.products.seed(3, "ORD-1", "Solo pedido", "")
	f.sales.current = []domain.CurrentMonthSale{{ProductID: 2, StockOnHand: 5}}
	f.orders.rows[orderKey{3, 2025, 3}] = 12

	resp, err := f.svc.GetDashboard(context.Background(), domain.DashboardQuery{Months: 3})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Meta.RowCount)

	var skus []string
	for _, row := range resp.Rows {
		skus = append(skus, row.SKU)
	}
	require.Equal(t, []string{"ORD-1", "STK-1"}, skus)
}

func TestGetDashboard_OrderedQuantityNullWhenUnset(t *testing.T) {
	f := newFixture()
	f.products.seed(1, "AAA-1", "Sin pedido", "")
	f.products.seed(2, "BBB-1", "Con pedido", "")
	f.sales.current = []domain.CurrentMonthSale{{ProductID: 1, StockOnHand: 2}}
	f.orders.rows[orderKey{2, 2025, 3}] = 15

	resp, err := f.svc.GetDashboard(context.Background(), domain.DashboardQuery{Months: 3})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 2)

	require.Nil(t, resp.Rows[0].OrderedQuantity)
	require.NotNil(t, resp.Rows[1].OrderedQuantity)
	require.Equal(t, 15.0, *resp.Rows[1].OrderedQuantity)

	raw, err := json.Marshal(resp.Rows[0])
	require.NoError(t, err)
	require.Contains(t, string(raw), `"ordered_quantity":null`)
}

func TestGetDashboard_LiveTodayAddsOnTop(t *testing.T) {
	f := newFixture()
	f.products.seed(1, "YER-500", "Yerba", "Almacen")
	f.products.seed(2, "FID-500", "Fideos", "Pastas")
	f.sales.current = []domain.CurrentMonthSale{{ProductID: 1, QuantitySold: 5}}
	f.live.docs = []erp.Document{
		salesDoc("1", line("YER-500", 2, 300)),
		salesDoc("2", line("FID-500", 3, 210)),
	}

	resp, err := f.svc.GetDashboard(context.Background(), domain.DashboardQuery{Months: 3})
	require.NoError(t, err)
	require.True(t, resp.Meta.LiveToday)
	require.Len(t, resp.Rows, 2)

	require.Equal(t, "FID-500", resp.Rows[0].SKU)
	require.Equal(t, 3.0, resp.Rows[0].CurrentMonthSold, "a product sold only today still shows up")
	require.Equal(t, 7.0, resp.Rows[1].CurrentMonthSold)
}

func TestGetDashboard_DegradesWhenLiveFails(t *testing.T) {
	f := newFixture()
	f.products.seed(1, "YER-500", "Yerba", "Almacen")
	f.sales.current = []domain.CurrentMonthSale{{ProductID: 1, QuantitySold: 5}}
	f.live.err = errors.New("erp timeout")

	resp, err := f.svc.GetDashboard(context.Background(), domain.DashboardQuery{Months: 3})
	require.NoError(t, err)
	require.False(t, resp.Meta.LiveToday)
	require.Equal(t, 5.0, resp.Rows[0].CurrentMonthSold)
}

func TestGetDashboard_ServesFromCache(t *testing.T) {
	f := newFixture()
	f.products.seed(1, "YER-500", "Yerba", "Almacen")
	f.sales.current = []domain.CurrentMonthSale{{ProductID: 1, StockOnHand: 4}}

	first, err := f.svc.GetDashboard(context.Background(), domain.DashboardQuery{Months: 6})
	require.NoError(t, err)
	second, err := f.svc.GetDashboard(context.Background(), domain.DashboardQuery{Months: 6})
	require.NoError(t, err)

	require.Same(t, first, second)
	require.Equal(t, 1, f.products.calls)
	require.Equal(t, 1, f.cache.sets)
	require.Equal(t, 1, f.cache.hits)

	// A different window is a different cache entry.
	_, err = f.svc.GetDashboard(context.Background(), domain.DashboardQuery{Months: 3})
	require.NoError(t, err)
	require.Equal(t, 2, f.products.calls)
}

func TestGetDashboard_PrefixFilterRestrictsWindowQuery(t *testing.T) {
	f := newFixture()
	f.products.seed(1, "YER-500", "Yerba 500", "Almacen")
	f.products.seed(2, "YER-250", "Yerba 250", "Almacen")
	f.products.seed(3, "AZU-1KG", "Azucar", "Almacen")
	f.sales.current = []domain.CurrentMonthSale{
		{ProductID: 1, StockOnHand: 1},
		{ProductID: 2, StockOnHand: 2},
		{ProductID: 3, StockOnHand: 3},
	}

	resp, err := f.svc.GetDashboard(context.Background(), domain.DashboardQuery{Months: 3, SKUPrefix: "yer"})
	require.NoError(t, err)

	require.Len(t, resp.Rows, 2)
	require.Equal(t, "YER-250", resp.Rows[0].SKU)
	require.Equal(t, "YER-500", resp.Rows[1].SKU)
	require.Len(t, f.sales.lastIDs, 2, "window query is restricted to the filtered products")
}

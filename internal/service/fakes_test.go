// internal/service/fakes_test.go
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tiendanorte/compraplan/internal/cache"
	"github.com/tiendanorte/compraplan/internal/domain"
	"github.com/tiendanorte/compraplan/internal/erp"
)

var (
	_ ProductLister        = (*memProducts)(nil)
	_ SalesReader          = (*memSales)(nil)
	_ OrderStore           = (*memOrders)(nil)
	_ LiveSalesFetcher     = (*fakeLive)(nil)
	_ cache.DashboardCache = (*storeCache)(nil)
)

type memProducts struct {
	rows  []domain.Product
	calls int
}

func (m *memProducts) seed(id int64, sku, desc, family string) domain.Product {
	p := domain.Product{ID: id, SKU: sku, Description: desc, Family: family}
	m.rows = append(m.rows, p)
	sort.Slice(m.rows, func(i, j int) bool { return m.rows[i].SKU < m.rows[j].SKU })
	return p
}

func (m *memProducts) List(ctx context.Context, skuPrefix string) ([]domain.Product, error) {
	m.calls++
	prefix := strings.ToUpper(skuPrefix)
	var out []domain.Product
	for _, p := range m.rows {
		if prefix == "" || strings.HasPrefix(strings.ToUpper(p.SKU), prefix) {
			out = append(out, p)
		}
	}
	return out, nil
}

type memSales struct {
	monthly []domain.MonthlySale
	current []domain.CurrentMonthSale
	lastIDs []int64
}

func (m *memSales) GetWindow(ctx context.Context, from, to domain.Period, productIDs []int64) ([]domain.MonthlySale, error) {
	m.lastIDs = productIDs
	wanted := map[int64]bool{}
	for _, id := range productIDs {
		wanted[id] = true
	}
	fromN, toN := from.Year*100+from.Month, to.Year*100+to.Month
	var out []domain.MonthlySale
	for _, row := range m.monthly {
		n := row.Year*100 + row.Month
		if n < fromN || n > toN {
			continue
		}
		if len(wanted) > 0 && !wanted[row.ProductID] {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *memSales) ListCurrent(ctx context.Context) ([]domain.CurrentMonthSale, error) {
	return m.current, nil
}

type orderKey struct {
	product int64
	year    int
	month   int
}

type memOrders struct {
	rows    map[orderKey]float64
	upserts int
	deletes int
}

func newMemOrders() *memOrders {
	return &memOrders{rows: map[orderKey]float64{}}
}

func (m *memOrders) Upsert(ctx context.Context, productID int64, period domain.Period, quantity float64) error {
	m.upserts++
	m.rows[orderKey{productID, period.Year, period.Month}] = quantity
	return nil
}

func (m *memOrders) Delete(ctx context.Context, productID int64, period domain.Period) error {
	m.deletes++
	delete(m.rows, orderKey{productID, period.Year, period.Month})
	return nil
}

func (m *memOrders) ListForPeriod(ctx context.Context, period domain.Period) ([]domain.PurchaseOrderLine, error) {
	var out []domain.PurchaseOrderLine
	for k, qty := range m.rows {
		if k.year == period.Year && k.month == period.Month {
			out = append(out, domain.PurchaseOrderLine{ProductID: k.product, Year: k.year, Month: k.month, Quantity: qty})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (m *memOrders) ResetPeriod(ctx context.Context, period domain.Period) (int64, error) {
	var n int64
	for k := range m.rows {
		if k.year == period.Year && k.month == period.Month {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

type fakeLive struct {
	docs []erp.Document
	err  error
}

func (f *fakeLive) FetchDocumentsAllKinds(ctx context.Context, from, to time.Time) ([]erp.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

// storeCache is a real in-memory dashboard cache with counters.
type storeCache struct {
	mu            sync.Mutex
	entries       map[string]*domain.DashboardResponse
	hits          int
	sets          int
	invalidations int
}

func newStoreCache() *storeCache {
	return &storeCache{entries: map[string]*domain.DashboardResponse{}}
}

func cacheKey(q domain.DashboardQuery) string {
	return fmt.Sprintf("%d|%s", q.Months, q.SKUPrefix)
}

func (c *storeCache) Get(ctx context.Context, query domain.DashboardQuery) (*domain.DashboardResponse, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, ok := c.entries[cacheKey(query)]
	if ok {
		c.hits++
	}
	return resp, ok, nil
}

func (c *storeCache) Set(ctx context.Context, query domain.DashboardQuery, resp *domain.DashboardResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[cacheKey(query)] = resp
	return nil
}

func (c *storeCache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidations++
	c.entries = map[string]*domain.DashboardResponse{}
	return nil
}

func salesDoc(num string, lines ...map[string]any) erp.Document {
	items := make([]any, 0, len(lines))
	for _, l := range lines {
		items = append(items, l)
	}
	doc := erp.Document{"detalles": items}
	if num != "" {
		doc["docnumreg"] = num
	}
	return doc
}

func line(sku string, qty, net float64) map[string]any {
	return map[string]any{"codigo": sku, "cantidad": qty, "importe_neto": net}
}

// fixture pins the clock to 2025-03-15 so the window is 2024-09 through
// 2025-02 at the default size.
type fixture struct {
	svc      *DashboardService
	products *memProducts
	sales    *memSales
	orders   *memOrders
	live     *fakeLive
	cache    *storeCache
}

func newFixture() *fixture {
	f := &fixture{
		products: &memProducts{},
		sales:    &memSales{},
		orders:   newMemOrders(),
		live:     &fakeLive{},
		cache:    newStoreCache(),
	}
	f.svc = NewDashboardService(f.products, f.sales, f.orders, f.live, f.cache, time.UTC)
	f.svc.now = func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }
	return f
}

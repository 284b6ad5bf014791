// internal/sync/fakes_test.go
package sync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tiendanorte/compraplan/internal/cache"
	"github.com/tiendanorte/compraplan/internal/domain"
	"github.com/tiendanorte/compraplan/internal/erp"
	"github.com/tiendanorte/compraplan/internal/repository"
)

var (
	_ ERPClient                    = (*fakeERP)(nil)
	_ repository.ProductRepository = (*memProductRepo)(nil)
	_ repository.SalesRepository   = (*memSalesRepo)(nil)
	_ repository.OrderRepository   = (*memOrderRepo)(nil)
	_ repository.SyncLogRepository = (*memSyncLog)(nil)
	_ cache.DashboardCache         = (*memCache)(nil)
)

type fetchedSpan struct {
	kind     string
	from, to time.Time
}

type fakeERP struct {
	mu          sync.Mutex
	docs        map[string][]erp.Document
	details     map[string]erp.Document
	detailFails map[string]bool
	stockRows   []erp.StockEntry
	catalog     []erp.CatalogEntry

	docsErr    error
	stockErr   error
	catalogErr error

	spans       []fetchedSpan
	detailCalls map[string]int
	stockCalls  int
}

func newFakeERP() *fakeERP {
	return &fakeERP{
		docs:        map[string][]erp.Document{},
		details:     map[string]erp.Document{},
		detailFails: map[string]bool{},
		detailCalls: map[string]int{},
	}
}

func detailKey(kind, num string) string { return kind + "|" + num }

func (f *fakeERP) FetchDocuments(ctx context.Context, kind string, from, to time.Time) ([]erp.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spans = append(f.spans, fetchedSpan{kind: kind, from: from, to: to})
	if f.docsErr != nil {
		return nil, f.docsErr
	}
	return f.docs[kind], nil
}

func (f *fakeERP) FetchDocumentDetail(ctx context.Context, kind, docNum string) (erp.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := detailKey(kind, docNum)
	f.detailCalls[key]++
	if f.detailFails[key] {
		return nil, fmt.Errorf("detail unavailable")
	}
	doc, ok := f.details[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (f *fakeERP) FetchStock(ctx context.Context, at time.Time) ([]erp.StockEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stockCalls++
	if f.stockErr != nil {
		return nil, f.stockErr
	}
	return f.stockRows, nil
}

func (f *fakeERP) FetchProducts(ctx context.Context) ([]erp.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	return f.catalog, nil
}

// salesDoc builds a raw document with a detalles line collection.
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

// headerDoc builds a raw document with no line collection at all, the shape
// that forces the detail fallback.
func headerDoc(num string) erp.Document {
	doc := erp.Document{"fecha": "2025-03-10"}
	if num != "" {
		doc["docnumreg"] = num
	}
	return doc
}

func line(sku string, qty, net float64) map[string]any {
	return map[string]any{"codigo": sku, "cantidad": qty, "importe_neto": net}
}

type memProductRepo struct {
	mu   sync.Mutex
	seq  int64
	rows map[int64]*domain.Product
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{rows: map[int64]*domain.Product{}}
}

func (m *memProductRepo) List(ctx context.Context, skuPrefix string) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.ToUpper(skuPrefix)
	out := make([]domain.Product, 0, len(m.rows))
	for _, p := range m.rows {
		if prefix == "" || strings.HasPrefix(strings.ToUpper(p.SKU), prefix) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (m *memProductRepo) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.SKU == sku {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memProductRepo) Create(ctx context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	p.ID = m.seq
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.rows[p.ID] = &cp
	return nil
}

func (m *memProductRepo) Update(ctx context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cur.Description = p.Description
	cur.Family = p.Family
	cur.UpdatedAt = time.Now()
	return nil
}

func seedProduct(t *testing.T, repo *memProductRepo, sku, desc, family string) domain.Product {
	t.Helper()
	p := &domain.Product{SKU: sku, Description: desc, Family: family}
	require.NoError(t, repo.Create(context.Background(), p))
	return *p
}

type monthKey struct {
	product int64
	year    int
	month   int
}

// memSalesRepo mirrors the SQL repository's semantics in memory. nowFn feeds
// updated_at so rotation tests can steer freshness.
type memSalesRepo struct {
	mu      sync.Mutex
	seq     int64
	monthly map[monthKey]*domain.MonthlySale
	current map[int64]*domain.CurrentMonthSale
	nowFn   func() time.Time
}

func newMemSalesRepo() *memSalesRepo {
	return &memSalesRepo{
		monthly: map[monthKey]*domain.MonthlySale{},
		current: map[int64]*domain.CurrentMonthSale{},
		nowFn:   time.Now,
	}
}

func (m *memSalesRepo) seedMonthly(row domain.MonthlySale) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	row.ID = m.seq
	m.monthly[monthKey{row.ProductID, row.Year, row.Month}] = &row
}

func (m *memSalesRepo) seedCurrent(row domain.CurrentMonthSale) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	row.ID = m.seq
	m.current[row.ProductID] = &row
}

func (m *memSalesRepo) AccumulateMonthly(ctx context.Context, rows []domain.MonthlySale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		k := monthKey{row.ProductID, row.Year, row.Month}
		if cur, ok := m.monthly[k]; ok {
			cur.QuantitySold += row.QuantitySold
			cur.NetAmount += row.NetAmount
			cur.UpdatedAt = m.nowFn()
			continue
		}
		m.seq++
		m.monthly[k] = &domain.MonthlySale{
			ID: m.seq, ProductID: row.ProductID, Year: row.Year, Month: row.Month,
			QuantitySold: row.QuantitySold, NetAmount: row.NetAmount, UpdatedAt: m.nowFn(),
		}
	}
	return nil
}

func (m *memSalesRepo) ReplaceMonth(ctx context.Context, period domain.Period, rows []domain.MonthlySale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	keep := map[int64]bool{}
	for _, row := range rows {
		keep[row.ProductID] = true
		k := monthKey{row.ProductID, period.Year, period.Month}
		if cur, ok := m.monthly[k]; ok {
			cur.QuantitySold = row.QuantitySold
			cur.NetAmount = row.NetAmount
			cur.UpdatedAt = m.nowFn()
			continue
		}
		m.seq++
		m.monthly[k] = &domain.MonthlySale{
			ID: m.seq, ProductID: row.ProductID, Year: period.Year, Month: period.Month,
			QuantitySold: row.QuantitySold, NetAmount: row.NetAmount, UpdatedAt: m.nowFn(),
		}
	}
	for k := range m.monthly {
		if k.year == period.Year && k.month == period.Month && !keep[k.product] {
			delete(m.monthly, k)
		}
	}
	return nil
}

func (m *memSalesRepo) GetWindow(ctx context.Context, from, to domain.Period, productIDs []int64) ([]domain.MonthlySale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := map[int64]bool{}
	for _, id := range productIDs {
		wanted[id] = true
	}
	fromN, toN := from.Year*100+from.Month, to.Year*100+to.Month
	var out []domain.MonthlySale
	for k, row := range m.monthly {
		n := k.year*100 + k.month
		if n < fromN || n > toN {
			continue
		}
		if len(wanted) > 0 && !wanted[k.product] {
			continue
		}
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].Year*100+out[i].Month < out[j].Year*100+out[j].Month
	})
	return out, nil
}

func (m *memSalesRepo) DeleteMonthsBefore(ctx context.Context, cutoff domain.Period) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoffN := cutoff.Year*100 + cutoff.Month
	var n int64
	for k := range m.monthly {
		if k.year*100+k.month < cutoffN {
			delete(m.monthly, k)
			n++
		}
	}
	return n, nil
}

func (m *memSalesRepo) ListCurrent(ctx context.Context) ([]domain.CurrentMonthSale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.CurrentMonthSale, 0, len(m.current))
	for _, row := range m.current {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (m *memSalesRepo) UpsertCurrentSales(ctx context.Context, rows []domain.CurrentMonthSale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		if cur, ok := m.current[row.ProductID]; ok {
			cur.QuantitySold = row.QuantitySold
			cur.NetAmount = row.NetAmount
			cur.UpdatedAt = m.nowFn()
			continue
		}
		m.seq++
		m.current[row.ProductID] = &domain.CurrentMonthSale{
			ID: m.seq, ProductID: row.ProductID,
			QuantitySold: row.QuantitySold, NetAmount: row.NetAmount, UpdatedAt: m.nowFn(),
		}
	}
	return nil
}

func (m *memSalesRepo) PruneCurrentExcept(ctx context.Context, keepIDs []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keep := map[int64]bool{}
	for _, id := range keepIDs {
		keep[id] = true
	}
	var n int64
	for id := range m.current {
		if !keep[id] {
			delete(m.current, id)
			n++
		}
	}
	return n, nil
}

func (m *memSalesRepo) AttachStock(ctx context.Context, stockByProduct map[int64]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, qty := range stockByProduct {
		if cur, ok := m.current[id]; ok {
			cur.StockOnHand = qty
			cur.UpdatedAt = m.nowFn()
			continue
		}
		m.seq++
		m.current[id] = &domain.CurrentMonthSale{ID: m.seq, ProductID: id, StockOnHand: qty, UpdatedAt: m.nowFn()}
	}
	for id, row := range m.current {
		if _, ok := stockByProduct[id]; !ok && row.StockOnHand != 0 {
			row.StockOnHand = 0
			row.UpdatedAt = m.nowFn()
		}
	}
	return nil
}

func (m *memSalesRepo) LatestCurrentUpdate(ctx context.Context) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest time.Time
	for _, row := range m.current {
		if row.UpdatedAt.After(latest) {
			latest = row.UpdatedAt
		}
	}
	if latest.IsZero() {
		return time.Time{}, false, nil
	}
	return latest, true, nil
}

func (m *memSalesRepo) RotateCurrentInto(ctx context.Context, target domain.Period) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, row := range m.current {
		k := monthKey{id, target.Year, target.Month}
		if cur, ok := m.monthly[k]; ok {
			cur.QuantitySold = row.QuantitySold
			cur.NetAmount = row.NetAmount
			cur.UpdatedAt = m.nowFn()
		} else {
			m.seq++
			m.monthly[k] = &domain.MonthlySale{
				ID: m.seq, ProductID: id, Year: target.Year, Month: target.Month,
				QuantitySold: row.QuantitySold, NetAmount: row.NetAmount, UpdatedAt: m.nowFn(),
			}
		}
		row.QuantitySold = 0
		row.NetAmount = 0
		row.UpdatedAt = m.nowFn()
	}
	return int64(len(m.current)), nil
}

type orderKey struct {
	product int64
	year    int
	month   int
}

type memOrderRepo struct {
	mu   sync.Mutex
	seq  int64
	rows map[orderKey]*domain.PurchaseOrderLine
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{rows: map[orderKey]*domain.PurchaseOrderLine{}}
}

func (m *memOrderRepo) seed(row domain.PurchaseOrderLine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	row.ID = m.seq
	m.rows[orderKey{row.ProductID, row.Year, row.Month}] = &row
}

func (m *memOrderRepo) Upsert(ctx context.Context, productID int64, period domain.Period, quantity float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := orderKey{productID, period.Year, period.Month}
	if cur, ok := m.rows[k]; ok {
		cur.Quantity = quantity
		cur.UpdatedAt = time.Now()
		return nil
	}
	m.seq++
	m.rows[k] = &domain.PurchaseOrderLine{
		ID: m.seq, ProductID: productID, Year: period.Year, Month: period.Month, Quantity: quantity,
	}
	return nil
}

func (m *memOrderRepo) Delete(ctx context.Context, productID int64, period domain.Period) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, orderKey{productID, period.Year, period.Month})
	return nil
}

func (m *memOrderRepo) ListForPeriod(ctx context.Context, period domain.Period) ([]domain.PurchaseOrderLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PurchaseOrderLine
	for k, row := range m.rows {
		if k.year == period.Year && k.month == period.Month {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (m *memOrderRepo) ResetPeriod(ctx context.Context, period domain.Period) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.rows {
		if k.year == period.Year && k.month == period.Month {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

func (m *memOrderRepo) DeleteBefore(ctx context.Context, cutoff domain.Period) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoffN := cutoff.Year*100 + cutoff.Month
	var n int64
	for k := range m.rows {
		if k.year*100+k.month < cutoffN {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

type memSyncLog struct {
	mu      sync.Mutex
	seq     int64
	entries []domain.SyncLogEntry
}

func newMemSyncLog() *memSyncLog {
	return &memSyncLog{}
}

func (m *memSyncLog) Append(ctx context.Context, entry *domain.SyncLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	entry.ID = m.seq
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memSyncLog) List(ctx context.Context, syncType string, limit, offset int) ([]domain.SyncLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	var filtered []domain.SyncLogEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if syncType == "" || m.entries[i].SyncType == syncType {
			filtered = append(filtered, m.entries[i])
		}
	}
	if offset >= len(filtered) {
		return nil, nil
	}
	filtered = filtered[offset:]
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

func (m *memSyncLog) LatestByType(ctx context.Context) (map[string]domain.SyncLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]domain.SyncLogEntry{}
	for _, e := range m.entries {
		out[e.SyncType] = e
	}
	return out, nil
}

func (m *memSyncLog) byType(syncType string) []domain.SyncLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SyncLogEntry
	for _, e := range m.entries {
		if e.SyncType == syncType {
			out = append(out, e)
		}
	}
	return out
}

type memArchive struct {
	mu        sync.Mutex
	failures  []string
	summaries int
}

func (a *memArchive) StoreFailedDocument(ctx context.Context, kind, docNum string, payload any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures = append(a.failures, kind+"/"+docNum)
	return nil
}

func (a *memArchive) StoreRunSummary(ctx context.Context, startedAt time.Time, summary any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summaries++
	return nil
}

type memCache struct {
	mu            sync.Mutex
	invalidations int
}

func (c *memCache) Get(ctx context.Context, query domain.DashboardQuery) (*domain.DashboardResponse, bool, error) {
	return nil, false, nil
}

func (c *memCache) Set(ctx context.Context, query domain.DashboardQuery, resp *domain.DashboardResponse) error {
	return nil
}

func (c *memCache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidations++
	return nil
}

// engineFixture wires an engine against the in-memory world, with the clock
// pinned to 2025-03-15 so month math is deterministic.
type engineFixture struct {
	engine   *Engine
	erp      *fakeERP
	products *memProductRepo
	sales    *memSalesRepo
	logs     *memSyncLog
	archive  *memArchive
	cache    *memCache
}

func newEngineFixture(kinds ...string) *engineFixture {
	if len(kinds) == 0 {
		kinds = []string{"FV", "NC"}
	}
	f := &engineFixture{
		erp:      newFakeERP(),
		products: newMemProductRepo(),
		sales:    newMemSalesRepo(),
		logs:     newMemSyncLog(),
		archive:  &memArchive{},
		cache:    &memCache{},
	}
	f.engine = NewEngine(Deps{
		ERP:      f.erp,
		Products: f.products,
		Sales:    f.sales,
		SyncLog:  f.logs,
		Archive:  f.archive,
		Cache:    f.cache,
		Location: time.UTC,
	}, Config{DocumentKinds: kinds, MaxRangeDays: 31, DetailBatchSize: 20})
	f.engine.now = func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) }
	return f
}

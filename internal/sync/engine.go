// internal/sync/engine.go
package sync

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tiendanorte/compraplan/internal/archive"
	"github.com/tiendanorte/compraplan/internal/cache"
	"github.com/tiendanorte/compraplan/internal/domain"
	"github.com/tiendanorte/compraplan/internal/erp"
	"github.com/tiendanorte/compraplan/internal/repository"
	"github.com/tiendanorte/compraplan/internal/sales"
	"github.com/tiendanorte/compraplan/internal/stock"
	"github.com/tiendanorte/compraplan/pkg/logger"
)

const (
	detailRetries    = 3
	detailRetryDelay = 150 * time.Millisecond
)

// ERPClient is the slice of the ERP surface the engine consumes.
type ERPClient interface {
	FetchDocuments(ctx context.Context, kind string, from, to time.Time) ([]erp.Document, error)
	FetchDocumentDetail(ctx context.Context, kind, docNum string) (erp.Document, error)
	FetchStock(ctx context.Context, at time.Time) ([]erp.StockEntry, error)
	FetchProducts(ctx context.Context) ([]erp.CatalogEntry, error)
}

// Config holds the fetch-shaping knobs of the engine.
type Config struct {
	DocumentKinds    []string
	MaxRangeDays     int
	DetailBatchSize  int
	DetailBatchDelay time.Duration
}

// Deps bundles everything the engine talks to.
type Deps struct {
	ERP      ERPClient
	Products repository.ProductRepository
	Sales    repository.SalesRepository
	SyncLog  repository.SyncLogRepository
	Archive  archive.PayloadArchive
	Cache    cache.DashboardCache
	Location *time.Location
}

// Engine pulls sales, catalog and stock data out of the ERP and persists the
// consolidated result.
type Engine struct {
	erp         ERPClient
	productRepo repository.ProductRepository
	salesRepo   repository.SalesRepository
	logRepo     repository.SyncLogRepository
	archive     archive.PayloadArchive
	cache       cache.DashboardCache
	extractor   *sales.Extractor
	cfg         Config
	loc         *time.Location
	now         func() time.Time
	log         zerolog.Logger
}

func NewEngine(deps Deps, cfg Config) *Engine {
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 10
	}
	if cfg.DetailBatchSize <= 0 {
		cfg.DetailBatchSize = 20
	}
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		erp:         deps.ERP,
		productRepo: deps.Products,
		salesRepo:   deps.Sales,
		logRepo:     deps.SyncLog,
		archive:     deps.Archive,
		cache:       deps.Cache,
		extractor:   sales.NewExtractor(),
		cfg:         cfg,
		loc:         loc,
		now:         time.Now,
		log:         logger.Component("sync"),
	}
}

// SyncProducts pulls the ERP catalog and upserts it by SKU. Descriptions and
// families follow the catalog, but blank catalog values never overwrite data
// already on file.
func (e *Engine) SyncProducts(ctx context.Context) (Summary, error) {
	sum := Summary{Type: domain.SyncTypeProducts, Period: domain.PeriodOf(e.now().In(e.loc))}

	entries, err := e.erp.FetchProducts(ctx)
	if err != nil {
		err = fmt.Errorf("failed to fetch product catalog: %w", err)
		e.appendLog(ctx, sum, err)
		return sum, err
	}

	existing, err := e.productRepo.List(ctx, "")
	if err != nil {
		err = fmt.Errorf("failed to list products: %w", err)
		e.appendLog(ctx, sum, err)
		return sum, err
	}
	bySKU := make(map[string]domain.Product, len(existing))
	for _, p := range existing {
		bySKU[p.SKU] = p
	}

	updated := 0
	for _, entry := range entries {
		if entry.SKU == "" {
			continue
		}
		cur, known := bySKU[entry.SKU]
		if !known {
			p := &domain.Product{SKU: entry.SKU, Description: entry.Description, Family: entry.Family}
			if err := e.productRepo.Create(ctx, p); err != nil {
				err = fmt.Errorf("failed to create product %s: %w", entry.SKU, err)
				e.appendLog(ctx, sum, err)
				return sum, err
			}
			bySKU[entry.SKU] = *p
			sum.ProductsCreated++
			sum.Products++
			continue
		}

		changed := false
		if entry.Description != "" && entry.Description != cur.Description {
			cur.Description = entry.Description
			changed = true
		}
		if entry.Family != "" && entry.Family != cur.Family {
			cur.Family = entry.Family
			changed = true
		}
		if changed {
			if err := e.productRepo.Update(ctx, &cur); err != nil {
				err = fmt.Errorf("failed to update product %s: %w", entry.SKU, err)
				e.appendLog(ctx, sum, err)
				return sum, err
			}
			bySKU[entry.SKU] = cur
			updated++
		}
		sum.Products++
	}

	e.invalidate(ctx)
	e.appendLog(ctx, sum, nil)
	e.log.Info().
		Int("catalog", len(entries)).
		Int("created", sum.ProductsCreated).
		Int("updated", updated).
		Msg("catalog sync complete")
	return sum, nil
}

// SyncDay fetches one day of documents and accumulates the extracted totals
// on top of the day's month. Running it twice for the same day double-counts;
// the monthly consolidation repairs that.
func (e *Engine) SyncDay(ctx context.Context, day time.Time) (Summary, error) {
	day = day.In(e.loc)
	sum := Summary{Type: domain.SyncTypeDaily, Period: domain.PeriodOf(day)}

	totals, stats, err := e.fetchRange(ctx, day, day)
	if err != nil {
		e.appendLog(ctx, sum, err)
		return sum, err
	}
	sum.Documents, sum.FailedDocuments = stats.documents, stats.failed

	rows, created, err := e.monthlyRows(ctx, totals, sum.Period)
	if err != nil {
		e.appendLog(ctx, sum, err)
		return sum, err
	}
	sum.Products, sum.ProductsWithSale, sum.ProductsCreated = len(rows), len(rows), created

	if err := e.salesRepo.AccumulateMonthly(ctx, rows); err != nil {
		err = fmt.Errorf("failed to accumulate daily sales: %w", err)
		e.appendLog(ctx, sum, err)
		return sum, err
	}

	e.invalidate(ctx)
	e.appendLog(ctx, sum, nil)
	e.log.Info().
		Str("day", day.Format("2006-01-02")).
		Int("documents", sum.Documents).
		Int("products", sum.Products).
		Msg("daily sync complete")
	return sum, nil
}

// SyncMonth consolidates one closed month from scratch: everything the ERP
// reports for the month replaces whatever the month held before, so it is
// safe to re-run. The open and future months are refused.
func (e *Engine) SyncMonth(ctx context.Context, year, month int) (Summary, error) {
	period := domain.Period{Year: year, Month: month}
	sum := Summary{Type: domain.SyncTypeMonthly, Period: period}

	if month < 1 || month > 12 {
		return sum, fmt.Errorf("invalid month %d", month)
	}
	current := domain.PeriodOf(e.now().In(e.loc))
	if !period.Before(current) {
		return sum, fmt.Errorf("refusing to consolidate %s: month is not closed yet", period.Label())
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, e.loc)
	last := first.AddDate(0, 1, -1)

	totals, stats, err := e.fetchRange(ctx, first, last)
	if err != nil {
		e.appendLog(ctx, sum, err)
		return sum, err
	}
	sum.Documents, sum.FailedDocuments = stats.documents, stats.failed

	rows, created, err := e.monthlyRows(ctx, totals, period)
	if err != nil {
		e.appendLog(ctx, sum, err)
		return sum, err
	}
	sum.Products, sum.ProductsWithSale, sum.ProductsCreated = len(rows), len(rows), created

	if err := e.salesRepo.ReplaceMonth(ctx, period, rows); err != nil {
		err = fmt.Errorf("failed to replace month %s: %w", period.Label(), err)
		e.appendLog(ctx, sum, err)
		return sum, err
	}

	e.invalidate(ctx)
	e.appendLog(ctx, sum, nil)
	e.log.Info().
		Str("period", period.Label()).
		Int("documents", sum.Documents).
		Int("products", sum.Products).
		Msg("monthly consolidation complete")
	return sum, nil
}

// Backfill consolidates every month from from through to, oldest first,
// stopping at the first failure.
func (e *Engine) Backfill(ctx context.Context, from, to domain.Period, progress ProgressFunc) ([]Summary, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid backfill range: %s is before %s", to.Label(), from.Label())
	}

	var sums []Summary
	for p := from; !to.Before(p); p = p.AddMonths(1) {
		progress.emit(StepSales, StatusRunning, p.Label(), 0)
		sum, err := e.SyncMonth(ctx, p.Year, p.Month)
		if err != nil {
			progress.emit(StepSales, StatusError, err.Error(), 0)
			return sums, fmt.Errorf("backfill stopped at %s: %w", p.Label(), err)
		}
		sums = append(sums, sum)
		progress.emit(StepSales, StatusDone, p.Label(), sum.Products)
	}
	return sums, nil
}

// AuditDrift is one SKU whose stored monthly totals differ from what the
// ERP currently reports for the month.
type AuditDrift struct {
	SKU        string
	StoredQty  float64
	FetchedQty float64
	StoredNet  float64
	FetchedNet float64
}

// AuditMonth re-fetches a closed month and diffs the aggregate against the
// stored monthly rows. Nothing is written; SKUs seen only on one side are
// reported with zeros on the other.
func (e *Engine) AuditMonth(ctx context.Context, year, month int) ([]AuditDrift, error) {
	period := domain.Period{Year: year, Month: month}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month %d", month)
	}
	current := domain.PeriodOf(e.now().In(e.loc))
	if !period.Before(current) {
		return nil, fmt.Errorf("refusing to audit %s: month is not closed yet", period.Label())
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, e.loc)
	last := first.AddDate(0, 1, -1)
	totals, _, err := e.fetchRange(ctx, first, last)
	if err != nil {
		return nil, err
	}

	products, err := e.productRepo.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	skuByID := make(map[int64]string, len(products))
	for _, p := range products {
		skuByID[p.ID] = p.SKU
	}

	stored, err := e.salesRepo.GetWindow(ctx, period, period, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored month: %w", err)
	}

	type pair struct{ qty, net float64 }
	storedBySKU := make(map[string]pair, len(stored))
	for _, row := range stored {
		storedBySKU[skuByID[row.ProductID]] = pair{row.QuantitySold, row.NetAmount}
	}

	skus := make(map[string]struct{}, len(totals)+len(storedBySKU))
	for sku := range totals {
		skus[sku] = struct{}{}
	}
	for sku := range storedBySKU {
		skus[sku] = struct{}{}
	}

	var drifts []AuditDrift
	for sku := range skus {
		var fetched pair
		if t, ok := totals[sku]; ok {
			fetched = pair{t.Quantity, t.NetAmount}
		}
		have := storedBySKU[sku]
		if math.Abs(fetched.qty-have.qty) < 1e-6 && math.Abs(fetched.net-have.net) < 1e-6 {
			continue
		}
		drifts = append(drifts, AuditDrift{
			SKU:        sku,
			StoredQty:  have.qty,
			FetchedQty: fetched.qty,
			StoredNet:  have.net,
			FetchedNet: fetched.net,
		})
	}
	sort.Slice(drifts, func(i, j int) bool { return drifts[i].SKU < drifts[j].SKU })
	return drifts, nil
}

// SyncCurrentMonth rebuilds the open month from the 1st through yesterday
// (through today when includeToday is set) and attaches a fresh stock
// snapshot. Rows whose product no longer shows sales or stock are pruned.
func (e *Engine) SyncCurrentMonth(ctx context.Context, includeToday bool) (Summary, error) {
	return e.syncCurrent(ctx, includeToday, nil)
}

// RunFull executes the catalog, sales and stock steps in order, reporting per
// step progress through the optional callback.
func (e *Engine) RunFull(ctx context.Context, progress ProgressFunc) (Summary, error) {
	started := e.now()
	full := Summary{Type: domain.SyncTypeFull, Period: domain.PeriodOf(started.In(e.loc))}

	progress.emit(StepCatalog, StatusRunning, "", 0)
	catalog, err := e.SyncProducts(ctx)
	if err != nil {
		progress.emit(StepCatalog, StatusError, err.Error(), 0)
		e.appendLog(ctx, full, err)
		return full, err
	}
	progress.emit(StepCatalog, StatusDone, "", catalog.Products)
	full.Products = catalog.Products
	full.ProductsCreated = catalog.ProductsCreated

	cur, err := e.syncCurrent(ctx, false, progress)
	full.Documents = cur.Documents
	full.FailedDocuments = cur.FailedDocuments
	full.ProductsWithSale = cur.ProductsWithSale
	full.ProductsCreated += cur.ProductsCreated
	full.StockedProducts = cur.StockedProducts
	if err != nil {
		e.appendLog(ctx, full, err)
		return full, err
	}

	e.appendLog(ctx, full, nil)
	_ = e.archive.StoreRunSummary(ctx, started, full)
	e.log.Info().
		Dur("took", time.Since(started)).
		Int("documents", full.Documents).
		Int("products", full.Products).
		Int("stocked", full.StockedProducts).
		Msg("full sync complete")
	return full, nil
}

func (e *Engine) syncCurrent(ctx context.Context, includeToday bool, progress ProgressFunc) (Summary, error) {
	now := e.now().In(e.loc)
	period := domain.PeriodOf(now)
	sum := Summary{Type: domain.SyncTypeCurrentMonth, Period: period}

	progress.emit(StepSales, StatusRunning, "", 0)

	first := time.Date(period.Year, time.Month(period.Month), 1, 0, 0, 0, 0, e.loc)
	end := now
	if !includeToday {
		end = now.AddDate(0, 0, -1)
	}

	// On the 1st with includeToday unset there are no closed days yet; the
	// rebuild still runs to prune stale rows and refresh stock.
	totals := sales.NewSKUTotals()
	var stats rangeStats
	if !end.Before(first) {
		var err error
		totals, stats, err = e.fetchRange(ctx, first, end)
		if err != nil {
			e.appendLog(ctx, sum, err)
			progress.emit(StepSales, StatusError, err.Error(), 0)
			return sum, err
		}
	}
	sum.Documents, sum.FailedDocuments = stats.documents, stats.failed

	wanted := make(map[string]string, len(totals))
	for sku, t := range totals {
		wanted[sku] = t.Description
	}
	ids, created, err := e.resolveSKUs(ctx, wanted)
	if err != nil {
		e.appendLog(ctx, sum, err)
		progress.emit(StepSales, StatusError, err.Error(), 0)
		return sum, err
	}
	sum.ProductsCreated = created

	rows := make([]domain.CurrentMonthSale, 0, len(totals))
	keep := make([]int64, 0, len(totals))
	for sku, t := range totals {
		rows = append(rows, domain.CurrentMonthSale{
			ProductID:    ids[sku],
			QuantitySold: t.Quantity,
			NetAmount:    t.NetAmount,
		})
		keep = append(keep, ids[sku])
	}
	if err := e.salesRepo.UpsertCurrentSales(ctx, rows); err != nil {
		err = fmt.Errorf("failed to upsert open month sales: %w", err)
		e.appendLog(ctx, sum, err)
		progress.emit(StepSales, StatusError, err.Error(), 0)
		return sum, err
	}
	sum.Products, sum.ProductsWithSale = len(rows), len(rows)
	e.appendLog(ctx, sum, nil)
	progress.emit(StepSales, StatusDone, "", len(rows))

	progress.emit(StepStock, StatusRunning, "", 0)
	stocked, err := e.attachStock(ctx, now, ids, keep)
	if err != nil {
		e.appendLog(ctx, Summary{Type: domain.SyncTypeStock, Period: period}, err)
		progress.emit(StepStock, StatusError, err.Error(), 0)
		return sum, err
	}
	sum.StockedProducts = stocked
	e.appendLog(ctx, Summary{Type: domain.SyncTypeStock, Period: period, Products: stocked}, nil)

	e.invalidate(ctx)
	progress.emit(StepStock, StatusDone, "", stocked)
	e.log.Info().
		Str("period", period.Label()).
		Int("documents", sum.Documents).
		Int("products", sum.Products).
		Int("stocked", stocked).
		Msg("open month rebuilt")
	return sum, nil
}

// attachStock snapshots stock, prunes open-month rows that have neither sales
// nor stock, and writes the on-hand quantities. Snapshot rows for SKUs the
// catalog has never seen are skipped rather than turned into placeholders.
func (e *Engine) attachStock(ctx context.Context, at time.Time, ids map[string]int64, salesKeep []int64) (int, error) {
	entries, err := e.erp.FetchStock(ctx, at)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch stock snapshot: %w", err)
	}
	onHand := stock.OnHand(entries)

	sold := make(map[int64]bool, len(salesKeep))
	for _, id := range salesKeep {
		sold[id] = true
	}

	keep := salesKeep
	byID := make(map[int64]float64, len(onHand))
	var zeroRows []domain.CurrentMonthSale
	unknown := 0
	for sku, qty := range onHand {
		id, known := ids[sku]
		if !known {
			unknown++
			continue
		}
		byID[id] = qty
		keep = append(keep, id)
		// A stocked product missing from the rebuilt aggregate sold nothing
		// this month; any quantity its row still carries is stale.
		if !sold[id] {
			zeroRows = append(zeroRows, domain.CurrentMonthSale{ProductID: id})
		}
	}
	if unknown > 0 {
		e.log.Debug().Int("count", unknown).Msg("skipped stock rows for uncataloged SKUs")
	}

	if len(zeroRows) > 0 {
		if err := e.salesRepo.UpsertCurrentSales(ctx, zeroRows); err != nil {
			return 0, fmt.Errorf("failed to zero unsold stocked rows: %w", err)
		}
	}
	if _, err := e.salesRepo.PruneCurrentExcept(ctx, keep); err != nil {
		return 0, fmt.Errorf("failed to prune open month rows: %w", err)
	}
	if err := e.salesRepo.AttachStock(ctx, byID); err != nil {
		return 0, fmt.Errorf("failed to attach stock: %w", err)
	}
	return len(byID), nil
}

type rangeStats struct {
	documents int
	failed    int
}

// fetchRange pulls every configured document kind across [from, to], slicing
// the range so no single request spans more than MaxRangeDays, and folds the
// extracted lines into per-SKU totals. Kinds are fetched in parallel.
func (e *Engine) fetchRange(ctx context.Context, from, to time.Time) (sales.SKUTotals, rangeStats, error) {
	totals := sales.NewSKUTotals()
	var stats rangeStats

	for _, span := range splitRange(from, to, e.cfg.MaxRangeDays) {
		kindTotals := make([]sales.SKUTotals, len(e.cfg.DocumentKinds))
		kindStats := make([]rangeStats, len(e.cfg.DocumentKinds))

		g, gctx := errgroup.WithContext(ctx)
		for i, kind := range e.cfg.DocumentKinds {
			i, kind := i, kind
			g.Go(func() error {
				t, s, err := e.collectKind(gctx, kind, span.from, span.to)
				if err != nil {
					return err
				}
				kindTotals[i], kindStats[i] = t, s
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, stats, err
		}

		for i := range kindTotals {
			totals.Merge(kindTotals[i])
			stats.documents += kindStats[i].documents
			stats.failed += kindStats[i].failed
		}
	}
	return totals, stats, nil
}

// collectKind fetches one kind over one span and extracts its lines.
// Documents the list payload cannot be extracted from are retried through the
// per-document detail endpoint.
func (e *Engine) collectKind(ctx context.Context, kind string, from, to time.Time) (sales.SKUTotals, rangeStats, error) {
	docs, err := e.erp.FetchDocuments(ctx, kind, from, to)
	if err != nil {
		return nil, rangeStats{}, fmt.Errorf("failed to fetch %s documents: %w", kind, err)
	}

	totals := sales.NewSKUTotals()
	stats := rangeStats{documents: len(docs)}

	type pendingDoc struct {
		num string
		raw erp.Document
	}
	var pending []pendingDoc
	for _, doc := range docs {
		lines, ok := e.extractor.Extract(doc)
		if ok {
			totals.Add(lines...)
			continue
		}
		num, has := doc.DocNum()
		if !has {
			stats.failed++
			e.log.Warn().Str("kind", kind).Msg("document with no line collection and no registration number")
			continue
		}
		pending = append(pending, pendingDoc{num: num, raw: doc})
	}

	for i, doc := range pending {
		if i > 0 && i%e.cfg.DetailBatchSize == 0 && e.cfg.DetailBatchDelay > 0 {
			select {
			case <-ctx.Done():
				return totals, stats, ctx.Err()
			case <-time.After(e.cfg.DetailBatchDelay):
			}
		}

		lines, err := e.fetchDetailLines(ctx, kind, doc.num)
		if err != nil {
			if ctx.Err() != nil {
				return totals, stats, ctx.Err()
			}
			stats.failed++
			_ = e.archive.StoreFailedDocument(ctx, kind, doc.num, doc.raw)
			e.log.Warn().Err(err).Str("kind", kind).Str("doc", doc.num).Msg("failed to recover document detail")
			continue
		}
		totals.Add(lines...)
	}
	return totals, stats, nil
}

// fetchDetailLines fetches one document's detail, retrying transient fetch
// errors with linear backoff. A detail with no recognizable line collection
// is not retried.
func (e *Engine) fetchDetailLines(ctx context.Context, kind, num string) ([]sales.LineItem, error) {
	var lastErr error
	for attempt := 1; attempt <= detailRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * detailRetryDelay):
			}
		}

		detail, err := e.erp.FetchDocumentDetail(ctx, kind, num)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) || ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}

		lines, ok := e.extractor.Extract(detail)
		if !ok {
			return nil, fmt.Errorf("detail of %s %s has no recognizable line collection", kind, num)
		}
		return lines, nil
	}
	return nil, lastErr
}

// resolveSKUs maps each wanted SKU (value: last seen description) to its
// product id, creating placeholder products for SKUs the catalog has not seen
// yet. The returned map covers the whole catalog.
func (e *Engine) resolveSKUs(ctx context.Context, wanted map[string]string) (map[string]int64, int, error) {
	existing, err := e.productRepo.List(ctx, "")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	ids := make(map[string]int64, len(existing))
	for _, p := range existing {
		ids[p.SKU] = p.ID
	}

	created := 0
	for sku, desc := range wanted {
		if _, known := ids[sku]; known {
			continue
		}
		p := &domain.Product{SKU: sku, Description: desc}
		if err := e.productRepo.Create(ctx, p); err != nil {
			return nil, created, fmt.Errorf("failed to create placeholder product %s: %w", sku, err)
		}
		ids[sku] = p.ID
		created++
	}
	return ids, created, nil
}

func (e *Engine) monthlyRows(ctx context.Context, totals sales.SKUTotals, period domain.Period) ([]domain.MonthlySale, int, error) {
	wanted := make(map[string]string, len(totals))
	for sku, t := range totals {
		wanted[sku] = t.Description
	}
	ids, created, err := e.resolveSKUs(ctx, wanted)
	if err != nil {
		return nil, 0, err
	}

	rows := make([]domain.MonthlySale, 0, len(totals))
	for sku, t := range totals {
		rows = append(rows, domain.MonthlySale{
			ProductID:    ids[sku],
			Year:         period.Year,
			Month:        period.Month,
			QuantitySold: t.Quantity,
			NetAmount:    t.NetAmount,
		})
	}
	return rows, created, nil
}

// appendLog records the run in the sync log. Logging is best effort and never
// fails the sync itself.
func (e *Engine) appendLog(ctx context.Context, sum Summary, runErr error) {
	entry := &domain.SyncLogEntry{
		SyncType:          sum.Type,
		TargetYear:        sum.Period.Year,
		TargetMonth:       sum.Period.Month,
		DocumentCount:     sum.Documents,
		ProductCount:      sum.Products,
		ProductsWithSales: sum.ProductsWithSale,
	}
	if runErr != nil {
		msg := runErr.Error()
		entry.Message = &msg
	} else if sum.FailedDocuments > 0 {
		msg := fmt.Sprintf("%d documents failed extraction", sum.FailedDocuments)
		entry.Message = &msg
	}
	if err := e.logRepo.Append(ctx, entry); err != nil {
		e.log.Warn().Err(err).Str("sync_type", sum.Type).Msg("failed to append sync log entry")
	}
}

func (e *Engine) invalidate(ctx context.Context) {
	if err := e.cache.InvalidateAll(ctx); err != nil {
		e.log.Warn().Err(err).Msg("failed to invalidate dashboard cache")
	}
}

type dateSpan struct {
	from, to time.Time
}

func splitRange(from, to time.Time, maxDays int) []dateSpan {
	if maxDays <= 0 {
		maxDays = 10
	}
	var spans []dateSpan
	for start := from; !start.After(to); {
		end := start.AddDate(0, 0, maxDays-1)
		if end.After(to) {
			end = to
		}
		spans = append(spans, dateSpan{from: start, to: end})
		start = end.AddDate(0, 0, 1)
	}
	return spans
}

// internal/service/dashboard.go
package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tiendanorte/compraplan/internal/cache"
	"github.com/tiendanorte/compraplan/internal/domain"
	"github.com/tiendanorte/compraplan/internal/erp"
	"github.com/tiendanorte/compraplan/internal/sales"
	"github.com/tiendanorte/compraplan/pkg/logger"
)

// DefaultWindowMonths is the dashboard window used when the client does not
// ask for one.
const DefaultWindowMonths = 6

// ProductLister is the slice of the product repository the dashboard reads.
type ProductLister interface {
	List(ctx context.Context, skuPrefix string) ([]domain.Product, error)
}

// SalesReader is the slice of the sales repository the dashboard reads.
type SalesReader interface {
	GetWindow(ctx context.Context, from, to domain.Period, productIDs []int64) ([]domain.MonthlySale, error)
	ListCurrent(ctx context.Context) ([]domain.CurrentMonthSale, error)
}

// OrderStore covers the order-line operations the services need.
type OrderStore interface {
	Upsert(ctx context.Context, productID int64, period domain.Period, quantity float64) error
	Delete(ctx context.Context, productID int64, period domain.Period) error
	ListForPeriod(ctx context.Context, period domain.Period) ([]domain.PurchaseOrderLine, error)
	ResetPeriod(ctx context.Context, period domain.Period) (int64, error)
}

// LiveSalesFetcher pulls today's raw documents for the live component of the
// dashboard.
type LiveSalesFetcher interface {
	FetchDocumentsAllKinds(ctx context.Context, from, to time.Time) ([]erp.Document, error)
}

// DashboardService assembles the purchase-planning board.
type DashboardService struct {
	productRepo ProductLister
	salesRepo   SalesReader
	orderRepo   OrderStore
	live        LiveSalesFetcher
	cache       cache.DashboardCache
	extractor   *sales.Extractor
	loc         *time.Location
	now         func() time.Time
	log         zerolog.Logger
}

// NewDashboardService wires the dashboard. live may be nil, which pins the
// liveToday flag to false.
func NewDashboardService(productRepo ProductLister, salesRepo SalesReader, orderRepo OrderStore, live LiveSalesFetcher, dashCache cache.DashboardCache, loc *time.Location) *DashboardService {
	if loc == nil {
		loc = time.Local
	}
	return &DashboardService{
		productRepo: productRepo,
		salesRepo:   salesRepo,
		orderRepo:   orderRepo,
		live:        live,
		cache:       dashCache,
		extractor:   sales.NewExtractor(),
		loc:         loc,
		now:         time.Now,
		log:         logger.Component("dashboard"),
	}
}

// GetDashboard returns the board for the requested window, serving from cache
// when a fresh copy exists.
func (s *DashboardService) GetDashboard(ctx context.Context, query domain.DashboardQuery) (*domain.DashboardResponse, error) {
	query, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}

	if resp, hit, err := s.cache.Get(ctx, query); err != nil {
		s.log.Warn().Err(err).Msg("dashboard cache read failed")
	} else if hit {
		return resp, nil
	}

	resp, err := s.build(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, query, resp); err != nil {
		s.log.Warn().Err(err).Msg("dashboard cache write failed")
	}
	return resp, nil
}

func normalizeQuery(q domain.DashboardQuery) (domain.DashboardQuery, error) {
	if q.Months == 0 {
		q.Months = DefaultWindowMonths
	}
	switch q.Months {
	case 3, 6, 12:
	default:
		return q, domain.ErrInvalidMonths
	}
	q.SKUPrefix = strings.ToUpper(strings.TrimSpace(q.SKUPrefix))
	return q, nil
}

func (s *DashboardService) build(ctx context.Context, query domain.DashboardQuery) (*domain.DashboardResponse, error) {
	now := s.now().In(s.loc)
	current := domain.PeriodOf(now)
	from := current.AddMonths(-query.Months)
	to := current.AddMonths(-1)

	products, err := s.productRepo.List(ctx, query.SKUPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	// With a prefix filter the window query is restricted to the matching
	// products; without one it reads the whole table in a single pass.
	var ids []int64
	if query.SKUPrefix != "" {
		ids = make([]int64, 0, len(products))
		for _, p := range products {
			ids = append(ids, p.ID)
		}
	}

	window, err := s.salesRepo.GetWindow(ctx, from, to, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to read sales window: %w", err)
	}
	salesByProduct := make(map[int64][]domain.MonthlySale)
	for _, ms := range window {
		salesByProduct[ms.ProductID] = append(salesByProduct[ms.ProductID], ms)
	}

	currentRows, err := s.salesRepo.ListCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read open month: %w", err)
	}
	currentByProduct := make(map[int64]domain.CurrentMonthSale, len(currentRows))
	for _, row := range currentRows {
		currentByProduct[row.ProductID] = row
	}

	orderRows, err := s.orderRepo.ListForPeriod(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("failed to read order lines: %w", err)
	}
	ordersByProduct := make(map[int64]float64, len(orderRows))
	for _, line := range orderRows {
		ordersByProduct[line.ProductID] = line.Quantity
	}

	liveBySKU, liveOK := s.liveToday(ctx, now)

	periods := windowPeriods(from, query.Months)
	periodIndex := make(map[domain.Period]int, len(periods))
	labels := make([]string, len(periods))
	for i, p := range periods {
		periodIndex[p] = i
		labels[i] = p.Label()
	}

	rows := make([]domain.DashboardRow, 0, len(products))
	for _, p := range products {
		months := make([]domain.MonthQuantity, len(periods))
		for i, period := range periods {
			months[i] = domain.MonthQuantity{Period: period}
		}

		anySale := false
		var windowQty, windowNet float64
		for _, ms := range salesByProduct[p.ID] {
			idx, inWindow := periodIndex[domain.Period{Year: ms.Year, Month: ms.Month}]
			if !inWindow {
				continue
			}
			months[idx].Quantity = ms.QuantitySold
			windowQty += ms.QuantitySold
			windowNet += ms.NetAmount
			if ms.QuantitySold != 0 {
				anySale = true
			}
		}

		avg := round2(windowQty / float64(query.Months))

		cur := currentByProduct[p.ID]
		currentSold := cur.QuantitySold
		if liveOK {
			currentSold += liveBySKU[p.SKU]
		}

		var ordered *float64
		if qty, has := ordersByProduct[p.ID]; has {
			ordered = &qty
		}

		if !anySale && currentSold == 0 && cur.StockOnHand == 0 && ordered == nil {
			continue
		}

		rows = append(rows, domain.DashboardRow{
			ProductID:         p.ID,
			SKU:               p.SKU,
			Description:       p.Description,
			Family:            p.Family,
			Months:            months,
			AverageMonthly:    avg,
			CurrentMonthSold:  currentSold,
			StockOnHand:       cur.StockOnHand,
			SuggestedPurchase: suggestedPurchase(avg, cur.StockOnHand, currentSold),
			OrderedQuantity:   ordered,
			NetAmountWindow:   windowNet,
		})
	}

	return &domain.DashboardResponse{
		Meta: domain.DashboardMeta{
			GeneratedAt:   now,
			CurrentPeriod: current.Label(),
			Months:        labels,
			LiveToday:     liveOK,
			RowCount:      len(rows),
		},
		Rows: rows,
	}, nil
}

// suggestedPurchase is the gap between the average monthly demand and what is
// already covered by stock and the running month. Negative values are kept;
// they tell the buyer the product is overstocked.
func suggestedPurchase(avg, stockOnHand, currentSold float64) int {
	return int(math.Round(avg - stockOnHand - currentSold))
}

// liveToday folds today's documents into per-SKU sold quantities. Any failure
// degrades to a board without the live component instead of an error.
func (s *DashboardService) liveToday(ctx context.Context, now time.Time) (map[string]float64, bool) {
	if s.live == nil {
		return nil, false
	}
	docs, err := s.live.FetchDocumentsAllKinds(ctx, now, now)
	if err != nil {
		s.log.Warn().Err(err).Msg("live sales unavailable, serving synced totals only")
		return nil, false
	}

	lines, failed := s.extractor.ExtractAll(docs)
	if len(failed) > 0 {
		s.log.Debug().Int("count", len(failed)).Msg("live documents skipped")
	}
	totals := sales.NewSKUTotals()
	totals.Add(lines...)

	out := make(map[string]float64, len(totals))
	for sku, t := range totals {
		out[sku] = t.Quantity
	}
	return out, true
}

func windowPeriods(from domain.Period, n int) []domain.Period {
	periods := make([]domain.Period, 0, n)
	for i := 0; i < n; i++ {
		periods = append(periods, from.AddMonths(i))
	}
	return periods
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

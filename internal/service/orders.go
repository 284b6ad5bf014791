// internal/service/orders.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tiendanorte/compraplan/internal/cache"
	"github.com/tiendanorte/compraplan/internal/domain"
	"github.com/tiendanorte/compraplan/pkg/logger"
)

// OrderService maintains the operator-entered order quantities for the
// current planning period.
type OrderService struct {
	orderRepo OrderStore
	cache     cache.DashboardCache
	loc       *time.Location
	now       func() time.Time
	log       zerolog.Logger
}

func NewOrderService(orderRepo OrderStore, dashCache cache.DashboardCache, loc *time.Location) *OrderService {
	if loc == nil {
		loc = time.Local
	}
	return &OrderService{
		orderRepo: orderRepo,
		cache:     dashCache,
		loc:       loc,
		now:       time.Now,
		log:       logger.Component("orders"),
	}
}

// SaveOrders upserts the submitted lines for the current period. A zero
// quantity removes the stored line. The whole batch is validated before
// anything is written.
func (s *OrderService) SaveOrders(ctx context.Context, inputs []domain.OrderInput) (saved, deleted int, err error) {
	for _, in := range inputs {
		if in.Quantity < 0 {
			return 0, 0, fmt.Errorf("product %d: %w", in.ProductID, domain.ErrNegativeQuantity)
		}
	}
	if len(inputs) == 0 {
		return 0, 0, nil
	}

	period := domain.PeriodOf(s.now().In(s.loc))
	for _, in := range inputs {
		if in.Quantity == 0 {
			if err := s.orderRepo.Delete(ctx, in.ProductID, period); err != nil {
				return saved, deleted, fmt.Errorf("failed to delete order line for product %d: %w", in.ProductID, err)
			}
			deleted++
			continue
		}
		if err := s.orderRepo.Upsert(ctx, in.ProductID, period, in.Quantity); err != nil {
			return saved, deleted, fmt.Errorf("failed to save order line for product %d: %w", in.ProductID, err)
		}
		saved++
	}

	s.invalidate(ctx)
	s.log.Info().Int("saved", saved).Int("deleted", deleted).Str("period", period.Label()).Msg("order lines updated")
	return saved, deleted, nil
}

// ResetOrders removes every order line of the current period.
func (s *OrderService) ResetOrders(ctx context.Context) (int64, error) {
	period := domain.PeriodOf(s.now().In(s.loc))
	removed, err := s.orderRepo.ResetPeriod(ctx, period)
	if err != nil {
		return 0, fmt.Errorf("failed to reset order lines: %w", err)
	}
	if removed > 0 {
		s.invalidate(ctx)
	}
	s.log.Info().Int64("removed", removed).Str("period", period.Label()).Msg("order lines reset")
	return removed, nil
}

func (s *OrderService) invalidate(ctx context.Context) {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to invalidate dashboard cache")
	}
}

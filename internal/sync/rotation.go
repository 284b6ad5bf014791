// internal/sync/rotation.go
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tiendanorte/compraplan/internal/cache"
	"github.com/tiendanorte/compraplan/internal/domain"
	"github.com/tiendanorte/compraplan/internal/repository"
	"github.com/tiendanorte/compraplan/pkg/logger"
)

// Rotator closes out the open month when the calendar rolls over and prunes
// history that falls outside the retention window.
type Rotator struct {
	salesRepo repository.SalesRepository
	orderRepo repository.OrderRepository
	logRepo   repository.SyncLogRepository
	cache     cache.DashboardCache
	retention int
	loc       *time.Location
	now       func() time.Time
	log       zerolog.Logger
}

func NewRotator(salesRepo repository.SalesRepository, orderRepo repository.OrderRepository, logRepo repository.SyncLogRepository, dashCache cache.DashboardCache, retentionMonths int, loc *time.Location) *Rotator {
	if retentionMonths <= 0 {
		retentionMonths = 12
	}
	if loc == nil {
		loc = time.Local
	}
	return &Rotator{
		salesRepo: salesRepo,
		orderRepo: orderRepo,
		logRepo:   logRepo,
		cache:     dashCache,
		retention: retentionMonths,
		loc:       loc,
		now:       time.Now,
		log:       logger.Component("rotation"),
	}
}

// NeedsRotation reports whether the open-month rows were last written in an
// earlier month than the current one. stale is the month they belong to.
func (r *Rotator) NeedsRotation(ctx context.Context) (needed bool, stale domain.Period, err error) {
	latest, ok, err := r.salesRepo.LatestCurrentUpdate(ctx)
	if err != nil {
		return false, domain.Period{}, fmt.Errorf("failed to read open month freshness: %w", err)
	}
	if !ok {
		return false, domain.Period{}, nil
	}
	stale = domain.PeriodOf(latest.In(r.loc))
	current := domain.PeriodOf(r.now().In(r.loc))
	if !stale.Before(current) {
		return false, domain.Period{}, nil
	}
	return true, stale, nil
}

// Rotate archives the open-month totals into the monthly table at stale and
// restarts the open-month counters, keeping the stock values in place. The
// whole move is one transaction.
func (r *Rotator) Rotate(ctx context.Context, stale domain.Period) (int64, error) {
	moved, err := r.salesRepo.RotateCurrentInto(ctx, stale)
	sum := Summary{Type: domain.SyncTypeRotation, Period: stale, Products: int(moved)}
	if err != nil {
		err = fmt.Errorf("failed to rotate open month into %s: %w", stale.Label(), err)
		r.appendLog(ctx, sum, err)
		return 0, err
	}

	r.appendLog(ctx, sum, nil)
	r.invalidate(ctx)
	r.log.Info().Str("period", stale.Label()).Int64("rows", moved).Msg("open month rotated")
	return moved, nil
}

// PruneOldData removes monthly sales and order lines older than the retention
// window. With the default window of 12 the month exactly twelve months
// before the current one is the oldest survivor.
func (r *Rotator) PruneOldData(ctx context.Context) (salesDeleted, ordersDeleted int64, err error) {
	current := domain.PeriodOf(r.now().In(r.loc))
	cutoff := current.AddMonths(-r.retention)
	sum := Summary{Type: domain.SyncTypePrune, Period: cutoff}

	salesDeleted, err = r.salesRepo.DeleteMonthsBefore(ctx, cutoff)
	if err != nil {
		err = fmt.Errorf("failed to prune monthly sales: %w", err)
		r.appendLog(ctx, sum, err)
		return 0, 0, err
	}
	ordersDeleted, err = r.orderRepo.DeleteBefore(ctx, cutoff)
	if err != nil {
		err = fmt.Errorf("failed to prune order lines: %w", err)
		r.appendLog(ctx, sum, err)
		return salesDeleted, 0, err
	}

	sum.Products = int(salesDeleted)
	r.appendLogMessage(ctx, sum, fmt.Sprintf("removed %d monthly rows and %d order lines before %s", salesDeleted, ordersDeleted, cutoff.Label()))
	if salesDeleted > 0 || ordersDeleted > 0 {
		r.invalidate(ctx)
	}
	r.log.Info().
		Str("cutoff", cutoff.Label()).
		Int64("sales", salesDeleted).
		Int64("orders", ordersDeleted).
		Msg("history pruned")
	return salesDeleted, ordersDeleted, nil
}

// RunFullRotation rotates when needed and prunes afterwards. rotated reports
// whether a rollover actually happened.
func (r *Rotator) RunFullRotation(ctx context.Context) (rotated bool, err error) {
	needed, stale, err := r.NeedsRotation(ctx)
	if err != nil {
		return false, err
	}
	if needed {
		if _, err := r.Rotate(ctx, stale); err != nil {
			return false, err
		}
		rotated = true
	} else {
		r.log.Debug().Msg("open month is current, no rotation needed")
	}
	if _, _, err := r.PruneOldData(ctx); err != nil {
		return rotated, err
	}
	return rotated, nil
}

func (r *Rotator) appendLog(ctx context.Context, sum Summary, runErr error) {
	entry := &domain.SyncLogEntry{
		SyncType:     sum.Type,
		TargetYear:   sum.Period.Year,
		TargetMonth:  sum.Period.Month,
		ProductCount: sum.Products,
	}
	if runErr != nil {
		msg := runErr.Error()
		entry.Message = &msg
	}
	if err := r.logRepo.Append(ctx, entry); err != nil {
		r.log.Warn().Err(err).Str("sync_type", sum.Type).Msg("failed to append sync log entry")
	}
}

func (r *Rotator) appendLogMessage(ctx context.Context, sum Summary, msg string) {
	entry := &domain.SyncLogEntry{
		SyncType:     sum.Type,
		TargetYear:   sum.Period.Year,
		TargetMonth:  sum.Period.Month,
		ProductCount: sum.Products,
		Message:      &msg,
	}
	if err := r.logRepo.Append(ctx, entry); err != nil {
		r.log.Warn().Err(err).Str("sync_type", sum.Type).Msg("failed to append sync log entry")
	}
}

func (r *Rotator) invalidate(ctx context.Context) {
	if err := r.cache.InvalidateAll(ctx); err != nil {
		r.log.Warn().Err(err).Msg("failed to invalidate dashboard cache")
	}
}

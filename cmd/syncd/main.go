// cmd/syncd/main.go
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/tiendanorte/compraplan/internal/archive"
	"github.com/tiendanorte/compraplan/internal/cache"
	"github.com/tiendanorte/compraplan/internal/config"
	"github.com/tiendanorte/compraplan/internal/erp"
	"github.com/tiendanorte/compraplan/internal/repository"
	"github.com/tiendanorte/compraplan/internal/repository/postgres"
	"github.com/tiendanorte/compraplan/internal/sync"
	"github.com/tiendanorte/compraplan/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.SetLevel(cfg.App.LogLevel)

	if err := cfg.ValidateERP(); err != nil {
		log.Fatalf("Invalid ERP configuration: %v", err)
	}

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	productRepo := postgres.NewProductRepository(db)
	salesRepo := postgres.NewSalesRepository(db)
	orderRepo := postgres.NewOrderRepository(db)
	logRepo := postgres.NewSyncLogRepository(db)

	dashCache, err := cache.NewDashboardCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Redis unavailable, dashboard cache disabled")
		dashCache = cache.NewNoopDashboardCache()
	}

	payloadArchive, err := archive.New(context.Background(), cfg.Archive)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Archive unavailable, raw payloads will not be kept")
		payloadArchive = archive.NewNoop()
	}

	auth := erp.NewPasswordAuthenticator(cfg.ERP.BaseURL, cfg.ERP.Username, cfg.ERP.Password, cfg.ERP.TokenTTL, cfg.ERP.Timeout)
	erpClient := erp.NewClient(cfg.ERP, auth)
	loc := cfg.Location()

	engine := sync.NewEngine(sync.Deps{
		ERP:      erpClient,
		Products: productRepo,
		Sales:    salesRepo,
		SyncLog:  logRepo,
		Archive:  payloadArchive,
		Cache:    dashCache,
		Location: loc,
	}, sync.Config{
		DocumentKinds:    cfg.ERP.DocumentKinds,
		MaxRangeDays:     cfg.Sync.MaxRangeDays,
		DetailBatchSize:  cfg.Sync.DetailBatchSize,
		DetailBatchDelay: cfg.Sync.DetailBatchDelay,
	})
	rotator := sync.NewRotator(salesRepo, orderRepo, logRepo, dashCache, cfg.Sync.RetentionMonths, loc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	statusSrv := startStatusServer(cfg.Syncd.StatusPort, logRepo)

	interval := cfg.Syncd.CurrentInterval
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	logger.Log.Info().
		Dur("interval", interval).
		Str("status_port", cfg.Syncd.StatusPort).
		Msg("Sync daemon started")

	// Catch up before the first tick: roll the month over if the daemon
	// was down across a boundary, then refresh the open month.
	if _, err := rotator.RunFullRotation(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Rotation failed")
	}
	refreshCurrent(ctx, engine)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	daily := time.NewTimer(untilNextDaily(time.Now().In(loc)))
	defer daily.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info().Msg("Shutting down sync daemon...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := statusSrv.Shutdown(shutdownCtx); err != nil {
				logger.Log.Warn().Err(err).Msg("Status server forced to shutdown")
			}
			logger.Log.Info().Msg("Sync daemon exiting")
			return
		case <-ticker.C:
			refreshCurrent(ctx, engine)
		case <-daily.C:
			runDailyPass(ctx, engine, rotator, loc)
			daily.Reset(untilNextDaily(time.Now().In(loc)))
		}
	}
}

func refreshCurrent(ctx context.Context, engine *sync.Engine) {
	if ctx.Err() != nil {
		return
	}
	if _, err := engine.SyncCurrentMonth(ctx, false); err != nil && ctx.Err() == nil {
		logger.Log.Error().Err(err).Msg("Current month sync failed")
	}
}

// runDailyPass handles the just-closed day. Rotation must come first: on
// the 1st it archives the month as of yesterday's refresh, and the day
// sync then adds the closing day on top.
func runDailyPass(ctx context.Context, engine *sync.Engine, rotator *sync.Rotator, loc *time.Location) {
	if ctx.Err() != nil {
		return
	}
	if _, err := rotator.RunFullRotation(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Rotation failed")
	}
	yesterday := time.Now().In(loc).AddDate(0, 0, -1)
	if _, err := engine.SyncDay(ctx, yesterday); err != nil && ctx.Err() == nil {
		logger.Log.Error().Err(err).Msg("Daily sync failed")
	}
	refreshCurrent(ctx, engine)
}

// untilNextDaily returns the wait until five minutes past the next
// midnight, giving the ERP time to close out the day first.
func untilNextDaily(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 5, 0, 0, now.Location())
	return next.Sub(now)
}

func startStatusServer(port string, logRepo repository.SyncLogRepository) *http.Server {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	r.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		latest, err := logRepo.LatestByType(req.Context())
		if err != nil {
			http.Error(w, "failed to read sync history", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"last_runs": latest,
		})
	}).Methods("GET")

	srv := &http.Server{Addr: ":" + port, Handler: r}
	go func() {
		logger.Log.Info().Str("port", port).Msg("Status listener started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start status listener")
		}
	}()
	return srv
}

// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tiendanorte/compraplan/internal/api"
	"github.com/tiendanorte/compraplan/internal/archive"
	"github.com/tiendanorte/compraplan/internal/cache"
	"github.com/tiendanorte/compraplan/internal/config"
	"github.com/tiendanorte/compraplan/internal/erp"
	"github.com/tiendanorte/compraplan/internal/repository/postgres"
	"github.com/tiendanorte/compraplan/internal/service"
	"github.com/tiendanorte/compraplan/internal/sync"
	"github.com/tiendanorte/compraplan/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.App.LogLevel)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

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

	// Initialize services
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
	dashboardService := service.NewDashboardService(productRepo, salesRepo, orderRepo, erpClient, dashCache, loc)
	orderService := service.NewOrderService(orderRepo, dashCache, loc)

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{
		Dashboard: dashboardService,
		Orders:    orderService,
		Sync:      engine,
		SyncLog:   logRepo,
	}, cfg.Server.AllowedOrigins)

	// WriteTimeout defaults to zero so the sync event stream is not cut
	// off mid-run.
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}

// cmd/synctl/main.go
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/tiendanorte/compraplan/internal/archive"
	"github.com/tiendanorte/compraplan/internal/cache"
	"github.com/tiendanorte/compraplan/internal/config"
	"github.com/tiendanorte/compraplan/internal/domain"
	"github.com/tiendanorte/compraplan/internal/erp"
	"github.com/tiendanorte/compraplan/internal/repository"
	"github.com/tiendanorte/compraplan/internal/repository/postgres"
	"github.com/tiendanorte/compraplan/internal/sync"
	"github.com/tiendanorte/compraplan/pkg/logger"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

// stack bundles the pieces most commands need. init is the exception: it
// talks to the database directly so it can run before any schema exists.
type stack struct {
	db      *postgres.DB
	engine  *sync.Engine
	rotator *sync.Rotator
	logs    repository.SyncLogRepository
	loc     *time.Location
}

func buildStack(needERP bool) (*stack, error) {
	cfg := config.Load()
	logger.SetLevel(cfg.App.LogLevel)

	if needERP {
		if err := cfg.ValidateERP(); err != nil {
			return nil, err
		}
	}

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

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

	return &stack{db: db, engine: engine, rotator: rotator, logs: logRepo, loc: loc}, nil
}

func (s *stack) Close() {
	s.db.Close()
}

func withStack(needERP bool, fn func(*cli.Context, *stack) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		s, err := buildStack(needERP)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(c, s)
	}
}

func parsePeriod(value string) (domain.Period, error) {
	t, err := time.Parse("2006-01", value)
	if err != nil {
		return domain.Period{}, fmt.Errorf("invalid period %q (want YYYY-MM): %w", value, err)
	}
	return domain.PeriodOf(t), nil
}

func printProgress(p sync.Progress) {
	switch {
	case p.Detail != "" && p.Count > 0:
		log.Printf("[%s] %s: %s (%d)", p.Step, p.Status, p.Detail, p.Count)
	case p.Detail != "":
		log.Printf("[%s] %s: %s", p.Step, p.Status, p.Detail)
	case p.Count > 0:
		log.Printf("[%s] %s (%d)", p.Step, p.Status, p.Count)
	default:
		log.Printf("[%s] %s", p.Step, p.Status)
	}
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "synctl",
		Usage: "Administer the purchase planning sync pipeline",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Create the database schema",
				Flags: []cli.Flag{newDBURLFlag()},
				Action: func(c *cli.Context) error {
					db, err := sql.Open("pgx", c.String("db-url"))
					if err != nil {
						return fmt.Errorf("failed to connect to database: %w", err)
					}
					defer db.Close()

					if err := db.PingContext(c.Context); err != nil {
						return fmt.Errorf("failed to ping database: %w", err)
					}
					if err := postgres.Bootstrap(c.Context, db); err != nil {
						return err
					}
					log.Println("Schema ready")
					return nil
				},
			},
			{
				Name:  "products",
				Usage: "Refresh the product catalog from the ERP",
				Action: withStack(true, func(c *cli.Context, s *stack) error {
					sum, err := s.engine.SyncProducts(c.Context)
					if err != nil {
						return err
					}
					log.Printf("Catalog refreshed: %d products (%d new)", sum.Products, sum.ProductsCreated)
					return nil
				}),
			},
			{
				Name:  "day",
				Usage: "Accumulate one day of sales into its month",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "date",
						Usage: "Day to sync in YYYY-MM-DD (default: yesterday)",
					},
				},
				Action: withStack(true, func(c *cli.Context, s *stack) error {
					day := time.Now().In(s.loc).AddDate(0, 0, -1)
					if v := c.String("date"); v != "" {
						parsed, err := time.ParseInLocation("2006-01-02", v, s.loc)
						if err != nil {
							return fmt.Errorf("invalid --date %q (want YYYY-MM-DD): %w", v, err)
						}
						day = parsed
					}

					sum, err := s.engine.SyncDay(c.Context, day)
					if err != nil {
						return err
					}
					log.Printf("Synced %s: %d documents, %d products with sales",
						day.Format("2006-01-02"), sum.Documents, sum.ProductsWithSale)
					if sum.FailedDocuments > 0 {
						log.Printf("%d documents failed extraction; see the archive", sum.FailedDocuments)
					}
					return nil
				}),
			},
			{
				Name:  "month",
				Usage: "Consolidate one closed month from scratch",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "year", Usage: "Target year", Required: true},
					&cli.IntFlag{Name: "month", Usage: "Target month (1-12)", Required: true},
				},
				Action: withStack(true, func(c *cli.Context, s *stack) error {
					sum, err := s.engine.SyncMonth(c.Context, c.Int("year"), c.Int("month"))
					if err != nil {
						return err
					}
					log.Printf("Consolidated %s: %d documents, %d products",
						sum.Period.Label(), sum.Documents, sum.Products)
					return nil
				}),
			},
			{
				Name:  "backfill",
				Usage: "Consolidate a range of closed months, oldest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "First month in YYYY-MM", Required: true},
					&cli.StringFlag{Name: "to", Usage: "Last month in YYYY-MM (default: last closed month)"},
				},
				Action: withStack(true, func(c *cli.Context, s *stack) error {
					from, err := parsePeriod(c.String("from"))
					if err != nil {
						return err
					}
					to := domain.PeriodOf(time.Now().In(s.loc)).AddMonths(-1)
					if v := c.String("to"); v != "" {
						if to, err = parsePeriod(v); err != nil {
							return err
						}
					}

					sums, err := s.engine.Backfill(c.Context, from, to, printProgress)
					if err != nil {
						return err
					}
					log.Printf("Backfilled %d months", len(sums))
					return nil
				}),
			},
			{
				Name:  "current",
				Usage: "Rebuild the open month and refresh the stock snapshot",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "include-today",
						Usage: "Extend the range through today instead of yesterday",
					},
				},
				Action: withStack(true, func(c *cli.Context, s *stack) error {
					sum, err := s.engine.SyncCurrentMonth(c.Context, c.Bool("include-today"))
					if err != nil {
						return err
					}
					log.Printf("Current month rebuilt: %d documents, %d products with sales, %d stocked",
						sum.Documents, sum.ProductsWithSale, sum.StockedProducts)
					return nil
				}),
			},
			{
				Name:  "full",
				Usage: "Run the catalog, sales and stock steps in order",
				Action: withStack(true, func(c *cli.Context, s *stack) error {
					sum, err := s.engine.RunFull(c.Context, printProgress)
					if err != nil {
						return err
					}
					log.Printf("Full sync complete: %d documents, %d products", sum.Documents, sum.Products)
					return nil
				}),
			},
			{
				Name:  "rotate",
				Usage: "Archive the open month if a new month has started",
				Action: withStack(false, func(c *cli.Context, s *stack) error {
					needed, stale, err := s.rotator.NeedsRotation(c.Context)
					if err != nil {
						return err
					}
					if !needed {
						log.Println("Nothing to rotate; the open month is current")
						return nil
					}
					moved, err := s.rotator.Rotate(c.Context, stale)
					if err != nil {
						return err
					}
					log.Printf("Rotated %d products into %s", moved, stale.Label())
					return nil
				}),
			},
			{
				Name:  "prune",
				Usage: "Delete sales and order lines older than the retention window",
				Action: withStack(false, func(c *cli.Context, s *stack) error {
					salesDeleted, ordersDeleted, err := s.rotator.PruneOldData(c.Context)
					if err != nil {
						return err
					}
					log.Printf("Pruned %d monthly rows and %d order lines", salesDeleted, ordersDeleted)
					return nil
				}),
			},
			{
				Name:  "verify",
				Usage: "Diff a closed month against the ERP without writing",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "year", Usage: "Target year", Required: true},
					&cli.IntFlag{Name: "month", Usage: "Target month (1-12)", Required: true},
				},
				Action: withStack(true, func(c *cli.Context, s *stack) error {
					drifts, err := s.engine.AuditMonth(c.Context, c.Int("year"), c.Int("month"))
					if err != nil {
						return err
					}
					period := domain.Period{Year: c.Int("year"), Month: c.Int("month")}
					if len(drifts) == 0 {
						log.Printf("%s is consistent with the ERP", period.Label())
						return nil
					}
					for _, d := range drifts {
						log.Printf("%-20s stored %.2f (net %.2f), erp %.2f (net %.2f), delta %+.2f",
							d.SKU, d.StoredQty, d.StoredNet, d.FetchedQty, d.FetchedNet, d.FetchedQty-d.StoredQty)
					}
					return fmt.Errorf("%d products drifted in %s", len(drifts), period.Label())
				}),
			},
			{
				Name:  "history",
				Usage: "Show recent sync log entries",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: "Filter by sync type"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum entries to show", Value: 20},
				},
				Action: withStack(false, func(c *cli.Context, s *stack) error {
					syncType := c.String("type")
					if syncType != "" && !domain.ValidSyncType(syncType) {
						return fmt.Errorf("unknown sync type %q", syncType)
					}

					entries, err := s.logs.List(c.Context, syncType, c.Int("limit"), 0)
					if err != nil {
						return err
					}
					if len(entries) == 0 {
						log.Println("No sync runs recorded")
						return nil
					}
					for _, e := range entries {
						period := "-"
						if e.TargetYear > 0 {
							period = domain.Period{Year: e.TargetYear, Month: e.TargetMonth}.Label()
						}
						msg := ""
						if e.Message != nil {
							msg = " " + *e.Message
						}
						log.Printf("%s %-13s %-7s docs=%d products=%d%s",
							e.CreatedAt.Format("2006-01-02 15:04:05"), e.SyncType, period,
							e.DocumentCount, e.ProductCount, msg)
					}
					return nil
				}),
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

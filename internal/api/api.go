// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/tiendanorte/compraplan/internal/api/handlers"
	"github.com/tiendanorte/compraplan/internal/api/middleware"
	"github.com/tiendanorte/compraplan/internal/repository"
	"github.com/tiendanorte/compraplan/internal/service"
	"github.com/tiendanorte/compraplan/internal/sync"
)

type Services struct {
	Dashboard *service.DashboardService
	Orders    *service.OrderService
	Sync      *sync.Engine
	SyncLog   repository.SyncLogRepository
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())

	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services != nil {
		if services.Dashboard != nil {
			dashboardHandler := handlers.NewDashboardHandler(services.Dashboard)
			apiGroup.GET("/dashboard", dashboardHandler.GetDashboard)
		}

		if services.Orders != nil {
			orderHandler := handlers.NewOrderHandler(services.Orders)
			ordersGroup := apiGroup.Group("/orders")
			{
				ordersGroup.POST("", orderHandler.SaveOrders)
				ordersGroup.DELETE("", orderHandler.ResetOrders)
			}
		}

		if services.Sync != nil {
			syncHandler := handlers.NewSyncHandler(services.Sync, services.SyncLog)
			syncGroup := apiGroup.Group("/sync")
			{
				syncGroup.POST("", syncHandler.RunSync)
				syncGroup.GET("/history", syncHandler.GetHistory)
			}
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}

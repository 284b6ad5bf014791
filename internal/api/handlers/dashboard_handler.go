// internal/api/handlers/dashboard_handler.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tiendanorte/compraplan/internal/domain"
)

// DashboardProvider builds the purchase-planning board.
type DashboardProvider interface {
	GetDashboard(ctx context.Context, query domain.DashboardQuery) (*domain.DashboardResponse, error)
}

type DashboardHandler struct {
	service DashboardProvider
}

func NewDashboardHandler(service DashboardProvider) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// GetDashboard serves GET /api/v1/dashboard?months=&sku_prefix=
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	query := domain.DashboardQuery{
		SKUPrefix: strings.TrimSpace(c.Query("sku_prefix")),
	}
	if raw := c.DefaultQuery("months", "0"); raw != "" {
		months, err := strconv.Atoi(raw)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "months must be a number")
			return
		}
		query.Months = months
	}

	resp, err := h.service.GetDashboard(c.Request.Context(), query)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidMonths) {
			errorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		errorResponse(c, http.StatusInternalServerError, "failed to build dashboard")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// internal/api/handlers/order_handler.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tiendanorte/compraplan/internal/domain"
)

// OrderManager maintains the operator-entered order lines.
type OrderManager interface {
	SaveOrders(ctx context.Context, inputs []domain.OrderInput) (saved, deleted int, err error)
	ResetOrders(ctx context.Context) (int64, error)
}

type OrderHandler struct {
	service OrderManager
}

func NewOrderHandler(service OrderManager) *OrderHandler {
	return &OrderHandler{service: service}
}

// SaveOrders serves POST /api/v1/orders with a JSON array of order lines.
func (h *OrderHandler) SaveOrders(c *gin.Context) {
	var inputs []domain.OrderInput
	if err := c.ShouldBindJSON(&inputs); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid order payload")
		return
	}

	saved, deleted, err := h.service.SaveOrders(c.Request.Context(), inputs)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNegativeQuantity):
			errorResponse(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrNotFound):
			errorResponse(c, http.StatusNotFound, "unknown product")
		default:
			errorResponse(c, http.StatusInternalServerError, "failed to save orders")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"saved": saved, "deleted": deleted})
}

// ResetOrders serves DELETE /api/v1/orders for the current period.
func (h *OrderHandler) ResetOrders(c *gin.Context) {
	removed, err := h.service.ResetOrders(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to reset orders")
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

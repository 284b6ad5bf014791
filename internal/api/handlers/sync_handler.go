// internal/api/handlers/sync_handler.go
package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	"github.com/tiendanorte/compraplan/internal/domain"
	"github.com/tiendanorte/compraplan/internal/repository"
	"github.com/tiendanorte/compraplan/internal/sync"
)

// SyncRunner executes a full ERP sync, reporting per-step progress.
type SyncRunner interface {
	RunFull(ctx context.Context, progress sync.ProgressFunc) (sync.Summary, error)
}

type SyncHandler struct {
	engine  SyncRunner
	logRepo repository.SyncLogRepository
	running *semaphore.Weighted
}

func NewSyncHandler(engine SyncRunner, logRepo repository.SyncLogRepository) *SyncHandler {
	return &SyncHandler{
		engine:  engine,
		logRepo: logRepo,
		running: semaphore.NewWeighted(1),
	}
}

type syncResult struct {
	sum sync.Summary
	err error
}

// RunSync serves POST /api/v1/sync as a server-sent event stream: one
// progress event per step transition, then a terminal complete or error
// event. Only one run is allowed at a time.
func (h *SyncHandler) RunSync(c *gin.Context) {
	if !h.running.TryAcquire(1) {
		errorResponse(c, http.StatusConflict, "a sync is already running")
		return
	}

	ctx := c.Request.Context()
	events := make(chan sync.Progress, 16)
	result := make(chan syncResult, 1)

	go func() {
		defer h.running.Release(1)
		sum, err := h.engine.RunFull(ctx, func(p sync.Progress) {
			select {
			case events <- p:
			case <-ctx.Done():
			}
		})
		close(events)
		result <- syncResult{sum: sum, err: err}
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case p, open := <-events:
			if !open {
				res := <-result
				if res.err != nil {
					c.SSEvent("error", gin.H{"message": res.err.Error()})
				} else {
					c.SSEvent("complete", res.sum)
				}
				return false
			}
			c.SSEvent("progress", p)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// GetHistory serves GET /api/v1/sync/history?type=&limit=&offset=
func (h *SyncHandler) GetHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	syncType := strings.TrimSpace(c.Query("type"))
	if syncType != "" && !domain.ValidSyncType(syncType) {
		errorResponse(c, http.StatusBadRequest, "unknown sync type")
		return
	}

	entries, err := h.logRepo.List(c.Request.Context(), syncType, limit, offset)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to read sync history")
		return
	}
	if entries == nil {
		entries = []domain.SyncLogEntry{}
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

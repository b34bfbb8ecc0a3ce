package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/tatematsu-k/github-dashboard/internal/domain"
	"github.com/tatematsu-k/github-dashboard/internal/storage"
)

// CollectFunc runs one collection and returns the assembled result.
type CollectFunc func(ctx context.Context) (*domain.CollectionResult, error)

// Handler handles API requests
type Handler struct {
	store      storage.Storage
	collect    CollectFunc
	collecting atomic.Bool
	logger     *log.Logger
}

// NewHandler creates a new API handler
func NewHandler(store storage.Storage, collect CollectFunc, logger *log.Logger) *Handler {
	return &Handler{
		store:   store,
		collect: collect,
		logger:  logger,
	}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetLatestResult returns the most recent collection result document
func (h *Handler) GetLatestResult(c *gin.Context) {
	result, err := h.store.GetLatestRun(c.Request.Context())
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no collection run found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// GetRun returns one collection result by run id
func (h *Handler) GetRun(c *gin.Context) {
	result, err := h.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// ListRuns returns run summaries, newest first
func (h *Handler) ListRuns(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	runs, err := h.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": runs})
}

// TriggerCollect starts a collection run in the background. Only one run
// may be in flight at a time.
func (h *Handler) TriggerCollect(c *gin.Context) {
	if !h.collecting.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, gin.H{"error": "a collection run is already in progress"})
		return
	}

	go func() {
		defer h.collecting.Store(false)

		result, err := h.collect(context.Background())
		if err != nil {
			h.logger.Printf("collection run failed: %v", err)
			return
		}
		if err := h.store.SaveRun(context.Background(), result); err != nil {
			h.logger.Printf("failed to save run %s: %v", result.RunID, err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "collection started"})
}

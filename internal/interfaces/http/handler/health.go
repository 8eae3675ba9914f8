package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Gstxxx/picpay-simplificado/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger checks the database round-trip
type Pinger interface {
	Ping(ctx context.Context) error
}

// OutboxStats reports outbox entries per status
type OutboxStats interface {
	Stats(ctx context.Context) (map[shared.OutboxStatus]int64, error)
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	BaseHandler
	db      Pinger
	outbox  OutboxStats
	timeout time.Duration
	now     func() time.Time
}

// NewHealthHandler creates a health handler. outbox may be nil.
func NewHealthHandler(db Pinger, outbox OutboxStats, log *zap.Logger) *HealthHandler {
	return &HealthHandler{
		BaseHandler: NewBaseHandler(log),
		db:          db,
		outbox:      outbox,
		timeout:     2 * time.Second,
		now:         time.Now,
	}
}

// Liveness always answers ok while the process serves requests
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// Readiness answers 503 when the database is unreachable
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	body := gin.H{"timestamp": h.now().UTC().Format(time.RFC3339)}

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		body["status"] = "unavailable"
		body["database"] = "down"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "ready"
	body["database"] = "up"

	if h.outbox != nil {
		stats, err := h.outbox.Stats(ctx)
		if err != nil {
			h.logger.Warn("Failed to read outbox stats", zap.Error(err))
		} else {
			body["outbox"] = stats
		}
	}

	c.JSON(http.StatusOK, body)
}

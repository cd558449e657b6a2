package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthPingTimeout = 2 * time.Second

// Pinger reporta si el store responde.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	logger  *zap.Logger
	store   Pinger
	env     string
	version string
	now     func() time.Time
}

func NewHealthHandler(logger *zap.Logger, store Pinger, env, version string) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		store:   store,
		env:     env,
		version: version,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Health maneja GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	status, code := "ok", http.StatusOK
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.logger.Warn("health check: store ping failed", zap.Error(err))
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": h.now().Format(time.RFC3339),
		"env":       h.env,
		"version":   h.version,
	})
}

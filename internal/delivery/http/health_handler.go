package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether one backing service is reachable.
type Pinger func(c *gin.Context) error

// HealthHandler handles health check requests.
type HealthHandler struct {
	logger  *zap.Logger
	pingers map[string]Pinger
}

// NewHealthHandler creates a new HealthHandler. pingers maps a service name
// to its connectivity probe; a nil map yields an unconditional "ok".
func NewHealthHandler(logger *zap.Logger, pingers map[string]Pinger) *HealthHandler {
	return &HealthHandler{logger: logger, pingers: pingers}
}

// Health handles GET /api/v1/health
func (h *HealthHandler) Health(c *gin.Context) {
	services := gin.H{}
	healthy := true
	for name, ping := range h.pingers {
		if err := ping(c); err != nil {
			h.logger.Warn("Health probe failed", zap.String("service", name), zap.Error(err))
			services[name] = "unavailable"
			healthy = false
			continue
		}
		services[name] = "ok"
	}

	code := http.StatusOK
	status := "ok"
	if !healthy {
		code = http.StatusServiceUnavailable
		status = "degraded"
	}
	c.JSON(code, gin.H{
		"status":   status,
		"services": services,
	})
}

// Package http is the gin-based HTTP and websocket delivery layer.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/devesh1011/vyloc-backend-api/internal/delivery/http/middleware"
	"github.com/devesh1011/vyloc-backend-api/internal/status"
	"github.com/devesh1011/vyloc-backend-api/internal/usecase"
)

// RouterConfig carries everything the router needs to wire up.
type RouterConfig struct {
	SubmitUC        *usecase.SubmitJobUsecase
	SyncUC          *usecase.LocalizeSyncUsecase
	GetJobUC        *usecase.GetJobUsecase
	StatusUC        *usecase.GetStatusUsecase
	StatusManager   *status.Manager
	HealthPingers   map[string]Pinger
	Logger          *zap.Logger
	RateLimitPerMin int
	MaxBodyBytes    int64
}

// NewRouter creates and configures the Gin router with all routes and middleware.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(cfg.Logger))

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket for real-time updates; lives outside the v1 group so the
	// channel path returned on submission stays stable.
	wsHandler := NewWebSocketHandler(cfg.StatusManager, cfg.Logger)
	router.GET("/ws/jobs/:id", wsHandler.Stream)

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Health check (no rate limiting)
		healthHandler := NewHealthHandler(cfg.Logger, cfg.HealthPingers)
		v1.GET("/health", healthHandler.Health)

		// Supported localization options
		langHandler := NewLanguageHandler()
		v1.GET("/languages", langHandler.List)

		// Localization jobs (rate limited, uploads capped)
		locHandler := NewLocalizationHandler(cfg.SubmitUC, cfg.SyncUC, cfg.GetJobUC, cfg.StatusUC, cfg.Logger)
		limited := v1.Group("")
		limited.Use(middleware.RateLimiter(cfg.RateLimitPerMin))
		limited.Use(middleware.BodySizeLimit(cfg.MaxBodyBytes))
		limited.POST("/localize", locHandler.Localize)
		limited.POST("/localize/async", locHandler.SubmitAsync)
		limited.GET("/jobs/:id", locHandler.GetJob)
		limited.GET("/jobs/:id/status", locHandler.GetStatus)
	}

	return router
}

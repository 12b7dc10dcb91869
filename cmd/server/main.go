package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/devesh1011/vyloc-backend-api/internal/config"
	handler "github.com/devesh1011/vyloc-backend-api/internal/delivery/http"
	"github.com/devesh1011/vyloc-backend-api/internal/pipeline"
	"github.com/devesh1011/vyloc-backend-api/internal/pipeline/gemini"
	"github.com/devesh1011/vyloc-backend-api/internal/pipeline/storage"
	"github.com/devesh1011/vyloc-backend-api/internal/pipeline/watermark"
	"github.com/devesh1011/vyloc-backend-api/internal/publisher"
	"github.com/devesh1011/vyloc-backend-api/internal/repository/postgres"
	"github.com/devesh1011/vyloc-backend-api/internal/status"
	"github.com/devesh1011/vyloc-backend-api/internal/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting Vyloc API Server")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// Connect to PostgreSQL
	ctx := context.Background()
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping PostgreSQL", zap.Error(err))
	}
	logger.Info("Connected to PostgreSQL")

	// Connect to Redis
	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Failed to parse Redis URL", zap.Error(err))
	}
	rdb := goredis.NewClient(redisOpts)
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to ping Redis", zap.Error(err))
	}
	logger.Info("Connected to Redis")

	// Initialize RabbitMQ publisher
	pub, err := publisher.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.RetryDelay, logger)
	if err != nil {
		logger.Fatal("Failed to initialize RabbitMQ publisher", zap.Error(err))
	}
	defer pub.Close()
	logger.Info("Connected to RabbitMQ")

	// Status channel, snapshot store and websocket relay manager
	statusChannel := status.NewRedisChannel(rdb)
	statusStore := status.NewRedisStore(rdb, statusChannel, cfg.Redis.StatusTTL)
	statusManager := status.NewManager(statusChannel, statusStore, cfg.Server.WSHeartbeat, logger)

	// Repositories
	jobRepo := postgres.NewJobRepository(dbPool)
	ledger := postgres.NewLedger(dbPool)

	// Pipeline collaborators for the synchronous endpoint
	generator, err := gemini.NewGenerator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
	if err != nil {
		logger.Fatal("Failed to initialize image generator", zap.Error(err))
	}
	cleaner := watermark.NewClient(cfg.Watermark.URL, cfg.Watermark.Timeout, logger)
	objectStore := storage.NewSupabaseStore(cfg.Storage.URL, cfg.Storage.Bucket, cfg.Storage.APIKey, logger)
	executor := pipeline.NewTargetExecutor(generator, cleaner, objectStore, cfg.Pipeline.TargetTimeout, logger)
	coordinator := pipeline.NewCoordinator(executor, objectStore, statusStore, logger)

	// Use cases
	maxImageBytes := int(cfg.Server.MaxImageMB << 20)
	submitUC := usecase.NewSubmitJobUsecase(jobRepo, ledger, pub, statusStore, maxImageBytes, logger)
	syncUC := usecase.NewLocalizeSyncUsecase(jobRepo, ledger, coordinator, maxImageBytes, cfg.Worker.SoftTimeLimit, logger)
	getJobUC := usecase.NewGetJobUsecase(jobRepo, logger)
	statusUC := usecase.NewGetStatusUsecase(statusStore, logger)

	// Router
	router := handler.NewRouter(handler.RouterConfig{
		SubmitUC:      submitUC,
		SyncUC:        syncUC,
		GetJobUC:      getJobUC,
		StatusUC:      statusUC,
		StatusManager: statusManager,
		HealthPingers: map[string]handler.Pinger{
			"postgres": func(c *gin.Context) error { return dbPool.Ping(c.Request.Context()) },
			"redis":    func(c *gin.Context) error { return rdb.Ping(c.Request.Context()).Err() },
		},
		Logger:          logger,
		RateLimitPerMin: cfg.Server.RateLimit,
		MaxBodyBytes:    (cfg.Server.MaxImageMB + 1) << 20, // image plus form overhead
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("API server stopped")
}

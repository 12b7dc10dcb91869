package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/devesh1011/vyloc-backend-api/internal/config"
	amqpdelivery "github.com/devesh1011/vyloc-backend-api/internal/delivery/amqp"
	"github.com/devesh1011/vyloc-backend-api/internal/domain"
	"github.com/devesh1011/vyloc-backend-api/internal/pipeline"
	"github.com/devesh1011/vyloc-backend-api/internal/pipeline/gemini"
	"github.com/devesh1011/vyloc-backend-api/internal/pipeline/storage"
	"github.com/devesh1011/vyloc-backend-api/internal/pipeline/watermark"
	"github.com/devesh1011/vyloc-backend-api/internal/pool"
	"github.com/devesh1011/vyloc-backend-api/internal/repository/postgres"
	"github.com/devesh1011/vyloc-backend-api/internal/repository/redisrepo"
	"github.com/devesh1011/vyloc-backend-api/internal/status"
	"github.com/devesh1011/vyloc-backend-api/internal/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting Vyloc Localization Worker")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL
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
		logger.Fatal("Invalid Redis URL", zap.Error(err))
	}
	redisClient := goredis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	// Repositories
	jobRepo := postgres.NewJobRepository(dbPool)
	ledger := postgres.NewLedger(dbPool)
	idempotencyStore := redisrepo.NewIdempotencyStore(redisClient)

	// Status channel and snapshot store
	statusChannel := status.NewRedisChannel(redisClient)
	statusStore := status.NewRedisStore(redisClient, statusChannel, cfg.Redis.StatusTTL)

	// Pipeline: per-target executor behind the fan-out coordinator
	generator, err := gemini.NewGenerator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
	if err != nil {
		logger.Fatal("Failed to initialize image generator", zap.Error(err))
	}
	cleaner := watermark.NewClient(cfg.Watermark.URL, cfg.Watermark.Timeout, logger)
	objectStore := storage.NewSupabaseStore(cfg.Storage.URL, cfg.Storage.Bucket, cfg.Storage.APIKey, logger)
	executor := pipeline.NewTargetExecutor(generator, cleaner, objectStore, cfg.Pipeline.TargetTimeout, logger)
	coordinator := pipeline.NewCoordinator(executor, objectStore, statusStore, logger)

	// Use case
	processUC := usecase.NewProcessJobUsecase(
		jobRepo,
		ledger,
		idempotencyStore,
		coordinator,
		statusStore,
		cfg.RabbitMQ.MaxRetries,
		cfg.Worker.SoftTimeLimit,
		cfg.Worker.HardTimeLimit,
		logger,
	)

	// Create buffered job channel
	jobsChan := make(chan *domain.JobMessage, cfg.Worker.PoolSize*2)

	// Initialize AMQP consumer
	consumer, err := amqpdelivery.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.RetryDelay, jobsChan, logger)
	if err != nil {
		logger.Fatal("Failed to initialize AMQP consumer", zap.Error(err))
	}
	defer consumer.Close()
	logger.Info("Connected to RabbitMQ")

	// Start worker pool
	workerPool := pool.NewWorkerPool(cfg.Worker.PoolSize, jobsChan, processUC, logger)
	workerPool.Start(ctx)

	// Start AMQP consumer in a goroutine
	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error("AMQP consumer error", zap.Error(err))
			cancel()
		}
	}()

	// Start Prometheus metrics server
	go func() {
		metricsAddr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics server listening", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()

	// Wait for workers to finish in-flight jobs
	workerPool.Stop()

	logger.Info("Worker stopped")
}

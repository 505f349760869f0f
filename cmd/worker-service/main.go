package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"review-insights/internal/repository"
	"review-insights/internal/worker/config"
	"review-insights/internal/worker/delivery/consumer"
	workerrepo "review-insights/internal/worker/repository"
	"review-insights/internal/worker/scraper"
	"review-insights/internal/worker/service"
	"review-insights/pkg/cache"
	"review-insights/pkg/common"
	"review-insights/pkg/logger"
	"review-insights/pkg/postgres"
	"review-insights/pkg/queue"
	"review-insights/pkg/redis"
	"review-insights/pkg/telegram"

	"github.com/spf13/cobra"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the worker service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Worker Service", logger.Field("name", cfg.App.Name))

	// Initialize database
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Initialize Redis
	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	// Create the consumer group if it doesn't exist
	if err := queue.EnsureGroup(ctx, redisClient.Client, common.RedisStreamScrapeJobs, common.RedisStreamGroup); err != nil {
		appLogger.Fatal("Failed to create consumer group", logger.ErrorField(err))
	}

	// Initialize repositories
	locationRepo := repository.NewLocationRepository(db.DB)
	reviewRepo := repository.NewReviewRepository(db.DB)
	summaryRepo := repository.NewReviewSummaryRepository(db.DB)
	jobRepo := repository.NewScrapeJobRepository(db.DB)

	// Initialize AI provider
	aiRepo, err := workerrepo.NewAIRepository(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize AI repository", logger.ErrorField(err))
	}

	// Telegram alerts are optional; without them terminal job failures are
	// only logged
	var telegramNotifier telegram.Notifier
	if cfg.Telegram.Enabled {
		telegramNotifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
		}
	}

	// Initialize services
	cacheStore := cache.New(redisClient.Client, appLogger)
	streamMaxLen := cfg.Redis.StreamMaxLen
	if streamMaxLen <= 0 {
		streamMaxLen = common.RedisStreamMaxLen
	}
	publisher := queue.NewPublisher(redisClient.Client, streamMaxLen, appLogger)
	scraperExec := scraper.NewExecutor(cfg, appLogger)
	analyzer := service.NewBatchAnalyzerService(cfg, aiRepo, appLogger)
	coordinator := service.NewAnalysisCoordinatorService(reviewRepo, summaryRepo, locationRepo, analyzer, cacheStore, appLogger)
	jobProcessor := service.NewJobProcessorService(cfg, redisClient.Client, publisher, jobRepo, locationRepo, reviewRepo, scraperExec, coordinator, telegramNotifier, appLogger)

	// Initialize and start the Redis consumer
	redisConsumer := consumer.NewRedisConsumer(cfg, jobProcessor, appLogger)
	redisConsumer.Start(ctx)

	appLogger.Info("Worker service started. Waiting for jobs...")

	<-ctx.Done()

	appLogger.Info("Shutting down worker...")
	redisConsumer.Stop()
	appLogger.Info("Worker exiting")
}

func main() {
	rootCmd := &cobra.Command{Use: "worker-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-worker.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing worker-service CLI: %s\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"review-insights/internal/api/config"
	delivery "review-insights/internal/api/delivery/http"
	"review-insights/internal/api/service"
	"review-insights/internal/repository"
	"review-insights/pkg/cache"
	"review-insights/pkg/common"
	"review-insights/pkg/logger"
	"review-insights/pkg/postgres"
	"review-insights/pkg/queue"
	"review-insights/pkg/redis"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the API service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
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

	appLogger.Info("Starting API Service", logger.Field("name", cfg.App.Name))

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

	// Create the consumer group so jobs published before the first worker
	// starts are not lost
	if err := queue.EnsureGroup(ctx, redisClient.Client, common.RedisStreamScrapeJobs, common.RedisStreamGroup); err != nil {
		appLogger.Fatal("Failed to create consumer group", logger.ErrorField(err))
	}

	// Initialize repositories
	locationRepo := repository.NewLocationRepository(db.DB)
	reviewRepo := repository.NewReviewRepository(db.DB)
	summaryRepo := repository.NewReviewSummaryRepository(db.DB)
	jobRepo := repository.NewScrapeJobRepository(db.DB)

	// Initialize services
	cacheStore := cache.New(redisClient.Client, appLogger)
	streamMaxLen := cfg.Redis.StreamMaxLen
	if streamMaxLen <= 0 {
		streamMaxLen = common.RedisStreamMaxLen
	}
	publisher := queue.NewPublisher(redisClient.Client, streamMaxLen, appLogger)
	jobSvc := service.NewScrapeJobService(jobRepo, locationRepo, publisher, appLogger)
	locationSvc := service.NewLocationService(locationRepo, reviewRepo, summaryRepo, cacheStore, appLogger)

	// Start the rescrape scheduler
	rescrapeScheduler := service.NewRescrapeScheduler(cfg, locationRepo, jobSvc, appLogger)
	if err := rescrapeScheduler.Start(ctx); err != nil {
		appLogger.Fatal("Failed to start rescrape scheduler", logger.ErrorField(err))
	}
	defer rescrapeScheduler.Stop()

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	// Initialize handlers and routes
	apiV1 := e.Group("/api/v1")

	scraperHandler := delivery.NewScraperHandler(jobSvc, cfg.Progress.PollInterval, appLogger)
	scraperHandler.RegisterRoutes(apiV1.Group("/scrape-jobs"))

	locationHandler := delivery.NewLocationHandler(locationSvc, appLogger)
	locationHandler.RegisterRoutes(apiV1.Group("/locations"))

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	// Gracefully shutdown the server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

func main() {
	rootCmd := &cobra.Command{Use: "api-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-api.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing api-service CLI: %s\n", err)
		os.Exit(1)
	}
}

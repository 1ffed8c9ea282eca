package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etherroyale/minigames-api/internal/chain"
	"github.com/etherroyale/minigames-api/internal/config"
	"github.com/etherroyale/minigames-api/internal/handler"
	"github.com/etherroyale/minigames-api/internal/kafka"
	"github.com/etherroyale/minigames-api/internal/notifier"
	"github.com/etherroyale/minigames-api/internal/ownership"
	"github.com/etherroyale/minigames-api/internal/postgres"
	"github.com/etherroyale/minigames-api/internal/redis"
	"github.com/etherroyale/minigames-api/internal/service"
	"github.com/etherroyale/minigames-api/internal/websocket"
	"github.com/etherroyale/minigames-api/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize Redis
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	cache, err := redis.NewCache(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer cache.Close()
	logger.Info("connected to Redis")

	// Initialize the on-chain ownership registry
	logger.Info("connecting to chain RPC", "contract", cfg.Chain.ContractAddress)
	registry, err := chain.NewRegistry(&cfg.Chain, logger)
	if err != nil {
		logger.Error("failed to connect to chain RPC", "error", err)
		os.Exit(1)
	}
	defer registry.Close()

	verifier := ownership.NewVerifier(registry, logger)

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize services
	mainAPI := notifier.New(&cfg.Notifier, logger)
	submissions := service.NewSubmissionService(verifier, repo, mainAPI, logger)
	submissions.SetCache(cache)
	submissions.SetHub(wsHub)
	leaderboards := service.NewLeaderboardService(repo, logger)

	// Initialize the play-event producer
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka producer", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
		producer, err = kafka.NewProducer(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka producer, continuing without play events", "error", err)
		} else {
			submissions.SetEvents(producer)
		}
	}

	// Initialize sync worker and recover the cache on startup
	syncWorker := worker.NewSyncWorker(repo, cache, &cfg.Sync, logger)
	logger.Info("rebuilding leaderboard cache from database")
	syncWorker.SyncCurrentDay(ctx)
	if cfg.Sync.Enabled {
		if err := syncWorker.Start(ctx); err != nil {
			logger.Error("failed to start sync worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(submissions, leaderboards, wsHub, cfg.Admin.APIKey, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop the play-event producer
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("failed to stop Kafka producer", "error", err)
		}
	}

	// Stop sync worker
	if cfg.Sync.Enabled {
		if err := syncWorker.Stop(); err != nil {
			logger.Error("failed to stop sync worker", "error", err)
		}
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}

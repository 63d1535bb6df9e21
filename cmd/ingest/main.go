package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/config"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/dlq"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/handlers"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/logging"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/ratelimit"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/repository"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/server"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/service"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/stats"
	"github.com/tenderflow-systems/tenderflow-ingest/pkg/tokens"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	migrationsPath := flag.String("migrations", "migrations", "path to migration files")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("ingest"))
	logging.SetDefault(logger)

	slog.Info("Starting ingestion service",
		slog.Int("port", cfg.Server.Port),
		slog.String("database", cfg.Database.Type),
		slog.String("log_level", cfg.Logging.Level),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("auth.jwt_secret is required (set INGEST_AUTH_JWT_SECRET)")
	}

	// Initialize repository
	var repo repository.Repository
	switch cfg.Database.Type {
	case "postgres":
		connString := cfg.Database.ConnString()
		if err := runMigrations(*migrationsPath, connString); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		pgRepo, err := repository.NewPostgresRepository(ctx, connString)
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		repo = pgRepo
		log.Printf("Connected to Postgres at %s:%d", cfg.Database.Host, cfg.Database.Port)
	case "memory":
		repo = repository.NewInMemoryRepository()
		log.Println("WARNING: Using in-memory storage - all data is lost on restart")
	default:
		log.Fatalf("Unknown database type: %s (supported: postgres, memory)", cfg.Database.Type)
	}
	defer repo.Close()

	// Initialize rate limiter
	var rateLimiter ratelimit.RateLimiter
	if cfg.Ingestion.RateLimitEnabled {
		if cfg.Redis.URL != "" {
			limiter, err := ratelimit.NewRedisRateLimiter(
				cfg.Redis.URL,
				cfg.Ingestion.RateLimitRequests,
				cfg.Ingestion.RateLimitWindow,
			)
			if err != nil {
				log.Printf("WARNING: Failed to initialize Redis rate limiter: %v", err)
				log.Println("Falling back to in-process rate limiting")
				rateLimiter = ratelimit.NewMemoryRateLimiter(cfg.Ingestion.RateLimitRequests, cfg.Ingestion.RateLimitWindow)
			} else {
				rateLimiter = limiter
				log.Printf("Rate limiting enabled: %d requests per %s (redis: %s)",
					cfg.Ingestion.RateLimitRequests, cfg.Ingestion.RateLimitWindow, cfg.Redis.URL)
			}
		} else {
			rateLimiter = ratelimit.NewMemoryRateLimiter(cfg.Ingestion.RateLimitRequests, cfg.Ingestion.RateLimitWindow)
			log.Printf("Rate limiting enabled (in-process): %d requests per %s",
				cfg.Ingestion.RateLimitRequests, cfg.Ingestion.RateLimitWindow)
		}
	} else {
		rateLimiter = &ratelimit.NoOpRateLimiter{}
		log.Println("Rate limiting disabled in configuration")
	}
	defer rateLimiter.Close()

	// Initialize dead letter queue
	var dlqWriter dlq.Writer
	if cfg.DLQ.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		jsDLQ, err := dlq.NewJetStreamQueue(ctx, cfg.DLQ.NATSURL)
		cancel()
		if err != nil {
			log.Fatalf("Failed to initialize JetStream DLQ: %v", err)
		}
		dlqWriter = jsDLQ
		defer jsDLQ.Close()
		log.Printf("Dead letter queue enabled (nats: %s)", cfg.DLQ.NATSURL)
	} else {
		dlqWriter = dlq.NoOpWriter{}
		log.Println("Dead letter queue disabled")
	}

	// Initialize stuck-pending collector
	collector := stats.NewCollector(repo, cfg.Ingestion.StatsInterval, cfg.Ingestion.StuckPendingThreshold, logger.Logger)
	defer collector.Stop()

	// Initialize pipeline service and handlers
	tokenGenerator := tokens.NewTokenGenerator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	ingestService := service.NewIngestService(repo, dlqWriter, cfg.Ingestion.MaxBatchSize, cfg.Ingestion.BatchTimeout, logger.Logger)
	handler := handlers.NewIngestionHandler(ingestService, tokenGenerator, rateLimiter, logger.Logger)
	router := server.NewRouter(handler)

	// Create server with config values
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Ingestion service listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func runMigrations(migrationsPath, connString string) error {
	m, err := migrate.New("file://"+migrationsPath, connString)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kaizen-app/kaizen-sync-engine/internal/adapters/cache"
	adapterHTTP "github.com/kaizen-app/kaizen-sync-engine/internal/adapters/handler/http"
	"github.com/kaizen-app/kaizen-sync-engine/internal/adapters/repository"
	"github.com/kaizen-app/kaizen-sync-engine/internal/config"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/domain"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/services"
	"github.com/kaizen-app/kaizen-sync-engine/internal/core/workers"
	"github.com/kaizen-app/kaizen-sync-engine/internal/observability"
)

func main() {
	startTime := time.Now()

	// .env is a local development convenience; deployments configure
	// through the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Critical: invalid configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFile)
	defer logger.Sync()

	logger.Info("connecting to database",
		zap.String("host", cfg.DBHost),
		zap.Int("port", cfg.DBPort),
		zap.String("name", cfg.DBName),
	)

	db, err := sqlx.Connect("pgx", cfg.DSN())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("database connected")

	// Redis is optional: without it the API runs with no schema cache and
	// no rate limiting, but stays fully functional.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, 0)
		if err != nil {
			logger.Warn("redis unavailable, running degraded", zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("redis connected", zap.String("addr", cfg.RedisAddr))
		}
	}

	metrics := observability.NewMetrics()

	userRepo := repository.NewPostgresUserRepository(db.DB)
	dayRepo := repository.NewPostgresDayRecordRepository(db)
	monthRepo := repository.NewPostgresMonthRecordRepository(db)

	var schemaRepo domain.SchemaRepository = repository.NewPostgresSchemaRepository(db)
	if redisClient != nil {
		schemaRepo = repository.NewCachedSchemaRepository(schemaRepo, redisClient, logger, metrics)
	}

	schemaService := services.NewSchemaService(schemaRepo, nil)
	authService := services.NewAuthService(userRepo)
	tokenService := services.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL, userRepo)

	worker := workers.NewRecomputeWorker(userRepo, dayRepo, schemaService, logger)
	metrics.ObserveWorker(worker.QueueDepth, worker.Processed, worker.Dropped)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	worker.Start(workerCtx)

	recordService := services.NewRecordService(dayRepo, monthRepo, schemaService, worker)
	progressService := services.NewProgressService(dayRepo, userRepo, schemaService)

	router := adapterHTTP.NewRouter(adapterHTTP.RouterDependencies{
		AuthHandler:     adapterHTTP.NewAuthHandler(authService, tokenService),
		SchemaHandler:   adapterHTTP.NewSchemaHandler(schemaService),
		RecordHandler:   adapterHTTP.NewRecordHandler(recordService),
		ProgressHandler: adapterHTTP.NewProgressHandler(progressService),
		SyncHandler:     adapterHTTP.NewSyncHandler(schemaService, recordService, metrics),
		TokenService:    tokenService,
		Metrics:         metrics,
		Logger:          logger,
		DB:              db,
		Redis:           redisClient,
		RateLimit:       cfg.RateLimit,
		RateWindow:      cfg.RateWindow,
		StartTime:       startTime,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("kaizen sync engine listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("stop signal received, shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}

	stopWorker()
	logger.Info("server stopped gracefully")
}

package setup

import (
	"context"
	"fmt"
	"log"

	"github.com/plumeworks/plume/internal/cache"
	"github.com/plumeworks/plume/internal/database"
	"github.com/plumeworks/plume/internal/database/migrations"
	"github.com/plumeworks/plume/internal/queue"
	"github.com/plumeworks/plume/internal/redis"
	"github.com/plumeworks/plume/internal/setup/config"
	"github.com/redis/rueidis"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config  // Application configuration
	Logger       *zap.Logger     // Main application logger
	DBLogger     *zap.Logger     // Database-specific logger
	DB           database.Client // Database connection pool
	RedisManager *redis.Manager  // Redis connection manager
	Queue        *queue.Manager  // Task queue for fan-out and backfill work
	PageCache    cache.PageCache // Read-through cache for feed pages
	StatusClient rueidis.Client  // Redis client for worker status reporting
	debugServer  *debugServer    // Localhost pprof endpoint
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, logDir string) (*App, error) {
	// Load app configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logger, dbLogger, err := GetLoggers(logDir, cfg.Common.Debug.LogLevel, cfg.Common.Debug.MaxLogsToKeep)
	if err != nil {
		return nil, err
	}

	// Redis manager provides connection pools for various subsystems
	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	// Queue manager delivers fan-out and backfill tasks to the feed workers
	queueClient, err := redisManager.GetClient(redis.QueueDBIndex)
	if err != nil {
		return nil, err
	}

	queueManager := queue.NewManager(queueClient, logger)

	// Page cache fronts feed and public timeline reads
	cacheClient, err := redisManager.GetClient(redis.CacheDBIndex)
	if err != nil {
		return nil, err
	}

	pageCache := cache.NewRedisCache(cacheClient, logger)

	// Initialize database with migration check
	db, err := checkAndRunMigrations(ctx, cfg, queueManager, pageCache, dbLogger)
	if err != nil {
		return nil, err
	}

	// Get Redis client for worker status reporting
	statusClient, err := redisManager.GetClient(redis.WorkerStatusDBIndex)
	if err != nil {
		return nil, err
	}

	// Start pprof server if enabled
	var debugSrv *debugServer

	if cfg.Common.Debug.EnablePprof {
		srv, err := startDebugServer(cfg.Common.Debug.PprofPort, logger)
		if err != nil {
			logger.Error("Failed to start pprof server", zap.Error(err))
		} else {
			debugSrv = srv

			logger.Warn("pprof debugging endpoint enabled - this should not be used in production!")
		}
	}

	// Bundle all initialized components
	return &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger.Named("database"),
		DB:           db,
		RedisManager: redisManager,
		Queue:        queueManager,
		PageCache:    pageCache,
		StatusClient: statusClient,
		debugServer:  debugSrv,
	}, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(ctx context.Context) {
	// Shutdown pprof server if running
	if s.debugServer != nil {
		if err := s.debugServer.shutdown(ctx); err != nil {
			s.Logger.Error("Failed to shutdown pprof server", zap.Error(err))
		}
	}

	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	// Close database connections
	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Close Redis connections last as other components might need it during cleanup
	s.RedisManager.Close()
}

// checkAndRunMigrations runs database migrations if needed.
func checkAndRunMigrations(
	ctx context.Context,
	cfg *config.Config,
	dispatcher queue.Dispatcher,
	pageCache cache.PageCache,
	dbLogger *zap.Logger,
) (database.Client, error) {
	opts := database.Options{
		Dispatcher:      dispatcher,
		PageCache:       pageCache,
		FanOutThreshold: cfg.Common.Feed.FanOutThreshold,
	}

	tempDB, err := database.NewConnection(ctx, &cfg.Common.PostgreSQL, opts, dbLogger, false)
	if err != nil {
		return nil, err
	}

	migrator := migrate.NewMigrator(tempDB.DB(), migrations.Migrations)

	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		tempDB.Close()
		return nil, fmt.Errorf("failed to check migration status: %w", err)
	}

	var db database.Client

	unapplied := ms.Unapplied()
	if len(unapplied) > 0 {
		log.Println("Database migrations are pending. Would you like to run them now? (y/N)")

		var response string

		_, _ = fmt.Scanln(&response)

		if response == "y" || response == "Y" {
			tempDB.Close()

			db, err = database.NewConnection(ctx, &cfg.Common.PostgreSQL, opts, dbLogger, true)
		} else {
			log.Fatalf("Closing program due to incomplete migrations")
		}
	} else {
		db = tempDB
	}

	return db, err
}

// Package main provides the main entry point for the future messages service
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/future-messages/app/handlers"
	"github.com/amirphl/future-messages/app/middleware"
	"github.com/amirphl/future-messages/app/router"
	"github.com/amirphl/future-messages/app/scheduler"
	"github.com/amirphl/future-messages/app/services"
	businessflow "github.com/amirphl/future-messages/business_flow"
	"github.com/amirphl/future-messages/config"
	"github.com/amirphl/future-messages/migrations"
	"github.com/amirphl/future-messages/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting future messages service...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	closeLog := initializeLogging(cfg.Logging)
	defer closeLog()

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		if err := app.router.Start(cfg.Server.Address()); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	// Stop background workers after in-flight requests drain
	for i := len(app.stopFuncs) - 1; i >= 0; i-- {
		app.stopFuncs[i]()
	}

	log.Println("Server stopped")
}

// initializeLogging tees the standard logger into a rotating file when one is configured
func initializeLogging(cfg config.LoggingConfig) func() {
	log.SetFlags(log.LstdFlags | log.LUTC | log.Lmicroseconds)
	if cfg.FilePath == "" {
		return func() {}
	}

	file := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, file))
	log.Printf("Logging to %s", cfg.FilePath)

	return func() {
		log.SetOutput(os.Stdout)
		_ = file.Close()
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormLogger := logger.New(log.Default(), logger.Config{
		SlowThreshold:             cfg.SlowQueryTime,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:  gormLogger,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := migrations.Up(sqlDB); err != nil {
			return nil, err
		}
		log.Println("Database migrations applied")
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeAuthStrategy builds the single credential strategy for this deployment
func initializeAuthStrategy(cfg *config.ProductionConfig, sessionRepo repository.UserSessionRepository, rc *redis.Client) (services.AuthStrategy, []func(), error) {
	if cfg.Auth.Strategy == services.AuthStrategyJWT {
		tokenService, err := services.NewTokenService(
			cfg.JWT.AccessTokenTTL,
			cfg.JWT.Issuer,
			cfg.JWT.Audience,
			cfg.JWT.UseRSAKeys,
			cfg.JWT.PrivateKey,
			cfg.JWT.PublicKey,
			cfg.JWT.SecretKey,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize token service: %w", err)
		}
		return services.NewJWTStrategy(tokenService), nil, nil
	}

	var (
		store     services.SessionStore
		stopFuncs []func()
	)
	switch cfg.Auth.SessionStore {
	case services.SessionStoreRedis:
		store = services.NewRedisSessionStore(rc, cfg.Cache.RedisPrefix)
	case services.SessionStoreDatabase:
		dbStore := services.NewDatabaseSessionStore(sessionRepo)
		stopFuncs = append(stopFuncs, dbStore.StartCleanup(context.Background(), cfg.Auth.SessionCleanupInterval))
		store = dbStore
	default:
		memStore := services.NewMemorySessionStore()
		stopFuncs = append(stopFuncs, memStore.StartJanitor(context.Background(), cfg.Auth.SessionCleanupInterval))
		store = memStore
	}

	log.Printf("Session authentication with %s store", cfg.Auth.SessionStore)
	return services.NewSessionStrategy(store, cfg.Auth.SessionTTL), stopFuncs, nil
}

// initializePublisher selects the broker that receives delivery jobs
func initializePublisher(cfg config.DeliveryConfig, cacheCfg config.CacheConfig, rc *redis.Client) services.DeliveryPublisher {
	var publisher services.DeliveryPublisher
	switch cfg.Broker {
	case services.BrokerRedis:
		publisher = services.NewRedisStreamPublisher(rc, cacheCfg.RedisPrefix, cfg.Queue)
	default:
		publisher = services.NewAMQPPublisher(cfg.AMQPURL, cfg.Queue, cfg.PublishTimeout)
	}
	log.Printf("Delivery jobs go to %s queue %q", publisher.Name(), cfg.Queue)
	return services.NewInstrumentedPublisher(publisher)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stopFuncs = append(stopFuncs, func() { _ = sqlDB.Close() })

	var (
		rc          *redis.Client
		healthRedis redis.Cmdable
	)
	if cfg.NeedsRedis() {
		rc, err = initializeCache(cfg.Cache)
		if err != nil {
			return nil, err
		}
		healthRedis = rc
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, 30*time.Second))
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	sessionRepo := repository.NewUserSessionRepository(db)

	// Initialize services
	strategy, strategyStops, err := initializeAuthStrategy(cfg, sessionRepo, rc)
	if err != nil {
		return nil, err
	}
	stopFuncs = append(stopFuncs, strategyStops...)

	publisher := initializePublisher(cfg.Delivery, cfg.Cache, rc)
	stopFuncs = append(stopFuncs, func() {
		if err := publisher.Close(); err != nil {
			log.Printf("Failed to close %s publisher: %v", publisher.Name(), err)
		}
	})

	// Initialize business flows
	authFlow, err := businessflow.NewAuthFlow(userRepo, strategy, cfg.Security.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth flow: %w", err)
	}
	messageFlow := businessflow.NewMessageFlow(messageRepo, businessflow.NewMessageValidator(), publisher, cfg.Delivery.PublishTimeout)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authFlow, strategy.Transport(), handlers.CookieOptions{
		Secure:   cfg.Security.SessionCookieSecure,
		SameSite: cfg.Security.SessionCookieSameSite,
		Domain:   cfg.Security.SessionCookieDomain,
	})
	messageHandler := handlers.NewMessageHandler(messageFlow)
	healthHandler := handlers.NewHealthHandler(sqlDB, healthRedis, cfg.Deployment.Version)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(strategy)

	// Initialize router
	appRouter := router.NewFiberRouter(router.Config{
		AuthHandler:      authHandler,
		MessageHandler:   messageHandler,
		HealthHandler:    healthHandler,
		AuthMiddleware:   authMiddleware,
		WorkerAPIKeys:    cfg.Security.WorkerAPIKeys,
		AllowedOrigins:   cfg.Security.AllowedOrigins,
		AllowCredentials: cfg.Security.AllowCredentials,
		EnableDocs:       cfg.Server.EnableDocs,
		EnableMetrics:    cfg.Metrics.Enabled,
		AccessLog:        cfg.Logging.EnableAccessLog,
		BodyLimit:        cfg.Server.BodyLimit,
		ReadTimeout:      cfg.Server.ReadTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		IdleTimeout:      cfg.Server.IdleTimeout,
		RateLimit:        cfg.Security.GlobalRateLimit,
		AuthRateLimit:    cfg.Security.AuthRateLimit,
	})

	if cfg.Reconcile.Enabled {
		sched, err := scheduler.NewReconciliationScheduler(messageFlow, scheduler.ReconcileOptions{
			Schedule:    cfg.Reconcile.Schedule,
			Grace:       cfg.Reconcile.Grace,
			BatchSize:   cfg.Reconcile.BatchSize,
			MaxAttempts: cfg.Reconcile.MaxAttempts,
			LogFile:     cfg.Reconcile.LogFile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize reconciliation scheduler: %w", err)
		}
		stopFuncs = append(stopFuncs, sched.Start(context.Background()))
	}

	return &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		stopFuncs: stopFuncs,
	}, nil
}

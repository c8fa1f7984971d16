package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	billingapp "github.com/erp/salesops/internal/application/billing"
	inventoryapp "github.com/erp/salesops/internal/application/inventory"
	numberingapp "github.com/erp/salesops/internal/application/numbering"
	partnerapp "github.com/erp/salesops/internal/application/partner"
	salesapp "github.com/erp/salesops/internal/application/sales"
	"github.com/erp/salesops/internal/infrastructure/cache"
	"github.com/erp/salesops/internal/infrastructure/config"
	"github.com/erp/salesops/internal/infrastructure/event"
	"github.com/erp/salesops/internal/infrastructure/logger"
	"github.com/erp/salesops/internal/infrastructure/migration"
	"github.com/erp/salesops/internal/infrastructure/persistence"
	"github.com/erp/salesops/internal/infrastructure/persistence/models"
	"github.com/erp/salesops/internal/infrastructure/scheduler"
	"github.com/erp/salesops/internal/infrastructure/telemetry"
	"github.com/erp/salesops/internal/interfaces/http/handler"
	"github.com/erp/salesops/internal/interfaces/http/middleware"
	"github.com/erp/salesops/internal/interfaces/http/router"
	"github.com/erp/salesops/migrations"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	rootCtx, stopRoot := context.WithCancel(context.Background())
	defer stopRoot()

	// Telemetry providers come first so the logger bridge and the meter are
	// in place before anything else is built.
	tracerProvider, err := telemetry.NewTracerProvider(rootCtx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(rootCtx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	logsProvider, err := telemetry.NewLoggerProvider(rootCtx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	log = logsProvider.Bridge(log, logger.ParseLevel(cfg.Log.Level))
	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)

	log.Info("Starting sales ops server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected", zap.String("driver", db.Driver))

	if err := migrateSchema(db, log); err != nil {
		log.Fatal("Failed to migrate schema", zap.Error(err))
	}

	if cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.DefaultDBTracingConfig()
		dbTracing.Enabled = true
		dbTracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL
		if cfg.Telemetry.DBSlowQueryThresh > 0 {
			dbTracing.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
		}
		if db.Driver == "sqlite" {
			dbTracing.DBSystem = "sqlite"
		}
		if err := telemetry.RegisterDBTracing(db.DB, dbTracing, log); err != nil {
			log.Warn("Database tracing disabled", zap.Error(err))
		}
	}
	if meterProvider.IsEnabled() {
		dbMetrics, err := telemetry.NewDBMetrics(meter, telemetry.DBMetricsConfig{
			SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		}, log)
		if err != nil {
			log.Warn("Database metrics disabled", zap.Error(err))
		} else if err := dbMetrics.Instrument(db.DB); err != nil {
			log.Warn("Database metrics disabled", zap.Error(err))
		} else {
			dbMetrics.StartPoolStatsCollection(rootCtx)
			defer dbMetrics.Stop()
		}
	}

	// Repositories
	clientRepo := persistence.NewGormClientRepository(db.DB)
	itemRepo := persistence.NewGormInventoryItemRepository(db.DB)
	reservationRepo := persistence.NewGormReservationRepository(db.DB)
	quoteRepo := persistence.NewGormQuoteRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	sequenceRepo := persistence.NewGormSequenceCounter(db.DB)

	redisClient := cache.ConnectOptional(rootCtx, cfg.Redis, log)
	if redisClient != nil {
		defer func() {
			_ = redisClient.Close()
		}()
	}

	numbers := numberingapp.NewGenerator(cache.NewSequenceCounter(cfg.Numbering, redisClient, sequenceRepo, log), log)
	ledger := inventoryapp.NewReservationLedger(
		persistence.NewGormTransactionScope(db.DB),
		itemRepo,
		reservationRepo,
		inventoryapp.WithEnforceAvailability(cfg.Inventory.EnforceAvailability),
		inventoryapp.WithLedgerLogger(log),
	)

	// Services
	clientService := partnerapp.NewClientService(clientRepo, log)
	inventoryService := inventoryapp.NewInventoryService(itemRepo, reservationRepo, log)
	quoteService := salesapp.NewQuoteService(
		quoteRepo,
		itemRepo,
		reservationRepo,
		persistence.NewGormSalesTransactionScope(db.DB),
		ledger,
		numbers,
		clientRepo,
		log,
		salesapp.WithDefaultTaxRate(cfg.Pricing.DefaultTaxRate),
		salesapp.WithQuoteValidity(days(cfg.Pricing.QuoteValidityDays)),
	)
	invoiceService := billingapp.NewInvoiceService(
		invoiceRepo,
		quoteRepo,
		numbers,
		clientRepo,
		log,
		billingapp.WithPaymentTerm(days(cfg.Pricing.InvoiceDueDays)),
		billingapp.WithInvoiceTaxRate(cfg.Pricing.DefaultTaxRate),
	)

	// Event bus
	eventBus := event.NewInMemoryEventBus(log)
	if err := eventBus.Start(rootCtx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		_ = eventBus.Stop(context.Background())
	}()
	inventoryService.SetEventPublisher(eventBus)
	ledger.SetEventPublisher(eventBus)
	quoteService.SetEventPublisher(eventBus)
	invoiceService.SetEventPublisher(eventBus)

	salesMetrics, err := telemetry.NewSalesMetrics(meter, telemetry.NewGormLedgerStatsProvider(db.DB), log)
	if err != nil {
		log.Warn("Sales metrics disabled", zap.Error(err))
	} else {
		eventBus.Subscribe(salesMetrics, salesMetrics.EventTypes()...)
		if meterProvider.IsEnabled() {
			salesMetrics.StartPeriodicCollection(rootCtx, time.Minute)
			defer salesMetrics.Stop()
		}
	}

	// Periodic jobs
	runner := scheduler.NewPeriodicRunner(scheduler.SchedulerConfig{
		Enabled:    cfg.Scheduler.Enabled,
		JobTimeout: cfg.Scheduler.JobTimeout,
	}, log, scheduler.WithMeter(meter))
	jobs := []scheduler.Job{
		scheduler.OverdueSweepJob(invoiceService, cfg.Scheduler.OverdueCheckInterval, log),
		scheduler.ReconcileJob(ledger, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.ReconcileRepair, log),
	}
	for _, job := range jobs {
		if err := runner.Register(job); err != nil {
			log.Fatal("Failed to register job", zap.String("job", job.Name), zap.Error(err))
		}
	}
	if err := runner.Start(rootCtx); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// HTTP
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies", zap.Error(err))
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	if tracerProvider.IsEnabled() {
		engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName))
		engine.Use(middleware.SpanAttributes())
	}
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.HTTPMetrics(meter))
	engine.Use(middleware.Secure())
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSOrigins
	engine.Use(middleware.CORS(corsCfg))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	r := router.NewRouter(engine)
	r.Use(middleware.Actor())
	if cfg.HTTP.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateWindow)
		go limiter.RunSweeper(rootCtx)
		r.Use(middleware.RateLimit(limiter))
	}
	if cfg.Idempotency.Enabled {
		r.Use(middleware.Idempotency(middleware.IdempotencyConfig{
			Store:  cache.NewIdempotencyStore(redisClient, log),
			TTL:    cfg.Idempotency.TTL,
			Logger: log,
		}))
	}

	r.RegisterAPI(router.Handlers{
		Clients:   handler.NewClientHandler(clientService),
		Inventory: handler.NewInventoryHandler(inventoryService),
		Quotes:    handler.NewQuoteHandler(quoteService),
		Invoices:  handler.NewInvoiceHandler(invoiceService),
		System: handler.NewSystemHandler(cfg.App.Name, version,
			handler.WithHealthCheck("database", db.Ping),
			redisHealth(redisClient),
			handler.WithJobRunner(runner),
			handler.WithDriftChecker(ledger),
		),
	}).Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := runner.Stop(ctx); err != nil {
		log.Warn("Scheduler did not stop cleanly", zap.Error(err))
	}
	stopRoot()

	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": tracerProvider.Shutdown,
		"meter":  meterProvider.Shutdown,
		"logs":   logsProvider.Shutdown,
	} {
		if err := shutdown(ctx); err != nil {
			log.Warn("Telemetry provider shutdown failed", zap.String("provider", name), zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

// migrateSchema applies the embedded SQL migrations on postgres. sqlite is a
// development backend and is migrated from the gorm models.
func migrateSchema(db *persistence.Database, log *zap.Logger) error {
	if db.Driver == "sqlite" {
		return db.AutoMigrate(models.All()...)
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.NewFromFS(sqlDB, migrations.FS, log)
	if err != nil {
		return err
	}
	return m.Up()
}

func redisHealth(client *redis.Client) handler.SystemOption {
	if client == nil {
		return func(*handler.SystemHandler) {}
	}
	return handler.WithHealthCheck("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

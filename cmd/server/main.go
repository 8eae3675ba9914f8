package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	identityapp "github.com/Gstxxx/picpay-simplificado/internal/application/identity"
	transferapp "github.com/Gstxxx/picpay-simplificado/internal/application/transfer"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/auth"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/cache"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/config"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/event"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/gateway"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/logger"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/persistence"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/resilience"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/telemetry"
	"github.com/Gstxxx/picpay-simplificado/internal/interfaces/http/handler"
	"github.com/Gstxxx/picpay-simplificado/internal/interfaces/http/middleware"
	"github.com/Gstxxx/picpay-simplificado/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx := context.Background()
	logCfg := &logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}

	// Bootstrap logger used until the OTEL log pipeline exists
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	log, err := logger.New(logCfg, providers.LogCore(logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting payments service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	meter := providers.Meter(cfg.Telemetry.ServiceName)
	paymentMetrics, err := telemetry.NewPaymentMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create payment metrics", zap.Error(err))
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), 200*time.Millisecond)
	db, err := persistence.Open(ctx, &cfg.Database,
		persistence.WithGormLogger(gormLog),
		persistence.WithLogger(log),
		persistence.WithConnectRetry(30*time.Second),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled: cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBName:  cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	if sqlDB, err := db.SQLDB(); err == nil {
		if _, err := telemetry.RegisterDBPoolMetrics(meter, sqlDB); err != nil {
			log.Warn("Failed to register connection pool metrics", zap.Error(err))
		}
	}

	accountRepo := persistence.NewGormAccountRepository(db.DB)
	transferStore := persistence.NewGormTransferStore(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	breakerStore, err := cache.NewBreakerStoreFactory(cfg.Breaker, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create circuit breaker store", zap.Error(err))
	}

	client := resilience.NewClient(breakerStore, resilience.Settings{
		Threshold: cfg.Breaker.Threshold,
		Cooldown:  cfg.Breaker.Cooldown,
	},
		resilience.WithLogger(log),
		resilience.WithObserver(paymentMetrics),
	)
	authorizer := gateway.NewHTTPAuthorizer(client, cfg.Authorizer, log)
	notifier := gateway.NewHTTPNotifier(client, cfg.Notifier)

	jwtService := auth.NewJWTService(cfg.JWT)
	accountService := identityapp.NewAccountService(accountRepo, jwtService, log)
	transferService := transferapp.NewService(accountRepo, transferStore, authorizer, paymentMetrics, log)

	var (
		relay       *event.Relay
		outboxStats handler.OutboxStats
	)
	if cfg.Outbox.Enabled {
		relay = event.NewRelay(outboxRepo, notifier, event.RelayConfig{
			BatchSize:        cfg.Outbox.BatchSize,
			PollInterval:     cfg.Outbox.PollInterval,
			MaxAttempts:      cfg.Outbox.MaxAttempts,
			StuckTimeout:     cfg.Outbox.StuckTimeout,
			CleanupEnabled:   cfg.Outbox.CleanupEnabled,
			CleanupRetention: cfg.Outbox.CleanupRetention,
			CleanupInterval:  cfg.Outbox.CleanupInterval,
		}, log, event.WithDeliveryRecorder(paymentMetrics))
		if err := relay.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox relay", zap.Error(err))
		}
		outboxStats = relay
	} else {
		log.Warn("Outbox relay disabled, transfer notifications stay pending")
	}

	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register request validators", zap.Error(err))
	}

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.HSTSEnabled = cfg.App.Env == "production"

	engine := router.NewEngine(router.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: providers.TracingEnabled(),
		CORS:           corsCfg,
		Security:       securityCfg,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		RateLimiter:    limiter,
		Tokens:         jwtService,
		Logger:         log,
	}, router.Handlers{
		Auth:     handler.NewAuthHandler(accountService, log),
		Transfer: handler.NewTransferHandler(transferService, log),
		Health:   handler.NewHealthHandler(db, outboxStats, log),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           engine,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if relay != nil {
		if err := relay.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping outbox relay", zap.Error(err))
		}
	}
	if limiter != nil {
		limiter.Stop()
	}
	if err := breakerStore.Close(); err != nil {
		log.Error("Error closing circuit breaker store", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down telemetry", zap.Error(err))
	}

	log.Info("Server exited")
}

package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/nexuspay/webhook-relay/internal/config"
	"github.com/nexuspay/webhook-relay/internal/dispatch"
	"github.com/nexuspay/webhook-relay/internal/forward"
	"github.com/nexuspay/webhook-relay/internal/handler"
	"github.com/nexuspay/webhook-relay/internal/infra/postgresql"
	"github.com/nexuspay/webhook-relay/internal/infra/postgresql/migrations"
	infraredis "github.com/nexuspay/webhook-relay/internal/infra/redis"
	"github.com/nexuspay/webhook-relay/internal/observability"
	"github.com/nexuspay/webhook-relay/internal/repository"
	"github.com/nexuspay/webhook-relay/internal/service"
	"github.com/nexuspay/webhook-relay/internal/transport"
	"github.com/nexuspay/webhook-relay/internal/verifier"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	metrics := observability.NewMetrics()

	events := repository.NewGormEventRepo(db)
	attempts := repository.NewGormAttemptRepo(db)
	signatures := repository.NewGormSignatureRepo(db)
	transactions := repository.NewGormTransactionRepo(db)
	balances := repository.NewGormBalanceRepo(db)

	var requestLogs repository.RequestLogRepository
	if cfg.WebhookLogsEnabled {
		requestLogs = repository.NewGormRequestLogRepo(db)
	}

	locker, err := infraredis.NewNotificationLocker(rdb, 0, logger)
	if err != nil {
		logger.Fatal("notification locker initialization failed", zap.Error(err))
	}

	forwarder, err := forward.New(cfg.DownstreamURL, cfg.Timeout(), logger)
	if err != nil {
		logger.Fatal("forwarder initialization failed", zap.Error(err))
	}

	sigVerifier := verifier.New(cfg.WebhookSecret, logger)

	processor, err := service.NewProcessor(
		events,
		attempts,
		signatures,
		transactions,
		balances,
		forwarder,
		locker,
		sigVerifier,
		cfg.MaxRetries,
		logger,
	)
	if err != nil {
		logger.Fatal("processor initialization failed", zap.Error(err))
	}
	processor.SetMetrics(metrics)

	pool := dispatch.NewPool(cfg.DispatchWorkers, cfg.DispatchBuffer, logger)

	gateway, err := service.NewGateway(
		processor,
		pool,
		requestLogs,
		cfg.AllowedIPList(),
		cfg.SubscribedEventList(),
		cfg.WebhookLogsEnabled,
		logger,
	)
	if err != nil {
		logger.Fatal("gateway initialization failed", zap.Error(err))
	}
	gateway.SetMetrics(metrics)

	sweeper, err := service.NewRetrySweeper(
		events,
		attempts,
		processor,
		cfg.RetrySweepInterval(),
		cfg.RetryDelay(),
		cfg.MaxRetries,
		logger,
	)
	if err != nil {
		logger.Fatal("retry sweeper initialization failed", zap.Error(err))
	}
	sweeper.SetMetrics(metrics)

	monitor, err := service.NewHealthMonitor(forwarder, cfg.HealthCheckInterval(), logger)
	if err != nil {
		logger.Fatal("health monitor initialization failed", zap.Error(err))
	}

	healthSvc := service.NewHealthService(forwarder, sigVerifier.Enabled(), cfg.WebhookLogsEnabled, cfg.MaxRetries)

	statsSvc, err := service.NewStatsService(events, attempts)
	if err != nil {
		logger.Fatal("stats service initialization failed", zap.Error(err))
	}

	webhookHandler, err := handler.NewWebhookHandler(
		gateway,
		sweeper,
		processor,
		statsSvc,
		healthSvc,
		events,
		attempts,
		signatures,
		requestLogs,
		handler.ConfigEcho{
			SignatureVerification: sigVerifier.Enabled(),
			ForwardingEnabled:     forwarder.Enabled(),
			RequestLogsEnabled:    cfg.WebhookLogsEnabled,
			MaxRetries:            cfg.MaxRetries,
			RetryDelaySeconds:     cfg.RetryDelaySeconds,
			RetrySweepSeconds:     cfg.RetrySweepSeconds,
			AllowedIPs:            cfg.AllowedIPList(),
			SubscribedEvents:      cfg.SubscribedEventList(),
		},
	)
	if err != nil {
		logger.Fatal("webhook handler initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	handler.RegisterWebhookRoutes(app, webhookHandler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return pool.Start(groupCtx)
	})
	g.Go(func() error {
		return sweeper.Start(groupCtx)
	})
	g.Go(func() error {
		return monitor.Start(groupCtx)
	})
	g.Go(func() error {
		logger.Info("webhook-relay api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})
	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("service terminated", zap.Error(err))
	}
	logger.Info("webhook-relay stopped")
}

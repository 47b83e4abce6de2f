package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/taxsync/api/routes"
	"github.com/angelmondragon/taxsync/internal/cron"
	"github.com/angelmondragon/taxsync/internal/syncqueue"
	"github.com/angelmondragon/taxsync/internal/taxservice"
	"github.com/angelmondragon/taxsync/pkg/config"
	"github.com/angelmondragon/taxsync/pkg/db"
	"github.com/angelmondragon/taxsync/pkg/logger"
	"github.com/angelmondragon/taxsync/pkg/metrics"
	"github.com/angelmondragon/taxsync/pkg/migrate"
	"github.com/angelmondragon/taxsync/pkg/redis"
	"github.com/angelmondragon/taxsync/pkg/telemetry"
)

const serviceName = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	shutdownTracing, err := telemetry.Setup(context.Background(), *cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to set up tracing", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logg.Error(context.Background(), "error flushing traces", err)
		}
	}()

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	queue, err := syncqueue.NewService(syncqueue.ServiceParams{
		DB:         dbClient,
		Repository: syncqueue.NewRepository(dbClient.DB()),
		Logs:       syncqueue.NewLogRepository(dbClient.DB()),
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create queue service", err)
		os.Exit(1)
	}

	client, err := taxservice.NewHTTPClient(taxservice.Credentials{
		URL:         cfg.TaxService.URL,
		Account:     cfg.TaxService.Account,
		License:     cfg.TaxService.License,
		CompanyCode: cfg.TaxService.CompanyCode,
	}, cfg.TaxService.Timeout)
	if err != nil {
		logg.Error(context.Background(), "failed to create tax service client", err)
		os.Exit(1)
	}

	registry, err := cron.NewDefaultRegistry(cron.DefaultJobsParams{
		Config:  cfg,
		Logger:  logg,
		DB:      dbClient,
		Queue:   queue,
		Logs:    syncqueue.NewLogRepository(dbClient.DB()),
		Client:  client,
		Metrics: metrics.NewTaxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceName, cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	server := &http.Server{
		Addr: net.JoinHostPort("", cfg.App.Port),
		Handler: routes.NewOpsRouter(routes.OpsParams{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Queue:    queue,
			Gatherer: prometheus.DefaultGatherer,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logg.Info(ctx, "ops server listening on "+server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "ops server stopped unexpectedly", err)
			stop()
		}
	}()

	logg.Info(ctx, "starting cron worker")
	runErr := service.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "ops server shutdown failed", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", runErr)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

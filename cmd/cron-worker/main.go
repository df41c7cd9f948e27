package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kasuwa-ng/marketplace-backend/internal/cron"
	"github.com/kasuwa-ng/marketplace-backend/internal/ledger"
	"github.com/kasuwa-ng/marketplace-backend/pkg/config"
	"github.com/kasuwa-ng/marketplace-backend/pkg/db"
	"github.com/kasuwa-ng/marketplace-backend/pkg/instance"
	"github.com/kasuwa-ng/marketplace-backend/pkg/logger"
	"github.com/kasuwa-ng/marketplace-backend/pkg/metrics"
	"github.com/kasuwa-ng/marketplace-backend/pkg/migrate"
	"github.com/kasuwa-ng/marketplace-backend/pkg/outbox"
	"github.com/kasuwa-ng/marketplace-backend/pkg/redis"
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

	if err := run(cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	boot := context.Background()

	dbClient, err := db.New(boot, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dbClient.Close(); closeErr != nil {
			logg.Error(boot, "error closing database", closeErr)
		}
	}()

	if err := migrate.MaybeRunDev(boot, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(boot, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			logg.Error(boot, "error closing redis", closeErr)
		}
	}()

	// One lock per environment, shared by every cron-worker replica.
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		return err
	}

	registry, err := buildJobs(cfg, logg, dbClient)
	if err != nil {
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	logg.Info(ctx, "starting cron worker")
	defer logg.Info(ctx, "cron worker shutting down")
	return service.Run(ctx)
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	outboxRepo := outbox.NewRepository(dbClient.DB())

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.RetentionDays,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	staleWithdrawalJob, err := cron.NewStaleWithdrawalJob(cron.StaleWithdrawalJobParams{
		Logger:        logg,
		DB:            dbClient,
		PendingReader: ledger.NewRepository(dbClient.DB()),
		Outbox:        outbox.NewService(outboxRepo, logg),
	})
	if err != nil {
		return nil, fmt.Errorf("stale withdrawal job: %w", err)
	}

	return cron.NewRegistry(retentionJob, staleWithdrawalJob), nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("kasuwa:%s:lock:%s", serviceName, env)
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/kasuwa-ng/marketplace-backend/pkg/config"
	"github.com/kasuwa-ng/marketplace-backend/pkg/db"
	"github.com/kasuwa-ng/marketplace-backend/pkg/instance"
	"github.com/kasuwa-ng/marketplace-backend/pkg/logger"
	"github.com/kasuwa-ng/marketplace-backend/pkg/migrate"
	"github.com/kasuwa-ng/marketplace-backend/pkg/outbox"
	"github.com/kasuwa-ng/marketplace-backend/pkg/outbox/registry"
	"github.com/kasuwa-ng/marketplace-backend/pkg/pubsub"
)

const serviceName = "outbox-publisher"

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
		logg.Error(context.Background(), "outbox publisher stopped unexpectedly", err)
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

	pubsubClient, err := pubsub.NewClient(boot, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := pubsubClient.Close(); closeErr != nil {
			logg.Error(boot, "error closing pubsub client", closeErr)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceName,
		"instance":    instance.GetID(),
	})

	logg.Info(ctx, "starting outbox publisher")
	defer logg.Info(ctx, "outbox publisher shutting down")
	return service.Run(ctx)
}

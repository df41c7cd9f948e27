package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kasuwa-ng/marketplace-backend/internal/banks"
	settlementconsumer "github.com/kasuwa-ng/marketplace-backend/internal/consumers/settlement"
	"github.com/kasuwa-ng/marketplace-backend/internal/ledger"
	"github.com/kasuwa-ng/marketplace-backend/internal/orders"
	"github.com/kasuwa-ng/marketplace-backend/internal/settlement"
	"github.com/kasuwa-ng/marketplace-backend/internal/taxpolicy"
	"github.com/kasuwa-ng/marketplace-backend/internal/users"
	"github.com/kasuwa-ng/marketplace-backend/internal/wallet"
	"github.com/kasuwa-ng/marketplace-backend/pkg/config"
	"github.com/kasuwa-ng/marketplace-backend/pkg/db"
	"github.com/kasuwa-ng/marketplace-backend/pkg/instance"
	"github.com/kasuwa-ng/marketplace-backend/pkg/logger"
	"github.com/kasuwa-ng/marketplace-backend/pkg/metrics"
	"github.com/kasuwa-ng/marketplace-backend/pkg/migrate"
	"github.com/kasuwa-ng/marketplace-backend/pkg/outbox"
	"github.com/kasuwa-ng/marketplace-backend/pkg/outbox/idempotency"
	"github.com/kasuwa-ng/marketplace-backend/pkg/paystack"
	"github.com/kasuwa-ng/marketplace-backend/pkg/pubsub"
	"github.com/kasuwa-ng/marketplace-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "settlement-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "settlement-worker"

	logg = logger.New(logger.Options{
		ServiceName: "settlement-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	err = migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient)
	requireResource(ctx, logg, "dev migrations", err)

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub client", err)
		}
	}()

	gateway, err := paystack.NewClient(context.Background(), cfg.Paystack, logg)
	requireResource(ctx, logg, "paystack client", err)

	manager, err := idempotency.NewManager(redisClient, cfg.Outbox.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	gormDB := dbClient.DB()
	ledgerRepo := ledger.NewRepository(gormDB)
	ledgerService, err := ledger.NewService(ledgerRepo)
	requireResource(ctx, logg, "ledger service", err)

	bankDirectory, err := banks.NewService(gateway, redisClient, cfg.Settlement.BankCacheTTL, logg)
	requireResource(ctx, logg, "bank directory", err)

	walletService, err := wallet.NewService(wallet.NewRepository(gormDB), cfg.Settlement, bankDirectory)
	requireResource(ctx, logg, "wallet service", err)

	taxService, err := taxpolicy.NewService(taxpolicy.NewRepository(gormDB))
	requireResource(ctx, logg, "tax policy service", err)

	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	settlementService, err := settlement.NewService(settlement.Deps{
		DB:      dbClient,
		Ledger:  ledgerService,
		Wallets: walletService,
		Taxes:   taxService,
		Orders:  orders.NewRepository(gormDB),
		Users:   users.NewRepository(gormDB),
		Outbox:  outboxService,
		Gateway: gateway,
		Metrics: metrics.NewSettlementMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
	})
	requireResource(ctx, logg, "settlement service", err)

	consumer, err := settlementconsumer.NewConsumer(settlementService, ledgerService, gateway, manager, logg)
	requireResource(ctx, logg, "settlement consumer", err)

	payments := pubsubClient.PaymentsSubscription()
	if payments == nil {
		requireResource(ctx, logg, "payments subscription", errors.New("subscription not configured"))
	}
	transfers := pubsubClient.TransfersSubscription()
	if transfers == nil {
		requireResource(ctx, logg, "transfers subscription", errors.New("subscription not configured"))
	}

	service, err := NewService(ServiceParams{
		Logger:     logg,
		Payments:   payments,
		Transfers:  transfers,
		OnPayment:  consumer.ProcessPayment,
		OnTransfer: consumer.ProcessTransfer,
	})
	requireResource(ctx, logg, "settlement worker service", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(runCtx, "settlement worker ready")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "settlement worker failed", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "settlement worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

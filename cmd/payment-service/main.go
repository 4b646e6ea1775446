package main

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/Slot-Ordering-System/internal/config"
	invapp "github.com/dmehra2102/Slot-Ordering-System/internal/inventory/application"
	invpg "github.com/dmehra2102/Slot-Ordering-System/internal/inventory/infrastructure/postgres"
	orderapp "github.com/dmehra2102/Slot-Ordering-System/internal/order/application"
	orderpg "github.com/dmehra2102/Slot-Ordering-System/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/Slot-Ordering-System/internal/payment/application"
	paymentkafka "github.com/dmehra2102/Slot-Ordering-System/internal/payment/infrastructure/kafka"
	pg "github.com/dmehra2102/Slot-Ordering-System/internal/payment/infrastructure/postgres"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/idempotency"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/logging"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/shutdown"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/tracing"
)

// payment-service turns gateway confirmations into PAID orders. Schema
// migrations are owned by order-service.
func main() {
	log := logging.New()
	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	cfg, err := config.LoadPaymentService()
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	tp, err := tracing.Init(ctx, "payment-service", cfg.OTelURL, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisDB := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisDB.Close()
	idem := idempotency.NewStore(redisDB, 24*time.Hour)

	// Cancelling an order from here never happens, but the state machine
	// still needs a releaser; it is the same ledger the order service uses.
	coord := invapp.NewCoordinator(log, invpg.NewLedgerStore(log, pool), invpg.NewSettingsRepository(pool),
		invapp.WithLocation(cfg.Location))
	sm := orderapp.NewStateMachine(log, orderpg.NewRepository(log, pool), coord)

	svc := application.NewService(log, pg.NewRepository(log, pool), idem, sm)
	consumer := paymentkafka.NewConsumer(log, cfg.KafkaBrokers, cfg.PaymentTopic, cfg.GroupID, svc)

	if err := consumer.Run(ctx); err != nil {
		log.Error("consumer stopped", "err", err)
		os.Exit(1)
	}
	log.Info("payment-service shutdown")
}

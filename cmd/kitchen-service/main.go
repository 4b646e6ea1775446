package main

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/Slot-Ordering-System/internal/config"
	"github.com/dmehra2102/Slot-Ordering-System/internal/kitchen/application"
	kitchenkafka "github.com/dmehra2102/Slot-Ordering-System/internal/kitchen/infrastructure/kafka"
	"github.com/dmehra2102/Slot-Ordering-System/internal/kitchen/infrastructure/rabbitmq"
	orderpg "github.com/dmehra2102/Slot-Ordering-System/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/idempotency"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/logging"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/shutdown"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/tracing"
)

func main() {
	log := logging.New()
	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	cfg, err := config.LoadKitchenService()
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	tp, err := tracing.Init(ctx, "kitchen-service", cfg.OTelURL, log)
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

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	conn, ch, err := rabbitmq.Dial(ctx, log, cfg.AMQPURL)
	if err != nil {
		log.Error("rabbitmq connect failed", "err", err)
		os.Exit(1)
	}
	defer conn.Close()
	defer ch.Close()

	pub, err := rabbitmq.NewPublisher(log, ch, cfg.Exchange)
	if err != nil {
		log.Error("rabbitmq setup failed", "err", err)
		os.Exit(1)
	}

	svc := application.NewService(log, orderpg.NewRepository(log, pool), pub, cfg.VenueName, cfg.Location)
	consumer := kitchenkafka.NewConsumer(log, cfg.KafkaBrokers, cfg.OutboxTopic, cfg.GroupID, svc,
		idempotency.NewStore(rdb, 24*time.Hour))

	if err := consumer.Run(ctx); err != nil {
		log.Error("consumer stopped", "err", err)
		os.Exit(1)
	}
	log.Info("kitchen-service shutdown")
}

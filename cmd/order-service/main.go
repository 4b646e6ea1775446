package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmehra2102/Slot-Ordering-System/internal/config"
	"github.com/dmehra2102/Slot-Ordering-System/internal/database"
	invapp "github.com/dmehra2102/Slot-Ordering-System/internal/inventory/application"
	invgrpc "github.com/dmehra2102/Slot-Ordering-System/internal/inventory/infrastructure/grpc"
	invpg "github.com/dmehra2102/Slot-Ordering-System/internal/inventory/infrastructure/postgres"
	sagaapp "github.com/dmehra2102/Slot-Ordering-System/internal/orchestrator/application"
	"github.com/dmehra2102/Slot-Ordering-System/internal/order/application"
	orderhttp "github.com/dmehra2102/Slot-Ordering-System/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/Slot-Ordering-System/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/Slot-Ordering-System/internal/order/infrastructure/postgres"
	payapp "github.com/dmehra2102/Slot-Ordering-System/internal/payment/application"
	paypg "github.com/dmehra2102/Slot-Ordering-System/internal/payment/infrastructure/postgres"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/idempotency"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/logging"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/outbox"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/shutdown"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/tracing"
)

func main() {
	log := logging.New()

	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	cfg, err := config.LoadOrderService()
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	tp, err := tracing.Init(ctx, "order-service", cfg.OTelURL, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	if err := database.Migrate(log, cfg.PGURL); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	writer := orderkafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()

	// Reservation ledger
	ledgers := invpg.NewLedgerStore(log, pool)
	settings := invpg.NewSettingsRepository(pool)
	coord := invapp.NewCoordinator(log, ledgers, settings,
		invapp.WithLocation(cfg.Location),
		invapp.WithMaxAttempts(cfg.ReserveMaxAttempts))

	// Orders, lifecycle and outbox
	repo := orderpg.NewRepository(log, pool)
	sm := application.NewStateMachine(log, repo, coord)
	saga := sagaapp.NewOrderSaga(log, coord, repo)
	reaper := application.NewReaper(log, repo, sm, cfg.PendingTTL, cfg.ReaperInterval)
	relay := outbox.NewRelay(log, orderpg.NewOutboxStore(log, pool),
		outbox.NewDispatcher(log, writer, cfg.OutboxTopic), "order-service-relay")

	// Payment webhook
	payments := payapp.NewService(log, paypg.NewRepository(log, pool), idempotency.NewStore(rdb, 24*time.Hour), sm)

	handler := orderhttp.NewHandler(log, orderhttp.Services{
		Inventory: coord,
		Settings:  settings,
		Orders:    saga,
		Lifecycle: sm,
		Reader:    repo,
		Payments:  payments,
	}, cfg.RequestTimeout)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Mount("/", handler.Routes())
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error("grpc listen failed", "addr", cfg.GRPCAddr, "err", err)
		os.Exit(1)
	}
	health := invgrpc.NewHealthReporter(log, ledgers, 10*time.Second)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return reaper.Run(gctx) })
	g.Go(func() error { return health.Run(gctx) })
	g.Go(func() error { return invgrpc.Serve(gctx, log, lis, health.Server()) })
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("order-service stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("order-service shutdown complete")
}

package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// LedgerService is the name health checks use for the reservation ledger.
const LedgerService = "slots.LedgerStore"

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter keeps the standard gRPC health service in step with the
// ledger store. The overall ("") status follows the ledger.
type HealthReporter struct {
	log      *slog.Logger
	srv      *health.Server
	store    Pinger
	interval time.Duration
	serving  bool
}

func NewHealthReporter(log *slog.Logger, store Pinger, interval time.Duration) *HealthReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	srv.SetServingStatus(LedgerService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthReporter{log: log, srv: srv, store: store, interval: interval}
}

func (h *HealthReporter) Server() *health.Server { return h.srv }

// Check pings the store once and publishes the result.
func (h *HealthReporter) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, h.interval)
	defer cancel()

	err := h.store.Ping(ctx)
	ok := err == nil
	if ok != h.serving {
		if ok {
			h.log.Info("ledger store reachable")
		} else {
			h.log.Error("ledger store unreachable", "err", err)
		}
	}
	h.serving = ok

	status := healthpb.HealthCheckResponse_SERVING
	if !ok {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(LedgerService, status)
	return ok
}

func (h *HealthReporter) Run(ctx context.Context) error {
	h.Check(ctx)
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return nil
		case <-t.C:
			h.Check(ctx)
		}
	}
}

// Serve runs a gRPC server exposing the health service on lis until ctx is
// cancelled.
func Serve(ctx context.Context, log *slog.Logger, lis net.Listener, hs healthpb.HealthServer) error {
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()

	log.Info("grpc listening", "addr", lis.Addr().String())
	if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

package grpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type flakyStore struct{ down atomic.Bool }

func (s *flakyStore) Ping(context.Context) error {
	if s.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func status(t *testing.T, hs healthpb.HealthServer, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthReporterFollowsStore(t *testing.T) {
	store := &flakyStore{}
	h := NewHealthReporter(discard(), store, time.Second)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, h.Server(), ""))

	assert.True(t, h.Check(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, h.Server(), ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, h.Server(), LedgerService))

	store.down.Store(true)
	assert.False(t, h.Check(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, h.Server(), LedgerService))
}

func TestServe(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	h := NewHealthReporter(discard(), &flakyStore{}, time.Second)
	h.Check(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, discard(), lis, h.Server()) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: LedgerService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	cancel()
	require.NoError(t, <-done)
}

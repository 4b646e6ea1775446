package shutdown

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithSignals(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	parent, stop := context.WithCancel(context.Background())
	defer stop()

	var forced atomic.Bool
	ctx, cancel := withSignals(parent, log, func() { forced.Store(true) }, syscall.SIGUSR1)
	defer cancel()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled by signal")
	}

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	assert.Eventually(t, forced.Load, 2*time.Second, 10*time.Millisecond)
}

func TestWithSignalsCancelledByCaller(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := withSignals(context.Background(), log, func() { t.Error("unexpected forced exit") }, syscall.SIGUSR2)
	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

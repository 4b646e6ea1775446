package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// WithSignals returns a context cancelled on the first SIGINT or SIGTERM.
// A second signal exits straight away.
func WithSignals(ctx context.Context, log *slog.Logger) (context.Context, context.CancelFunc) {
	return withSignals(ctx, log, func() { os.Exit(1) }, syscall.SIGINT, syscall.SIGTERM)
}

func withSignals(ctx context.Context, log *slog.Logger, force func(), sigs ...os.Signal) (context.Context, context.CancelFunc) {
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, sigs...)

	go func() {
		defer signal.Stop(ch)
		select {
		case s := <-ch:
			log.Info("shutdown requested", "signal", s.String())
			cancel()
		case <-ctx.Done():
			return
		}
		select {
		case s := <-ch:
			log.Warn("forced exit", "signal", s.String())
			force()
		case <-parent.Done():
		}
	}()

	return ctx, cancel
}

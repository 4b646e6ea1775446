package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dmehra2102/Slot-Ordering-System/internal/order/domain"
)

const (
	DefaultPendingTTL     = 30 * time.Minute
	DefaultReaperInterval = time.Minute
	reaperBatch           = 100
	// stuckAfter consecutive failed sweeps an order is reported as stuck.
	stuckAfter = 10
)

// Reaper cancels orders left in PENDING_PAYMENT longer than ttl, releasing
// their reservations. It shares the conditional transition of the state
// machine, so it never wins against a payment that committed first.
type Reaper struct {
	log      *slog.Logger
	repo     OrderRepository
	sm       *StateMachine
	ttl      time.Duration
	interval time.Duration
	batch    int
	now      func() time.Time

	mu sync.Mutex
	// failing counts consecutive failed cancels per order id. Those orders
	// are listed on top of the batch so they never crowd out newer ones.
	failing map[string]int
}

func NewReaper(log *slog.Logger, repo OrderRepository, sm *StateMachine, ttl, interval time.Duration) *Reaper {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	if interval <= 0 {
		interval = DefaultReaperInterval
	}
	return &Reaper{
		log:      log,
		repo:     repo,
		sm:       sm,
		ttl:      ttl,
		interval: interval,
		batch:    reaperBatch,
		now:      func() time.Time { return time.Now().UTC() },
		failing:  map[string]int{},
	}
}

func (r *Reaper) WithBatch(n int) *Reaper {
	if n > 0 {
		r.batch = n
	}
	return r
}

func (r *Reaper) WithClock(now func() time.Time) *Reaper {
	r.now = now
	return r
}

func (r *Reaper) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("reaper stopping")
			return nil
		case <-t.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.log.Error("reaper sweep failed", "err", err)
			}
		}
	}
}

// Sweep cancels one batch of expired orders and returns how many it
// cancelled. Orders whose cancel keeps failing are retried every sweep
// without counting against the batch.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	orders, err := r.repo.ListPendingBefore(ctx, r.now().Add(-r.ttl), r.batch+len(r.failing))
	if err != nil {
		return 0, err
	}

	listed := make(map[string]bool, len(orders))
	fresh := make([]domain.Order, 0, len(orders))
	var retry []domain.Order
	for _, o := range orders {
		listed[o.ID] = true
		if _, ok := r.failing[o.ID]; ok {
			retry = append(retry, o)
		} else if len(fresh) < r.batch {
			fresh = append(fresh, o)
		}
	}
	// no longer pending
	for id := range r.failing {
		if !listed[id] {
			delete(r.failing, id)
		}
	}

	cancelled := 0
	for _, o := range append(fresh, retry...) {
		if ctx.Err() != nil {
			return cancelled, ctx.Err()
		}
		_, err := r.sm.Expire(ctx, o.ID)
		switch {
		case err == nil:
			cancelled++
			delete(r.failing, o.ID)
		case errors.Is(err, domain.ErrInvalidTransition):
			r.log.Debug("reaper skipped order that moved on", "order_id", o.ID)
			delete(r.failing, o.ID)
		default:
			r.failing[o.ID]++
			if n := r.failing[o.ID]; n%stuckAfter == 0 {
				r.log.Error("expired order cannot be cancelled", "order_id", o.ID, "attempts", n, "err", err)
			} else {
				r.log.Warn("reaper cancel failed", "order_id", o.ID, "attempt", n, "err", err)
			}
		}
	}
	if cancelled > 0 {
		r.log.Info("expired pending orders cancelled", "count", cancelled, "ttl", r.ttl.String())
	}
	return cancelled, nil
}

// Failing returns how many expired orders are currently failing to cancel.
func (r *Reaper) Failing() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failing)
}

package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Slot-Ordering-System/internal/inventory/domain"
)

const (
	DefaultMaxAttempts = 5
	DefaultBackoff     = 10 * time.Millisecond
)

// Coordinator decides and commits reservations against the daily ledger.
// Every mutation is a read-evaluate-write attempt committed with a version
// check; conflicting attempts are re-run from a fresh read.
type Coordinator struct {
	log         *slog.Logger
	ledgers     LedgerStore
	settings    SettingsProvider
	loc         *time.Location
	now         func() time.Time
	maxAttempts int
	backoff     time.Duration
	tracer      trace.Tracer
}

type Option func(*Coordinator)

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithLocation sets the venue timezone used to decide what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(c *Coordinator) { c.loc = loc }
}

func WithMaxAttempts(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithBackoff(d time.Duration) Option {
	return func(c *Coordinator) { c.backoff = d }
}

func NewCoordinator(log *slog.Logger, ledgers LedgerStore, settings SettingsProvider, opts ...Option) *Coordinator {
	c := &Coordinator{
		log:         log,
		ledgers:     ledgers,
		settings:    settings,
		loc:         time.Local,
		now:         time.Now,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		tracer:      otel.Tracer("inventory-coordinator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) clock() time.Time {
	return c.now().In(c.loc)
}

// CheckAvailability evaluates a request without mutating anything. Problems
// are returned as data, never as an error.
func (c *Coordinator) CheckAvailability(ctx context.Context, date, slot string, lines []domain.Line) domain.Availability {
	ctx, span := c.tracer.Start(ctx, "CheckAvailability", trace.WithAttributes(
		attribute.String("date", date), attribute.String("slot", slot)))
	defer span.End()

	unavailable := func(e *domain.StockError) domain.Availability {
		return domain.Availability{Available: false, Errors: []domain.Violation{domain.ToViolation(e)}}
	}

	if se := domain.ValidateRequest(date, slot, lines); se != nil {
		return unavailable(se)
	}

	l, _, err := c.ledgers.Load(ctx, date)
	if errors.Is(err, domain.ErrLedgerNotFound) {
		return unavailable(&domain.StockError{Code: domain.CodeInvalidDate, Date: date,
			Message: fmt.Sprintf("no operation configured for %s", date)})
	}
	if err != nil {
		c.log.Error("availability ledger load failed", "date", date, "err", err)
		return unavailable(domain.TransactionFailed("could not verify availability, try again", err))
	}
	s, err := c.settings.Get(ctx)
	if err != nil {
		c.log.Error("availability settings load failed", "err", err)
		return unavailable(domain.TransactionFailed("could not verify availability, try again", err))
	}

	ev := domain.Evaluate(l, s, slot, lines, c.clock())
	out := domain.Availability{
		Available: ev.OK(),
		Errors:    make([]domain.Violation, 0, len(ev.Violations)),
		Warnings:  ev.Warnings,
	}
	for _, v := range ev.Violations {
		out.Errors = append(out.Errors, domain.ToViolation(v))
	}
	return out
}

// ReserveStock takes stock for every line and one unit of the slot, or
// nothing at all. Failures are *domain.StockError.
func (c *Coordinator) ReserveStock(ctx context.Context, date, slot string, lines []domain.Line) error {
	ctx, span := c.tracer.Start(ctx, "ReserveStock", trace.WithAttributes(
		attribute.String("date", date), attribute.String("slot", slot), attribute.Int("lines", len(lines))))
	defer span.End()

	if se := domain.ValidateRequest(date, slot, lines); se != nil {
		return endSpan(span, se)
	}
	err := c.mutate(ctx, date, true, func(l *domain.Ledger, s domain.Settings, now time.Time) error {
		ev := domain.Evaluate(*l, s, slot, lines, now)
		if se := ev.First(); se != nil {
			return se
		}
		l.Reserve(slot, lines, now)
		return nil
	})
	if err == nil {
		c.log.Info("stock reserved", "date", date, "slot", slot, "lines", len(lines))
	}
	return endSpan(span, err)
}

// ReleaseStock reverses one successful ReserveStock. It is not idempotent:
// callers must invoke it exactly once per reservation they undo.
func (c *Coordinator) ReleaseStock(ctx context.Context, date, slot string, lines []domain.Line) error {
	ctx, span := c.tracer.Start(ctx, "ReleaseStock", trace.WithAttributes(
		attribute.String("date", date), attribute.String("slot", slot), attribute.Int("lines", len(lines))))
	defer span.End()

	if se := domain.ValidateRequest(date, slot, lines); se != nil {
		return endSpan(span, se)
	}
	err := c.mutate(ctx, date, false, func(l *domain.Ledger, _ domain.Settings, now time.Time) error {
		l.Release(slot, lines, now)
		return nil
	})
	if err == nil {
		c.log.Info("stock released", "date", date, "slot", slot, "lines", len(lines))
	}
	return endSpan(span, err)
}

// OpenDay creates the ledger for a date from the day's menu.
func (c *Coordinator) OpenDay(ctx context.Context, date string, products []domain.ProductStock, cutoff string) (domain.Ledger, error) {
	if !domain.ValidDate(date) {
		return domain.Ledger{}, &domain.StockError{Code: domain.CodeInvalidDate, Date: date,
			Message: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", date)}
	}
	if cutoff != "" && !domain.ValidSlot(cutoff) {
		return domain.Ledger{}, &domain.StockError{Code: domain.CodeInvalidSlotFormat, Date: date, Slot: cutoff,
			Message: fmt.Sprintf("invalid cutoff %q, expected HH:MM", cutoff)}
	}
	for _, p := range products {
		if p.AvailableStock < 0 {
			return domain.Ledger{}, &domain.StockError{Code: domain.CodeInvalidItems, Date: date, ProductID: p.ProductID,
				Message: fmt.Sprintf("stock for %s cannot be negative", p.ProductID)}
		}
	}
	l := domain.NewLedger(date, products, cutoff, c.clock())
	if err := c.ledgers.Create(ctx, l); err != nil {
		return domain.Ledger{}, err
	}
	c.log.Info("day opened", "date", date, "products", len(products))
	return l, nil
}

// CloseDay stops all further reservations for date and archives its ledger.
func (c *Coordinator) CloseDay(ctx context.Context, date string) error {
	if !domain.ValidDate(date) {
		return &domain.StockError{Code: domain.CodeInvalidDate, Date: date,
			Message: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", date)}
	}
	err := c.mutate(ctx, date, false, func(l *domain.Ledger, _ domain.Settings, now time.Time) error {
		l.Close(now)
		return nil
	})
	if err == nil {
		c.log.Info("day closed", "date", date)
	}
	return err
}

// Ledger returns the current ledger for date.
func (c *Coordinator) Ledger(ctx context.Context, date string) (domain.Ledger, error) {
	l, _, err := c.ledgers.Load(ctx, date)
	return l, err
}

type mutation func(l *domain.Ledger, s domain.Settings, now time.Time) error

// mutate runs the read-evaluate-write block until it commits, fails with a
// domain error, or runs out of attempts. Settings are re-read on every attempt.
func (c *Coordinator) mutate(ctx context.Context, date string, withSettings bool, fn mutation) error {
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.TransactionFailed("request cancelled", err)
		}

		current, version, err := c.ledgers.Load(ctx, date)
		if errors.Is(err, domain.ErrLedgerNotFound) {
			return &domain.StockError{Code: domain.CodeInvalidDate, Date: date,
				Message: fmt.Sprintf("no operation configured for %s", date)}
		}
		if err != nil {
			return domain.TransactionFailed("ledger load failed", err)
		}

		var s domain.Settings
		if withSettings {
			if s, err = c.settings.Get(ctx); err != nil {
				return domain.TransactionFailed("settings load failed", err)
			}
		}

		next := current.Clone()
		if err := fn(&next, s, c.clock()); err != nil {
			return err
		}

		err = c.ledgers.CommitIfUnchanged(ctx, date, version, next)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return domain.TransactionFailed("ledger commit failed", err)
		}
		c.log.Debug("ledger conflict, retrying", "date", date, "attempt", attempt, "version", version)
		if err := c.wait(ctx, attempt); err != nil {
			return domain.TransactionFailed("request cancelled", err)
		}
	}
	return domain.TransactionFailed(fmt.Sprintf("gave up after %d attempts", c.maxAttempts), domain.ErrConflict)
}

func (c *Coordinator) wait(ctx context.Context, attempt int) error {
	if c.backoff <= 0 {
		return nil
	}
	d := c.backoff*time.Duration(attempt) + rand.N(c.backoff)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func endSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.CodeOf(err)))
	}
	return err
}

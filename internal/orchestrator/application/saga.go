package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	invdomain "github.com/dmehra2102/Slot-Ordering-System/internal/inventory/domain"
	sagadomain "github.com/dmehra2102/Slot-Ordering-System/internal/orchestrator/domain"
	orderapp "github.com/dmehra2102/Slot-Ordering-System/internal/order/application"
	"github.com/dmehra2102/Slot-Ordering-System/internal/order/domain"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/logging"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/outbox"
)

const DefaultStepTimeout = 5 * time.Second

type StockReserver interface {
	ReserveStock(ctx context.Context, date, slot string, lines []invdomain.Line) error
	ReleaseStock(ctx context.Context, date, slot string, lines []invdomain.Line) error
}

type OrderWriter interface {
	Create(ctx context.Context, o domain.Order, rec outbox.Record) error
}

// ErrCompensationFailed means stock is still reserved for an order that was
// never written. It needs manual reconciliation.
var ErrCompensationFailed = errors.New("compensation failed")

// CompensationError carries the reservation that could not be released.
type CompensationError struct {
	OrderID    string
	Date       string
	Slot       string
	Lines      []invdomain.Line
	PersistErr error
	ReleaseErr error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("%s: order %s (%s %s): persist: %v; release: %v",
		ErrCompensationFailed, e.OrderID, e.Date, e.Slot, e.PersistErr, e.ReleaseErr)
}

func (e *CompensationError) Unwrap() []error { return []error{e.PersistErr, e.ReleaseErr} }

func (e *CompensationError) Is(target error) bool {
	return target == ErrCompensationFailed || target == error(domain.ErrOrderCreationFailed)
}

// OrderSaga creates orders: reserve stock, persist the order, and release
// the reservation again if persisting fails.
type OrderSaga struct {
	log         *slog.Logger
	stock       StockReserver
	orders      OrderWriter
	newID       func() string
	now         func() time.Time
	stepTimeout time.Duration
	observe     func(sagadomain.Saga)
	tracer      trace.Tracer
}

type Option func(*OrderSaga)

func WithIDs(newID func() string) Option {
	return func(s *OrderSaga) { s.newID = newID }
}

func WithClock(now func() time.Time) Option {
	return func(s *OrderSaga) { s.now = now }
}

func WithStepTimeout(d time.Duration) Option {
	return func(s *OrderSaga) {
		if d > 0 {
			s.stepTimeout = d
		}
	}
}

// WithObserver is called with the final saga record of every CreateOrder
// that got past validation.
func WithObserver(fn func(sagadomain.Saga)) Option {
	return func(s *OrderSaga) { s.observe = fn }
}

func NewOrderSaga(log *slog.Logger, stock StockReserver, orders OrderWriter, opts ...Option) *OrderSaga {
	s := &OrderSaga{
		log:         log,
		stock:       stock,
		orders:      orders,
		newID:       uuid.NewString,
		now:         func() time.Time { return time.Now().UTC() },
		stepTimeout: DefaultStepTimeout,
		tracer:      otel.Tracer("order-saga"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder runs the saga for req and returns the persisted order.
func (s *OrderSaga) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	if err := req.Validate(); err != nil {
		return domain.Order{}, err
	}

	id := s.newID()
	date, slot := req.Logistics.OrderDate, req.Logistics.SlotID
	lines := orderapp.Lines(req.Items)
	saga := sagadomain.NewSaga(id, date, slot)
	if s.observe != nil {
		defer func() { s.observe(*saga) }()
	}

	ctx, span := s.tracer.Start(ctx, "CreateOrder", trace.WithAttributes(
		attribute.String("order_id", id), attribute.String("date", date), attribute.String("slot", slot)))
	defer span.End()
	fail := func(err error) (domain.Order, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(saga.State))
		return domain.Order{}, err
	}

	if err := s.advance(saga, sagadomain.StateReserving); err != nil {
		return fail(err)
	}
	if err := s.stock.ReserveStock(ctx, date, slot, lines); err != nil {
		s.log.Info("order rejected", "order_id", id, "date", date, "slot", slot, "code", invdomain.CodeOf(err), "err", err)
		return fail(withStepErr(&domain.OrderError{
			Code:    domain.CodeStockReservationFailed,
			OrderID: id,
			Message: "could not reserve stock",
			Err:     err,
		}, s.advance(saga, sagadomain.StateReservationFailed)))
	}

	// From here on stock is held. A caller going away must not strand it.
	var persistErr error
	o := domain.NewOrder(id, req, s.now())
	if persistErr = s.advance(saga, sagadomain.StateReserved); persistErr == nil {
		if persistErr = s.advance(saga, sagadomain.StatePersisting); persistErr == nil {
			persistErr = s.persist(ctx, o)
		}
	}
	if persistErr == nil {
		if err := s.advance(saga, sagadomain.StateDone); err != nil {
			return fail(err)
		}
		s.log.Info("order created", "order_id", id, "date", date, "slot", slot, "total", o.Payment.TotalCents)
		return o, nil
	}

	stepErr := s.advance(saga, sagadomain.StateCompensating)
	s.log.Warn("order persist failed, releasing reservation", "order_id", id, "err", persistErr)
	if err := s.release(ctx, date, slot, lines); err != nil {
		stepErr = errors.Join(stepErr, s.advance(saga, sagadomain.StateCompensationFailed))
		logging.Critical(ctx, s.log, "reservation compensation failed, manual reconciliation required",
			"order_id", id, "order_date", date, "slot_id", slot, "lines", lines,
			"persist_err", persistErr, "release_err", err)
		return fail(withStepErr(&CompensationError{
			OrderID:    id,
			Date:       date,
			Slot:       slot,
			Lines:      lines,
			PersistErr: persistErr,
			ReleaseErr: err,
		}, stepErr))
	}
	stepErr = errors.Join(stepErr, s.advance(saga, sagadomain.StateReleased))
	return fail(withStepErr(&domain.OrderError{
		Code:    domain.CodeOrderCreationFailed,
		OrderID: id,
		Message: "could not save order",
		Err:     persistErr,
	}, stepErr))
}

// persist writes the order on a context detached from the caller, bounded
// by the step timeout.
func (s *OrderSaga) persist(ctx context.Context, o domain.Order) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.stepTimeout)
	defer cancel()
	rec, err := orderapp.CreatedRecord(ctx, o)
	if err != nil {
		return err
	}
	return s.orders.Create(ctx, o, rec)
}

// release gets a fresh step budget: a persist that timed out has already
// spent its own.
func (s *OrderSaga) release(ctx context.Context, date, slot string, lines []invdomain.Line) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.stepTimeout)
	defer cancel()
	return s.stock.ReleaseStock(ctx, date, slot, lines)
}

func withStepErr(err, stepErr error) error {
	if stepErr == nil {
		return err
	}
	return errors.Join(err, stepErr)
}

func (s *OrderSaga) advance(saga *sagadomain.Saga, to sagadomain.SagaState) error {
	if err := saga.Advance(to); err != nil {
		s.log.Error("saga step rejected", "order_id", saga.OrderID, "err", err)
		return err
	}
	s.log.Debug("saga step", "order_id", saga.OrderID, "state", to)
	return nil
}

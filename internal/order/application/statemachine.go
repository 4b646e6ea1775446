package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Slot-Ordering-System/internal/order/domain"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/logging"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/outbox"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/tracing"
)

// StateMachine applies lifecycle transitions to persisted orders. Every
// write is conditional on the status the transition was validated against.
type StateMachine struct {
	log    *slog.Logger
	repo   OrderRepository
	stock  StockReleaser
	now    func() time.Time
	tracer trace.Tracer
}

func NewStateMachine(log *slog.Logger, repo OrderRepository, stock StockReleaser) *StateMachine {
	return &StateMachine{
		log:    log,
		repo:   repo,
		stock:  stock,
		now:    func() time.Time { return time.Now().UTC() },
		tracer: otel.Tracer("order-lifecycle"),
	}
}

// WithClock replaces the clock used for workflow timestamps.
func (m *StateMachine) WithClock(now func() time.Time) *StateMachine {
	m.now = now
	return m
}

// UpdateOrderStatus moves order id to status to. Cancelling an order that
// is still awaiting payment gives its reservation back to the ledger.
func (m *StateMachine) UpdateOrderStatus(ctx context.Context, id string, to domain.OrderStatus) (domain.Order, error) {
	ctx, span := m.tracer.Start(ctx, "UpdateOrderStatus", trace.WithAttributes(
		attribute.String("order_id", id), attribute.String("to", string(to))))
	defer span.End()

	o, err := m.transition(ctx, id, to, "", "api")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.CodeOf(err)))
	}
	return o, err
}

// ConfirmPayment marks a pending order as paid. A confirmation for an order
// that is already paid, or further along, changes nothing.
func (m *StateMachine) ConfirmPayment(ctx context.Context, pc domain.PaymentConfirmation) (domain.Order, error) {
	ctx, span := m.tracer.Start(ctx, "ConfirmPayment", trace.WithAttributes(
		attribute.String("order_id", pc.OrderID), attribute.String("event_id", pc.EventID)))
	defer span.End()

	o, err := m.repo.Get(ctx, pc.OrderID)
	if err != nil {
		return domain.Order{}, err
	}
	if o.Workflow.Status.ReachedPaid() {
		m.log.Info("duplicate payment confirmation ignored", "order_id", o.ID, "status", o.Workflow.Status, "event_id", pc.EventID)
		return o, nil
	}
	if o.Workflow.Status == domain.StatusCancelled {
		m.log.Warn("payment received for cancelled order, refund required",
			"order_id", o.ID, "event_id", pc.EventID, "amount", pc.AmountCents)
		return o, domain.InvalidTransition(o.ID, o.Workflow.Status, domain.StatusPaid)
	}
	if pc.AmountCents > 0 && pc.AmountCents != o.Payment.TotalCents {
		m.log.Warn("payment amount differs from order total",
			"order_id", o.ID, "amount", pc.AmountCents, "total", o.Payment.TotalCents)
	}

	o, err = m.transition(ctx, pc.OrderID, domain.StatusPaid, pc.EventID, "payment")
	if errors.Is(err, domain.ErrInvalidTransition) {
		// lost a race with another confirmation or the reaper
		cur, gerr := m.repo.Get(ctx, pc.OrderID)
		if gerr == nil && cur.Workflow.Status.ReachedPaid() {
			return cur, nil
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.CodeOf(err)))
	}
	return o, err
}

// Expire cancels a pending order on behalf of the reaper. It returns
// domain.ErrInvalidTransition when the order moved on in the meantime.
func (m *StateMachine) Expire(ctx context.Context, id string) (domain.Order, error) {
	return m.transition(ctx, id, domain.StatusCancelled, "", "reaper")
}

func (m *StateMachine) transition(ctx context.Context, id string, to domain.OrderStatus, paymentEventID, source string) (domain.Order, error) {
	o, err := m.repo.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	from := o.Workflow.Status
	next := o
	if err := next.Transition(to, m.now()); err != nil {
		return o, err
	}
	if paymentEventID != "" {
		next.Metadata.PaymentEventID = paymentEventID
	}

	rec, err := statusRecord(ctx, next, from, source)
	if err != nil {
		return o, err
	}
	if err := m.repo.UpdateStatus(ctx, next, from, rec); err != nil {
		if errors.Is(err, domain.ErrStatusChanged) {
			e := domain.InvalidTransition(id, from, to)
			e.Err = err
			return o, e
		}
		return o, err
	}
	m.log.Info("order status changed", "order_id", id, "from", from, "to", to, "source", source)

	if from == domain.StatusPendingPayment && to == domain.StatusCancelled {
		m.release(ctx, next)
	}
	return next, nil
}

// release runs only after the conditional cancel committed, so it happens
// once per order. A failure cannot be retried safely and is left for
// reconciliation.
func (m *StateMachine) release(ctx context.Context, o domain.Order) {
	err := m.stock.ReleaseStock(context.WithoutCancel(ctx), o.Logistics.OrderDate, o.Logistics.SlotID, Lines(o.Items))
	if err != nil {
		logging.Critical(ctx, m.log, "stock release after cancellation failed",
			"order_id", o.ID, "order_date", o.Logistics.OrderDate, "slot_id", o.Logistics.SlotID, "err", err)
		return
	}
	m.log.Info("reservation released", "order_id", o.ID, "order_date", o.Logistics.OrderDate, "slot_id", o.Logistics.SlotID)
}

func statusRecord(ctx context.Context, o domain.Order, from domain.OrderStatus, source string) (outbox.Record, error) {
	payload, err := json.Marshal(domain.OrderStatusChanged{
		OrderID:   o.ID,
		From:      from,
		To:        o.Workflow.Status,
		OrderType: o.Logistics.Type,
		ChangedAt: o.Workflow.UpdatedAt,
	})
	if err != nil {
		return outbox.Record{}, err
	}
	return outbox.Record{
		AggregateType: "order",
		AggregateID:   o.ID,
		Type:          domain.EventOrderStatusChanged,
		Payload:       payload,
		Headers:       map[string]string{"source": source},
		Traceparent:   tracing.Traceparent(ctx),
	}, nil
}

// CreatedRecord is the outbox record written alongside a new order.
func CreatedRecord(ctx context.Context, o domain.Order) (outbox.Record, error) {
	payload, err := json.Marshal(domain.NewOrderCreated(o))
	if err != nil {
		return outbox.Record{}, err
	}
	return outbox.Record{
		AggregateType: "order",
		AggregateID:   o.ID,
		Type:          domain.EventOrderCreated,
		Payload:       payload,
		Headers:       map[string]string{"source": string(o.Metadata.Source)},
		Traceparent:   tracing.Traceparent(ctx),
	}, nil
}

package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Slot-Ordering-System/internal/kitchen/domain"
	orderdomain "github.com/dmehra2102/Slot-Ordering-System/internal/order/domain"
)

type OrderReader interface {
	Get(ctx context.Context, id string) (orderdomain.Order, error)
}

type TicketPublisher interface {
	Publish(ctx context.Context, t domain.Ticket) error
}

// Service prints a kitchen ticket for every order that becomes PAID. It only
// reads orders; a failure here never changes an order's status.
type Service struct {
	log    *slog.Logger
	orders OrderReader
	pub    TicketPublisher
	venue  string
	loc    *time.Location
	now    func() time.Time
	tracer trace.Tracer
}

func NewService(log *slog.Logger, orders OrderReader, pub TicketPublisher, venue string, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		log:    log,
		orders: orders,
		pub:    pub,
		venue:  venue,
		loc:    loc,
		now:    func() time.Time { return time.Now().UTC() },
		tracer: otel.Tracer("kitchen"),
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// HandleStatusChanged reports whether a ticket was published for ev.
func (s *Service) HandleStatusChanged(ctx context.Context, ev orderdomain.OrderStatusChanged) (bool, error) {
	if ev.To != orderdomain.StatusPaid {
		return false, nil
	}

	ctx, span := s.tracer.Start(ctx, "PrintTicket", trace.WithAttributes(attribute.String("order_id", ev.OrderID)))
	defer span.End()

	o, err := s.orders.Get(ctx, ev.OrderID)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("load order %s: %w", ev.OrderID, err)
	}

	t := domain.NewTicket(s.venue, o, s.loc, s.now())
	if err := s.pub.Publish(ctx, t); err != nil {
		span.RecordError(err)
		return false, err
	}
	s.log.Info("kitchen ticket printed", "order_id", o.ID, "slot_id", o.Logistics.SlotID, "items", o.ItemCount())
	return true, nil
}

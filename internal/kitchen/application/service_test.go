package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/Slot-Ordering-System/internal/kitchen/application"
	"github.com/dmehra2102/Slot-Ordering-System/internal/kitchen/domain"
	orderapp "github.com/dmehra2102/Slot-Ordering-System/internal/order/application"
	orderdomain "github.com/dmehra2102/Slot-Ordering-System/internal/order/domain"
	ordermemory "github.com/dmehra2102/Slot-Ordering-System/internal/order/infrastructure/memory"
)

type printer struct {
	tickets []domain.Ticket
	err     error
}

func (p *printer) Publish(_ context.Context, t domain.Ticket) error {
	if p.err != nil {
		return p.err
	}
	p.tickets = append(p.tickets, t)
	return nil
}

var now = time.Date(2025, 3, 14, 11, 0, 0, 0, time.UTC)

func seed(t *testing.T) *ordermemory.Repository {
	t.Helper()
	repo := ordermemory.NewRepository()
	o := orderdomain.NewOrder("order-abc123", orderdomain.OrderRequest{
		Customer:  orderdomain.Customer{DisplayName: "Ana"},
		Items:     []orderdomain.OrderItem{{ProductID: "burger", Name: "Burger", Qty: 2, UnitPriceCents: 1250}},
		Logistics: orderdomain.Logistics{SlotID: "13:15", OrderDate: "2025-03-14", Type: orderdomain.TypePickup},
	}, now)
	rec, err := orderapp.CreatedRecord(context.Background(), o)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), o, rec))
	return repo
}

func newService(repo application.OrderReader, p *printer) *application.Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return application.NewService(log, repo, p, "Masa", time.UTC).WithClock(func() time.Time { return now })
}

func TestHandleStatusChanged_PrintsPaidOrders(t *testing.T) {
	p := &printer{}
	svc := newService(seed(t), p)

	printed, err := svc.HandleStatusChanged(context.Background(), orderdomain.OrderStatusChanged{
		OrderID: "order-abc123", From: orderdomain.StatusPendingPayment, To: orderdomain.StatusPaid,
	})
	require.NoError(t, err)
	assert.True(t, printed)
	require.Len(t, p.tickets, 1)
	assert.Equal(t, "order-abc123", p.tickets[0].OrderID)
	assert.Equal(t, now, p.tickets[0].RenderedAt)
	assert.Contains(t, p.tickets[0].Text, "#ABC123")
	assert.Contains(t, p.tickets[0].Text, "2x Burger")
}

func TestHandleStatusChanged_IgnoresOtherTransitions(t *testing.T) {
	p := &printer{}
	svc := newService(seed(t), p)

	for _, to := range []orderdomain.OrderStatus{orderdomain.StatusCancelled, orderdomain.StatusPreparing, orderdomain.StatusReady} {
		printed, err := svc.HandleStatusChanged(context.Background(), orderdomain.OrderStatusChanged{OrderID: "order-abc123", To: to})
		require.NoError(t, err)
		assert.False(t, printed)
	}
	assert.Empty(t, p.tickets)
}

func TestHandleStatusChanged_FailuresLeaveOrderAlone(t *testing.T) {
	repo := seed(t)
	p := &printer{err: errors.New("broker down")}
	svc := newService(repo, p)

	_, err := svc.HandleStatusChanged(context.Background(), orderdomain.OrderStatusChanged{OrderID: "order-abc123", To: orderdomain.StatusPaid})
	require.Error(t, err)

	o, err := repo.Get(context.Background(), "order-abc123")
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusPendingPayment, o.Workflow.Status)

	_, err = svc.HandleStatusChanged(context.Background(), orderdomain.OrderStatusChanged{OrderID: "missing", To: orderdomain.StatusPaid})
	assert.ErrorIs(t, err, orderdomain.ErrOrderNotFound)
}

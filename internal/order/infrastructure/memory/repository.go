package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmehra2102/Slot-Ordering-System/internal/order/domain"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/outbox"
)

// Repository holds orders and their outbox records in process.
type Repository struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	outbox []outbox.Record
}

func NewRepository() *Repository {
	return &Repository{orders: make(map[string]domain.Order)}
}

func (r *Repository) Create(_ context.Context, o domain.Order, rec outbox.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.orders[o.ID] = clone(o)
	r.outbox = append(r.outbox, rec)
	return nil
}

func (r *Repository) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.NotFound(id)
	}
	return clone(o), nil
}

func (r *Repository) UpdateStatus(_ context.Context, o domain.Order, from domain.OrderStatus, rec outbox.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.orders[o.ID]
	if !ok {
		return domain.NotFound(o.ID)
	}
	if cur.Workflow.Status != from {
		return domain.ErrStatusChanged
	}
	cur.Workflow = o.Workflow
	cur.Payment = o.Payment
	cur.Metadata = o.Metadata
	r.orders[o.ID] = clone(cur)
	r.outbox = append(r.outbox, rec)
	return nil
}

func (r *Repository) ListPendingBefore(_ context.Context, t time.Time, limit int) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Order
	for _, o := range r.orders {
		if o.Workflow.Status == domain.StatusPendingPayment && o.Workflow.CreatedAt.Before(t) {
			out = append(out, clone(o))
		}
	}
	slices.SortFunc(out, func(a, b domain.Order) int { return a.Workflow.CreatedAt.Compare(b.Workflow.CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Outbox returns every record written so far.
func (r *Repository) Outbox() []outbox.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.outbox)
}

func clone(o domain.Order) domain.Order {
	c := o
	c.Items = slices.Clone(o.Items)
	for i := range c.Items {
		c.Items[i].Modifiers = slices.Clone(o.Items[i].Modifiers)
	}
	if o.Workflow.ReadyAt != nil {
		t := *o.Workflow.ReadyAt
		c.Workflow.ReadyAt = &t
	}
	if o.Workflow.DeliveredAt != nil {
		t := *o.Workflow.DeliveredAt
		c.Workflow.DeliveredAt = &t
	}
	return c
}

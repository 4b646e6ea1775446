package application

import (
	"context"
	"time"

	invdomain "github.com/dmehra2102/Slot-Ordering-System/internal/inventory/domain"
	"github.com/dmehra2102/Slot-Ordering-System/internal/order/domain"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/outbox"
)

type OrderRepository interface {
	// Create inserts a new order and its outbox record in one transaction.
	Create(ctx context.Context, o domain.Order, rec outbox.Record) error
	// Get returns domain.ErrOrderNotFound when no order has id.
	Get(ctx context.Context, id string) (domain.Order, error)
	// UpdateStatus persists o only if the stored status still equals from,
	// returning domain.ErrStatusChanged otherwise.
	UpdateStatus(ctx context.Context, o domain.Order, from domain.OrderStatus, rec outbox.Record) error
	// ListPendingBefore returns PENDING_PAYMENT orders created before t, oldest first.
	ListPendingBefore(ctx context.Context, t time.Time, limit int) ([]domain.Order, error)
}

// StockReleaser gives a reservation back to the ledger.
type StockReleaser interface {
	ReleaseStock(ctx context.Context, date, slot string, lines []invdomain.Line) error
}

// Lines maps order items onto the ledger lines their reservation used.
func Lines(items []domain.OrderItem) []invdomain.Line {
	out := make([]invdomain.Line, 0, len(items))
	for _, it := range items {
		out = append(out, invdomain.Line{ProductID: it.ProductID, Name: it.Name, Qty: it.Qty})
	}
	return out
}

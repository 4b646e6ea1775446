package application

import (
	"context"

	orderdomain "github.com/dmehra2102/Slot-Ordering-System/internal/order/domain"
	"github.com/dmehra2102/Slot-Ordering-System/internal/payment/domain"
)

type PaymentRepository interface {
	// Record stores p once per event id and reports whether this call inserted it.
	Record(ctx context.Context, p domain.Payment) (bool, error)
}

// Deduper claims event keys so duplicate deliveries are dropped early.
type Deduper interface {
	EventKey(scope, id string) string
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

type OrderConfirmer interface {
	ConfirmPayment(ctx context.Context, pc orderdomain.PaymentConfirmation) (orderdomain.Order, error)
}

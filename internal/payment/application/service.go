package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	orderdomain "github.com/dmehra2102/Slot-Ordering-System/internal/order/domain"
	"github.com/dmehra2102/Slot-Ordering-System/internal/payment/domain"
)

var ErrInvalidConfirmation = errors.New("payment confirmation needs event_id and order_id")

type Service struct {
	log    *slog.Logger
	repo   PaymentRepository
	idem   Deduper
	orders OrderConfirmer
}

func NewService(log *slog.Logger, repo PaymentRepository, idem Deduper, orders OrderConfirmer) *Service {
	return &Service{log: log, repo: repo, idem: idem, orders: orders}
}

// Confirm applies one gateway confirmation. Redeliveries of the same event
// id are dropped; a confirmation whose processing failed can be redelivered.
func (s *Service) Confirm(ctx context.Context, pc orderdomain.PaymentConfirmation) error {
	if pc.EventID == "" || pc.OrderID == "" {
		return ErrInvalidConfirmation
	}

	key := s.idem.EventKey("payment", pc.EventID)
	seen, err := s.idem.Seen(ctx, key)
	if err != nil {
		// the payments table still dedupes
		s.log.Error("idempotency check failed", "event_id", pc.EventID, "err", err)
	}
	if seen {
		s.log.Info("duplicate payment event skipped", "event_id", pc.EventID, "order_id", pc.OrderID)
		return nil
	}

	inserted, err := s.repo.Record(ctx, domain.Payment{
		EventID:     pc.EventID,
		OrderID:     pc.OrderID,
		SessionID:   pc.SessionID,
		AmountCents: pc.AmountCents,
		ReceivedAt:  time.Now().UTC(),
	})
	if err != nil {
		s.forget(ctx, key)
		return err
	}
	if !inserted {
		s.log.Info("payment event already recorded", "event_id", pc.EventID, "order_id", pc.OrderID)
	}

	// ConfirmPayment is idempotent, so a recorded but unapplied event is finished here.
	if _, err := s.orders.ConfirmPayment(ctx, pc); err != nil {
		if Retryable(err) {
			s.forget(ctx, key)
		}
		return err
	}
	s.log.Info("payment applied", "event_id", pc.EventID, "order_id", pc.OrderID, "amount", pc.AmountCents)
	return nil
}

// Retryable reports whether redelivering the confirmation that failed with
// err can succeed. Malformed events, unknown orders and orders past
// PENDING_PAYMENT never will.
func Retryable(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, ErrInvalidConfirmation),
		errors.Is(err, orderdomain.ErrInvalidTransition),
		errors.Is(err, orderdomain.ErrOrderNotFound):
		return false
	}
	return true
}

func (s *Service) forget(ctx context.Context, key string) {
	if err := s.idem.Forget(context.WithoutCancel(ctx), key); err != nil {
		s.log.Error("idempotency release failed", "key", key, "err", err)
	}
}

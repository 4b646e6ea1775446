package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/Slot-Ordering-System/internal/payment/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Record(ctx context.Context, p domain.Payment) (bool, error) {
	ct, err := r.pool.Exec(ctx, `INSERT INTO payments (event_id, order_id, session_id, amount_cents, received_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (event_id) DO NOTHING`,
		p.EventID, p.OrderID, p.SessionID, p.AmountCents, p.ReceivedAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

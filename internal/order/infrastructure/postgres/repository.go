package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/Slot-Ordering-System/internal/order/domain"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/outbox"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const orderColumns = `id, customer, items, slot_id, order_date, order_type, payment_status, total_cents, currency,
	session_id, status, source, payment_event_id, created_at, updated_at, ready_at, delivered_at`

func (r *Repository) Create(ctx context.Context, o domain.Order, rec outbox.Record) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		o.ID, o.Customer, o.Items, o.Logistics.SlotID, o.Logistics.OrderDate, o.Logistics.Type,
		o.Payment.Status, o.Payment.TotalCents, o.Payment.Currency, o.Payment.SessionID,
		o.Workflow.Status, o.Metadata.Source, o.Metadata.PaymentEventID,
		o.Workflow.CreatedAt, o.Workflow.UpdatedAt, o.Workflow.ReadyAt, o.Workflow.DeliveredAt)
	if err != nil {
		return err
	}
	if err := insertOutbox(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.NotFound(id)
	}
	return o, err
}

func (r *Repository) UpdateStatus(ctx context.Context, o domain.Order, from domain.OrderStatus, rec outbox.Record) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `
		UPDATE orders
		SET status=$3, payment_status=$4, payment_event_id=$5, updated_at=$6, ready_at=$7, delivered_at=$8
		WHERE id=$1 AND status=$2`,
		o.ID, from, o.Workflow.Status, o.Payment.Status, o.Metadata.PaymentEventID,
		o.Workflow.UpdatedAt, o.Workflow.ReadyAt, o.Workflow.DeliveredAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrStatusChanged
	}
	if err := insertOutbox(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) ListPendingBefore(ctx context.Context, t time.Time, limit int) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE status=$1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3`, domain.StatusPendingPayment, t, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.Customer, &o.Items, &o.Logistics.SlotID, &o.Logistics.OrderDate, &o.Logistics.Type,
		&o.Payment.Status, &o.Payment.TotalCents, &o.Payment.Currency, &o.Payment.SessionID,
		&o.Workflow.Status, &o.Metadata.Source, &o.Metadata.PaymentEventID,
		&o.Workflow.CreatedAt, &o.Workflow.UpdatedAt, &o.Workflow.ReadyAt, &o.Workflow.DeliveredAt)
	return o, err
}

func insertOutbox(ctx context.Context, tx pgx.Tx, rec outbox.Record) error {
	headers := rec.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	_, err := tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		rec.AggregateType, rec.AggregateID, rec.Type, rec.Payload, headers, rec.Traceparent)
	return err
}

// OutboxStore leases pending outbox rows to a relay.
type OutboxStore struct {
	log        *slog.Logger
	pool       *pgxpool.Pool
	maxRetries int
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool, maxRetries: 5}
}

// LockBatch claims pending rows, and rows whose lease ran out because the
// relay holding them died.
func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, headers, traceparent, created_at, retry_count
		FROM outbox
		WHERE status = 'pending' OR (status = 'in_progress' AND lease_until < now())
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, batchSize)
	if err != nil {
		return nil, err
	}

	var events []outbox.Event
	for rows.Next() {
		var event outbox.Event
		if err := rows.Scan(&event.ID, &event.AggregateType, &event.AggregateID, &event.Type, &event.Payload,
			&event.Headers, &event.Traceparent, &event.CreatedAt, &event.RetryCount); err != nil {
			rows.Close()
			return nil, err
		}
		event.RelayID = relayID
		event.Status = outbox.StatusInProgress
		events = append(events, event)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}

	_, err = tx.Exec(ctx, `UPDATE outbox SET status='in_progress', relay_id=$1, lease_until=now() + $2::interval WHERE id = ANY($3)`,
		relayID, lease.String(), ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	ct, err := s.pool.Exec(ctx, `UPDATE outbox SET status='sent', lease_until=NULL WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("no rows updated")
	}
	return nil
}

// MarkFailed puts the row back in the queue until it has failed maxRetries
// times, then parks it as failed.
func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1,
		    last_error = $2,
		    lease_until = NULL,
		    status = CASE WHEN retry_count + 1 >= $3 THEN 'failed' ELSE 'pending' END
		WHERE id = $1`, id, errMsg, s.maxRetries)
	return err
}

package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/Slot-Ordering-System/internal/inventory/domain"
)

// LedgerStore keeps one operation_ledgers row per date. Commits are guarded
// by the version column, so concurrent writers from any process serialise on
// the row without holding locks across the read.
type LedgerStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewLedgerStore(log *slog.Logger, pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{log: log, pool: pool}
}

func (s *LedgerStore) Load(ctx context.Context, date string) (domain.Ledger, int64, error) {
	var l domain.Ledger
	err := s.pool.QueryRow(ctx, `
		SELECT date_id, products, slot_occupancy, version, is_closed, cutoff_time, created_at, updated_at, archived_at
		FROM operation_ledgers
		WHERE date_id = $1`, date).
		Scan(&l.Date, &l.Products, &l.SlotOccupancy, &l.Version, &l.IsClosed, &l.CutoffTime, &l.CreatedAt, &l.UpdatedAt, &l.ArchivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ledger{}, 0, domain.ErrLedgerNotFound
	}
	if err != nil {
		return domain.Ledger{}, 0, err
	}
	if l.Products == nil {
		l.Products = map[string]domain.ProductStock{}
	}
	if l.SlotOccupancy == nil {
		l.SlotOccupancy = map[string]int{}
	}
	return l, l.Version, nil
}

func (s *LedgerStore) CommitIfUnchanged(ctx context.Context, date string, version int64, l domain.Ledger) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE operation_ledgers
		SET products = $3, slot_occupancy = $4, version = $5, is_closed = $6, cutoff_time = $7, updated_at = $8, archived_at = $9
		WHERE date_id = $1 AND version = $2`,
		date, version, l.Products, l.SlotOccupancy, l.Version, l.IsClosed, l.CutoffTime, l.UpdatedAt.UTC(), l.ArchivedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *LedgerStore) Create(ctx context.Context, l domain.Ledger) error {
	ct, err := s.pool.Exec(ctx, `
		INSERT INTO operation_ledgers (date_id, products, slot_occupancy, version, is_closed, cutoff_time, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (date_id) DO NOTHING`,
		l.Date, l.Products, l.SlotOccupancy, l.Version, l.IsClosed, l.CutoffTime, l.CreatedAt.UTC(), l.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrLedgerExists
	}
	return nil
}

func (s *LedgerStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// SettingsRepository reads the singleton settings row on every call.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

var ErrSettingsNotFound = errors.New("settings not configured")

func (r *SettingsRepository) Get(ctx context.Context) (domain.Settings, error) {
	var st domain.Settings
	err := r.pool.QueryRow(ctx, `
		SELECT max_orders_per_slot, cutoff_time, slot_interval_minutes, service_start, service_end, max_booking_days
		FROM settings
		WHERE id = 'global'`).
		Scan(&st.MaxOrdersPerSlot, &st.CutoffTime, &st.SlotIntervalMinutes, &st.ServiceHours.Start, &st.ServiceHours.End, &st.MaxBookingDays)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Settings{}, ErrSettingsNotFound
	}
	return st, err
}

// Save upserts the settings row. Used by seeding and tests; the core never writes settings.
func (r *SettingsRepository) Save(ctx context.Context, st domain.Settings) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO settings (id, max_orders_per_slot, cutoff_time, slot_interval_minutes, service_start, service_end, max_booking_days, updated_at)
		VALUES ('global',$1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET max_orders_per_slot=$1, cutoff_time=$2, slot_interval_minutes=$3,
			service_start=$4, service_end=$5, max_booking_days=$6, updated_at=$7`,
		st.MaxOrdersPerSlot, st.CutoffTime, st.SlotIntervalMinutes, st.ServiceHours.Start, st.ServiceHours.End, st.MaxBookingDays, time.Now().UTC())
	return err
}

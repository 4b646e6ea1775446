package application

import (
	"context"

	"github.com/dmehra2102/Slot-Ordering-System/internal/inventory/domain"
)

// LedgerStore persists one ledger per date with compare-and-swap commits.
type LedgerStore interface {
	// Load returns the ledger and the version token it was read at.
	Load(ctx context.Context, date string) (domain.Ledger, int64, error)
	// CommitIfUnchanged writes l only if the stored version still equals
	// version. It returns domain.ErrConflict otherwise.
	CommitIfUnchanged(ctx context.Context, date string, version int64, l domain.Ledger) error
	// Create inserts a new ledger, failing with domain.ErrLedgerExists.
	Create(ctx context.Context, l domain.Ledger) error
}

// SettingsProvider returns the current venue settings. Implementations must
// not cache across calls.
type SettingsProvider interface {
	Get(ctx context.Context) (domain.Settings, error)
}

package memory

import (
	"context"
	"sync"

	"github.com/dmehra2102/Slot-Ordering-System/internal/inventory/domain"
)

// LedgerStore keeps ledgers in process. The mutex only guards the map; the
// compare-and-swap on version is what serialises reservations, exactly as
// with the Postgres store.
type LedgerStore struct {
	mu      sync.RWMutex
	ledgers map[string]domain.Ledger
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{ledgers: make(map[string]domain.Ledger)}
}

func (s *LedgerStore) Load(_ context.Context, date string) (domain.Ledger, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.ledgers[date]
	if !ok {
		return domain.Ledger{}, 0, domain.ErrLedgerNotFound
	}
	return l.Clone(), l.Version, nil
}

func (s *LedgerStore) CommitIfUnchanged(_ context.Context, date string, version int64, l domain.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.ledgers[date]
	if !ok {
		return domain.ErrLedgerNotFound
	}
	if current.Version != version {
		return domain.ErrConflict
	}
	s.ledgers[date] = l.Clone()
	return nil
}

func (s *LedgerStore) Create(_ context.Context, l domain.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ledgers[l.Date]; ok {
		return domain.ErrLedgerExists
	}
	s.ledgers[l.Date] = l.Clone()
	return nil
}

func (s *LedgerStore) Ping(context.Context) error { return nil }

// SettingsProvider serves settings held in memory.
type SettingsProvider struct {
	mu       sync.RWMutex
	settings domain.Settings
}

func NewSettingsProvider(s domain.Settings) *SettingsProvider {
	return &SettingsProvider{settings: s}
}

func (p *SettingsProvider) Get(context.Context) (domain.Settings, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings, nil
}

func (p *SettingsProvider) Set(s domain.Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = s
}

func (p *SettingsProvider) Save(_ context.Context, s domain.Settings) error {
	p.Set(s)
	return nil
}

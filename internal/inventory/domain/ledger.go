package domain

import "time"

// ProductStock is the per-day snapshot of one product in a ledger.
type ProductStock struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price"`
	AvailableStock int    `json:"available_stock"`
	IsAvailable    bool   `json:"is_available"`
}

// Ledger is the operation record for one calendar date. It holds the stock
// left for every product on the day's menu and how many orders hold each slot.
type Ledger struct {
	Date          string                  `json:"date_id"`
	Products      map[string]ProductStock `json:"products"`
	SlotOccupancy map[string]int          `json:"slot_occupancy"`
	Version       int64                   `json:"version"`
	IsClosed      bool                    `json:"is_closed"`
	CutoffTime    string                  `json:"cutoff_time,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
	ArchivedAt    *time.Time              `json:"archived_at,omitempty"`
}

func NewLedger(date string, products []ProductStock, cutoff string, now time.Time) Ledger {
	l := Ledger{
		Date:          date,
		Products:      make(map[string]ProductStock, len(products)),
		SlotOccupancy: map[string]int{},
		CutoffTime:    cutoff,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, p := range products {
		l.Products[p.ProductID] = p
	}
	return l
}

// Clone returns a deep copy so a failed attempt never leaks mutations into
// the snapshot it was evaluated against.
func (l Ledger) Clone() Ledger {
	c := l
	c.Products = make(map[string]ProductStock, len(l.Products))
	for k, v := range l.Products {
		c.Products[k] = v
	}
	c.SlotOccupancy = make(map[string]int, len(l.SlotOccupancy))
	for k, v := range l.SlotOccupancy {
		c.SlotOccupancy[k] = v
	}
	if l.ArchivedAt != nil {
		t := *l.ArchivedAt
		c.ArchivedAt = &t
	}
	return c
}

func (l Ledger) Occupancy(slot string) int {
	return l.SlotOccupancy[slot]
}

// Reserve applies a reservation that has already passed Evaluate. It takes
// stock for every line and one unit of the slot, and bumps the version.
// Stock never drops below zero.
func (l *Ledger) Reserve(slot string, lines []Line, now time.Time) {
	for id, qty := range aggregate(lines) {
		p := l.Products[id]
		p.AvailableStock = max(0, p.AvailableStock-qty)
		l.Products[id] = p
	}
	if l.SlotOccupancy == nil {
		l.SlotOccupancy = map[string]int{}
	}
	l.SlotOccupancy[slot]++
	l.touch(now)
}

// Release credits stock back and frees one slot unit, never below zero.
// Products missing from the ledger are skipped.
func (l *Ledger) Release(slot string, lines []Line, now time.Time) {
	for id, qty := range aggregate(lines) {
		p, ok := l.Products[id]
		if !ok {
			continue
		}
		p.AvailableStock += qty
		l.Products[id] = p
	}
	if l.SlotOccupancy == nil {
		l.SlotOccupancy = map[string]int{}
	}
	l.SlotOccupancy[slot] = max(0, l.SlotOccupancy[slot]-1)
	l.touch(now)
}

// Close marks the day closed and archived. Closing twice keeps the first
// archive timestamp.
func (l *Ledger) Close(now time.Time) {
	l.IsClosed = true
	if l.ArchivedAt == nil {
		t := now
		l.ArchivedAt = &t
	}
	l.touch(now)
}

func (l *Ledger) touch(now time.Time) {
	l.Version++
	l.UpdatedAt = now
}

package domain

import (
	"fmt"
	"regexp"
	"time"
)

const DateLayout = "2006-01-02"

// CodeInvalidItems rejects requests with no lines or a quantity outside
// 1..MaxLineQty.
const CodeInvalidItems Code = "INVALID_ITEMS"

var ErrInvalidItems = &StockError{Code: CodeInvalidItems}

var (
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	slotRe = regexp.MustCompile(`^([0-1][0-9]|2[0-3]):[0-5][0-9]$`)
)

func ValidDate(date string) bool {
	if !dateRe.MatchString(date) {
		return false
	}
	_, err := time.Parse(DateLayout, date)
	return err == nil
}

func ValidSlot(slot string) bool {
	return slotRe.MatchString(slot)
}

// ValidateRequest runs the structural checks that do not need a ledger.
func ValidateRequest(date, slot string, lines []Line) *StockError {
	if !ValidDate(date) {
		return &StockError{Code: CodeInvalidDate, Date: date,
			Message: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", date)}
	}
	if !ValidSlot(slot) {
		return &StockError{Code: CodeInvalidSlotFormat, Date: date, Slot: slot,
			Message: fmt.Sprintf("invalid slot %q, expected HH:MM", slot)}
	}
	if len(lines) == 0 {
		return &StockError{Code: CodeInvalidItems, Date: date, Slot: slot,
			Message: "order must contain at least one item"}
	}
	for _, ln := range lines {
		if ln.Qty <= 0 {
			return &StockError{Code: CodeInvalidItems, Date: date, Slot: slot, ProductID: ln.ProductID, Requested: ln.Qty,
				Message: fmt.Sprintf("quantity for %s must be greater than 0", ln.ProductID)}
		}
		if ln.Qty > MaxLineQty {
			return &StockError{Code: CodeInvalidItems, Date: date, Slot: slot, ProductID: ln.ProductID, Requested: ln.Qty,
				Message: fmt.Sprintf("quantity for %s cannot exceed %d", ln.ProductID, MaxLineQty)}
		}
	}
	return nil
}

// Evaluation is the outcome of checking a request against one snapshot.
type Evaluation struct {
	Violations []*StockError
	Warnings   []string
}

func (e Evaluation) OK() bool { return len(e.Violations) == 0 }

// First returns the violation a reservation fails with, or nil.
func (e Evaluation) First() *StockError {
	if len(e.Violations) == 0 {
		return nil
	}
	return e.Violations[0]
}

// Evaluate checks a request against a ledger and settings snapshot. Closed
// days and passed cutoffs end the evaluation; slot capacity and per-item
// problems accumulate so a caller sees all of them at once. now must already
// be in the venue's timezone.
func Evaluate(l Ledger, s Settings, slot string, lines []Line, now time.Time) Evaluation {
	var ev Evaluation

	if l.IsClosed {
		ev.Violations = append(ev.Violations, &StockError{Code: CodeRestaurantClosed, Date: l.Date, Slot: slot,
			Message: fmt.Sprintf("restaurant is closed on %s", l.Date)})
		return ev
	}

	cutoff := l.CutoffTime
	if cutoff == "" {
		cutoff = s.CutoffTime
	}
	if cutoff != "" && l.Date == now.Format(DateLayout) && now.Format("15:04") > cutoff {
		ev.Violations = append(ev.Violations, &StockError{Code: CodeCutoffPassed, Date: l.Date, Slot: slot,
			Message: fmt.Sprintf("ordering cutoff %s has passed for today", cutoff)})
		return ev
	}

	occ := l.Occupancy(slot)
	switch {
	case occ >= s.MaxOrdersPerSlot:
		ev.Violations = append(ev.Violations, &StockError{Code: CodeSlotFull, Date: l.Date, Slot: slot, Current: occ, Max: s.MaxOrdersPerSlot,
			Message: fmt.Sprintf("slot %s is full (%d/%d)", slot, occ, s.MaxOrdersPerSlot)})
	case occ*5 >= s.MaxOrdersPerSlot*4:
		ev.Warnings = append(ev.Warnings, fmt.Sprintf("slot %s is almost full (%d/%d)", slot, occ, s.MaxOrdersPerSlot))
	}

	totals := aggregate(lines)
	seen := make(map[string]bool, len(totals))
	for _, ln := range lines {
		if seen[ln.ProductID] {
			continue
		}
		seen[ln.ProductID] = true
		want := totals[ln.ProductID]
		name := ln.Name
		if name == "" {
			name = ln.ProductID
		}

		p, ok := l.Products[ln.ProductID]
		switch {
		case !ok:
			ev.Violations = append(ev.Violations, &StockError{Code: CodeOutOfStock, Date: l.Date, Slot: slot, ProductID: ln.ProductID, Requested: want,
				Message: fmt.Sprintf("%s is not on the menu for %s", name, l.Date)})
		case !p.IsAvailable:
			ev.Violations = append(ev.Violations, &StockError{Code: CodeOutOfStock, Date: l.Date, Slot: slot, ProductID: ln.ProductID, Requested: want, Available: p.AvailableStock,
				Message: fmt.Sprintf("%s is not available", name)})
		case p.AvailableStock < want:
			ev.Violations = append(ev.Violations, &StockError{Code: CodeOutOfStock, Date: l.Date, Slot: slot, ProductID: ln.ProductID, Requested: want, Available: p.AvailableStock,
				Message: fmt.Sprintf("not enough stock for %s: requested %d, available %d", name, want, p.AvailableStock)})
		}
	}
	return ev
}

// Violation is the wire form of a failed constraint in an availability answer.
type Violation struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	ProductID string `json:"product_id,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Available int    `json:"available,omitempty"`
}

func ToViolation(e *StockError) Violation {
	return Violation{
		Code:      e.Code,
		Message:   e.Message,
		ProductID: e.ProductID,
		Requested: e.Requested,
		Available: e.Available,
	}
}

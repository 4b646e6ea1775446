package domain

import (
	"fmt"

	invdomain "github.com/dmehra2102/Slot-Ordering-System/internal/inventory/domain"
)

// OrderRequest is what checkout submits to create an order.
type OrderRequest struct {
	Customer  Customer    `json:"customer"`
	Items     []OrderItem `json:"items"`
	Logistics Logistics   `json:"logistics"`
	Currency  string      `json:"currency,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Source    Source      `json:"source,omitempty"`
}

// MaxUnitPriceCents bounds a line price so qty * price stays far from
// int64 overflow.
const MaxUnitPriceCents int64 = 10_000_000

// Validate checks the request shape. Stock, slot capacity and calendar rules
// are left to the reservation itself.
func (r OrderRequest) Validate() error {
	ve := &ValidationError{}

	if len(r.Items) == 0 {
		ve.add("items", "must contain at least one item")
	}
	for i, it := range r.Items {
		f := fmt.Sprintf("items[%d]", i)
		if it.ProductID == "" {
			ve.add(f+".product_id", "is required")
		}
		switch {
		case it.Qty <= 0:
			ve.add(f+".qty", "must be greater than 0")
		case it.Qty > invdomain.MaxLineQty:
			ve.add(f+".qty", "cannot exceed %d", invdomain.MaxLineQty)
		}
		switch {
		case it.UnitPriceCents < 0:
			ve.add(f+".unit_price", "cannot be negative")
		case it.UnitPriceCents > MaxUnitPriceCents:
			ve.add(f+".unit_price", "cannot exceed %d", MaxUnitPriceCents)
		}
		for j, m := range it.Modifiers {
			if err := m.Validate(); err != nil {
				ve.add(fmt.Sprintf("%s.modifiers[%d]", f, j), "%v", err)
			}
		}
	}

	switch {
	case r.Logistics.OrderDate == "":
		ve.add("logistics.order_date", "is required")
	case !invdomain.ValidDate(r.Logistics.OrderDate):
		ve.add("logistics.order_date", "must be a YYYY-MM-DD calendar date")
	}
	switch {
	case r.Logistics.SlotID == "":
		ve.add("logistics.slot_id", "is required")
	case !invdomain.ValidSlot(r.Logistics.SlotID):
		ve.add("logistics.slot_id", "must be HH:MM")
	}
	if !r.Logistics.Type.Valid() {
		ve.add("logistics.type", "must be PICKUP or DINE_IN")
	}
	if r.Source != "" && r.Source != SourcePWA && r.Source != SourceDashboard {
		ve.add("source", "must be PWA or DASHBOARD")
	}

	if len(ve.Fields) > 0 {
		return ve
	}
	return nil
}

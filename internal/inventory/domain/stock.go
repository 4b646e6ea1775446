package domain

import "math"

// Line is one product request inside a reservation.
type Line struct {
	ProductID string
	Name      string
	Qty       int
}

// MaxLineQty is the largest quantity a single line may ask for.
const MaxLineQty = 999

// aggregate sums quantities per product so a product listed twice in the
// same order is checked and decremented against its combined quantity.
// Sums saturate at math.MaxInt instead of wrapping.
func aggregate(lines []Line) map[string]int {
	out := make(map[string]int, len(lines))
	for _, ln := range lines {
		cur := out[ln.ProductID]
		if ln.Qty > 0 && cur > math.MaxInt-ln.Qty {
			out[ln.ProductID] = math.MaxInt
			continue
		}
		out[ln.ProductID] = cur + ln.Qty
	}
	return out
}

// ServiceHours is the opening window of the venue in HH:MM.
type ServiceHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Settings are the venue constants the coordinator evaluates against.
type Settings struct {
	MaxOrdersPerSlot    int          `json:"max_orders_per_slot"`
	CutoffTime          string       `json:"cutoff_time"`
	SlotIntervalMinutes int          `json:"slot_interval_minutes"`
	ServiceHours        ServiceHours `json:"service_hours"`
	MaxBookingDays      int          `json:"max_booking_days"`
}

// Availability is the structured answer of an availability check.
type Availability struct {
	Available bool        `json:"available"`
	Errors    []Violation `json:"errors"`
	Warnings  []string    `json:"warnings,omitempty"`
}

package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	orderdomain "github.com/dmehra2102/Slot-Ordering-System/internal/order/domain"
)

const TicketWidth = 48

var (
	thick = strings.Repeat("=", TicketWidth)
	thin  = strings.Repeat("-", TicketWidth)
)

// Ticket is the printable kitchen copy of a paid order.
type Ticket struct {
	OrderID    string                `json:"order_id"`
	OrderType  orderdomain.OrderType `json:"order_type"`
	SlotID     string                `json:"slot_id"`
	OrderDate  string                `json:"order_date"`
	Text       string                `json:"text"`
	RenderedAt time.Time             `json:"rendered_at"`
}

// NewTicket renders o for the kitchen printer. Times are shown in loc.
func NewTicket(venue string, o orderdomain.Order, loc *time.Location, now time.Time) Ticket {
	return Ticket{
		OrderID:    o.ID,
		OrderType:  o.Logistics.Type,
		SlotID:     o.Logistics.SlotID,
		OrderDate:  o.Logistics.OrderDate,
		Text:       Render(venue, o, loc),
		RenderedAt: now,
	}
}

// Render lays o out as fixed-width text, TicketWidth columns wide.
func Render(venue string, o orderdomain.Order, loc *time.Location) string {
	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}

	line(thick)
	line(center(strings.ToUpper(venue)))
	line(center("KITCHEN TICKET"))
	line(thick)
	line("")
	line(pair("ORDER:", "#"+ShortID(o.ID)))
	line(pair("PLACED:", o.Workflow.CreatedAt.In(loc).Format("02/01/2006 15:04")))
	line(pair("TYPE:", string(o.Logistics.Type)))
	line("")
	line(thin)
	line("CUSTOMER:")
	name := o.Customer.DisplayName
	if name == "" {
		name = "No name"
	}
	line(clip("  " + name))
	if o.Customer.Phone != "" {
		line(clip("  Tel: " + o.Customer.Phone))
	}
	line(thin)
	line("")
	line(thick)
	line(center("*** PICKUP TIME ***"))
	line(center(o.Logistics.SlotID))
	line(center("Date: " + o.Logistics.OrderDate))
	line(thick)
	line("")
	line(center("*** ITEMS ***"))
	line("")
	for i, it := range o.Items {
		line(clip(fmt.Sprintf("%dx %s", it.Qty, it.Name)))
		for _, m := range it.Modifiers {
			line(clip("   + " + m.Label()))
		}
		if i < len(o.Items)-1 {
			line("")
		}
	}
	line("")
	line(thin)
	line(pair("TOTAL ITEMS:", fmt.Sprint(o.ItemCount())))
	line(thick)
	return b.String()
}

// ShortID is the last six characters of id, upper-cased.
func ShortID(id string) string {
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	return strings.ToUpper(id)
}

func center(s string) string {
	s = clip(s)
	pad := (TicketWidth - width(s)) / 2
	return strings.Repeat(" ", pad) + s
}

func pair(left, right string) string {
	gap := max(1, TicketWidth-width(left)-width(right))
	return clip(left + strings.Repeat(" ", gap) + right)
}

// clip cuts s to TicketWidth runes so accented names stay intact.
func clip(s string) string {
	if width(s) <= TicketWidth {
		return s
	}
	return string([]rune(s)[:TicketWidth])
}

func width(s string) int { return utf8.RuneCountInString(s) }

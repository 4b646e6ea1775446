package domain

import (
	"slices"
	"time"
)

type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	StatusPaid           OrderStatus = "PAID"
	StatusPreparing      OrderStatus = "PREPARING"
	StatusReady          OrderStatus = "READY"
	StatusDelivered      OrderStatus = "DELIVERED"
	StatusCancelled      OrderStatus = "CANCELLED"
)

var AllStatuses = []OrderStatus{
	StatusPendingPayment, StatusPaid, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled,
}

var transitions = map[OrderStatus][]OrderStatus{
	StatusPendingPayment: {StatusPaid, StatusCancelled},
	StatusPaid:           {StatusPreparing},
	StatusPreparing:      {StatusReady},
	StatusReady:          {StatusDelivered},
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
func CanTransition(from, to OrderStatus) bool {
	return slices.Contains(transitions[from], to)
}

func (s OrderStatus) Valid() bool {
	return slices.Contains(AllStatuses, s)
}

// rank orders the happy path so "already at or past" checks stay cheap.
func (s OrderStatus) rank() int {
	switch s {
	case StatusPendingPayment:
		return 0
	case StatusPaid:
		return 1
	case StatusPreparing:
		return 2
	case StatusReady:
		return 3
	case StatusDelivered:
		return 4
	}
	return -1
}

// ReachedPaid is true once an order has been paid for, whatever the kitchen did since.
func (s OrderStatus) ReachedPaid() bool {
	return s.rank() >= StatusPaid.rank()
}

type OrderType string

const (
	TypePickup OrderType = "PICKUP"
	TypeDineIn OrderType = "DINE_IN"
)

func (t OrderType) Valid() bool { return t == TypePickup || t == TypeDineIn }

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

type Source string

const (
	SourcePWA       Source = "PWA"
	SourceDashboard Source = "DASHBOARD"
)

type Customer struct {
	UID         string `json:"uid"`
	Phone       string `json:"phone"`
	DisplayName string `json:"display_name"`
}

type Logistics struct {
	SlotID    string    `json:"slot_id"`
	OrderDate string    `json:"order_date"`
	Type      OrderType `json:"type"`
}

type Payment struct {
	Status     PaymentStatus `json:"status"`
	TotalCents int64         `json:"total_amount"`
	Currency   string        `json:"currency"`
	SessionID  string        `json:"session_id,omitempty"`
}

type Workflow struct {
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	ReadyAt     *time.Time  `json:"ready_at"`
	DeliveredAt *time.Time  `json:"delivered_at"`
}

type Metadata struct {
	Source         Source `json:"source"`
	PaymentEventID string `json:"payment_event_id,omitempty"`
}

type Order struct {
	ID        string      `json:"order_id"`
	Customer  Customer    `json:"customer"`
	Items     []OrderItem `json:"items"`
	Logistics Logistics   `json:"logistics"`
	Payment   Payment     `json:"payment"`
	Workflow  Workflow    `json:"workflow"`
	Metadata  Metadata    `json:"metadata"`
}

type OrderItem struct {
	ProductID      string     `json:"product_id"`
	Name           string     `json:"name"`
	Qty            int        `json:"qty"`
	UnitPriceCents int64      `json:"unit_price"`
	SubtotalCents  int64      `json:"subtotal"`
	Modifiers      []Modifier `json:"modifiers"`
}

const DefaultCurrency = "EUR"

// NewOrder builds a PENDING_PAYMENT order from a validated request. Subtotals
// and the total are always recomputed server side.
func NewOrder(id string, req OrderRequest, now time.Time) Order {
	items := make([]OrderItem, 0, len(req.Items))
	var total int64
	for _, it := range req.Items {
		it.SubtotalCents = int64(it.Qty) * it.UnitPriceCents
		if it.Modifiers == nil {
			it.Modifiers = []Modifier{}
		}
		total += it.SubtotalCents
		items = append(items, it)
	}
	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	source := req.Source
	if source == "" {
		source = SourcePWA
	}
	return Order{
		ID:        id,
		Customer:  req.Customer,
		Items:     items,
		Logistics: req.Logistics,
		Payment: Payment{
			Status:     PaymentPending,
			TotalCents: total,
			Currency:   currency,
			SessionID:  req.SessionID,
		},
		Workflow: Workflow{
			Status:    StatusPendingPayment,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Metadata: Metadata{Source: source},
	}
}

// Transition moves the order to status to, stamping the milestone
// timestamps. The order is left untouched when the move is not allowed.
func (o *Order) Transition(to OrderStatus, now time.Time) error {
	from := o.Workflow.Status
	if !CanTransition(from, to) {
		return InvalidTransition(o.ID, from, to)
	}
	o.Workflow.Status = to
	o.Workflow.UpdatedAt = now
	switch to {
	case StatusReady:
		t := now
		o.Workflow.ReadyAt = &t
	case StatusDelivered:
		t := now
		o.Workflow.DeliveredAt = &t
	case StatusPaid:
		o.Payment.Status = PaymentPaid
	}
	return nil
}

// ItemCount is the number of units across every line.
func (o Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Qty
	}
	return n
}

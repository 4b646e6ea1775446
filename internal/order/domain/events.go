package domain

import "time"

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type OrderCreated struct {
	OrderID    string      `json:"order_id"`
	Customer   Customer    `json:"customer"`
	Items      []OrderItem `json:"items"`
	SlotID     string      `json:"slot_id"`
	OrderDate  string      `json:"order_date"`
	TotalCents int64       `json:"total_amount"`
	CreatedAt  time.Time   `json:"created_at"`
}

type OrderStatusChanged struct {
	OrderID   string      `json:"order_id"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	OrderType OrderType   `json:"order_type"`
	ChangedAt time.Time   `json:"changed_at"`
}

func NewOrderCreated(o Order) OrderCreated {
	return OrderCreated{
		OrderID:    o.ID,
		Customer:   o.Customer,
		Items:      o.Items,
		SlotID:     o.Logistics.SlotID,
		OrderDate:  o.Logistics.OrderDate,
		TotalCents: o.Payment.TotalCents,
		CreatedAt:  o.Workflow.CreatedAt,
	}
}

// PaymentConfirmation is the inbound signal that a customer paid for an order.
type PaymentConfirmation struct {
	EventID     string `json:"event_id"`
	OrderID     string `json:"order_id"`
	SessionID   string `json:"session_id,omitempty"`
	AmountCents int64  `json:"amount"`
}

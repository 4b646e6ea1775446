package domain

import "time"

// Payment is the audit row of one gateway confirmation. EventID is the
// gateway's id and is unique.
type Payment struct {
	EventID     string
	OrderID     string
	SessionID   string
	AmountCents int64
	ReceivedAt  time.Time
}

package domain

import "time"

// Refund is the append-only bookkeeping record of a reversal. It is the
// audit anchor for later reconciliation; creating one never talks to the
// gateway.
type Refund struct {
	ID        string
	OrderID   string
	UserID    string
	CreatedAt time.Time
}

type RefundItem struct {
	ID            string
	RefundID      string
	OrderItemID   string
	Quantity      int
	AmountInCents int64
}

package domain

import "time"

type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "draft"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is the buyer-facing aggregate. While in draft it is the buyer's
// cart; it becomes paid only through checkout and is never deleted.
type Order struct {
	ID string
	// UserID is empty for box-office and system orders.
	UserID    string
	Status    OrderStatus
	PaidAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem pins a specific ticket pricing row so historical totals stay
// reproducible after later price forks.
type OrderItem struct {
	ID              string
	OrderID         string
	TicketTypeID    string
	TicketPricingID string
	Quantity        int
	CreatedAt       time.Time
}

// DisplayOrderItem is an order item joined with its pinned price for
// display and total calculation. Totals are always recomputed from these,
// never cached.
type DisplayOrderItem struct {
	OrderItem
	TicketTypeName   string
	UnitPriceInCents int64
}

func (d DisplayOrderItem) LineTotalInCents() int64 {
	return int64(d.Quantity) * d.UnitPriceInCents
}

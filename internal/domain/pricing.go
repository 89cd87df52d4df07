package domain

import "time"

type PricingStatus string

const (
	PricingStatusPublished PricingStatus = "published"
	PricingStatusDefault   PricingStatus = "default"
	PricingStatusDeleted   PricingStatus = "deleted"
)

// Active reports whether rows with this status participate in pricing
// resolution and in the non-overlap invariant.
func (s PricingStatus) Active() bool {
	return s == PricingStatusPublished || s == PricingStatusDefault
}

// TicketType is a sellable item type. Pricing windows must fall inside its
// own [StartDate, EndDate) bounds.
type TicketType struct {
	ID        string
	EventID   string
	Name      string
	Capacity  int
	StartDate time.Time
	EndDate   time.Time
	CreatedAt time.Time
}

// TicketPricing is one immutable priced validity window for a ticket type.
// Once any order item references a row its price never changes in place;
// corrections create a new row chained backwards via PreviousPricingID.
type TicketPricing struct {
	ID              string
	TicketTypeID    string
	Name            string
	Status          PricingStatus
	PriceInCents    int64
	StartDate       time.Time
	EndDate         time.Time
	IsBoxOfficeOnly bool
	// PreviousPricingID points at the row this one superseded, empty for
	// rows that superseded nothing. The chain is walkable purely from the
	// store.
	PreviousPricingID string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PricingAttributes carries a partial update; nil fields keep the current
// value.
type PricingAttributes struct {
	Name            *string
	PriceInCents    *int64
	StartDate       *time.Time
	EndDate         *time.Time
	IsBoxOfficeOnly *bool
}

// HasChanges reports whether applying attr would change p at all.
func (p TicketPricing) HasChanges(attr PricingAttributes) bool {
	if attr.Name != nil && *attr.Name != p.Name {
		return true
	}
	if attr.PriceInCents != nil && *attr.PriceInCents != p.PriceInCents {
		return true
	}
	if attr.StartDate != nil && !attr.StartDate.Equal(p.StartDate) {
		return true
	}
	if attr.EndDate != nil && !attr.EndDate.Equal(p.EndDate) {
		return true
	}
	if attr.IsBoxOfficeOnly != nil && *attr.IsBoxOfficeOnly != p.IsBoxOfficeOnly {
		return true
	}
	return false
}

// PriceChanging reports whether attr would change the price component.
func (p TicketPricing) PriceChanging(attr PricingAttributes) bool {
	return attr.PriceInCents != nil && *attr.PriceInCents != p.PriceInCents
}

// Apply returns a copy of p with attr merged in.
func (p TicketPricing) Apply(attr PricingAttributes) TicketPricing {
	out := p
	if attr.Name != nil {
		out.Name = *attr.Name
	}
	if attr.PriceInCents != nil {
		out.PriceInCents = *attr.PriceInCents
	}
	if attr.StartDate != nil {
		out.StartDate = *attr.StartDate
	}
	if attr.EndDate != nil {
		out.EndDate = *attr.EndDate
	}
	if attr.IsBoxOfficeOnly != nil {
		out.IsBoxOfficeOnly = *attr.IsBoxOfficeOnly
	}
	return out
}

// Validate checks the window and price rules that do not require looking at
// sibling rows. tt is the owning ticket type.
func (p TicketPricing) Validate(tt TicketType) error {
	if !p.StartDate.Before(p.EndDate) {
		return NewValidationError("ticket_pricing.start_date",
			"start_date_must_precede_end_date",
			"Start date must precede end date")
	}
	if p.PriceInCents < 0 {
		return NewValidationError("ticket_pricing.price_in_cents",
			"number_must_be_positive",
			"Ticket price must be positive")
	}
	if p.StartDate.Before(tt.StartDate) {
		return NewValidationError("ticket_pricing.start_date",
			"ticket_pricing_overlapping_ticket_type_start_date",
			"Ticket pricing dates overlap ticket type start date")
	}
	if p.EndDate.After(tt.EndDate) {
		return NewValidationError("ticket_pricing.end_date",
			"ticket_pricing_overlapping_ticket_type_end_date",
			"Ticket pricing dates overlap ticket type end date")
	}
	return nil
}

// ErrOverlappingPeriods is the validation failure for invariant A.
func ErrOverlappingPeriods() *ValidationError {
	return NewValidationError("ticket_pricing",
		"ticket_pricing_overlapping_periods",
		"Ticket pricing dates overlap another ticket pricing period")
}

// ChangePlan decides how a pricing update is applied.
type ChangePlan int

const (
	// MutateInPlace corrects the existing row.
	MutateInPlace ChangePlan = iota
	// Fork creates a superseding row and soft-deletes the original so that
	// every existing order keeps the exact price it paid.
	Fork
)

// PlanPricingChange is the append-only-correction decision: a row that has
// escaped into order state and whose price is changing must be forked, all
// other edits happen in place.
func PlanPricingChange(referenced, priceChanging bool) ChangePlan {
	if referenced && priceChanging {
		return Fork
	}
	return MutateInPlace
}

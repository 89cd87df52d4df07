package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mikethetike/bn-api/internal/audit"
	"github.com/mikethetike/bn-api/internal/clock"
	"github.com/mikethetike/bn-api/internal/domain"
)

type PricingRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateTicketType(ctx context.Context, tt domain.TicketType) error
	GetTicketType(ctx context.Context, id string) (domain.TicketType, error)
	GetPricing(ctx context.Context, id string) (domain.TicketPricing, error)
	GetPricingForUpdate(ctx context.Context, id string) (domain.TicketPricing, error)
	ListPricingByTicketType(ctx context.Context, ticketTypeID string) ([]domain.TicketPricing, error)
	// ListPricingInWindow returns rows of the given status whose validity
	// window contains now.
	ListPricingInWindow(ctx context.Context, ticketTypeID string, status domain.PricingStatus, now time.Time) ([]domain.TicketPricing, error)
	// HasOverlappingPeriod reports whether another active row of the same
	// type shares p's sales channel and overlaps p's window.
	HasOverlappingPeriod(ctx context.Context, p domain.TicketPricing) (bool, error)
	// CountOrderItemsForPricing counts order items pinned to the pricing row.
	CountOrderItemsForPricing(ctx context.Context, pricingID string) (int, error)
	InsertPricing(ctx context.Context, p domain.TicketPricing) error
	UpdatePricing(ctx context.Context, p domain.TicketPricing) error
	UpdatePricingStatus(ctx context.Context, id string, status domain.PricingStatus, now time.Time) error
	UpdatePricingStartDate(ctx context.Context, id string, start, now time.Time) error
	DeletePricing(ctx context.Context, id string) error
}

// PricingService owns the pricing ledger: immutable priced windows per
// ticket type, forked rather than mutated once orders depend on them.
type PricingService struct {
	repo   PricingRepository
	clock  clock.Clock
	audit  audit.Sink
	logger *log.Logger
}

func NewPricingService(repo PricingRepository, clk clock.Clock, sink audit.Sink, logger *log.Logger) *PricingService {
	if logger == nil {
		logger = log.Default()
	}
	if sink == nil {
		sink = audit.NewLogSink(logger)
	}
	return &PricingService{
		repo:   repo,
		clock:  clk,
		audit:  sink,
		logger: logger,
	}
}

type CreateTicketTypeInput struct {
	EventID   string
	Name      string
	Capacity  int
	StartDate time.Time
	EndDate   time.Time
}

func (s *PricingService) CreateTicketType(ctx context.Context, in CreateTicketTypeInput) (domain.TicketType, error) {
	if in.Name == "" {
		return domain.TicketType{}, domain.NewValidationError("ticket_type.name", "name_required", "Ticket type name is required")
	}
	if !in.StartDate.Before(in.EndDate) {
		return domain.TicketType{}, domain.NewValidationError("ticket_type.start_date", "start_date_must_precede_end_date", "Start date must precede end date")
	}
	if in.Capacity <= 0 {
		return domain.TicketType{}, domain.NewValidationError("ticket_type.capacity", "number_must_be_positive", "Capacity must be positive")
	}

	tt := domain.TicketType{
		ID:        uuid.NewString(),
		EventID:   in.EventID,
		Name:      in.Name,
		Capacity:  in.Capacity,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.CreateTicketType(ctx, tt); err != nil {
		return domain.TicketType{}, err
	}
	return tt, nil
}

func (s *PricingService) ListPricing(ctx context.Context, ticketTypeID string) ([]domain.TicketPricing, error) {
	if _, err := s.repo.GetTicketType(ctx, ticketTypeID); err != nil {
		return nil, err
	}
	return s.repo.ListPricingByTicketType(ctx, ticketTypeID)
}

// ResolveCurrentPricing finds the pricing applicable right now. Published
// rows win; a lone Default row is the fallback when no published window
// covers the moment. With boxOffice set, box-office-only tiers are
// considered and preferred over a general tier.
func (s *PricingService) ResolveCurrentPricing(ctx context.Context, ticketTypeID string, boxOffice bool) (domain.TicketPricing, error) {
	now := s.clock.Now()

	p, err := s.resolveAt(ctx, ticketTypeID, boxOffice, domain.PricingStatusPublished, now)
	if err == domain.ErrPricingNotFound {
		p, err = s.resolveAt(ctx, ticketTypeID, boxOffice, domain.PricingStatusDefault, now)
	}
	return p, err
}

func (s *PricingService) resolveAt(ctx context.Context, ticketTypeID string, boxOffice bool, status domain.PricingStatus, now time.Time) (domain.TicketPricing, error) {
	rows, err := s.repo.ListPricingInWindow(ctx, ticketTypeID, status, now)
	if err != nil {
		return domain.TicketPricing{}, err
	}

	if boxOffice {
		// Prefer the box-office tier, fall back to the general one.
		var general *domain.TicketPricing
		for i := range rows {
			if rows[i].IsBoxOfficeOnly {
				return rows[i], nil
			}
			if general == nil {
				general = &rows[i]
			}
		}
		if general != nil {
			return *general, nil
		}
		return domain.TicketPricing{}, domain.ErrPricingNotFound
	}

	matched := rows[:0:0]
	for _, r := range rows {
		if !r.IsBoxOfficeOnly {
			matched = append(matched, r)
		}
	}
	switch len(matched) {
	case 0:
		return domain.TicketPricing{}, domain.ErrPricingNotFound
	case 1:
		return matched[0], nil
	default:
		// Invariant A should make this unreachable; detect it rather than
		// silently picking one.
		return domain.TicketPricing{}, domain.ErrAmbiguousPricing
	}
}

type CreatePricingInput struct {
	TicketTypeID    string
	Name            string
	PriceInCents    int64
	StartDate       time.Time
	EndDate         time.Time
	IsBoxOfficeOnly bool
	// Status defaults to published.
	Status domain.PricingStatus
	// PreviousPricingID marks the row this one supersedes.
	PreviousPricingID string
	ActingUserID      string
}

func (s *PricingService) CreatePricing(ctx context.Context, in CreatePricingInput) (domain.TicketPricing, error) {
	status := in.Status
	if status == "" {
		status = domain.PricingStatusPublished
	}

	now := s.clock.Now()
	p := domain.TicketPricing{
		ID:                uuid.NewString(),
		TicketTypeID:      in.TicketTypeID,
		Name:              in.Name,
		Status:            status,
		PriceInCents:      in.PriceInCents,
		StartDate:         in.StartDate,
		EndDate:           in.EndDate,
		IsBoxOfficeOnly:   in.IsBoxOfficeOnly,
		PreviousPricingID: in.PreviousPricingID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		tt, err := s.repo.GetTicketType(txCtx, in.TicketTypeID)
		if err != nil {
			return err
		}
		if err := p.Validate(tt); err != nil {
			return err
		}
		if err := s.checkOverlap(txCtx, p); err != nil {
			return err
		}
		return s.repo.InsertPricing(txCtx, p)
	})
	if err != nil {
		return domain.TicketPricing{}, err
	}

	s.publish(ctx, audit.Event{
		Type:        audit.TypeTicketPricingCreated,
		Description: fmt.Sprintf("Ticket pricing '%s' created", p.Name),
		Table:       audit.TableTicketPricing,
		RowID:       p.ID,
		UserID:      in.ActingUserID,
		Payload:     p,
	})
	return p, nil
}

// UpdatePricing applies attr to the pricing row. A row never referenced by
// an order item, or an edit that leaves the price alone, is corrected in
// place. A referenced row with a changing price is forked: a new row
// supersedes it and the original is soft-deleted, so every existing order
// keeps the exact price it paid.
func (s *PricingService) UpdatePricing(ctx context.Context, pricingID string, attr domain.PricingAttributes, actingUserID string) (domain.TicketPricing, error) {
	var (
		result domain.TicketPricing
		events []audit.Event
	)

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		events = events[:0]

		p, err := s.repo.GetPricingForUpdate(txCtx, pricingID)
		if err != nil {
			return err
		}
		if !p.HasChanges(attr) {
			result = p
			return nil
		}

		merged := p.Apply(attr)
		merged.UpdatedAt = s.clock.Now()

		tt, err := s.repo.GetTicketType(txCtx, p.TicketTypeID)
		if err != nil {
			return err
		}
		if err := merged.Validate(tt); err != nil {
			return err
		}

		refs, err := s.repo.CountOrderItemsForPricing(txCtx, p.ID)
		if err != nil {
			return err
		}

		switch domain.PlanPricingChange(refs > 0, p.PriceChanging(attr)) {
		case domain.MutateInPlace:
			if err := s.checkOverlap(txCtx, merged); err != nil {
				return err
			}
			if err := s.repo.UpdatePricing(txCtx, merged); err != nil {
				return err
			}
			result = merged
			events = append(events, audit.Event{
				Type:        audit.TypeTicketPricingUpdated,
				Description: fmt.Sprintf("Ticket pricing '%s' updated", p.Name),
				Table:       audit.TableTicketPricing,
				RowID:       p.ID,
				UserID:      actingUserID,
				Payload:     attr,
			})
			return nil

		default: // domain.Fork
			now := s.clock.Now()
			if err := s.repo.UpdatePricingStatus(txCtx, p.ID, domain.PricingStatusDeleted, now); err != nil {
				return err
			}
			events = append(events, audit.Event{
				Type:        audit.TypeTicketPricingDeleted,
				Description: fmt.Sprintf("Ticket pricing '%s' deleted", p.Name),
				Table:       audit.TableTicketPricing,
				RowID:       p.ID,
				UserID:      actingUserID,
				Payload:     p,
			})

			fork := merged
			fork.ID = uuid.NewString()
			fork.PreviousPricingID = p.ID
			fork.CreatedAt = now
			fork.UpdatedAt = now
			if err := s.checkOverlap(txCtx, fork); err != nil {
				return err
			}
			if err := s.repo.InsertPricing(txCtx, fork); err != nil {
				return err
			}
			result = fork
			events = append(events, audit.Event{
				Type:        audit.TypeTicketPricingCreated,
				Description: fmt.Sprintf("Ticket pricing '%s' created", fork.Name),
				Table:       audit.TableTicketPricing,
				RowID:       fork.ID,
				UserID:      actingUserID,
				Payload:     fork,
			})
			return nil
		}
	})
	if err != nil {
		return domain.TicketPricing{}, err
	}

	for _, e := range events {
		s.publish(ctx, e)
	}
	return result, nil
}

// DestroyPricing hard-deletes an unreferenced row and soft-deletes a
// referenced one so historical totals stay reproducible.
func (s *PricingService) DestroyPricing(ctx context.Context, pricingID, actingUserID string) error {
	var event audit.Event

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		p, err := s.repo.GetPricingForUpdate(txCtx, pricingID)
		if err != nil {
			return err
		}
		refs, err := s.repo.CountOrderItemsForPricing(txCtx, p.ID)
		if err != nil {
			return err
		}

		if refs == 0 {
			if err := s.repo.DeletePricing(txCtx, p.ID); err != nil {
				return err
			}
		} else {
			if err := s.repo.UpdatePricingStatus(txCtx, p.ID, domain.PricingStatusDeleted, s.clock.Now()); err != nil {
				return err
			}
		}
		event = audit.Event{
			Type:        audit.TypeTicketPricingDeleted,
			Description: fmt.Sprintf("Ticket pricing '%s' deleted", p.Name),
			Table:       audit.TableTicketPricing,
			RowID:       p.ID,
			UserID:      actingUserID,
			Payload:     p,
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, event)
	return nil
}

// StartSales pulls a future start date forward to now, activating the tier
// early. A tier already on sale is left alone.
func (s *PricingService) StartSales(ctx context.Context, pricingID, actingUserID string) error {
	var event *audit.Event

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		event = nil
		p, err := s.repo.GetPricingForUpdate(txCtx, pricingID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if !p.StartDate.After(now) {
			return nil
		}
		if err := s.repo.UpdatePricingStartDate(txCtx, p.ID, now, now); err != nil {
			return err
		}
		event = &audit.Event{
			Type:        audit.TypeTicketPricingSalesStarted,
			Description: fmt.Sprintf("Sales have started on '%s'", p.Name),
			Table:       audit.TableTicketPricing,
			RowID:       p.ID,
			UserID:      actingUserID,
			Payload: map[string]any{
				"old_start_date": p.StartDate,
				"new_start_date": now,
			},
		}
		return nil
	})
	if err != nil {
		return err
	}

	if event != nil {
		s.publish(ctx, *event)
	}
	return nil
}

func (s *PricingService) checkOverlap(ctx context.Context, p domain.TicketPricing) error {
	if !p.Status.Active() {
		return nil
	}
	overlap, err := s.repo.HasOverlappingPeriod(ctx, p)
	if err != nil {
		return err
	}
	if overlap {
		return domain.ErrOverlappingPeriods()
	}
	return nil
}

func (s *PricingService) publish(ctx context.Context, e audit.Event) {
	if err := s.audit.Publish(ctx, e); err != nil {
		s.logger.Printf("WARN: audit publish %s for %s failed: %v", e.Type, e.RowID, err)
	}
}

package app

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/mikethetike/bn-api/internal/clock"
	"github.com/mikethetike/bn-api/internal/domain"
)

type CartRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// FindDraftOrderByUser returns the user's current cart, nil when none.
	FindDraftOrderByUser(ctx context.Context, userID string) (*domain.Order, error)
	// CreateOrder returns domain.ErrDraftOrderExists when the partial unique
	// index on draft orders rejects a second cart for the same user.
	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	FindOrderItem(ctx context.Context, orderID, itemID string) (*domain.OrderItem, error)
	// FindOrderItemByPricing locates the line pinned to the same pricing
	// row, so repeat adds increment instead of duplicating.
	FindOrderItemByPricing(ctx context.Context, orderID, pricingID string) (*domain.OrderItem, error)
	InsertOrderItem(ctx context.Context, item domain.OrderItem) error
	UpdateOrderItemQuantity(ctx context.Context, itemID string, quantity int) error
	DeleteOrderItem(ctx context.Context, itemID string) error
	ListOrderItemsDetailed(ctx context.Context, orderID string) ([]domain.DisplayOrderItem, error)
	GetTicketType(ctx context.Context, id string) (domain.TicketType, error)
	// SoldQuantity sums item quantities for the ticket type across all
	// non-cancelled orders.
	SoldQuantity(ctx context.Context, ticketTypeID string) (int, error)
}

// PricingResolver is the slice of the pricing ledger the cart needs.
type PricingResolver interface {
	ResolveCurrentPricing(ctx context.Context, ticketTypeID string, boxOffice bool) (domain.TicketPricing, error)
}

// CartService manages the draft order each buyer accumulates items in.
type CartService struct {
	repo    CartRepository
	pricing PricingResolver
	clock   clock.Clock
	logger  *log.Logger
}

func NewCartService(repo CartRepository, pricing PricingResolver, clk clock.Clock, logger *log.Logger) *CartService {
	if logger == nil {
		logger = log.Default()
	}
	return &CartService{
		repo:    repo,
		pricing: pricing,
		clock:   clk,
		logger:  logger,
	}
}

// FindOrCreateCart returns the user's draft order, creating one when none
// exists. A concurrent create losing the unique-index race falls back to
// re-reading the winner.
func (s *CartService) FindOrCreateCart(ctx context.Context, userID string) (domain.Order, error) {
	existing, err := s.repo.FindDraftOrderByUser(ctx, userID)
	if err != nil {
		return domain.Order{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	now := s.clock.Now()
	order := domain.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    domain.OrderStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		if err == domain.ErrDraftOrderExists {
			winner, findErr := s.repo.FindDraftOrderByUser(ctx, userID)
			if findErr != nil {
				return domain.Order{}, findErr
			}
			if winner != nil {
				return *winner, nil
			}
		}
		return domain.Order{}, err
	}
	return order, nil
}

type AddItemInput struct {
	UserID       string
	TicketTypeID string
	Quantity     int
	// BoxOffice unlocks box-office-only pricing tiers; privileged callers
	// only.
	BoxOffice bool
}

// AddItem resolves the current price and records it against the cart,
// incrementing the existing line when one is already pinned to the same
// pricing row.
func (s *CartService) AddItem(ctx context.Context, in AddItemInput) (domain.Order, error) {
	if in.Quantity <= 0 {
		return domain.Order{}, domain.ErrInvalidQuantity
	}

	var cart domain.Order
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		cart, err = s.FindOrCreateCart(txCtx, in.UserID)
		if err != nil {
			return err
		}
		if cart.Status != domain.OrderStatusDraft {
			return domain.ErrOrderNotDraft
		}

		pricing, err := s.pricing.ResolveCurrentPricing(txCtx, in.TicketTypeID, in.BoxOffice)
		if err != nil {
			return err
		}

		tt, err := s.repo.GetTicketType(txCtx, in.TicketTypeID)
		if err != nil {
			return err
		}
		sold, err := s.repo.SoldQuantity(txCtx, in.TicketTypeID)
		if err != nil {
			return err
		}
		if in.Quantity > tt.Capacity-sold {
			return domain.ErrInsufficientCapacity
		}

		existing, err := s.repo.FindOrderItemByPricing(txCtx, cart.ID, pricing.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return s.repo.UpdateOrderItemQuantity(txCtx, existing.ID, existing.Quantity+in.Quantity)
		}
		return s.repo.InsertOrderItem(txCtx, domain.OrderItem{
			ID:              uuid.NewString(),
			OrderID:         cart.ID,
			TicketTypeID:    in.TicketTypeID,
			TicketPricingID: pricing.ID,
			Quantity:        in.Quantity,
			CreatedAt:       s.clock.Now(),
		})
	})
	if err != nil {
		return domain.Order{}, err
	}
	return cart, nil
}

type RemoveItemInput struct {
	UserID string
	ItemID string
	// Quantity nil removes the whole line; otherwise the line is
	// decremented, deleting it when the decrement reaches zero.
	Quantity *int
}

func (s *CartService) RemoveItem(ctx context.Context, in RemoveItemInput) (domain.Order, error) {
	if in.Quantity != nil && *in.Quantity <= 0 {
		return domain.Order{}, domain.ErrInvalidQuantity
	}

	var cart domain.Order
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindDraftOrderByUser(txCtx, in.UserID)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrCartNotFound
		}
		cart = *existing

		item, err := s.repo.FindOrderItem(txCtx, cart.ID, in.ItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrOrderItemNotFound
		}

		if in.Quantity == nil || *in.Quantity >= item.Quantity {
			return s.repo.DeleteOrderItem(txCtx, item.ID)
		}
		return s.repo.UpdateOrderItemQuantity(txCtx, item.ID, item.Quantity-*in.Quantity)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return cart, nil
}

// CartView is the cart with its lines joined to their pinned prices. The
// total is recomputed on every read and never stored.
type CartView struct {
	Order        domain.Order
	Items        []domain.DisplayOrderItem
	TotalInCents int64
}

// Show returns the user's current cart, nil when none exists.
func (s *CartService) Show(ctx context.Context, userID string) (*CartView, error) {
	order, err := s.repo.FindDraftOrderByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, nil
	}

	items, err := s.repo.ListOrderItemsDetailed(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	view := &CartView{Order: *order, Items: items}
	for _, item := range items {
		view.TotalInCents += item.LineTotalInCents()
	}
	return view, nil
}

// Total recomputes the order total from its lines.
func (s *CartService) Total(ctx context.Context, orderID string) (int64, error) {
	items, err := s.repo.ListOrderItemsDetailed(ctx, orderID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, item := range items {
		total += item.LineTotalInCents()
	}
	return total, nil
}

package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/mikethetike/bn-api/internal/clock"
	"github.com/mikethetike/bn-api/internal/domain"
)

type RefundRepository interface {
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	InsertRefund(ctx context.Context, r domain.Refund) error
	GetRefund(ctx context.Context, refundID string) (domain.Refund, error)
	ListRefundItems(ctx context.Context, refundID string) ([]domain.RefundItem, error)
}

// RefundService keeps the append-only refund ledger. Rows are created,
// never edited, and never talk to the gateway themselves.
type RefundService struct {
	repo  RefundRepository
	clock clock.Clock
}

func NewRefundService(repo RefundRepository, clk clock.Clock) *RefundService {
	return &RefundService{
		repo:  repo,
		clock: clk,
	}
}

func (s *RefundService) Create(ctx context.Context, orderID, actingUserID string) (domain.Refund, error) {
	if _, err := s.repo.GetOrder(ctx, orderID); err != nil {
		return domain.Refund{}, err
	}

	refund := domain.Refund{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		UserID:    actingUserID,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertRefund(ctx, refund); err != nil {
		return domain.Refund{}, err
	}
	return refund, nil
}

func (s *RefundService) Find(ctx context.Context, refundID string) (domain.Refund, error) {
	return s.repo.GetRefund(ctx, refundID)
}

// Items lazily loads the line-level detail of a refund.
func (s *RefundService) Items(ctx context.Context, refundID string) ([]domain.RefundItem, error) {
	if _, err := s.repo.GetRefund(ctx, refundID); err != nil {
		return nil, err
	}
	return s.repo.ListRefundItems(ctx, refundID)
}

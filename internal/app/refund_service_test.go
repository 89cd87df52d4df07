package app

import (
	"context"
	"testing"

	"github.com/mikethetike/bn-api/internal/clock"
	"github.com/mikethetike/bn-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefundRepo struct {
	orders  map[string]domain.Order
	refunds map[string]domain.Refund
	items   map[string][]domain.RefundItem
}

func newFakeRefundRepo() *fakeRefundRepo {
	return &fakeRefundRepo{
		orders:  make(map[string]domain.Order),
		refunds: make(map[string]domain.Refund),
		items:   make(map[string][]domain.RefundItem),
	}
}

func (f *fakeRefundRepo) GetOrder(_ context.Context, orderID string) (domain.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeRefundRepo) InsertRefund(_ context.Context, r domain.Refund) error {
	f.refunds[r.ID] = r
	return nil
}

func (f *fakeRefundRepo) GetRefund(_ context.Context, refundID string) (domain.Refund, error) {
	r, ok := f.refunds[refundID]
	if !ok {
		return domain.Refund{}, domain.ErrRefundNotFound
	}
	return r, nil
}

func (f *fakeRefundRepo) ListRefundItems(_ context.Context, refundID string) ([]domain.RefundItem, error) {
	return f.items[refundID], nil
}

func TestRefundService(t *testing.T) {
	t.Parallel()

	t.Run("create records a ledger row", func(t *testing.T) {
		repo := newFakeRefundRepo()
		repo.orders["order-1"] = domain.Order{ID: "order-1", UserID: "user-1", Status: domain.OrderStatusPaid}
		svc := NewRefundService(repo, clock.Fixed(testNow))

		refund, err := svc.Create(context.Background(), "order-1", "operator-1")
		require.NoError(t, err)
		assert.NotEmpty(t, refund.ID)
		assert.Equal(t, "order-1", refund.OrderID)
		assert.Equal(t, "operator-1", refund.UserID)
		assert.Equal(t, testNow, refund.CreatedAt)

		got, err := svc.Find(context.Background(), refund.ID)
		require.NoError(t, err)
		assert.Equal(t, refund, got)
	})

	t.Run("create for a missing order fails", func(t *testing.T) {
		svc := NewRefundService(newFakeRefundRepo(), clock.Fixed(testNow))

		_, err := svc.Create(context.Background(), "nope", "operator-1")
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})

	t.Run("items require an existing refund", func(t *testing.T) {
		repo := newFakeRefundRepo()
		svc := NewRefundService(repo, clock.Fixed(testNow))

		_, err := svc.Items(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrRefundNotFound)

		repo.refunds["refund-1"] = domain.Refund{ID: "refund-1", OrderID: "order-1"}
		repo.items["refund-1"] = []domain.RefundItem{
			{ID: "ri-1", RefundID: "refund-1", OrderItemID: "item-1", Quantity: 2, AmountInCents: 2000},
		}

		items, err := svc.Items(context.Background(), "refund-1")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, int64(2000), items[0].AmountInCents)
	})
}

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/mikethetike/bn-api/internal/domain"
	"github.com/mikethetike/bn-api/internal/testutil"
)

func TestRefundRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewRefundRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("refund round trip with items", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		userID := testutil.NewUserID()
		ttID := testutil.InsertTicketType(t, ctx, pool, "General Admission", 100, now, now.AddDate(0, 6, 0))
		pricingID := testutil.InsertPricing(t, ctx, pool, domain.TicketPricing{
			TicketTypeID: ttID,
			Name:         "Standard",
			Status:       domain.PricingStatusPublished,
			PriceInCents: 1000,
			StartDate:    now,
			EndDate:      now.AddDate(0, 6, 0),
		})
		orderID := testutil.InsertOrder(t, ctx, pool, userID, domain.OrderStatusPaid)
		itemID := testutil.InsertOrderItem(t, ctx, pool, orderID, ttID, pricingID, 2)

		refund := domain.Refund{
			ID:        "eeeeeeee-0000-0000-0000-000000000002",
			OrderID:   orderID,
			UserID:    userID,
			CreatedAt: now,
		}
		if err := repo.InsertRefund(ctx, refund); err != nil {
			t.Fatalf("insert refund: %v", err)
		}

		if _, err := pool.Exec(ctx, `
INSERT INTO refund_items (refund_id, order_item_id, quantity, amount_in_cents)
VALUES ($1, $2, $3, $4)`,
			refund.ID, itemID, 2, 2000,
		); err != nil {
			t.Fatalf("insert refund item: %v", err)
		}

		got, err := repo.GetRefund(ctx, refund.ID)
		if err != nil {
			t.Fatalf("get refund: %v", err)
		}
		if got.OrderID != orderID || got.UserID != userID {
			t.Fatalf("unexpected refund: %+v", got)
		}

		items, err := repo.ListRefundItems(ctx, refund.ID)
		if err != nil {
			t.Fatalf("list items: %v", err)
		}
		if len(items) != 1 || items[0].AmountInCents != 2000 || items[0].Quantity != 2 {
			t.Fatalf("unexpected items: %+v", items)
		}
	})

	t.Run("missing refund", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		_, err := repo.GetRefund(ctx, "00000000-0000-0000-0000-000000000009")
		if err != domain.ErrRefundNotFound {
			t.Fatalf("expected ErrRefundNotFound, got %v", err)
		}
		_, err = repo.GetRefund(ctx, "nope")
		if err != domain.ErrInvalidID {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})
}

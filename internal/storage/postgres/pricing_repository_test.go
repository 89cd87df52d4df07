package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/mikethetike/bn-api/internal/domain"
	"github.com/mikethetike/bn-api/internal/testutil"
)

func TestPricingRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewPricingRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("GetPricing returns row or ErrPricingNotFound", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		ttID := testutil.InsertTicketType(t, ctx, pool, "General Admission", 100, now, now.AddDate(0, 6, 0))
		id := testutil.InsertPricing(t, ctx, pool, domain.TicketPricing{
			TicketTypeID: ttID,
			Name:         "Early Bird",
			Status:       domain.PricingStatusPublished,
			PriceInCents: 1000,
			StartDate:    now,
			EndDate:      now.AddDate(0, 1, 0),
		})

		got, err := repo.GetPricing(ctx, id)
		if err != nil {
			t.Fatalf("get pricing: %v", err)
		}
		if got.TicketTypeID != ttID || got.PriceInCents != 1000 || got.Status != domain.PricingStatusPublished {
			t.Fatalf("unexpected pricing: %+v", got)
		}
		if got.PreviousPricingID != "" {
			t.Fatalf("expected empty previous id, got %q", got.PreviousPricingID)
		}

		_, err = repo.GetPricing(ctx, "00000000-0000-0000-0000-000000000001")
		if err != domain.ErrPricingNotFound {
			t.Fatalf("expected ErrPricingNotFound, got %v", err)
		}

		_, err = repo.GetPricing(ctx, "not-a-uuid")
		if err != domain.ErrInvalidID {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})

	t.Run("exclusion constraint rejects overlapping active rows in one channel", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		ttID := testutil.InsertTicketType(t, ctx, pool, "General Admission", 100, now, now.AddDate(0, 6, 0))
		testutil.InsertPricing(t, ctx, pool, domain.TicketPricing{
			TicketTypeID: ttID,
			Name:         "Early Bird",
			Status:       domain.PricingStatusPublished,
			PriceInCents: 1000,
			StartDate:    now,
			EndDate:      now.AddDate(0, 2, 0),
		})

		err := repo.InsertPricing(ctx, domain.TicketPricing{
			ID:           "aaaaaaaa-0000-0000-0000-000000000001",
			TicketTypeID: ttID,
			Name:         "Overlap",
			Status:       domain.PricingStatusPublished,
			PriceInCents: 1500,
			StartDate:    now.AddDate(0, 1, 0),
			EndDate:      now.AddDate(0, 3, 0),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if _, ok := domain.AsValidationError(err); !ok {
			t.Fatalf("expected overlap validation error, got %v", err)
		}

		// Same window in the box-office channel is allowed.
		err = repo.InsertPricing(ctx, domain.TicketPricing{
			ID:              "aaaaaaaa-0000-0000-0000-000000000002",
			TicketTypeID:    ttID,
			Name:            "Box Office",
			Status:          domain.PricingStatusPublished,
			PriceInCents:    1200,
			StartDate:       now,
			EndDate:         now.AddDate(0, 2, 0),
			IsBoxOfficeOnly: true,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			t.Fatalf("box office row should not conflict: %v", err)
		}
	})

	t.Run("soft-deleted rows leave the constraint and resolution window", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		ttID := testutil.InsertTicketType(t, ctx, pool, "General Admission", 100, now, now.AddDate(0, 6, 0))
		id := testutil.InsertPricing(t, ctx, pool, domain.TicketPricing{
			TicketTypeID: ttID,
			Name:         "Early Bird",
			Status:       domain.PricingStatusPublished,
			PriceInCents: 1000,
			StartDate:    now,
			EndDate:      now.AddDate(0, 2, 0),
		})

		if err := repo.UpdatePricingStatus(ctx, id, domain.PricingStatusDeleted, now); err != nil {
			t.Fatalf("soft delete: %v", err)
		}

		rows, err := repo.ListPricingInWindow(ctx, ttID, domain.PricingStatusPublished, now.Add(time.Hour))
		if err != nil {
			t.Fatalf("list in window: %v", err)
		}
		if len(rows) != 0 {
			t.Fatalf("expected no published rows, got %d", len(rows))
		}

		// The freed window accepts a replacement row.
		err = repo.InsertPricing(ctx, domain.TicketPricing{
			ID:           "aaaaaaaa-0000-0000-0000-000000000003",
			TicketTypeID: ttID,
			Name:         "Replacement",
			Status:       domain.PricingStatusPublished,
			PriceInCents: 1500,
			StartDate:    now,
			EndDate:      now.AddDate(0, 2, 0),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			t.Fatalf("replacement insert: %v", err)
		}
	})

	t.Run("fork chain persists previous pricing id", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		ttID := testutil.InsertTicketType(t, ctx, pool, "General Admission", 100, now, now.AddDate(0, 6, 0))
		oldID := testutil.InsertPricing(t, ctx, pool, domain.TicketPricing{
			TicketTypeID: ttID,
			Name:         "Early Bird",
			Status:       domain.PricingStatusDeleted,
			PriceInCents: 1000,
			StartDate:    now,
			EndDate:      now.AddDate(0, 2, 0),
		})

		err := repo.InsertPricing(ctx, domain.TicketPricing{
			ID:                "aaaaaaaa-0000-0000-0000-000000000004",
			TicketTypeID:      ttID,
			Name:              "Early Bird",
			Status:            domain.PricingStatusPublished,
			PriceInCents:      1500,
			StartDate:         now,
			EndDate:           now.AddDate(0, 2, 0),
			PreviousPricingID: oldID,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
		if err != nil {
			t.Fatalf("insert fork: %v", err)
		}

		fork, err := repo.GetPricing(ctx, "aaaaaaaa-0000-0000-0000-000000000004")
		if err != nil {
			t.Fatalf("get fork: %v", err)
		}
		if fork.PreviousPricingID != oldID {
			t.Fatalf("expected previous id %s, got %s", oldID, fork.PreviousPricingID)
		}
	})

	t.Run("CountOrderItemsForPricing counts pinned lines", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		ttID := testutil.InsertTicketType(t, ctx, pool, "General Admission", 100, now, now.AddDate(0, 6, 0))
		pricingID := testutil.InsertPricing(t, ctx, pool, domain.TicketPricing{
			TicketTypeID: ttID,
			Name:         "Early Bird",
			Status:       domain.PricingStatusPublished,
			PriceInCents: 1000,
			StartDate:    now,
			EndDate:      now.AddDate(0, 2, 0),
		})

		n, err := repo.CountOrderItemsForPricing(ctx, pricingID)
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if n != 0 {
			t.Fatalf("expected 0, got %d", n)
		}

		orderID := testutil.InsertOrder(t, ctx, pool, testutil.NewUserID(), domain.OrderStatusDraft)
		testutil.InsertOrderItem(t, ctx, pool, orderID, ttID, pricingID, 3)

		n, err = repo.CountOrderItemsForPricing(ctx, pricingID)
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if n != 1 {
			t.Fatalf("expected 1, got %d", n)
		}
	})
}

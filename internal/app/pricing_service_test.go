package app

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/mikethetike/bn-api/internal/audit"
	"github.com/mikethetike/bn-api/internal/clock"
	"github.com/mikethetike/bn-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePricingRepo struct {
	ticketTypes map[string]domain.TicketType
	pricing     map[string]domain.TicketPricing
	// refs counts order items per pricing id.
	refs map[string]int
}

func newFakePricingRepo() *fakePricingRepo {
	return &fakePricingRepo{
		ticketTypes: make(map[string]domain.TicketType),
		pricing:     make(map[string]domain.TicketPricing),
		refs:        make(map[string]int),
	}
}

func (f *fakePricingRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakePricingRepo) CreateTicketType(_ context.Context, tt domain.TicketType) error {
	f.ticketTypes[tt.ID] = tt
	return nil
}

func (f *fakePricingRepo) GetTicketType(_ context.Context, id string) (domain.TicketType, error) {
	tt, ok := f.ticketTypes[id]
	if !ok {
		return domain.TicketType{}, domain.ErrTicketTypeNotFound
	}
	return tt, nil
}

func (f *fakePricingRepo) GetPricing(_ context.Context, id string) (domain.TicketPricing, error) {
	p, ok := f.pricing[id]
	if !ok {
		return domain.TicketPricing{}, domain.ErrPricingNotFound
	}
	return p, nil
}

func (f *fakePricingRepo) GetPricingForUpdate(ctx context.Context, id string) (domain.TicketPricing, error) {
	return f.GetPricing(ctx, id)
}

func (f *fakePricingRepo) ListPricingByTicketType(_ context.Context, ticketTypeID string) ([]domain.TicketPricing, error) {
	var out []domain.TicketPricing
	for _, p := range f.pricing {
		if p.TicketTypeID == ticketTypeID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePricingRepo) ListPricingInWindow(_ context.Context, ticketTypeID string, status domain.PricingStatus, now time.Time) ([]domain.TicketPricing, error) {
	var out []domain.TicketPricing
	for _, p := range f.pricing {
		if p.TicketTypeID != ticketTypeID || p.Status != status {
			continue
		}
		if p.StartDate.After(now) || !p.EndDate.After(now) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePricingRepo) HasOverlappingPeriod(_ context.Context, p domain.TicketPricing) (bool, error) {
	for _, other := range f.pricing {
		if other.ID == p.ID || other.TicketTypeID != p.TicketTypeID {
			continue
		}
		if !other.Status.Active() || other.IsBoxOfficeOnly != p.IsBoxOfficeOnly {
			continue
		}
		if (other.Status == domain.PricingStatusDefault) != (p.Status == domain.PricingStatusDefault) {
			continue
		}
		if p.StartDate.Before(other.EndDate) && other.StartDate.Before(p.EndDate) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePricingRepo) CountOrderItemsForPricing(_ context.Context, pricingID string) (int, error) {
	return f.refs[pricingID], nil
}

func (f *fakePricingRepo) InsertPricing(_ context.Context, p domain.TicketPricing) error {
	f.pricing[p.ID] = p
	return nil
}

func (f *fakePricingRepo) UpdatePricing(_ context.Context, p domain.TicketPricing) error {
	if _, ok := f.pricing[p.ID]; !ok {
		return domain.ErrPricingNotFound
	}
	f.pricing[p.ID] = p
	return nil
}

func (f *fakePricingRepo) UpdatePricingStatus(_ context.Context, id string, status domain.PricingStatus, now time.Time) error {
	p, ok := f.pricing[id]
	if !ok {
		return domain.ErrPricingNotFound
	}
	p.Status = status
	p.UpdatedAt = now
	f.pricing[id] = p
	return nil
}

func (f *fakePricingRepo) UpdatePricingStartDate(_ context.Context, id string, start, now time.Time) error {
	p, ok := f.pricing[id]
	if !ok {
		return domain.ErrPricingNotFound
	}
	p.StartDate = start
	p.UpdatedAt = now
	f.pricing[id] = p
	return nil
}

func (f *fakePricingRepo) DeletePricing(_ context.Context, id string) error {
	delete(f.pricing, id)
	return nil
}

type captureSink struct {
	events []audit.Event
}

func (c *captureSink) Publish(_ context.Context, e audit.Event) error {
	c.events = append(c.events, e)
	return nil
}

func (c *captureSink) types() []string {
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

var testNow = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

func newPricingFixture(t *testing.T) (*PricingService, *fakePricingRepo, *captureSink) {
	t.Helper()
	repo := newFakePricingRepo()
	repo.ticketTypes["tt-1"] = domain.TicketType{
		ID:        "tt-1",
		Name:      "General Admission",
		Capacity:  100,
		StartDate: testNow.AddDate(0, -1, 0),
		EndDate:   testNow.AddDate(0, 6, 0),
	}
	sink := &captureSink{}
	svc := NewPricingService(repo, clock.Fixed(testNow), sink, log.New(discard{}, "", 0))
	return svc, repo, sink
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func seedPricing(repo *fakePricingRepo, id string, startOffset, endOffset time.Duration, price int64, status domain.PricingStatus, boxOffice bool) domain.TicketPricing {
	p := domain.TicketPricing{
		ID:              id,
		TicketTypeID:    "tt-1",
		Name:            id,
		Status:          status,
		PriceInCents:    price,
		StartDate:       testNow.Add(startOffset),
		EndDate:         testNow.Add(endOffset),
		IsBoxOfficeOnly: boxOffice,
	}
	repo.pricing[id] = p
	return p
}

func TestPricingService_ResolveCurrentPricing(t *testing.T) {
	t.Parallel()

	t.Run("published window wins", func(t *testing.T) {
		svc, repo, _ := newPricingFixture(t)
		seedPricing(repo, "current", -time.Hour, time.Hour, 1000, domain.PricingStatusPublished, false)
		seedPricing(repo, "past", -3*time.Hour, -2*time.Hour, 500, domain.PricingStatusPublished, false)
		seedPricing(repo, "fallback", -time.Hour, time.Hour, 2000, domain.PricingStatusDefault, false)

		p, err := svc.ResolveCurrentPricing(context.Background(), "tt-1", false)
		require.NoError(t, err)
		assert.Equal(t, "current", p.ID)
	})

	t.Run("falls back to default when nothing published", func(t *testing.T) {
		svc, repo, _ := newPricingFixture(t)
		seedPricing(repo, "past", -3*time.Hour, -2*time.Hour, 500, domain.PricingStatusPublished, false)
		seedPricing(repo, "fallback", -time.Hour, time.Hour, 2000, domain.PricingStatusDefault, false)

		p, err := svc.ResolveCurrentPricing(context.Background(), "tt-1", false)
		require.NoError(t, err)
		assert.Equal(t, "fallback", p.ID)
	})

	t.Run("not found when no window matches", func(t *testing.T) {
		svc, repo, _ := newPricingFixture(t)
		seedPricing(repo, "past", -3*time.Hour, -2*time.Hour, 500, domain.PricingStatusPublished, false)

		_, err := svc.ResolveCurrentPricing(context.Background(), "tt-1", false)
		assert.ErrorIs(t, err, domain.ErrPricingNotFound)
	})

	t.Run("box office prefers its own tier", func(t *testing.T) {
		svc, repo, _ := newPricingFixture(t)
		seedPricing(repo, "general", -time.Hour, time.Hour, 1000, domain.PricingStatusPublished, false)
		seedPricing(repo, "window", -time.Hour, time.Hour, 800, domain.PricingStatusPublished, true)

		p, err := svc.ResolveCurrentPricing(context.Background(), "tt-1", true)
		require.NoError(t, err)
		assert.Equal(t, "window", p.ID)
	})

	t.Run("box office falls back to general tier", func(t *testing.T) {
		svc, repo, _ := newPricingFixture(t)
		seedPricing(repo, "general", -time.Hour, time.Hour, 1000, domain.PricingStatusPublished, false)

		p, err := svc.ResolveCurrentPricing(context.Background(), "tt-1", true)
		require.NoError(t, err)
		assert.Equal(t, "general", p.ID)
	})

	t.Run("online never sees box office tiers", func(t *testing.T) {
		svc, repo, _ := newPricingFixture(t)
		seedPricing(repo, "window", -time.Hour, time.Hour, 800, domain.PricingStatusPublished, true)

		_, err := svc.ResolveCurrentPricing(context.Background(), "tt-1", false)
		assert.ErrorIs(t, err, domain.ErrPricingNotFound)
	})

	t.Run("two overlapping general rows is a data integrity failure", func(t *testing.T) {
		svc, repo, _ := newPricingFixture(t)
		seedPricing(repo, "a", -time.Hour, time.Hour, 1000, domain.PricingStatusPublished, false)
		seedPricing(repo, "b", -time.Hour, time.Hour, 1200, domain.PricingStatusPublished, false)

		_, err := svc.ResolveCurrentPricing(context.Background(), "tt-1", false)
		assert.ErrorIs(t, err, domain.ErrAmbiguousPricing)
	})
}

func TestPricingService_CreatePricing(t *testing.T) {
	t.Parallel()

	t.Run("creates published row and emits audit event", func(t *testing.T) {
		svc, repo, sink := newPricingFixture(t)

		p, err := svc.CreatePricing(context.Background(), CreatePricingInput{
			TicketTypeID: "tt-1",
			Name:         "Early Bird",
			PriceInCents: 1500,
			StartDate:    testNow,
			EndDate:      testNow.Add(24 * time.Hour),
			ActingUserID: "admin-1",
		})
		require.NoError(t, err)

		assert.Equal(t, domain.PricingStatusPublished, p.Status)
		assert.NotEmpty(t, p.ID)
		_, stored := repo.pricing[p.ID]
		assert.True(t, stored)
		require.Len(t, sink.events, 1)
		assert.Equal(t, audit.TypeTicketPricingCreated, sink.events[0].Type)
		assert.Equal(t, "admin-1", sink.events[0].UserID)
	})

	t.Run("rejects overlap with existing active window", func(t *testing.T) {
		svc, repo, sink := newPricingFixture(t)
		seedPricing(repo, "existing", -time.Hour, 2*time.Hour, 1000, domain.PricingStatusPublished, false)

		_, err := svc.CreatePricing(context.Background(), CreatePricingInput{
			TicketTypeID: "tt-1",
			Name:         "Clash",
			PriceInCents: 1200,
			StartDate:    testNow,
			EndDate:      testNow.Add(24 * time.Hour),
		})
		ve, ok := domain.AsValidationError(err)
		require.True(t, ok, "expected validation error, got %v", err)
		assert.Equal(t, "ticket_pricing_overlapping_periods", ve.Code)
		assert.Empty(t, sink.events)
	})

	t.Run("rejects window outside ticket type bounds", func(t *testing.T) {
		svc, _, _ := newPricingFixture(t)

		_, err := svc.CreatePricing(context.Background(), CreatePricingInput{
			TicketTypeID: "tt-1",
			Name:         "Too Late",
			PriceInCents: 1000,
			StartDate:    testNow,
			EndDate:      testNow.AddDate(1, 0, 0),
		})
		ve, ok := domain.AsValidationError(err)
		require.True(t, ok)
		assert.Equal(t, "ticket_pricing_overlapping_ticket_type_end_date", ve.Code)
	})

	t.Run("rejects negative price", func(t *testing.T) {
		svc, _, _ := newPricingFixture(t)

		_, err := svc.CreatePricing(context.Background(), CreatePricingInput{
			TicketTypeID: "tt-1",
			Name:         "Bad",
			PriceInCents: -100,
			StartDate:    testNow,
			EndDate:      testNow.Add(time.Hour),
		})
		ve, ok := domain.AsValidationError(err)
		require.True(t, ok)
		assert.Equal(t, "number_must_be_positive", ve.Code)
	})
}

func TestPricingService_UpdatePricing(t *testing.T) {
	t.Parallel()

	t.Run("identical attributes is a no-op", func(t *testing.T) {
		svc, repo, sink := newPricingFixture(t)
		seedPricing(repo, "tp-1", -time.Hour, time.Hour, 1000, domain.PricingStatusPublished, false)

		price := int64(1000)
		p, err := svc.UpdatePricing(context.Background(), "tp-1", domain.PricingAttributes{PriceInCents: &price}, "admin-1")
		require.NoError(t, err)
		assert.Equal(t, "tp-1", p.ID)
		assert.Empty(t, sink.events)
	})

	t.Run("unreferenced price change mutates in place", func(t *testing.T) {
		svc, repo, sink := newPricingFixture(t)
		seedPricing(repo, "tp-1", -time.Hour, time.Hour, 1000, domain.PricingStatusPublished, false)

		price := int64(1500)
		p, err := svc.UpdatePricing(context.Background(), "tp-1", domain.PricingAttributes{PriceInCents: &price}, "admin-1")
		require.NoError(t, err)

		assert.Equal(t, "tp-1", p.ID)
		assert.Equal(t, int64(1500), p.PriceInCents)
		assert.Equal(t, int64(1500), repo.pricing["tp-1"].PriceInCents)
		assert.Equal(t, []string{audit.TypeTicketPricingUpdated}, sink.types())
	})

	t.Run("referenced non-price change mutates in place", func(t *testing.T) {
		svc, repo, sink := newPricingFixture(t)
		seedPricing(repo, "tp-1", -time.Hour, time.Hour, 1000, domain.PricingStatusPublished, false)
		repo.refs["tp-1"] = 3

		name := "Renamed"
		p, err := svc.UpdatePricing(context.Background(), "tp-1", domain.PricingAttributes{Name: &name}, "admin-1")
		require.NoError(t, err)

		assert.Equal(t, "tp-1", p.ID)
		assert.Equal(t, "Renamed", repo.pricing["tp-1"].Name)
		assert.Equal(t, int64(1000), repo.pricing["tp-1"].PriceInCents)
		assert.Equal(t, []string{audit.TypeTicketPricingUpdated}, sink.types())
	})

	t.Run("referenced price change forks", func(t *testing.T) {
		svc, repo, sink := newPricingFixture(t)
		seedPricing(repo, "tp-1", -time.Hour, time.Hour, 1000, domain.PricingStatusPublished, false)
		repo.refs["tp-1"] = 2

		price := int64(1800)
		forked, err := svc.UpdatePricing(context.Background(), "tp-1", domain.PricingAttributes{PriceInCents: &price}, "admin-1")
		require.NoError(t, err)

		// The referenced row keeps its price and is soft-deleted.
		old := repo.pricing["tp-1"]
		assert.Equal(t, int64(1000), old.PriceInCents)
		assert.Equal(t, domain.PricingStatusDeleted, old.Status)

		assert.NotEqual(t, "tp-1", forked.ID)
		assert.Equal(t, int64(1800), forked.PriceInCents)
		assert.Equal(t, "tp-1", forked.PreviousPricingID)
		assert.Equal(t, domain.PricingStatusPublished, forked.Status)

		assert.Equal(t, []string{audit.TypeTicketPricingDeleted, audit.TypeTicketPricingCreated}, sink.types())
	})

	t.Run("update rejects resulting overlap", func(t *testing.T) {
		svc, repo, _ := newPricingFixture(t)
		seedPricing(repo, "tp-1", -2*time.Hour, -time.Hour, 1000, domain.PricingStatusPublished, false)
		seedPricing(repo, "tp-2", -time.Hour, time.Hour, 1200, domain.PricingStatusPublished, false)

		newEnd := testNow.Add(30 * time.Minute)
		_, err := svc.UpdatePricing(context.Background(), "tp-1", domain.PricingAttributes{EndDate: &newEnd}, "admin-1")
		ve, ok := domain.AsValidationError(err)
		require.True(t, ok)
		assert.Equal(t, "ticket_pricing_overlapping_periods", ve.Code)
	})

	t.Run("missing row", func(t *testing.T) {
		svc, _, _ := newPricingFixture(t)
		name := "x"
		_, err := svc.UpdatePricing(context.Background(), "missing", domain.PricingAttributes{Name: &name}, "admin-1")
		assert.ErrorIs(t, err, domain.ErrPricingNotFound)
	})
}

func TestPricingService_DestroyPricing(t *testing.T) {
	t.Parallel()

	t.Run("unreferenced row is hard deleted", func(t *testing.T) {
		svc, repo, sink := newPricingFixture(t)
		seedPricing(repo, "tp-1", -time.Hour, time.Hour, 1000, domain.PricingStatusPublished, false)

		require.NoError(t, svc.DestroyPricing(context.Background(), "tp-1", "admin-1"))

		_, exists := repo.pricing["tp-1"]
		assert.False(t, exists)
		assert.Equal(t, []string{audit.TypeTicketPricingDeleted}, sink.types())
	})

	t.Run("referenced row is soft deleted", func(t *testing.T) {
		svc, repo, sink := newPricingFixture(t)
		seedPricing(repo, "tp-1", -time.Hour, time.Hour, 1000, domain.PricingStatusPublished, false)
		repo.refs["tp-1"] = 1

		require.NoError(t, svc.DestroyPricing(context.Background(), "tp-1", "admin-1"))

		kept, exists := repo.pricing["tp-1"]
		require.True(t, exists)
		assert.Equal(t, domain.PricingStatusDeleted, kept.Status)
		assert.Equal(t, int64(1000), kept.PriceInCents)
		assert.Equal(t, []string{audit.TypeTicketPricingDeleted}, sink.types())
	})
}

func TestPricingService_StartSales(t *testing.T) {
	t.Parallel()

	t.Run("future start is pulled to now", func(t *testing.T) {
		svc, repo, sink := newPricingFixture(t)
		seedPricing(repo, "tp-1", 24*time.Hour, 48*time.Hour, 1000, domain.PricingStatusPublished, false)

		require.NoError(t, svc.StartSales(context.Background(), "tp-1", "admin-1"))

		assert.True(t, repo.pricing["tp-1"].StartDate.Equal(testNow))
		require.Equal(t, []string{audit.TypeTicketPricingSalesStarted}, sink.types())
		payload, ok := sink.events[0].Payload.(map[string]any)
		require.True(t, ok)
		assert.NotNil(t, payload["old_start_date"])
		assert.NotNil(t, payload["new_start_date"])
	})

	t.Run("already started is a no-op", func(t *testing.T) {
		svc, repo, sink := newPricingFixture(t)
		seedPricing(repo, "tp-1", -time.Hour, time.Hour, 1000, domain.PricingStatusPublished, false)

		require.NoError(t, svc.StartSales(context.Background(), "tp-1", "admin-1"))

		assert.True(t, repo.pricing["tp-1"].StartDate.Equal(testNow.Add(-time.Hour)))
		assert.Empty(t, sink.events)
	})
}

// Invariant A: arbitrary sequences of create/update/destroy never leave two
// active rows of one channel overlapping.
func TestPricingService_NoOverlapInvariant(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newPricingFixture(t)

	checkInvariant := func(t *testing.T) {
		t.Helper()
		var active []domain.TicketPricing
		for _, p := range repo.pricing {
			if p.Status.Active() {
				active = append(active, p)
			}
		}
		for i := range active {
			for j := i + 1; j < len(active); j++ {
				a, b := active[i], active[j]
				if a.IsBoxOfficeOnly != b.IsBoxOfficeOnly || a.Status != b.Status {
					continue
				}
				if a.StartDate.Before(b.EndDate) && b.StartDate.Before(a.EndDate) {
					t.Fatalf("overlap between %s and %s", a.ID, b.ID)
				}
			}
		}
	}

	first, err := svc.CreatePricing(context.Background(), CreatePricingInput{
		TicketTypeID: "tt-1", Name: "Early", PriceInCents: 1000,
		StartDate: testNow, EndDate: testNow.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	checkInvariant(t)

	_, err = svc.CreatePricing(context.Background(), CreatePricingInput{
		TicketTypeID: "tt-1", Name: "Late", PriceInCents: 2000,
		StartDate: testNow.Add(24 * time.Hour), EndDate: testNow.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	checkInvariant(t)

	// Overlapping create is rejected, state unchanged.
	_, err = svc.CreatePricing(context.Background(), CreatePricingInput{
		TicketTypeID: "tt-1", Name: "Clash", PriceInCents: 1500,
		StartDate: testNow.Add(12 * time.Hour), EndDate: testNow.Add(36 * time.Hour),
	})
	require.Error(t, err)
	checkInvariant(t)

	// Fork under reference keeps the invariant: old row leaves the active
	// set as the fork enters it.
	repo.refs[first.ID] = 1
	price := int64(1100)
	_, err = svc.UpdatePricing(context.Background(), first.ID, domain.PricingAttributes{PriceInCents: &price}, "admin-1")
	require.NoError(t, err)
	checkInvariant(t)
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mikethetike/bn-api/internal/domain"
)

type PricingRepository struct {
	pool *pgxpool.Pool
}

func NewPricingRepository(pool *pgxpool.Pool) *PricingRepository {
	return &PricingRepository{pool: pool}
}

func (r *PricingRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *PricingRepository) CreateTicketType(ctx context.Context, tt domain.TicketType) error {
	const stmt = `
INSERT INTO ticket_types (id, event_id, name, capacity, start_date, end_date, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.exec(ctx, stmt, tt.ID, tt.EventID, tt.Name, tt.Capacity, tt.StartDate, tt.EndDate, tt.CreatedAt)
	if err != nil {
		return fmt.Errorf("create ticket type: %w", err)
	}
	return nil
}

func (r *PricingRepository) GetTicketType(ctx context.Context, id string) (domain.TicketType, error) {
	const query = `
SELECT id, event_id, name, capacity, start_date, end_date, created_at
FROM ticket_types
WHERE id = $1`

	var tt domain.TicketType
	err := r.queryRow(ctx, query, id).
		Scan(&tt.ID, &tt.EventID, &tt.Name, &tt.Capacity, &tt.StartDate, &tt.EndDate, &tt.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.TicketType{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.TicketType{}, domain.ErrTicketTypeNotFound
		}
		return domain.TicketType{}, fmt.Errorf("get ticket type: %w", err)
	}
	return tt, nil
}

const pricingColumns = `id, ticket_type_id, name, status, price_in_cents, start_date, end_date,
is_box_office_only, COALESCE(previous_pricing_id::text, ''), created_at, updated_at`

func scanPricing(row pgx.Row) (domain.TicketPricing, error) {
	var p domain.TicketPricing
	var status string
	err := row.Scan(&p.ID, &p.TicketTypeID, &p.Name, &status, &p.PriceInCents,
		&p.StartDate, &p.EndDate, &p.IsBoxOfficeOnly, &p.PreviousPricingID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.TicketPricing{}, err
	}
	p.Status = domain.PricingStatus(status)
	return p, nil
}

func (r *PricingRepository) GetPricing(ctx context.Context, id string) (domain.TicketPricing, error) {
	return r.getPricing(ctx, id, "")
}

func (r *PricingRepository) GetPricingForUpdate(ctx context.Context, id string) (domain.TicketPricing, error) {
	return r.getPricing(ctx, id, " FOR UPDATE")
}

func (r *PricingRepository) getPricing(ctx context.Context, id, lock string) (domain.TicketPricing, error) {
	query := `SELECT ` + pricingColumns + ` FROM ticket_pricing WHERE id = $1` + lock

	p, err := scanPricing(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.TicketPricing{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.TicketPricing{}, domain.ErrPricingNotFound
		}
		return domain.TicketPricing{}, fmt.Errorf("get ticket pricing: %w", err)
	}
	return p, nil
}

func (r *PricingRepository) ListPricingByTicketType(ctx context.Context, ticketTypeID string) ([]domain.TicketPricing, error) {
	query := `
SELECT ` + pricingColumns + `
FROM ticket_pricing
WHERE ticket_type_id = $1
ORDER BY start_date, created_at`

	return r.listPricing(ctx, query, ticketTypeID)
}

func (r *PricingRepository) ListPricingInWindow(ctx context.Context, ticketTypeID string, status domain.PricingStatus, now time.Time) ([]domain.TicketPricing, error) {
	query := `
SELECT ` + pricingColumns + `
FROM ticket_pricing
WHERE ticket_type_id = $1
  AND status = $2
  AND start_date <= $3
  AND end_date > $3
ORDER BY is_box_office_only DESC, start_date`

	return r.listPricing(ctx, query, ticketTypeID, string(status), now)
}

func (r *PricingRepository) listPricing(ctx context.Context, query string, args ...any) ([]domain.TicketPricing, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list ticket pricing: %w", err)
	}
	defer rows.Close()

	var out []domain.TicketPricing
	for rows.Next() {
		p, err := scanPricing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket pricing: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list ticket pricing: %w", err)
	}
	return out, nil
}

// HasOverlappingPeriod checks the non-overlap invariant within one sales
// channel: only rows sharing p's is_box_office_only flag and default-ness
// count. The exclusion constraint enforces the same rule at write time;
// this gives the service a friendlier error first.
func (r *PricingRepository) HasOverlappingPeriod(ctx context.Context, p domain.TicketPricing) (bool, error) {
	const query = `
SELECT EXISTS (
	SELECT 1 FROM ticket_pricing
	WHERE ticket_type_id = $1
	  AND id <> $2
	  AND status IN ('published', 'default')
	  AND is_box_office_only = $3
	  AND (status = 'default') = $4
	  AND start_date < $6
	  AND end_date > $5
)`

	var exists bool
	err := r.queryRow(ctx, query, p.TicketTypeID, p.ID, p.IsBoxOfficeOnly,
		p.Status == domain.PricingStatusDefault, p.StartDate, p.EndDate).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check overlapping pricing: %w", err)
	}
	return exists, nil
}

func (r *PricingRepository) CountOrderItemsForPricing(ctx context.Context, pricingID string) (int, error) {
	const query = `SELECT COUNT(*) FROM order_items WHERE ticket_pricing_id = $1`

	var n int
	if err := r.queryRow(ctx, query, pricingID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count order items for pricing: %w", err)
	}
	return n, nil
}

func (r *PricingRepository) InsertPricing(ctx context.Context, p domain.TicketPricing) error {
	const stmt = `
INSERT INTO ticket_pricing
	(id, ticket_type_id, name, status, price_in_cents, start_date, end_date,
	 is_box_office_only, previous_pricing_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, '')::uuid, $10, $11)`

	_, err := r.exec(ctx, stmt, p.ID, p.TicketTypeID, p.Name, string(p.Status), p.PriceInCents,
		p.StartDate, p.EndDate, p.IsBoxOfficeOnly, p.PreviousPricingID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isExclusionViolation(err) {
			return domain.ErrOverlappingPeriods()
		}
		return fmt.Errorf("insert ticket pricing: %w", err)
	}
	return nil
}

func (r *PricingRepository) UpdatePricing(ctx context.Context, p domain.TicketPricing) error {
	const stmt = `
UPDATE ticket_pricing
SET name = $2, status = $3, price_in_cents = $4, start_date = $5, end_date = $6,
    is_box_office_only = $7, updated_at = $8
WHERE id = $1`

	tag, err := r.exec(ctx, stmt, p.ID, p.Name, string(p.Status), p.PriceInCents,
		p.StartDate, p.EndDate, p.IsBoxOfficeOnly, p.UpdatedAt)
	if err != nil {
		if isExclusionViolation(err) {
			return domain.ErrOverlappingPeriods()
		}
		return fmt.Errorf("update ticket pricing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPricingNotFound
	}
	return nil
}

func (r *PricingRepository) UpdatePricingStatus(ctx context.Context, id string, status domain.PricingStatus, now time.Time) error {
	const stmt = `UPDATE ticket_pricing SET status = $2, updated_at = $3 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, id, string(status), now)
	if err != nil {
		return fmt.Errorf("update ticket pricing status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPricingNotFound
	}
	return nil
}

func (r *PricingRepository) UpdatePricingStartDate(ctx context.Context, id string, start, now time.Time) error {
	const stmt = `UPDATE ticket_pricing SET start_date = $2, updated_at = $3 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, id, start, now)
	if err != nil {
		if isExclusionViolation(err) {
			return domain.ErrOverlappingPeriods()
		}
		return fmt.Errorf("update ticket pricing start date: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPricingNotFound
	}
	return nil
}

func (r *PricingRepository) DeletePricing(ctx context.Context, id string) error {
	const stmt = `DELETE FROM ticket_pricing WHERE id = $1`

	tag, err := r.exec(ctx, stmt, id)
	if err != nil {
		return fmt.Errorf("delete ticket pricing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPricingNotFound
	}
	return nil
}

func (r *PricingRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *PricingRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *PricingRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

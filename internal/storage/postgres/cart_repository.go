package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mikethetike/bn-api/internal/domain"
)

type CartRepository struct {
	pool *pgxpool.Pool
}

func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

func (r *CartRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const orderColumns = `id, COALESCE(user_id::text, ''), status, paid_at, created_at, updated_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var status string
	err := row.Scan(&o.ID, &o.UserID, &status, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func (r *CartRepository) FindDraftOrderByUser(ctx context.Context, userID string) (*domain.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 AND status = 'draft'`

	o, err := scanOrder(r.queryRow(ctx, query, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find draft order: %w", err)
	}
	return &o, nil
}

func (r *CartRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	const stmt = `
INSERT INTO orders (id, user_id, status, created_at, updated_at)
VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5)`

	_, err := r.exec(ctx, stmt, order.ID, order.UserID, string(order.Status), order.CreatedAt, order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDraftOrderExists
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *CartRepository) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(r.queryRow(ctx, query, orderID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Order{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

const orderItemColumns = `id, order_id, ticket_type_id, ticket_pricing_id, quantity, created_at`

func scanOrderItem(row pgx.Row) (domain.OrderItem, error) {
	var it domain.OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.TicketTypeID, &it.TicketPricingID, &it.Quantity, &it.CreatedAt)
	return it, err
}

func (r *CartRepository) FindOrderItem(ctx context.Context, orderID, itemID string) (*domain.OrderItem, error) {
	const query = `SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 AND id = $2`

	it, err := scanOrderItem(r.queryRow(ctx, query, orderID, itemID))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find order item: %w", err)
	}
	return &it, nil
}

func (r *CartRepository) FindOrderItemByPricing(ctx context.Context, orderID, pricingID string) (*domain.OrderItem, error) {
	const query = `SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 AND ticket_pricing_id = $2`

	it, err := scanOrderItem(r.queryRow(ctx, query, orderID, pricingID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find order item by pricing: %w", err)
	}
	return &it, nil
}

func (r *CartRepository) InsertOrderItem(ctx context.Context, item domain.OrderItem) error {
	const stmt = `
INSERT INTO order_items (id, order_id, ticket_type_id, ticket_pricing_id, quantity, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.exec(ctx, stmt, item.ID, item.OrderID, item.TicketTypeID, item.TicketPricingID, item.Quantity, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}
	return nil
}

func (r *CartRepository) UpdateOrderItemQuantity(ctx context.Context, itemID string, quantity int) error {
	const stmt = `UPDATE order_items SET quantity = $2 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, itemID, quantity)
	if err != nil {
		return fmt.Errorf("update order item quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderItemNotFound
	}
	return nil
}

func (r *CartRepository) DeleteOrderItem(ctx context.Context, itemID string) error {
	const stmt = `DELETE FROM order_items WHERE id = $1`

	tag, err := r.exec(ctx, stmt, itemID)
	if err != nil {
		return fmt.Errorf("delete order item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderItemNotFound
	}
	return nil
}

// ListOrderItemsDetailed joins each line with its pinned price so cart
// totals stay reproducible after later pricing forks.
func (r *CartRepository) ListOrderItemsDetailed(ctx context.Context, orderID string) ([]domain.DisplayOrderItem, error) {
	const query = `
SELECT oi.id, oi.order_id, oi.ticket_type_id, oi.ticket_pricing_id, oi.quantity, oi.created_at,
       tt.name, tp.price_in_cents
FROM order_items oi
JOIN ticket_types tt ON tt.id = oi.ticket_type_id
JOIN ticket_pricing tp ON tp.id = oi.ticket_pricing_id
WHERE oi.order_id = $1
ORDER BY oi.created_at`

	rows, err := r.query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var out []domain.DisplayOrderItem
	for rows.Next() {
		var d domain.DisplayOrderItem
		err := rows.Scan(&d.ID, &d.OrderID, &d.TicketTypeID, &d.TicketPricingID, &d.Quantity, &d.CreatedAt,
			&d.TicketTypeName, &d.UnitPriceInCents)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return out, nil
}

func (r *CartRepository) GetTicketType(ctx context.Context, id string) (domain.TicketType, error) {
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

func (r *CartRepository) SoldQuantity(ctx context.Context, ticketTypeID string) (int, error) {
	const query = `
SELECT COALESCE(SUM(oi.quantity), 0)
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE oi.ticket_type_id = $1
  AND o.status <> 'cancelled'`

	var n int
	if err := r.queryRow(ctx, query, ticketTypeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("sum sold quantity: %w", err)
	}
	return n, nil
}

func (r *CartRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *CartRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *CartRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mikethetike/bn-api/internal/domain"
)

type RefundRepository struct {
	pool *pgxpool.Pool
}

func NewRefundRepository(pool *pgxpool.Pool) *RefundRepository {
	return &RefundRepository{pool: pool}
}

func (r *RefundRepository) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
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

func (r *RefundRepository) InsertRefund(ctx context.Context, refund domain.Refund) error {
	const stmt = `
INSERT INTO refunds (id, order_id, user_id, created_at)
VALUES ($1, $2, $3, $4)`

	_, err := r.exec(ctx, stmt, refund.ID, refund.OrderID, refund.UserID, refund.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert refund: %w", err)
	}
	return nil
}

func (r *RefundRepository) GetRefund(ctx context.Context, refundID string) (domain.Refund, error) {
	const query = `SELECT id, order_id, user_id, created_at FROM refunds WHERE id = $1`

	var refund domain.Refund
	err := r.queryRow(ctx, query, refundID).
		Scan(&refund.ID, &refund.OrderID, &refund.UserID, &refund.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Refund{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Refund{}, domain.ErrRefundNotFound
		}
		return domain.Refund{}, fmt.Errorf("get refund: %w", err)
	}
	return refund, nil
}

func (r *RefundRepository) ListRefundItems(ctx context.Context, refundID string) ([]domain.RefundItem, error) {
	const query = `
SELECT id, refund_id, order_item_id, quantity, amount_in_cents
FROM refund_items
WHERE refund_id = $1
ORDER BY id`

	rows, err := r.query(ctx, query, refundID)
	if err != nil {
		return nil, fmt.Errorf("list refund items: %w", err)
	}
	defer rows.Close()

	var out []domain.RefundItem
	for rows.Next() {
		var it domain.RefundItem
		if err := rows.Scan(&it.ID, &it.RefundID, &it.OrderItemID, &it.Quantity, &it.AmountInCents); err != nil {
			return nil, fmt.Errorf("scan refund item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list refund items: %w", err)
	}
	return out, nil
}

func (r *RefundRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *RefundRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *RefundRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

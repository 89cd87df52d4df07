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

type CheckoutRepository struct {
	pool *pgxpool.Pool
}

func NewCheckoutRepository(pool *pgxpool.Pool) *CheckoutRepository {
	return &CheckoutRepository{pool: pool}
}

func (r *CheckoutRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *CheckoutRepository) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return r.getOrder(ctx, orderID, "")
}

func (r *CheckoutRepository) GetOrderForUpdate(ctx context.Context, orderID string) (domain.Order, error) {
	return r.getOrder(ctx, orderID, " FOR UPDATE")
}

func (r *CheckoutRepository) getOrder(ctx context.Context, orderID, lock string) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1` + lock

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

// MarkOrderPaid moves a draft order to paid. The status guard in the WHERE
// clause makes concurrent checkouts lose cleanly: false means the order
// was no longer draft.
func (r *CheckoutRepository) MarkOrderPaid(ctx context.Context, orderID string, paidAt time.Time) (bool, error) {
	const stmt = `
UPDATE orders
SET status = 'paid', paid_at = $2, updated_at = $2
WHERE id = $1 AND status = 'draft'`

	tag, err := r.exec(ctx, stmt, orderID, paidAt)
	if err != nil {
		return false, fmt.Errorf("mark order paid: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *CheckoutRepository) InsertPayment(ctx context.Context, p domain.Payment) error {
	const stmt = `
INSERT INTO payments
	(id, order_id, user_id, method, provider, amount_in_cents, external_id, status,
	 auth_response, capture_response, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.exec(ctx, stmt, p.ID, p.OrderID, p.UserID, string(p.Method), p.Provider,
		p.AmountInCents, p.ExternalID, string(p.Status), p.AuthResponse, p.CaptureResponse,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *CheckoutRepository) MarkPaymentCompleted(ctx context.Context, paymentID string, captureResponse []byte, now time.Time) error {
	const stmt = `
UPDATE payments
SET status = 'completed', capture_response = $2, updated_at = $3
WHERE id = $1`

	tag, err := r.exec(ctx, stmt, paymentID, captureResponse, now)
	if err != nil {
		return fmt.Errorf("mark payment completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *CheckoutRepository) InsertRefund(ctx context.Context, refund domain.Refund) error {
	const stmt = `
INSERT INTO refunds (id, order_id, user_id, created_at)
VALUES ($1, $2, $3, $4)`

	_, err := r.exec(ctx, stmt, refund.ID, refund.OrderID, refund.UserID, refund.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert refund: %w", err)
	}
	return nil
}

func (r *CheckoutRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *CheckoutRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

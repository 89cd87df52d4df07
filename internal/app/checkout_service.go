package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mikethetike/bn-api/internal/audit"
	"github.com/mikethetike/bn-api/internal/auth"
	"github.com/mikethetike/bn-api/internal/clock"
	"github.com/mikethetike/bn-api/internal/domain"
	"github.com/mikethetike/bn-api/internal/payment"
)

type CheckoutRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	GetOrderForUpdate(ctx context.Context, orderID string) (domain.Order, error)
	// MarkOrderPaid transitions draft to paid; false means the order was no
	// longer draft, which is how a concurrent second checkout loses.
	MarkOrderPaid(ctx context.Context, orderID string, paidAt time.Time) (bool, error)
	InsertPayment(ctx context.Context, p domain.Payment) error
	MarkPaymentCompleted(ctx context.Context, paymentID string, captureResponse []byte, now time.Time) error
	InsertRefund(ctx context.Context, r domain.Refund) error
}

// ScopeChecker is the authorization collaborator boundary: a yes/no
// capability answer for the current caller.
type ScopeChecker interface {
	HasScope(ctx context.Context, scope string) bool
}

// CheckoutService coordinates a local order transition with the external
// payment gateway. The gateway cannot join local transactions, so the card
// path is a saga: authorize, commit locally, capture in a second
// transaction, with a gateway reversal as the single compensating action.
type CheckoutService struct {
	repo     CheckoutRepository
	gateway  payment.Gateway
	scopes   ScopeChecker
	clock    clock.Clock
	audit    audit.Sink
	logger   *log.Logger
	currency string
	provider string
}

func NewCheckoutService(repo CheckoutRepository, gw payment.Gateway, scopes ScopeChecker, clk clock.Clock, sink audit.Sink, logger *log.Logger, currency, provider string) *CheckoutService {
	if logger == nil {
		logger = log.Default()
	}
	if sink == nil {
		sink = audit.NewLogSink(logger)
	}
	if currency == "" {
		currency = "usd"
	}
	if provider == "" {
		provider = "stripe"
	}
	return &CheckoutService{
		repo:     repo,
		gateway:  gw,
		scopes:   scopes,
		clock:    clk,
		audit:    sink,
		logger:   logger,
		currency: currency,
		provider: provider,
	}
}

const chargeDescription = "Event tickets"

type ExternalCheckoutInput struct {
	OrderID       string
	Reference     string
	AmountInCents int64
	ActingUserID  string
}

// CheckoutExternal records an offline payment. Privileged callers only; no
// gateway is involved, so failure is a plain rollback.
func (s *CheckoutService) CheckoutExternal(ctx context.Context, in ExternalCheckoutInput) (domain.Payment, error) {
	if !s.scopes.HasScope(ctx, auth.ScopeExternalPayment) {
		return domain.Payment{}, domain.ErrForbidden
	}

	now := s.clock.Now()
	pay := domain.Payment{
		ID:            uuid.NewString(),
		OrderID:       in.OrderID,
		UserID:        in.ActingUserID,
		Method:        domain.PaymentMethodExternal,
		Provider:      "external",
		AmountInCents: in.AmountInCents,
		ExternalID:    in.Reference,
		Status:        domain.PaymentStatusCompleted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.repo.GetOrderForUpdate(txCtx, in.OrderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusDraft {
			return domain.ErrOrderNotDraft
		}
		if err := s.repo.InsertPayment(txCtx, pay); err != nil {
			return err
		}
		ok, err := s.repo.MarkOrderPaid(txCtx, in.OrderID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrOrderNotDraft
		}
		return nil
	})
	if err != nil {
		return domain.Payment{}, err
	}

	s.publish(ctx, audit.Event{
		Type:        audit.TypePaymentCreated,
		Description: fmt.Sprintf("External payment recorded for order %s", in.OrderID),
		Table:       audit.TablePayments,
		RowID:       pay.ID,
		UserID:      in.ActingUserID,
		Payload:     map[string]any{"reference": in.Reference, "amount_in_cents": in.AmountInCents},
	})
	s.publishOrderPaid(ctx, in.OrderID, in.ActingUserID)
	return pay, nil
}

type CardCheckoutInput struct {
	OrderID       string
	Token         string
	AmountInCents int64
	ActingUserID  string
}

// CheckoutCard runs the gateway saga:
//
//	authorize -> [tx: payment row + draft->paid] -> commit -> [tx2: capture]
//
// A failure before the first commit reverses the authorization and leaves
// the order draft. A capture failure reverses the charge but leaves the
// order paid with the payment authorized; that partial state is durable
// and waits for operator reconciliation.
func (s *CheckoutService) CheckoutCard(ctx context.Context, in CardCheckoutInput) (domain.Payment, error) {
	order, err := s.repo.GetOrder(ctx, in.OrderID)
	if err != nil {
		return domain.Payment{}, err
	}
	if order.UserID == "" || order.UserID != in.ActingUserID {
		return domain.Payment{}, domain.ErrForbidden
	}
	if order.Status != domain.OrderStatusDraft {
		return domain.Payment{}, domain.ErrOrderNotDraft
	}

	authRes, err := s.gateway.Authorize(ctx, in.Token, in.AmountInCents, s.currency, chargeDescription, map[string]string{
		"order_id": in.OrderID,
	})
	if err != nil {
		// Nothing was created locally or remotely worth keeping; a timeout
		// counts as failure too.
		return domain.Payment{}, fmt.Errorf("authorize order %s: %w", in.OrderID, err)
	}

	now := s.clock.Now()
	pay := domain.Payment{
		ID:            uuid.NewString(),
		OrderID:       in.OrderID,
		UserID:        in.ActingUserID,
		Method:        domain.PaymentMethodCard,
		Provider:      s.provider,
		AmountInCents: in.AmountInCents,
		ExternalID:    authRes.ExternalID,
		Status:        domain.PaymentStatusAuthorized,
		AuthResponse:  authRes.Raw,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.InsertPayment(txCtx, pay); err != nil {
			return err
		}
		ok, err := s.repo.MarkOrderPaid(txCtx, in.OrderID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrOrderNotDraft
		}
		return nil
	})
	if err != nil {
		// The authorization must not dangle at the gateway when the local
		// write is lost.
		s.compensate(ctx, in.OrderID, authRes.ExternalID, in.ActingUserID)
		return domain.Payment{}, fmt.Errorf("record payment for order %s: %w", in.OrderID, err)
	}

	s.publish(ctx, audit.Event{
		Type:        audit.TypePaymentCreated,
		Description: fmt.Sprintf("Card payment authorized for order %s", in.OrderID),
		Table:       audit.TablePayments,
		RowID:       pay.ID,
		UserID:      in.ActingUserID,
		Payload:     map[string]any{"external_id": pay.ExternalID, "amount_in_cents": in.AmountInCents},
	})
	s.publishOrderPaid(ctx, in.OrderID, in.ActingUserID)

	// The order/payment state above is committed; capture runs in its own
	// transaction so its failure cannot roll that back.
	capRes, err := s.gateway.Capture(ctx, authRes.ExternalID)
	if err != nil {
		s.compensate(ctx, in.OrderID, authRes.ExternalID, in.ActingUserID)
		return domain.Payment{}, fmt.Errorf("capture order %s: %w", in.OrderID, err)
	}

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.MarkPaymentCompleted(txCtx, pay.ID, capRes.Raw, s.clock.Now())
	})
	if err != nil {
		s.compensate(ctx, in.OrderID, authRes.ExternalID, in.ActingUserID)
		return domain.Payment{}, fmt.Errorf("complete payment for order %s: %w", in.OrderID, err)
	}

	pay.Status = domain.PaymentStatusCompleted
	pay.CaptureResponse = capRes.Raw
	s.publish(ctx, audit.Event{
		Type:        audit.TypePaymentCompleted,
		Description: fmt.Sprintf("Card payment captured for order %s", in.OrderID),
		Table:       audit.TablePayments,
		RowID:       pay.ID,
		UserID:      in.ActingUserID,
	})
	return pay, nil
}

// compensate reverses the authorization at the gateway and writes the
// refund ledger row recording that a reversal was issued. It runs on a
// context detached from the request's cancellation: compensation must not
// be skipped because the caller went away. Its own failures are logged and
// never mask the error that triggered it.
func (s *CheckoutService) compensate(ctx context.Context, orderID, externalID, actingUserID string) {
	ctx = context.WithoutCancel(ctx)

	if err := s.gateway.Reverse(ctx, externalID); err != nil {
		s.logger.Printf("ERROR: reversal of %s for order %s failed, manual reconciliation required: %v", externalID, orderID, err)
	} else {
		s.publish(ctx, audit.Event{
			Type:        audit.TypePaymentReversed,
			Description: fmt.Sprintf("Authorization %s reversed for order %s", externalID, orderID),
			Table:       audit.TableOrders,
			RowID:       orderID,
			UserID:      actingUserID,
		})
	}

	refund := domain.Refund{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		UserID:    actingUserID,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertRefund(ctx, refund); err != nil {
		s.logger.Printf("ERROR: refund record for order %s failed: %v", orderID, err)
		return
	}
	s.publish(ctx, audit.Event{
		Type:        audit.TypeRefundCreated,
		Description: fmt.Sprintf("Refund recorded for order %s", orderID),
		Table:       audit.TableRefunds,
		RowID:       refund.ID,
		UserID:      actingUserID,
	})
}

func (s *CheckoutService) publishOrderPaid(ctx context.Context, orderID, actingUserID string) {
	s.publish(ctx, audit.Event{
		Type:        audit.TypeOrderPaid,
		Description: fmt.Sprintf("Order %s paid", orderID),
		Table:       audit.TableOrders,
		RowID:       orderID,
		UserID:      actingUserID,
	})
}

func (s *CheckoutService) publish(ctx context.Context, e audit.Event) {
	if err := s.audit.Publish(ctx, e); err != nil {
		s.logger.Printf("WARN: audit publish %s for %s failed: %v", e.Type, e.RowID, err)
	}
}

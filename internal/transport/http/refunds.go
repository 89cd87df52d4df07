package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mikethetike/bn-api/internal/auth"
	"github.com/mikethetike/bn-api/internal/domain"
)

// RefundService is the slice of the refund ledger the HTTP layer needs.
type RefundService interface {
	Create(ctx context.Context, orderID, actingUserID string) (domain.Refund, error)
	Find(ctx context.Context, refundID string) (domain.Refund, error)
	Items(ctx context.Context, refundID string) ([]domain.RefundItem, error)
}

type refundResponse struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type refundItemResponse struct {
	ID            string `json:"id"`
	OrderItemID   string `json:"order_item_id"`
	Quantity      int    `json:"quantity"`
	AmountInCents int64  `json:"amount_in_cents"`
}

// HandleOrderRefunds records a refund ledger row for one order, path
// /admin/orders/{id}/refunds.
func HandleOrderRefunds(svc RefundService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, ok := parseOrderRefundsPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		refund, err := svc.Create(r.Context(), orderID, auth.UserIDFromContext(r.Context()))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(refundResponse{
			ID:        refund.ID,
			OrderID:   refund.OrderID,
			UserID:    refund.UserID,
			CreatedAt: refund.CreatedAt,
		})
	}
}

// HandleRefund serves one refund with its items, path /admin/refunds/{id}.
func HandleRefund(svc RefundService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refundID, ok := parseRefundPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		refund, err := svc.Find(r.Context(), refundID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		items, err := svc.Items(r.Context(), refundID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		itemResp := make([]refundItemResponse, 0, len(items))
		for _, item := range items {
			itemResp = append(itemResp, refundItemResponse{
				ID:            item.ID,
				OrderItemID:   item.OrderItemID,
				Quantity:      item.Quantity,
				AmountInCents: item.AmountInCents,
			})
		}

		resp := struct {
			refundResponse
			Items []refundItemResponse `json:"items"`
		}{
			refundResponse: refundResponse{
				ID:        refund.ID,
				OrderID:   refund.OrderID,
				UserID:    refund.UserID,
				CreatedAt: refund.CreatedAt,
			},
			Items: itemResp,
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func parseOrderRefundsPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 {
		return "", false
	}
	if parts[0] != "admin" || parts[1] != "orders" || parts[3] != "refunds" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

func parseRefundPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 {
		return "", false
	}
	if parts[0] != "admin" || parts[1] != "refunds" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

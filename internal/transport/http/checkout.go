package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mikethetike/bn-api/internal/app"
	"github.com/mikethetike/bn-api/internal/auth"
	"github.com/mikethetike/bn-api/internal/domain"
)

// CheckoutService is the slice of the payment saga the HTTP layer needs.
type CheckoutService interface {
	CheckoutExternal(ctx context.Context, in app.ExternalCheckoutInput) (domain.Payment, error)
	CheckoutCard(ctx context.Context, in app.CardCheckoutInput) (domain.Payment, error)
}

type checkoutMethod struct {
	Type      string `json:"type"`
	Reference string `json:"reference,omitempty"`
	Token     string `json:"token,omitempty"`
}

type checkoutRequest struct {
	AmountInCents int64          `json:"amount_in_cents"`
	Method        checkoutMethod `json:"method"`
}

type checkoutResponse struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// HandleCheckout runs the payment saga for one order, path
// /orders/{id}/checkout.
func HandleCheckout(svc CheckoutService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, ok := parseCheckoutPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req checkoutRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.AmountInCents <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "amount_in_cents must be positive")
			return
		}

		actingUserID := auth.UserIDFromContext(r.Context())

		var pay domain.Payment
		var err error
		switch req.Method.Type {
		case "external":
			if req.Method.Reference == "" {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "method.reference is required")
				return
			}
			pay, err = svc.CheckoutExternal(r.Context(), app.ExternalCheckoutInput{
				OrderID:       orderID,
				Reference:     req.Method.Reference,
				AmountInCents: req.AmountInCents,
				ActingUserID:  actingUserID,
			})
		case "card":
			if req.Method.Token == "" {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "method.token is required")
				return
			}
			pay, err = svc.CheckoutCard(r.Context(), app.CardCheckoutInput{
				OrderID:       orderID,
				Token:         req.Method.Token,
				AmountInCents: req.AmountInCents,
				ActingUserID:  actingUserID,
			})
		default:
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "method.type must be external or card")
			return
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(checkoutResponse{
			PaymentID: pay.ID,
			Status:    string(pay.Status),
		})
	}
}

func parseCheckoutPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 {
		return "", false
	}
	if parts[0] != "orders" || parts[2] != "checkout" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

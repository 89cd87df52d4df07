package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mikethetike/bn-api/internal/domain"
	"github.com/mikethetike/bn-api/internal/payment"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeInvalidID            = "invalid_id"
	codeInvalidQuantity      = "invalid_quantity"
	codeUnauthorized         = "unauthorized"
	codeForbidden            = "forbidden"
	codeOrderNotFound        = "order_not_found"
	codeOrderNotDraft        = "order_not_draft"
	codeCartNotFound         = "cart_not_found"
	codeOrderItemNotFound    = "order_item_not_found"
	codeTicketTypeNotFound   = "ticket_type_not_found"
	codePricingNotFound      = "ticket_pricing_not_found"
	codeAmbiguousPricing     = "ticket_pricing_ambiguous"
	codeRefundNotFound       = "refund_not_found"
	codeInsufficientCapacity = "insufficient_capacity"
	codeCardDeclined         = "card_declined"
	codePaymentGateway       = "payment_gateway_error"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps service errors onto the JSON error envelope. Handlers
// route everything they did not map themselves through here.
func writeDomainError(w http.ResponseWriter, err error) {
	if ve, ok := domain.AsValidationError(err); ok {
		writeError(w, http.StatusUnprocessableEntity, ve.Code, ve.Message)
		return
	}

	var gwErr *payment.Error
	if errors.As(err, &gwErr) {
		if gwErr.Declined {
			writeError(w, http.StatusPaymentRequired, codeCardDeclined, gwErr.Message)
			return
		}
		writeError(w, http.StatusBadGateway, codePaymentGateway, "payment gateway error")
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, codeForbidden, err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, codeOrderNotFound, err.Error())
	case errors.Is(err, domain.ErrCartNotFound):
		writeError(w, http.StatusNotFound, codeCartNotFound, err.Error())
	case errors.Is(err, domain.ErrOrderItemNotFound):
		writeError(w, http.StatusNotFound, codeOrderItemNotFound, err.Error())
	case errors.Is(err, domain.ErrTicketTypeNotFound):
		writeError(w, http.StatusNotFound, codeTicketTypeNotFound, err.Error())
	case errors.Is(err, domain.ErrPricingNotFound):
		writeError(w, http.StatusNotFound, codePricingNotFound, err.Error())
	case errors.Is(err, domain.ErrRefundNotFound):
		writeError(w, http.StatusNotFound, codeRefundNotFound, err.Error())
	case errors.Is(err, domain.ErrOrderNotDraft):
		writeError(w, http.StatusConflict, codeOrderNotDraft, err.Error())
	case errors.Is(err, domain.ErrAmbiguousPricing):
		writeError(w, http.StatusConflict, codeAmbiguousPricing, err.Error())
	case errors.Is(err, domain.ErrInsufficientCapacity):
		writeError(w, http.StatusConflict, codeInsufficientCapacity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

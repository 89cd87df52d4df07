package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderNotDraft        = errors.New("order is not in draft status")
	ErrCartNotFound         = errors.New("no cart exists for user")
	ErrOrderItemNotFound    = errors.New("cart does not contain order item")
	ErrTicketTypeNotFound   = errors.New("ticket type not found")
	ErrPricingNotFound      = errors.New("no ticket pricing found")
	ErrAmbiguousPricing     = errors.New("expected a single ticket pricing period but multiple were found")
	ErrRefundNotFound       = errors.New("refund not found")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidID            = errors.New("invalid id")
	ErrForbidden            = errors.New("forbidden")
	ErrDraftOrderExists     = errors.New("draft order already exists for user")
)

// ValidationError is a field-scoped, recoverable failure with a
// machine-readable reason code. It is returned to the caller and never
// retried.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Field, e.Message, e.Code)
}

func NewValidationError(field, code, message string) *ValidationError {
	return &ValidationError{Field: field, Code: code, Message: message}
}

// AsValidationError unwraps err into a *ValidationError when possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

package domain

import (
	"encoding/json"
	"time"
)

type PaymentMethod string

const (
	// PaymentMethodExternal records an offline payment identified only by a
	// caller-supplied reference. No gateway round-trip is involved.
	PaymentMethodExternal PaymentMethod = "external"
	PaymentMethodCard     PaymentMethod = "card"
)

type PaymentStatus string

const (
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// Payment records one charge attempt against an order. The raw gateway
// payloads are kept opaque for audit.
type Payment struct {
	ID      string
	OrderID string
	// UserID is the caller that initiated the payment.
	UserID        string
	Method        PaymentMethod
	Provider      string
	AmountInCents int64
	// ExternalID is the gateway-assigned transaction id, or the manual
	// reference for external payments.
	ExternalID      string
	Status          PaymentStatus
	AuthResponse    json.RawMessage
	CaptureResponse json.RawMessage
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

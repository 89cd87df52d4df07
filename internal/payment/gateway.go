// Package payment talks to the external card gateway. The gateway cannot
// participate in local transactions; checkout treats every call here as a
// blocking boundary with its own failure handling.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
)

// AuthResult is a successful authorization: funds reserved, not yet
// captured.
type AuthResult struct {
	// ExternalID is the gateway-assigned id all later capture and reversal
	// calls correlate against.
	ExternalID string
	// Raw is the gateway's response body, persisted opaquely for audit.
	Raw json.RawMessage
}

// CaptureResult is a successful capture of a prior authorization.
type CaptureResult struct {
	Raw json.RawMessage
}

// Gateway is the two-step charge protocol plus the compensating reversal.
type Gateway interface {
	Authorize(ctx context.Context, token string, amountInCents int64, currency, description string, metadata map[string]string) (AuthResult, error)
	Capture(ctx context.Context, externalID string) (CaptureResult, error)
	Reverse(ctx context.Context, externalID string) error
}

// Error is a failed gateway call. Declined distinguishes the card being
// refused from transport and gateway-side faults.
type Error struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Declined   bool
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gateway %s: %s (%s)", e.Op, e.Message, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Package audit publishes domain events describing pricing mutations and
// checkout state transitions. The core emits and never reads back.
package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// Event types emitted by the core.
const (
	TypeTicketPricingCreated      = "ticket_pricing.created"
	TypeTicketPricingUpdated      = "ticket_pricing.updated"
	TypeTicketPricingDeleted      = "ticket_pricing.deleted"
	TypeTicketPricingSalesStarted = "ticket_pricing.sales_started"
	TypeOrderPaid                 = "order.paid"
	TypePaymentCreated            = "payment.created"
	TypePaymentCompleted          = "payment.completed"
	TypePaymentReversed           = "payment.reversed"
	TypeRefundCreated             = "refund.created"
)

// Tables identify the row an event is about.
const (
	TableTicketPricing = "ticket_pricing"
	TableOrders        = "orders"
	TablePayments      = "payments"
	TableRefunds       = "refunds"
)

// Event is one structured audit record.
type Event struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Table       string `json:"table"`
	RowID       string `json:"row_id"`
	// UserID is the acting user, empty for system actions.
	UserID  string `json:"user_id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Sink delivers events to an external collaborator.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// LogSink writes events as JSON lines to a standard logger. It is the
// development and test sink.
type LogSink struct {
	logger *log.Logger
}

func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, e Event) error {
	record := struct {
		Event
		At time.Time `json:"at"`
	}{Event: e, At: time.Now().UTC()}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	s.logger.Printf("audit %s", data)
	return nil
}

package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventAccountCreated       EventType = "AccountCreated"
	EventAccountStatusChanged EventType = "AccountStatusChanged"
	EventAccountDebited       EventType = "AccountDebited"
	EventAccountCredited      EventType = "AccountCredited"
	EventAccountClosed        EventType = "AccountClosed"
	EventPaymentCreated       EventType = "PaymentCreated"
	EventPaymentCompleted     EventType = "PaymentCompleted"
	EventPaymentFailed        EventType = "PaymentFailed"
	EventPaymentCancelled     EventType = "PaymentCancelled"
	EventPaymentStatusChanged EventType = "PaymentStatusChanged"
)

// IsPaymentEvent reports whether the event belongs on the payment stream.
func (t EventType) IsPaymentEvent() bool {
	return strings.HasPrefix(string(t), "Payment")
}

// Event is the payload emitted to the outbound event stream.
type Event struct {
	Type          EventType        `json:"type"`
	AggregateID   string           `json:"aggregate_id"`
	UserID        string           `json:"user_id,omitempty"`
	AccountID     string           `json:"account_id,omitempty"`
	PaymentID     string           `json:"payment_id,omitempty"`
	TransactionNo string           `json:"transaction_no,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Currency      Currency         `json:"currency,omitempty"`
	Reference     string           `json:"reference,omitempty"`
	Status        string           `json:"status,omitempty"`
	PreviousState string           `json:"previous_status,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

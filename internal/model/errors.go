package model

import (
	"errors"
	"fmt"
)

// ============================================================================
// Error taxonomy
// ============================================================================
//
// Every business failure surfaced by the ledger and the payment orchestrator
// belongs to exactly one Kind. Callers match with errors.Is against the kind
// sentinels (ErrNotFound, ErrInvalidState, ...) or against the specific
// sentinels below, which carry a kind of their own.
//
// ============================================================================

type Kind string

const (
	KindNotFound            Kind = "NOT_FOUND"
	KindInvalidState        Kind = "INVALID_STATE"
	KindInsufficientBalance Kind = "INSUFFICIENT_BALANCE"
	KindLimitExceeded       Kind = "LIMIT_EXCEEDED"
	KindValidation          Kind = "VALIDATION_ERROR"
	KindComplianceRejected  Kind = "COMPLIANCE_REJECTED"
	KindFraudRejected       Kind = "FRAUD_REJECTED"
	KindProcessing          Kind = "PROCESSING_ERROR"
)

// Error is a business error of a known Kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the bare sentinel of e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

func newKindError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Kind sentinels.
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrInvalidState        = &Error{Kind: KindInvalidState}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance}
	ErrLimitExceeded       = &Error{Kind: KindLimitExceeded}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrComplianceRejected  = &Error{Kind: KindComplianceRejected}
	ErrFraudRejected       = &Error{Kind: KindFraudRejected}
	ErrProcessing          = &Error{Kind: KindProcessing}
)

var (
	ErrAccountNotFound      = newKindError(KindNotFound, "account not found")
	ErrPaymentNotFound      = newKindError(KindNotFound, "payment not found")
	ErrTransactionNotFound  = newKindError(KindNotFound, "transaction not found")
	ErrAccountNotActive     = newKindError(KindInvalidState, "account is not active")
	ErrAccountClosed        = newKindError(KindInvalidState, "account is closed")
	ErrNonZeroBalance       = newKindError(KindInvalidState, "account balance is not zero")
	ErrPaymentStatusInvalid = newKindError(KindInvalidState, "payment status does not allow this operation")
	ErrRetryNotAllowed      = newKindError(KindInvalidState, "payment cannot be retried")
	ErrNotReversible        = newKindError(KindInvalidState, "transaction cannot be reversed")
	ErrBalanceNotEnough     = newKindError(KindInsufficientBalance, "insufficient balance")
	ErrReservedNotEnough    = newKindError(KindInsufficientBalance, "insufficient reserved balance")
	ErrDailyLimitExceeded   = newKindError(KindLimitExceeded, "daily limit exceeded")
	ErrMonthlyLimitExceeded = newKindError(KindLimitExceeded, "monthly limit exceeded")
	ErrInvalidAmount        = newKindError(KindValidation, "amount must be greater than zero")
	ErrCurrencyMismatch     = newKindError(KindValidation, "currency mismatch")
	ErrAmountPrecision      = newKindError(KindValidation, "amount is finer than the currency's minor unit")
	ErrDuplicatePayment     = newKindError(KindValidation, "payment id already used by a different request")
	ErrOptimisticLock       = newKindError(KindProcessing, "concurrent modification detected")
)

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// InvalidStatef builds an InvalidState error with a formatted message.
func InvalidStatef(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// NewProcessingError wraps a settlement failure.
func NewProcessingError(message string, cause error) error {
	return &Error{Kind: KindProcessing, Message: message, Err: cause}
}

// KindOf returns the kind of the outermost business error in err's chain,
// or "" for infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// Payment enums
// ============================================================================

type PaymentType string

const (
	PaymentTypeDomesticTransfer      PaymentType = "DOMESTIC_TRANSFER"
	PaymentTypeInternationalTransfer PaymentType = "INTERNATIONAL_TRANSFER"
	PaymentTypeSEPATransfer          PaymentType = "SEPA_TRANSFER"
	PaymentTypeSWIFTTransfer         PaymentType = "SWIFT_TRANSFER"
	PaymentTypeCardPayment           PaymentType = "CARD_PAYMENT"
	PaymentTypeCryptoPayment         PaymentType = "CRYPTO_PAYMENT"
	PaymentTypeBillPayment           PaymentType = "BILL_PAYMENT"
	PaymentTypeLoanPayment           PaymentType = "LOAN_PAYMENT"
	PaymentTypeInvestmentPayment     PaymentType = "INVESTMENT_PAYMENT"
	PaymentTypeSubscriptionPayment   PaymentType = "SUBSCRIPTION_PAYMENT"
	PaymentTypeRecurringPayment      PaymentType = "RECURRING_PAYMENT"
	PaymentTypeInstantPayment        PaymentType = "INSTANT_PAYMENT"
	PaymentTypeBatchPayment          PaymentType = "BATCH_PAYMENT"
)

func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeDomesticTransfer, PaymentTypeInternationalTransfer, PaymentTypeSEPATransfer,
		PaymentTypeSWIFTTransfer, PaymentTypeCardPayment, PaymentTypeCryptoPayment,
		PaymentTypeBillPayment, PaymentTypeLoanPayment, PaymentTypeInvestmentPayment,
		PaymentTypeSubscriptionPayment, PaymentTypeRecurringPayment, PaymentTypeInstantPayment,
		PaymentTypeBatchPayment:
		return true
	}
	return false
}

func ParsePaymentType(s string) (PaymentType, error) {
	t := PaymentType(s)
	if !t.Valid() {
		return "", Validationf("unknown payment type %q", s)
	}
	return t, nil
}

type PaymentMethod string

const (
	PaymentMethodBankTransfer  PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCard          PaymentMethod = "CARD"
	PaymentMethodCrypto        PaymentMethod = "CRYPTO"
	PaymentMethodCash          PaymentMethod = "CASH"
	PaymentMethodCheck         PaymentMethod = "CHECK"
	PaymentMethodWireTransfer  PaymentMethod = "WIRE_TRANSFER"
	PaymentMethodACH           PaymentMethod = "ACH"
	PaymentMethodSEPA          PaymentMethod = "SEPA"
	PaymentMethodSWIFT         PaymentMethod = "SWIFT"
	PaymentMethodMobilePayment PaymentMethod = "MOBILE_PAYMENT"
	PaymentMethodDigitalWallet PaymentMethod = "DIGITAL_WALLET"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodBankTransfer, PaymentMethodCard, PaymentMethodCrypto, PaymentMethodCash,
		PaymentMethodCheck, PaymentMethodWireTransfer, PaymentMethodACH, PaymentMethodSEPA,
		PaymentMethodSWIFT, PaymentMethodMobilePayment, PaymentMethodDigitalWallet:
		return true
	}
	return false
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(s)
	if !m.Valid() {
		return "", Validationf("unknown payment method %q", s)
	}
	return m, nil
}

type PaymentDirection string

const (
	PaymentDirectionOutbound PaymentDirection = "OUTBOUND"
	PaymentDirectionInbound  PaymentDirection = "INBOUND"
)

func (d PaymentDirection) Valid() bool {
	return d == PaymentDirectionOutbound || d == PaymentDirectionInbound
}

func ParsePaymentDirection(s string) (PaymentDirection, error) {
	d := PaymentDirection(s)
	if !d.Valid() {
		return "", Validationf("unknown payment direction %q", s)
	}
	return d, nil
}

type PaymentPriority string

const (
	PaymentPriorityLow    PaymentPriority = "LOW"
	PaymentPriorityNormal PaymentPriority = "NORMAL"
	PaymentPriorityHigh   PaymentPriority = "HIGH"
	PaymentPriorityUrgent PaymentPriority = "URGENT"
)

func (p PaymentPriority) Valid() bool {
	switch p {
	case PaymentPriorityLow, PaymentPriorityNormal, PaymentPriorityHigh, PaymentPriorityUrgent:
		return true
	}
	return false
}

func ParsePaymentPriority(s string) (PaymentPriority, error) {
	p := PaymentPriority(s)
	if !p.Valid() {
		return "", Validationf("unknown payment priority %q", s)
	}
	return p, nil
}

type PaymentStatus string

const (
	PaymentStatusPending         PaymentStatus = "PENDING"
	PaymentStatusProcessing      PaymentStatus = "PROCESSING"
	PaymentStatusComplianceCheck PaymentStatus = "COMPLIANCE_CHECK"
	PaymentStatusFraudCheck      PaymentStatus = "FRAUD_CHECK"
	PaymentStatusUnderReview     PaymentStatus = "UNDER_REVIEW"
	PaymentStatusCompleted       PaymentStatus = "COMPLETED"
	PaymentStatusFailed          PaymentStatus = "FAILED"
	PaymentStatusCancelled       PaymentStatus = "CANCELLED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusComplianceCheck,
		PaymentStatusFraudCheck, PaymentStatusUnderReview, PaymentStatusCompleted,
		PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	st := PaymentStatus(s)
	if !st.Valid() {
		return "", Validationf("unknown payment status %q", s)
	}
	return st, nil
}

// InFlight reports whether a processing run currently owns the payment.
func (s PaymentStatus) InFlight() bool {
	return s == PaymentStatusProcessing || s == PaymentStatusComplianceCheck || s == PaymentStatusFraudCheck
}

// CanTransitionPayment is the payment state machine.
//
//	PENDING -> PROCESSING -> COMPLETED | FAILED
//	PROCESSING <-> COMPLIANCE_CHECK | FRAUD_CHECK, either may land on UNDER_REVIEW or FAILED
//	FAILED -> PENDING (retry)
//	PENDING | FAILED | UNDER_REVIEW -> CANCELLED
func CanTransitionPayment(from, to PaymentStatus) bool {
	switch from {
	case PaymentStatusPending:
		return to == PaymentStatusProcessing || to == PaymentStatusCancelled
	case PaymentStatusProcessing:
		return to == PaymentStatusComplianceCheck || to == PaymentStatusFraudCheck ||
			to == PaymentStatusUnderReview || to == PaymentStatusCompleted || to == PaymentStatusFailed
	case PaymentStatusComplianceCheck, PaymentStatusFraudCheck:
		return to == PaymentStatusProcessing || to == PaymentStatusUnderReview || to == PaymentStatusFailed
	case PaymentStatusUnderReview:
		return to == PaymentStatusPending || to == PaymentStatusFailed || to == PaymentStatusCancelled
	case PaymentStatusFailed:
		return to == PaymentStatusPending || to == PaymentStatusCancelled
	case PaymentStatusCompleted, PaymentStatusCancelled:
		return false
	default:
		return false
	}
}

type ComplianceStatus string

const (
	ComplianceStatusPending     ComplianceStatus = "PENDING"
	ComplianceStatusApproved    ComplianceStatus = "APPROVED"
	ComplianceStatusRejected    ComplianceStatus = "REJECTED"
	ComplianceStatusUnderReview ComplianceStatus = "UNDER_REVIEW"
	ComplianceStatusEscalated   ComplianceStatus = "ESCALATED"
)

type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// Failure codes recorded on failed payments.
const (
	FailureCodeComplianceRejected = "COMPLIANCE_REJECTED"
	FailureCodeFraudRejected      = "FRAUD_REJECTED"
	FailureCodeProcessingError    = "PROCESSING_ERROR"
	FailureCodeSettlementTimeout  = "SETTLEMENT_TIMEOUT"
	FailureCodeManual             = "MANUAL"
)

// NonRetryableFailureCodes are gate rejections; retrying cannot change them.
var NonRetryableFailureCodes = []string{FailureCodeComplianceRejected, FailureCodeFraudRejected}

const DefaultMaxRetries = 3

// ============================================================================
// Payment entity
// ============================================================================

// Payment is one payment instruction and its lifecycle bookkeeping.
// PaymentID is the idempotency key. Rows are never deleted.
type Payment struct {
	ID                   int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentID            string           `gorm:"type:varchar(64);uniqueIndex;not null" json:"payment_id"`
	UserID               string           `gorm:"type:varchar(64);index;not null" json:"user_id"`
	SourceAccountID      string           `gorm:"type:varchar(36);index;not null" json:"source_account_id"`
	DestinationAccountID *string          `gorm:"type:varchar(36);index" json:"destination_account_id,omitempty"`
	PaymentType          PaymentType      `gorm:"type:varchar(32);not null" json:"payment_type"`
	PaymentMethod        PaymentMethod    `gorm:"type:varchar(32);not null" json:"payment_method"`
	Direction            PaymentDirection `gorm:"type:varchar(16);not null" json:"direction"`
	Priority             PaymentPriority  `gorm:"type:varchar(16);not null" json:"priority"`
	Status               PaymentStatus    `gorm:"type:varchar(20);index;not null" json:"status"`
	Amount               decimal.Decimal  `gorm:"type:decimal(19,4);not null" json:"amount"`
	Currency             Currency         `gorm:"type:varchar(3);not null" json:"currency"`
	FeeAmount            decimal.Decimal  `gorm:"type:decimal(19,4);not null;default:0" json:"fee_amount"`
	FeeCurrency          Currency         `gorm:"type:varchar(3);not null" json:"fee_currency"`
	TotalAmount          decimal.Decimal  `gorm:"type:decimal(19,4);not null" json:"total_amount"`
	ExchangeRate         decimal.Decimal  `gorm:"type:decimal(19,8);not null" json:"exchange_rate"`
	OriginalAmount       *decimal.Decimal `gorm:"type:decimal(19,4)" json:"original_amount,omitempty"`
	OriginalCurrency     *Currency        `gorm:"type:varchar(3)" json:"original_currency,omitempty"`
	Reference            string           `gorm:"type:varchar(128)" json:"reference"`
	ExternalReference    string           `gorm:"type:varchar(128);index" json:"external_reference,omitempty"`
	Description          string           `gorm:"type:varchar(256)" json:"description"`
	CounterpartyName     string           `gorm:"type:varchar(128)" json:"counterparty_name,omitempty"`
	CounterpartyAccount  string           `gorm:"type:varchar(64)" json:"counterparty_account,omitempty"`
	CounterpartyBank     string           `gorm:"type:varchar(128)" json:"counterparty_bank,omitempty"`
	CounterpartySwift    string           `gorm:"type:varchar(11)" json:"counterparty_swift,omitempty"`
	CounterpartyIBAN     string           `gorm:"type:varchar(34)" json:"counterparty_iban,omitempty"`
	CounterpartyBIC      string           `gorm:"type:varchar(11)" json:"counterparty_bic,omitempty"`
	CounterpartyRouting  string           `gorm:"type:varchar(16)" json:"counterparty_routing,omitempty"`
	ComplianceStatus     ComplianceStatus `gorm:"type:varchar(20);not null" json:"compliance_status"`
	FraudScore           int              `gorm:"not null;default:0" json:"fraud_score"`
	RiskLevel            RiskLevel        `gorm:"type:varchar(16);not null" json:"risk_level"`
	IsUrgent             bool             `gorm:"not null;default:false" json:"is_urgent"`
	RetryCount           int              `gorm:"not null;default:0" json:"retry_count"`
	MaxRetries           int              `gorm:"not null" json:"max_retries"`
	NextRetryDate        *time.Time       `gorm:"index" json:"next_retry_date,omitempty"`
	ScheduledDate        *time.Time       `gorm:"index" json:"scheduled_date,omitempty"`
	ProcessingDate       *time.Time       `json:"processing_date,omitempty"`
	SettlementDate       *time.Time       `json:"settlement_date,omitempty"`
	CompletionDate       *time.Time       `json:"completion_date,omitempty"`
	FailureDate          *time.Time       `json:"failure_date,omitempty"`
	FailureReason        string           `gorm:"type:varchar(512)" json:"failure_reason,omitempty"`
	FailureCode          string           `gorm:"type:varchar(32)" json:"failure_code,omitempty"`
	IsBatchPayment       bool             `gorm:"not null;default:false" json:"is_batch_payment"`
	BatchID              string           `gorm:"type:varchar(64);index" json:"batch_id,omitempty"`
	BatchSequence        int              `gorm:"not null;default:0" json:"batch_sequence"`
	Metadata             string           `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt            time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt            time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payment"
}

// IsInbound reports whether money flows into the source account.
func (p *Payment) IsInbound() bool {
	return p.Direction == PaymentDirectionInbound
}

// IsInternal reports whether the destination is an account of this ledger.
func (p *Payment) IsInternal() bool {
	return p.DestinationAccountID != nil && *p.DestinationAccountID != ""
}

// Retryable reports whether the recorded failure may be retried at all.
func (p *Payment) Retryable() bool {
	for _, code := range NonRetryableFailureCodes {
		if p.FailureCode == code {
			return false
		}
	}
	return true
}

// CanRetry reports whether RetryPayment may move the payment back to PENDING.
func (p *Payment) CanRetry() bool {
	return p.Status == PaymentStatusFailed && p.RetryCount < p.MaxRetries && p.Retryable()
}

// Due reports whether a PENDING payment may be processed at now.
func (p *Payment) Due(now time.Time) bool {
	if p.ScheduledDate != nil && p.ScheduledDate.After(now) {
		return false
	}
	if p.NextRetryDate != nil && p.NextRetryDate.After(now) {
		return false
	}
	return true
}

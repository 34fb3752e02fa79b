package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// Transaction enums
// ============================================================================

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTypeTransfer   TransactionType = "TRANSFER"
	TransactionTypePayment    TransactionType = "PAYMENT"
	TransactionTypeReceipt    TransactionType = "RECEIPT"
	TransactionTypeInterest   TransactionType = "INTEREST"
	TransactionTypeFee        TransactionType = "FEE"
	TransactionTypeRefund     TransactionType = "REFUND"
	TransactionTypeAdjustment TransactionType = "ADJUSTMENT"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusReversed  TransactionStatus = "REVERSED"
)

// ============================================================================
// Transaction log entry
// ============================================================================

// AccountTransaction is one append-only ledger entry.
//
// Rows are never deleted. Amount is signed: negative for outflow, positive
// for inflow, zero for reserve/release adjustments where the balance does
// not move. BalanceBefore/BalanceAfter bracket the account balance.
type AccountTransaction struct {
	ID                  int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo       string            `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	AccountID           string            `gorm:"type:varchar(36);index;not null" json:"account_id"`
	UserID              string            `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Type                TransactionType   `gorm:"type:varchar(20);not null" json:"type"`
	Amount              decimal.Decimal   `gorm:"type:decimal(19,4);not null" json:"amount"`
	Currency            Currency          `gorm:"type:varchar(3);not null" json:"currency"`
	BalanceBefore       decimal.Decimal   `gorm:"type:decimal(19,4);not null" json:"balance_before"`
	BalanceAfter        decimal.Decimal   `gorm:"type:decimal(19,4);not null" json:"balance_after"`
	FeeAmount           decimal.Decimal   `gorm:"type:decimal(19,4);not null;default:0" json:"fee_amount"`
	Reference           string            `gorm:"type:varchar(128);index" json:"reference"`
	Description         string            `gorm:"type:varchar(256)" json:"description"`
	CounterpartyName    string            `gorm:"type:varchar(128)" json:"counterparty_name,omitempty"`
	CounterpartyAccount string            `gorm:"type:varchar(64)" json:"counterparty_account,omitempty"`
	Status              TransactionStatus `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt           time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AccountTransaction) TableName() string {
	return "account_transaction"
}

// CanTransitionTo allows a pending entry to settle, and a completed entry to
// be reversed. Nothing else moves.
func (s TransactionStatus) CanTransitionTo(target TransactionStatus) bool {
	switch s {
	case TransactionStatusPending:
		return target == TransactionStatusCompleted || target == TransactionStatusFailed || target == TransactionStatusReversed
	case TransactionStatusCompleted:
		return target == TransactionStatusReversed
	default:
		return false
	}
}

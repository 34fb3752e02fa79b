package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// Account enums
// ============================================================================

type AccountType string

const (
	AccountTypeCurrent       AccountType = "CURRENT"
	AccountTypeSavings       AccountType = "SAVINGS"
	AccountTypeFixedDeposit  AccountType = "FIXED_DEPOSIT"
	AccountTypeBusiness      AccountType = "BUSINESS"
	AccountTypeStudent       AccountType = "STUDENT"
	AccountTypeSeniorCitizen AccountType = "SENIOR_CITIZEN"
	AccountTypePremium       AccountType = "PREMIUM"
	AccountTypeBasic         AccountType = "BASIC"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeCurrent, AccountTypeSavings, AccountTypeFixedDeposit, AccountTypeBusiness,
		AccountTypeStudent, AccountTypeSeniorCitizen, AccountTypePremium, AccountTypeBasic:
		return true
	}
	return false
}

func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(s)
	if !t.Valid() {
		return "", Validationf("unknown account type %q", s)
	}
	return t, nil
}

type AccountStatus string

const (
	AccountStatusActive      AccountStatus = "ACTIVE"
	AccountStatusSuspended   AccountStatus = "SUSPENDED"
	AccountStatusBlocked     AccountStatus = "BLOCKED"
	AccountStatusClosed      AccountStatus = "CLOSED"
	AccountStatusPending     AccountStatus = "PENDING"
	AccountStatusUnderReview AccountStatus = "UNDER_REVIEW"
)

func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusActive, AccountStatusSuspended, AccountStatusBlocked,
		AccountStatusClosed, AccountStatusPending, AccountStatusUnderReview:
		return true
	}
	return false
}

func ParseAccountStatus(s string) (AccountStatus, error) {
	st := AccountStatus(s)
	if !st.Valid() {
		return "", Validationf("unknown account status %q", s)
	}
	return st, nil
}

var (
	DefaultDailyLimit   = decimal.NewFromInt(10000)
	DefaultMonthlyLimit = decimal.NewFromInt(100000)
)

// ============================================================================
// Account entity
// ============================================================================

// Account holds the balances of one ledger account.
//
// Invariant: Balance == AvailableBalance + ReservedBalance, all non-negative.
// Only the ledger writes balance and counter fields.
type Account struct {
	ID                       string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID                   string          `gorm:"type:varchar(64);index;not null" json:"user_id"`
	AccountNumber            string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"account_number"`
	AccountName              string          `gorm:"type:varchar(128)" json:"account_name"`
	Description              string          `gorm:"type:varchar(256)" json:"description"`
	AccountType              AccountType     `gorm:"type:varchar(20);not null" json:"account_type"`
	Currency                 Currency        `gorm:"type:varchar(3);not null" json:"currency"`
	Status                   AccountStatus   `gorm:"type:varchar(20);index;not null" json:"status"`
	Balance                  decimal.Decimal `gorm:"type:decimal(19,4);not null;default:0" json:"balance"`
	AvailableBalance         decimal.Decimal `gorm:"type:decimal(19,4);not null;default:0" json:"available_balance"`
	ReservedBalance          decimal.Decimal `gorm:"type:decimal(19,4);not null;default:0" json:"reserved_balance"`
	DailyLimit               decimal.Decimal `gorm:"type:decimal(19,4);not null" json:"daily_limit"`
	MonthlyLimit             decimal.Decimal `gorm:"type:decimal(19,4);not null" json:"monthly_limit"`
	DailyTransactionCount    int             `gorm:"not null;default:0" json:"daily_transaction_count"`
	DailyTransactionAmount   decimal.Decimal `gorm:"type:decimal(19,4);not null;default:0" json:"daily_transaction_amount"`
	MonthlyTransactionCount  int             `gorm:"not null;default:0" json:"monthly_transaction_count"`
	MonthlyTransactionAmount decimal.Decimal `gorm:"type:decimal(19,4);not null;default:0" json:"monthly_transaction_amount"`
	LastTransactionDate      *time.Time      `json:"last_transaction_date,omitempty"`
	OverdraftLimit           decimal.Decimal `gorm:"type:decimal(19,4);not null;default:0" json:"overdraft_limit"`
	OverdraftUsed            decimal.Decimal `gorm:"type:decimal(19,4);not null;default:0" json:"overdraft_used"`
	InterestRate             decimal.Decimal `gorm:"type:decimal(9,6);not null;default:0" json:"interest_rate"` // annual, as a fraction
	LastInterestCalculation  *time.Time      `json:"last_interest_calculation,omitempty"`
	Version                  int             `gorm:"not null;default:0" json:"version"`
	CreatedAt                time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

func (a *Account) HasSufficientBalance(amount decimal.Decimal) bool {
	return a.AvailableBalance.GreaterThanOrEqual(amount)
}

func (a *Account) WithinDailyLimit(amount decimal.Decimal) bool {
	return a.DailyTransactionAmount.Add(amount).LessThanOrEqual(a.DailyLimit)
}

func (a *Account) WithinMonthlyLimit(amount decimal.Decimal) bool {
	return a.MonthlyTransactionAmount.Add(amount).LessThanOrEqual(a.MonthlyLimit)
}

// ApplyDebit moves amount out of the available balance and counts it
// against both limit windows. Callers validate first.
func (a *Account) ApplyDebit(amount decimal.Decimal, at time.Time) {
	a.Balance = a.Balance.Sub(amount)
	a.AvailableBalance = a.AvailableBalance.Sub(amount)
	a.count(amount, at)
}

// ApplyCredit adds amount to the available balance. Credits are counted
// against the limit windows too.
func (a *Account) ApplyCredit(amount decimal.Decimal, at time.Time) {
	a.Balance = a.Balance.Add(amount)
	a.AvailableBalance = a.AvailableBalance.Add(amount)
	a.count(amount, at)
}

// ApplyInterest credits accrued interest. Interest is not customer activity
// and does not count against the limit windows.
func (a *Account) ApplyInterest(amount decimal.Decimal, at time.Time) {
	a.Balance = a.Balance.Add(amount)
	a.AvailableBalance = a.AvailableBalance.Add(amount)
	a.LastInterestCalculation = &at
}

func (a *Account) count(amount decimal.Decimal, at time.Time) {
	a.DailyTransactionCount++
	a.DailyTransactionAmount = a.DailyTransactionAmount.Add(amount)
	a.MonthlyTransactionCount++
	a.MonthlyTransactionAmount = a.MonthlyTransactionAmount.Add(amount)
	a.LastTransactionDate = &at
}

func (a *Account) ApplyReserve(amount decimal.Decimal) {
	a.AvailableBalance = a.AvailableBalance.Sub(amount)
	a.ReservedBalance = a.ReservedBalance.Add(amount)
}

func (a *Account) ApplyRelease(amount decimal.Decimal) {
	a.ReservedBalance = a.ReservedBalance.Sub(amount)
	a.AvailableBalance = a.AvailableBalance.Add(amount)
}

// CountedBefore reports whether the limit counters were last bumped before t.
func (a *Account) CountedBefore(t time.Time) bool {
	return a.LastTransactionDate == nil || a.LastTransactionDate.Before(t)
}

func (a *Account) ResetDaily() {
	a.DailyTransactionCount = 0
	a.DailyTransactionAmount = decimal.Zero
}

func (a *Account) ResetMonthly() {
	a.MonthlyTransactionCount = 0
	a.MonthlyTransactionAmount = decimal.Zero
}

// Balanced reports whether the balance decomposition holds.
func (a *Account) Balanced() bool {
	return a.Balance.Equal(a.AvailableBalance.Add(a.ReservedBalance))
}

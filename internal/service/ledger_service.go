package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"paycore/internal/infrastructure/cache"
	"paycore/internal/infrastructure/lock"
	"paycore/internal/metrics"
	"paycore/internal/model"
	"paycore/internal/repository"
	"paycore/pkg/idgen"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================================
// Ledger
// ============================================================================
//
// Every balance mutation runs as one unit:
//
//   acquire account locks (ascending id)
//     -> BEGIN
//     -> SELECT ... FOR UPDATE
//     -> validate, mutate, append transaction entry, write outbox event
//     -> COMMIT
//   -> invalidate cached snapshots
//   -> release locks
//
// Locks are never taken inside a DB transaction, and a transaction callback
// only talks to the database through its own tx handle.
//
// ============================================================================

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var daysInYear = decimal.NewFromInt(365)

type PostingDirection int

const (
	PostingDebit PostingDirection = iota + 1
	PostingCredit
)

func (d PostingDirection) String() string {
	switch d {
	case PostingDebit:
		return "DEBIT"
	case PostingCredit:
		return "CREDIT"
	default:
		return fmt.Sprintf("PostingDirection(%d)", int(d))
	}
}

// Posting is one debit or credit against one account.
type Posting struct {
	AccountID           string
	Direction           PostingDirection
	Amount              decimal.Decimal
	Currency            model.Currency // empty skips the currency check
	Type                model.TransactionType
	Description         string
	Reference           string
	CounterpartyName    string
	CounterpartyAccount string
	FeeAmount           decimal.Decimal
}

// PostingBatch is applied atomically: every posting commits or none does.
type PostingBatch struct {
	Postings []Posting
	// InTx runs inside the posting transaction after all entries are written.
	// An error rolls the whole batch back.
	InTx func(ctx context.Context, tx *gorm.DB) error
}

type OpenAccountRequest struct {
	UserID         string            `json:"user_id" binding:"required"`
	AccountName    string            `json:"account_name"`
	Description    string            `json:"description"`
	AccountType    model.AccountType `json:"account_type" binding:"required"`
	Currency       model.Currency    `json:"currency" binding:"required"`
	DailyLimit     *decimal.Decimal  `json:"daily_limit"`
	MonthlyLimit   *decimal.Decimal  `json:"monthly_limit"`
	InterestRate   decimal.Decimal   `json:"interest_rate"`
	OverdraftLimit decimal.Decimal   `json:"overdraft_limit"`
	InitialDeposit decimal.Decimal   `json:"initial_deposit"`
}

type LedgerService struct {
	db              *gorm.DB
	locker          lock.Locker
	events          EventPublisher
	cache           cache.AccountCache
	metrics         *metrics.Metrics
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	now             func() time.Time
}

type LedgerOption func(*LedgerService)

func WithAccountCache(c cache.AccountCache) LedgerOption {
	return func(s *LedgerService) { s.cache = c }
}

func WithLedgerMetrics(m *metrics.Metrics) LedgerOption {
	return func(s *LedgerService) { s.metrics = m }
}

func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(s *LedgerService) { s.now = now }
}

// NewLedgerService builds the ledger over db. Without WithAccountCache reads
// always hit the database.
func NewLedgerService(db *gorm.DB, locker lock.Locker, events EventPublisher, opts ...LedgerOption) *LedgerService {
	s := &LedgerService{
		db:              db,
		locker:          locker,
		events:          events,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ============================================================================
// Account lifecycle
// ============================================================================

// OpenAccount creates an ACTIVE account with default limits unless the
// request sets them. A positive InitialDeposit is booked as a DEPOSIT in the
// same transaction, so the account never exists without it.
func (s *LedgerService) OpenAccount(ctx context.Context, req *OpenAccountRequest) (*model.Account, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, model.Validationf("user_id is required")
	}
	if !req.AccountType.Valid() {
		return nil, model.Validationf("unknown account type %q", req.AccountType)
	}
	if !req.Currency.Valid() {
		return nil, model.Validationf("unknown currency %q", req.Currency)
	}
	if req.InterestRate.IsNegative() || req.OverdraftLimit.IsNegative() || req.InitialDeposit.IsNegative() {
		return nil, model.Validationf("interest rate, overdraft limit and initial deposit must not be negative")
	}
	if !req.Currency.Fits(req.InitialDeposit) {
		return nil, fmt.Errorf("initial deposit %s %s: %w", req.InitialDeposit, req.Currency, model.ErrAmountPrecision)
	}

	daily := model.DefaultDailyLimit
	if req.DailyLimit != nil {
		daily = *req.DailyLimit
	}
	monthly := model.DefaultMonthlyLimit
	if req.MonthlyLimit != nil {
		monthly = *req.MonthlyLimit
	}
	if err := validateLimits(daily, monthly); err != nil {
		return nil, err
	}

	now := s.now()
	account := &model.Account{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		AccountNumber:  idgen.GenerateAccountNumber(string(req.Currency)),
		AccountName:    req.AccountName,
		Description:    req.Description,
		AccountType:    req.AccountType,
		Currency:       req.Currency,
		Status:         model.AccountStatusActive,
		DailyLimit:     daily,
		MonthlyLimit:   monthly,
		InterestRate:   req.InterestRate,
		OverdraftLimit: req.OverdraftLimit,
		CreatedAt:      now,
	}

	var deposit *model.AccountTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.Create(ctx, tx, account); err != nil {
			return fmt.Errorf("create account: %w", err)
		}

		if err := s.events.Publish(ctx, tx, model.Event{
			Type:        model.EventAccountCreated,
			AggregateID: account.ID,
			UserID:      account.UserID,
			AccountID:   account.ID,
			Currency:    account.Currency,
			Status:      string(account.Status),
			OccurredAt:  now,
		}); err != nil {
			return err
		}

		if !req.InitialDeposit.IsPositive() {
			return nil
		}

		// The account id is not visible to anyone yet, so no lock is needed.
		entry, err := s.applyPosting(ctx, tx, account, Posting{
			Direction:   PostingCredit,
			Amount:      req.InitialDeposit,
			Type:        model.TransactionTypeDeposit,
			Description: "initial deposit",
			Reference:   account.AccountNumber,
		}, now)
		deposit = entry
		return err
	})
	if err != nil {
		return nil, s.observe(err)
	}

	if deposit != nil {
		s.metrics.ObservePosting(string(deposit.Type))
	}
	log.Printf("[LedgerService] account opened: id=%s, number=%s, user=%s", account.ID, account.AccountNumber, account.UserID)
	return account, nil
}

// GetAccount reads through the account cache.
//
// A miss loads and fills under the account lock, which writers hold until
// they have invalidated.
func (s *LedgerService) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	if s.cache == nil {
		return s.accountRepo.GetByID(ctx, accountID)
	}
	if account, ok := s.cache.Get(ctx, accountID); ok {
		return account, nil
	}

	release, err := s.locker.Acquire(ctx, lock.AccountKey(accountID))
	if err != nil {
		return nil, fmt.Errorf("lock account %s: %w", accountID, err)
	}
	defer release()

	if account, ok := s.cache.Get(ctx, accountID); ok {
		return account, nil
	}
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, account)
	return account, nil
}

// GetAccountByNumber bypasses the cache.
func (s *LedgerService) GetAccountByNumber(ctx context.Context, accountNumber string) (*model.Account, error) {
	return s.accountRepo.GetByNumber(ctx, accountNumber)
}

func (s *LedgerService) ListUserAccounts(ctx context.Context, userID string) ([]*model.Account, error) {
	return s.accountRepo.ListByUserID(ctx, userID)
}

// ListTransactions pages an account's entries, newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, accountID string, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	if _, err := s.accountRepo.GetByID(ctx, accountID); err != nil {
		return nil, 0, err
	}
	page, pageSize = normalizePage(page, pageSize)
	return s.transactionRepo.ListByAccountID(ctx, accountID, page, pageSize)
}

// UpdateStatus changes an account's status. CLOSED is only reachable through
// Close, and a closed account never reopens.
func (s *LedgerService) UpdateStatus(ctx context.Context, accountID string, status model.AccountStatus) error {
	if !status.Valid() {
		return model.Validationf("unknown account status %q", status)
	}
	if status == model.AccountStatusClosed {
		return model.InvalidStatef("accounts are closed through Close")
	}

	err := s.withLockedAccounts(ctx, []string{accountID}, func(tx *gorm.DB, accounts map[string]*model.Account) error {
		account := accounts[accountID]
		if account.Status == model.AccountStatusClosed {
			return fmt.Errorf("account %s: %w", accountID, model.ErrAccountClosed)
		}
		if account.Status == status {
			return nil
		}

		previous := account.Status
		account.Status = status
		if err := s.accountRepo.Update(ctx, tx, account); err != nil {
			return fmt.Errorf("update account %s: %w", accountID, err)
		}

		return s.events.Publish(ctx, tx, model.Event{
			Type:          model.EventAccountStatusChanged,
			AggregateID:   account.ID,
			UserID:        account.UserID,
			AccountID:     account.ID,
			Status:        string(status),
			PreviousState: string(previous),
			OccurredAt:    s.now(),
		})
	})
	return s.observe(err)
}

// UpdateLimits replaces both spending limits. The daily limit may not
// exceed the monthly one.
func (s *LedgerService) UpdateLimits(ctx context.Context, accountID string, daily, monthly decimal.Decimal) error {
	if err := validateLimits(daily, monthly); err != nil {
		return err
	}

	err := s.withLockedAccounts(ctx, []string{accountID}, func(tx *gorm.DB, accounts map[string]*model.Account) error {
		account := accounts[accountID]
		if account.Status == model.AccountStatusClosed {
			return fmt.Errorf("account %s: %w", accountID, model.ErrAccountClosed)
		}
		account.DailyLimit = daily
		account.MonthlyLimit = monthly
		if err := s.accountRepo.Update(ctx, tx, account); err != nil {
			return fmt.Errorf("update account %s: %w", accountID, err)
		}
		return nil
	})
	return s.observe(err)
}

// Close moves a zero-balance account to the terminal CLOSED status.
func (s *LedgerService) Close(ctx context.Context, accountID string) error {
	err := s.withLockedAccounts(ctx, []string{accountID}, func(tx *gorm.DB, accounts map[string]*model.Account) error {
		account := accounts[accountID]
		if account.Status == model.AccountStatusClosed {
			return fmt.Errorf("account %s: %w", accountID, model.ErrAccountClosed)
		}
		if !account.Balance.IsZero() {
			return fmt.Errorf("account %s holds %s: %w", accountID, account.Balance, model.ErrNonZeroBalance)
		}

		previous := account.Status
		account.Status = model.AccountStatusClosed
		if err := s.accountRepo.Update(ctx, tx, account); err != nil {
			return fmt.Errorf("update account %s: %w", accountID, err)
		}

		return s.events.Publish(ctx, tx, model.Event{
			Type:          model.EventAccountClosed,
			AggregateID:   account.ID,
			UserID:        account.UserID,
			AccountID:     account.ID,
			Status:        string(model.AccountStatusClosed),
			PreviousState: string(previous),
			OccurredAt:    s.now(),
		})
	})
	if err != nil {
		return s.observe(err)
	}

	log.Printf("[LedgerService] account closed: id=%s", accountID)
	return nil
}

// ============================================================================
// Balance mutations
// ============================================================================

// Debit withdraws amount from the available balance after checking funds
// and both limit windows. A rejected debit leaves the account untouched.
func (s *LedgerService) Debit(ctx context.Context, accountID string, amount decimal.Decimal, description, reference string) (*model.AccountTransaction, error) {
	entries, err := s.Post(ctx, PostingBatch{Postings: []Posting{{
		AccountID:   accountID,
		Direction:   PostingDebit,
		Amount:      amount,
		Type:        model.TransactionTypeWithdrawal,
		Description: description,
		Reference:   reference,
	}}})
	if err != nil {
		return nil, err
	}
	return entries[0], nil
}

// Credit deposits amount. Credits count toward the limit windows but are
// never refused by them.
func (s *LedgerService) Credit(ctx context.Context, accountID string, amount decimal.Decimal, description, reference string) (*model.AccountTransaction, error) {
	entries, err := s.Post(ctx, PostingBatch{Postings: []Posting{{
		AccountID:   accountID,
		Direction:   PostingCredit,
		Amount:      amount,
		Type:        model.TransactionTypeDeposit,
		Description: description,
		Reference:   reference,
	}}})
	if err != nil {
		return nil, err
	}
	return entries[0], nil
}

// Post applies every posting of the batch in order, holding all involved
// account locks for the duration.
func (s *LedgerService) Post(ctx context.Context, batch PostingBatch) ([]*model.AccountTransaction, error) {
	if len(batch.Postings) == 0 {
		return nil, model.Validationf("posting batch is empty")
	}

	accountIDs := make([]string, 0, len(batch.Postings))
	for _, p := range batch.Postings {
		if !p.Amount.IsPositive() {
			return nil, s.observe(model.ErrInvalidAmount)
		}
		accountIDs = append(accountIDs, p.AccountID)
	}

	var entries []*model.AccountTransaction
	err := s.withLockedAccounts(ctx, accountIDs, func(tx *gorm.DB, accounts map[string]*model.Account) error {
		entries = entries[:0]
		now := s.now()
		for _, p := range batch.Postings {
			entry, err := s.applyPosting(ctx, tx, accounts[p.AccountID], p, now)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		if batch.InTx != nil {
			return batch.InTx(ctx, tx)
		}
		return nil
	})
	if err != nil {
		return nil, s.observe(err)
	}

	for _, entry := range entries {
		s.metrics.ObservePosting(string(entry.Type))
	}
	return entries, nil
}

// Reserve moves amount from available to reserved. The balance itself does
// not change, so the entry carries a zero amount.
func (s *LedgerService) Reserve(ctx context.Context, accountID string, amount decimal.Decimal, reference string) (*model.AccountTransaction, error) {
	if !amount.IsPositive() {
		return nil, s.observe(model.ErrInvalidAmount)
	}

	var entry *model.AccountTransaction
	err := s.withLockedAccounts(ctx, []string{accountID}, func(tx *gorm.DB, accounts map[string]*model.Account) error {
		account := accounts[accountID]
		if !account.IsActive() {
			return fmt.Errorf("account %s is %s: %w", accountID, account.Status, model.ErrAccountNotActive)
		}
		if !account.Currency.Fits(amount) {
			return fmt.Errorf("%s %s: %w", amount, account.Currency, model.ErrAmountPrecision)
		}
		if !account.HasSufficientBalance(amount) {
			return fmt.Errorf("account %s available %s < %s: %w", accountID, account.AvailableBalance, amount, model.ErrBalanceNotEnough)
		}

		account.ApplyReserve(amount)
		var err error
		entry, err = s.writeAdjustment(ctx, tx, account, "reserve "+amount.String(), reference)
		return err
	})
	if err != nil {
		return nil, s.observe(err)
	}

	s.metrics.ObservePosting(string(entry.Type))
	return entry, nil
}

// ReleaseReservation moves amount from reserved back to available.
func (s *LedgerService) ReleaseReservation(ctx context.Context, accountID string, amount decimal.Decimal, reference string) (*model.AccountTransaction, error) {
	if !amount.IsPositive() {
		return nil, s.observe(model.ErrInvalidAmount)
	}

	var entry *model.AccountTransaction
	err := s.withLockedAccounts(ctx, []string{accountID}, func(tx *gorm.DB, accounts map[string]*model.Account) error {
		account := accounts[accountID]
		if !account.Currency.Fits(amount) {
			return fmt.Errorf("%s %s: %w", amount, account.Currency, model.ErrAmountPrecision)
		}
		if account.ReservedBalance.LessThan(amount) {
			return fmt.Errorf("account %s reserved %s < %s: %w", accountID, account.ReservedBalance, amount, model.ErrReservedNotEnough)
		}

		account.ApplyRelease(amount)
		var err error
		entry, err = s.writeAdjustment(ctx, tx, account, "release "+amount.String(), reference)
		return err
	})
	if err != nil {
		return nil, s.observe(err)
	}

	s.metrics.ObservePosting(string(entry.Type))
	return entry, nil
}

// ApplyInterest credits one day of interest: balance * rate / 365, rounded
// half-up to the currency's minor unit. It runs at most once per calendar
// day and returns a nil entry when nothing was credited.
func (s *LedgerService) ApplyInterest(ctx context.Context, accountID string) (*model.AccountTransaction, error) {
	var entry *model.AccountTransaction
	err := s.withLockedAccounts(ctx, []string{accountID}, func(tx *gorm.DB, accounts map[string]*model.Account) error {
		account := accounts[accountID]
		if !account.InterestRate.IsPositive() {
			return nil
		}
		if !account.IsActive() {
			return fmt.Errorf("account %s is %s: %w", accountID, account.Status, model.ErrAccountNotActive)
		}

		now := s.now()
		if last := account.LastInterestCalculation; last != nil && sameDay(*last, now) {
			return nil
		}

		interest := account.Currency.Round(account.Balance.Mul(account.InterestRate).Div(daysInYear))
		if !interest.IsPositive() {
			account.LastInterestCalculation = &now
			if err := s.accountRepo.Update(ctx, tx, account); err != nil {
				return fmt.Errorf("update account %s: %w", accountID, err)
			}
			return nil
		}

		var err error
		entry, err = s.applyPosting(ctx, tx, account, Posting{
			Direction:   PostingCredit,
			Amount:      interest,
			Type:        model.TransactionTypeInterest,
			Description: "daily interest",
			Reference:   fmt.Sprintf("INT-%s-%s", account.AccountNumber, now.Format("2006-01-02")),
		}, now)
		return err
	})
	if err != nil {
		return nil, s.observe(err)
	}

	if entry != nil {
		s.metrics.ObservePosting(string(entry.Type))
	}
	return entry, nil
}

// ResetDailyLimits zeroes the daily counters unconditionally.
func (s *LedgerService) ResetDailyLimits(ctx context.Context, accountID string) error {
	return s.resetCounters(ctx, accountID, time.Time{}, (*model.Account).ResetDaily)
}

// ResetMonthlyLimits zeroes the monthly counters unconditionally.
func (s *LedgerService) ResetMonthlyLimits(ctx context.Context, accountID string) error {
	return s.resetCounters(ctx, accountID, time.Time{}, (*model.Account).ResetMonthly)
}

// ResetDailyLimitsBefore zeroes the daily counters only if the account was
// last counted before dayStart, so activity already booked in the current
// day survives a reset that races it.
func (s *LedgerService) ResetDailyLimitsBefore(ctx context.Context, accountID string, dayStart time.Time) error {
	return s.resetCounters(ctx, accountID, dayStart, (*model.Account).ResetDaily)
}

// ResetMonthlyLimitsBefore is the monthly counterpart of ResetDailyLimitsBefore.
func (s *LedgerService) ResetMonthlyLimitsBefore(ctx context.Context, accountID string, monthStart time.Time) error {
	return s.resetCounters(ctx, accountID, monthStart, (*model.Account).ResetMonthly)
}

// resetCounters applies reset under the account lock. A non-zero periodStart
// skips accounts already counted in the current period.
func (s *LedgerService) resetCounters(ctx context.Context, accountID string, periodStart time.Time, reset func(*model.Account)) error {
	return s.withLockedAccounts(ctx, []string{accountID}, func(tx *gorm.DB, accounts map[string]*model.Account) error {
		account := accounts[accountID]
		if !periodStart.IsZero() && !account.CountedBefore(periodStart) {
			return nil
		}
		reset(account)
		if err := s.accountRepo.Update(ctx, tx, account); err != nil {
			return fmt.Errorf("update account %s: %w", accountID, err)
		}
		return nil
	})
}

// ============================================================================
// Internals
// ============================================================================

// withLockedAccounts runs fn in one DB transaction over the given accounts,
// loaded FOR UPDATE in id order, while holding their locks.
func (s *LedgerService) withLockedAccounts(ctx context.Context, accountIDs []string, fn func(tx *gorm.DB, accounts map[string]*model.Account) error) error {
	ids := uniqueSorted(accountIDs)
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = lock.AccountKey(id)
	}

	release, err := s.locker.Acquire(ctx, keys...)
	if err != nil {
		return fmt.Errorf("lock accounts %v: %w", ids, err)
	}
	defer release()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accounts := make(map[string]*model.Account, len(ids))
		for _, id := range ids {
			account, err := s.accountRepo.GetByIDForUpdate(ctx, tx, id)
			if err != nil {
				return fmt.Errorf("account %s: %w", id, err)
			}
			accounts[id] = account
		}
		return fn(tx, accounts)
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, ids...)
	}
	return nil
}

// applyPosting validates and applies p to account, then appends the entry
// and the matching event. account must be locked by the caller.
func (s *LedgerService) applyPosting(ctx context.Context, tx *gorm.DB, account *model.Account, p Posting, now time.Time) (*model.AccountTransaction, error) {
	if !p.Amount.IsPositive() {
		return nil, model.ErrInvalidAmount
	}
	if !account.IsActive() {
		return nil, fmt.Errorf("account %s is %s: %w", account.ID, account.Status, model.ErrAccountNotActive)
	}
	if p.Currency != "" && p.Currency != account.Currency {
		return nil, fmt.Errorf("account %s holds %s, posting is in %s: %w", account.ID, account.Currency, p.Currency, model.ErrCurrencyMismatch)
	}
	if !account.Currency.Fits(p.Amount) {
		return nil, fmt.Errorf("%s %s: %w", p.Amount, account.Currency, model.ErrAmountPrecision)
	}

	before := account.Balance
	signed := p.Amount
	eventType := model.EventAccountCredited

	switch p.Direction {
	case PostingDebit:
		if !account.HasSufficientBalance(p.Amount) {
			return nil, fmt.Errorf("account %s available %s < %s: %w", account.ID, account.AvailableBalance, p.Amount, model.ErrBalanceNotEnough)
		}
		if !account.WithinDailyLimit(p.Amount) {
			return nil, fmt.Errorf("account %s daily %s + %s > %s: %w", account.ID, account.DailyTransactionAmount, p.Amount, account.DailyLimit, model.ErrDailyLimitExceeded)
		}
		if !account.WithinMonthlyLimit(p.Amount) {
			return nil, fmt.Errorf("account %s monthly %s + %s > %s: %w", account.ID, account.MonthlyTransactionAmount, p.Amount, account.MonthlyLimit, model.ErrMonthlyLimitExceeded)
		}
		account.ApplyDebit(p.Amount, now)
		signed = p.Amount.Neg()
		eventType = model.EventAccountDebited
	case PostingCredit:
		if p.Type == model.TransactionTypeInterest {
			account.ApplyInterest(p.Amount, now)
		} else {
			account.ApplyCredit(p.Amount, now)
		}
	default:
		return nil, model.Validationf("unknown posting direction %s", p.Direction)
	}

	if err := s.accountRepo.Update(ctx, tx, account); err != nil {
		return nil, fmt.Errorf("update account %s: %w", account.ID, err)
	}

	entry := &model.AccountTransaction{
		TransactionNo:       idgen.GenerateTransactionNo(),
		AccountID:           account.ID,
		UserID:              account.UserID,
		Type:                p.Type,
		Amount:              signed,
		Currency:            account.Currency,
		BalanceBefore:       before,
		BalanceAfter:        account.Balance,
		FeeAmount:           p.FeeAmount,
		Reference:           p.Reference,
		Description:         p.Description,
		CounterpartyName:    p.CounterpartyName,
		CounterpartyAccount: p.CounterpartyAccount,
		Status:              model.TransactionStatusCompleted,
		CreatedAt:           now,
	}
	if err := s.transactionRepo.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("append transaction for account %s: %w", account.ID, err)
	}

	if err := s.events.Publish(ctx, tx, model.Event{
		Type:          eventType,
		AggregateID:   account.ID,
		UserID:        account.UserID,
		AccountID:     account.ID,
		TransactionNo: entry.TransactionNo,
		Amount:        decimalPtr(p.Amount),
		Currency:      account.Currency,
		Reference:     p.Reference,
		OccurredAt:    now,
	}); err != nil {
		return nil, err
	}

	return entry, nil
}

// writeAdjustment persists a reserve/release and its zero-amount entry.
func (s *LedgerService) writeAdjustment(ctx context.Context, tx *gorm.DB, account *model.Account, description, reference string) (*model.AccountTransaction, error) {
	if err := s.accountRepo.Update(ctx, tx, account); err != nil {
		return nil, fmt.Errorf("update account %s: %w", account.ID, err)
	}

	entry := &model.AccountTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		AccountID:     account.ID,
		UserID:        account.UserID,
		Type:          model.TransactionTypeAdjustment,
		Amount:        decimal.Zero,
		Currency:      account.Currency,
		BalanceBefore: account.Balance,
		BalanceAfter:  account.Balance,
		Reference:     reference,
		Description:   description,
		Status:        model.TransactionStatusCompleted,
		CreatedAt:     s.now(),
	}
	if err := s.transactionRepo.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("append transaction for account %s: %w", account.ID, err)
	}
	return entry, nil
}

func (s *LedgerService) observe(err error) error {
	if err != nil {
		s.metrics.ObserveRejection(string(model.KindOf(err)))
	}
	return err
}

func validateLimits(daily, monthly decimal.Decimal) error {
	if !daily.IsPositive() || !monthly.IsPositive() {
		return model.Validationf("limits must be greater than zero")
	}
	if daily.GreaterThan(monthly) {
		return model.Validationf("daily limit %s exceeds monthly limit %s", daily, monthly)
	}
	return nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}


package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"paycore/internal/infrastructure/database"
	"paycore/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newAccount(userID string, status model.AccountStatus) *model.Account {
	return &model.Account{
		ID:            uuid.NewString(),
		UserID:        userID,
		AccountNumber: "USD" + uuid.NewString()[:8],
		AccountType:   model.AccountTypeCurrent,
		Currency:      model.CurrencyUSD,
		Status:        status,
		DailyLimit:    model.DefaultDailyLimit,
		MonthlyLimit:  model.DefaultMonthlyLimit,
	}
}

func newPayment(id string, status model.PaymentStatus) *model.Payment {
	return &model.Payment{
		PaymentID:        id,
		UserID:           "u1",
		SourceAccountID:  "acc-1",
		PaymentType:      model.PaymentTypeDomesticTransfer,
		PaymentMethod:    model.PaymentMethodBankTransfer,
		Direction:        model.PaymentDirectionOutbound,
		Priority:         model.PaymentPriorityNormal,
		Status:           status,
		Amount:           decimal.NewFromInt(100),
		Currency:         model.CurrencyUSD,
		FeeCurrency:      model.CurrencyUSD,
		TotalAmount:      decimal.NewFromInt(100),
		ExchangeRate:     decimal.NewFromInt(1),
		ComplianceStatus: model.ComplianceStatusPending,
		RiskLevel:        model.RiskLevelLow,
		MaxRetries:       3,
	}
}

func TestAccountUpdateDetectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(openDB(t))

	acct := newAccount("u1", model.AccountStatusActive)
	require.NoError(t, repo.Create(ctx, nil, acct))

	first, err := repo.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, acct.ID)
	require.NoError(t, err)

	first.Balance = decimal.NewFromInt(50)
	first.AvailableBalance = decimal.NewFromInt(50)
	require.NoError(t, repo.Update(ctx, nil, first))
	assert.Equal(t, 1, first.Version)

	second.Balance = decimal.NewFromInt(70)
	err = repo.Update(ctx, nil, second)
	assert.True(t, errors.Is(err, model.ErrOptimisticLock))
	assert.Equal(t, 0, second.Version)

	stored, err := repo.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50).Equal(stored.Balance))
}

func TestAccountLookups(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(openDB(t))

	_, err := repo.GetByID(ctx, "missing")
	assert.True(t, errors.Is(err, model.ErrNotFound))

	acct := newAccount("u1", model.AccountStatusActive)
	require.NoError(t, repo.Create(ctx, nil, acct))

	byNumber, err := repo.GetByNumber(ctx, acct.AccountNumber)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, byNumber.ID)

	list, err := repo.ListByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestListStaleIDsPagesByKey(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(openDB(t))

	counted := func(status model.AccountStatus, at time.Time, count int) *model.Account {
		a := newAccount("u1", status)
		a.DailyTransactionCount = count
		a.MonthlyTransactionCount = count
		a.LastTransactionDate = &at
		return a
	}

	yesterday := t0.Add(-24 * time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, nil, counted(model.AccountStatusActive, yesterday, 1)))
	}
	require.NoError(t, repo.Create(ctx, nil, counted(model.AccountStatusClosed, yesterday, 1)))
	require.NoError(t, repo.Create(ctx, nil, counted(model.AccountStatusActive, t0, 1)))
	require.NoError(t, repo.Create(ctx, nil, counted(model.AccountStatusActive, yesterday, 0)))

	dayStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var all []string
	after := ""
	for {
		ids, err := repo.ListStaleDailyIDs(ctx, dayStart, after, 2)
		require.NoError(t, err)
		all = append(all, ids...)
		if len(ids) < 2 {
			break
		}
		after = ids[len(ids)-1]
	}
	assert.Len(t, all, 5)
	assert.IsIncreasing(t, all)

	monthly, err := repo.ListStaleMonthlyIDs(ctx, dayStart, "", 10)
	require.NoError(t, err)
	assert.Equal(t, all, monthly)

	none, err := repo.ListStaleMonthlyIDs(ctx, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), "", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListInterestBearingIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(openDB(t))

	bearing := newAccount("u1", model.AccountStatusActive)
	bearing.InterestRate = decimal.RequireFromString("0.05")
	require.NoError(t, repo.Create(ctx, nil, bearing))

	frozen := newAccount("u1", model.AccountStatusSuspended)
	frozen.InterestRate = decimal.RequireFromString("0.05")
	require.NoError(t, repo.Create(ctx, nil, frozen))

	require.NoError(t, repo.Create(ctx, nil, newAccount("u1", model.AccountStatusActive)))

	ids, err := repo.ListInterestBearingIDs(ctx, "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{bearing.ID}, ids)
}

func TestPaymentUpdateIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepository(openDB(t))

	p := newPayment("PAY1", model.PaymentStatusPending)
	require.NoError(t, repo.Create(ctx, nil, p))

	p.Status = model.PaymentStatusProcessing
	require.NoError(t, repo.Update(ctx, nil, p, model.PaymentStatusPending))

	stale := newPayment("PAY1", model.PaymentStatusCancelled)
	stale.ID = p.ID
	err := repo.Update(ctx, nil, stale, model.PaymentStatusPending)
	assert.True(t, errors.Is(err, model.ErrPaymentStatusInvalid))

	stored, err := repo.GetByPaymentID(ctx, "PAY1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusProcessing, stored.Status)

	missing, err := repo.FindByPaymentID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = repo.GetByPaymentID(ctx, "nope")
	assert.True(t, errors.Is(err, model.ErrPaymentNotFound))
}

func TestPaymentSweepQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepository(openDB(t))

	past := t0.Add(-time.Hour)
	future := t0.Add(time.Hour)

	due := newPayment("DUE", model.PaymentStatusPending)
	due.ScheduledDate = &past
	notDue := newPayment("LATER", model.PaymentStatusPending)
	notDue.ScheduledDate = &future
	retryDue := newPayment("RETRY", model.PaymentStatusPending)
	retryDue.NextRetryDate = &past
	unscheduled := newPayment("NOW", model.PaymentStatusPending)

	failed := newPayment("FAILED", model.PaymentStatusFailed)
	failed.FailureCode = model.FailureCodeProcessingError
	failed.FailureDate = &past
	rejected := newPayment("REJECTED", model.PaymentStatusFailed)
	rejected.FailureCode = model.FailureCodeFraudRejected
	rejected.FailureDate = &past
	exhausted := newPayment("EXHAUSTED", model.PaymentStatusFailed)
	exhausted.FailureCode = model.FailureCodeProcessingError
	exhausted.FailureDate = &past
	exhausted.RetryCount = 3

	stuck := newPayment("STUCK", model.PaymentStatusFraudCheck)
	stuck.ProcessingDate = &past
	fresh := newPayment("FRESH", model.PaymentStatusProcessing)
	fresh.ProcessingDate = &future

	for _, p := range []*model.Payment{due, notDue, retryDue, unscheduled, failed, rejected, exhausted, stuck, fresh} {
		require.NoError(t, repo.Create(ctx, nil, p))
	}

	scheduled, err := repo.GetScheduledBefore(ctx, t0, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"DUE", "RETRY"}, paymentIDs(scheduled))

	retryable, err := repo.GetRetryEligible(ctx, t0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"FAILED"}, paymentIDs(retryable))

	inFlight, err := repo.GetStuckInFlight(ctx, t0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"STUCK"}, paymentIDs(inFlight))
}

func TestPaymentListings(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepository(openDB(t))

	dest := "acc-2"
	for i, id := range []string{"B2", "B1", "B3"} {
		p := newPayment(id, model.PaymentStatusPending)
		p.BatchID = "BAT1"
		p.BatchSequence = []int{2, 1, 3}[i]
		p.IsBatchPayment = true
		if id == "B3" {
			p.DestinationAccountID = &dest
		}
		require.NoError(t, repo.Create(ctx, nil, p))
	}

	batch, err := repo.ListByBatchID(ctx, "BAT1")
	require.NoError(t, err)
	assert.Equal(t, []string{"B1", "B2", "B3"}, paymentIDs(batch))

	byDest, err := repo.ListByAccountID(ctx, "acc-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"B3"}, paymentIDs(byDest))

	page, total, err := repo.ListByUserID(ctx, "u1", 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, page, 2)
}

func paymentIDs(payments []*model.Payment) []string {
	ids := make([]string, 0, len(payments))
	for _, p := range payments {
		ids = append(ids, p.PaymentID)
	}
	return ids
}

func TestTransactionStatusCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepository(openDB(t))

	entry := &model.AccountTransaction{
		TransactionNo: "TXN1",
		AccountID:     "acc-1",
		UserID:        "u1",
		Type:          model.TransactionTypeTransfer,
		Amount:        decimal.NewFromInt(-10),
		Currency:      model.CurrencyUSD,
		BalanceAfter:  decimal.NewFromInt(10),
		Reference:     "PAY1",
		Status:        model.TransactionStatusCompleted,
	}
	require.NoError(t, repo.Create(ctx, nil, entry))
	require.NoError(t, repo.Create(ctx, nil, &model.AccountTransaction{
		TransactionNo: "TXN2",
		AccountID:     "acc-2",
		UserID:        "u2",
		Type:          model.TransactionTypeWithdrawal,
		Amount:        decimal.NewFromInt(-1),
		Currency:      model.CurrencyUSD,
		Reference:     "PAY2",
		Status:        model.TransactionStatusCompleted,
	}))

	exists, err := repo.HasSettlementLegs(ctx, "acc-1", "PAY1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.HasSettlementLegs(ctx, "acc-9", "PAY1")
	require.NoError(t, err)
	assert.False(t, exists, "legs on another account do not count")

	exists, err = repo.HasSettlementLegs(ctx, "acc-2", "PAY2")
	require.NoError(t, err)
	assert.False(t, exists, "a withdrawal sharing the reference is not a settlement leg")

	require.NoError(t, repo.UpdateStatus(ctx, nil, "TXN1", model.TransactionStatusCompleted, model.TransactionStatusReversed))

	err = repo.UpdateStatus(ctx, nil, "TXN1", model.TransactionStatusCompleted, model.TransactionStatusReversed)
	assert.True(t, errors.Is(err, model.ErrInvalidState))

	err = repo.UpdateStatus(ctx, nil, "TXN1", model.TransactionStatusReversed, model.TransactionStatusCompleted)
	assert.True(t, errors.Is(err, model.ErrInvalidState))

	exists, err = repo.HasSettlementLegs(ctx, "acc-1", "PAY1")
	require.NoError(t, err)
	assert.False(t, exists, "reversed entries do not count as settlement")

	_, err = repo.GetByTransactionNo(ctx, "TXN404")
	assert.True(t, errors.Is(err, model.ErrTransactionNotFound))
}

func TestOutboxRecordFailureParksAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepository(openDB(t))

	msg := &model.OutboxMessage{
		EventType:   string(model.EventPaymentCompleted),
		AggregateID: "PAY1",
		MessageKey:  "PAY1",
		Topic:       "payment-events",
		Payload:     "{}",
		Status:      model.OutboxStatusPending,
	}
	require.NoError(t, repo.Create(ctx, nil, msg))

	require.NoError(t, repo.RecordFailure(ctx, msg.ID, "broker down", 2))
	pending, err := repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)
	assert.Equal(t, "broker down", pending[0].LastError)

	require.NoError(t, repo.RecordFailure(ctx, msg.ID, "broker down", 2))
	failed, err := repo.GetFailedMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)

	require.NoError(t, repo.Requeue(ctx, msg.ID))
	assert.True(t, errors.Is(repo.Requeue(ctx, msg.ID), model.ErrInvalidState), "only FAILED messages requeue")
	count, err := repo.CountByStatus(ctx, model.OutboxStatusPending)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	require.NoError(t, repo.MarkAsSent(ctx, msg.ID))
	count, err = repo.CountByStatus(ctx, model.OutboxStatusSent)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

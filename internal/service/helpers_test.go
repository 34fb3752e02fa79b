package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"paycore/internal/infrastructure/database"
	"paycore/internal/infrastructure/lock"
	"paycore/internal/metrics"
	"paycore/internal/model"
	"paycore/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type stubFees struct {
	fee decimal.Decimal
	err error
}

func (f *stubFees) Compute(context.Context, model.PaymentType, decimal.Decimal, model.Currency) (decimal.Decimal, error) {
	return f.fee, f.err
}

type stubCompliance struct {
	status model.ComplianceStatus
	err    error
	calls  int
}

func (c *stubCompliance) Check(context.Context, *model.Payment) (model.ComplianceStatus, error) {
	c.calls++
	return c.status, c.err
}

type stubFraud struct {
	score int
	err   error
}

func (f *stubFraud) Score(context.Context, *model.Payment) (int, error) {
	return f.score, f.err
}

type testEnv struct {
	db         *gorm.DB
	clock      *testClock
	ledger     *LedgerService
	payments   *PaymentService
	fees       *stubFees
	compliance *stubCompliance
	fraud      *stubFraud
	policy     PaymentPolicy
}

func newTestEnv(t *testing.T, ledgerOpts ...LedgerOption) *testEnv {
	t.Helper()

	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	env := &testEnv{
		db:         db,
		clock:      newTestClock(),
		fees:       &stubFees{fee: decimal.Zero},
		compliance: &stubCompliance{status: model.ComplianceStatusApproved},
		fraud:      &stubFraud{score: 10},
		policy:     DefaultPaymentPolicy(),
	}

	m := metrics.New(prometheus.NewRegistry())
	locker := lock.NewLocalLocker()
	events := NewOutboxPublisher(db, "account-events", "payment-events")

	opts := append([]LedgerOption{WithLedgerClock(env.clock.Now), WithLedgerMetrics(m)}, ledgerOpts...)
	env.ledger = NewLedgerService(db, locker, events, opts...)
	env.payments = NewPaymentService(db, env.ledger, locker, events,
		env.fees, env.compliance, env.fraud, env.policy,
		WithPaymentClock(env.clock.Now), WithPaymentMetrics(m))
	return env
}

func (e *testEnv) openAccount(t *testing.T, userID string, currency model.Currency, deposit string) *model.Account {
	t.Helper()
	account, err := e.ledger.OpenAccount(context.Background(), &OpenAccountRequest{
		UserID:         userID,
		AccountType:    model.AccountTypeCurrent,
		Currency:       currency,
		InitialDeposit: d(deposit),
	})
	require.NoError(t, err)
	return account
}

// reload reads the account straight from the database.
func (e *testEnv) reload(t *testing.T, accountID string) *model.Account {
	t.Helper()
	account, err := repository.NewAccountRepository(e.db).GetByID(context.Background(), accountID)
	require.NoError(t, err)
	require.True(t, account.Balanced(), "balance identity broken: %+v", account)
	return account
}

func (e *testEnv) entries(t *testing.T, accountID string) []*model.AccountTransaction {
	t.Helper()
	list, _, err := repository.NewTransactionRepository(e.db).ListByAccountID(context.Background(), accountID, 1, 100)
	require.NoError(t, err)
	return list
}

func (e *testEnv) eventTypes(t *testing.T) []string {
	t.Helper()
	var types []string
	require.NoError(t, e.db.Model(&model.OutboxMessage{}).Order("id ASC").Pluck("event_type", &types).Error)
	return types
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s", want, got)
}

package job

import (
	"context"
	"log"
	"sync"
	"time"

	"paycore/internal/config"
	"paycore/internal/model"
	"paycore/internal/repository"

	"gorm.io/gorm"
)

type InterestApplier interface {
	ApplyInterest(ctx context.Context, accountID string) (*model.AccountTransaction, error)
}

// InterestAccrualJob credits daily interest on interest-bearing accounts once
// per UTC day. ApplyInterest is itself idempotent per day, so a restart
// re-running the pass is harmless.
type InterestAccrualJob struct {
	accountRepo *repository.AccountRepository
	ledger      InterestApplier
	now         func() time.Time
	stopCh      chan struct{}
	stopOnce    sync.Once
	interval    time.Duration
	batchSize   int

	lastRun string
}

func NewInterestAccrualJob(db *gorm.DB, ledger InterestApplier, cfg *config.Config) *InterestAccrualJob {
	return &InterestAccrualJob{
		accountRepo: repository.NewAccountRepository(db),
		ledger:      ledger,
		now:         time.Now,
		stopCh:      make(chan struct{}),
		interval:    secondsOr(cfg.Jobs.LimitResetCheckSeconds, time.Minute),
		batchSize:   batchOr(cfg.Jobs.BatchSize, 100),
	}
}

func (j *InterestAccrualJob) Start(ctx context.Context) {
	j.accrue(ctx, j.now())
	runTicker(ctx, "InterestAccrualJob", j.interval, j.stopCh, func(ctx context.Context) {
		j.accrue(ctx, j.now())
	})
}

func (j *InterestAccrualJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

func (j *InterestAccrualJob) accrue(ctx context.Context, now time.Time) {
	day := now.UTC().Format("2006-01-02")
	if day == j.lastRun {
		return
	}

	n := forEachAccount(ctx, j.batchSize, j.accountRepo.ListInterestBearingIDs,
		func(ctx context.Context, accountID string) error {
			_, err := j.ledger.ApplyInterest(ctx, accountID)
			return err
		})
	log.Printf("[InterestAccrualJob] %s: interest applied on %d accounts", day, n)
	j.lastRun = day
}

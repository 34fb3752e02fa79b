package job

import (
	"context"
	"log"
	"sync"
	"time"

	"paycore/internal/config"
	"paycore/internal/repository"

	"gorm.io/gorm"
)

// LimitResetter is the part of the ledger the limit reset job drives.
type LimitResetter interface {
	ResetDailyLimitsBefore(ctx context.Context, accountID string, dayStart time.Time) error
	ResetMonthlyLimitsBefore(ctx context.Context, accountID string, monthStart time.Time) error
}

// LimitResetJob zeroes spending counters that belong to an earlier local
// day or month. Staleness is read from each account's last counted
// transaction, so a boundary crossed while the process was down is caught
// up on the first tick after startup.
type LimitResetJob struct {
	accountRepo *repository.AccountRepository
	ledger      LimitResetter
	now         func() time.Time
	stopCh      chan struct{}
	stopOnce    sync.Once
	interval    time.Duration
	batchSize   int
}

func NewLimitResetJob(db *gorm.DB, ledger LimitResetter, cfg *config.Config) *LimitResetJob {
	return &LimitResetJob{
		accountRepo: repository.NewAccountRepository(db),
		ledger:      ledger,
		now:         time.Now,
		stopCh:      make(chan struct{}),
		interval:    secondsOr(cfg.Jobs.LimitResetCheckSeconds, time.Minute),
		batchSize:   batchOr(cfg.Jobs.BatchSize, 100),
	}
}

func (j *LimitResetJob) Start(ctx context.Context) {
	j.resetStale(ctx, j.now())
	runTicker(ctx, "LimitResetJob", j.interval, j.stopCh, func(ctx context.Context) {
		j.resetStale(ctx, j.now())
	})
}

func (j *LimitResetJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

// resetStale resets monthly counters before daily ones. Accounts whose
// reset fails stay stale and are picked up again on the next tick.
func (j *LimitResetJob) resetStale(ctx context.Context, now time.Time) {
	now = now.Local()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local)

	monthly := func(ctx context.Context, afterID string, limit int) ([]string, error) {
		return j.accountRepo.ListStaleMonthlyIDs(ctx, monthStart, afterID, limit)
	}
	if n := forEachAccount(ctx, j.batchSize, monthly, func(ctx context.Context, accountID string) error {
		return j.ledger.ResetMonthlyLimitsBefore(ctx, accountID, monthStart)
	}); n > 0 {
		log.Printf("[LimitResetJob] monthly counters reset on %d accounts for %s", n, monthStart.Format("2006-01"))
	}

	daily := func(ctx context.Context, afterID string, limit int) ([]string, error) {
		return j.accountRepo.ListStaleDailyIDs(ctx, dayStart, afterID, limit)
	}
	if n := forEachAccount(ctx, j.batchSize, daily, func(ctx context.Context, accountID string) error {
		return j.ledger.ResetDailyLimitsBefore(ctx, accountID, dayStart)
	}); n > 0 {
		log.Printf("[LimitResetJob] daily counters reset on %d accounts for %s", n, dayStart.Format("2006-01-02"))
	}
}

type idPager func(ctx context.Context, afterID string, limit int) ([]string, error)

// forEachAccount pages ids by key and applies fn to each, logging and
// skipping failures. It returns the number of accounts fn succeeded on.
func forEachAccount(ctx context.Context, batchSize int, page idPager, fn func(ctx context.Context, accountID string) error) int {
	done := 0
	after := ""
	for {
		if ctx.Err() != nil {
			return done
		}
		ids, err := page(ctx, after, batchSize)
		if err != nil {
			log.Printf("[AccountSweep] list accounts after %q failed: %v", after, err)
			return done
		}
		for _, id := range ids {
			if err := fn(ctx, id); err != nil {
				log.Printf("[AccountSweep] account %s: %v", id, err)
				continue
			}
			done++
		}
		if len(ids) < batchSize {
			return done
		}
		after = ids[len(ids)-1]
	}
}

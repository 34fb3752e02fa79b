package job

import (
	"context"
	"log"
	"sync"
	"time"

	"paycore/internal/config"
	"paycore/internal/service"
)

type StuckPaymentResolver interface {
	CompensateStuckPayments(ctx context.Context) (service.SweepResult, error)
}

// PaymentCompensateJob resolves payments stuck mid-processing after a crash
// or a lost settlement response.
type PaymentCompensateJob struct {
	payments StuckPaymentResolver
	stopCh   chan struct{}
	stopOnce sync.Once
	interval time.Duration
}

func NewPaymentCompensateJob(payments StuckPaymentResolver, cfg *config.Config) *PaymentCompensateJob {
	return &PaymentCompensateJob{
		payments: payments,
		stopCh:   make(chan struct{}),
		interval: secondsOr(cfg.Jobs.CompensateSeconds, 30*time.Second),
	}
}

func (j *PaymentCompensateJob) Start(ctx context.Context) {
	runTicker(ctx, "PaymentCompensateJob", j.interval, j.stopCh, j.compensate)
}

func (j *PaymentCompensateJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

func (j *PaymentCompensateJob) compensate(ctx context.Context) {
	result, err := j.payments.CompensateStuckPayments(ctx)
	if err != nil {
		log.Printf("[PaymentCompensateJob] compensation failed: %v", err)
		return
	}
	if result.Picked > 0 {
		log.Printf("[PaymentCompensateJob] stuck=%d, resolved=%d, failed=%d",
			result.Picked, result.Succeeded, result.Failed)
	}
}

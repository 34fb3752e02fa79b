package job

import (
	"context"
	"log"
	"sync"
	"time"

	"paycore/internal/config"
	"paycore/internal/service"
)

// PaymentSweeps is the part of the payment service the sweeper drives.
type PaymentSweeps interface {
	ProcessScheduledPayments(ctx context.Context) (service.SweepResult, error)
	RetryFailedPayments(ctx context.Context) (service.SweepResult, error)
}

// PaymentSweeper runs the scheduled sweep and the retry sweep on two
// independent tickers. Items are independent; one failure never stops a sweep.
type PaymentSweeper struct {
	payments          PaymentSweeps
	stopCh            chan struct{}
	stopOnce          sync.Once
	scheduledInterval time.Duration
	retryInterval     time.Duration
}

func NewPaymentSweeper(payments PaymentSweeps, cfg *config.Config) *PaymentSweeper {
	return &PaymentSweeper{
		payments:          payments,
		stopCh:            make(chan struct{}),
		scheduledInterval: secondsOr(cfg.Jobs.ScheduledSweepSeconds, 60*time.Second),
		retryInterval:     secondsOr(cfg.Jobs.RetrySweepSeconds, 5*time.Minute),
	}
}

func (j *PaymentSweeper) Start(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		runTicker(ctx, "ScheduledPaymentSweep", j.scheduledInterval, j.stopCh, j.sweepScheduled)
	}()
	go func() {
		defer wg.Done()
		runTicker(ctx, "FailedPaymentRetrySweep", j.retryInterval, j.stopCh, j.sweepRetries)
	}()
	wg.Wait()
}

func (j *PaymentSweeper) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

func (j *PaymentSweeper) sweepScheduled(ctx context.Context) {
	result, err := j.payments.ProcessScheduledPayments(ctx)
	if err != nil {
		log.Printf("[ScheduledPaymentSweep] sweep failed: %v", err)
		return
	}
	if result.Picked > 0 {
		log.Printf("[ScheduledPaymentSweep] picked=%d, succeeded=%d, failed=%d",
			result.Picked, result.Succeeded, result.Failed)
	}
}

func (j *PaymentSweeper) sweepRetries(ctx context.Context) {
	result, err := j.payments.RetryFailedPayments(ctx)
	if err != nil {
		log.Printf("[FailedPaymentRetrySweep] sweep failed: %v", err)
		return
	}
	if result.Picked > 0 {
		log.Printf("[FailedPaymentRetrySweep] picked=%d, succeeded=%d, failed=%d",
			result.Picked, result.Succeeded, result.Failed)
	}
}

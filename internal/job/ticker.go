package job

import (
	"context"
	"log"
	"time"
)

// runTicker calls fn every interval until ctx is done or stopCh closes.
func runTicker(ctx context.Context, name string, interval time.Duration, stopCh <-chan struct{}, fn func(context.Context)) {
	log.Printf("[%s] started, interval=%s", name, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[%s] context cancelled, exiting", name)
			return
		case <-stopCh:
			log.Printf("[%s] stopped", name)
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func secondsOr(seconds int, def time.Duration) time.Duration {
	if seconds <= 0 {
		return def
	}
	return time.Duration(seconds) * time.Second
}

func batchOr(size, def int) int {
	if size <= 0 {
		return def
	}
	return size
}

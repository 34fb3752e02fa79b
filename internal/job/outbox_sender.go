package job

import (
	"context"
	"log"
	"sync"
	"time"

	"paycore/internal/config"
	"paycore/internal/metrics"
	"paycore/internal/model"
	"paycore/internal/repository"

	"gorm.io/gorm"
)

// MessageSender is the producer side of the relay; *mq.Producer satisfies it.
type MessageSender interface {
	SendMessage(topic, key, value string) error
}

type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	producer   MessageSender
	metrics    *metrics.Metrics
	maxRetries int
	stopCh     chan struct{}
	stopOnce   sync.Once
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, producer MessageSender, cfg *config.Config, m *metrics.Metrics) *OutboxSender {
	interval := 100 * time.Millisecond
	if cfg.Jobs.OutboxIntervalMs > 0 {
		interval = time.Duration(cfg.Jobs.OutboxIntervalMs) * time.Millisecond
	}
	maxRetries := cfg.Business.MaxRetryCount
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		producer:   producer,
		metrics:    m,
		maxRetries: maxRetries,
		stopCh:     make(chan struct{}),
		interval:   interval,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	runTicker(ctx, "OutboxSender", s.interval, s.stopCh, func(ctx context.Context) {
		s.processPendingMessages(ctx)
	})
}

func (s *OutboxSender) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// processPendingMessages relays one batch and returns how many were sent.
func (s *OutboxSender) processPendingMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		log.Printf("[OutboxSender] query pending messages failed: %v", err)
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.producer.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := s.outboxRepo.MarkAsSent(ctx, msg.ID); updateErr != nil {
			log.Printf("[OutboxSender] mark message sent failed: id=%d, err=%v", msg.ID, updateErr)
			return false
		}
		s.metrics.ObserveOutbox("sent")
		return true
	}

	log.Printf("[OutboxSender] send failed: id=%d, event=%s, err=%v", msg.ID, msg.EventType, err)

	if err := s.outboxRepo.RecordFailure(ctx, msg.ID, err.Error(), s.maxRetries); err != nil {
		log.Printf("[OutboxSender] record failure failed: id=%d, err=%v", msg.ID, err)
		return false
	}
	if msg.RetryCount+1 >= s.maxRetries {
		log.Printf("[OutboxSender] message exceeded %d attempts, marked FAILED: id=%d", s.maxRetries, msg.ID)
		s.metrics.ObserveOutbox("failed")
		return false
	}
	s.metrics.ObserveOutbox("retry")
	return false
}

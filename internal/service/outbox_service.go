package service

import (
	"context"
	"fmt"
	"log"

	"paycore/internal/model"
	"paycore/internal/repository"

	"gorm.io/gorm"
)

// OutboxStats counts outbox messages per status.
type OutboxStats struct {
	Pending int64 `json:"pending"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
}

// OutboxService is the operator view of the event relay: it lists messages
// the sender gave up on and puts them back in the queue.
type OutboxService struct {
	outboxRepo *repository.OutboxRepository
}

func NewOutboxService(db *gorm.DB) *OutboxService {
	return &OutboxService{outboxRepo: repository.NewOutboxRepository(db)}
}

// Stats counts outbox rows per status.
func (s *OutboxService) Stats(ctx context.Context) (*OutboxStats, error) {
	var stats OutboxStats
	for status, dst := range map[string]*int64{
		model.OutboxStatusPending: &stats.Pending,
		model.OutboxStatusSent:    &stats.Sent,
		model.OutboxStatusFailed:  &stats.Failed,
	} {
		n, err := s.outboxRepo.CountByStatus(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("count %s outbox messages: %w", status, err)
		}
		*dst = n
	}
	return &stats, nil
}

// ListFailed returns parked messages, oldest first.
func (s *OutboxService) ListFailed(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	return s.outboxRepo.GetFailedMessages(ctx, limit)
}

// Requeue gives a FAILED message a fresh retry budget.
func (s *OutboxService) Requeue(ctx context.Context, id int64) error {
	if err := s.outboxRepo.Requeue(ctx, id); err != nil {
		return err
	}
	log.Printf("[OutboxService] message %d requeued", id)
	return nil
}

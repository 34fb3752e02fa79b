package service

import (
	"context"
	"encoding/json"
	"fmt"

	"paycore/internal/model"
	"paycore/internal/repository"

	"gorm.io/gorm"
)

// EventPublisher records a domain event as part of the caller's transaction.
// tx is the open transaction; the event must become visible only if it commits.
type EventPublisher interface {
	Publish(ctx context.Context, tx *gorm.DB, event model.Event) error
}

// OutboxPublisher writes events to the outbox table; the outbox sender job
// relays them to Kafka after commit.
type OutboxPublisher struct {
	outboxRepo   *repository.OutboxRepository
	accountTopic string
	paymentTopic string
}

func NewOutboxPublisher(db *gorm.DB, accountTopic, paymentTopic string) *OutboxPublisher {
	return &OutboxPublisher{
		outboxRepo:   repository.NewOutboxRepository(db),
		accountTopic: accountTopic,
		paymentTopic: paymentTopic,
	}
}

// Publish writes event as a PENDING outbox row on tx. Payment events go to
// the payment topic and the rest to the account topic, keyed by aggregate id.
func (p *OutboxPublisher) Publish(ctx context.Context, tx *gorm.DB, event model.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	topic := p.accountTopic
	if event.Type.IsPaymentEvent() {
		topic = p.paymentTopic
	}

	msg := &model.OutboxMessage{
		EventType:   string(event.Type),
		AggregateID: event.AggregateID,
		MessageKey:  event.AggregateID,
		Topic:       topic,
		Payload:     string(payload),
		Status:      model.OutboxStatusPending,
	}
	if err := p.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("write %s event to outbox: %w", event.Type, err)
	}
	return nil
}

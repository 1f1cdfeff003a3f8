package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/queue"
	"github.com/noah-isme/backend-pos/internal/repo"
)

// Queue task kinds consumed by the worker binary.
const (
	TaskReceiptEmail    = "receipt-email"
	TaskWebhookDelivery = "webhook-delivery"
)

// Envelope is the queue payload carrying one domain event.
type Envelope struct {
	EventID     string          `json:"eventId"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// Scheduler fans emitted events out to queue tasks. It implements
// events.DeliveryScheduler.
type Scheduler struct {
	Queue       queue.Enqueuer
	MaxAttempts int
	// SendReceipts gates the receipt-email task; webhooks fire for every topic.
	SendReceipts bool
}

// Schedule enqueues the delivery tasks for one event. The event id doubles as
// the idempotency key so re-emits cannot double-deliver.
func (s Scheduler) Schedule(ctx context.Context, event repo.DomainEvent) error {
	if s.Queue.R == nil {
		return nil
	}
	env := Envelope{
		EventID:     repo.UUIDString(event.ID),
		Topic:       event.Topic,
		AggregateID: repo.UUIDString(event.AggregateID),
		Payload:     event.Payload,
		OccurredAt:  event.OccurredAt.Time,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = 6
	}
	if err := s.Queue.Enqueue(ctx, queue.Task{
		Kind:           TaskWebhookDelivery,
		Payload:        raw,
		IdempotencyKey: TaskWebhookDelivery + ":" + env.EventID,
		MaxAttempts:    attempts,
	}); err != nil {
		return err
	}
	if s.SendReceipts && event.Topic == events.TopicSettlementCompleted {
		return s.Queue.Enqueue(ctx, queue.Task{
			Kind:           TaskReceiptEmail,
			Payload:        raw,
			IdempotencyKey: TaskReceiptEmail + ":" + env.EventID,
			MaxAttempts:    attempts,
		})
	}
	return nil
}

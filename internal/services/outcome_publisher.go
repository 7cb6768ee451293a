package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/models"
)

// AMQPChannel is the subset of *amqp.Channel the publisher uses.
type AMQPChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// OutcomeMessage is the notification payload for one batch.
type OutcomeMessage struct {
	BatchID  string                 `json:"batch_id"`
	SentAt   time.Time              `json:"sent_at"`
	Outcomes []models.OutcomeRecord `json:"outcomes"`
}

// OutcomePublisher sends outcome batches to a durable RabbitMQ queue.
type OutcomePublisher struct {
	mu    sync.Mutex
	ch    AMQPChannel
	queue string
}

func NewOutcomePublisher(ch AMQPChannel, queue string) (*OutcomePublisher, error) {
	if queue == "" {
		queue = "certificate.outcomes"
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare outcome queue: %w", err)
	}
	return &OutcomePublisher{ch: ch, queue: queue}, nil
}

// Send publishes the outcomes of one batch. The message id is a fresh uuid so
// consumers can dedupe redelivered notifications.
func (p *OutcomePublisher) Send(ctx context.Context, batchID string, outcomes []models.OutcomeRecord) error {
	if len(outcomes) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := OutcomeMessage{
		BatchID:  batchID,
		SentAt:   time.Now().UTC(),
		Outcomes: outcomes,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Publish("", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    msg.SentAt,
		Body:         body,
	})
}

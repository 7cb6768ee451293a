package consumer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/models"
)

// retryCountHeader counts how many times a batch was put back on the queue.
const retryCountHeader = "x-retry-count"

// BatchBuilder processes one decoded batch.
type BatchBuilder interface {
	Build(ctx context.Context, batch *models.BatchEnvelope) ([]models.OutcomeRecord, error)
}

// Republisher puts a failed batch back on its queue.
type Republisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// CertificateConsumer feeds queued batches to the builder. Malformed batches
// are dead-lettered. Per-participant failures and outcome notification
// failures still ack the message, since the certificates are delivered by
// then. Any other batch failure is republished with an incremented retry
// count until maxDeliveries is reached, then dead-lettered.
type CertificateConsumer struct {
	base          *BaseConsumer
	builder       BatchBuilder
	republisher   Republisher
	logger        *slog.Logger
	maxDeliveries int
}

func NewCertificateConsumer(base *BaseConsumer, builder BatchBuilder, republisher Republisher, logger *slog.Logger, maxDeliveries int) *CertificateConsumer {
	if maxDeliveries <= 0 {
		maxDeliveries = 5
	}
	return &CertificateConsumer{
		base:          base,
		builder:       builder,
		republisher:   republisher,
		logger:        logger,
		maxDeliveries: maxDeliveries,
	}
}

func (c *CertificateConsumer) Start(ctx context.Context) error {
	return c.base.Start(ctx, c.handleDelivery)
}

func (c *CertificateConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) error {
	batch, err := models.DecodeBatch(msg.Body)
	if err != nil {
		c.logger.Error("failed to decode certificate batch", slog.String("message_id", msg.MessageId), slog.Any("error", err))
		_ = msg.Reject(false)
		return err
	}
	if batch.BatchID == "" {
		batch.BatchID = msg.MessageId
	}
	log := c.logger.With(slog.String("batch_id", batch.BatchID))

	_, err = c.builder.Build(ctx, batch)
	switch {
	case err == nil:
		return msg.Ack(false)
	case errors.Is(err, models.ErrBatchInput):
		_ = msg.Reject(false)
		return err
	case errors.Is(err, models.ErrNotification):
		log.Error("outcome notification lost, batch acked", slog.Any("error", err))
		_ = msg.Ack(false)
		return err
	}

	attempts := deliveryAttempts(&msg) + 1
	if attempts >= c.maxDeliveries || c.republisher == nil {
		log.Error("batch failed, message dead-lettered", slog.Int("attempts", attempts), slog.Any("error", err))
		_ = msg.Nack(false, false)
		return err
	}
	if pubErr := c.republish(msg, attempts); pubErr != nil {
		log.Error("failed to republish batch, message dead-lettered", slog.Any("error", errors.Join(err, pubErr)))
		_ = msg.Nack(false, false)
		return err
	}
	log.Warn("batch failed, message republished", slog.Int("attempts", attempts), slog.Any("error", err))
	_ = msg.Ack(false)
	return err
}

func (c *CertificateConsumer) republish(msg amqp.Delivery, attempts int) error {
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[retryCountHeader] = int32(attempts)

	return c.republisher.Publish(msg.Exchange, msg.RoutingKey, false, false, amqp.Publishing{
		Headers:      headers,
		ContentType:  msg.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.MessageId,
		Timestamp:    msg.Timestamp,
		Body:         msg.Body,
	})
}

// deliveryAttempts is the number of failed runs the message has already been
// through. A broker redelivery without a retry count counts as one.
func deliveryAttempts(msg *amqp.Delivery) int {
	switch n := msg.Headers[retryCountHeader].(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	}
	if msg.Redelivered {
		return 1
	}
	return 0
}

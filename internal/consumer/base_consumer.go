package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"
)

// ErrDeliveriesClosed is returned by Start when the broker closes the
// delivery channel before ctx is done.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Handler processes one delivery and is responsible for acking it.
type Handler func(context.Context, amqp.Delivery) error

// BaseConsumer wires RabbitMQ connectivity, queue declaration and worker handling.
type BaseConsumer struct {
	conn         *amqp.Connection
	queue        string
	dlq          string
	routingKey   string
	prefetch     int
	workerCount  int
	logger       *slog.Logger
	exchangeName string
}

func NewBaseConsumer(conn *amqp.Connection, queue, dlq string, prefetch, workerCount int, logger *slog.Logger) *BaseConsumer {
	if prefetch <= 0 {
		prefetch = 1
	}
	if workerCount <= 0 {
		workerCount = 1
	}
	return &BaseConsumer{
		conn:         conn,
		queue:        queue,
		dlq:          dlq,
		routingKey:   "certificate",
		prefetch:     prefetch,
		workerCount:  workerCount,
		logger:       logger,
		exchangeName: "certificates.direct",
	}
}

// Start consumes until ctx is done or the broker closes the channel.
func (c *BaseConsumer) Start(ctx context.Context, handler Handler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := c.setupQueue(ch); err != nil {
		return err
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	const autoAck = false
	deliveries, err := ch.Consume(c.queue, "", autoAck, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.logger.Info("consuming certificate batches",
		slog.String("queue", c.queue),
		slog.Int("workers", c.workerCount),
	)

	closed := make(chan struct{})
	var once sync.Once
	var wg sync.WaitGroup
	for i := 0; i < c.workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-deliveries:
					if !ok {
						once.Do(func() { close(closed) })
						return
					}
					if err := handler(ctx, msg); err != nil {
						c.logger.Error("handler returned error", slog.Int("worker", id), slog.Any("error", err))
					}
				}
			}
		}(i)
	}

	select {
	case <-ctx.Done():
		wg.Wait()
		return nil
	case <-closed:
		wg.Wait()
		return ErrDeliveriesClosed
	}
}

// setupQueue declares the exchange, the dead-letter queue and the batch queue,
// and binds the batch queue to the certificate routing key.
func (c *BaseConsumer) setupQueue(ch *amqp.Channel) error {
	const durable, autoDelete, exclusive, noWait = true, false, false, false

	if err := ch.ExchangeDeclare(c.exchangeName, "direct", durable, autoDelete, false, noWait, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.exchangeName, err)
	}

	var args amqp.Table
	if c.dlq != "" {
		if _, err := ch.QueueDeclare(c.dlq, durable, autoDelete, exclusive, noWait, nil); err != nil {
			return fmt.Errorf("declare dead-letter queue %s: %w", c.dlq, err)
		}
		args = amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": c.dlq,
		}
	}

	if _, err := ch.QueueDeclare(c.queue, durable, autoDelete, exclusive, noWait, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	if err := ch.QueueBind(c.queue, c.routingKey, c.exchangeName, noWait, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", c.queue, err)
	}
	return nil
}

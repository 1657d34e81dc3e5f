package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Guizzs26/go-sync-sheets/internal/processor"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Queue is the durable queue the consumer drains
const Queue = "ledger.sync.requests"

// SyncConsumer manages the connection and message flow from the broker
type SyncConsumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	handler  *processor.SyncHandler
	logger   *slog.Logger
	prefetch int
	throttle time.Duration
}

// NewSyncConsumer connects and applies QoS. Sheet writes for the same record
// must not interleave across deliveries, so prefetch is normally 1
func NewSyncConsumer(url string, prefetch int, handler *processor.SyncHandler, logger *slog.Logger) (*SyncConsumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if prefetch < 1 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	return &SyncConsumer{
		conn:     conn,
		channel:  ch,
		handler:  handler,
		logger:   logger,
		prefetch: prefetch,
		throttle: 5 * time.Second,
	}, nil
}

// Listen declares the topology and consumes until ctx ends or the channel closes
func (c *SyncConsumer) Listen(ctx context.Context) error {
	if err := declareExchange(c.channel); err != nil {
		return err
	}

	q, err := c.channel.QueueDeclare(Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := c.channel.QueueBind(q.Name, "sync.#", Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	msgs, err := c.channel.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer is online and waiting for sync requests", "queue", q.Name, "prefetch", c.prefetch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *SyncConsumer) handle(ctx context.Context, d amqp.Delivery) {
	req, err := Decode(d.Body)
	if err != nil {
		c.logger.Error("Dropping undecodable message", "error", err)
		d.Nack(false, false)
		return
	}

	err = c.handler.ProcessMessage(ctx, req)
	switch {
	case err == nil:
		if err := d.Ack(false); err != nil {
			c.logger.Error("Failed to Ack message", "correlation_id", req.ID, "error", err)
		}
	case errors.Is(err, processor.ErrFatal):
		d.Nack(false, false)
	default:
		c.logger.Error("Processing failed, requeueing", "correlation_id", req.ID, "error", err)
		select {
		case <-ctx.Done():
		case <-time.After(c.throttle):
		}
		d.Nack(false, true)
	}
}

// Close gracefully terminates RabbitMQ resources
func (c *SyncConsumer) Close() {
	c.logger.Info("Shutting down RabbitMQ consumer")
	c.channel.Close()
	c.conn.Close()
}

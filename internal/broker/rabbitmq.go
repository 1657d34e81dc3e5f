package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/Guizzs26/go-sync-sheets/pkg/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange carries sync requests; routing keys are "sync.<collection>"
const Exchange = "ledger.sync"

// RoutingKey returns the routing key for a collection
func RoutingKey(collection string) string {
	return "sync." + collection
}

// SyncPublisher hands detached sync requests to the broker
type SyncPublisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	logger     *slog.Logger
	connClosed chan *amqp.Error
	chanClosed chan *amqp.Error
	closeOnce  sync.Once
	mu         sync.Mutex
	healthy    atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewSyncPublisher connects, declares the exchange and enables Publisher Confirms
func NewSyncPublisher(url string, l *slog.Logger) (*SyncPublisher, error) {
	c, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := c.Channel()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	if err := declareExchange(ch); err != nil {
		ch.Close()
		c.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("failed to activate Publisher Confirms: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &SyncPublisher{
		conn:       c,
		channel:    ch,
		logger:     l,
		connClosed: make(chan *amqp.Error, 1),
		chanClosed: make(chan *amqp.Error, 1),
		ctx:        ctx,
		cancel:     cancel,
	}

	p.healthy.Store(true)
	metrics.HealthStatus.Set(1)

	p.conn.NotifyClose(p.connClosed)
	p.channel.NotifyClose(p.chanClosed)

	go func() {
		select {
		case err := <-p.connClosed:
			p.healthy.Store(false)
			metrics.HealthStatus.Set(0)
			l.Warn("RabbitMQ connection closed", "error", err)
		case err := <-p.chanClosed:
			p.healthy.Store(false)
			metrics.HealthStatus.Set(0)
			l.Warn("RabbitMQ channel closed", "error", err)
		case <-p.ctx.Done():
			return
		}
	}()
	l.Info("Connected to RabbitMQ", "exchange", Exchange)
	return p, nil
}

func declareExchange(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare topic exchange: %w", err)
	}
	return nil
}

// Publish sends req and blocks until the broker confirms it. Its signature
// matches service.RunFunc so the dispatcher can use it directly
func (p *SyncPublisher) Publish(ctx context.Context, req models.SyncRequest) error {
	if !p.IsHealthy() {
		return fmt.Errorf("broker connection is closed")
	}

	body, err := Encode(req)
	if err != nil {
		return err
	}

	l := p.logger.With(
		"correlation_id", req.ID,
		"routing_key", RoutingKey(req.Collection),
	)

	// amqp channels are not safe for concurrent publishes with confirms
	p.mu.Lock()
	deferred, err := p.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		Exchange,
		RoutingKey(req.Collection),
		false,
		false,
		amqp.Publishing{
			Headers: amqp.Table{
				"correlation_id": req.ID,
			},
			MessageId:    req.ID,
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    req.RequestedAt,
			Body:         body,
		},
	)
	p.mu.Unlock()
	if err != nil {
		l.Error("Failed to publish sync request", "error", err)
		return fmt.Errorf("publish call failed: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-deferred.Done():
		if !deferred.Acked() {
			return fmt.Errorf("RabbitMQ NACK received: sync request not persisted")
		}
		return nil
	case <-time.After(10 * time.Second):
		return fmt.Errorf("publisher confirm timeout")
	}
}

// Close gracefully shuts down the RabbitMQ resources
func (p *SyncPublisher) Close() error {
	p.closeOnce.Do(func() {
		p.logger.Info("Terminating RabbitMQ publisher")
		p.cancel()
		if p.channel != nil {
			p.channel.Close()
		}
		if p.conn != nil {
			p.conn.Close()
		}
	})
	return nil
}

// IsHealthy returns true while the connection and channel are open
func (p *SyncPublisher) IsHealthy() bool {
	return p.healthy.Load()
}

// Encode serializes a sync request for the wire
func Encode(req models.SyncRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize sync request: %w", err)
	}
	return body, nil
}

// Decode parses a delivery body, rejecting requests without a target
func Decode(body []byte) (models.SyncRequest, error) {
	var req models.SyncRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("malformed sync request: %w", err)
	}
	if req.Collection == "" || req.RecordID == "" {
		return req, fmt.Errorf("sync request missing collection or record id")
	}
	return req, nil
}

// Link keeps one SyncPublisher alive, redialing lazily when the broker drops
// the connection. Publish has the service.RunFunc signature
type Link struct {
	url    string
	logger *slog.Logger
	mu     sync.Mutex
	pub    *SyncPublisher
}

func NewLink(url string, l *slog.Logger) *Link {
	return &Link{url: url, logger: l}
}

func (k *Link) publisher() (*SyncPublisher, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.pub != nil && k.pub.IsHealthy() {
		return k.pub, nil
	}
	if k.pub != nil {
		k.pub.Close()
		k.pub = nil
	}

	pub, err := NewSyncPublisher(k.url, k.logger)
	if err != nil {
		return nil, err
	}
	k.pub = pub
	return pub, nil
}

func (k *Link) Publish(ctx context.Context, req models.SyncRequest) error {
	pub, err := k.publisher()
	if err != nil {
		return err
	}
	return pub.Publish(ctx, req)
}

func (k *Link) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.pub != nil {
		return k.pub.Close()
	}
	return nil
}

// Package publisher announces job lifecycle events on RabbitMQ.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/domain"
)

const (
	exchangeName = "c12sim.events"
	exchangeType = "topic"

	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 30 * time.Second

	publishTimeout = 5 * time.Second
)

// Publisher defines the interface for publishing job events to the message broker.
type Publisher interface {
	Publish(ctx context.Context, event *domain.JobEvent) error
	// Ping reports whether events can currently be published.
	Ping(ctx context.Context) error
	Close() error
}

// RoutingKey returns the topic key of an event, e.g. "job.finished".
func RoutingKey(status domain.JobStatus) string {
	return "job." + strings.ToLower(string(status))
}

type rabbitPublisher struct {
	url     string
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger
	mu      sync.RWMutex
	closed  bool
}

// NewRabbitMQPublisher dials the broker and declares the event exchange.
func NewRabbitMQPublisher(url string, logger *zap.Logger) (Publisher, error) {
	p := &rabbitPublisher{
		url:    url,
		logger: logger,
	}

	if err := p.connect(); err != nil {
		return nil, err
	}

	go p.watchConnection()

	return p, nil
}

func (p *rabbitPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq: channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: enable confirms: %w", err)
	}

	if err := ch.ExchangeDeclare(exchangeName, exchangeType, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}

	p.mu.Lock()
	p.conn = conn
	p.channel = ch
	p.mu.Unlock()

	p.logger.Info("RabbitMQ publisher initialized", zap.String("exchange", exchangeName))
	return nil
}

// watchConnection monitors the connection and reconnects on failure.
func (p *rabbitPublisher) watchConnection() {
	for {
		p.mu.RLock()
		if p.closed {
			p.mu.RUnlock()
			return
		}
		conn := p.conn
		p.mu.RUnlock()

		if conn == nil {
			time.Sleep(reconnectDelay)
			continue
		}

		reason, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
		if !ok {
			return
		}

		p.logger.Warn("RabbitMQ connection lost, reconnecting...",
			zap.String("reason", reason.Error()),
		)

		delay := reconnectDelay
		for {
			p.mu.RLock()
			if p.closed {
				p.mu.RUnlock()
				return
			}
			p.mu.RUnlock()

			time.Sleep(delay)

			if err := p.connect(); err != nil {
				p.logger.Warn("RabbitMQ reconnect failed", zap.Error(err), zap.Duration("retry_in", delay))
				delay = min(delay*2, maxReconnectDelay)
				continue
			}

			p.logger.Info("RabbitMQ reconnected successfully")
			break
		}
	}
}

func (p *rabbitPublisher) Publish(ctx context.Context, event *domain.JobEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}

	p.mu.RLock()
	ch := p.channel
	p.mu.RUnlock()

	if ch == nil {
		return fmt.Errorf("%w: channel not available (reconnecting)", domain.ErrPublishFailed)
	}

	confirm := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(publishCtx,
		exchangeName,
		RoutingKey(event.Status),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.JobID.String(),
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPublishFailed, err)
	}

	select {
	case ack := <-confirm:
		if !ack.Ack {
			return fmt.Errorf("%w: broker nacked event (job_id=%s)", domain.ErrPublishFailed, event.JobID)
		}
	case <-publishCtx.Done():
		return fmt.Errorf("%w: confirmation timeout (job_id=%s)", domain.ErrPublishFailed, event.JobID)
	}

	p.logger.Debug("Published job event",
		zap.String("job_id", event.JobID.String()),
		zap.String("status", string(event.Status)),
	)
	return nil
}

func (p *rabbitPublisher) Ping(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch {
	case p.closed:
		return fmt.Errorf("%w: publisher closed", domain.ErrPublishFailed)
	case p.conn == nil || p.conn.IsClosed():
		return fmt.Errorf("%w: connection down (reconnecting)", domain.ErrPublishFailed)
	case p.channel == nil || p.channel.IsClosed():
		return fmt.Errorf("%w: channel not available (reconnecting)", domain.ErrPublishFailed)
	}
	return nil
}

func (p *rabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Package publisher enqueues localization jobs on RabbitMQ.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
)

const (
	// ExchangeName is the direct exchange jobs are published to.
	ExchangeName = "vyloc.direct"
	exchangeType = "direct"

	// RoutingKey routes jobs to the main localization queue.
	RoutingKey = "localize"

	// QueueName is the main work queue.
	QueueName = "localization_jobs"

	// RetryExchangeName and RetryQueueName implement the fixed-backoff
	// retry hop: a nacked job dead-letters into the retry queue, sits out
	// the retry delay as the per-queue message TTL, then dead-letters back
	// to the main exchange for redelivery.
	RetryExchangeName = "vyloc.retry"
	RetryQueueName    = "localization_jobs.retry"

	// Reconnection settings
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 30 * time.Second

	// Publish timeout
	publishTimeout = 5 * time.Second
)

// Publisher defines the interface for publishing jobs to the message broker.
type Publisher interface {
	Publish(ctx context.Context, job *domain.Job) error
	Close() error
}

type rabbitPublisher struct {
	url        string
	retryDelay time.Duration
	conn       *amqp.Connection
	channel    *amqp.Channel
	logger     *zap.Logger
	mu         sync.RWMutex
	closed     bool
}

// NewRabbitMQPublisher creates a publisher and declares the full queue
// topology (main quorum queue + retry hop). retryDelay is the fixed backoff
// between redeliveries and becomes the retry queue's message TTL.
func NewRabbitMQPublisher(url string, retryDelay time.Duration, logger *zap.Logger) (Publisher, error) {
	p := &rabbitPublisher{
		url:        url,
		retryDelay: retryDelay,
		logger:     logger,
	}

	if err := p.connect(); err != nil {
		return nil, err
	}

	// Watch for connection closures and reconnect
	go p.watchConnection()

	return p, nil
}

// DeclareTopology declares the exchanges and queues on ch. Both the
// publisher and the consumer call this, so whichever side starts first
// creates the topology.
func DeclareTopology(ch *amqp.Channel, retryDelay time.Duration) error {
	if err := ch.ExchangeDeclare(ExchangeName, exchangeType, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(RetryExchangeName, exchangeType, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare retry exchange: %w", err)
	}

	// Retry queue: holds nacked jobs for the backoff interval, then routes
	// them back to the main exchange.
	retryArgs := amqp.Table{
		"x-message-ttl":             retryDelay.Milliseconds(),
		"x-dead-letter-exchange":    ExchangeName,
		"x-dead-letter-routing-key": RoutingKey,
	}
	if _, err := ch.QueueDeclare(RetryQueueName, true, false, false, false, retryArgs); err != nil {
		return fmt.Errorf("rabbitmq: declare retry queue: %w", err)
	}
	if err := ch.QueueBind(RetryQueueName, RoutingKey, RetryExchangeName, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind retry queue: %w", err)
	}

	// Main quorum queue: rejected deliveries dead-letter into the retry hop.
	args := amqp.Table{
		"x-queue-type":              "quorum",
		"x-dead-letter-exchange":    RetryExchangeName,
		"x-dead-letter-routing-key": RoutingKey,
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, args); err != nil {
		return fmt.Errorf("rabbitmq: declare queue: %w", err)
	}
	if err := ch.QueueBind(QueueName, RoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind queue: %w", err)
	}
	return nil
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

	// Enable publisher confirms
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: enable confirms: %w", err)
	}

	if err := DeclareTopology(ch, p.retryDelay); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	p.mu.Lock()
	p.conn = conn
	p.channel = ch
	p.mu.Unlock()

	p.logger.Info("RabbitMQ publisher initialized",
		zap.String("exchange", ExchangeName),
		zap.String("queue", QueueName),
		zap.Duration("retry_delay", p.retryDelay),
	)

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

		// Block until the connection closes
		reason, ok := <-conn.NotifyClose(make(chan *amqp.Error))
		if !ok {
			// Channel closed normally
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
				delay = delay * 2
				if delay > maxReconnectDelay {
					delay = maxReconnectDelay
				}
				continue
			}

			p.logger.Info("RabbitMQ reconnected successfully")
			break
		}
	}
}

func (p *rabbitPublisher) Publish(ctx context.Context, job *domain.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal job: %w", err)
	}

	p.mu.RLock()
	ch := p.channel
	p.mu.RUnlock()

	if ch == nil {
		return fmt.Errorf("rabbitmq: channel not available (reconnecting)")
	}

	// Get confirmation channel
	confirm := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(publishCtx,
		ExchangeName,
		RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.JobID.String(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	// Wait for broker confirmation
	select {
	case ack := <-confirm:
		if !ack.Ack {
			return fmt.Errorf("rabbitmq: broker nacked message (job_id=%s)", job.JobID)
		}
	case <-publishCtx.Done():
		return fmt.Errorf("rabbitmq: publish confirmation timeout (job_id=%s)", job.JobID)
	}

	p.logger.Debug("Published job to RabbitMQ",
		zap.String("job_id", job.JobID.String()),
		zap.Int("body_size", len(body)),
	)
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

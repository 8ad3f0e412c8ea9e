package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/amirphl/future-messages/models"
	"github.com/amirphl/future-messages/utils"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

// Broker names accepted by configuration
const (
	BrokerRabbitMQ = "rabbitmq"
	BrokerRedis    = "redis"
)

// ErrPublishNotConfirmed is returned when the broker nacks a publish
var ErrPublishNotConfirmed = errors.New("broker did not confirm publish")

// DeliveryJob is the queue payload consumed by the delivery worker. The
// worker must be idempotent on MessageID since the broker may redeliver.
type DeliveryJob struct {
	MessageID      string    `json:"message_id"`
	RecipientPhone string    `json:"recipient_phone"`
	Text           string    `json:"text"`
	DueAt          time.Time `json:"due_at"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}

// NewDeliveryJob builds the payload for a stored message
func NewDeliveryJob(msg *models.Message) DeliveryJob {
	return DeliveryJob{
		MessageID:      msg.MessageID.String(),
		RecipientPhone: msg.RecipientPhone,
		Text:           msg.Body,
		DueAt:          msg.DueAt.UTC(),
		EnqueuedAt:     utils.UTCNow().Truncate(time.Second),
	}
}

// DeliveryPublisher hands delivery jobs to the broker
type DeliveryPublisher interface {
	Name() string
	Publish(ctx context.Context, job DeliveryJob) error
	Close() error
}

// AMQPPublisher publishes persistent messages to a durable RabbitMQ queue and
// waits for the broker confirm. The connection is opened lazily and reopened
// after it drops. One publish uses the channel at a time; waiting for it
// respects the caller's deadline.
type AMQPPublisher struct {
	url            string
	queue          string
	connectTimeout time.Duration

	sem  chan struct{}
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url, queue string, connectTimeout time.Duration) *AMQPPublisher {
	if queue == "" {
		queue = utils.DeliveryQueueName
	}
	if connectTimeout <= 0 {
		connectTimeout = utils.DefaultPublishTimeout
	}
	return &AMQPPublisher{
		url:            url,
		queue:          queue,
		connectTimeout: connectTimeout,
		sem:            make(chan struct{}, 1),
	}
}

func (p *AMQPPublisher) Name() string { return BrokerRabbitMQ }

// acquire takes the channel slot or gives up when ctx ends
func (p *AMQPPublisher) acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("rabbitmq publisher busy: %w", ctx.Err())
	}
}

func (p *AMQPPublisher) release() {
	<-p.sem
}

// dialTimeout is connectTimeout capped by what is left of ctx
func (p *AMQPPublisher) dialTimeout(ctx context.Context) time.Duration {
	timeout := p.connectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}

// channel returns a confirm-mode channel with the queue declared. Callers hold the slot.
func (p *AMQPPublisher) channel(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	if p.conn == nil || p.conn.IsClosed() {
		timeout := p.dialTimeout(ctx)
		if timeout <= 0 {
			return nil, fmt.Errorf("failed to connect to rabbitmq: %w", context.DeadlineExceeded)
		}
		conn, err := amqp.DialConfig(p.url, amqp.Config{
			Dial:       amqp.DefaultDial(timeout),
			Properties: amqp.Table{"connection_name": "future-messages-publisher"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		p.conn = conn
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", p.queue, err)
	}

	p.ch = ch
	return ch, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, job DeliveryJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode delivery job: %w", err)
	}

	if err := p.acquire(ctx); err != nil {
		return err
	}
	defer p.release()

	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.MessageID,
		Timestamp:    job.EnqueuedAt,
		Body:         body,
	})
	if err != nil {
		p.resetChannel()
		return fmt.Errorf("failed to publish to %s: %w", p.queue, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		p.resetChannel()
		return fmt.Errorf("failed waiting for publish confirm: %w", err)
	}
	if !acked {
		return ErrPublishNotConfirmed
	}

	return nil
}

// resetChannel drops the channel so the next publish reopens it
func (p *AMQPPublisher) resetChannel() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
}

func (p *AMQPPublisher) Close() error {
	p.sem <- struct{}{}
	defer p.release()

	p.resetChannel()
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn.Close()
	}
	return nil
}

// RedisStreamPublisher appends delivery jobs to a redis stream
type RedisStreamPublisher struct {
	client redis.Cmdable
	stream string
}

func NewRedisStreamPublisher(client redis.Cmdable, prefix, queue string) *RedisStreamPublisher {
	if queue == "" {
		queue = utils.DeliveryQueueName
	}
	return &RedisStreamPublisher{client: client, stream: prefix + queue}
}

func (p *RedisStreamPublisher) Name() string { return BrokerRedis }

func (p *RedisStreamPublisher) Publish(ctx context.Context, job DeliveryJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode delivery job: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"message_id": job.MessageID,
			"payload":    string(body),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append to stream %s: %w", p.stream, err)
	}

	return nil
}

func (p *RedisStreamPublisher) Close() error { return nil }

// InstrumentedPublisher records publish outcomes and latency
type InstrumentedPublisher struct {
	next DeliveryPublisher
}

func NewInstrumentedPublisher(next DeliveryPublisher) *InstrumentedPublisher {
	return &InstrumentedPublisher{next: next}
}

func (p *InstrumentedPublisher) Name() string { return p.next.Name() }

func (p *InstrumentedPublisher) Publish(ctx context.Context, job DeliveryJob) error {
	start := time.Now()
	err := p.next.Publish(ctx, job)

	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		result = "timeout"
	default:
		result = "error"
	}
	deliveryPublishTotal.WithLabelValues(p.next.Name(), result).Inc()
	deliveryPublishDuration.WithLabelValues(p.next.Name()).Observe(time.Since(start).Seconds())

	return err
}

func (p *InstrumentedPublisher) Close() error { return p.next.Close() }

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

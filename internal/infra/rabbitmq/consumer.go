package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/KrazyGenus/blip/internal/domain/entity"
	"github.com/KrazyGenus/blip/internal/domain/port"
	"github.com/KrazyGenus/blip/internal/infra/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Handler func(ctx context.Context, body []byte) error

// DeadLetterHook is called after a job has been published to the DLQ, for
// surfacing (operator notification). Best-effort.
type DeadLetterHook func(ctx context.Context, body []byte, reason string)

const attemptHeader = "x-attempt"

// retryPublisher is the slice of amqp.Channel used to republish retry
// copies back onto the queue.
type retryPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Consumer pulls jobs from one named queue with bounded concurrency,
// at-least-once delivery, bounded retries with exponential backoff, and an
// optional rate limit. Exhausted jobs go to the DLQ, never silently
// dropped.
type Consumer struct {
	channel     *amqp.Channel
	publish     retryPublisher
	queue       string
	concurrency int
	maxAttempts int
	baseDelay   time.Duration
	limiter     *rate.Limiter
	handler     Handler
	dlq         port.DLQPublisher
	onDead      DeadLetterHook
	logger      *zap.Logger
	wg          sync.WaitGroup
}

type ConsumerConfig struct {
	Queue       string
	Concurrency int
	Prefetch    int
	MaxAttempts int
	BaseDelay   time.Duration
	// RatePerSec caps handler starts across the whole pool; 0 means
	// unlimited.
	RatePerSec float64
	OnDead     DeadLetterHook
}

func NewConsumer(conn *amqp.Connection, cfg ConsumerConfig, handler Handler, dlq port.DLQPublisher, logger *zap.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consumer channel: %w", err)
	}

	prefetch := cfg.Prefetch
	if prefetch < cfg.Concurrency {
		prefetch = cfg.Concurrency
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}

	return &Consumer{
		channel:     ch,
		publish:     ch,
		queue:       cfg.Queue,
		concurrency: cfg.Concurrency,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		limiter:     limiter,
		handler:     handler,
		dlq:         dlq,
		onDead:      cfg.OnDead,
		logger:      logger.With(zap.String("queue", cfg.Queue)),
	}, nil
}

// Start blocks until ctx is cancelled, then waits for in-flight handlers.
// Abruptly terminated in-flight work is redelivered by the broker
// (at-least-once).
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.ConsumeWithContext(
		ctx,
		c.queue,
		"",
		false, // autoAck=false
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.logger.Info("starting worker pool", zap.Int("workers", c.concurrency))

	for i := 0; i < c.concurrency; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, deliveries)
	}

	<-ctx.Done()
	c.logger.Info("context cancelled, waiting for workers to finish")
	c.wg.Wait()
	return nil
}

func (c *Consumer) worker(ctx context.Context, id int, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	log := c.logger.With(zap.Int("worker_id", id))
	log.Info("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Info("delivery channel closed")
				return
			}
			c.processDelivery(ctx, d, log)
		}
	}
}

func (c *Consumer) processDelivery(ctx context.Context, d amqp.Delivery, log *zap.Logger) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			_ = d.Nack(false, true)
			return
		}
	}

	metrics.ActiveWorkers.Inc()
	err := c.handler(ctx, d.Body)
	metrics.ActiveWorkers.Dec()

	if err == nil {
		metrics.JobsProcessedTotal.WithLabelValues(c.queue, "completed").Inc()
		_ = d.Ack(false)
		return
	}

	attempt := attemptFromHeaders(d.Headers)
	budget := retryBudget(err, c.maxAttempts)

	log.Warn("job failed",
		zap.Error(err),
		zap.Int("attempt", attempt),
		zap.Int("budget", budget),
	)

	if attempt >= budget {
		c.deadLetter(ctx, d, err, log)
		return
	}

	metrics.RetryTotal.WithLabelValues(c.queue).Inc()
	delay := calculateBackoff(c.baseDelay, attempt)
	log.Info("backoff before retry", zap.Duration("delay", delay))

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		_ = d.Nack(false, true)
		return
	}

	if err := c.republish(ctx, d, attempt+1); err != nil {
		log.Error("failed to republish for retry, requeueing", zap.Error(err))
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) deadLetter(ctx context.Context, d amqp.Delivery, cause error, log *zap.Logger) {
	reason := cause.Error()
	if err := c.dlq.PublishToDLQ(ctx, c.queue, d.Body, reason); err != nil {
		// Keep the job on the queue rather than dropping it.
		log.Error("failed to publish to DLQ, requeueing", zap.Error(err))
		_ = d.Nack(false, true)
		return
	}
	metrics.JobsProcessedTotal.WithLabelValues(c.queue, "dlq").Inc()
	metrics.DeadLettersTotal.WithLabelValues(c.queue).Inc()
	log.Warn("job dead-lettered", zap.String("reason", reason))
	_ = d.Ack(false)

	if c.onDead != nil {
		c.onDead(ctx, d.Body, reason)
	}
}

// republish sends a retry copy straight to the queue with the incremented
// attempt header and lets the original be acked. Nack-requeue would lose
// the attempt count.
func (c *Consumer) republish(ctx context.Context, d amqp.Delivery, nextAttempt int) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[attemptHeader] = int32(nextAttempt)

	return c.publish.PublishWithContext(ctx,
		"",
		c.queue,
		false, false,
		amqp.Publishing{
			ContentType:  d.ContentType,
			Body:         d.Body,
			DeliveryMode: amqp.Persistent,
			MessageId:    d.MessageId,
			Timestamp:    time.Now().UTC(),
			Headers:      headers,
		},
	)
}

func attemptFromHeaders(headers amqp.Table) int {
	if headers == nil {
		return 1
	}
	switch v := headers[attemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 1
}

// retryBudget returns the total attempts allowed for the failure. Decode
// errors are not transient and get at most one retry.
func retryBudget(err error, maxAttempts int) int {
	var decodeErr *entity.DecodeError
	if errors.As(err, &decodeErr) && maxAttempts > 2 {
		return 2
	}
	if maxAttempts < 1 {
		return 1
	}
	return maxAttempts
}

func calculateBackoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base * time.Duration(math.Pow(2, float64(attempt-1)))
	if delay > 60*time.Second {
		delay = 60 * time.Second
	}
	return delay
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		return c.channel.Close()
	}
	return nil
}

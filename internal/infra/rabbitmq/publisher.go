package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KrazyGenus/blip/internal/domain/entity"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends jobs to named queues through the pipeline exchange.
type Publisher struct {
	channel  *amqp.Channel
	exchange string
}

func NewPublisher(conn *amqp.Connection, exchange string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	return &Publisher{channel: ch, exchange: exchange}, nil
}

// Enqueue marshals payload as JSON and publishes one persistent message to
// the queue. Failures wrap entity.EnqueueError so the producing job fails
// and is retried rather than silently losing derived work.
func (p *Publisher) Enqueue(ctx context.Context, queue string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &entity.EnqueueError{Queue: queue, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		queue,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now().UTC(),
		},
	)
	if err != nil {
		return &entity.EnqueueError{Queue: queue, Err: err}
	}
	return nil
}

// DLQPublisher publishes exhausted jobs to the dead-letter queue for
// operator inspection.
type DLQPublisher struct {
	pub   *Publisher
	queue string
}

func NewDLQPublisher(pub *Publisher, dlqQueue string) *DLQPublisher {
	return &DLQPublisher{pub: pub, queue: dlqQueue}
}

func (dp *DLQPublisher) PublishToDLQ(ctx context.Context, originQueue string, msg []byte, reason string) error {
	return dp.pub.channel.PublishWithContext(ctx,
		"",
		dp.queue,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         msg,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Headers: amqp.Table{
				"x-dlq-reason":   reason,
				"x-origin-queue": originQueue,
			},
		},
	)
}

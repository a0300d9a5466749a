package port

import "context"

// Enqueuer publishes one job to a named queue. Implementations must report
// failure so the producing job can fail and be retried.
type Enqueuer interface {
	Enqueue(ctx context.Context, queue string, payload any) error
}

type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, originQueue string, msg []byte, reason string) error
}

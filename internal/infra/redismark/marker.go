// Package redismark tracks extraction completion per asset so the uploaded
// object can be removed once both the frame and audio stages have enqueued
// their derived jobs. Best-effort: a lost marker only delays cleanup.
package redismark

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// extractionStages is the number of stages that must signal before the
// upload is eligible for cleanup (frame extraction + audio extraction).
const extractionStages = 2

const markerTTL = 24 * time.Hour

type Marker struct {
	client *redis.Client
}

func New(url string) (*Marker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Marker{client: redis.NewClient(opts)}, nil
}

// SignalExtracted increments the asset's completion counter and reports
// whether every extraction stage has now signaled.
func (m *Marker) SignalExtracted(ctx context.Context, jobID uuid.UUID) (bool, error) {
	key := "asset:" + jobID.String() + ":extracted"
	n, err := m.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("incr %s: %w", key, err)
	}
	// TTL guards against leaked keys when a sibling stage dead-letters.
	m.client.Expire(ctx, key, markerTTL)
	return n >= extractionStages, nil
}

func (m *Marker) Close() error {
	return m.client.Close()
}

package usecase

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/KrazyGenus/blip/internal/dedup"
	"github.com/KrazyGenus/blip/internal/domain/entity"
	"github.com/KrazyGenus/blip/internal/domain/port"
	"github.com/KrazyGenus/blip/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DedupStage filters near-duplicate frames out of one asset's frame batch
// with a perceptual hash working set. The set is scoped to the batch, so
// similarity is only measured against earlier frames of the same asset.
// Survivors are enqueued for inference one frame per message; duplicates
// are unlinked on the spot.
type DedupStage struct {
	publisher  port.Enqueuer
	dlq        port.DLQPublisher
	logger     *zap.Logger
	threshold  int
	queue      string
	inferQueue string
}

type DedupConfig struct {
	Threshold  int
	Queue      string
	InferQueue string
}

func NewDedupStage(publisher port.Enqueuer, dlq port.DLQPublisher, logger *zap.Logger, cfg DedupConfig) *DedupStage {
	return &DedupStage{
		publisher:  publisher,
		dlq:        dlq,
		logger:     logger,
		threshold:  cfg.Threshold,
		queue:      cfg.Queue,
		inferQueue: cfg.InferQueue,
	}
}

func (uc *DedupStage) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "DedupStage.Execute")
	defer span.End()

	start := time.Now()

	var msg entity.FrameBatchMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, uc.queue, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.Int("frames.total", len(msg.Frames)),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()))

	set := dedup.NewWorkingSet(uc.threshold)
	unique := 0
	for _, frame := range msg.Frames {
		hash, err := dedup.HashFile(frame.Path)
		if err != nil {
			// Unreadable frames are skipped rather than failing the
			// whole batch; they never reach inference.
			log.Warn("failed to hash frame, skipping",
				zap.Int("index", frame.Index),
				zap.String("path", frame.Path),
				zap.Error(err),
			)
			metrics.FramesDedupedTotal.WithLabelValues("error").Inc()
			continue
		}

		if !set.Admit(hash) {
			if err := os.Remove(frame.Path); err != nil {
				log.Warn("failed to remove duplicate frame", zap.String("path", frame.Path), zap.Error(err))
			}
			metrics.FramesDedupedTotal.WithLabelValues("duplicate").Inc()
			continue
		}

		if err := uc.publisher.Enqueue(ctx, uc.inferQueue, frame); err != nil {
			log.Error("failed to enqueue frame for inference", zap.Int("index", frame.Index), zap.Error(err))
			return err
		}
		metrics.FramesDedupedTotal.WithLabelValues("unique").Inc()
		unique++
	}

	log.Info("frame batch deduplicated",
		zap.Int("total", len(msg.Frames)),
		zap.Int("unique", unique),
		zap.Int("dropped", len(msg.Frames)-unique),
	)
	metrics.StageDuration.WithLabelValues("dedup").Observe(time.Since(start).Seconds())

	return nil
}

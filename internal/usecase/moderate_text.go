package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/KrazyGenus/blip/internal/domain/entity"
	"github.com/KrazyGenus/blip/internal/domain/port"
	"github.com/KrazyGenus/blip/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// TextModerationStage runs a transcript through text moderation and
// persists the audio result document. Persistence failures are retryable;
// the upsert keys make redelivery idempotent.
type TextModerationStage struct {
	moderator port.TextModerator
	repo      port.ViolationRepository
	dlq       port.DLQPublisher
	logger    *zap.Logger
	queue     string
}

type TextModerationConfig struct {
	Queue string
}

func NewTextModerationStage(
	moderator port.TextModerator,
	repo port.ViolationRepository,
	dlq port.DLQPublisher,
	logger *zap.Logger,
	cfg TextModerationConfig,
) *TextModerationStage {
	return &TextModerationStage{
		moderator: moderator,
		repo:      repo,
		dlq:       dlq,
		logger:    logger,
		queue:     cfg.Queue,
	}
}

func (uc *TextModerationStage) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "TextModerationStage.Execute")
	defer span.End()

	start := time.Now()

	var msg entity.TextModerationMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, uc.queue, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(attribute.String("job.id", msg.JobID.String()))
	log := uc.logger.With(zap.String("job_id", msg.JobID.String()))

	violations, err := uc.moderator.ModerateText(ctx, msg.Transcript, msg.Utterances)
	if err != nil {
		var apiErr *entity.ExternalAPIError
		if errors.As(err, &apiErr) {
			log.Error("text moderation failed, no result recorded", zap.Error(err))
			metrics.JobsProcessedTotal.WithLabelValues(uc.queue, "inference_failed").Inc()
			return nil
		}
		log.Error("text moderation errored", zap.Error(err))
		return err
	}

	result := entity.NewAudioResult(msg.Transcript, violations)
	if err := uc.repo.Upsert(ctx, msg.UserID, msg.JobID, entity.CollectionAudio, result); err != nil {
		log.Error("failed to persist audio result", zap.Error(err))
		return err
	}

	log.Info("transcript moderated",
		zap.String("assessment", result.Assessment),
		zap.Int("violations", len(violations)),
	)
	metrics.StageDuration.WithLabelValues("moderate_text").Observe(time.Since(start).Seconds())

	return nil
}

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/KrazyGenus/blip/internal/domain/entity"
	"github.com/KrazyGenus/blip/internal/domain/port"
	"github.com/KrazyGenus/blip/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// AudioInferenceStage transcribes one extracted audio render and hands the
// transcript to text moderation. Transcription backend failures are logged
// and the job completes without a result; infrastructure failures are
// returned for retry.
type AudioInferenceStage struct {
	transcriber port.Transcriber
	publisher   port.Enqueuer
	dlq         port.DLQPublisher
	logger      *zap.Logger
	queue       string
	textQueue   string
}

type AudioInferenceConfig struct {
	Queue     string
	TextQueue string
}

func NewAudioInferenceStage(
	transcriber port.Transcriber,
	publisher port.Enqueuer,
	dlq port.DLQPublisher,
	logger *zap.Logger,
	cfg AudioInferenceConfig,
) *AudioInferenceStage {
	return &AudioInferenceStage{
		transcriber: transcriber,
		publisher:   publisher,
		dlq:         dlq,
		logger:      logger,
		queue:       cfg.Queue,
		textQueue:   cfg.TextQueue,
	}
}

func (uc *AudioInferenceStage) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "AudioInferenceStage.Execute")
	defer span.End()

	start := time.Now()

	var msg entity.AudioInferenceMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, uc.queue, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(attribute.String("job.id", msg.JobID.String()))
	log := uc.logger.With(
		zap.String("job_id", msg.JobID.String()),
		zap.String("audio_path", msg.AudioPath),
	)

	transcript, err := uc.transcriber.Transcribe(ctx, msg.AudioPath)
	if err != nil {
		var apiErr *entity.ExternalAPIError
		if errors.As(err, &apiErr) {
			// The capability failed, not our pipeline. No result is
			// recorded and the audio render is released to the janitor.
			log.Error("transcription failed, no result recorded", zap.Error(err))
			metrics.JobsProcessedTotal.WithLabelValues(uc.queue, "inference_failed").Inc()
			return nil
		}
		log.Error("transcription errored", zap.Error(err))
		return err
	}

	textMsg := entity.TextModerationMessage{
		JobID:      msg.JobID,
		UserID:     msg.UserID,
		Transcript: transcript.Full,
		Utterances: transcript.Utterances,
	}
	if err := uc.publisher.Enqueue(ctx, uc.textQueue, textMsg); err != nil {
		log.Error("failed to enqueue text moderation", zap.Error(err))
		return err
	}

	if err := os.Remove(msg.AudioPath); err != nil {
		log.Warn("failed to remove audio render", zap.Error(err))
	}

	log.Info("audio transcribed",
		zap.Int("utterances", len(transcript.Utterances)),
		zap.Int("transcript_chars", len(transcript.Full)),
	)
	metrics.StageDuration.WithLabelValues("transcribe").Observe(time.Since(start).Seconds())

	return nil
}

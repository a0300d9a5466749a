package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KrazyGenus/blip/internal/domain/entity"
	"github.com/KrazyGenus/blip/internal/domain/port"
	"github.com/KrazyGenus/blip/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// AudioExtractionStage downloads an uploaded video, renders its audio track
// as normalized mono PCM and enqueues exactly one transcription job. Videos
// without an audio track fail extraction and exhaust the decode retry
// budget into the DLQ.
type AudioExtractionStage struct {
	storage    port.VideoStorage
	extractor  port.AudioExtractor
	publisher  port.Enqueuer
	dlq        port.DLQPublisher
	marker     port.ExtractionMarker
	logger     *zap.Logger
	tempDir    string
	audioDir   string
	queue      string
	inferQueue string
}

type AudioExtractionConfig struct {
	TempDir    string
	AudioDir   string
	Queue      string
	InferQueue string
}

func NewAudioExtractionStage(
	storage port.VideoStorage,
	extractor port.AudioExtractor,
	publisher port.Enqueuer,
	dlq port.DLQPublisher,
	marker port.ExtractionMarker,
	logger *zap.Logger,
	cfg AudioExtractionConfig,
) *AudioExtractionStage {
	return &AudioExtractionStage{
		storage:    storage,
		extractor:  extractor,
		publisher:  publisher,
		dlq:        dlq,
		marker:     marker,
		logger:     logger,
		tempDir:    cfg.TempDir,
		audioDir:   cfg.AudioDir,
		queue:      cfg.Queue,
		inferQueue: cfg.InferQueue,
	}
}

func (uc *AudioExtractionStage) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "AudioExtractionStage.Execute")
	defer span.End()

	start := time.Now()

	var msg entity.AssetReadyMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, uc.queue, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("asset.object_key", msg.ObjectKey),
	)

	log := uc.logger.With(
		zap.String("job_id", msg.JobID.String()),
		zap.String("object_key", msg.ObjectKey),
	)

	workDir := filepath.Join(uc.tempDir, msg.JobID.String()+"_audio")
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	ctx2, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, "input.mp4")
	if err := uc.storage.DownloadVideo(ctx2, msg.ObjectKey, videoPath); err != nil {
		spanDl.End()
		log.Error("failed to download video", zap.Error(err))
		return fmt.Errorf("download video: %w", err)
	}
	spanDl.End()

	audioOutDir := filepath.Join(uc.audioDir, "user_"+msg.UserID)
	if err := os.MkdirAll(audioOutDir, 0755); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}

	ctx3, spanEx := tracer.Start(ctx, "extract_audio")
	audioPath, err := uc.extractor.ExtractAudio(ctx3, videoPath, audioOutDir, msg.JobID.String())
	spanEx.End()
	if err != nil {
		log.Error("audio extraction failed", zap.Error(err))
		return err
	}

	inferMsg := entity.AudioInferenceMessage{
		JobID:        msg.JobID,
		UserID:       msg.UserID,
		AudioPath:    audioPath,
		OriginalName: msg.OriginalName,
		UserEmail:    msg.UserEmail,
	}
	if err := uc.publisher.Enqueue(ctx, uc.inferQueue, inferMsg); err != nil {
		log.Error("failed to enqueue audio inference", zap.Error(err))
		return err
	}

	uc.signalAndMaybeRemove(ctx, msg, log)

	log.Info("audio track extracted", zap.String("audio_path", audioPath))
	metrics.StageDuration.WithLabelValues("extract_audio").Observe(time.Since(start).Seconds())

	return nil
}

func (uc *AudioExtractionStage) signalAndMaybeRemove(ctx context.Context, msg entity.AssetReadyMessage, log *zap.Logger) {
	done, err := uc.marker.SignalExtracted(ctx, msg.JobID)
	if err != nil {
		log.Warn("failed to signal extraction completion", zap.Error(err))
		return
	}
	if !done {
		return
	}
	if err := uc.storage.RemoveVideo(ctx, msg.ObjectKey); err != nil {
		log.Warn("failed to remove uploaded video", zap.Error(err))
		return
	}
	log.Info("uploaded video removed after both extractions")
}

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

// FrameExtractionStage downloads an uploaded video, selects scene-change
// frames with FFmpeg and hands the whole frame sequence to the dedup queue
// as a single batch. Frame files are written under a per-asset directory
// that outlives this job; downstream stages own their removal.
type FrameExtractionStage struct {
	storage    port.VideoStorage
	extractor  port.SceneExtractor
	publisher  port.Enqueuer
	dlq        port.DLQPublisher
	marker     port.ExtractionMarker
	logger     *zap.Logger
	tempDir    string
	frameDir   string
	queue      string
	dedupQueue string
}

type FrameExtractionConfig struct {
	TempDir    string
	FrameDir   string
	Queue      string
	DedupQueue string
}

func NewFrameExtractionStage(
	storage port.VideoStorage,
	extractor port.SceneExtractor,
	publisher port.Enqueuer,
	dlq port.DLQPublisher,
	marker port.ExtractionMarker,
	logger *zap.Logger,
	cfg FrameExtractionConfig,
) *FrameExtractionStage {
	return &FrameExtractionStage{
		storage:    storage,
		extractor:  extractor,
		publisher:  publisher,
		dlq:        dlq,
		marker:     marker,
		logger:     logger,
		tempDir:    cfg.TempDir,
		frameDir:   cfg.FrameDir,
		queue:      cfg.Queue,
		dedupQueue: cfg.DedupQueue,
	}
}

func (uc *FrameExtractionStage) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "FrameExtractionStage.Execute")
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

	workDir := filepath.Join(uc.tempDir, msg.JobID.String()+"_frames")
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

	frameOutDir := filepath.Join(uc.frameDir, "user_"+msg.UserID, msg.JobID.String())
	if err := os.MkdirAll(frameOutDir, 0755); err != nil {
		return fmt.Errorf("create frame dir: %w", err)
	}

	ctx3, spanEx := tracer.Start(ctx, "extract_scene_frames")
	result, err := uc.extractor.ExtractSceneFrames(ctx3, videoPath, frameOutDir)
	spanEx.End()
	if err != nil {
		os.RemoveAll(frameOutDir)
		log.Error("scene frame extraction failed", zap.Error(err))
		return err
	}

	frames := make([]entity.FrameRecord, 0, len(result.Frames))
	for _, f := range result.Frames {
		frames = append(frames, entity.FrameRecord{
			JobID:    msg.JobID,
			UserID:   msg.UserID,
			Index:    f.Index,
			StartSec: f.StartSec,
			EndSec:   f.EndSec,
			Path:     f.Path,
		})
	}
	metrics.FramesExtractedTotal.Add(float64(len(frames)))

	batch := entity.FrameBatchMessage{JobID: msg.JobID, UserID: msg.UserID, Frames: frames}
	if err := uc.publisher.Enqueue(ctx, uc.dedupQueue, batch); err != nil {
		log.Error("failed to enqueue frame batch", zap.Error(err))
		return err
	}

	uc.signalAndMaybeRemove(ctx, msg, log)

	log.Info("scene frames extracted",
		zap.Int("frames", len(frames)),
		zap.Float64("video_duration_sec", result.VideoDuration),
	)
	metrics.StageDuration.WithLabelValues("extract_frames").Observe(time.Since(start).Seconds())

	return nil
}

// signalAndMaybeRemove marks this extraction stage done and deletes the
// uploaded object once the sibling stage has signaled too. Both steps are
// best effort; the janitor and bucket lifecycle cover misses.
func (uc *FrameExtractionStage) signalAndMaybeRemove(ctx context.Context, msg entity.AssetReadyMessage, log *zap.Logger) {
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

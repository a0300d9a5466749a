package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/KrazyGenus/blip/internal/domain/entity"
	"github.com/KrazyGenus/blip/internal/domain/port"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// UploadStage accepts one video, streams it into object storage and fans
// the asset out to both extraction queues. The upload is only acknowledged
// to the caller once both messages are enqueued.
type UploadStage struct {
	storage    port.VideoStorage
	publisher  port.Enqueuer
	logger     *zap.Logger
	frameQueue string
	audioQueue string
}

type UploadConfig struct {
	FrameQueue string
	AudioQueue string
}

type UploadReceipt struct {
	JobID     string `json:"job_id"`
	ObjectKey string `json:"object_key"`
}

func NewUploadStage(
	storage port.VideoStorage,
	publisher port.Enqueuer,
	logger *zap.Logger,
	cfg UploadConfig,
) *UploadStage {
	return &UploadStage{
		storage:    storage,
		publisher:  publisher,
		logger:     logger,
		frameQueue: cfg.FrameQueue,
		audioQueue: cfg.AudioQueue,
	}
}

// Accept streams one file into storage and enqueues an extraction job on
// the frame and audio queues. Size may be -1 when the caller streams a
// multipart part of unknown length.
func (uc *UploadStage) Accept(
	ctx context.Context,
	userID, userEmail, filename string,
	reader io.Reader,
	size int64,
	contentType string,
) (*UploadReceipt, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "UploadStage.Accept")
	defer span.End()

	asset := entity.NewAsset(userID, filename, size)
	asset.UserEmail = userEmail

	span.SetAttributes(
		attribute.String("job.id", asset.JobID.String()),
		attribute.String("asset.object_key", asset.ObjectKey),
	)

	log := uc.logger.With(
		zap.String("job_id", asset.JobID.String()),
		zap.String("user_id", userID),
		zap.String("object_key", asset.ObjectKey),
	)

	if err := uc.storage.UploadVideo(ctx, asset.ObjectKey, reader, size, contentType); err != nil {
		log.Error("failed to store uploaded video", zap.Error(err))
		return nil, fmt.Errorf("store video: %w", err)
	}

	msg := entity.AssetReadyMessage{
		JobID:        asset.JobID,
		UserID:       asset.UserID,
		ObjectKey:    asset.ObjectKey,
		OriginalName: asset.OriginalName,
		Size:         asset.Size,
		UserEmail:    asset.UserEmail,
	}

	if err := uc.publisher.Enqueue(ctx, uc.frameQueue, msg); err != nil {
		log.Error("failed to enqueue frame extraction", zap.Error(err))
		return nil, err
	}
	if err := uc.publisher.Enqueue(ctx, uc.audioQueue, msg); err != nil {
		log.Error("failed to enqueue audio extraction", zap.Error(err))
		return nil, err
	}

	log.Info("upload accepted", zap.Int64("size", size))

	return &UploadReceipt{JobID: asset.JobID.String(), ObjectKey: asset.ObjectKey}, nil
}

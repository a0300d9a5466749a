package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KrazyGenus/blip/internal/domain/entity"
	"github.com/KrazyGenus/blip/internal/domain/port"
	"github.com/KrazyGenus/blip/internal/infra/metrics"
	"go.uber.org/zap"
)

// FrameBatcher accumulates deduplicated frames and flushes them to vision
// inference in one request per batch. A flush fires when the batch reaches
// size or when the oldest pending frame has waited out the timeout,
// whichever comes first. At most one flush is in flight at a time; frames
// arriving during a flush accumulate into the next batch.
//
// Frames are acknowledged to the queue on accumulation. A failed inference
// call is logged and the batch dropped without a result document; the
// orphaned frame files are left for the janitor.
type FrameBatcher struct {
	vision  port.VisionModerator
	repo    port.ViolationRepository
	dlq     port.DLQPublisher
	logger  *zap.Logger
	queue   string
	size    int
	timeout time.Duration

	mu      sync.Mutex
	pending []entity.FrameRecord
	timer   *time.Timer

	flushMu sync.Mutex
}

type FrameBatcherConfig struct {
	Queue     string
	BatchSize int
	Timeout   time.Duration
}

func NewFrameBatcher(
	vision port.VisionModerator,
	repo port.ViolationRepository,
	dlq port.DLQPublisher,
	logger *zap.Logger,
	cfg FrameBatcherConfig,
) *FrameBatcher {
	return &FrameBatcher{
		vision:  vision,
		repo:    repo,
		dlq:     dlq,
		logger:  logger,
		queue:   cfg.Queue,
		size:    cfg.BatchSize,
		timeout: cfg.Timeout,
	}
}

// Handle consumes one frame message. It returns nil once the frame is
// accumulated; inference outcome is decoupled from queue acknowledgement.
func (b *FrameBatcher) Handle(ctx context.Context, rawMsg []byte) error {
	var frame entity.FrameRecord
	if err := json.Unmarshal(rawMsg, &frame); err != nil {
		b.logger.Error("failed to unmarshal frame message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = b.dlq.PublishToDLQ(ctx, b.queue, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	b.mu.Lock()
	b.pending = append(b.pending, frame)
	full := len(b.pending) >= b.size
	if !full && b.timer == nil {
		b.timer = time.AfterFunc(b.timeout, func() {
			b.flush("timeout")
		})
	}
	b.mu.Unlock()

	if full {
		b.flush("size")
	}
	return nil
}

// Close flushes whatever is pending. Called on worker shutdown after the
// consumer has stopped delivering.
func (b *FrameBatcher) Close() {
	b.flush("shutdown")
}

// PendingLen reports the number of accumulated frames not yet flushed.
func (b *FrameBatcher) PendingLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *FrameBatcher) flush(trigger string) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	frames := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(frames) == 0 {
		return
	}

	ctx := context.Background()
	log := b.logger.With(zap.String("trigger", trigger), zap.Int("frames", len(frames)))
	start := time.Now()

	parts, encoded := b.encodeFrames(frames, log)
	if len(parts) == 0 {
		log.Warn("no readable frames in batch, dropping")
		metrics.InferenceBatchesTotal.WithLabelValues(trigger, "empty").Inc()
		return
	}

	violations, err := b.vision.ModerateFrames(ctx, parts)
	if err != nil {
		log.Error("vision inference failed, dropping batch", zap.Error(err))
		metrics.InferenceBatchesTotal.WithLabelValues(trigger, "error").Inc()
		return
	}

	b.persistResults(ctx, encoded, violations, log)
	b.removeFrameFiles(encoded, log)

	metrics.InferenceBatchesTotal.WithLabelValues(trigger, "success").Inc()
	metrics.StageDuration.WithLabelValues("frame_inference").Observe(time.Since(start).Seconds())
	log.Info("frame batch moderated", zap.Int("violations", len(violations)))
}

// encodeFrames reads and base64-encodes the batch. The returned records are
// index-aligned with the parts so batch-local violation indexes map back to
// their source frames; unreadable files are dropped from both.
func (b *FrameBatcher) encodeFrames(frames []entity.FrameRecord, log *zap.Logger) ([]port.ImagePart, []entity.FrameRecord) {
	parts := make([]port.ImagePart, 0, len(frames))
	encoded := make([]entity.FrameRecord, 0, len(frames))
	for _, f := range frames {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			log.Warn("failed to read frame file, skipping",
				zap.String("path", f.Path),
				zap.String("job_id", f.JobID.String()),
				zap.Error(err),
			)
			continue
		}
		parts = append(parts, port.ImagePart{
			Data:     base64.StdEncoding.EncodeToString(data),
			MimeType: "image/jpeg",
		})
		encoded = append(encoded, f)
	}
	return parts, encoded
}

// persistResults writes one visual result document per asset represented in
// the batch. Violation frame indexes are translated from batch positions to
// the asset's own frame sequence.
func (b *FrameBatcher) persistResults(ctx context.Context, frames []entity.FrameRecord, violations []entity.VisualViolation, log *zap.Logger) {
	type assetKey struct {
		userID string
		jobID  uuid.UUID
	}

	checked := make(map[assetKey]int)
	order := make([]assetKey, 0, 2)
	for _, f := range frames {
		k := assetKey{userID: f.UserID, jobID: f.JobID}
		if _, seen := checked[k]; !seen {
			order = append(order, k)
		}
		checked[k]++
	}

	byAsset := make(map[assetKey][]entity.VisualViolation)
	for _, v := range violations {
		if v.FrameIndex < 0 || v.FrameIndex >= len(frames) {
			log.Warn("violation references frame outside batch", zap.Int("frame_index", v.FrameIndex))
			continue
		}
		src := frames[v.FrameIndex]
		k := assetKey{userID: src.UserID, jobID: src.JobID}
		v.FrameIndex = src.Index
		byAsset[k] = append(byAsset[k], v)
	}

	for _, k := range order {
		result := entity.NewVisualResult(checked[k], byAsset[k])
		if err := b.repo.Upsert(ctx, k.userID, k.jobID, entity.CollectionVisual, result); err != nil {
			log.Error("failed to persist visual result",
				zap.String("job_id", k.jobID.String()),
				zap.Error(err),
			)
		}
	}
}

func (b *FrameBatcher) removeFrameFiles(frames []entity.FrameRecord, log *zap.Logger) {
	for _, f := range frames {
		if err := os.Remove(f.Path); err != nil {
			log.Warn("failed to remove moderated frame", zap.String("path", f.Path), zap.Error(err))
		}
	}
}

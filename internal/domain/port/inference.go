package port

import (
	"context"

	"github.com/KrazyGenus/blip/internal/domain/entity"
)

// ImagePart is one encoded image in a vision-moderation request, in batch
// order.
type ImagePart struct {
	Data     string // base64
	MimeType string
}

// VisionModerator analyzes an ordered list of encoded frames. Returned
// FrameIndex values are positions within the submitted batch (0-based); an
// empty result means no violations.
type VisionModerator interface {
	ModerateFrames(ctx context.Context, parts []ImagePart) ([]entity.VisualViolation, error)
}

type Transcript struct {
	Full       string
	Utterances []entity.Utterance
}

// Transcriber converts a mono 16 kHz WAV file into a transcript with
// sentence-level timing.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*Transcript, error)
}

// TextModerator analyzes a transcript plus utterance timing for policy
// violations.
type TextModerator interface {
	ModerateText(ctx context.Context, transcript string, utterances []entity.Utterance) ([]entity.AudioViolation, error)
}

package entity

import "github.com/google/uuid"

// AssetReadyMessage is the inbound message for both extraction queues. One
// copy goes to the frame-extraction queue and one to the audio-extraction
// queue per accepted asset.
type AssetReadyMessage struct {
	JobID        uuid.UUID `json:"job_id"`
	UserID       string    `json:"user_id"`
	ObjectKey    string    `json:"object_key"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"file_size"`
	UserEmail    string    `json:"user_email,omitempty"`
}

// FrameBatchMessage carries all FrameRecords of one asset to the dedup
// queue, in sequence order.
type FrameBatchMessage struct {
	JobID  uuid.UUID     `json:"job_id"`
	UserID string        `json:"user_id"`
	Frames []FrameRecord `json:"frames"`
}

// AudioInferenceMessage carries one normalized audio render to the
// transcription stage, 1:1 with the asset.
type AudioInferenceMessage struct {
	JobID        uuid.UUID `json:"job_id"`
	UserID       string    `json:"user_id"`
	AudioPath    string    `json:"audio_path"`
	OriginalName string    `json:"original_name"`
	UserEmail    string    `json:"user_email,omitempty"`
}

// TextModerationMessage carries the transcript plus utterance timing to the
// text-moderation stage.
type TextModerationMessage struct {
	JobID      uuid.UUID   `json:"job_id"`
	UserID     string      `json:"user_id"`
	Transcript string      `json:"transcript"`
	Utterances []Utterance `json:"utterances"`
}

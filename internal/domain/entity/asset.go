package entity

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Asset is one uploaded video. It is created on upload acceptance and
// referenced, never mutated, by every downstream job.
type Asset struct {
	JobID        uuid.UUID
	UserID       string
	ObjectKey    string
	OriginalName string
	Size         int64
	UserEmail    string
	UploadedAt   time.Time
}

func NewAsset(userID, originalName string, size int64) *Asset {
	jobID := uuid.New()
	safe := strings.ReplaceAll(originalName, " ", "_")
	return &Asset{
		JobID:        jobID,
		UserID:       userID,
		ObjectKey:    filepath.Join("user_"+userID, jobID.String()+"_"+safe),
		OriginalName: safe,
		Size:         size,
		UploadedAt:   time.Now().UTC(),
	}
}

// FrameRecord is one candidate frame extracted from an Asset. Index is
// 1-based and EndSec is nil for the final frame of an asset. Path is the
// handoff token: whichever stage last references the file owns its removal.
type FrameRecord struct {
	JobID    uuid.UUID `json:"job_id"`
	UserID   string    `json:"user_id"`
	Index    int       `json:"index"`
	StartSec float64   `json:"start_sec"`
	EndSec   *float64  `json:"end_sec,omitempty"`
	Path     string    `json:"frame_path"`
}

// AudioAsset is the normalized mono PCM render of an Asset's audio track.
type AudioAsset struct {
	JobID      uuid.UUID `json:"job_id"`
	UserID     string    `json:"user_id"`
	Path       string    `json:"audio_path"`
	SampleRate int       `json:"sample_rate"`
	Channels   int       `json:"channels"`
}

const (
	AudioSampleRate = 16000
	AudioChannels   = 1
)

// Utterance is one sentence-level transcript segment with timing.
type Utterance struct {
	Text     string  `json:"text"`
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
}

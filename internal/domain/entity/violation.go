package entity

import "time"

// Result-store collections, one document per (user, job, collection).
const (
	CollectionVisual = "visualViolations"
	CollectionAudio  = "audioViolations"
)

const (
	AssessmentClean     = "CLEAN"
	AssessmentViolation = "POTENTIAL_VIOLATION"
)

// VisualViolation is one finding from the vision-moderation capability.
// FrameIndex refers to the asset's 1-based frame sequence.
type VisualViolation struct {
	FrameIndex int    `json:"frame_index"`
	Category   string `json:"violation_category"`
	Severity   string `json:"severity"`
	Reason     string `json:"reason"`
}

// VisualResult is the payload persisted per asset after a frame batch has
// been through vision inference. An empty Violations slice means clean.
type VisualResult struct {
	Assessment    string            `json:"overall_assessment"`
	FramesChecked int               `json:"frames_checked"`
	Violations    []VisualViolation `json:"violations,omitempty"`
	CheckedAt     time.Time         `json:"checked_at"`
}

func NewVisualResult(framesChecked int, violations []VisualViolation) *VisualResult {
	assessment := AssessmentClean
	if len(violations) > 0 {
		assessment = AssessmentViolation
	}
	return &VisualResult{
		Assessment:    assessment,
		FramesChecked: framesChecked,
		Violations:    violations,
		CheckedAt:     time.Now().UTC(),
	}
}

// AudioViolation is one finding from the text-moderation capability over
// the transcript.
type AudioViolation struct {
	ViolationType   string  `json:"violation_type"`
	Segment         string  `json:"violating_segment"`
	StartSec        float64 `json:"start_sec"`
	EndSec          float64 `json:"end_sec"`
	Reason          string  `json:"reason"`
	SuggestedAction string  `json:"suggested_action"`
}

// AudioResult is the payload persisted per asset after text moderation.
type AudioResult struct {
	Assessment string           `json:"overall_assessment"`
	Transcript string           `json:"transcript"`
	Violations []AudioViolation `json:"violations,omitempty"`
	CheckedAt  time.Time        `json:"checked_at"`
}

func NewAudioResult(transcript string, violations []AudioViolation) *AudioResult {
	assessment := AssessmentClean
	if len(violations) > 0 {
		assessment = AssessmentViolation
	}
	return &AudioResult{
		Assessment: assessment,
		Transcript: transcript,
		Violations: violations,
		CheckedAt:  time.Now().UTC(),
	}
}

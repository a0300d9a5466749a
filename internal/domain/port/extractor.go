package port

import "context"

// SceneFrame is one frame selected at a scene-change boundary. EndSec is
// nil for the last frame of the video.
type SceneFrame struct {
	Index    int
	StartSec float64
	EndSec   *float64
	Path     string
}

type SceneExtractionResult struct {
	Frames        []SceneFrame
	VideoDuration float64
}

type SceneExtractor interface {
	ExtractSceneFrames(ctx context.Context, videoPath string, outputDir string) (*SceneExtractionResult, error)
}

// AudioExtractor renders the audio track as mono 16 kHz loudness-normalized
// PCM WAV and returns the output path.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath string, outputDir string, baseName string) (string, error)
}

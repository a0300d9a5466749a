package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/KrazyGenus/blip/internal/domain/entity"
	"github.com/KrazyGenus/blip/internal/domain/port"
	"go.uber.org/zap"
)

// Transcoder wraps the ffmpeg/ffprobe binaries for scene-frame and audio
// extraction. It never deletes its input.
type Transcoder struct {
	sceneThreshold float64
	logger         *zap.Logger
}

func NewTranscoder(sceneThreshold float64, logger *zap.Logger) *Transcoder {
	return &Transcoder{sceneThreshold: sceneThreshold, logger: logger}
}

var ptsTimeRe = regexp.MustCompile(`pts_time:([0-9]+(?:\.[0-9]+)?)`)

// ExtractSceneFrames writes scene-%03d.jpeg files to outputDir for every
// frame whose scene-change score exceeds the configured threshold and
// returns the frame records in strictly increasing timestamp order.
func (t *Transcoder) ExtractSceneFrames(ctx context.Context, videoPath string, outputDir string) (*port.SceneExtractionResult, error) {
	duration, err := t.Probe(ctx, videoPath)
	if err != nil {
		t.logger.Warn("could not probe video duration", zap.Error(err))
	}

	framePattern := filepath.Join(outputDir, "scene-%03d.jpeg")
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-vf", fmt.Sprintf("select='gt(scene,%g)',showinfo", t.sceneThreshold),
		"-vsync", "vfr",
		"-q:v", "2",
		"-y",
		framePattern,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &entity.DecodeError{
			Input: videoPath,
			Err:   fmt.Errorf("ffmpeg: %w, output: %s", err, tail(stderr.String(), 512)),
		}
	}

	timestamps := parseShowinfoTimestamps(stderr.String())
	frames, err := buildSceneFrames(timestamps, outputDir)
	if err != nil {
		return nil, &entity.DecodeError{Input: videoPath, Err: err}
	}

	t.logger.Info("scene frames extracted",
		zap.Int("count", len(frames)),
		zap.Float64("video_duration", duration),
	)

	return &port.SceneExtractionResult{
		Frames:        frames,
		VideoDuration: duration,
	}, nil
}

// parseShowinfoTimestamps pulls the pts_time value of every selected frame
// out of ffmpeg's showinfo stderr output, in emission order.
func parseShowinfoTimestamps(stderr string) []float64 {
	matches := ptsTimeRe.FindAllStringSubmatch(stderr, -1)
	timestamps := make([]float64, 0, len(matches))
	for _, m := range matches {
		ts, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		timestamps = append(timestamps, ts)
	}
	return timestamps
}

// buildSceneFrames maps timestamps to the scene-%03d.jpeg files ffmpeg
// wrote. Frame indices are 1-based; each frame's end is the next frame's
// start, nil for the last. Non-increasing timestamps mean the decoder
// emitted garbage and fail the extraction.
func buildSceneFrames(timestamps []float64, outputDir string) ([]port.SceneFrame, error) {
	frames := make([]port.SceneFrame, 0, len(timestamps))
	for i, start := range timestamps {
		if i > 0 && start <= timestamps[i-1] {
			return nil, fmt.Errorf("non-monotonic frame timestamps: %g after %g", start, timestamps[i-1])
		}
		path := filepath.Join(outputDir, fmt.Sprintf("scene-%03d.jpeg", i+1))
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("expected frame file missing: %w", err)
		}
		frame := port.SceneFrame{
			Index:    i + 1,
			StartSec: start,
			Path:     path,
		}
		if i+1 < len(timestamps) {
			end := timestamps[i+1]
			frame.EndSec = &end
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KrazyGenus/blip/internal/domain/entity"
	"go.uber.org/zap"
)

// ExtractAudio renders the input's audio track as mono 16 kHz
// loudness-normalized signed 16-bit PCM WAV, so downstream transcription
// does not compound lossy-codec artifacts. Returns the output path.
func (t *Transcoder) ExtractAudio(ctx context.Context, videoPath string, outputDir string, baseName string) (string, error) {
	outPath := filepath.Join(outputDir, "audio_"+baseName+".wav")
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-vn",
		"-ac", strconv.Itoa(entity.AudioChannels),
		"-ar", strconv.Itoa(entity.AudioSampleRate),
		"-af", "loudnorm",
		"-acodec", "pcm_s16le",
		"-f", "wav",
		"-y",
		outPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &entity.DecodeError{
			Input: videoPath,
			Err:   fmt.Errorf("ffmpeg: %w, output: %s", err, tail(stderr.String(), 512)),
		}
	}

	t.logger.Info("audio track extracted", zap.String("audio_path", outPath))
	return outPath, nil
}

// Probe returns the container duration in seconds via ffprobe.
func (t *Transcoder) Probe(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

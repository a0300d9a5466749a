package inference

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/KrazyGenus/blip/internal/domain/entity"
	"github.com/KrazyGenus/blip/internal/domain/port"
)

// TranscribeClient calls the speech-to-text capability with the normalized
// mono 16 kHz WAV render.
type TranscribeClient struct {
	http httpClient
}

type TranscribeConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewTranscribeClient(cfg TranscribeConfig) *TranscribeClient {
	return &TranscribeClient{http: newHTTPClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout)}
}

type transcribeUtterance struct {
	Text     string  `json:"text"`
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
}

type transcribeResponse struct {
	Transcript string                `json:"transcript"`
	Utterances []transcribeUtterance `json:"utterances"`
}

func (c *TranscribeClient) Transcribe(ctx context.Context, audioPath string) (*port.Transcript, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		// A render that is gone will not reappear on redelivery, so a
		// missing file must not burn the full transient retry budget.
		if os.IsNotExist(err) {
			return nil, &entity.DecodeError{Input: audioPath, Err: err}
		}
		return nil, fmt.Errorf("read audio %s: %w", audioPath, err)
	}

	var resp transcribeResponse
	if err := c.http.post(ctx, "/v1/transcribe?utterances=true", "audio/wav", bytes.NewReader(audio), &resp); err != nil {
		return nil, &entity.ExternalAPIError{Capability: "transcription", Err: err}
	}

	utterances := make([]entity.Utterance, 0, len(resp.Utterances))
	for _, u := range resp.Utterances {
		utterances = append(utterances, entity.Utterance{
			Text:     u.Text,
			StartSec: u.StartSec,
			EndSec:   u.EndSec,
		})
	}

	return &port.Transcript{
		Full:       resp.Transcript,
		Utterances: utterances,
	}, nil
}

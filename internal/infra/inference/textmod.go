package inference

import (
	"context"
	"time"

	"github.com/KrazyGenus/blip/internal/domain/entity"
)

// TextModClient calls the text-moderation capability with the transcript
// and sentence-level timing.
type TextModClient struct {
	http httpClient
}

type TextModConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewTextModClient(cfg TextModConfig) *TextModClient {
	return &TextModClient{http: newHTTPClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout)}
}

type textModRequest struct {
	Transcript string             `json:"transcript"`
	Utterances []entity.Utterance `json:"utterances"`
}

type textModViolation struct {
	ViolationType   string  `json:"violation_type"`
	Segment         string  `json:"violating_segment"`
	StartSec        float64 `json:"start_sec"`
	EndSec          float64 `json:"end_sec"`
	Reason          string  `json:"reason"`
	SuggestedAction string  `json:"suggested_action"`
}

type textModResponse struct {
	Violations []textModViolation `json:"violations"`
}

func (c *TextModClient) ModerateText(ctx context.Context, transcript string, utterances []entity.Utterance) ([]entity.AudioViolation, error) {
	req := textModRequest{Transcript: transcript, Utterances: utterances}

	var resp textModResponse
	if err := c.http.postJSON(ctx, "/v1/moderate/text", req, &resp); err != nil {
		return nil, &entity.ExternalAPIError{Capability: "text moderation", Err: err}
	}

	violations := make([]entity.AudioViolation, 0, len(resp.Violations))
	for _, v := range resp.Violations {
		violations = append(violations, entity.AudioViolation{
			ViolationType:   v.ViolationType,
			Segment:         v.Segment,
			StartSec:        v.StartSec,
			EndSec:          v.EndSec,
			Reason:          v.Reason,
			SuggestedAction: v.SuggestedAction,
		})
	}
	return violations, nil
}

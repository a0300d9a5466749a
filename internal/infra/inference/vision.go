package inference

import (
	"context"
	"time"

	"github.com/KrazyGenus/blip/internal/domain/entity"
	"github.com/KrazyGenus/blip/internal/domain/port"
)

// VisionClient calls the vision-moderation capability with one ordered
// batch of encoded frames per request.
type VisionClient struct {
	http httpClient
}

type VisionConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewVisionClient(cfg VisionConfig) *VisionClient {
	return &VisionClient{http: newHTTPClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout)}
}

type visionFrame struct {
	Image    string `json:"image_b64"`
	MimeType string `json:"mime_type"`
}

type visionRequest struct {
	Frames []visionFrame `json:"frames"`
}

type visionResult struct {
	FrameIndex int    `json:"frame_index"`
	Category   string `json:"violation_category"`
	Severity   string `json:"severity"`
	Reason     string `json:"reason"`
}

type visionResponse struct {
	Results []visionResult `json:"results"`
}

// ModerateFrames submits the batch and returns violations with batch-local
// frame indexes. An empty result list means no violations.
func (c *VisionClient) ModerateFrames(ctx context.Context, parts []port.ImagePart) ([]entity.VisualViolation, error) {
	req := visionRequest{Frames: make([]visionFrame, 0, len(parts))}
	for _, p := range parts {
		req.Frames = append(req.Frames, visionFrame{Image: p.Data, MimeType: p.MimeType})
	}

	var resp visionResponse
	if err := c.http.postJSON(ctx, "/v1/moderate/frames", req, &resp); err != nil {
		return nil, &entity.ExternalAPIError{Capability: "vision moderation", Err: err}
	}

	violations := make([]entity.VisualViolation, 0, len(resp.Results))
	for _, r := range resp.Results {
		violations = append(violations, entity.VisualViolation{
			FrameIndex: r.FrameIndex,
			Category:   r.Category,
			Severity:   r.Severity,
			Reason:     r.Reason,
		})
	}
	return violations, nil
}

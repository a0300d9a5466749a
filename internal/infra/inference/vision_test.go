package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KrazyGenus/blip/internal/domain/entity"
	"github.com/KrazyGenus/blip/internal/domain/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisionClientModerateFrames(t *testing.T) {
	var gotFrames int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/moderate/frames", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req visionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotFrames = len(req.Frames)

		json.NewEncoder(w).Encode(visionResponse{Results: []visionResult{
			{FrameIndex: 1, Category: "Violence", Severity: "high", Reason: "graphic content"},
		}})
	}))
	defer srv.Close()

	c := NewVisionClient(VisionConfig{BaseURL: srv.URL, APIKey: "test-key"})
	violations, err := c.ModerateFrames(context.Background(), []port.ImagePart{
		{Data: "aGVsbG8=", MimeType: "image/jpeg"},
		{Data: "d29ybGQ=", MimeType: "image/jpeg"},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, gotFrames)
	require.Len(t, violations, 1)
	assert.Equal(t, 1, violations[0].FrameIndex)
	assert.Equal(t, "Violence", violations[0].Category)
}

func TestVisionClientEmptyResultMeansClean(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := NewVisionClient(VisionConfig{BaseURL: srv.URL})
	violations, err := c.ModerateFrames(context.Background(), []port.ImagePart{{Data: "aGVsbG8="}})

	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestVisionClientMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("```json not actually json"))
	}))
	defer srv.Close()

	c := NewVisionClient(VisionConfig{BaseURL: srv.URL})
	_, err := c.ModerateFrames(context.Background(), []port.ImagePart{{Data: "aGVsbG8="}})

	var apiErr *entity.ExternalAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "vision moderation", apiErr.Capability)
}

func TestVisionClientHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewVisionClient(VisionConfig{BaseURL: srv.URL})
	_, err := c.ModerateFrames(context.Background(), []port.ImagePart{{Data: "aGVsbG8="}})

	var apiErr *entity.ExternalAPIError
	require.ErrorAs(t, err, &apiErr)
}

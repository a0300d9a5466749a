package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/KrazyGenus/blip/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscribeClientReturnsUtterances(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "audio_x.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("RIFF-wav-bytes"), 0644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/transcribe", r.URL.Path)
		require.Equal(t, "true", r.URL.Query().Get("utterances"))
		require.Equal(t, "audio/wav", r.Header.Get("Content-Type"))

		json.NewEncoder(w).Encode(transcribeResponse{
			Transcript: "hello there",
			Utterances: []transcribeUtterance{{Text: "hello there", StartSec: 0, EndSec: 1.5}},
		})
	}))
	defer srv.Close()

	c := NewTranscribeClient(TranscribeConfig{BaseURL: srv.URL})
	transcript, err := c.Transcribe(context.Background(), audioPath)

	require.NoError(t, err)
	assert.Equal(t, "hello there", transcript.Full)
	require.Len(t, transcript.Utterances, 1)
	assert.Equal(t, 1.5, transcript.Utterances[0].EndSec)
}

func TestTranscribeClientMissingFileIsDecodeError(t *testing.T) {
	c := NewTranscribeClient(TranscribeConfig{BaseURL: "http://localhost:0"})

	_, err := c.Transcribe(context.Background(), filepath.Join(t.TempDir(), "gone.wav"))

	var decodeErr *entity.DecodeError
	require.ErrorAs(t, err, &decodeErr, "a vanished render must not be retried as transient")
}

func TestTranscribeClientBackendFailure(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "audio_x.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("RIFF"), 0644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewTranscribeClient(TranscribeConfig{BaseURL: srv.URL})
	_, err := c.Transcribe(context.Background(), audioPath)

	var apiErr *entity.ExternalAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "transcription", apiErr.Capability)
}

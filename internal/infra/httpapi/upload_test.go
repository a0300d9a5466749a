package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KrazyGenus/blip/internal/usecase"
)

type recordingStorage struct {
	mu       sync.Mutex
	uploaded map[string]int64
}

func (s *recordingStorage) UploadVideo(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	n, _ := io.Copy(io.Discard, reader)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded[key] = n
	return nil
}

func (s *recordingStorage) DownloadVideo(context.Context, string, string) error { return nil }
func (s *recordingStorage) RemoveVideo(context.Context, string) error           { return nil }

type recordingEnqueuer struct {
	mu     sync.Mutex
	queues []string
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, queue string, _ any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queues = append(e.queues, queue)
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *recordingStorage, *recordingEnqueuer) {
	t.Helper()
	storage := &recordingStorage{uploaded: make(map[string]int64)}
	pub := &recordingEnqueuer{}
	uploads := usecase.NewUploadStage(storage, pub, zap.NewNop(), usecase.UploadConfig{
		FrameQueue: "video.frames",
		AudioQueue: "video.audio",
	})

	router := mux.NewRouter()
	NewUploadHandler(uploads, zap.NewNop()).Register(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, storage, pub
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range fields {
		require.NoError(t, w.WriteField(name, value))
	}
	for name, content := range files {
		fw, err := w.CreateFormFile("video", name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadEndpointAcceptsVideo(t *testing.T) {
	srv, storage, pub := newTestServer(t)

	body, contentType := multipartBody(t,
		map[string]string{"user_id": "u1", "user_email": "u1@example.com"},
		map[string][]byte{"clip.mp4": []byte("fake video bytes")},
	)

	resp, err := http.Post(srv.URL+"/v1/videos", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out uploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 1, out.Queued)
	require.Len(t, out.Jobs, 1)
	assert.NotEmpty(t, out.Jobs[0].JobID)

	assert.Contains(t, storage.uploaded, out.Jobs[0].ObjectKey)
	assert.ElementsMatch(t, []string{"video.frames", "video.audio"}, pub.queues)
}

func TestUploadEndpointMultipleFiles(t *testing.T) {
	srv, _, pub := newTestServer(t)

	body, contentType := multipartBody(t,
		map[string]string{"user_id": "u1"},
		map[string][]byte{"a.mp4": []byte("aa"), "b.mov": []byte("bb")},
	)

	resp, err := http.Post(srv.URL+"/v1/videos", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out uploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 2, out.Queued)
	assert.Len(t, pub.queues, 4)
}

func TestUploadEndpointRequiresUserID(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body, contentType := multipartBody(t, nil, map[string][]byte{"clip.mp4": []byte("x")})

	resp, err := http.Post(srv.URL+"/v1/videos", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadEndpointRejectsNonVideo(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body, contentType := multipartBody(t,
		map[string]string{"user_id": "u1"},
		map[string][]byte{"notes.txt": []byte("hello")},
	)

	resp, err := http.Post(srv.URL+"/v1/videos", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestUploadEndpointRejectsNonMultipart(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/videos", "application/json", bytes.NewReader([]byte("{}")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

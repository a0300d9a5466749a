package usecase

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/KrazyGenus/blip/internal/domain/entity"
	"github.com/KrazyGenus/blip/internal/domain/port"
)

type enqueuedMsg struct {
	queue   string
	payload any
}

type fakeEnqueuer struct {
	mu     sync.Mutex
	msgs   []enqueuedMsg
	failOn string
	err    error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, queue string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil && (f.failOn == "" || f.failOn == queue) {
		return f.err
	}
	f.msgs = append(f.msgs, enqueuedMsg{queue: queue, payload: payload})
	return nil
}

func (f *fakeEnqueuer) byQueue(queue string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, m := range f.msgs {
		if m.queue == queue {
			out = append(out, m.payload)
		}
	}
	return out
}

type fakeDLQ struct {
	mu      sync.Mutex
	bodies  [][]byte
	reasons []string
}

func (f *fakeDLQ) PublishToDLQ(_ context.Context, _ string, msg []byte, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies = append(f.bodies, msg)
	f.reasons = append(f.reasons, reason)
	return nil
}

func (f *fakeDLQ) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

type fakeStorage struct {
	mu        sync.Mutex
	uploaded  map[string]int64
	removed   []string
	uploadErr error
	content   []byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: make(map[string]int64), content: []byte("video-bytes")}
}

func (f *fakeStorage) UploadVideo(_ context.Context, key string, reader io.Reader, size int64, _ string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	n, _ := io.Copy(io.Discard, reader)
	f.mu.Lock()
	defer f.mu.Unlock()
	if size >= 0 {
		f.uploaded[key] = size
	} else {
		f.uploaded[key] = n
	}
	return nil
}

func (f *fakeStorage) DownloadVideo(_ context.Context, _ string, destPath string) error {
	return os.WriteFile(destPath, f.content, 0644)
}

func (f *fakeStorage) RemoveVideo(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, key)
	return nil
}

type fakeVision struct {
	mu    sync.Mutex
	calls [][]port.ImagePart
	fn    func(parts []port.ImagePart) ([]entity.VisualViolation, error)
}

func (f *fakeVision) ModerateFrames(_ context.Context, parts []port.ImagePart) ([]entity.VisualViolation, error) {
	f.mu.Lock()
	f.calls = append(f.calls, parts)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(parts)
	}
	return nil, nil
}

func (f *fakeVision) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type upsertCall struct {
	userID     string
	jobID      uuid.UUID
	collection string
	payload    any
}

type repoKey struct {
	userID     string
	jobID      uuid.UUID
	collection string
}

// fakeRepo mirrors the store's create-or-update semantics: one document per
// (user, job, collection), later upserts overwrite.
type fakeRepo struct {
	mu    sync.Mutex
	docs  map[repoKey]any
	order []repoKey
	err   error
}

func (f *fakeRepo) Upsert(_ context.Context, userID string, jobID uuid.UUID, collection string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docs == nil {
		f.docs = make(map[repoKey]any)
	}
	k := repoKey{userID: userID, jobID: jobID, collection: collection}
	if _, exists := f.docs[k]; !exists {
		f.order = append(f.order, k)
	}
	f.docs[k] = payload
	return nil
}

// calls returns the stored documents, one per key, in first-upsert order.
func (f *fakeRepo) calls() []upsertCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]upsertCall, 0, len(f.order))
	for _, k := range f.order {
		out = append(out, upsertCall{userID: k.userID, jobID: k.jobID, collection: k.collection, payload: f.docs[k]})
	}
	return out
}

type fakeTranscriber struct {
	transcript *port.Transcript
	err        error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string) (*port.Transcript, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.transcript, nil
}

type fakeTextModerator struct {
	violations []entity.AudioViolation
	err        error
}

func (f *fakeTextModerator) ModerateText(_ context.Context, _ string, _ []entity.Utterance) ([]entity.AudioViolation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.violations, nil
}

type fakeMarker struct {
	mu     sync.Mutex
	counts map[uuid.UUID]int
}

func newFakeMarker() *fakeMarker {
	return &fakeMarker{counts: make(map[uuid.UUID]int)}
}

func (f *fakeMarker) SignalExtracted(_ context.Context, jobID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[jobID]++
	return f.counts[jobID] >= 2, nil
}

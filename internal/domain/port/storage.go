package port

import (
	"context"
	"io"
)

// VideoStorage is the scratch object store uploads land in. Extraction
// stages download their own working copy; Remove is best-effort cleanup
// once every derived job has been enqueued.
type VideoStorage interface {
	UploadVideo(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	DownloadVideo(ctx context.Context, objectKey string, destPath string) error
	RemoveVideo(ctx context.Context, objectKey string) error
}

package port

import (
	"context"

	"github.com/google/uuid"
)

// ExtractionMarker records that one extraction stage has finished enqueuing
// its derived jobs for an asset. It returns true once both stages have
// signaled, at which point the uploaded object may be removed.
type ExtractionMarker interface {
	SignalExtracted(ctx context.Context, jobID uuid.UUID) (bool, error)
}

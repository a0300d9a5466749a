package port

import (
	"context"

	"github.com/google/uuid"
)

// ViolationRepository persists moderation results. Upsert has
// create-or-update semantics keyed by (userID, jobID, collection) so
// redelivered jobs overwrite rather than duplicate.
type ViolationRepository interface {
	Upsert(ctx context.Context, userID string, jobID uuid.UUID, collection string, payload any) error
}

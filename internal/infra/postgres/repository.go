package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ViolationRepository persists moderation results as one JSONB document per
// (user, job, collection).
type ViolationRepository struct {
	pool *pgxpool.Pool
}

func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

// Upsert has create-or-update semantics so redelivered jobs overwrite their
// previous result instead of inserting duplicates.
func (r *ViolationRepository) Upsert(ctx context.Context, userID string, jobID uuid.UUID, collection string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO violations (user_id, job_id, collection, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (user_id, job_id, collection)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`

	if _, err := r.pool.Exec(ctx, query, userID, jobID, collection, body); err != nil {
		return fmt.Errorf("upsert violation result: %w", err)
	}
	return nil
}

// Find returns the stored payload for one (user, job, collection), raw.
func (r *ViolationRepository) Find(ctx context.Context, userID string, jobID uuid.UUID, collection string) ([]byte, error) {
	query := `SELECT payload FROM violations WHERE user_id = $1 AND job_id = $2 AND collection = $3`

	var payload []byte
	if err := r.pool.QueryRow(ctx, query, userID, jobID, collection).Scan(&payload); err != nil {
		return nil, fmt.Errorf("find violation result: %w", err)
	}
	return payload, nil
}

package store

import (
	"context"
	"time"

	"karriere-harvester/internal/models"
)

//go:generate mockgen -destination=../../mocks/mock_store.go -package=mocks karriere-harvester/internal/store StatusStore,Deduper

// StatusStore persists run status.
type StatusStore interface {
	SetStatus(ctx context.Context, status models.RunStatus) error
	GetStatus(ctx context.Context, runID string) (models.RunStatus, bool, error)
}

// Deduper claims keys so a request is processed at most once per TTL.
type Deduper interface {
	// Claim returns true when key was not claimed before.
	Claim(ctx context.Context, key string) (bool, error)
}

// Transition loads the status of runID (or starts from base), applies fn,
// stamps UpdatedAt and stores the result.
func Transition(ctx context.Context, s StatusStore, base models.RunStatus, fn func(*models.RunStatus)) (models.RunStatus, error) {
	status, ok, err := s.GetStatus(ctx, base.RunID)
	if err != nil {
		return models.RunStatus{}, err
	}
	if !ok {
		status = base
	}
	fn(&status)
	status.UpdatedAt = time.Now().UTC()
	if status.CreatedAt.IsZero() {
		status.CreatedAt = status.UpdatedAt
	}
	return status, s.SetStatus(ctx, status)
}

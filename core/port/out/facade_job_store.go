package out

import (
	"context"
	"time"

	"facade_server/core/domain"
)

// StoredJob is the persisted form of a pending job.
type StoredJob struct {
	ID        int64              `json:"id"`
	Payload   domain.SendRequest `json:"payload"`
	FireAt    time.Time          `json:"fire_at"`
	CreatedAt time.Time          `json:"created_at"`
}

// JobStore keeps pending jobs so they can be restored after a restart.
// A job is deleted when it fires or is cancelled.
type JobStore interface {
	Save(ctx context.Context, job StoredJob) error
	Delete(ctx context.Context, id int64) error
	LoadPending(ctx context.Context) ([]StoredJob, error)
}

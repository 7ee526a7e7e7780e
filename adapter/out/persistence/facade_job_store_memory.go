package persistence

import (
	"context"
	"sync"

	"facade_server/core/port/out"
)

// MemoryJobStore keeps pending jobs for the life of the process only.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[int64]out.StoredJob
}

var _ out.JobStore = (*MemoryJobStore)(nil)

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[int64]out.StoredJob)}
}

func (s *MemoryJobStore) Save(ctx context.Context, job out.StoredJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryJobStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *MemoryJobStore) LoadPending(ctx context.Context) ([]out.StoredJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]out.StoredJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	return jobs, nil
}

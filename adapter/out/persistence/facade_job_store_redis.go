// Package persistence stores pending scheduled jobs.
package persistence

import (
	"context"
	"fmt"
	"strconv"

	"facade_server/core/port/out"
	"facade_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// DefaultJobKey is the Redis hash holding pending jobs, field = job id.
const DefaultJobKey = "facade:scheduled_jobs"

// RedisJobStore snapshots pending jobs into one Redis hash.
type RedisJobStore struct {
	client *redis.Client
	key    string
}

var _ out.JobStore = (*RedisJobStore)(nil)

func NewRedisJobStore(client *redis.Client, key string) *RedisJobStore {
	if key == "" {
		key = DefaultJobKey
	}
	return &RedisJobStore{client: client, key: key}
}

func (s *RedisJobStore) Save(ctx context.Context, job out.StoredJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %d: %w", job.ID, err)
	}
	if err := s.client.HSet(ctx, s.key, strconv.FormatInt(job.ID, 10), data).Err(); err != nil {
		return fmt.Errorf("save job %d: %w", job.ID, err)
	}
	return nil
}

func (s *RedisJobStore) Delete(ctx context.Context, id int64) error {
	if err := s.client.HDel(ctx, s.key, strconv.FormatInt(id, 10)).Err(); err != nil {
		return fmt.Errorf("delete job %d: %w", id, err)
	}
	return nil
}

// LoadPending returns every stored job. Entries that no longer decode are
// dropped from the hash.
func (s *RedisJobStore) LoadPending(ctx context.Context) ([]out.StoredJob, error) {
	entries, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}

	jobs := make([]out.StoredJob, 0, len(entries))
	for field, data := range entries {
		var job out.StoredJob
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			logger.WithField("job_id", field).WithError(err).Warn("dropping undecodable stored job")
			s.client.HDel(ctx, s.key, field)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Package database opens the optional Redis connection that backs the
// scheduled-job snapshot.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PoolConfig sizes the Redis connection pool.
type PoolConfig struct {
	Size         int
	MinIdle      int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingTimeout  time.Duration
}

// SnapshotPool is sized for the job snapshot: a few writes per scheduled
// send, nothing on the request hot path.
var SnapshotPool = PoolConfig{
	Size:         10,
	MinIdle:      1,
	MaxRetries:   3,
	DialTimeout:  5 * time.Second,
	ReadTimeout:  3 * time.Second,
	WriteTimeout: 3 * time.Second,
	PingTimeout:  5 * time.Second,
}

// Open connects to redisURL and pings it. The client is closed again if
// the server does not answer.
func Open(ctx context.Context, redisURL string, pool PoolConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	if pool.Size > 0 {
		opt.PoolSize = pool.Size
	}
	opt.MinIdleConns = pool.MinIdle
	opt.MaxRetries = pool.MaxRetries
	opt.DialTimeout = pool.DialTimeout
	opt.ReadTimeout = pool.ReadTimeout
	opt.WriteTimeout = pool.WriteTimeout

	client := redis.NewClient(opt)

	if pool.PingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pool.PingTimeout)
		defer cancel()
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opt.Addr, err)
	}
	return client, nil
}

// PoolStats is the readiness view of the connection pool.
type PoolStats struct {
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
	Timeouts   uint32 `json:"timeouts"`
}

func Stats(client *redis.Client) PoolStats {
	s := client.PoolStats()
	return PoolStats{
		TotalConns: s.TotalConns,
		IdleConns:  s.IdleConns,
		Timeouts:   s.Timeouts,
	}
}

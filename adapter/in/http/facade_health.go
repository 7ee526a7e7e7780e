package http

import (
	"context"
	"time"

	"facade_server/core/domain"
	"facade_server/infra/database"
	"facade_server/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// BreakerState reports the provider circuit breaker state.
type BreakerState interface {
	State() string
}

// JobCounter reports how many scheduled jobs are in each state.
type JobCounter interface {
	Counts() map[domain.JobState]int
}

type HealthHandler struct {
	breaker BreakerState
	latency *metrics.Registry
	jobs    JobCounter
	redis   *redis.Client
}

// NewHealthHandler builds the health handler. Any dependency may be nil.
func NewHealthHandler(breaker BreakerState, latency *metrics.Registry, jobs JobCounter, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{
		breaker: breaker,
		latency: latency,
		jobs:    jobs,
		redis:   rdb,
	}
}

func (h *HealthHandler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Get("/ready", h.Ready)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready fails while the Gmail breaker is open or Redis is unreachable.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true
	var pool *database.PoolStats

	if h.breaker != nil {
		state := h.breaker.State()
		if state == "open" {
			checks["gmail"] = "unhealthy: circuit open"
			allHealthy = false
		} else {
			checks["gmail"] = "healthy (" + state + ")"
		}
	} else {
		checks["gmail"] = "not configured"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["redis"] = "healthy"
		}
		stats := database.Stats(h.redis)
		pool = &stats
	} else {
		checks["redis"] = "not configured"
	}

	body := fiber.Map{
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if pool != nil {
		body["redis_pool"] = pool
	}
	if h.latency != nil {
		ops := make(map[string]any)
		for op, stats := range h.latency.Snapshot() {
			ops[op] = stats.ToMap()
		}
		body["latency"] = ops
	}
	if h.jobs != nil {
		jobs := make(map[string]int)
		for state, n := range h.jobs.Counts() {
			jobs[string(state)] = n
		}
		body["scheduled_jobs"] = jobs
	}

	status := fiber.StatusOK
	body["status"] = "ready"
	if !allHealthy {
		status = fiber.StatusServiceUnavailable
		body["status"] = "not ready"
	}
	return c.Status(status).JSON(body)
}

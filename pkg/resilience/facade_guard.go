// Package resilience bounds and protects calls to the mail provider.
package resilience

import (
	"context"
	"errors"
	"time"

	"facade_server/pkg/apperr"
	"facade_server/pkg/logger"
	"facade_server/pkg/metrics"

	"github.com/sony/gobreaker"
)

// GuardConfig holds the timeout and breaker settings for provider calls.
type GuardConfig struct {
	Name        string
	Timeout     time.Duration // per-call deadline
	MaxRequests uint32        // requests allowed through while half-open
	Interval    time.Duration // closed-state counter reset interval
	OpenTimeout time.Duration // time spent open before half-open

	// Benign reports errors that reject one request, not the provider,
	// such as an unknown message id. They are returned to the caller but
	// do not count against the breaker. Nil means every error counts.
	Benign func(err error) bool
}

// DefaultGuardConfig returns the settings used for the Gmail API.
func DefaultGuardConfig(name string) GuardConfig {
	return GuardConfig{
		Name:        name,
		Timeout:     30 * time.Second,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		OpenTimeout: 30 * time.Second,
	}
}

// Guard applies a timeout and a circuit breaker to each call and records
// its latency. Every error it returns is an *apperr.AppError.
type Guard struct {
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
	metrics *metrics.Registry
}

// NewGuard creates a guard. reg may be nil.
func NewGuard(cfg GuardConfig, reg *metrics.Registry) *Guard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// 5 consecutive failures, or >=60% failures over at least 10 requests
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || (cfg.Benign != nil && cfg.Benign(err))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithField("breaker", name).Warn("circuit breaker state changed from %s to %s", from.String(), to.String())
		},
	}
	return &Guard{
		timeout: cfg.Timeout,
		cb:      gobreaker.NewCircuitBreaker(settings),
		metrics: reg,
	}
}

// State returns the breaker state name.
func (g *Guard) State() string {
	return g.cb.State().String()
}

// Do runs fn under the guard.
func (g *Guard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, g, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call runs fn under the guard and returns its result.
func Call[T any](ctx context.Context, g *Guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	res, err := g.cb.Execute(func() (interface{}, error) {
		return fn(callCtx)
	})
	if g.metrics != nil {
		g.metrics.Observe(op, time.Since(start), err)
	}

	var zero T
	if err != nil {
		return zero, classify(callCtx, op, err)
	}
	v, _ := res.(T)
	return v, nil
}

func classify(ctx context.Context, op string, err error) error {
	var appErr *apperr.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperr.Timeout(op, err)
	default:
		return apperr.ProviderRequest(op, err)
	}
}

// Package schedule holds delayed sends until their fire-time and sends
// each one exactly once.
package schedule

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"facade_server/core/domain"
	"facade_server/core/port/out"
	"facade_server/pkg/snowflake"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"
)

var (
	ErrSchedulerStopped = errors.New("scheduler is stopped")
	ErrJobNotFound      = errors.New("scheduled job not found")
	ErrJobNotPending    = errors.New("scheduled job is no longer pending")
)

// Sender delivers one composed message.
type Sender interface {
	Send(ctx context.Context, req domain.SendRequest) (*domain.SendResult, error)
}

// Config holds scheduler configuration.
type Config struct {
	Workers       int           // concurrent sends
	Retention     time.Duration // how long finished jobs stay queryable
	PruneInterval time.Duration
	SendTimeout   time.Duration // ceiling for one send, guard timeout applies inside
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Workers:       4,
		Retention:     24 * time.Hour,
		PruneInterval: time.Minute,
		SendTimeout:   2 * time.Minute,
	}
}

// Scheduler is the delayed-send timeline. A single dispatcher goroutine
// pops due jobs in (fire-time, registration) order, flips them
// pending -> fired and hands them to a bounded worker group that makes
// one send attempt each. There is no retry. With more than one worker the
// sends themselves run concurrently, so completion order is not fire order.
type Scheduler struct {
	sender Sender
	store  out.JobStore
	ids    *snowflake.Node
	cfg    Config
	log    zerolog.Logger

	// Clock is read for every state timestamp and due check.
	Clock func() time.Time

	mu       sync.Mutex
	timeline timeline
	jobs     map[int64]*entry
	seq      uint64
	started  bool
	stopped  bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}

	workers    *pool.WorkerGroup[*domain.ScheduledJob]
	poolCancel context.CancelFunc
}

// New creates a scheduler. store may be nil, in which case nothing outlives the process.
func New(sender Sender, store out.JobStore, ids *snowflake.Node, cfg Config, log zerolog.Logger) *Scheduler {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = def.PruneInterval
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	return &Scheduler{
		sender: sender,
		store:  store,
		ids:    ids,
		cfg:    cfg,
		log:    log.With().Str("component", "scheduler").Logger(),
		Clock:  time.Now,
		jobs:   make(map[int64]*entry),
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start restores pending jobs from the store and begins dispatching.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}
	if s.started {
		return nil
	}

	restored, err := s.restoreLocked(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("could not restore pending jobs, starting empty")
	}

	poolCtx, cancel := context.WithCancel(context.Background())
	s.poolCancel = cancel
	s.workers = pool.New[*domain.ScheduledJob](s.cfg.Workers, &sendWorker{s: s}).
		WithBatchSize(1).
		WithWorkerChanSize(s.cfg.Workers).
		WithContinueOnError()
	if err := s.workers.Go(poolCtx); err != nil {
		cancel()
		return fmt.Errorf("start send workers: %w", err)
	}

	s.started = true
	go s.run()

	s.log.Info().
		Int("workers", s.cfg.Workers).
		Int("restored", restored).
		Msg("scheduler started")
	return nil
}

func (s *Scheduler) restoreLocked(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	stored, err := s.store.LoadPending(ctx)
	if err != nil {
		return 0, err
	}
	// seq follows the original registration order
	sort.Slice(stored, func(i, j int) bool { return stored[i].ID < stored[j].ID })

	n := 0
	for _, sj := range stored {
		if _, exists := s.jobs[sj.ID]; exists {
			continue
		}
		job := domain.NewScheduledJob(sj.ID, sj.Payload, sj.FireAt, sj.CreatedAt)
		s.pushLocked(job)
		n++
	}
	return n, nil
}

// Schedule registers a send for fireAt and returns without waiting for it.
// A fireAt in the past fires on the next dispatcher pass.
func (s *Scheduler) Schedule(ctx context.Context, payload domain.SendRequest, fireAt time.Time) (*domain.ScheduledJob, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrSchedulerStopped
	}
	job := domain.NewScheduledJob(s.ids.Next(), payload, fireAt, s.Clock())
	s.mu.Unlock()

	if s.store != nil {
		err := s.store.Save(ctx, out.StoredJob{
			ID:        job.ID,
			Payload:   job.Payload,
			FireAt:    job.FireAt,
			CreatedAt: job.CreatedAt,
		})
		if err != nil {
			// the job still runs from memory
			s.log.Warn().Err(err).Int64("job_id", job.ID).Msg("failed to persist scheduled job")
		}
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.forget(ctx, job.ID)
		return nil, ErrSchedulerStopped
	}
	s.pushLocked(job)
	s.mu.Unlock()
	s.signal()

	s.log.Info().
		Int64("job_id", job.ID).
		Str("to", payload.To).
		Time("fire_at", fireAt).
		Msg("send scheduled")
	return job, nil
}

func (s *Scheduler) pushLocked(job *domain.ScheduledJob) {
	s.seq++
	job.Seq = s.seq
	e := &entry{job: job}
	heap.Push(&s.timeline, e)
	s.jobs[job.ID] = e
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Get returns a job by id.
func (s *Scheduler) Get(id int64) (*domain.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return e.job, nil
}

// List returns every known job ordered by fire-time.
func (s *Scheduler) List() []*domain.ScheduledJob {
	s.mu.Lock()
	jobs := make([]*domain.ScheduledJob, 0, len(s.jobs))
	for _, e := range s.jobs {
		jobs = append(jobs, e.job)
	}
	s.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].FireAt.Equal(jobs[j].FireAt) {
			return jobs[i].Seq < jobs[j].Seq
		}
		return jobs[i].FireAt.Before(jobs[j].FireAt)
	})
	return jobs
}

// Cancel moves a pending job to cancelled. It loses to a concurrent fire.
func (s *Scheduler) Cancel(ctx context.Context, id int64) (*domain.ScheduledJob, error) {
	s.mu.Lock()
	e, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrJobNotFound
	}
	if !e.job.Cancel(s.Clock()) {
		s.mu.Unlock()
		return nil, ErrJobNotPending
	}
	if e.index >= 0 {
		heap.Remove(&s.timeline, e.index)
	}
	s.mu.Unlock()
	s.signal()

	s.forget(ctx, id)
	s.log.Info().Int64("job_id", id).Msg("scheduled send cancelled")
	return e.job, nil
}

// Counts returns the number of known jobs per state.
func (s *Scheduler) Counts() map[domain.JobState]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.JobState]int)
	for _, e := range s.jobs {
		counts[e.job.State()]++
	}
	return counts
}

// Stop ends dispatching and waits for in-flight sends. Jobs still pending
// stay in the store, if any, for the next Start.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.started
	pending := s.timeline.Len()
	s.mu.Unlock()

	close(s.quit)
	if !started {
		return nil
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		s.poolCancel()
		s.log.Warn().Int("pending", pending).Msg("scheduler stop timed out, in-flight sends cancelled")
		return ctx.Err()
	}

	err := s.workers.Close(ctx)
	s.poolCancel()

	s.log.Info().Int("pending", pending).Msg("scheduler stopped")
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("drain send workers: %w", err)
	}
	return nil
}

func (s *Scheduler) run() {
	defer close(s.done)

	timer := time.NewTimer(s.cfg.PruneInterval)
	defer timer.Stop()
	lastPrune := s.Clock()

	for {
		due, wait := s.popDue()
		for _, job := range due {
			s.fire(job)
		}

		if now := s.Clock(); now.Sub(lastPrune) >= s.cfg.PruneInterval {
			s.prune(now)
			lastPrune = now
		}

		if wait < 0 || wait > s.cfg.PruneInterval {
			wait = s.cfg.PruneInterval
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-s.quit:
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// popDue removes every job whose fire-time has passed and reports how
// long until the next one, or -1 if the timeline is empty.
func (s *Scheduler) popDue() ([]*domain.ScheduledJob, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Clock()
	var due []*domain.ScheduledJob
	for {
		head := s.timeline.peek()
		if head == nil {
			return due, -1
		}
		if head.job.FireAt.After(now) {
			return due, head.job.FireAt.Sub(now)
		}
		heap.Pop(&s.timeline)
		due = append(due, head.job)
	}
}

func (s *Scheduler) fire(job *domain.ScheduledJob) {
	if !job.Fire(s.Clock()) {
		return
	}
	// off the store before the send: a crash now loses the job, it never sends twice
	s.forget(context.Background(), job.ID)
	s.workers.Submit(job)
}

func (s *Scheduler) forget(ctx context.Context, id int64) {
	if s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, id); err != nil {
		s.log.Warn().Err(err).Int64("job_id", id).Msg("failed to remove job from store")
	}
}

func (s *Scheduler) prune(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.jobs {
		if !e.job.State().IsTerminal() {
			continue
		}
		if now.Sub(e.job.FinishedAt()) >= s.cfg.Retention {
			delete(s.jobs, id)
		}
	}
}

// sendWorker implements pool.Worker for fired jobs.
type sendWorker struct {
	s *Scheduler
}

// Do makes the single send attempt for a fired job. Failures and panics
// end in the failed state and are never returned to the pool.
func (w *sendWorker) Do(ctx context.Context, job *domain.ScheduledJob) error {
	s := w.s
	log := s.log.With().Int64("job_id", job.ID).Str("to", job.Payload.To).Logger()

	defer func() {
		if r := recover(); r != nil {
			job.MarkFailed(fmt.Errorf("panic during send: %v", r), s.Clock())
			log.Error().Interface("panic", r).Msg("scheduled send panicked")
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()

	start := s.Clock()
	res, err := s.sender.Send(sendCtx, job.Payload)
	if err != nil {
		job.MarkFailed(err, s.Clock())
		log.Error().Err(err).Msg("scheduled send failed")
		return nil
	}

	var messageID string
	if res != nil {
		messageID = res.ID
	}
	job.MarkSent(messageID, s.Clock())
	log.Info().
		Str("message_id", messageID).
		Dur("latency", s.Clock().Sub(start)).
		Msg("scheduled email sent")
	return nil
}

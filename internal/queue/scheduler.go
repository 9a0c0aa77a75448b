package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/reelwatch/orchestrator/internal/domain"
)

// Scheduler enqueues recurring Refresh jobs (RSS/search cadence polling)
// on a fixed interval, independent of the on-demand jobs a user action
// enqueues directly through Processor.Enqueue.
type Scheduler struct {
	proc  *Processor
	sched gocron.Scheduler
	log   zerolog.Logger
}

// NewScheduler builds a Scheduler backed by gocron. Callers add cadences
// with AddRefreshCadence before calling Start.
func NewScheduler(proc *Processor, log zerolog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("queue: create scheduler: %w", err)
	}
	return &Scheduler{proc: proc, sched: s, log: log}, nil
}

// AddRefreshCadence registers a recurring Refresh job under dedupKey,
// fired every interval. Re-registering the same dedupKey replaces the
// prior job in the queue rather than accumulating duplicates, since
// Enqueue is idempotent by dedup key.
func (s *Scheduler) AddRefreshCadence(dedupKey string, interval time.Duration, payload []byte) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := s.proc.Enqueue(ctx, domain.JobRefresh, dedupKey, payload, time.Now()); err != nil {
				s.log.Error().Err(err).Str("dedup_key", dedupKey).Msg("failed to enqueue refresh job")
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("queue: register cadence %q: %w", dedupKey, err)
	}
	return nil
}

// AddPeriodicTask registers a recurring function unrelated to job
// enqueueing, e.g. a reconciliation sweep that repairs state a
// handler's own self-chaining may have dropped after a crash.
func (s *Scheduler) AddPeriodicTask(name string, interval time.Duration, fn func(ctx context.Context)) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			fn(ctx)
		}),
	)
	if err != nil {
		return fmt.Errorf("queue: register periodic task %q: %w", name, err)
	}
	return nil
}

// Start begins firing registered cadences. Non-blocking; call Shutdown
// to stop.
func (s *Scheduler) Start() {
	s.sched.Start()
}

// Shutdown stops the scheduler and waits for in-flight task functions
// to return.
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

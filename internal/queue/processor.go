// Package queue implements a durable, fair, concurrency-bounded queue
// processor: workers lease jobs from a persisted store, execute a
// per-kind handler, and transition the job on success, transient
// failure (retry with backoff), or permanent failure (abandon).
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reelwatch/orchestrator/internal/domain"
	"github.com/reelwatch/orchestrator/internal/domain/ports"
	"github.com/reelwatch/orchestrator/internal/metrics"
)

// Handler executes one job's work. It must classify every error it
// returns via domain.Classify so the processor can decide retry vs
// abandon.
type Handler func(ctx context.Context, job domain.QueueJob) error

// Concurrency is the per-kind worker pool size: no single job kind may
// hold more than its configured concurrency cap.
type Concurrency map[domain.JobKind]int

// defaultLeaseDuration is how long a worker holds a job before the reaper
// considers it abandoned-by-crash and returns it to Pending.
const defaultLeaseDuration = 5 * time.Minute

// Processor drives the queue: leasing, handler dispatch, backoff,
// reaping, and terminal-job compaction.
type Processor struct {
	repo        ports.QueueRepository
	backoffs    map[domain.JobKind]BackoffPolicy
	concurrency Concurrency
	handlers    map[domain.JobKind]Handler
	leaseFor    time.Duration
	retention   time.Duration
	holderID    string
	log         zerolog.Logger
}

type Option func(*Processor)

func WithBackoffPolicies(p map[domain.JobKind]BackoffPolicy) Option {
	return func(pr *Processor) { pr.backoffs = p }
}

func WithLeaseDuration(d time.Duration) Option {
	return func(pr *Processor) { pr.leaseFor = d }
}

func WithRetention(d time.Duration) Option {
	return func(pr *Processor) { pr.retention = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(pr *Processor) { pr.log = l }
}

func New(repo ports.QueueRepository, concurrency Concurrency, opts ...Option) *Processor {
	p := &Processor{
		repo:        repo,
		backoffs:    DefaultBackoffPolicies(),
		concurrency: concurrency,
		handlers:    make(map[domain.JobKind]Handler),
		leaseFor:    defaultLeaseDuration,
		retention:   7 * 24 * time.Hour,
		holderID:    uuid.NewString(),
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RegisterHandler installs the handler for a job kind. Must be called
// before Run.
func (p *Processor) RegisterHandler(kind domain.JobKind, h Handler) {
	p.handlers[kind] = h
}

// Enqueue schedules a job, idempotent under dedupKey: re-enqueuing the
// same dedupKey with a different payload replaces the pending job's
// payload rather than creating a duplicate.
func (p *Processor) Enqueue(ctx context.Context, kind domain.JobKind, dedupKey string, payload []byte, runAt time.Time) (domain.QueueJob, error) {
	now := time.Now()
	job := domain.QueueJob{
		ID:        uuid.NewString(),
		Kind:      kind,
		DedupKey:  dedupKey,
		Payload:   payload,
		NextRun:   runAt,
		State:     domain.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	enqueued, err := p.repo.Enqueue(ctx, job)
	if err == nil {
		metrics.QueueJobsEnqueuedTotal.WithLabelValues(string(kind)).Inc()
	}
	return enqueued, err
}

// Run blocks until ctx is cancelled, running one worker goroutine per
// concurrency slot per registered kind, plus a lease reaper and a
// terminal-job compaction loop.
func (p *Processor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for kind, handler := range p.handlers {
		cap := p.concurrency[kind]
		if cap <= 0 {
			cap = 1
		}
		for i := 0; i < cap; i++ {
			wg.Add(1)
			go func(kind domain.JobKind, handler Handler) {
				defer wg.Done()
				p.workerLoop(ctx, kind, handler)
			}(kind, handler)
		}
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.reapLoop(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.compactionLoop(ctx)
	}()
	wg.Wait()
	return ctx.Err()
}

func (p *Processor) workerLoop(ctx context.Context, kind domain.JobKind, handler Handler) {
	idle := 250 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		job, err := p.repo.Lease(ctx, []domain.JobKind{kind}, time.Now(), p.holderID, p.leaseFor)
		if err != nil {
			p.log.Error().Err(err).Str("kind", string(kind)).Msg("lease attempt failed")
			select {
			case <-time.After(idle):
			case <-ctx.Done():
				return
			}
			continue
		}
		if job == nil {
			select {
			case <-time.After(idle):
			case <-ctx.Done():
				return
			}
			continue
		}
		p.execute(ctx, *job, handler)
	}
}

func (p *Processor) execute(ctx context.Context, job domain.QueueJob, handler Handler) {
	log := p.log.With().Str("job_id", job.ID).Str("kind", string(job.Kind)).Int("attempt", job.Attempt).Logger()

	kind := string(job.Kind)
	metrics.QueueJobsInFlight.WithLabelValues(kind).Inc()
	defer metrics.QueueJobsInFlight.WithLabelValues(kind).Dec()
	started := time.Now()
	err := handler(ctx, job)
	metrics.QueueJobDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())

	if err == nil {
		if cErr := p.repo.Complete(ctx, job.ID, p.holderID); cErr != nil {
			log.Error().Err(cErr).Msg("failed to mark job succeeded")
			return
		}
		metrics.QueueJobsCompletedTotal.WithLabelValues(kind, "succeeded").Inc()
		return
	}

	policy := p.backoffs[job.Kind]
	nextAttempt := job.Attempt + 1

	if domain.IsPermanent(err) || (!domain.IsTransient(err) && !domain.IsPermanent(err)) {
		// Unclassified errors are treated as permanent: we do not guess
		// that an unknown error is safe to retry indefinitely.
		if rErr := p.repo.Abandon(ctx, job.ID, p.holderID, err.Error()); rErr != nil {
			log.Error().Err(rErr).Msg("failed to mark job abandoned")
		}
		metrics.QueueJobsCompletedTotal.WithLabelValues(kind, "abandoned").Inc()
		log.Warn().Err(err).Msg("job abandoned: permanent failure")
		return
	}

	if policy.Exhausted(nextAttempt) {
		if rErr := p.repo.Abandon(ctx, job.ID, p.holderID, err.Error()); rErr != nil {
			log.Error().Err(rErr).Msg("failed to mark job abandoned")
		}
		metrics.QueueJobsCompletedTotal.WithLabelValues(kind, "abandoned").Inc()
		log.Warn().Err(err).Msg("job abandoned: max attempts exhausted")
		return
	}

	delay := policy.NextDelay(nextAttempt)
	nextRun := time.Now().Add(delay)
	if rErr := p.repo.Retry(ctx, job.ID, p.holderID, nextRun, nextAttempt, err.Error()); rErr != nil {
		log.Error().Err(rErr).Msg("failed to schedule retry")
	}
	log.Info().Err(err).Dur("delay", delay).Msg("job scheduled for retry")
}

func (p *Processor) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(p.leaseFor / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.repo.ReapExpired(ctx, time.Now())
			if err != nil {
				p.log.Error().Err(err).Msg("reap expired leases failed")
				continue
			}
			if n > 0 {
				p.log.Info().Int("count", n).Msg("reaped expired leases")
			}
		}
	}
}

func (p *Processor) compactionLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-p.retention)
			n, err := p.repo.PruneTerminal(ctx, cutoff)
			if err != nil {
				p.log.Error().Err(err).Msg("terminal job compaction failed")
				continue
			}
			if n > 0 {
				p.log.Info().Int("count", n).Msg("pruned terminal jobs")
			}
		}
	}
}

// ErrNoHandler is returned when a job kind has no registered handler.
func ErrNoHandler(kind domain.JobKind) error {
	return fmt.Errorf("queue: no handler registered for kind %q", kind)
}

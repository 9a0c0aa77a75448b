package queue

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelwatch/orchestrator/internal/domain"
)

// fakeQueueRepo is a minimal in-memory stand-in for
// ports.QueueRepository, enough to drive Processor's state machine in
// tests without a live Mongo instance.
type fakeQueueRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.QueueJob
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{jobs: make(map[string]*domain.QueueJob)}
}

func (f *fakeQueueRepo) Enqueue(ctx context.Context, job domain.QueueJob) (domain.QueueJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.jobs {
		if existing.DedupKey == job.DedupKey && existing.State == domain.JobPending {
			existing.Payload = job.Payload
			existing.NextRun = job.NextRun
			return *existing, nil
		}
	}
	f.jobs[job.ID] = &job
	return job, nil
}

func (f *fakeQueueRepo) Lease(ctx context.Context, kinds []domain.JobKind, now time.Time, holder string, leaseDuration time.Duration) (*domain.QueueJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	kindSet := make(map[domain.JobKind]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}

	var candidates []*domain.QueueJob
	for _, j := range f.jobs {
		if !kindSet[j.Kind] {
			continue
		}
		if j.State != domain.JobPending {
			continue
		}
		if j.NextRun.After(now) {
			continue
		}
		candidates = append(candidates, j)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, k int) bool { return candidates[i].NextRun.Before(candidates[k].NextRun) })
	picked := candidates[0]
	picked.State = domain.JobRunning
	picked.Lease = &domain.Lease{Holder: holder, Deadline: now.Add(leaseDuration)}
	cp := *picked
	return &cp, nil
}

func (f *fakeQueueRepo) Complete(ctx context.Context, id string, holder string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.State = domain.JobSucceeded
	j.Lease = nil
	return nil
}

func (f *fakeQueueRepo) Retry(ctx context.Context, id string, holder string, nextRun time.Time, attempt int, lastErr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.State = domain.JobPending
	j.NextRun = nextRun
	j.Attempt = attempt
	j.LastError = lastErr
	j.Lease = nil
	return nil
}

func (f *fakeQueueRepo) Abandon(ctx context.Context, id string, holder string, lastErr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.State = domain.JobAbandoned
	j.LastError = lastErr
	j.Lease = nil
	return nil
}

func (f *fakeQueueRepo) ReapExpired(ctx context.Context, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, j := range f.jobs {
		if j.State == domain.JobRunning && j.Lease != nil && !j.Lease.Active(now) {
			j.State = domain.JobPending
			j.Lease = nil
			n++
		}
	}
	return n, nil
}

func (f *fakeQueueRepo) CountRunning(ctx context.Context, kind domain.JobKind) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, j := range f.jobs {
		if j.Kind == kind && j.State == domain.JobRunning {
			n++
		}
	}
	return n, nil
}

func (f *fakeQueueRepo) PruneTerminal(ctx context.Context, olderThan time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, j := range f.jobs {
		terminal := j.State == domain.JobSucceeded || j.State == domain.JobAbandoned
		if terminal && j.UpdatedAt.Before(olderThan) {
			delete(f.jobs, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeQueueRepo) get(id string) domain.QueueJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.jobs[id]
}

func TestProcessor_HandlerSuccess_MarksSucceeded(t *testing.T) {
	repo := newFakeQueueRepo()
	proc := New(repo, Concurrency{domain.JobSearch: 1}, WithLeaseDuration(time.Minute))

	var called int32
	proc.RegisterHandler(domain.JobSearch, func(ctx context.Context, job domain.QueueJob) error {
		called++
		return nil
	})

	job, err := proc.Enqueue(context.Background(), domain.JobSearch, "movie-1", nil, time.Now())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go proc.Run(ctx)

	require.Eventually(t, func() bool {
		return repo.get(job.ID).State == domain.JobSucceeded
	}, time.Second, 10*time.Millisecond)
}

func TestProcessor_TransientFailure_Retries(t *testing.T) {
	repo := newFakeQueueRepo()
	proc := New(repo, Concurrency{domain.JobSearch: 1},
		WithLeaseDuration(time.Minute),
		WithBackoffPolicies(map[domain.JobKind]BackoffPolicy{
			domain.JobSearch: {Base: time.Millisecond, Cap: 10 * time.Millisecond, MaxAttempts: 5},
		}),
	)

	proc.RegisterHandler(domain.JobSearch, func(ctx context.Context, job domain.QueueJob) error {
		if job.Attempt == 0 {
			return domain.Classify(domain.Transient, assertErr)
		}
		return nil
	})

	job, err := proc.Enqueue(context.Background(), domain.JobSearch, "movie-1", nil, time.Now())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go proc.Run(ctx)

	require.Eventually(t, func() bool {
		return repo.get(job.ID).State == domain.JobSucceeded
	}, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, repo.get(job.ID).Attempt, 1)
}

func TestProcessor_PermanentFailure_Abandons(t *testing.T) {
	repo := newFakeQueueRepo()
	proc := New(repo, Concurrency{domain.JobSearch: 1}, WithLeaseDuration(time.Minute))

	proc.RegisterHandler(domain.JobSearch, func(ctx context.Context, job domain.QueueJob) error {
		return domain.Classify(domain.Validation, assertErr)
	})

	job, err := proc.Enqueue(context.Background(), domain.JobSearch, "movie-1", nil, time.Now())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go proc.Run(ctx)

	require.Eventually(t, func() bool {
		return repo.get(job.ID).State == domain.JobAbandoned
	}, time.Second, 10*time.Millisecond)
}

func TestProcessor_ExhaustedRetries_Abandons(t *testing.T) {
	repo := newFakeQueueRepo()
	proc := New(repo, Concurrency{domain.JobSearch: 1},
		WithLeaseDuration(time.Minute),
		WithBackoffPolicies(map[domain.JobKind]BackoffPolicy{
			domain.JobSearch: {Base: time.Millisecond, Cap: 2 * time.Millisecond, MaxAttempts: 2},
		}),
	)

	proc.RegisterHandler(domain.JobSearch, func(ctx context.Context, job domain.QueueJob) error {
		return domain.Classify(domain.Transient, assertErr)
	})

	job, err := proc.Enqueue(context.Background(), domain.JobSearch, "movie-1", nil, time.Now())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go proc.Run(ctx)

	require.Eventually(t, func() bool {
		return repo.get(job.ID).State == domain.JobAbandoned
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProcessor_EnqueueDedup_ReplacesPendingPayload(t *testing.T) {
	repo := newFakeQueueRepo()
	proc := New(repo, Concurrency{domain.JobRefresh: 1})

	first, err := proc.Enqueue(context.Background(), domain.JobRefresh, "catalog-refresh", []byte("v1"), time.Now())
	require.NoError(t, err)
	second, err := proc.Enqueue(context.Background(), domain.JobRefresh, "catalog-refresh", []byte("v2"), time.Now())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, []byte("v2"), repo.get(first.ID).Payload)
}

var assertErr = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

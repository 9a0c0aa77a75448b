package download

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelwatch/orchestrator/internal/domain"
	"github.com/reelwatch/orchestrator/internal/domain/ports"
	"github.com/reelwatch/orchestrator/internal/eventbus"
	"github.com/reelwatch/orchestrator/internal/queue"
)

type fakeClient struct {
	mu        sync.Mutex
	added     []string
	torrents  []ports.ExternalTorrent
	addErr    error
	listErr   error
	removeErr error
	removed   []string
}

func (f *fakeClient) Add(ctx context.Context, uri string, opts ports.AddOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return "", f.addErr
	}
	id := "ext-" + uri
	f.added = append(f.added, id)
	return id, nil
}

func (f *fakeClient) List(ctx context.Context, category string) ([]ports.ExternalTorrent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.torrents, nil
}

func (f *fakeClient) Remove(ctx context.Context, externalID string, deleteFiles bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, externalID)
	return nil
}

type fakeHandleRepo struct {
	mu      sync.Mutex
	handles map[string]domain.DownloadHandle
}

func newFakeHandleRepo() *fakeHandleRepo {
	return &fakeHandleRepo{handles: map[string]domain.DownloadHandle{}}
}

func (f *fakeHandleRepo) Create(ctx context.Context, h domain.DownloadHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handles[h.ID] = h
	return nil
}

func (f *fakeHandleRepo) Get(ctx context.Context, id string) (domain.DownloadHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.handles[id]
	if !ok {
		return domain.DownloadHandle{}, domain.Classify(domain.NotFound, domain.ErrNotFound)
	}
	return h, nil
}

func (f *fakeHandleRepo) GetActiveForMovie(ctx context.Context, movieID string) (*domain.DownloadHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.handles {
		if h.MovieID == movieID && !h.State.Terminal() {
			cp := h
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeHandleRepo) Update(ctx context.Context, h domain.DownloadHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handles[h.ID] = h
	return nil
}

func (f *fakeHandleRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handles, id)
	return nil
}

type fakeBlocklistRepo struct {
	mu      sync.Mutex
	entries []domain.BlocklistEntry
}

func (f *fakeBlocklistRepo) Add(ctx context.Context, entry domain.BlocklistEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}
func (f *fakeBlocklistRepo) IsBlocked(ctx context.Context, fingerprint string, now time.Time) (bool, error) {
	return false, nil
}
func (f *fakeBlocklistRepo) ListActive(ctx context.Context, now time.Time) ([]domain.BlocklistEntry, error) {
	return f.entries, nil
}
func (f *fakeBlocklistRepo) PruneExpired(ctx context.Context, now time.Time) (int, error) { return 0, nil }
func (f *fakeBlocklistRepo) Remove(ctx context.Context, fingerprint string) error         { return nil }

type fakeQueueRepo struct {
	mu   sync.Mutex
	jobs []domain.QueueJob
}

func (f *fakeQueueRepo) Enqueue(ctx context.Context, job domain.QueueJob) (domain.QueueJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.jobs {
		if existing.DedupKey == job.DedupKey && existing.State == domain.JobPending {
			f.jobs[i].Payload = job.Payload
			f.jobs[i].NextRun = job.NextRun
			return f.jobs[i], nil
		}
	}
	job.State = domain.JobPending
	f.jobs = append(f.jobs, job)
	return job, nil
}
func (f *fakeQueueRepo) Lease(ctx context.Context, kinds []domain.JobKind, now time.Time, holder string, leaseDuration time.Duration) (*domain.QueueJob, error) {
	return nil, nil
}
func (f *fakeQueueRepo) Complete(ctx context.Context, id string, holder string) error { return nil }
func (f *fakeQueueRepo) Retry(ctx context.Context, id string, holder string, nextRun time.Time, attempt int, lastErr string) error {
	return nil
}
func (f *fakeQueueRepo) Abandon(ctx context.Context, id string, holder string, lastErr string) error {
	return nil
}
func (f *fakeQueueRepo) ReapExpired(ctx context.Context, now time.Time) (int, error) { return 0, nil }
func (f *fakeQueueRepo) CountRunning(ctx context.Context, kind domain.JobKind) (int, error) {
	return 0, nil
}
func (f *fakeQueueRepo) PruneTerminal(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}

func (f *fakeQueueRepo) findByDedup(dedupKey string) (domain.QueueJob, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.DedupKey == dedupKey {
			return j, true
		}
	}
	return domain.QueueJob{}, false
}

func newTestSupervisor() (*Supervisor, *fakeClient, *fakeHandleRepo, *fakeBlocklistRepo, *fakeQueueRepo) {
	client := &fakeClient{}
	handles := newFakeHandleRepo()
	blocklist := &fakeBlocklistRepo{}
	qrepo := &fakeQueueRepo{}
	bus := eventbus.New()
	proc := queue.New(qrepo, queue.Concurrency{})
	sup := New(client, handles, blocklist, bus, proc)
	return sup, client, handles, blocklist, qrepo
}

func TestSubmit_CreatesHandleAndSchedulesPoll(t *testing.T) {
	sup, client, handles, _, qrepo := newTestSupervisor()
	candidate := domain.ReleaseCandidate{InfoHash: "hash1", Title: "x", DownloadURI: "magnet:1"}

	handle, err := sup.Submit(context.Background(), "movie-1", candidate)
	require.NoError(t, err)
	assert.Equal(t, domain.DownloadQueued, handle.State)
	assert.Len(t, client.added, 1)

	stored, err := handles.Get(context.Background(), handle.ID)
	require.NoError(t, err)
	assert.Equal(t, "movie-1", stored.MovieID)

	_, found := qrepo.findByDedup("poll:" + handle.ID)
	assert.True(t, found)
}

func TestSubmit_RejectsSecondDownloadForSameMovie(t *testing.T) {
	sup, _, _, _, _ := newTestSupervisor()
	candidate := domain.ReleaseCandidate{InfoHash: "hash1", Title: "x", DownloadURI: "magnet:1"}

	_, err := sup.Submit(context.Background(), "movie-1", candidate)
	require.NoError(t, err)

	_, err = sup.Submit(context.Background(), "movie-1", candidate)
	require.Error(t, err)
	assert.Equal(t, domain.Conflict, domain.ClassOf(err))
}

func TestHandlePoll_CompletedEnqueuesImport(t *testing.T) {
	sup, client, handles, _, qrepo := newTestSupervisor()
	candidate := domain.ReleaseCandidate{InfoHash: "hash1", Title: "x", DownloadURI: "magnet:1"}
	handle, err := sup.Submit(context.Background(), "movie-1", candidate)
	require.NoError(t, err)

	client.torrents = []ports.ExternalTorrent{
		{ExternalID: handle.ExternalID, State: ports.ExternalCompleted, Progress: 1, SavePath: "/data/x", Files: []string{"x.mkv"}},
	}

	payload, _ := json.Marshal(pollPayload{HandleID: handle.ID})
	job := domain.QueueJob{Payload: payload}
	require.NoError(t, sup.handlePoll(context.Background(), job))

	stored, err := handles.Get(context.Background(), handle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DownloadCompleted, stored.State)

	_, found := qrepo.findByDedup("import:" + handle.ID)
	assert.True(t, found)
}

func TestHandlePoll_ErrorBlocklistsAndRequeuesSearch(t *testing.T) {
	sup, client, handles, blocklist, qrepo := newTestSupervisor()
	candidate := domain.ReleaseCandidate{InfoHash: "hash1", Title: "x", DownloadURI: "magnet:1"}
	handle, err := sup.Submit(context.Background(), "movie-1", candidate)
	require.NoError(t, err)

	client.torrents = []ports.ExternalTorrent{
		{ExternalID: handle.ExternalID, State: ports.ExternalError, Progress: 0.1},
	}

	payload, _ := json.Marshal(pollPayload{HandleID: handle.ID})
	job := domain.QueueJob{Payload: payload}
	require.NoError(t, sup.handlePoll(context.Background(), job))

	stored, err := handles.Get(context.Background(), handle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DownloadError, stored.State)

	assert.Len(t, blocklist.entries, 1)
	assert.Equal(t, "hash1", blocklist.entries[0].Fingerprint)

	_, found := qrepo.findByDedup("search:movie-1")
	assert.True(t, found)
}

func TestHandlePoll_StillDownloadingReschedulesWithAcceleratedCadence(t *testing.T) {
	sup, client, handles, _, qrepo := newTestSupervisor()
	candidate := domain.ReleaseCandidate{InfoHash: "hash1", Title: "x", DownloadURI: "magnet:1"}
	handle, err := sup.Submit(context.Background(), "movie-1", candidate)
	require.NoError(t, err)

	client.torrents = []ports.ExternalTorrent{
		{ExternalID: handle.ExternalID, State: ports.ExternalDownloading, Progress: 0.95},
	}

	payload, _ := json.Marshal(pollPayload{HandleID: handle.ID})
	job := domain.QueueJob{Payload: payload}
	require.NoError(t, sup.handlePoll(context.Background(), job))

	stored, err := handles.Get(context.Background(), handle.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.95, stored.Progress, 0.0001)

	next, found := qrepo.findByDedup("poll:" + handle.ID)
	require.True(t, found)
	assert.WithinDuration(t, time.Now().Add(acceleratedPollInterval), next.NextRun, time.Second)
}

func TestHandlePoll_MissingFromClientTriggersFailure(t *testing.T) {
	sup, _, handles, blocklist, _ := newTestSupervisor()
	candidate := domain.ReleaseCandidate{InfoHash: "hash1", Title: "x", DownloadURI: "magnet:1"}
	handle, err := sup.Submit(context.Background(), "movie-1", candidate)
	require.NoError(t, err)

	payload, _ := json.Marshal(pollPayload{HandleID: handle.ID})
	job := domain.QueueJob{Payload: payload}
	require.NoError(t, sup.handlePoll(context.Background(), job))

	stored, err := handles.Get(context.Background(), handle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DownloadMissing, stored.State)
	assert.Len(t, blocklist.entries, 1)
}

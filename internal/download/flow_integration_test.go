package download

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelwatch/orchestrator/internal/domain"
	"github.com/reelwatch/orchestrator/internal/domain/ports"
	"github.com/reelwatch/orchestrator/internal/eventbus"
	"github.com/reelwatch/orchestrator/internal/importpipeline"
)

type flowMovieRepo struct {
	movies map[string]domain.Movie
}

func newFlowMovieRepo(m domain.Movie) *flowMovieRepo {
	return &flowMovieRepo{movies: map[string]domain.Movie{m.ID: m}}
}

func (r *flowMovieRepo) Create(ctx context.Context, m domain.Movie) error {
	r.movies[m.ID] = m
	return nil
}

func (r *flowMovieRepo) Get(ctx context.Context, id string) (domain.Movie, error) {
	m, ok := r.movies[id]
	if !ok {
		return domain.Movie{}, domain.Classify(domain.NotFound, domain.ErrNotFound)
	}
	return m, nil
}

func (r *flowMovieRepo) Update(ctx context.Context, m domain.Movie) error {
	r.movies[m.ID] = m
	return nil
}

func (r *flowMovieRepo) ListByStatus(ctx context.Context, status domain.MovieStatus) ([]domain.Movie, error) {
	return nil, nil
}

func (r *flowMovieRepo) ListMonitored(ctx context.Context) ([]domain.Movie, error) { return nil, nil }

type flowHistoryRepo struct {
	records []domain.HistoryRecord
}

func (r *flowHistoryRepo) Append(ctx context.Context, rec domain.HistoryRecord) error {
	r.records = append(r.records, rec)
	return nil
}

func (r *flowHistoryRepo) ListForMovie(ctx context.Context, movieID string) ([]domain.HistoryRecord, error) {
	var out []domain.HistoryRecord
	for _, rec := range r.records {
		if rec.MovieID == movieID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func writeFlowPayload(t *testing.T, dir string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	videoPath := filepath.Join(dir, "Heat.1995.1080p.BluRay.x264-GROUP.mkv")
	require.NoError(t, os.WriteFile(videoPath, []byte("movie-bytes-go-here"), 0o644))
	subPath := filepath.Join(dir, "Heat.1995.1080p.BluRay.x264-GROUP.srt")
	require.NoError(t, os.WriteFile(subPath, []byte("1\n00:00:01,000 --> 00:00:02,000\nHi\n"), 0o644))
	return dir
}

// TestSubmitPollImport_FullChainMarksMovieAvailable drives one release
// candidate through Submit, a Completed poll, and the import job
// handler in the same order the queue processor would dispatch each
// job kind, without going through its own lease/execute loop: a
// selected release ends with the movie Available, its best file
// pointing at the library, and one history entry recorded.
func TestSubmitPollImport_FullChainMarksMovieAvailable(t *testing.T) {
	root := t.TempDir()
	payloadDir := writeFlowPayload(t, filepath.Join(root, "downloads", "Heat.1995.1080p.BluRay.x264-GROUP"))
	libraryRoot := filepath.Join(root, "library")

	movie := domain.Movie{
		ID:        "movie-1",
		CatalogID: "tmdb-949",
		Title:     "Heat",
		Year:      1995,
		ProfileID: "profile-1",
		Monitored: true,
		Status:    domain.MovieWanted,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	movies := newFlowMovieRepo(movie)
	history := &flowHistoryRepo{}

	sup, client, handles, _, _ := newTestSupervisor()

	bus := sup.bus
	sub := bus.Subscribe(eventbus.Filter{})
	defer sub.Close()

	candidate := domain.ReleaseCandidate{
		Title:       "Heat 1995 1080p BluRay x264-GROUP",
		SizeBytes:   8 * 1024 * 1024 * 1024,
		DownloadURI: "magnet:?xt=urn:btih:deadbeef",
		InfoHash:    "deadbeef",
	}

	handle, err := sup.Submit(context.Background(), movie.ID, candidate)
	require.NoError(t, err)
	assert.Equal(t, domain.DownloadQueued, handle.State)

	client.torrents = []ports.ExternalTorrent{
		{ExternalID: handle.ExternalID, State: ports.ExternalCompleted, Progress: 1, SavePath: payloadDir, Files: []string{"Heat.1995.1080p.BluRay.x264-GROUP.mkv"}},
	}
	pollPayloadBytes, err := json.Marshal(pollPayload{HandleID: handle.ID})
	require.NoError(t, err)
	require.NoError(t, sup.handlePoll(context.Background(), domain.QueueJob{Payload: pollPayloadBytes}))

	polled, err := handles.Get(context.Background(), handle.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DownloadCompleted, polled.State)
	require.Equal(t, payloadDir, polled.PayloadPath)

	pipeline := importpipeline.New(movies, handles, history, bus, libraryRoot)
	importPayloadBytes, err := json.Marshal(struct {
		HandleID string `json:"handle_id"`
	}{HandleID: handle.ID})
	require.NoError(t, err)
	require.NoError(t, pipeline.HandleJob(context.Background(), domain.QueueJob{Payload: importPayloadBytes}))

	updated, err := movies.Get(context.Background(), movie.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MovieAvailable, updated.Status)
	require.NotNil(t, updated.BestFile)
	assert.Equal(t, "deadbeef", updated.BestFile.Fingerprint)
	assert.FileExists(t, updated.BestFile.Path)

	_, err = handles.Get(context.Background(), handle.ID)
	assert.Error(t, err, "the import handler deletes the handle once its payload has landed in the library")

	require.Len(t, history.records, 1)
	assert.Equal(t, "imported", history.records[0].Event)
	assert.Equal(t, "deadbeef", history.records[0].Fingerprint)

	var sawDownloadStarted, sawImportStarted, sawImportCompleted bool
	for {
		select {
		case e := <-sub.Events():
			switch e.Kind {
			case domain.EventDownloadStarted:
				sawDownloadStarted = true
			case domain.EventImportStarted:
				sawImportStarted = true
			case domain.EventImportCompleted:
				sawImportCompleted = true
			}
			continue
		default:
		}
		break
	}
	assert.True(t, sawDownloadStarted, "expected Submit to publish DownloadStarted")
	assert.True(t, sawImportStarted, "expected the import handler to publish ImportStarted")
	assert.True(t, sawImportCompleted, "expected the import handler to publish ImportCompleted")
}

// TestSubmitPollImport_CopyStrategyRetainsSourcePayload covers the
// fallback branch a cross-device payload takes: Execute still lands the
// file in the library and leaves the original in place, rather than the
// hardlink/move path a same-device payload takes. ChooseStrategy itself
// picks the strategy from filesystem device numbers, which a temp-dir
// test can't reliably force apart, so this drives importpipeline.Plan
// and Execute directly with domain.StrategyCopy instead of relying on
// the real device-topology probe to disagree with its own test host.
func TestSubmitPollImport_CopyStrategyRetainsSourcePayload(t *testing.T) {
	root := t.TempDir()
	payloadDir := writeFlowPayload(t, filepath.Join(root, "downloads", "Heat.1995.1080p.BluRay.x264-GROUP"))
	libraryRoot := filepath.Join(root, "library")

	movie := domain.Movie{
		ID:        "movie-2",
		CatalogID: "tmdb-949",
		Title:     "Heat",
		Year:      1995,
		ProfileID: "profile-1",
		Status:    domain.MovieWanted,
	}

	analysis, err := importpipeline.Analyze(payloadDir, 0)
	require.NoError(t, err)

	item, err := importpipeline.Plan(libraryRoot, "", movie, analysis)
	require.NoError(t, err)
	item.Strategy = domain.StrategyCopy

	item, err = importpipeline.Execute(item)
	require.NoError(t, err)

	for _, mv := range item.Moves {
		assert.FileExists(t, mv.Source, "a copy strategy must retain the source file")
		assert.FileExists(t, mv.Destination)
	}
}

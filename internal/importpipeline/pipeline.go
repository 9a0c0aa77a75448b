package importpipeline

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reelwatch/orchestrator/internal/domain"
	"github.com/reelwatch/orchestrator/internal/domain/ports"
	"github.com/reelwatch/orchestrator/internal/eventbus"
	"github.com/reelwatch/orchestrator/internal/metrics"
	"github.com/reelwatch/orchestrator/internal/naming"
)

type jobPayload struct {
	HandleID string `json:"handle_id"`
}

// Pipeline wires the analyze/plan/strategy/execute/validate stages into
// a single Run per completed download, and exposes HandleJob as the
// queue processor's Import handler.
type Pipeline struct {
	movies    ports.MovieRepository
	downloads ports.DownloadRepository
	history   ports.HistoryRepository
	bus       *eventbus.Bus
	tx        ports.TxRunner
	libraryRoot    string
	template       string
	sampleMaxBytes int64
	log            zerolog.Logger
}

type Option func(*Pipeline)

func WithTemplate(template string) Option {
	return func(p *Pipeline) { p.template = template }
}

func WithSampleMaxBytes(n int64) Option {
	return func(p *Pipeline) { p.sampleMaxBytes = n }
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithTxRunner supplies the transaction runner the Record stage uses
// to commit the movie's best file, its history record, and the
// terminal download handle as a single atomic write. Without this
// option Run commits each write independently.
func WithTxRunner(tx ports.TxRunner) Option {
	return func(p *Pipeline) { p.tx = tx }
}

func New(movies ports.MovieRepository, downloads ports.DownloadRepository, history ports.HistoryRepository, bus *eventbus.Bus, libraryRoot string, opts ...Option) *Pipeline {
	p := &Pipeline{
		movies:      movies,
		downloads:   downloads,
		history:     history,
		bus:         bus,
		tx:          noopTxRunner{},
		libraryRoot: libraryRoot,
		template:    naming.DefaultTemplate,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// noopTxRunner runs fn against the caller's context directly, for
// callers (tests, in-memory fakes) that never supplied a real
// ports.TxRunner. It gives the Record stage the same code path either
// way, with no transactional guarantee when unset.
type noopTxRunner struct{}

func (noopTxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// HandleJob is the queue processor's Import job handler: it resolves
// the completed download handle to a movie and payload path and runs
// the import, which deletes the handle as part of the same Record
// transaction on success.
func (p *Pipeline) HandleJob(ctx context.Context, job domain.QueueJob) error {
	var payload jobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return domain.Classify(domain.Validation, err)
	}

	handle, err := p.downloads.Get(ctx, payload.HandleID)
	if err != nil {
		return err
	}
	movie, err := p.movies.Get(ctx, handle.MovieID)
	if err != nil {
		return err
	}

	return p.Run(ctx, movie, handle.PayloadPath, handle.Fingerprint, handle.ID)
}

// Run executes every stage for one completed payload, publishing
// ImportStarted/Completed/Failed. On success it commits the Record
// stage — the movie's best file, its history record, and (when
// handleID is set) deletion of the now-terminal download handle — as
// a single transaction via the configured ports.TxRunner.
func (p *Pipeline) Run(ctx context.Context, movie domain.Movie, payloadPath, fingerprint, handleID string) error {
	started := time.Now()
	defer func() { metrics.ImportDuration.Observe(time.Since(started).Seconds()) }()

	p.bus.Publish(domain.EventImportStarted, movie.ID, payloadPath)

	analysis, err := Analyze(payloadPath, p.sampleMaxBytes)
	if err != nil {
		return p.fail(movie.ID, "analyze", err)
	}

	item, err := Plan(p.libraryRoot, p.template, movie, analysis)
	if err != nil {
		return p.fail(movie.ID, "plan", err)
	}

	strategy, err := ChooseStrategy(item.Moves[0].Source, filepath.Dir(item.Moves[0].Destination))
	if err != nil {
		return p.fail(movie.ID, "strategy", err)
	}
	item.Strategy = strategy

	item, err = Execute(item)
	if err != nil {
		return p.fail(movie.ID, "execute", err)
	}

	item, err = Validate(item)
	if err != nil {
		return p.fail(movie.ID, "validate", err)
	}

	now := time.Now()
	movie.BestFile = &domain.BestFile{
		Path:        item.Moves[0].Destination,
		SizeBytes:   analysis.SizeBytes,
		Fingerprint: fingerprint,
		Quality:     analysis.Quality,
		ImportedAt:  now,
	}
	movie.Status = domain.MovieAvailable
	movie.UpdatedAt = now

	record := domain.HistoryRecord{
		ID:          uuid.NewString(),
		MovieID:     movie.ID,
		Fingerprint: fingerprint,
		Event:       "imported",
		Tier:        analysis.Quality.TierKey(),
		CreatedAt:   now,
	}

	err = p.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := p.movies.Update(txCtx, movie); err != nil {
			return err
		}
		if err := p.history.Append(txCtx, record); err != nil {
			return err
		}
		if handleID != "" {
			if err := p.downloads.Delete(txCtx, handleID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return p.fail(movie.ID, "record", err)
	}
	if handleID != "" {
		metrics.DownloadHandlesActive.Dec()
	}

	p.bus.Publish(domain.EventImportCompleted, movie.ID, domain.ImportCompletedPayload{
		MovieID:     movie.ID,
		Fingerprint: fingerprint,
		Path:        movie.BestFile.Path,
	})
	return nil
}

func (p *Pipeline) fail(movieID, stage string, err error) error {
	metrics.ImportFailuresTotal.WithLabelValues(stage).Inc()
	p.log.Error().Err(err).Str("movie_id", movieID).Str("stage", stage).Msg("import stage failed")
	p.bus.Publish(domain.EventImportFailed, movieID, domain.ImportFailedPayload{MovieID: movieID, Reason: err.Error()})
	return err
}

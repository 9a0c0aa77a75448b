// Package acquisition wires the automation core's per-movie job kinds
// together: Refresh re-enqueues Search on a cadence, Search fans a
// query out across indexers, and Evaluate runs the decision engine
// over the result and submits the winner to the download supervisor.
// None of the scoring logic lives here; this package only sequences
// calls into search.Coordinator, decision.Engine, and
// download.Supervisor and persists their outcome.
package acquisition

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelwatch/orchestrator/internal/decision"
	"github.com/reelwatch/orchestrator/internal/domain"
	"github.com/reelwatch/orchestrator/internal/domain/ports"
	"github.com/reelwatch/orchestrator/internal/download"
	"github.com/reelwatch/orchestrator/internal/eventbus"
	"github.com/reelwatch/orchestrator/internal/queue"
	"github.com/reelwatch/orchestrator/internal/search"
)

// CircuitBreaker is the subset of breaker.Breaker this package needs to
// guard a metadata adapter call without importing breaker directly into
// every Coordinator constructor caller's signature.
type CircuitBreaker interface {
	Call(ctx context.Context, fn func(ctx context.Context) error) error
}

const (
	defaultRefreshCadence = 15 * time.Minute
	defaultMinBytes       = 50 * 1024 * 1024        // 50MB: below this a release is almost certainly a sample/fake
	defaultMaxBytes       = 200 * 1024 * 1024 * 1024 // 200GB: generous upper sanity bound
)

type searchPayload struct {
	MovieID string `json:"movie_id"`
}

type evaluatePayload struct {
	MovieID    string                    `json:"movie_id"`
	Candidates []domain.ReleaseCandidate `json:"candidates"`
}

type refreshPayload struct {
	MovieID string `json:"movie_id"`
}

// Coordinator sequences the Refresh/Search/Evaluate job kinds.
type Coordinator struct {
	movies   ports.MovieRepository
	profiles ports.ProfileRepository
	releases ports.ReleaseRepository
	search   *search.Coordinator
	decide   *decision.Engine
	downloads *download.Supervisor
	bus      *eventbus.Bus
	proc     *queue.Processor

	metadata        ports.MetadataAdapter
	metadataBreaker CircuitBreaker

	refreshCadence time.Duration
	minBytes       int64
	maxBytes       int64
	log            zerolog.Logger
}

type Option func(*Coordinator)

func WithRefreshCadence(d time.Duration) Option {
	return func(c *Coordinator) { c.refreshCadence = d }
}

func WithSizeSanity(min, max int64) Option {
	return func(c *Coordinator) { c.minBytes, c.maxBytes = min, max }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithMetadataRefresh attaches a metadata collaborator (and the breaker
// guarding it) so each Refresh cycle also reconciles title/year against
// the upstream catalog. Omitting this option leaves metadata refresh
// disabled; handleRefresh only drives the search cadence in that case.
func WithMetadataRefresh(adapter ports.MetadataAdapter, cb CircuitBreaker) Option {
	return func(c *Coordinator) {
		c.metadata = adapter
		c.metadataBreaker = cb
	}
}

func New(
	movies ports.MovieRepository,
	profiles ports.ProfileRepository,
	releases ports.ReleaseRepository,
	searchCoordinator *search.Coordinator,
	decisionEngine *decision.Engine,
	downloads *download.Supervisor,
	bus *eventbus.Bus,
	proc *queue.Processor,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		movies:         movies,
		profiles:       profiles,
		releases:       releases,
		search:         searchCoordinator,
		decide:         decisionEngine,
		downloads:      downloads,
		bus:            bus,
		proc:           proc,
		refreshCadence: defaultRefreshCadence,
		minBytes:       defaultMinBytes,
		maxBytes:       defaultMaxBytes,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) RegisterHandlers() {
	c.proc.RegisterHandler(domain.JobRefresh, c.handleRefresh)
	c.proc.RegisterHandler(domain.JobSearch, c.handleSearch)
	c.proc.RegisterHandler(domain.JobEvaluate, c.handleEvaluate)
}

// ScheduleRefresh enqueues a Refresh job for one movie to run now, under
// the movie's "refresh:" dedup key, so a pending Refresh job for the
// movie is replaced rather than duplicated. cmd/orchestrator's
// reconciliation sweep calls it for every monitored movie, at startup
// and then periodically.
func (c *Coordinator) ScheduleRefresh(ctx context.Context, movieID string) error {
	payload, err := json.Marshal(refreshPayload{MovieID: movieID})
	if err != nil {
		return domain.Classify(domain.Internal, err)
	}
	_, err = c.proc.Enqueue(ctx, domain.JobRefresh, "refresh:"+movieID, payload, time.Now())
	return err
}

func (c *Coordinator) handleRefresh(ctx context.Context, job domain.QueueJob) error {
	var p refreshPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return domain.Classify(domain.Validation, err)
	}

	movie, err := c.movies.Get(ctx, p.MovieID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil // movie deleted since this refresh was scheduled
		}
		return err
	}

	if movie.Monitored && movie.Status != domain.MovieExcluded {
		c.refreshMetadata(ctx, &movie)

		profile, err := c.profiles.Get(ctx, movie.ProfileID)
		if err != nil {
			return err
		}
		if movie.BestFile == nil || (profile.UpgradeAllowed && !profile.CutoffReached(movie.BestFile.Quality.TierKey())) {
			if err := c.enqueueSearch(ctx, movie.ID); err != nil {
				return err
			}
		}
	}

	payload, err := json.Marshal(refreshPayload{MovieID: movie.ID})
	if err != nil {
		return domain.Classify(domain.Internal, err)
	}
	_, err = c.proc.Enqueue(ctx, domain.JobRefresh, "refresh:"+movie.ID, payload, time.Now().Add(c.refreshCadence))
	return err
}

// refreshMetadata reconciles title/year against the upstream catalog.
// Failures are logged and swallowed: a stale title shouldn't block the
// search cadence this job is really here to drive.
func (c *Coordinator) refreshMetadata(ctx context.Context, movie *domain.Movie) {
	if c.metadata == nil {
		return
	}

	var lookup ports.MetadataLookup
	call := func(ctx context.Context) error {
		var err error
		lookup, err = c.metadata.Lookup(ctx, movie.CatalogID)
		return err
	}

	var err error
	if c.metadataBreaker != nil {
		err = c.metadataBreaker.Call(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("movie_id", movie.ID).Msg("metadata refresh failed")
		return
	}

	if lookup.Title == movie.Title && lookup.Year == movie.Year {
		return
	}
	movie.Title = lookup.Title
	movie.Year = lookup.Year
	if err := c.movies.Update(ctx, *movie); err != nil {
		c.log.Warn().Err(err).Str("movie_id", movie.ID).Msg("failed to persist refreshed metadata")
	}
}

func (c *Coordinator) enqueueSearch(ctx context.Context, movieID string) error {
	payload, err := json.Marshal(searchPayload{MovieID: movieID})
	if err != nil {
		return domain.Classify(domain.Internal, err)
	}
	_, err = c.proc.Enqueue(ctx, domain.JobSearch, "search:"+movieID, payload, time.Now())
	return err
}

func (c *Coordinator) handleSearch(ctx context.Context, job domain.QueueJob) error {
	var p searchPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return domain.Classify(domain.Validation, err)
	}

	movie, err := c.movies.Get(ctx, p.MovieID)
	if err != nil {
		return err
	}

	c.bus.Publish(domain.EventSearchRequested, movie.ID, nil)

	result := c.search.Search(ctx, ports.SearchQuery{
		CatalogID: movie.CatalogID,
		Title:     movie.Title,
		Year:      movie.Year,
	}, c.minBytes, c.maxBytes)

	if len(result.Candidates) == 0 {
		c.bus.Publish(domain.EventSearchCompleted, movie.ID, domain.SearchCompletedPayload{Reason: "no_candidates"})
		return nil
	}

	payload, err := json.Marshal(evaluatePayload{MovieID: movie.ID, Candidates: result.Candidates})
	if err != nil {
		return domain.Classify(domain.Internal, err)
	}
	_, err = c.proc.Enqueue(ctx, domain.JobEvaluate, "evaluate:"+movie.ID, payload, time.Now())
	return err
}

func (c *Coordinator) handleEvaluate(ctx context.Context, job domain.QueueJob) error {
	var p evaluatePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return domain.Classify(domain.Validation, err)
	}

	movie, err := c.movies.Get(ctx, p.MovieID)
	if err != nil {
		return err
	}
	profile, err := c.profiles.Get(ctx, movie.ProfileID)
	if err != nil {
		return err
	}

	rationale, winner := c.decide.Decide(ctx, movie, profile, p.Candidates, time.Now())

	if winner == nil {
		c.bus.Publish(domain.EventSearchCompleted, movie.ID, domain.SearchCompletedPayload{Reason: rationale.NoSelectReason})
		return nil
	}

	if err := c.releases.RecordSelection(ctx, movie.ID, *winner, rationale); err != nil {
		return err
	}
	c.bus.Publish(domain.EventReleaseSelected, movie.ID, domain.ReleaseSelectedPayload{
		Fingerprint: winner.Fingerprint(),
		Rationale:   rationale,
	})

	if _, err := c.downloads.Submit(ctx, movie.ID, *winner); err != nil {
		if domain.ClassOf(err) == domain.Conflict {
			c.log.Debug().Str("movie_id", movie.ID).Msg("download already in flight, skipping submit")
			return nil
		}
		return err
	}

	from := movie.Status
	movie.Status = domain.MovieDownloading
	movie.UpdatedAt = time.Now()
	if err := c.movies.Update(ctx, movie); err != nil {
		return err
	}
	c.bus.Publish(domain.EventMovieStatusChanged, movie.ID, domain.MovieStatusChangedPayload{MovieID: movie.ID, From: from, To: domain.MovieDownloading})
	return nil
}

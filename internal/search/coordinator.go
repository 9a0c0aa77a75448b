// Package search implements the Search Coordinator: it fans a
// SearchRequested event out across every registered indexer adapter,
// merges and deduplicates the results, and hands a ranked-free
// candidate set to the Decision Engine. The coordinator never scores
// candidates itself.
package search

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/reelwatch/orchestrator/internal/breaker"
	"github.com/reelwatch/orchestrator/internal/domain"
	"github.com/reelwatch/orchestrator/internal/domain/ports"
	"github.com/reelwatch/orchestrator/internal/metrics"
)

// IndexerStatus reports one indexer's outcome for a single search
// round, useful for diagnostics and the health surface.
type IndexerStatus struct {
	IndexerID string
	OK        bool
	Error     string
	Count     int
}

// Result is the coordinator's output for one movie: the merged,
// deduplicated, sanity-filtered candidate set plus per-indexer status.
type Result struct {
	Candidates []domain.ReleaseCandidate
	Statuses   []IndexerStatus
}

// Coordinator fans a query out across registered indexers.
type Coordinator struct {
	indexers    map[string]ports.IndexerAdapter
	breakers    map[string]*breaker.Breaker
	concurrency int64
	perCallTO   time.Duration
	log         zerolog.Logger
}

type Option func(*Coordinator)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// New builds a Coordinator. breakers may be nil for any indexer id not
// present (treated as always-closed).
func New(indexers map[string]ports.IndexerAdapter, breakers map[string]*breaker.Breaker, concurrency int64, perCallTimeout time.Duration, opts ...Option) *Coordinator {
	c := &Coordinator{
		indexers:    indexers,
		breakers:    breakers,
		concurrency: concurrency,
		perCallTO:   perCallTimeout,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search queries every registered indexer for query, bounded by the
// coordinator's concurrency semaphore and per-indexer timeout, then
// merges, deduplicates, and sanity-filters the combined result.
func (c *Coordinator) Search(ctx context.Context, query ports.SearchQuery, minBytes, maxBytes int64) Result {
	ids := make([]string, 0, len(c.indexers))
	for id := range c.indexers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	weight := c.concurrency
	if weight <= 0 {
		weight = int64(len(ids))
	}
	if weight <= 0 {
		weight = 1
	}
	sem := semaphore.NewWeighted(weight)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		all      []domain.ReleaseCandidate
		statuses = make([]IndexerStatus, len(ids))
	)

	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				statuses[i] = IndexerStatus{IndexerID: id, OK: false, Error: "context cancelled"}
				mu.Unlock()
				return
			}
			defer sem.Release(1)

			results, err := c.queryOne(ctx, id, query)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				statuses[i] = IndexerStatus{IndexerID: id, OK: false, Error: err.Error()}
				metrics.SearchIndexerErrorsTotal.WithLabelValues(id).Inc()
				c.log.Warn().Err(err).Str("indexer", id).Msg("indexer search failed")
				return
			}
			statuses[i] = IndexerStatus{IndexerID: id, OK: true, Count: len(results)}
			metrics.SearchCandidatesFound.WithLabelValues(id).Observe(float64(len(results)))
			all = append(all, results...)
		}(i, id)
	}
	wg.Wait()

	merged := Dedupe(all)
	merged = SanityFilter(merged, minBytes, maxBytes)
	return Result{Candidates: merged, Statuses: statuses}
}

func (c *Coordinator) queryOne(ctx context.Context, indexerID string, query ports.SearchQuery) ([]domain.ReleaseCandidate, error) {
	adapter := c.indexers[indexerID]

	callCtx := ctx
	if c.perCallTO > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.perCallTO)
		defer cancel()
	}

	var raw []ports.RawRelease
	call := func(ctx context.Context) error {
		var err error
		raw, err = adapter.Search(ctx, query)
		return err
	}

	var err error
	if b, ok := c.breakers[indexerID]; ok && b != nil {
		err = b.Call(callCtx, call)
	} else {
		err = call(callCtx)
	}
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.ReleaseCandidate, 0, len(raw))
	for _, r := range raw {
		candidates = append(candidates, domain.ReleaseCandidate{
			IndexerID:   indexerID,
			Title:       strings.TrimSpace(r.Title),
			SizeBytes:   r.SizeBytes,
			PublishedAt: r.PublishedAt,
			Seeders:     r.Seeders,
			Leechers:    r.Leechers,
			DownloadURI: r.DownloadURI,
			Freeleech:   r.Freeleech,
			InfoHash:    r.InfoHash,
		})
	}
	return candidates, nil
}

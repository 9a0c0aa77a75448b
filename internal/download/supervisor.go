// Package download implements the Download Supervisor: it submits
// selected releases to a download client, polls them to terminal state
// through the queue processor, and reacts to completion/failure by
// enqueuing the next stage of the pipeline.
package download

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reelwatch/orchestrator/internal/breaker"
	"github.com/reelwatch/orchestrator/internal/domain"
	"github.com/reelwatch/orchestrator/internal/domain/ports"
	"github.com/reelwatch/orchestrator/internal/eventbus"
	"github.com/reelwatch/orchestrator/internal/metrics"
	"github.com/reelwatch/orchestrator/internal/queue"
)

const (
	defaultPollInterval       = 30 * time.Second
	acceleratedPollInterval   = 5 * time.Second
	accelerationProgressFloor = 0.9
	defaultBlocklistWindow    = 72 * time.Hour
)

var stateMap = map[ports.ExternalTorrentState]domain.DownloadState{
	ports.ExternalQueued:      domain.DownloadQueued,
	ports.ExternalDownloading: domain.DownloadDownloading,
	ports.ExternalPaused:      domain.DownloadPaused,
	ports.ExternalCompleted:   domain.DownloadCompleted,
	ports.ExternalError:       domain.DownloadError,
	ports.ExternalMissing:     domain.DownloadMissing,
}

type pollPayload struct {
	HandleID string `json:"handle_id"`
}

type searchPayload struct {
	MovieID string `json:"movie_id"`
}

type importPayload struct {
	HandleID string `json:"handle_id"`
}

// Supervisor drives one download-client adapter on behalf of every
// movie with a non-terminal handle.
type Supervisor struct {
	client       ports.DownloadClientAdapter
	handles      ports.DownloadRepository
	blocklist    ports.BlocklistRepository
	bus          *eventbus.Bus
	proc         *queue.Processor
	breaker      *breaker.Breaker
	category     string
	blocklistTTL time.Duration
	log          zerolog.Logger
}

type Option func(*Supervisor)

func WithCategory(category string) Option {
	return func(s *Supervisor) { s.category = category }
}

func WithBlocklistWindow(d time.Duration) Option {
	return func(s *Supervisor) { s.blocklistTTL = d }
}

func WithBreaker(b *breaker.Breaker) Option {
	return func(s *Supervisor) { s.breaker = b }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Supervisor) { s.log = l }
}

func New(client ports.DownloadClientAdapter, handles ports.DownloadRepository, blocklist ports.BlocklistRepository, bus *eventbus.Bus, proc *queue.Processor, opts ...Option) *Supervisor {
	s := &Supervisor{
		client:       client,
		handles:      handles,
		blocklist:    blocklist,
		bus:          bus,
		proc:         proc,
		category:     "reelwatch",
		blocklistTTL: defaultBlocklistWindow,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterHandlers wires this supervisor's poll handler into the shared
// queue processor under the Download job kind.
func (s *Supervisor) RegisterHandlers() {
	s.proc.RegisterHandler(domain.JobDownload, s.handlePoll)
}

// Submit enqueues a release with the download client and begins polling
// it to a terminal state. Fails with a Conflict classification if the
// movie already has a non-terminal handle.
func (s *Supervisor) Submit(ctx context.Context, movieID string, candidate domain.ReleaseCandidate) (domain.DownloadHandle, error) {
	existing, err := s.handles.GetActiveForMovie(ctx, movieID)
	if err != nil {
		return domain.DownloadHandle{}, err
	}
	if existing != nil {
		return domain.DownloadHandle{}, domain.Classify(domain.Conflict, domain.ErrDownloadActive)
	}

	externalID, err := s.callAdd(ctx, candidate.DownloadURI)
	if err != nil {
		return domain.DownloadHandle{}, err
	}

	now := time.Now()
	handle := domain.DownloadHandle{
		ID:          uuid.NewString(),
		ExternalID:  externalID,
		MovieID:     movieID,
		Fingerprint: candidate.Fingerprint(),
		State:       domain.DownloadQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.handles.Create(ctx, handle); err != nil {
		return domain.DownloadHandle{}, err
	}
	metrics.DownloadHandlesActive.Inc()

	s.bus.Publish(domain.EventDownloadStarted, movieID, handle)

	if err := s.schedulePoll(ctx, handle.ID, defaultPollInterval); err != nil {
		return handle, err
	}
	return handle, nil
}

// Cancel stops a non-terminal download without deleting its payload.
func (s *Supervisor) Cancel(ctx context.Context, handleID string) error {
	handle, err := s.handles.Get(ctx, handleID)
	if err != nil {
		return err
	}
	if err := s.callRemove(ctx, handle.ExternalID, false); err != nil {
		return err
	}
	if err := s.handles.Delete(ctx, handleID); err != nil {
		return err
	}
	metrics.DownloadHandlesActive.Dec()
	return nil
}

// Remove stops a download and optionally deletes its payload from disk.
func (s *Supervisor) Remove(ctx context.Context, handleID string, deleteFiles bool) error {
	handle, err := s.handles.Get(ctx, handleID)
	if err != nil {
		return err
	}
	if err := s.callRemove(ctx, handle.ExternalID, deleteFiles); err != nil {
		return err
	}
	if err := s.handles.Delete(ctx, handleID); err != nil {
		return err
	}
	metrics.DownloadHandlesActive.Dec()
	return nil
}

func (s *Supervisor) handlePoll(ctx context.Context, job domain.QueueJob) error {
	var p pollPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return domain.Classify(domain.Validation, err)
	}

	handle, err := s.handles.Get(ctx, p.HandleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil // handle already removed, nothing to poll
		}
		return err
	}
	if handle.State.Terminal() {
		return nil
	}

	torrents, err := s.callList(ctx)
	if err != nil {
		return err
	}

	var match *ports.ExternalTorrent
	for i := range torrents {
		if torrents[i].ExternalID == handle.ExternalID {
			match = &torrents[i]
			break
		}
	}
	if match == nil {
		return s.handleMissing(ctx, handle)
	}

	next, ok := stateMap[match.State]
	if !ok {
		next = domain.DownloadError
	}
	handle.State = next
	handle.Progress = match.Progress
	handle.UpdatedAt = time.Now()
	if len(match.Files) > 0 {
		handle.PayloadPath = match.SavePath
	}
	if err := s.handles.Update(ctx, handle); err != nil {
		return err
	}

	switch handle.State {
	case domain.DownloadCompleted:
		return s.completeHandle(ctx, handle)
	case domain.DownloadError:
		return s.failHandle(ctx, handle, "download_error")
	default:
		s.bus.Publish(domain.EventDownloadProgressed, handle.MovieID, handle)
		return s.schedulePoll(ctx, handle.ID, nextPollInterval(handle.Progress))
	}
}

func (s *Supervisor) handleMissing(ctx context.Context, handle domain.DownloadHandle) error {
	handle.State = domain.DownloadMissing
	handle.UpdatedAt = time.Now()
	if err := s.handles.Update(ctx, handle); err != nil {
		return err
	}
	return s.failHandle(ctx, handle, "download_missing")
}

func (s *Supervisor) completeHandle(ctx context.Context, handle domain.DownloadHandle) error {
	s.bus.Publish(domain.EventDownloadCompleted, handle.MovieID, domain.DownloadCompletedPayload{HandleID: handle.ID, Path: handle.PayloadPath})
	payload, err := json.Marshal(importPayload{HandleID: handle.ID})
	if err != nil {
		return domain.Classify(domain.Internal, err)
	}
	_, err = s.proc.Enqueue(ctx, domain.JobImport, "import:"+handle.ID, payload, time.Now())
	return err
}

// failHandle publishes the classified failure, blocklists the
// fingerprint, and triggers a fresh search so the next decision round
// picks a different candidate.
func (s *Supervisor) failHandle(ctx context.Context, handle domain.DownloadHandle, reason string) error {
	now := time.Now()
	s.bus.Publish(domain.EventDownloadFailed, handle.MovieID, domain.DownloadFailedPayload{HandleID: handle.ID, Fingerprint: handle.Fingerprint, Reason: reason})

	entry := domain.BlocklistEntry{
		Fingerprint: handle.Fingerprint,
		Reason:      reason,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.blocklistTTL),
	}
	if err := s.blocklist.Add(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("fingerprint", handle.Fingerprint).Msg("failed to blocklist fingerprint after download failure")
	}

	payload, err := json.Marshal(searchPayload{MovieID: handle.MovieID})
	if err != nil {
		return domain.Classify(domain.Internal, err)
	}
	_, err = s.proc.Enqueue(ctx, domain.JobSearch, "search:"+handle.MovieID, payload, now)
	return err
}

func (s *Supervisor) schedulePoll(ctx context.Context, handleID string, interval time.Duration) error {
	payload, err := json.Marshal(pollPayload{HandleID: handleID})
	if err != nil {
		return domain.Classify(domain.Internal, err)
	}
	_, err = s.proc.Enqueue(ctx, domain.JobDownload, "poll:"+handleID, payload, time.Now().Add(interval))
	return err
}

// nextPollInterval accelerates polling as a download nears completion;
// this is informational cadence tuning only, never a correctness signal.
func nextPollInterval(progress float64) time.Duration {
	if progress >= accelerationProgressFloor {
		return acceleratedPollInterval
	}
	return defaultPollInterval
}

func (s *Supervisor) callAdd(ctx context.Context, uri string) (string, error) {
	if s.breaker == nil {
		return s.client.Add(ctx, uri, ports.AddOptions{Category: s.category})
	}
	var id string
	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		var callErr error
		id, callErr = s.client.Add(ctx, uri, ports.AddOptions{Category: s.category})
		return callErr
	})
	return id, err
}

func (s *Supervisor) callList(ctx context.Context) ([]ports.ExternalTorrent, error) {
	if s.breaker == nil {
		return s.client.List(ctx, s.category)
	}
	var list []ports.ExternalTorrent
	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		var callErr error
		list, callErr = s.client.List(ctx, s.category)
		return callErr
	})
	return list, err
}

func (s *Supervisor) callRemove(ctx context.Context, externalID string, deleteFiles bool) error {
	if s.breaker == nil {
		return s.client.Remove(ctx, externalID, deleteFiles)
	}
	return s.breaker.Call(ctx, func(ctx context.Context) error {
		return s.client.Remove(ctx, externalID, deleteFiles)
	})
}

package ports

import (
	"context"
	"time"

	"github.com/reelwatch/orchestrator/internal/domain"
)

// MovieRepository persists Movie aggregates and exposes the indexed
// query needed for dashboard-style listing ("movies by status").
type MovieRepository interface {
	Create(ctx context.Context, m domain.Movie) error
	Get(ctx context.Context, id string) (domain.Movie, error)
	Update(ctx context.Context, m domain.Movie) error
	ListByStatus(ctx context.Context, status domain.MovieStatus) ([]domain.Movie, error)
	ListMonitored(ctx context.Context) ([]domain.Movie, error)
}

// QueueRepository persists QueueJob aggregates behind the lease
// protocol the queue processor drives.
type QueueRepository interface {
	Enqueue(ctx context.Context, job domain.QueueJob) (domain.QueueJob, error)
	// Lease atomically claims the earliest Pending job of one of the
	// given kinds whose NextRun <= now, honoring per-kind concurrency
	// caps the caller has already computed room for.
	Lease(ctx context.Context, kinds []domain.JobKind, now time.Time, holder string, leaseDuration time.Duration) (*domain.QueueJob, error)
	Complete(ctx context.Context, id string, holder string) error
	Retry(ctx context.Context, id string, holder string, nextRun time.Time, attempt int, lastErr string) error
	Abandon(ctx context.Context, id string, holder string, lastErr string) error
	ReapExpired(ctx context.Context, now time.Time) (int, error)
	CountRunning(ctx context.Context, kind domain.JobKind) (int, error)
	PruneTerminal(ctx context.Context, olderThan time.Time) (int, error)
}

// ReleaseRepository records historically selected releases.
type ReleaseRepository interface {
	RecordSelection(ctx context.Context, movieID string, candidate domain.ReleaseCandidate, rationale domain.Rationale) error
}

// DownloadRepository persists DownloadHandle aggregates, enforcing the
// "at most one non-terminal handle per movie" invariant.
type DownloadRepository interface {
	Create(ctx context.Context, h domain.DownloadHandle) error
	Get(ctx context.Context, id string) (domain.DownloadHandle, error)
	GetActiveForMovie(ctx context.Context, movieID string) (*domain.DownloadHandle, error)
	Update(ctx context.Context, h domain.DownloadHandle) error
	Delete(ctx context.Context, id string) error
}

// HistoryRepository appends audit trail entries.
type HistoryRepository interface {
	Append(ctx context.Context, rec domain.HistoryRecord) error
	ListForMovie(ctx context.Context, movieID string) ([]domain.HistoryRecord, error)
}

// BlocklistRepository persists fingerprint blocklist entries with
// TTL-aware queries.
type BlocklistRepository interface {
	Add(ctx context.Context, entry domain.BlocklistEntry) error
	IsBlocked(ctx context.Context, fingerprint string, now time.Time) (bool, error)
	ListActive(ctx context.Context, now time.Time) ([]domain.BlocklistEntry, error)
	PruneExpired(ctx context.Context, now time.Time) (int, error)
	Remove(ctx context.Context, fingerprint string) error
}

// ProfileRepository persists QualityProfile aggregates.
type ProfileRepository interface {
	Get(ctx context.Context, id string) (domain.QualityProfile, error)
	Upsert(ctx context.Context, p domain.QualityProfile) error
	List(ctx context.Context) ([]domain.QualityProfile, error)
}

// ReputationRepository exposes access to scene-group reputation, keyed
// by domain.CanonicalGroupName.
type ReputationRepository interface {
	Get(ctx context.Context, canonicalGroup string) (domain.ReputationRecord, error)
	Upsert(ctx context.Context, rec domain.ReputationRecord) error
	List(ctx context.Context) ([]domain.ReputationRecord, error)
}

// TxRunner runs fn within a single transaction spanning whatever
// repositories fn closes over, for mutations that cross aggregates.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

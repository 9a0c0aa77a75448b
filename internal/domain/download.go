package domain

import "time"

// DownloadState is the normalized state of an external download-client
// torrent/nzb, after adapter-level mapping from client-specific states.
type DownloadState string

const (
	DownloadQueued      DownloadState = "queued"
	DownloadDownloading DownloadState = "downloading"
	DownloadPaused      DownloadState = "paused"
	DownloadCompleted   DownloadState = "completed"
	DownloadError       DownloadState = "error"
	DownloadMissing     DownloadState = "missing"
)

// Terminal reports whether this state ends the Download Handle's
// lifecycle (it will be destroyed after import or explicit removal).
func (s DownloadState) Terminal() bool {
	switch s {
	case DownloadCompleted, DownloadError, DownloadMissing:
		return true
	default:
		return false
	}
}

// DownloadHandle links a movie and its selected release to an external
// download-client identifier.
type DownloadHandle struct {
	ID          string
	ExternalID  string
	MovieID     string
	Fingerprint string
	State       DownloadState
	Progress    float64
	PayloadPath string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BlocklistEntry marks a fingerprint as ineligible for selection until
// TTL expiry or manual removal.
type BlocklistEntry struct {
	Fingerprint string
	Reason      string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

func (e BlocklistEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// HistoryRecord is an audit trail entry written alongside every import
// and terminal download event.
type HistoryRecord struct {
	ID          string
	MovieID     string
	Fingerprint string
	Event       string
	Tier        Tier
	Reason      string
	CreatedAt   time.Time
}

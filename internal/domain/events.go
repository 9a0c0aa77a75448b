package domain

import "time"

// EventKind names a domain event published on the event bus.
type EventKind string

const (
	EventSearchRequested    EventKind = "SearchRequested"
	EventSearchCompleted    EventKind = "SearchCompleted"
	EventReleaseSelected    EventKind = "ReleaseSelected"
	EventDownloadStarted    EventKind = "DownloadStarted"
	EventDownloadProgressed EventKind = "DownloadProgressed"
	EventDownloadCompleted  EventKind = "DownloadCompleted"
	EventDownloadFailed     EventKind = "DownloadFailed"
	EventImportStarted      EventKind = "ImportStarted"
	EventImportCompleted    EventKind = "ImportCompleted"
	EventImportFailed       EventKind = "ImportFailed"
	EventMovieStatusChanged EventKind = "MovieStatusChanged"
	EventCircuitOpened      EventKind = "CircuitOpened"
	EventCircuitClosed      EventKind = "CircuitClosed"
)

// Event is a single published domain event. Seq is a monotonically
// increasing, process-wide sequence number used for debugging; it gives
// no cross-subscriber ordering guarantee beyond what's already true of
// publish order.
type Event struct {
	Seq       uint64
	Kind      EventKind
	Timestamp time.Time
	MovieID   string
	Payload   any
}

// SearchCompletedPayload carries the outcome of a search round,
// including the no-selection reason when nothing was selected.
type SearchCompletedPayload struct {
	Selected *string // fingerprint, nil if none selected
	Reason   string  // "", "no_candidates", "all_blocklisted", "upgrades_disabled", "cutoff_reached"
}

// ReleaseSelectedPayload carries the winning candidate's fingerprint
// plus the explainable rationale stored alongside the resulting queue
// job.
type ReleaseSelectedPayload struct {
	Fingerprint string
	Rationale   Rationale
}

// DownloadCompletedPayload carries the terminal payload path the import
// pipeline will consume.
type DownloadCompletedPayload struct {
	HandleID string
	Path     string
}

// DownloadFailedPayload carries the classified failure reason.
type DownloadFailedPayload struct {
	HandleID    string
	Fingerprint string
	Reason      string
}

// ImportCompletedPayload / ImportFailedPayload carry the import
// pipeline's terminal outcome.
type ImportCompletedPayload struct {
	MovieID     string
	Fingerprint string
	Path        string
}

type ImportFailedPayload struct {
	MovieID string
	Reason  string
}

// MovieStatusChangedPayload announces a Movie's status transition.
type MovieStatusChangedPayload struct {
	MovieID string
	From    MovieStatus
	To      MovieStatus
}

// CircuitPayload announces a breaker state transition.
type CircuitPayload struct {
	AdapterName string
}

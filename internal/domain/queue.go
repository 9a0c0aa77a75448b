package domain

import "time"

// JobKind names the kind of work a Queue Job performs.
type JobKind string

const (
	JobSearch   JobKind = "search"
	JobEvaluate JobKind = "evaluate"
	JobDownload JobKind = "download"
	JobImport   JobKind = "import"
	JobRefresh  JobKind = "refresh"
)

// JobState is a Queue Job's terminal/non-terminal state: Pending (no
// lease), Running (lease held, deadline in future), or terminal — no
// other state is observable after commit.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed" // never stored: a retried job goes straight back to Pending
	JobAbandoned JobState = "abandoned"
)

// Lease identifies the worker holding a Running job and its deadline.
type Lease struct {
	Holder   string
	Deadline time.Time
}

// Active reports whether the lease deadline has not yet passed.
func (l Lease) Active(now time.Time) bool {
	return l.Holder != "" && now.Before(l.Deadline)
}

// QueueJob is a unit of durable, leased work.
type QueueJob struct {
	ID         string
	Kind       JobKind
	DedupKey   string
	Payload    []byte // caller-defined encoding, typically JSON
	Attempt    int
	NextRun    time.Time
	Lease      *Lease
	State      JobState
	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastError  string
}

// IsLeaseExpired reports whether a Running job's lease deadline has
// passed without completion — the queue processor's reaper uses this to
// return the job to Pending with the same attempt counter, distinguishing
// a crashed worker from a handler failure.
func (j QueueJob) IsLeaseExpired(now time.Time) bool {
	return j.State == JobRunning && (j.Lease == nil || !j.Lease.Active(now))
}

package queue

import (
	"math/rand/v2"
	"time"

	"github.com/reelwatch/orchestrator/internal/domain"
)

// BackoffPolicy configures exponential-with-full-jitter backoff,
// independently per job kind.
type BackoffPolicy struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

// DefaultBackoffPolicies returns sensible defaults per kind; callers
// override from internal/config.
func DefaultBackoffPolicies() map[domain.JobKind]BackoffPolicy {
	return map[domain.JobKind]BackoffPolicy{
		domain.JobSearch:   {Base: 5 * time.Second, Cap: 10 * time.Minute, MaxAttempts: 5},
		domain.JobEvaluate: {Base: 5 * time.Second, Cap: 5 * time.Minute, MaxAttempts: 5},
		domain.JobDownload: {Base: 10 * time.Second, Cap: 30 * time.Minute, MaxAttempts: 8},
		domain.JobImport:   {Base: 15 * time.Second, Cap: 15 * time.Minute, MaxAttempts: 5},
		domain.JobRefresh:  {Base: 30 * time.Second, Cap: 10 * time.Minute, MaxAttempts: 10},
	}
}

// NextDelay computes the full-jitter exponential backoff for the given
// attempt number (1-indexed): a uniform random draw in
// [0, min(cap, base*2^(attempt-1))].
func (p BackoffPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	upper := p.Base
	for i := 1; i < attempt; i++ {
		upper *= 2
		if upper >= p.Cap {
			upper = p.Cap
			break
		}
	}
	if upper > p.Cap {
		upper = p.Cap
	}
	if upper <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(upper) + 1))
}

// Exhausted reports whether attempt has exceeded MaxAttempts, meaning
// the job should be Abandoned rather than retried.
func (p BackoffPolicy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt > p.MaxAttempts
}

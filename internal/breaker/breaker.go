// Package breaker implements a three-state circuit breaker
// (Closed -> Open -> Half-Open -> Closed) for wrapping calls to
// external adapters (indexers, download clients, metadata services).
// State is tracked with atomic counters; no lock is held while the
// wrapped call executes.
package breaker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reelwatch/orchestrator/internal/domain"
	"github.com/reelwatch/orchestrator/internal/eventbus"
	"github.com/reelwatch/orchestrator/internal/metrics"
)

// State is the breaker's current disposition.
type State int32

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// ErrOpen is returned when a call is rejected because the breaker is
// Open. Callers classify this as domain.CircuitOpen (transient).
var ErrOpen = domain.Classify(domain.CircuitOpen, errOpen{})

type errOpen struct{}

func (errOpen) Error() string { return "circuit breaker open" }

// Config tunes the breaker's transition thresholds.
type Config struct {
	// FailureThreshold: consecutive failures that trip Closed -> Open.
	FailureThreshold int
	// FailureRateThreshold: trips Closed -> Open when the failure rate
	// within the rolling window meets or exceeds this fraction, provided
	// at least MinimumRequests calls have been observed in the window.
	FailureRateThreshold float64
	MinimumRequests      int
	Window               time.Duration
	// Cooldown is how long the breaker stays Open before probing again.
	Cooldown time.Duration
	// SuccessThreshold: consecutive successes in Half-Open needed to
	// close the breaker.
	SuccessThreshold int
}

// DefaultConfig mirrors conservative defaults suitable for flaky
// third-party indexers.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:     5,
		FailureRateThreshold: 0.5,
		MinimumRequests:      10,
		Window:               time.Minute,
		Cooldown:             30 * time.Second,
		SuccessThreshold:     2,
	}
}

type windowSample struct {
	at      int64 // unix nano
	success bool
}

// Breaker wraps a single adapter's calls.
type Breaker struct {
	name string
	cfg  Config
	bus  *eventbus.Bus

	state            atomic.Int32
	consecutiveFails atomic.Int32
	consecutiveOK    atomic.Int32
	openedAt         atomic.Int64
	samplesMu        sync.Mutex
	samples          []windowSample
}

// New constructs a Breaker named for metrics/event labeling. bus may be
// nil to suppress event publication (used in tests).
func New(name string, cfg Config, bus *eventbus.Bus) *Breaker {
	return &Breaker{name: name, cfg: cfg, bus: bus}
}

// State returns the breaker's current state, transitioning Open ->
// Half-Open first if the cooldown has elapsed.
func (b *Breaker) State() State {
	st := State(b.state.Load())
	if st == Open {
		openedAt := time.Unix(0, b.openedAt.Load())
		if time.Since(openedAt) >= b.cfg.Cooldown {
			if b.state.CompareAndSwap(int32(Open), int32(HalfOpen)) {
				b.consecutiveOK.Store(0)
				return HalfOpen
			}
			return State(b.state.Load())
		}
	}
	return st
}

// Allow reports whether a call may proceed right now, given the
// current state.
func (b *Breaker) Allow() bool {
	return b.State() != Open
}

// Call executes fn if the breaker allows it, recording the outcome.
// Returns ErrOpen without invoking fn when the breaker is Open.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.Allow() {
		return ErrOpen
	}
	err := fn(ctx)
	if err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

func (b *Breaker) recordSuccess() {
	b.pushSample(true)
	switch b.State() {
	case HalfOpen:
		b.consecutiveFails.Store(0)
		if b.consecutiveOK.Add(1) >= int32(b.cfg.SuccessThreshold) {
			b.transitionTo(Closed)
		}
	default:
		b.consecutiveFails.Store(0)
	}
}

func (b *Breaker) recordFailure() {
	b.pushSample(false)
	switch b.State() {
	case HalfOpen:
		b.transitionTo(Open)
	default:
		fails := b.consecutiveFails.Add(1)
		if int(fails) >= b.cfg.FailureThreshold || b.rateTripped() {
			b.transitionTo(Open)
		}
	}
}

func (b *Breaker) pushSample(success bool) {
	if b.cfg.Window <= 0 {
		return
	}
	b.samplesMu.Lock()
	defer b.samplesMu.Unlock()
	now := time.Now()
	b.samples = append(b.samples, windowSample{at: now.UnixNano(), success: success})
	cutoff := now.Add(-b.cfg.Window).UnixNano()
	i := 0
	for i < len(b.samples) && b.samples[i].at < cutoff {
		i++
	}
	if i > 0 {
		b.samples = append([]windowSample{}, b.samples[i:]...)
	}
}

func (b *Breaker) rateTripped() bool {
	if b.cfg.FailureRateThreshold <= 0 || b.cfg.Window <= 0 {
		return false
	}
	b.samplesMu.Lock()
	defer b.samplesMu.Unlock()
	if len(b.samples) < b.cfg.MinimumRequests {
		return false
	}
	failures := 0
	for _, s := range b.samples {
		if !s.success {
			failures++
		}
	}
	return float64(failures)/float64(len(b.samples)) >= b.cfg.FailureRateThreshold
}

func (b *Breaker) transitionTo(next State) {
	prev := State(b.state.Swap(int32(next)))
	if prev == next {
		return
	}
	metrics.BreakerStateChangesTotal.WithLabelValues(b.name, next.String()).Inc()
	if next == Open {
		b.openedAt.Store(time.Now().UnixNano())
	}
	if next == Closed {
		b.consecutiveFails.Store(0)
		b.consecutiveOK.Store(0)
	}
	if b.bus == nil {
		return
	}
	switch next {
	case Open:
		b.bus.Publish(domain.EventCircuitOpened, "", domain.CircuitPayload{AdapterName: b.name})
	case Closed:
		b.bus.Publish(domain.EventCircuitClosed, "", domain.CircuitPayload{AdapterName: b.name})
	}
}

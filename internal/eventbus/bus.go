// Package eventbus implements an in-process, lossy-tolerant
// multi-producer/multi-consumer broadcast. It is a notification
// mechanism, not a log: a slow subscriber drops events rather than
// blocking publishers, and is expected to reconcile state from the
// repository layer on reconnect.
package eventbus

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reelwatch/orchestrator/internal/domain"
)

// Filter selects which events a subscriber receives. A nil or empty
// Kinds set matches every event kind.
type Filter struct {
	Kinds   []domain.EventKind
	MovieID string // "" matches any movie
}

func (f Filter) matches(e domain.Event) bool {
	if f.MovieID != "" && f.MovieID != e.MovieID {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if k == e.Kind {
			return true
		}
	}
	return false
}

// subscriberBufferSize bounds the per-subscriber channel; once full, the
// bus drops the oldest buffered event for that subscriber to make room
// for the newest one rather than block the publisher.
const subscriberBufferSize = 256

type subscriber struct {
	id     uint64
	filter Filter
	ch     chan domain.Event
	mu     sync.Mutex
	closed bool
}

func (s *subscriber) deliver(e domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
		return
	default:
	}
	// Buffer full: drop the oldest to make room, never block the
	// publisher. The subscriber observes a gap, not a stall.
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- e:
	default:
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Bus is the in-process typed event bus. Delivery ordering is per-
// subscriber FIFO in publish order; there is no cross-subscriber
// ordering guarantee.
type Bus struct {
	seq         atomic.Uint64
	mu          sync.RWMutex
	subscribers map[uint64]*subscriber
	nextID      atomic.Uint64
}

func New() *Bus {
	return &Bus{subscribers: make(map[uint64]*subscriber)}
}

// Publish is non-blocking and fire-and-forget from the producer's
// perspective.
func (b *Bus) Publish(kind domain.EventKind, movieID string, payload any) {
	e := domain.Event{
		Seq:       b.seq.Add(1),
		Kind:      kind,
		Timestamp: time.Now(),
		MovieID:   movieID,
		Payload:   payload,
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		if sub.filter.matches(e) {
			sub.deliver(e)
		}
	}
	log.Debug().
		Uint64("seq", e.Seq).
		Str("kind", string(kind)).
		Str("movie_id", movieID).
		Msg("event published")
}

// Subscription is a lazy, restartable stream of matching events from
// the moment of subscription.
type Subscription struct {
	id     uint64
	bus    *Bus
	ch     <-chan domain.Event
	closed bool
}

// Events returns the channel of matching events. The channel closes
// when Close is called or the bus is shut down.
func (s *Subscription) Events() <-chan domain.Event { return s.ch }

// Next blocks until an event arrives or ctx is cancelled.
func (s *Subscription) Next(ctx context.Context) (domain.Event, bool) {
	select {
	case e, ok := <-s.ch:
		return e, ok
	case <-ctx.Done():
		return domain.Event{}, false
	}
}

func (s *Subscription) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.bus.unsubscribe(s.id)
}

// Subscribe returns a new Subscription matching filter.
func (b *Bus) Subscribe(filter Filter) *Subscription {
	id := b.nextID.Add(1)
	sub := &subscriber{
		id:     id,
		filter: filter,
		ch:     make(chan domain.Event, subscriberBufferSize),
	}
	b.mu.Lock()
	b.subscribers[id] = sub
	b.mu.Unlock()
	return &Subscription{id: id, bus: b, ch: sub.ch}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	delete(b.subscribers, id)
	b.mu.Unlock()
	if ok {
		sub.close()
	}
}

// Shutdown closes every live subscription's channel.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.subscribers = make(map[uint64]*subscriber)
	b.mu.Unlock()
	for _, s := range subs {
		s.close()
	}
}

// KindMatches is a small helper for building a Filter's Kinds slice
// from a comma-separated name list, used by the optional HTTP event
// bridge collaborator.
func KindMatches(csv string) []domain.EventKind {
	parts := strings.Split(csv, ",")
	kinds := make([]domain.EventKind, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			kinds = append(kinds, domain.EventKind(p))
		}
	}
	return kinds
}

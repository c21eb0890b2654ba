package feed

import (
	"sync/atomic"

	"solana-pump-swarm/internal/domain"
)

// Subscription is one bounded fan-out queue attached to the multiplexer.
// When the queue is full the oldest event is evicted so slow consumers
// lag rather than stall the reader.
type Subscription struct {
	name  string
	ch    chan domain.FeedEvent
	drops atomic.Uint64
	mux   *Multiplexer
}

// Name returns the subscriber name used for logging and metrics.
func (s *Subscription) Name() string {
	return s.name
}

// Events returns the subscriber's event channel. The channel is closed
// when the subscription or the multiplexer is closed.
func (s *Subscription) Events() <-chan domain.FeedEvent {
	return s.ch
}

// Drops returns the number of events evicted from this queue so far.
func (s *Subscription) Drops() uint64 {
	return s.drops.Load()
}

// Close detaches the subscription from the multiplexer.
func (s *Subscription) Close() {
	s.mux.unsubscribe(s)
}

// deliver enqueues an event, evicting the oldest entry when full.
func (s *Subscription) deliver(ev domain.FeedEvent) {
	select {
	case s.ch <- ev:
		return
	default:
	}

	// Queue full: make room, then retry once. If a consumer raced us and
	// drained the queue the eviction select falls through harmlessly.
	select {
	case <-s.ch:
		s.drops.Add(1)
	default:
	}

	select {
	case s.ch <- ev:
	default:
		s.drops.Add(1)
	}
}

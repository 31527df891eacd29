package querycache

import "context"

// Subscription is one consumer's interest in a cache entry. Updates carries the latest
// snapshot only; a slow reader sees the newest state, not every intermediate one.
type Subscription struct {
	cache   *Cache
	entry   *entry
	updates chan Snapshot
	closed  bool
}

// Updates delivers snapshots until Close or a cache reset, after which it is closed
func (s *Subscription) Updates() <-chan Snapshot {
	return s.updates
}

// Snapshot returns the entry's current state. A subscription detached by a reset reports Idle.
func (s *Subscription) Snapshot() Snapshot {
	snap, _ := s.current()
	return snap
}

func (s *Subscription) current() (Snapshot, bool) {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	if s.entry == nil {
		return Snapshot{Status: Idle}, false
	}
	return s.entry.snapshot(), true
}

// Refetch starts a new request for the entry regardless of freshness
func (s *Subscription) Refetch() {
	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.entry == nil || c.entries[s.entry.key] != s.entry {
		return
	}
	c.startFetchLocked(context.Background(), s.entry)
}

// Close ends the subscription. No update is delivered afterwards; the entry is evicted after
// the unsubscribe grace period if nobody else subscribes.
func (s *Subscription) Close() {
	s.cache.release(s)
}

// detach must be called with the cache lock held
func (s *Subscription) detach() {
	if s.closed {
		return
	}
	s.closed = true
	s.entry = nil
	select {
	case <-s.updates:
	default:
	}
	close(s.updates)
}

// deliver must be called with the cache lock held
func (s *Subscription) deliver(snap Snapshot) {
	if s.closed {
		return
	}
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- snap:
	default:
	}
}

func (e *entry) broadcast() {
	snap := e.snapshot()
	for sub := range e.subs {
		sub.deliver(snap)
	}
}

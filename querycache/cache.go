package querycache

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/matka-backoffice/internal/errors"
	"github.com/jrsteele09/matka-backoffice/internal/metrics"
	"github.com/rs/zerolog/log"
)

// DefaultUnsubscribeGrace is how long an entry with no subscribers is kept before eviction
const DefaultUnsubscribeGrace = 60 * time.Second

// ErrReset is returned by Fetch when the cache was reset while waiting for a result
var ErrReset = errors.New("cache reset")

// Status of a cache entry
type Status int

const (
	Idle Status = iota
	Loading
	Success
	Error
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "idle"
	}
}

// FetchFunc performs the request for a query
type FetchFunc func(ctx context.Context) (any, error)

// Query describes what to subscribe to
type Query struct {
	Key   Key
	Tags  []Tag
	Fetch FetchFunc
	// RefetchOnMount forces a request even when the entry already holds data
	RefetchOnMount bool
}

// Mutation is a write whose success invalidates Invalidates
type Mutation struct {
	Name        string
	Run         FetchFunc
	Invalidates []Tag
}

// Snapshot is a point-in-time view of an entry
type Snapshot struct {
	Key       Key
	Status    Status
	Data      any
	Err       error
	Stale     bool
	UpdatedAt time.Time
}

type entry struct {
	key   Key
	fetch FetchFunc
	tags  []Tag

	status    Status
	data      any
	err       error
	stale     bool
	updatedAt time.Time

	subs       map[*Subscription]struct{}
	evictTimer *time.Timer
	// evictGen identifies the newest grace timer; an older timer that fired late is ignored
	evictGen uint64

	// issued is the sequence number of the newest request started for this entry,
	// applied the newest one whose result was stored
	issued  uint64
	applied uint64
}

func (e *entry) snapshot() Snapshot {
	return Snapshot{
		Key:       e.key,
		Status:    e.status,
		Data:      e.data,
		Err:       e.err,
		Stale:     e.stale,
		UpdatedAt: e.updatedAt,
	}
}

func (e *entry) inFlight() bool {
	return e.issued > e.applied
}

// Cache is a tagged request cache. Entries are shared by key, fetched at most once
// concurrently and refetched when a mutation invalidates one of their tags.
type Cache struct {
	mu         sync.Mutex
	entries    map[Key]*entry
	tags       map[Tag]map[Key]struct{}
	seq        uint64
	generation uint64
	grace      time.Duration
	metrics    *metrics.Metrics
	now        func() time.Time
}

// CacheOption defines a function type to modify the Cache instance.
type CacheOption func(*Cache)

// WithUnsubscribeGrace sets how long unsubscribed entries survive
func WithUnsubscribeGrace(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.grace = d
	}
}

func WithMetrics(m *metrics.Metrics) CacheOption {
	return func(c *Cache) {
		c.metrics = m
	}
}

func New(options ...CacheOption) *Cache {
	c := &Cache{
		entries: make(map[Key]*entry),
		tags:    make(map[Tag]map[Key]struct{}),
		grace:   DefaultUnsubscribeGrace,
		now:     time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Subscribe registers interest in q. The entry is created on first use and a request is
// started unless one is already in flight or fresh data is present.
func (c *Cache) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	if q.Fetch == nil {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "[Cache.Subscribe] fetch is required for %s", q.Key)
	}
	if q.Key.Endpoint == "" {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "[Cache.Subscribe] key endpoint is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[q.Key]
	if !ok {
		e = &entry{key: q.Key, subs: make(map[*Subscription]struct{})}
		c.entries[q.Key] = e
	}
	e.fetch = q.Fetch
	c.indexTags(e, q.Tags)

	if e.evictTimer != nil {
		e.evictTimer.Stop()
		e.evictTimer = nil
	}

	sub := &Subscription{cache: c, entry: e, updates: make(chan Snapshot, 1)}
	e.subs[sub] = struct{}{}

	needsFetch := e.status == Idle || e.status == Error || e.stale || q.RefetchOnMount
	if needsFetch && !e.inFlight() {
		c.startFetchLocked(ctx, e)
	}
	sub.deliver(e.snapshot())
	return sub, nil
}

// Fetch subscribes, waits for the entry to settle and unsubscribes. A cached fresh value
// is returned without a request.
func (c *Cache) Fetch(ctx context.Context, q Query) (Snapshot, error) {
	sub, err := c.Subscribe(ctx, q)
	if err != nil {
		return Snapshot{}, err
	}
	defer sub.Close()

	for {
		snap, attached := sub.current()
		if !attached {
			return Snapshot{}, ErrReset
		}
		if snap.Status == Success || snap.Status == Error {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case _, ok := <-sub.Updates():
			if !ok {
				return Snapshot{}, ErrReset
			}
		}
	}
}

// Mutate runs m and, when it succeeds, invalidates its tags
func (c *Cache) Mutate(ctx context.Context, m Mutation) (any, error) {
	if m.Run == nil {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "[Cache.Mutate] run is required")
	}
	res, err := m.Run(ctx)
	if err != nil {
		log.Debug().Err(err).Str("mutation", m.Name).Msg("mutation failed, cache left untouched")
		return res, err
	}
	c.Invalidate(ctx, m.Invalidates...)
	return res, nil
}

// Invalidate marks every entry carrying one of tags as stale. Entries with subscribers are
// refetched once; entries without subscribers are dropped.
func (c *Cache) Invalidate(ctx context.Context, tags ...Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[Key]struct{})
	for _, tag := range tags {
		c.metrics.Invalidation(string(tag))
		for key := range c.tags[tag] {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			e, ok := c.entries[key]
			if !ok {
				continue
			}
			if len(e.subs) == 0 {
				c.removeLocked(e)
				continue
			}
			e.stale = true
			c.startFetchLocked(ctx, e)
		}
	}
}

// Reset drops every entry. Requests already in flight are ignored when they resolve.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	for _, e := range c.entries {
		if e.evictTimer != nil {
			e.evictTimer.Stop()
			e.evictTimer = nil
		}
		for sub := range e.subs {
			sub.detach()
		}
		e.subs = nil
	}
	c.entries = make(map[Key]*entry)
	c.tags = make(map[Tag]map[Key]struct{})
	log.Debug().Uint64("generation", c.generation).Msg("query cache reset")
}

// Lookup returns the entry for key without subscribing
func (c *Cache) Lookup(key Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot(), true
}

// Len is the number of live entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) indexTags(e *entry, tags []Tag) {
	for _, tag := range tags {
		keys, ok := c.tags[tag]
		if !ok {
			keys = make(map[Key]struct{})
			c.tags[tag] = keys
		}
		if _, ok := keys[e.key]; !ok {
			keys[e.key] = struct{}{}
			e.tags = append(e.tags, tag)
		}
	}
}

func (c *Cache) removeLocked(e *entry) {
	if e.evictTimer != nil {
		e.evictTimer.Stop()
		e.evictTimer = nil
	}
	for _, tag := range e.tags {
		if keys, ok := c.tags[tag]; ok {
			delete(keys, e.key)
			if len(keys) == 0 {
				delete(c.tags, tag)
			}
		}
	}
	delete(c.entries, e.key)
}

// startFetchLocked issues a request for e. Must be called with c.mu held.
func (c *Cache) startFetchLocked(ctx context.Context, e *entry) {
	c.seq++
	seq := c.seq
	gen := c.generation
	e.issued = seq
	e.status = Loading
	fetch := e.fetch
	c.metrics.CacheFetch(e.key.Endpoint)
	e.broadcast()

	// The request is shared by every subscriber, so one caller's cancellation must not abort it
	fetchCtx := context.WithoutCancel(ctx)
	go func() {
		data, err := fetch(fetchCtx)
		c.complete(e, seq, gen, data, err)
	}()
}

func (c *Cache) complete(e *entry, seq, gen uint64, data any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.entries[e.key] != e {
		log.Debug().Str("key", e.key.String()).Msg("discarding result for a reset or evicted entry")
		return
	}
	if seq <= e.applied {
		log.Debug().Str("key", e.key.String()).Uint64("seq", seq).Msg("discarding out of order result")
		return
	}

	e.applied = seq
	e.updatedAt = c.now()
	if err != nil {
		e.err = err
		e.status = Error
	} else {
		e.data = data
		e.err = nil
		e.status = Success
		e.stale = false
	}
	if e.inFlight() {
		e.status = Loading
	}
	e.broadcast()
}

func (c *Cache) release(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := sub.entry
	sub.detach()
	if e == nil || e.subs == nil {
		return
	}
	delete(e.subs, sub)
	if len(e.subs) > 0 || c.entries[e.key] != e {
		return
	}
	e.evictGen++
	gen := e.evictGen
	e.evictTimer = time.AfterFunc(c.grace, func() {
		c.evict(e, gen)
	})
}

func (c *Cache) evict(e *entry, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[e.key] != e || len(e.subs) > 0 || e.evictTimer == nil || e.evictGen != gen {
		return
	}
	e.evictTimer = nil
	c.removeLocked(e)
	c.metrics.Eviction()
	log.Debug().Str("key", e.key.String()).Msg("evicted unsubscribed entry")
}

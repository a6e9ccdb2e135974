// Package cache provides the link resolution cache with whole-cache time-to-live eviction.
package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"spotilink/pkg/spotifyurl"
	"spotilink/pkg/track"
)

// Fetcher loads the placeholders behind a Spotify link.
type Fetcher interface {
	Fetch(ctx context.Context, link spotifyurl.Link) (*track.Collection, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, link spotifyurl.Link) (*track.Collection, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, link spotifyurl.Link) (*track.Collection, error) {
	return f(ctx, link)
}

// Recorder receives cache statistics.
type Recorder interface {
	CacheHit(kind string)
	CacheMiss(kind string)
	CacheCleared(entries int)
}

type nopRecorder struct{}

func (nopRecorder) CacheHit(string)  {}
func (nopRecorder) CacheMiss(string) {}
func (nopRecorder) CacheCleared(int) {}

// Cache memoizes fetches by link. Entries never expire on their own: while running,
// the whole cache is cleared every TTL.
type Cache struct {
	fetcher  Fetcher
	enabled  bool
	ttl      time.Duration
	clock    Clock
	recorder Recorder
	logger   *zap.Logger

	entries map[string]*track.Collection
	mutex   sync.RWMutex
	group   singleflight.Group

	lifecycle sync.Mutex
	stop      chan struct{}
	done      chan struct{}
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the wall clock driving eviction.
func WithClock(clock Clock) Option {
	return func(c *Cache) {
		c.clock = clock
	}
}

// WithRecorder reports hits, misses and clears to r.
func WithRecorder(r Recorder) Option {
	return func(c *Cache) {
		if r != nil {
			c.recorder = r
		}
	}
}

// New creates a cache in front of fetcher. A disabled cache passes every call through;
// a ttl of zero or less never clears.
func New(fetcher Fetcher, enabled bool, ttl time.Duration, logger *zap.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Cache{
		fetcher:  fetcher,
		enabled:  enabled,
		ttl:      ttl,
		clock:    realClock{},
		recorder: nopRecorder{},
		logger:   logger,
		entries:  make(map[string]*track.Collection),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the cached collection for link, fetching it on a miss.
// The returned collection is shared and must not be modified.
func (c *Cache) Fetch(ctx context.Context, link spotifyurl.Link) (*track.Collection, error) {
	if !c.enabled {
		return c.fetcher.Fetch(ctx, link)
	}

	key := link.Key()
	kind := link.Kind.String()

	c.mutex.RLock()
	collection, ok := c.entries[key]
	c.mutex.RUnlock()
	if ok {
		c.recorder.CacheHit(kind)
		c.logger.Debug("Cache hit", zap.String("key", key))
		return collection, nil
	}

	c.recorder.CacheMiss(kind)
	// The shared fetch outlives any single caller; each caller only stops waiting
	// when its own context ends.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		fetched, err := c.fetcher.Fetch(fetchCtx, link)
		if err != nil {
			return nil, err
		}

		c.mutex.Lock()
		c.entries[key] = fetched
		c.mutex.Unlock()
		return fetched, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}

	c.logger.Debug("Cache miss",
		zap.String("key", key),
		zap.Bool("shared", res.Shared))

	return res.Val.(*track.Collection), nil
}

// Len returns the number of cached links.
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mutex.Lock()
	n := len(c.entries)
	c.entries = make(map[string]*track.Collection)
	c.mutex.Unlock()

	c.recorder.CacheCleared(n)
	c.logger.Debug("Cache cleared", zap.Int("entries", n))
}

// Start arms the eviction ticker. It does nothing when caching is disabled,
// no TTL is configured or the ticker is already running.
func (c *Cache) Start() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if !c.enabled || c.ttl <= 0 || c.stop != nil {
		return
	}

	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.evict(c.clock.NewTicker(c.ttl), c.stop, c.done)

	c.logger.Info("Cache eviction started", zap.Duration("ttl", c.ttl))
}

// Stop disarms the eviction ticker and waits for it to exit.
func (c *Cache) Stop() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.stop == nil {
		return
	}

	close(c.stop)
	<-c.done
	c.stop = nil
	c.done = nil
}

func (c *Cache) evict(ticker Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			c.Purge()
		case <-stop:
			return
		}
	}
}

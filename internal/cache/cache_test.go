package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"spotilink/pkg/spotifyurl"
	"spotilink/pkg/track"
)

type manualClock struct {
	ticker *manualTicker
	period time.Duration
}

func (c *manualClock) NewTicker(d time.Duration) Ticker {
	c.period = d
	c.ticker = &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	return c.ticker
}

type manualTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.once.Do(func() { close(t.stopped) })
}

func (t *manualTicker) fire() {
	t.ch <- time.Now()
}

type countingFetcher struct {
	calls atomic.Int32
	err   error
}

func (f *countingFetcher) Fetch(_ context.Context, link spotifyurl.Link) (*track.Collection, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &track.Collection{
		Name:   "Collection " + link.ID,
		Tracks: []track.Placeholder{{Title: "Song", Author: "Artist", URI: link.OpenURL()}},
	}, nil
}

type recorder struct {
	mu                  sync.Mutex
	hits, misses, clear int
	// cleared, when set, receives the entry count of every clear.
	cleared chan int
}

func (r *recorder) CacheHit(string)  { r.mu.Lock(); r.hits++; r.mu.Unlock() }
func (r *recorder) CacheMiss(string) { r.mu.Lock(); r.misses++; r.mu.Unlock() }

func (r *recorder) CacheCleared(entries int) {
	r.mu.Lock()
	r.clear++
	r.mu.Unlock()
	if r.cleared != nil {
		r.cleared <- entries
	}
}

func (r *recorder) clears() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clear
}

var albumLink = spotifyurl.Link{Kind: spotifyurl.KindAlbum, ID: "abc123"}

func TestCache_SecondFetchIsHit(t *testing.T) {
	fetcher := &countingFetcher{}
	rec := &recorder{}
	c := New(fetcher, true, time.Hour, zap.NewNop(), WithRecorder(rec))

	first, err := c.Fetch(context.Background(), albumLink)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	second, err := c.Fetch(context.Background(), albumLink)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if first != second {
		t.Error("second Fetch() should return the cached collection")
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("fetcher called %d times, want 1", got)
	}
	if rec.hits != 1 || rec.misses != 1 {
		t.Errorf("hits = %d, misses = %d, want 1 and 1", rec.hits, rec.misses)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCache_KeyIncludesKind(t *testing.T) {
	fetcher := &countingFetcher{}
	c := New(fetcher, true, 0, zap.NewNop())

	playlist := spotifyurl.Link{Kind: spotifyurl.KindPlaylist, ID: albumLink.ID}
	for _, link := range []spotifyurl.Link{albumLink, playlist} {
		if _, err := c.Fetch(context.Background(), link); err != nil {
			t.Fatalf("Fetch(%v) error = %v", link, err)
		}
	}

	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("fetcher called %d times, want 2", got)
	}
}

func TestCache_DisabledAlwaysFetches(t *testing.T) {
	fetcher := &countingFetcher{}
	clock := &manualClock{}
	c := New(fetcher, false, time.Minute, zap.NewNop(), WithClock(clock))
	c.Start()
	defer c.Stop()

	for i := 0; i < 3; i++ {
		if _, err := c.Fetch(context.Background(), albumLink); err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
	}

	if got := fetcher.calls.Load(); got != 3 {
		t.Errorf("fetcher called %d times, want 3", got)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
	if clock.ticker != nil {
		t.Error("disabled cache should not arm a ticker")
	}
}

func TestCache_FailuresAreNotCached(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("upstream down")}
	c := New(fetcher, true, 0, zap.NewNop())

	for i := 0; i < 2; i++ {
		if _, err := c.Fetch(context.Background(), albumLink); err == nil {
			t.Fatal("Fetch() expected error but got none")
		}
	}

	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("fetcher called %d times, want 2", got)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestCache_TickClearsEverything(t *testing.T) {
	fetcher := &countingFetcher{}
	clock := &manualClock{}
	rec := &recorder{cleared: make(chan int, 1)}
	c := New(fetcher, true, 5*time.Minute, zap.NewNop(), WithClock(clock), WithRecorder(rec))
	c.Start()
	defer c.Stop()

	if clock.period != 5*time.Minute {
		t.Fatalf("ticker period = %v, want 5m", clock.period)
	}

	other := spotifyurl.Link{Kind: spotifyurl.KindTrack, ID: "xyz"}
	for _, link := range []spotifyurl.Link{albumLink, other} {
		if _, err := c.Fetch(context.Background(), link); err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}

	clock.ticker.fire()
	if evicted := <-rec.cleared; evicted != 2 {
		t.Errorf("clear dropped %d entries, want 2", evicted)
	}

	if c.Len() != 0 {
		t.Errorf("Len() after tick = %d, want 0", c.Len())
	}
	if _, err := c.Fetch(context.Background(), albumLink); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got := fetcher.calls.Load(); got != 3 {
		t.Errorf("fetcher called %d times, want 3", got)
	}
	if got := rec.clears(); got != 1 {
		t.Errorf("recorder saw %d clears, want 1", got)
	}
}

func TestCache_StartWithoutTTLIsNoop(t *testing.T) {
	clock := &manualClock{}
	c := New(&countingFetcher{}, true, 0, zap.NewNop(), WithClock(clock))
	c.Start()
	c.Stop()

	if clock.ticker != nil {
		t.Error("cache without TTL should not arm a ticker")
	}
}

func TestCache_StartStopIdempotent(t *testing.T) {
	clock := &manualClock{}
	c := New(&countingFetcher{}, true, time.Minute, zap.NewNop(), WithClock(clock))

	c.Start()
	first := clock.ticker
	c.Start()
	if clock.ticker != first {
		t.Error("second Start() should not arm another ticker")
	}

	c.Stop()
	c.Stop()

	select {
	case <-first.stopped:
	default:
		t.Error("Stop() should stop the ticker")
	}

	// Restart after stop arms a fresh ticker.
	c.Start()
	if clock.ticker == first {
		t.Error("Start() after Stop() should arm a new ticker")
	}
	c.Stop()
}

func TestCache_ConcurrentMissesFetchOnce(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	fetcher := FetcherFunc(func(context.Context, spotifyurl.Link) (*track.Collection, error) {
		calls.Add(1)
		<-release
		return &track.Collection{Name: "shared"}, nil
	})
	c := New(fetcher, true, 0, zap.NewNop())

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*track.Collection, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			col, err := c.Fetch(context.Background(), albumLink)
			if err != nil {
				t.Errorf("Fetch() error = %v", err)
				return
			}
			results[i] = col
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("fetcher called %d times, want 1", got)
	}
	for i, col := range results {
		if col == nil || col.Name != "shared" {
			t.Errorf("caller %d got %+v", i, col)
		}
	}
}

func TestCache_CanceledCallerDoesNotFailSharedFetch(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fetcher := FetcherFunc(func(ctx context.Context, _ spotifyurl.Link) (*track.Collection, error) {
		calls.Add(1)
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &track.Collection{Name: "shared"}, nil
	})
	c := New(fetcher, true, 0, zap.NewNop())

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctxA, albumLink)
		errA <- err
	}()
	<-started

	type result struct {
		col *track.Collection
		err error
	}
	resB := make(chan result, 1)
	go func() {
		col, err := c.Fetch(context.Background(), albumLink)
		resB <- result{col, err}
	}()

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Errorf("canceled caller error = %v, want context.Canceled", err)
	}

	// Give the second caller time to join the in-flight fetch.
	time.Sleep(20 * time.Millisecond)
	close(release)

	got := <-resB
	if got.err != nil {
		t.Fatalf("live caller error = %v", got.err)
	}
	if got.col == nil || got.col.Name != "shared" {
		t.Errorf("live caller got %+v", got.col)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("fetcher called %d times, want 1", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

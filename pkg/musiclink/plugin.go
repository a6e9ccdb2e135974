// Package musiclink resolves Spotify links into tracks on top of a host searcher.
package musiclink

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"spotilink/internal/cache"
	"spotilink/internal/core"
	"spotilink/internal/spotify"
	"spotilink/pkg/fuzzy"
	"spotilink/pkg/spotifyurl"
	"spotilink/pkg/track"
)

// maxConcurrentResolves bounds eager conversion of a collection.
const maxConcurrentResolves = 5

// ErrNotLoaded is returned for non-Spotify queries before a host searcher is bound.
var ErrNotLoaded = errors.New("plugin not loaded into a host searcher")

// Recorder receives plugin statistics.
type Recorder interface {
	cache.Recorder
	RecordSearch(kind string, loadType track.LoadType)
	RecordResolution(resolved bool)
	ObserveFetch(strategy string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) CacheHit(string)                     {}
func (nopRecorder) CacheMiss(string)                    {}
func (nopRecorder) CacheCleared(int)                    {}
func (nopRecorder) RecordSearch(string, track.LoadType) {}
func (nopRecorder) RecordResolution(bool)               {}
func (nopRecorder) ObserveFetch(string, time.Duration)  {}

// Plugin answers searches for Spotify links and passes everything else to the host searcher.
type Plugin struct {
	config   core.SpotifyConfig
	logger   *zap.Logger
	recorder Recorder
	strategy string
	fetcher  cache.Fetcher
	clock    cache.Clock
	cache    *cache.Cache
	matcher  *fuzzy.Matcher

	mu   sync.RWMutex
	host track.Searcher
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithRecorder reports statistics to r.
func WithRecorder(r Recorder) Option {
	return func(p *Plugin) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithFetcher replaces the fetch strategy selected by the configuration.
func WithFetcher(f cache.Fetcher) Option {
	return func(p *Plugin) {
		p.fetcher = f
	}
}

// WithClock replaces the clock driving cache eviction.
func WithClock(c cache.Clock) Option {
	return func(p *Plugin) {
		p.clock = c
	}
}

// New validates config and creates a plugin. Call Load before searching and
// Start to arm cache eviction.
func New(config core.SpotifyConfig, logger *zap.Logger, opts ...Option) (*Plugin, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Plugin{
		config:   config,
		logger:   logger,
		recorder: nopRecorder{},
		strategy: core.StrategyScrape,
	}
	if config.UsesAPI() {
		p.strategy = core.StrategyAPI
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.fetcher == nil {
		fetcher, err := p.defaultFetcher()
		if err != nil {
			return nil, err
		}
		p.fetcher = fetcher
	}

	cacheOpts := []cache.Option{cache.WithRecorder(p.recorder)}
	if p.clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(p.clock))
	}
	p.cache = cache.New(cache.FetcherFunc(p.timedFetch), config.CacheTrack, config.MaxCacheLifeTime,
		logger.Named("cache"), cacheOpts...)

	// Matching searches through the plugin so text queries reach the host unchanged.
	p.matcher = fuzzy.NewMatcher(p,
		fuzzy.WithSource(config.SearchSource),
		fuzzy.WithLogger(logger.Named("matcher")))

	return p, nil
}

func (p *Plugin) defaultFetcher() (cache.Fetcher, error) {
	if p.strategy == core.StrategyAPI {
		return spotify.NewClient(&p.config, p.logger.Named("api"))
	}
	return NewScraper(p.logger.Named("scrape")), nil
}

// Load binds the host searcher that receives every non-Spotify query.
func (p *Plugin) Load(host track.Searcher) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.host = host
}

// Start arms cache eviction.
func (p *Plugin) Start() {
	p.cache.Start()
}

// Stop disarms cache eviction.
func (p *Plugin) Stop() {
	p.cache.Stop()
}

// CanResolve reports whether query contains a Spotify link this plugin handles.
func (p *Plugin) CanResolve(query string) bool {
	_, ok := spotifyurl.Parse(query)
	return ok
}

// Search resolves Spotify links and delegates anything else to the host searcher.
// Failures on Spotify links are reported as LOAD_FAILED results, never as errors.
func (p *Plugin) Search(ctx context.Context, query track.Query, requester any) (*track.SearchResult, error) {
	link, ok := spotifyurl.Parse(query.Query)
	if !ok {
		host := p.hostSearcher()
		if host == nil {
			return nil, ErrNotLoaded
		}
		return host.Search(ctx, query, requester)
	}

	res, err := p.load(ctx, link, requester)
	if err != nil {
		p.logger.Debug("Failed to load Spotify link",
			zap.String("kind", link.Kind.String()),
			zap.String("id", link.ID),
			zap.Error(err))
		res = loadFailed(err)
	}

	p.recorder.RecordSearch(link.Kind.String(), res.LoadType)
	return res, nil
}

// Resolve turns an unresolved track into a playable one.
func (p *Plugin) Resolve(ctx context.Context, t track.Track) (track.Track, error) {
	resolved, err := t.Resolve(ctx, p.matcher)
	p.recorder.RecordResolution(err == nil)
	return resolved, err
}

func (p *Plugin) load(ctx context.Context, link spotifyurl.Link, requester any) (*track.SearchResult, error) {
	if !link.Kind.Valid() {
		return nil, spotifyurl.ErrUnknownKind
	}

	collection, err := p.cache.Fetch(ctx, link)
	if err != nil {
		return nil, err
	}

	tracks := make([]track.Track, len(collection.Tracks))
	for i, placeholder := range collection.Tracks {
		tracks[i] = track.NewUnresolved(placeholder, requester)
	}

	if p.config.ConvertUnresolved {
		tracks = p.resolveAll(ctx, tracks)
	}

	res := &track.SearchResult{LoadType: link.Kind.LoadType(), Tracks: tracks}
	if link.Kind.HasName() {
		res.Name = collection.Name
	}
	return res, nil
}

// resolveAll resolves tracks concurrently, dropping the ones that fail and keeping order.
func (p *Plugin) resolveAll(ctx context.Context, tracks []track.Track) []track.Track {
	results := make([]track.Track, len(tracks))
	resolved := make([]bool, len(tracks))

	var g errgroup.Group
	g.SetLimit(maxConcurrentResolves)
	for i, t := range tracks {
		i, t := i, t
		g.Go(func() error {
			r, err := p.Resolve(ctx, t)
			if err != nil {
				p.logger.Debug("Dropping unresolvable track",
					zap.String("title", t.Title()),
					zap.String("author", t.Author()),
					zap.Error(err))
				return nil
			}
			results[i] = r
			resolved[i] = true
			return nil
		})
	}
	_ = g.Wait()

	kept := results[:0]
	for i, r := range results {
		if resolved[i] {
			kept = append(kept, r)
		}
	}
	return kept
}

func (p *Plugin) timedFetch(ctx context.Context, link spotifyurl.Link) (*track.Collection, error) {
	start := time.Now()
	collection, err := p.fetcher.Fetch(ctx, link)
	p.recorder.ObserveFetch(p.strategy, time.Since(start))
	return collection, err
}

func (p *Plugin) hostSearcher() track.Searcher {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.host
}

func loadFailed(err error) *track.SearchResult {
	exception := &track.Exception{Message: err.Error(), Severity: track.SeverityCommon}
	var exc *track.Exception
	if errors.As(err, &exc) {
		exception = &track.Exception{Message: exc.Message, Severity: exc.Severity}
	}
	return &track.SearchResult{LoadType: track.LoadTypeLoadFailed, Exception: exception}
}

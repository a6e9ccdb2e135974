package fuzzy

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"spotilink/pkg/track"
)

const (
	// DurationTolerance is how far a candidate's duration may drift from the placeholder's.
	DurationTolerance = 1500 * time.Millisecond
	// DefaultSource is the search source used when none is configured.
	DefaultSource = "youtube"
	// noTracksMessage is reported when the search yields nothing usable.
	noTracksMessage = "No tracks found."
)

// ErrNoSearcher is returned when the matcher has nothing to search with.
var ErrNoSearcher = errors.New("no searcher configured for resolving tracks")

// Tier names which rule picked a candidate.
type Tier int

const (
	TierIdentity Tier = iota + 1
	TierDuration
	TierFallback
)

func (t Tier) String() string {
	switch t {
	case TierIdentity:
		return "identity"
	case TierDuration:
		return "duration"
	case TierFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Matcher resolves placeholders to the closest search result.
type Matcher struct {
	searcher track.Searcher
	source   string
	logger   *zap.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithSource sets the search source used for lookups, e.g. "soundcloud".
func WithSource(source string) Option {
	return func(m *Matcher) {
		if source != "" {
			m.source = source
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Matcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMatcher creates a matcher searching through searcher.
func NewMatcher(searcher track.Searcher, opts ...Option) *Matcher {
	m := &Matcher{
		searcher: searcher,
		source:   DefaultSource,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ClosestTrack searches for an unresolved track and returns the best candidate.
func (m *Matcher) ClosestTrack(ctx context.Context, t track.Track) (track.Concrete, error) {
	if m == nil || m.searcher == nil {
		return track.Concrete{}, ErrNoSearcher
	}

	p, ok := t.Placeholder()
	if !ok {
		return track.Concrete{}, track.ErrNotUnresolved
	}

	query := searchQuery(p.Author, p.Title)
	res, err := m.searcher.Search(ctx, track.Query{Source: m.source, Query: query}, t.Requester())
	if err != nil {
		return track.Concrete{}, fmt.Errorf("search %q: %w", query, err)
	}

	candidates, err := searchCandidates(res)
	if err != nil {
		return track.Concrete{}, err
	}

	best, tier := Closest(p, candidates)
	m.logger.Debug("Matched placeholder",
		zap.String("query", query),
		zap.String("tier", tier.String()),
		zap.String("matchedTitle", best.Title),
		zap.String("matchedAuthor", best.Author),
		zap.Int("candidates", len(candidates)))

	return best, nil
}

// Closest applies the matching tiers to candidates in order; candidates must not be empty.
//
//  1. identity: with a known author, the first candidate uploaded by the author (or the
//     author's "- Topic" channel) or titled exactly like the placeholder, ignoring case;
//  2. duration: with a known duration, the first candidate within DurationTolerance;
//  3. fallback: the first candidate.
func Closest(p track.Placeholder, candidates []track.Concrete) (track.Concrete, Tier) {
	if p.Author != "" {
		if c, ok := findIdentity(p, candidates); ok {
			return c, TierIdentity
		}
	}

	if p.Duration > 0 {
		if c, ok := findDuration(p.Duration, candidates); ok {
			return c, TierDuration
		}
	}

	return candidates[0], TierFallback
}

func findIdentity(p track.Placeholder, candidates []track.Concrete) (track.Concrete, bool) {
	names := channelNames(p.Author)
	authorPatterns := make([]*regexp.Regexp, len(names))
	for i, name := range names {
		authorPatterns[i] = exactPattern(name)
	}
	titlePattern := exactPattern(p.Title)

	for _, c := range candidates {
		author := normalize(c.Author)
		for _, re := range authorPatterns {
			if re.MatchString(author) {
				return c, true
			}
		}
		if titlePattern.MatchString(normalize(c.Title)) {
			return c, true
		}
	}
	return track.Concrete{}, false
}

func findDuration(d time.Duration, candidates []track.Concrete) (track.Concrete, bool) {
	for _, c := range candidates {
		if c.Duration >= d-DurationTolerance && c.Duration <= d+DurationTolerance {
			return c, true
		}
	}
	return track.Concrete{}, false
}

// searchCandidates extracts playable candidates from a text search result.
func searchCandidates(res *track.SearchResult) ([]track.Concrete, error) {
	if res == nil || res.LoadType != track.LoadTypeSearchResult {
		if res != nil && res.Exception != nil {
			return nil, res.Exception
		}
		return nil, &track.Exception{Message: noTracksMessage, Severity: track.SeverityCommon}
	}

	candidates := make([]track.Concrete, 0, len(res.Tracks))
	for _, t := range res.Tracks {
		if c, ok := t.Concrete(); ok {
			candidates = append(candidates, c)
		}
	}

	if len(candidates) == 0 {
		return nil, &track.Exception{Message: noTracksMessage, Severity: track.SeverityCommon}
	}
	return candidates, nil
}

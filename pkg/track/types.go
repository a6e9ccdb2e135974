// Package track defines the track model shared by the link resolver, the matcher and the host searcher.
package track

import (
	"context"
	"time"
)

// LoadType classifies a search result.
type LoadType string

const (
	LoadTypeTrackLoaded    LoadType = "TRACK_LOADED"
	LoadTypePlaylistLoaded LoadType = "PLAYLIST_LOADED"
	LoadTypeSearchResult   LoadType = "SEARCH_RESULT"
	LoadTypeNoMatches      LoadType = "NO_MATCHES"
	LoadTypeLoadFailed     LoadType = "LOAD_FAILED"
)

// Severity grades an Exception the way the audio node reports it.
type Severity string

const (
	SeverityCommon     Severity = "COMMON"
	SeveritySuspicious Severity = "SUSPICIOUS"
	SeverityFault      Severity = "FAULT"
)

// Exception is a structured failure reported by a searcher.
type Exception struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (e *Exception) Error() string {
	return e.Message
}

// Placeholder describes a track that is not yet bound to a playable source.
type Placeholder struct {
	Title     string        // Track title, always set.
	Author    string        // Artist or channel, empty when unknown.
	Duration  time.Duration // Zero when unknown.
	URI       string        // Link to the original item.
	Thumbnail string        // Artwork URL.
}

// Concrete is a playable track produced by a searcher.
type Concrete struct {
	Encoded    string // Opaque playback token.
	Identifier string
	Title      string
	Author     string
	Duration   time.Duration
	URI        string
	Thumbnail  string
	IsSeekable bool
	IsStream   bool
}

// Collection is the output of fetching a link: an ordered list of placeholders and an optional name.
type Collection struct {
	Name   string
	Tracks []Placeholder
}

// Query is a text search request for a searcher.
type Query struct {
	Source string // Search source such as "youtube" or "soundcloud"; empty means the searcher default.
	Query  string
}

// SearchResult is the discriminated result of a search.
type SearchResult struct {
	LoadType  LoadType
	Tracks    []Track
	Name      string // Collection name, set for playlist-like results.
	Exception *Exception
}

// Searcher loads tracks for a query.
type Searcher interface {
	Search(ctx context.Context, query Query, requester any) (*SearchResult, error)
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc func(ctx context.Context, query Query, requester any) (*SearchResult, error)

// Search calls f.
func (f SearcherFunc) Search(ctx context.Context, query Query, requester any) (*SearchResult, error) {
	return f(ctx, query, requester)
}

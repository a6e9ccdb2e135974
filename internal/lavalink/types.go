package lavalink

import (
	"time"

	"spotilink/pkg/track"
)

// LoadResult is the body of a /loadtracks response.
type LoadResult struct {
	LoadType     track.LoadType   `json:"loadType"`
	PlaylistInfo PlaylistInfo     `json:"playlistInfo"`
	Tracks       []Track          `json:"tracks"`
	Exception    *track.Exception `json:"exception,omitempty"`
}

type PlaylistInfo struct {
	Name          string `json:"name,omitempty"`
	SelectedTrack int    `json:"selectedTrack"`
}

type Track struct {
	Encoded string    `json:"encoded"`
	Info    TrackInfo `json:"info"`
}

type TrackInfo struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"` // Milliseconds.
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
}

// SearchResult converts the response into resolved tracks owned by requester.
func (r *LoadResult) SearchResult(requester any) *track.SearchResult {
	res := &track.SearchResult{
		LoadType:  r.LoadType,
		Name:      r.PlaylistInfo.Name,
		Exception: r.Exception,
		Tracks:    make([]track.Track, 0, len(r.Tracks)),
	}

	for _, t := range r.Tracks {
		res.Tracks = append(res.Tracks, track.NewResolved(track.Concrete{
			Encoded:    t.Encoded,
			Identifier: t.Info.Identifier,
			Title:      t.Info.Title,
			Author:     t.Info.Author,
			Duration:   time.Duration(t.Info.Length) * time.Millisecond,
			URI:        t.Info.URI,
			Thumbnail:  t.Info.ArtworkURL,
			IsSeekable: t.Info.IsSeekable,
			IsStream:   t.Info.IsStream,
		}, requester))
	}

	return res
}

// FromSearchResult builds a response body from res. Unresolved tracks are
// reported with their display fields and no playback token.
func FromSearchResult(res *track.SearchResult) LoadResult {
	out := LoadResult{
		LoadType:     res.LoadType,
		PlaylistInfo: PlaylistInfo{Name: res.Name, SelectedTrack: -1},
		Tracks:       make([]Track, 0, len(res.Tracks)),
		Exception:    res.Exception,
	}

	for _, t := range res.Tracks {
		info := TrackInfo{
			Title:      t.Title(),
			Author:     t.Author(),
			Length:     t.Duration().Milliseconds(),
			URI:        t.URI(),
			ArtworkURL: t.Thumbnail(),
		}

		var encoded string
		if c, ok := t.Concrete(); ok {
			encoded = c.Encoded
			info.Identifier = c.Identifier
			info.IsSeekable = c.IsSeekable
			info.IsStream = c.IsStream
		}

		out.Tracks = append(out.Tracks, Track{Encoded: encoded, Info: info})
	}

	return out
}

package lavalink

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"spotilink/internal/core"
	"spotilink/pkg/track"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		query    track.Query
		expected string
	}{
		{"No source is sent verbatim", track.Query{Query: "dQw4w9WgXcQ"}, "dQw4w9WgXcQ"},
		{"No source keeps foreign prefix", track.Query{Query: "bcsearch:foo"}, "bcsearch:foo"},
		{"YouTube", track.Query{Source: "youtube", Query: "song"}, "ytsearch:song"},
		{"YouTube Music", track.Query{Source: "youtubemusic", Query: "song"}, "ytmsearch:song"},
		{"SoundCloud", track.Query{Source: "soundcloud", Query: "song"}, "scsearch:song"},
		{"Custom prefix", track.Query{Source: "dzsearch", Query: "song"}, "dzsearch:song"},
		{"URL passes through", track.Query{Source: "soundcloud", Query: "https://youtu.be/dQw4w9WgXcQ"}, "https://youtu.be/dQw4w9WgXcQ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Identifier(tt.query); got != tt.expected {
				t.Errorf("Identifier() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		identifier string
		expected   track.Query
	}{
		{"ytsearch:song", track.Query{Source: "youtube", Query: "song"}},
		{"ytmsearch:song", track.Query{Source: "youtubemusic", Query: "song"}},
		{"scsearch:a:b", track.Query{Source: "soundcloud", Query: "a:b"}},
		{"spotify:track:abc123", track.Query{Query: "spotify:track:abc123"}},
		{"https://open.spotify.com/album/xyz", track.Query{Query: "https://open.spotify.com/album/xyz"}},
	}

	for _, tt := range tests {
		t.Run(tt.identifier, func(t *testing.T) {
			if got := ParseIdentifier(tt.identifier); got != tt.expected {
				t.Errorf("ParseIdentifier() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestIdentifier_RoundTrip(t *testing.T) {
	identifiers := []string{
		"ytsearch:song",
		"ytmsearch:song",
		"scsearch:a:b",
		"bcsearch:foo",
		"spsearch:song",
		"dQw4w9WgXcQ",
		"spotify:track:abc123",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	}

	for _, id := range identifiers {
		t.Run(id, func(t *testing.T) {
			if got := Identifier(ParseIdentifier(id)); got != id {
				t.Errorf("Identifier(ParseIdentifier(%q)) = %q", id, got)
			}
		})
	}
}

func TestClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != loadTracksPath {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.URL.Query().Get("identifier"); got != "ytsearch:Rick Astley - Never Gonna Give You Up" {
			t.Errorf("identifier = %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"loadType": "SEARCH_RESULT",
			"playlistInfo": {},
			"tracks": [
				{
					"encoded": "QAAAjQIAJVJpY2sgQXN0bGV5",
					"info": {
						"identifier": "dQw4w9WgXcQ",
						"isSeekable": true,
						"author": "Rick Astley",
						"length": 212000,
						"isStream": false,
						"position": 0,
						"title": "Never Gonna Give You Up",
						"uri": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
						"artworkUrl": "https://i.ytimg.com/vi/dQw4w9WgXcQ/hq.jpg"
					}
				}
			]
		}`)
	}))
	defer server.Close()

	client := NewClient(&core.LavalinkConfig{URL: server.URL + "/", Password: "secret"}, zap.NewNop())

	res, err := client.Search(context.Background(), track.Query{Source: "youtube", Query: "Rick Astley - Never Gonna Give You Up"}, "requester")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if res.LoadType != track.LoadTypeSearchResult {
		t.Errorf("LoadType = %s, want SEARCH_RESULT", res.LoadType)
	}
	if len(res.Tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(res.Tracks))
	}

	c, ok := res.Tracks[0].Concrete()
	if !ok {
		t.Fatal("expected a resolved track")
	}
	if c.Identifier != "dQw4w9WgXcQ" || c.Encoded != "QAAAjQIAJVJpY2sgQXN0bGV5" || !c.IsSeekable {
		t.Errorf("unexpected track %+v", c)
	}
	if c.Duration != 212*time.Second {
		t.Errorf("Duration = %v, want 212s", c.Duration)
	}
	if c.Thumbnail != "https://i.ytimg.com/vi/dQw4w9WgXcQ/hq.jpg" {
		t.Errorf("Thumbnail = %q", c.Thumbnail)
	}
	if res.Tracks[0].Requester() != "requester" {
		t.Errorf("Requester() = %v", res.Tracks[0].Requester())
	}
}

func TestClient_SearchFailures(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     bool
		wantMessage string
	}{
		{"Unauthorized", http.StatusUnauthorized, "", true, ""},
		{"Malformed body", http.StatusOK, "{", true, ""},
		{
			name:        "Load failure is a result",
			status:      http.StatusOK,
			body:        `{"loadType":"LOAD_FAILED","tracks":[],"exception":{"message":"Video unavailable","severity":"COMMON"}}`,
			wantMessage: "Video unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := NewClient(&core.LavalinkConfig{URL: server.URL}, zap.NewNop())
			res, err := client.Search(context.Background(), track.Query{Query: "x"}, nil)

			if tt.wantErr {
				if err == nil {
					t.Fatal("Search() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if res.LoadType != track.LoadTypeLoadFailed || res.Exception == nil || res.Exception.Message != tt.wantMessage {
				t.Errorf("unexpected result %+v", res)
			}
		})
	}
}

func TestFromSearchResult(t *testing.T) {
	res := &track.SearchResult{
		LoadType: track.LoadTypePlaylistLoaded,
		Name:     "Road Trip",
		Tracks: []track.Track{
			track.NewUnresolved(track.Placeholder{
				Title:     "First",
				Author:    "Artist",
				Duration:  90 * time.Second,
				URI:       "https://open.spotify.com/track/t1",
				Thumbnail: "https://i.scdn.co/image/t1",
			}, nil),
			track.NewResolved(track.Concrete{
				Encoded:    "enc",
				Identifier: "yt",
				Title:      "Second",
				IsSeekable: true,
			}, nil),
		},
	}

	out := FromSearchResult(res)

	if out.LoadType != track.LoadTypePlaylistLoaded || out.PlaylistInfo.Name != "Road Trip" {
		t.Errorf("unexpected header %+v", out)
	}
	if out.PlaylistInfo.SelectedTrack != -1 {
		t.Errorf("SelectedTrack = %d, want -1", out.PlaylistInfo.SelectedTrack)
	}
	if len(out.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(out.Tracks))
	}

	first := out.Tracks[0]
	if first.Encoded != "" || first.Info.Length != 90000 || first.Info.ArtworkURL != "https://i.scdn.co/image/t1" {
		t.Errorf("unexpected unresolved track %+v", first)
	}
	second := out.Tracks[1]
	if second.Encoded != "enc" || second.Info.Identifier != "yt" || !second.Info.IsSeekable {
		t.Errorf("unexpected resolved track %+v", second)
	}
}

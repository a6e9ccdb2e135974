// Package spotifyurl recognizes Spotify links and URIs and classifies them by item kind.
package spotifyurl

import (
	"fmt"
	"regexp"
	"strings"

	"spotilink/pkg/track"
)

const (
	// OpenBaseURL is the public web player base URL.
	OpenBaseURL = "https://open.spotify.com"
	// URIPrefix prefixes Spotify URIs such as spotify:track:<id>.
	URIPrefix = "spotify:"
	// uriParts is the number of colon separated parts in a Spotify URI.
	uriParts = 3
	// linkSubmatches is the full match plus the kind and ID groups of linkRegex.
	linkSubmatches = 3
)

// Kind is the type of item a Spotify link points at.
type Kind int

const (
	KindTrack Kind = iota + 1
	KindAlbum
	KindPlaylist
	KindArtist
	KindShow
	KindEpisode
)

// ErrUnknownKind is reported for links whose kind has no handler.
var ErrUnknownKind = &track.Exception{
	Message:  `Incorrect type for Spotify URL, must be one of "track", "album", "artist", "show", "episode" or "playlist".`,
	Severity: track.SeverityCommon,
}

// Kinds lists every supported kind.
var Kinds = []Kind{KindTrack, KindAlbum, KindPlaylist, KindArtist, KindShow, KindEpisode}

var linkRegex = regexp.MustCompile(
	`(?:https://open\.spotify\.com/|spotify:)(?:.+)?(track|playlist|artist|episode|show|album)[/:]([A-Za-z0-9]+)`)

func (k Kind) String() string {
	switch k {
	case KindTrack:
		return "track"
	case KindAlbum:
		return "album"
	case KindPlaylist:
		return "playlist"
	case KindArtist:
		return "artist"
	case KindShow:
		return "show"
	case KindEpisode:
		return "episode"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a path segment such as "album" to its Kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	return k >= KindTrack && k <= KindEpisode
}

// LoadType is the load type of a search result for this kind.
// Tracks and episodes load as single items, everything else as a playlist.
func (k Kind) LoadType() track.LoadType {
	if k == KindTrack || k == KindEpisode {
		return track.LoadTypeTrackLoaded
	}
	return track.LoadTypePlaylistLoaded
}

// HasName reports whether results for this kind carry a collection name.
func (k Kind) HasName() bool {
	return k != KindTrack
}

// Link is a parsed Spotify link.
type Link struct {
	Kind Kind
	ID   string
	Raw  string // The query the link was found in.
}

// Key identifies the linked item independently of how it was written.
func (l Link) Key() string {
	return l.Kind.String() + ":" + l.ID
}

// OpenURL is the canonical web player URL of the item.
func (l Link) OpenURL() string {
	return fmt.Sprintf("%s/%s/%s", OpenBaseURL, l.Kind, l.ID)
}

// EmbedURL is the embeddable player page of the item.
func (l Link) EmbedURL() string {
	return fmt.Sprintf("%s/embed/%s/%s", OpenBaseURL, l.Kind, l.ID)
}

// URI is the spotify:<kind>:<id> form of the item.
func (l Link) URI() string {
	return URIPrefix + l.Kind.String() + ":" + l.ID
}

// Parse finds a Spotify link or URI in query.
func Parse(query string) (Link, bool) {
	query = strings.TrimSpace(query)
	matches := linkRegex.FindStringSubmatch(query)
	if len(matches) != linkSubmatches {
		return Link{}, false
	}

	kind, ok := ParseKind(matches[1])
	if !ok {
		return Link{}, false
	}

	return Link{Kind: kind, ID: matches[2], Raw: query}, true
}

// OpenURLFromURI turns spotify:track:<id> into its web player URL.
// Anything that is not a Spotify URI is returned unchanged.
func OpenURLFromURI(uri string) string {
	if !strings.HasPrefix(uri, URIPrefix) {
		return uri
	}

	parts := strings.Split(uri, ":")
	if len(parts) != uriParts || parts[2] == "" {
		return uri
	}

	return fmt.Sprintf("%s/%s/%s", OpenBaseURL, parts[1], parts[2])
}

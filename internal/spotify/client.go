// Package spotify fetches track metadata from the Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"spotilink/internal/core"
	"spotilink/pkg/spotifyurl"
	"spotilink/pkg/track"
)

const (
	// PlaylistPageSize is the number of playlist items requested per page.
	PlaylistPageSize = 100
	// AlbumPageSize is the number of album tracks requested per page.
	AlbumPageSize = 50
	// ShowPageSize is the number of show episodes requested per page.
	ShowPageSize = 50
)

// httpTimeout bounds both token and API requests.
var httpTimeout = 10 * time.Second

// ErrNotAuthenticated is returned when the client was built without credentials.
var ErrNotAuthenticated = errors.New("spotify client not authenticated")

type Client struct {
	config *core.SpotifyConfig
	logger *zap.Logger
	client *spotify.Client
}

// NewClient creates an API client using the client credentials flow. The token
// is fetched lazily and renewed by oauth2 when it expires.
func NewClient(config *core.SpotifyConfig, logger *zap.Logger) (*Client, error) {
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, ErrNotAuthenticated
	}

	tokenURL := config.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}
	credentials := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     tokenURL,
	}

	// oauth2 fetches tokens with the client carried by the context.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: httpTimeout})
	httpClient := credentials.Client(tokenCtx)
	httpClient.Timeout = httpTimeout

	var opts []spotify.ClientOption
	if config.APIBaseURL != "" {
		opts = append(opts, spotify.WithBaseURL(strings.TrimSuffix(config.APIBaseURL, "/")+"/"))
	}

	return &Client{
		config: config,
		logger: logger,
		client: spotify.New(httpClient, opts...),
	}, nil
}

// Fetch loads the placeholders for link.
func (c *Client) Fetch(ctx context.Context, link spotifyurl.Link) (*track.Collection, error) {
	if c.client == nil {
		return nil, ErrNotAuthenticated
	}

	id := spotify.ID(link.ID)

	var (
		collection *track.Collection
		err        error
	)
	switch link.Kind {
	case spotifyurl.KindTrack:
		collection, err = c.getTrack(ctx, id)
	case spotifyurl.KindAlbum:
		collection, err = c.getAlbum(ctx, id)
	case spotifyurl.KindPlaylist:
		collection, err = c.getPlaylist(ctx, id)
	case spotifyurl.KindArtist:
		collection, err = c.getArtist(ctx, id)
	case spotifyurl.KindShow:
		collection, err = c.getShow(ctx, id)
	case spotifyurl.KindEpisode:
		collection, err = c.getEpisode(ctx, id)
	default:
		return nil, spotifyurl.ErrUnknownKind
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", link.Kind, link.ID, err)
	}

	c.logger.Debug("Fetched from Spotify API",
		zap.String("kind", link.Kind.String()),
		zap.String("id", link.ID),
		zap.Int("tracks", len(collection.Tracks)))

	return collection, nil
}

func (c *Client) getTrack(ctx context.Context, id spotify.ID) (*track.Collection, error) {
	t, err := c.client.GetTrack(ctx, id, spotify.Market(c.market()))
	if err != nil {
		return nil, err
	}
	return &track.Collection{Tracks: []track.Placeholder{convertFullTrack(t)}}, nil
}

func (c *Client) getAlbum(ctx context.Context, id spotify.ID) (*track.Collection, error) {
	album, err := c.client.GetAlbum(ctx, id, spotify.Market(c.market()))
	if err != nil {
		return nil, err
	}

	thumbnail := firstImage(album.Images)
	var tracks []track.Placeholder
	offset := 0

	for pages := 0; withinLimit(pages, c.config.AlbumPageLimit); pages++ {
		page, err := c.client.GetAlbumTracks(ctx, id,
			spotify.Limit(AlbumPageSize), spotify.Offset(offset), spotify.Market(c.market()))
		if err != nil {
			return nil, fmt.Errorf("failed to get album tracks: %w", err)
		}

		for i := range page.Tracks {
			tracks = append(tracks, convertSimpleTrack(&page.Tracks[i], thumbnail))
		}

		if len(page.Tracks) < AlbumPageSize {
			break
		}
		offset += AlbumPageSize
	}

	return &track.Collection{Name: album.Name, Tracks: tracks}, nil
}

func (c *Client) getPlaylist(ctx context.Context, id spotify.ID) (*track.Collection, error) {
	playlist, err := c.client.GetPlaylist(ctx, id, spotify.Fields("name"))
	if err != nil {
		return nil, err
	}

	var tracks []track.Placeholder
	offset := 0

	for pages := 0; withinLimit(pages, c.config.PlaylistPageLimit); pages++ {
		items, err := c.client.GetPlaylistItems(ctx, id,
			spotify.Limit(PlaylistPageSize), spotify.Offset(offset), spotify.Market(c.market()))
		if err != nil {
			return nil, fmt.Errorf("failed to get playlist items: %w", err)
		}

		for i := range items.Items {
			// Only tracks; episodes, local files and removed items are skipped.
			if t := items.Items[i].Track.Track; t != nil && t.ID != "" {
				tracks = append(tracks, convertFullTrack(t))
			}
		}

		if len(items.Items) < PlaylistPageSize {
			break
		}
		offset += PlaylistPageSize
	}

	return &track.Collection{Name: playlist.Name, Tracks: tracks}, nil
}

func (c *Client) getArtist(ctx context.Context, id spotify.ID) (*track.Collection, error) {
	artist, err := c.client.GetArtist(ctx, id)
	if err != nil {
		return nil, err
	}

	top, err := c.client.GetArtistsTopTracks(ctx, id, c.market())
	if err != nil {
		return nil, fmt.Errorf("failed to get top tracks: %w", err)
	}

	tracks := make([]track.Placeholder, 0, len(top))
	for i := range top {
		tracks = append(tracks, convertFullTrack(&top[i]))
	}

	return &track.Collection{Name: artist.Name, Tracks: tracks}, nil
}

func (c *Client) getShow(ctx context.Context, id spotify.ID) (*track.Collection, error) {
	show, err := c.client.GetShow(ctx, id, spotify.Market(c.market()))
	if err != nil {
		return nil, err
	}

	author := showAuthor(&show.SimpleShow)
	thumbnail := firstImage(show.Images)
	var tracks []track.Placeholder
	offset := 0

	for pages := 0; withinLimit(pages, c.config.ShowPageLimit); pages++ {
		page, err := c.client.GetShowEpisodes(ctx, string(id),
			spotify.Limit(ShowPageSize), spotify.Offset(offset), spotify.Market(c.market()))
		if err != nil {
			return nil, fmt.Errorf("failed to get show episodes: %w", err)
		}

		for i := range page.Episodes {
			tracks = append(tracks, convertEpisode(&page.Episodes[i], author, thumbnail))
		}

		if len(page.Episodes) < ShowPageSize {
			break
		}
		offset += ShowPageSize
	}

	return &track.Collection{Name: show.Name, Tracks: tracks}, nil
}

func (c *Client) getEpisode(ctx context.Context, id spotify.ID) (*track.Collection, error) {
	episode, err := c.client.GetEpisode(ctx, string(id), spotify.Market(c.market()))
	if err != nil {
		return nil, err
	}

	placeholder := convertEpisode(episode, showAuthor(&episode.Show), firstImage(episode.Show.Images))
	return &track.Collection{Name: episode.Name, Tracks: []track.Placeholder{placeholder}}, nil
}

func (c *Client) market() string {
	if c.config.Market == "" {
		return core.DefaultMarket
	}
	return c.config.Market
}

// withinLimit reports whether another page may be read; a limit of 0 means unlimited.
func withinLimit(pages, limit int) bool {
	return limit == 0 || pages < limit
}

func convertFullTrack(t *spotify.FullTrack) track.Placeholder {
	return convertSimpleTrack(&t.SimpleTrack, firstImage(t.Album.Images))
}

func convertSimpleTrack(t *spotify.SimpleTrack, thumbnail string) track.Placeholder {
	author := ""
	if len(t.Artists) > 0 {
		author = t.Artists[0].Name
	}

	return track.Placeholder{
		Title:     t.Name,
		Author:    author,
		Duration:  time.Duration(t.Duration) * time.Millisecond,
		URI:       externalURL(t.ExternalURLs, "track", t.ID),
		Thumbnail: thumbnail,
	}
}

func convertEpisode(e *spotify.EpisodePage, author, showThumbnail string) track.Placeholder {
	thumbnail := firstImage(e.Images)
	if thumbnail == "" {
		thumbnail = showThumbnail
	}

	return track.Placeholder{
		Title:     e.Name,
		Author:    author,
		Duration:  time.Duration(int(e.Duration_ms)) * time.Millisecond,
		URI:       externalURL(e.ExternalURLs, "episode", e.ID),
		Thumbnail: thumbnail,
	}
}

// showAuthor names a show by its name, falling back to the publisher.
func showAuthor(s *spotify.SimpleShow) string {
	if s.Name != "" {
		return s.Name
	}
	return s.Publisher
}

func externalURL(urls map[string]string, kind string, id spotify.ID) string {
	if u := urls["spotify"]; u != "" {
		return u
	}
	if id == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", spotifyurl.OpenBaseURL, kind, id)
}

func firstImage(images []spotify.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

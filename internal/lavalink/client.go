// Package lavalink talks to a Lavalink audio node, the host searcher placeholders are resolved against.
package lavalink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"spotilink/internal/core"
	"spotilink/pkg/track"
)

const (
	loadTracksPath = "/loadtracks"
	// maxResponseSize caps how much of a response is decoded.
	maxResponseSize = 4 << 20
	defaultTimeout  = 10 * time.Second
)

// searchPrefixes maps search sources to Lavalink identifier prefixes.
var searchPrefixes = map[string]string{
	"youtube":      "ytsearch",
	"youtubemusic": "ytmsearch",
	"soundcloud":   "scsearch",
}

var httpURLRegex = regexp.MustCompile(`^https?://`)

type Client struct {
	baseURL  string
	password string
	client   *http.Client
	logger   *zap.Logger
}

func NewClient(config *core.LavalinkConfig, logger *zap.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:  strings.TrimSuffix(config.URL, "/"),
		password: config.Password,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Identifier turns a query into a Lavalink identifier. Queries without a source and
// URLs are sent as-is; text is prefixed with the source's search prefix, or the source
// itself when it has none.
func Identifier(q track.Query) string {
	if q.Source == "" || httpURLRegex.MatchString(q.Query) {
		return q.Query
	}

	prefix, ok := searchPrefixes[q.Source]
	if !ok {
		prefix = q.Source
	}
	return prefix + ":" + q.Query
}

// ParseIdentifier turns a Lavalink identifier back into a query, mapping known
// search prefixes to their source. Anything else is kept whole.
func ParseIdentifier(identifier string) track.Query {
	for source, prefix := range searchPrefixes {
		if rest, ok := strings.CutPrefix(identifier, prefix+":"); ok {
			return track.Query{Source: source, Query: rest}
		}
	}
	return track.Query{Query: identifier}
}

// Search loads the tracks for q from the node.
func (c *Client) Search(ctx context.Context, q track.Query, requester any) (*track.SearchResult, error) {
	res, err := c.LoadTracks(ctx, Identifier(q))
	if err != nil {
		return nil, err
	}
	return res.SearchResult(requester), nil
}

// LoadTracks calls the node's load endpoint for identifier.
func (c *Client) LoadTracks(ctx context.Context, identifier string) (*LoadResult, error) {
	reqURL := fmt.Sprintf("%s%s?identifier=%s", c.baseURL, loadTracksPath, url.QueryEscape(identifier))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lavalink request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lavalink returned status %d", resp.StatusCode)
	}

	var result LoadResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode lavalink response: %w", err)
	}

	c.logger.Debug("Loaded tracks from Lavalink",
		zap.String("identifier", identifier),
		zap.String("loadType", string(result.LoadType)),
		zap.Int("tracks", len(result.Tracks)))

	return &result, nil
}

package musiclink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"spotilink/pkg/spotifyurl"
	"spotilink/pkg/track"
)

const (
	// DefaultEmbedBaseURL is where embed pages are served.
	DefaultEmbedBaseURL = spotifyurl.OpenBaseURL + "/embed"

	nextDataSelector = "script#__NEXT_DATA__"
	entityPath       = "props.pageProps.state.data.entity"
	artistSeparator  = " & "
)

// ErrNoEmbedData is returned when an embed page carries no item metadata.
var ErrNoEmbedData = errors.New("spotify embed page has no item data")

// Scraper reads item metadata from the public embed player pages, which need no credentials.
type Scraper struct {
	client   *http.Client
	retry    *retryablehttp.Client
	logger   *zap.Logger
	baseURL  string
	retryMax int
	waitMin  time.Duration
	waitMax  time.Duration
}

// ScraperOption configures a Scraper.
type ScraperOption func(*Scraper)

// WithEmbedBaseURL replaces the embed page base URL.
func WithEmbedBaseURL(baseURL string) ScraperOption {
	return func(s *Scraper) {
		s.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) ScraperOption {
	return func(s *Scraper) {
		s.client = client
	}
}

// WithRetry sets how many retries follow a failed attempt and the bounds of the
// wait between them.
func WithRetry(retryMax int, waitMin, waitMax time.Duration) ScraperOption {
	return func(s *Scraper) {
		s.retryMax = retryMax
		s.waitMin = waitMin
		s.waitMax = waitMax
	}
}

// NewScraper creates a Scraper.
func NewScraper(logger *zap.Logger, opts ...ScraperOption) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scraper{
		client:   newHTTPClient(),
		logger:   logger,
		baseURL:  DefaultEmbedBaseURL,
		retryMax: defaultRetryMax,
		waitMin:  defaultWaitMin,
		waitMax:  defaultWaitMax,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.retry = newRetryClient(s.client, logger, s.retryMax, s.waitMin, s.waitMax)
	return s
}

// Fetch loads the placeholders for link from its embed page.
func (s *Scraper) Fetch(ctx context.Context, link spotifyurl.Link) (*track.Collection, error) {
	pageURL := fmt.Sprintf("%s/%s/%s", s.baseURL, link.Kind, link.ID)

	body, err := fetchPage(ctx, s.retry, pageURL, maxPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch embed page: %w", err)
	}

	entity, err := extractEntity(body)
	if err != nil {
		return nil, err
	}

	var collection *track.Collection
	switch link.Kind {
	case spotifyurl.KindTrack, spotifyurl.KindEpisode:
		collection = singleItem(entity, link)
	case spotifyurl.KindAlbum, spotifyurl.KindPlaylist, spotifyurl.KindArtist, spotifyurl.KindShow:
		collection = trackList(entity)
	default:
		return nil, spotifyurl.ErrUnknownKind
	}

	s.logger.Debug("Scraped embed page",
		zap.String("kind", link.Kind.String()),
		zap.String("id", link.ID),
		zap.Int("tracks", len(collection.Tracks)))

	return collection, nil
}

// extractEntity returns the item JSON embedded in the page's Next.js data script.
func extractEntity(page []byte) (gjson.Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to parse embed page: %w", err)
	}

	data := strings.TrimSpace(doc.Find(nextDataSelector).First().Text())
	if data == "" || !gjson.Valid(data) {
		return gjson.Result{}, ErrNoEmbedData
	}

	entity := gjson.Get(data, entityPath)
	if !entity.IsObject() {
		return gjson.Result{}, ErrNoEmbedData
	}
	return entity, nil
}

func singleItem(entity gjson.Result, link spotifyurl.Link) *track.Collection {
	author := joinNames(entity.Get("artists.#.name"))
	if author == "" {
		author = entity.Get("subtitle").String()
	}

	uri := spotifyurl.OpenURLFromURI(entity.Get("uri").String())
	if uri == "" {
		uri = link.OpenURL()
	}

	title := firstString(entity, "name", "title")
	placeholder := track.Placeholder{
		Title:     title,
		Author:    author,
		Duration:  time.Duration(entity.Get("duration").Int()) * time.Millisecond,
		URI:       uri,
		Thumbnail: coverArt(entity),
	}

	collection := &track.Collection{Tracks: []track.Placeholder{placeholder}}
	if link.Kind.HasName() {
		collection.Name = title
	}
	return collection
}

func trackList(entity gjson.Result) *track.Collection {
	thumbnail := coverArt(entity)
	collection := &track.Collection{Name: firstString(entity, "name", "title")}

	entity.Get("trackList").ForEach(func(_, item gjson.Result) bool {
		collection.Tracks = append(collection.Tracks, track.Placeholder{
			Title:     item.Get("title").String(),
			Author:    item.Get("subtitle").String(),
			Duration:  time.Duration(item.Get("duration").Int()) * time.Millisecond,
			URI:       spotifyurl.OpenURLFromURI(item.Get("uri").String()),
			Thumbnail: thumbnail,
		})
		return true
	})

	return collection
}

func coverArt(entity gjson.Result) string {
	if u := entity.Get("coverArt.sources.0.url").String(); u != "" {
		return u
	}
	return entity.Get("visualIdentity.image.0.url").String()
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if s := r.Get(p).String(); s != "" {
			return s
		}
	}
	return ""
}

func joinNames(names gjson.Result) string {
	var parts []string
	for _, n := range names.Array() {
		if s := n.String(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, artistSeparator)
}

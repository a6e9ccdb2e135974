package core

import (
	"fmt"
	"time"
)

const (
	// StrategyAPI fetches metadata from the Spotify Web API.
	StrategyAPI = "API"
	// StrategyScrape reads metadata from the public embed pages.
	StrategyScrape = "scrape"

	// DefaultServerPort is the port the HTTP service listens on.
	DefaultServerPort = 8080
	// DefaultSearchSource is the audio source placeholders are resolved against.
	DefaultSearchSource = "youtube"
	// DefaultMarket is the market passed to market-aware API lookups.
	DefaultMarket = "US"
)

type Config struct {
	Spotify  SpotifyConfig
	Lavalink LavalinkConfig
	Server   ServerConfig
	Log      LogConfig
}

type SpotifyConfig struct {
	// ConvertUnresolved resolves every placeholder while searching instead of on demand.
	ConvertUnresolved bool
	Strategy          string
	ClientID          string
	ClientSecret      string
	// Page limits cap how many pages of a collection are read; 0 reads all of them.
	PlaylistPageLimit int
	AlbumPageLimit    int
	ShowPageLimit     int
	// MaxCacheLifeTime is how often the whole cache is cleared; 0 never clears.
	MaxCacheLifeTime time.Duration
	CacheTrack       bool
	SearchSource     string
	Market           string
	// APIBaseURL and TokenURL override the Spotify endpoints.
	APIBaseURL string
	TokenURL   string
}

type LavalinkConfig struct {
	URL      string
	Password string
	Timeout  time.Duration
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// RateLimitPerMinute caps /loadtracks requests per client; 0 disables it.
	RateLimitPerMinute int
}

type LogConfig struct {
	Level  string
	Format string
}

// ConfigError reports an invalid Spotify option.
type ConfigError struct {
	Option string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("Spotify option %q %s.", e.Option, e.Reason)
}

// UsesAPI reports whether metadata comes from the Web API.
func (c *SpotifyConfig) UsesAPI() bool {
	return c.Strategy == StrategyAPI
}

// Validate checks the options and returns the first problem as a *ConfigError.
func (c *SpotifyConfig) Validate() error {
	switch c.Strategy {
	case "", StrategyScrape:
	case StrategyAPI:
		if c.ClientSecret == "" {
			return &ConfigError{Option: "clientSecret", Reason: "required if strategy set to API"}
		}
		if c.ClientID == "" {
			return &ConfigError{Option: "clientId", Reason: "required if strategy set to API"}
		}
	default:
		return &ConfigError{Option: "strategy", Reason: fmt.Sprintf("must be %q or %q", StrategyAPI, StrategyScrape)}
	}

	limits := []struct {
		option string
		value  int
	}{
		{"playlistPageLimit", c.PlaylistPageLimit},
		{"albumPageLimit", c.AlbumPageLimit},
		{"showPageLimit", c.ShowPageLimit},
	}
	for _, l := range limits {
		if l.value < 0 {
			return &ConfigError{Option: l.option, Reason: "must be a non-negative number"}
		}
	}

	if c.MaxCacheLifeTime < 0 {
		return &ConfigError{Option: "maxCacheLifeTime", Reason: "must be a non-negative number"}
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			Strategy:     StrategyScrape,
			SearchSource: DefaultSearchSource,
			Market:       DefaultMarket,
		},
		Lavalink: LavalinkConfig{
			URL:      "http://localhost:2333",
			Password: "youshallnotpass",
			Timeout:  10 * time.Second,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         DefaultServerPort,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

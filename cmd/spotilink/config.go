package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"spotilink/internal/core"
)

const envPrefix = "SPOTILINK"

// OptionError reports a configuration value that could not be converted.
type OptionError struct {
	Key string
	Err error
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("invalid value for %s: %v", e.Key, e.Err)
}

func (e *OptionError) Unwrap() error {
	return e.Err
}

func registerFlags(flags *pflag.FlagSet) {
	defaults := core.DefaultConfig()

	flags.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "log format (json, console)")

	flags.String("spotify-strategy", defaults.Spotify.Strategy, `metadata strategy ("API" or "scrape")`)
	flags.String("spotify-client-id", "", "Spotify client ID (API strategy)")
	flags.String("spotify-client-secret", "", "Spotify client secret (API strategy)")
	flags.Bool("convert-unresolved", defaults.Spotify.ConvertUnresolved, "Resolve every track before returning a result")
	flags.Int("playlist-page-limit", defaults.Spotify.PlaylistPageLimit, "Maximum playlist pages to fetch (0 = unlimited)")
	flags.Int("album-page-limit", defaults.Spotify.AlbumPageLimit, "Maximum album pages to fetch (0 = unlimited)")
	flags.Int("show-page-limit", defaults.Spotify.ShowPageLimit, "Maximum show pages to fetch (0 = unlimited)")
	flags.Int("max-cache-life-time", 0, "Cache clear period in milliseconds (0 = never)")
	flags.Bool("cache-track", defaults.Spotify.CacheTrack, "Cache fetched Spotify metadata")
	flags.String("search-source", defaults.Spotify.SearchSource, "Source used to resolve placeholders (youtube, youtubemusic, soundcloud)")
	flags.String("market", defaults.Spotify.Market, "Spotify market for API lookups")
	flags.String("spotify-api-url", "", "Override the Spotify Web API base URL")
	flags.String("spotify-token-url", "", "Override the Spotify token URL")

	flags.String("lavalink-url", defaults.Lavalink.URL, "Lavalink node URL")
	flags.String("lavalink-password", defaults.Lavalink.Password, "Lavalink node password")
	flags.Int("lavalink-timeout-secs", int(defaults.Lavalink.Timeout/time.Second), "Lavalink request timeout in seconds")

	flags.String("server-host", defaults.Server.Host, "HTTP server host")
	flags.Int("server-port", defaults.Server.Port, "HTTP server port")
	flags.Int("rate-limit-per-minute", defaults.Server.RateLimitPerMinute, "Maximum load requests per client per minute (0 = unlimited)")
}

func initViper(envFile string) error {
	if err := gotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	return nil
}

// buildConfig layers flags and environment over the defaults. Every value that
// does not convert to its field's type is reported.
func buildConfig() (*core.Config, error) {
	cfg := core.DefaultConfig()

	errs := []error{
		setString("log-level", &cfg.Log.Level),
		setString("log-format", &cfg.Log.Format),

		setString("spotify-strategy", &cfg.Spotify.Strategy),
		setString("spotify-client-id", &cfg.Spotify.ClientID),
		setString("spotify-client-secret", &cfg.Spotify.ClientSecret),
		setBool("convert-unresolved", &cfg.Spotify.ConvertUnresolved),
		setInt("playlist-page-limit", &cfg.Spotify.PlaylistPageLimit),
		setInt("album-page-limit", &cfg.Spotify.AlbumPageLimit),
		setInt("show-page-limit", &cfg.Spotify.ShowPageLimit),
		setDuration("max-cache-life-time", time.Millisecond, &cfg.Spotify.MaxCacheLifeTime),
		setBool("cache-track", &cfg.Spotify.CacheTrack),
		setString("search-source", &cfg.Spotify.SearchSource),
		setString("market", &cfg.Spotify.Market),
		setString("spotify-api-url", &cfg.Spotify.APIBaseURL),
		setString("spotify-token-url", &cfg.Spotify.TokenURL),

		setString("lavalink-url", &cfg.Lavalink.URL),
		setString("lavalink-password", &cfg.Lavalink.Password),
		setDuration("lavalink-timeout-secs", time.Second, &cfg.Lavalink.Timeout),

		setString("server-host", &cfg.Server.Host),
		setInt("server-port", &cfg.Server.Port),
		setInt("rate-limit-per-minute", &cfg.Server.RateLimitPerMinute),
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setString(key string, dst *string) error {
	if !viper.IsSet(key) {
		return nil
	}
	v, err := cast.ToStringE(viper.Get(key))
	if err != nil {
		return &OptionError{Key: key, Err: err}
	}
	*dst = v
	return nil
}

func setBool(key string, dst *bool) error {
	if !viper.IsSet(key) {
		return nil
	}
	v, err := cast.ToBoolE(viper.Get(key))
	if err != nil {
		return &OptionError{Key: key, Err: err}
	}
	*dst = v
	return nil
}

func setInt(key string, dst *int) error {
	if !viper.IsSet(key) {
		return nil
	}
	v, err := cast.ToIntE(viper.Get(key))
	if err != nil {
		return &OptionError{Key: key, Err: err}
	}
	*dst = v
	return nil
}

// setDuration reads an integer count of unit.
func setDuration(key string, unit time.Duration, dst *time.Duration) error {
	var n int
	if err := setInt(key, &n); err != nil || !viper.IsSet(key) {
		return err
	}
	*dst = time.Duration(n) * unit
	return nil
}

func buildLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	if format == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	builtLogger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return builtLogger, nil
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// envExample renders every persistent flag as a commented .env entry.
func envExample(cmd *cobra.Command) string {
	var flags []*pflag.Flag
	cmd.Root().PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name != "config" {
			flags = append(flags, f)
		}
	})
	sort.Slice(flags, func(i, j int) bool { return flags[i].Name < flags[j].Name })

	var content strings.Builder
	content.WriteString("# spotilink configuration\n")
	content.WriteString("# Copy this file to .env and update with your values.\n")
	content.WriteString("# Every variable has a CLI flag equivalent: " + envPrefix + "_<NAME> is --<name>.\n\n")

	for _, f := range flags {
		fmt.Fprintf(&content, "# %s\n%s=%s\n\n", f.Usage, flagToEnvVar(f.Name), f.DefValue)
	}
	return content.String()
}

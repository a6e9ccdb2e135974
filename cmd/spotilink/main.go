// Package main provides the spotilink CLI application entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"spotilink/internal/core"
	httpserver "spotilink/internal/http"
	"spotilink/internal/lavalink"
	"spotilink/pkg/musiclink"
	"spotilink/pkg/track"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "spotilink",
	Short: "spotilink - Spotify links for Lavalink",
	Long: `spotilink resolves Spotify track, album, playlist, artist, show and episode links
into playable tracks by searching for them on a Lavalink node.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a Lavalink compatible load endpoint",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <query>",
	Short: "Resolve a Spotify link or search query and print the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

var envExampleCmd = &cobra.Command{
	Use:               "env-example",
	Short:             "Print an example .env file",
	Args:              cobra.NoArgs,
	PersistentPreRunE: skipSetup,
	RunE:              runEnvExample,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".env", "env file to load")
	registerFlags(rootCmd.PersistentFlags())

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(serveCmd, resolveCmd, envExampleCmd)
}

func setup(*cobra.Command, []string) error {
	if err := initViper(cfgFile); err != nil {
		return err
	}

	cfg, err := buildConfig()
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}
	if err := cfg.Spotify.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	log, err := buildLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	config = cfg
	logger = log
	return nil
}

// skipSetup replaces setup for commands that need neither config nor logger.
func skipSetup(*cobra.Command, []string) error {
	return nil
}

func runEnvExample(cmd *cobra.Command, _ []string) error {
	_, err := fmt.Fprint(cmd.OutOrStdout(), envExample(cmd))
	return err
}

type services struct {
	metrics    *httpserver.Metrics
	plugin     *musiclink.Plugin
	httpServer *httpserver.Server
}

func initializeServices() (*services, error) {
	metrics := httpserver.NewMetrics()

	plugin, err := musiclink.New(config.Spotify, logger.Named("musiclink"), musiclink.WithRecorder(metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to create plugin: %w", err)
	}
	plugin.Load(lavalink.NewClient(&config.Lavalink, logger.Named("lavalink")))

	return &services{
		metrics:    metrics,
		plugin:     plugin,
		httpServer: httpserver.NewServer(&config.Server, plugin, metrics, logger.Named("http")),
	}, nil
}

func runServe(*cobra.Command, []string) error {
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting spotilink",
		zap.String("strategy", config.Spotify.Strategy),
		zap.String("lavalink", config.Lavalink.URL),
		zap.Bool("cache", config.Spotify.CacheTrack))

	svcs, err := initializeServices()
	if err != nil {
		return err
	}

	return runServices(ctx, svcs)
}

func runServices(ctx context.Context, svcs *services) error {
	svcs.plugin.Start()
	defer svcs.plugin.Stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svcs.httpServer.Start(gCtx)
	})

	logger.Info("spotilink started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("spotilink stopped with error", zap.Error(err))
		return err
	}

	logger.Info("spotilink stopped gracefully")
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svcs, err := initializeServices()
	if err != nil {
		return err
	}

	res, err := svcs.plugin.Search(ctx, track.Query{Query: args[0]}, nil)
	if err != nil {
		return fmt.Errorf("failed to resolve %q: %w", args[0], err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(lavalink.FromSearchResult(res))
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"spotilink/internal/core"
	"spotilink/internal/flood"
	"spotilink/internal/lavalink"
	"spotilink/pkg/track"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	config  *core.ServerConfig
	logger  *zap.Logger
	server  *http.Server
	gate    *flood.Floodgate
	metrics *Metrics
}

// NewServer serves searcher's results in the Lavalink load format next to health and metrics endpoints.
func NewServer(config *core.ServerConfig, searcher track.Searcher, metrics *Metrics, logger *zap.Logger) *Server {
	gate := flood.New(config.RateLimitPerMinute)
	mux := setupRoutes(searcher, gate, metrics, logger)

	return &Server{
		config:  config,
		logger:  logger,
		server:  createHTTPServer(config, mux),
		gate:    gate,
		metrics: metrics,
	}
}

func createHTTPServer(config *core.ServerConfig, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func setupRoutes(searcher track.Searcher, gate *flood.Floodgate, metrics *Metrics, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ok", "service": "spotilink"})
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ready", "service": "spotilink"})
	})

	mux.Handle("/metrics", metrics.Handler())

	mux.Handle("/loadtracks", rateLimit(gate, metrics, logger, loadTracksHandler(searcher, logger)))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(indexPage)); err != nil {
			logger.Debug("Failed to write index page", zap.Error(err))
		}
	})

	return mux
}

func loadTracksHandler(searcher track.Searcher, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeJSON(w, logger, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}

		identifier := r.URL.Query().Get("identifier")
		if identifier == "" {
			writeJSON(w, logger, http.StatusBadRequest, map[string]string{"error": "missing identifier"})
			return
		}

		res, err := searcher.Search(r.Context(), lavalink.ParseIdentifier(identifier), nil)
		if err != nil {
			logger.Warn("Search failed", zap.String("identifier", identifier), zap.Error(err))
			status := http.StatusBadGateway
			if errors.Is(err, context.Canceled) {
				status = http.StatusRequestTimeout
			}
			writeJSON(w, logger, status, map[string]string{"error": err.Error()})
			return
		}

		writeJSON(w, logger, http.StatusOK, lavalink.FromSearchResult(res))
	}
}

// rateLimit rejects clients that exceed the floodgate's limit with 429.
func rateLimit(gate *flood.Floodgate, metrics *Metrics, logger *zap.Logger, next http.Handler) http.Handler {
	if !gate.Enabled() {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientAddr(r)
		if !gate.Allow(client) {
			metrics.RateLimitedTotal.Inc()
			logger.Debug("Rate limited client", zap.String("client", client))
			w.Header().Set("Retry-After", "60")
			writeJSON(w, logger, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to write response", zap.Error(err))
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		s.gate.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

func (s *Server) GetMetrics() *Metrics {
	return s.metrics
}

const indexPage = `<!DOCTYPE html>
<html>
<head>
    <title>spotilink</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
    </style>
</head>
<body>
    <h1>spotilink</h1>
    <p>Spotify link resolution in front of a Lavalink node.</p>

    <h2>Endpoints</h2>
    <div class="endpoint"><a href="/loadtracks?identifier=spotify:track:4cOdK2wGLETKBW3PvgPWqT">Load tracks</a> - Lavalink compatible search</div>
    <div class="endpoint"><a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint"><a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint"><a href="/readyz">Ready</a> - Readiness check</div>
</body>
</html>`

package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spotilink/pkg/track"
)

// Metrics collects plugin statistics on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	SearchesTotal     *prometheus.CounterVec
	CacheLookupsTotal *prometheus.CounterVec
	CacheClearsTotal  prometheus.Counter
	CacheEvictedTotal prometheus.Counter
	ResolutionsTotal  *prometheus.CounterVec
	FetchDuration     *prometheus.HistogramVec
	RateLimitedTotal  prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spotilink_searches_total",
				Help: "Total number of Spotify link searches",
			},
			[]string{"kind", "load_type"},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spotilink_cache_lookups_total",
				Help: "Total number of resolution cache lookups",
			},
			[]string{"kind", "result"},
		),
		CacheClearsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spotilink_cache_clears_total",
				Help: "Total number of whole-cache clears",
			},
		),
		CacheEvictedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spotilink_cache_evicted_entries_total",
				Help: "Total number of cache entries dropped by clears",
			},
		),
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spotilink_resolutions_total",
				Help: "Total number of placeholder resolutions",
			},
			[]string{"resolved"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spotilink_fetch_duration_seconds",
				Help:    "Time spent fetching Spotify metadata",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spotilink_rate_limited_requests_total",
				Help: "Total number of load requests rejected by the rate limiter",
			},
		),
	}

	m.registry.MustRegister(
		m.SearchesTotal,
		m.CacheLookupsTotal,
		m.CacheClearsTotal,
		m.CacheEvictedTotal,
		m.ResolutionsTotal,
		m.FetchDuration,
		m.RateLimitedTotal,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CacheHit(kind string) {
	m.CacheLookupsTotal.WithLabelValues(kind, "hit").Inc()
}

func (m *Metrics) CacheMiss(kind string) {
	m.CacheLookupsTotal.WithLabelValues(kind, "miss").Inc()
}

func (m *Metrics) CacheCleared(entries int) {
	m.CacheClearsTotal.Inc()
	m.CacheEvictedTotal.Add(float64(entries))
}

func (m *Metrics) RecordSearch(kind string, loadType track.LoadType) {
	m.SearchesTotal.WithLabelValues(kind, string(loadType)).Inc()
}

func (m *Metrics) RecordResolution(resolved bool) {
	m.ResolutionsTotal.WithLabelValues(strconv.FormatBool(resolved)).Inc()
}

func (m *Metrics) ObserveFetch(strategy string, d time.Duration) {
	m.FetchDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

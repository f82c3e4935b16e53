package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	SearchesTotal    *prometheus.CounterVec
	SearchDuration   *prometheus.HistogramVec
	SearchesInFlight prometheus.Gauge

	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec

	GeocodeRequestsTotal *prometheus.CounterVec

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	RateLimitWaitsTotal *prometheus.CounterVec

	ProvidersHealthy prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		SearchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oppsearch_searches_total",
				Help: "Total number of searches processed",
			},
			[]string{"type", "status"},
		),
		SearchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oppsearch_search_duration_seconds",
				Help:    "Search duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"type"},
		),
		SearchesInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "oppsearch_searches_in_flight",
				Help: "Number of searches currently being processed",
			},
		),

		ProviderRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oppsearch_provider_requests_total",
				Help: "Total number of provider API requests",
			},
			[]string{"provider", "status"},
		),
		ProviderRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oppsearch_provider_request_duration_seconds",
				Help:    "Provider request duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15},
			},
			[]string{"provider"},
		),

		GeocodeRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oppsearch_geocode_requests_total",
				Help: "Total number of geocoding requests",
			},
			[]string{"status"},
		),

		CacheHitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "oppsearch_cache_hits_total",
				Help: "Total number of results cache hits",
			},
		),
		CacheMissesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "oppsearch_cache_misses_total",
				Help: "Total number of results cache misses",
			},
		),

		RateLimitWaitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oppsearch_rate_limit_waits_total",
				Help: "Total number of requests delayed by the rate limiter",
			},
			[]string{"provider"},
		),

		ProvidersHealthy: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "oppsearch_providers_healthy",
				Help: "Number of providers whose last health check succeeded",
			},
		),
	}

	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) RecordSearch(searchType, status string, duration time.Duration) {
	m.SearchesTotal.WithLabelValues(searchType, status).Inc()
	m.SearchDuration.WithLabelValues(searchType).Observe(duration.Seconds())
}

func (m *Metrics) RecordProviderRequest(provider, status string, duration time.Duration) {
	m.ProviderRequestsTotal.WithLabelValues(provider, status).Inc()
	m.ProviderRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) RecordGeocodeRequest(status string) {
	m.GeocodeRequestsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordCacheHit()  { m.CacheHitsTotal.Inc() }
func (m *Metrics) RecordCacheMiss() { m.CacheMissesTotal.Inc() }

func (m *Metrics) RecordRateLimitWait(provider string) {
	m.RateLimitWaitsTotal.WithLabelValues(provider).Inc()
}

func (m *Metrics) SetProvidersHealthy(count float64) {
	m.ProvidersHealthy.Set(count)
}

func (m *Metrics) IncSearchesInFlight() { m.SearchesInFlight.Inc() }
func (m *Metrics) DecSearchesInFlight() { m.SearchesInFlight.Dec() }

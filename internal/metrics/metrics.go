// Package metrics exposes prometheus instrumentation for the catalog client,
// the search and recommendation pipelines, the saved list and the HTTP API.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Catalog client
	CatalogRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinefinder_catalog_requests_total",
			Help: "Catalog requests sent upstream, by endpoint kind and outcome",
		},
		[]string{"endpoint", "outcome"}, // outcome: ok, http_<status>, unreachable, breaker_open
	)

	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinefinder_catalog_request_duration_seconds",
			Help:    "Latency of upstream catalog requests in seconds",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	CatalogCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinefinder_catalog_cache_hits_total",
			Help: "Catalog responses served from the response cache",
		},
		[]string{"backend"},
	)

	CatalogCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinefinder_catalog_cache_misses_total",
			Help: "Catalog lookups that had to go upstream",
		},
		[]string{"backend"},
	)

	CatalogBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cinefinder_catalog_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)

	// Enrichment
	EnrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinefinder_enrichments_total",
			Help: "Detail enrichments, by result (full, degraded)",
		},
		[]string{"result"},
	)

	// Search
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinefinder_search_duration_seconds",
			Help:    "End-to-end search aggregation latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"mode"}, // terms, discovery
	)

	SearchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cinefinder_search_results",
			Help:    "Number of movies returned per search",
			Buckets: []float64{0, 1, 5, 10, 20, 30, 40, 50},
		},
	)

	// Recommendations
	RecommendationsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinefinder_recommendations_served_total",
			Help: "Recommended movies returned, by lens",
		},
		[]string{"lens"},
	)

	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinefinder_recommendation_duration_seconds",
			Help:    "Recommendation latency by lens",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"lens"},
	)

	// Saved list
	SavedListSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cinefinder_saved_movies",
			Help: "Current number of saved movies",
		},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinefinder_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinefinder_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cinefinder_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)
)

// RecordCatalogRequest records one upstream catalog call
func RecordCatalogRequest(endpoint, outcome string, duration time.Duration) {
	kind := EndpointKind(endpoint)
	CatalogRequestsTotal.WithLabelValues(kind, outcome).Inc()
	CatalogRequestDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// StatusOutcome renders an HTTP status as a catalog outcome label
func StatusOutcome(status int) string {
	if status >= 200 && status < 300 {
		return "ok"
	}
	return "http_" + strconv.Itoa(status)
}

// RecordCacheLookup records a response cache hit or miss
func RecordCacheLookup(backend string, hit bool) {
	if hit {
		CatalogCacheHits.WithLabelValues(backend).Inc()
	} else {
		CatalogCacheMisses.WithLabelValues(backend).Inc()
	}
}

// SetBreakerState publishes a breaker state as its numeric value
func SetBreakerState(name string, state int) {
	CatalogBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordEnrichment counts a full or degraded enrichment
func RecordEnrichment(degraded bool) {
	if degraded {
		EnrichmentsTotal.WithLabelValues("degraded").Inc()
	} else {
		EnrichmentsTotal.WithLabelValues("full").Inc()
	}
}

// SetSavedListSize publishes the saved-list length
func SetSavedListSize(n int64) {
	SavedListSize.Set(float64(n))
}

// RecordSearch records a completed search aggregation
func RecordSearch(mode string, results int, duration time.Duration) {
	SearchDuration.WithLabelValues(mode).Observe(duration.Seconds())
	SearchResults.Observe(float64(results))
}

// RecordRecommendation records a completed recommendation call
func RecordRecommendation(lens string, served int, duration time.Duration) {
	RecommendationsServed.WithLabelValues(lens).Add(float64(served))
	RecommendationDuration.WithLabelValues(lens).Observe(duration.Seconds())
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// EndpointKind collapses a catalog endpoint into a low-cardinality label:
// "/movie/550/credits?x=1" becomes "movie/:id/credits".
func EndpointKind(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	parts := strings.Split(strings.Trim(endpoint, "/"), "/")
	for i, p := range parts {
		if _, err := strconv.Atoi(p); err == nil {
			parts[i] = ":id"
		}
	}
	kind := strings.Join(parts, "/")
	if kind == "" {
		return "root"
	}
	return kind
}

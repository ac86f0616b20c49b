// Package telemetry defines the Prometheus metrics exposed by the crawler.
package telemetry

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PagesFetched counts page fetches, labeled by platform and result.
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewcrawler_pages_fetched_total",
			Help: "Total number of page fetches, labeled by platform and result.",
		},
		[]string{"platform", "result"},
	)

	// FetchRetries counts retry attempts issued by the fetcher.
	FetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviewcrawler_fetch_retries_total",
		Help: "Total number of fetch retry attempts.",
	})

	// RestaurantsUpserted counts restaurant rows written, labeled by platform.
	RestaurantsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewcrawler_restaurants_upserted_total",
			Help: "Total number of restaurant upserts, labeled by platform.",
		},
		[]string{"platform"},
	)

	// ReviewsInserted counts new review rows, labeled by platform.
	ReviewsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewcrawler_reviews_inserted_total",
			Help: "Total number of new review rows inserted, labeled by platform.",
		},
		[]string{"platform"},
	)

	// RateLimitDelay observes time spent waiting on the per-host limiter.
	RateLimitDelay = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reviewcrawler_rate_limit_delay_seconds",
			Help:    "Time spent waiting on the per-host rate limiter.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"host"},
	)
)

// Handler returns the HTTP handler serving /metrics.
func Handler() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	return r
}

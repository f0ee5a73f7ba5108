// Package metrics provides Prometheus instrumentation for the Swipess
// matching backend: swipe throughput, fetch retries, scoring latency, and
// cache effectiveness.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SwipesTotal counts recorded swipe decisions, labeled by direction.
	SwipesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swipess_swipes_total",
		Help: "Total number of swipe decisions recorded",
	}, []string{"direction"}) // direction = "left", "right"

	// MatchesTotal counts mutual right-swipe matches created.
	MatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swipess_matches_total",
		Help: "Total number of mutual matches created",
	})

	// FetchRetriesTotal counts retried candidate fetch attempts.
	FetchRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swipess_fetch_retries_total",
		Help: "Total number of retried candidate page fetches",
	})

	// BatchDuration records end-to-end feed batch latency (exclusion lookup,
	// fetch, scoring, ranking) in seconds.
	BatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "swipess_batch_duration_seconds",
		Help:    "Feed batch assembly latency in seconds",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	// BatchCandidates records how many candidates survive ranking per batch.
	BatchCandidates = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "swipess_batch_candidates",
		Help:    "Number of ranked candidates returned per feed batch",
		Buckets: []float64{0, 1, 2, 5, 10, 15, 20},
	})

	// CacheHitsTotal counts read-cache lookups, labeled by outcome.
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swipess_cache_lookups_total",
		Help: "Read-cache lookups by outcome",
	}, []string{"outcome"}) // outcome = "hit", "miss"

	// ExcludedSetSize records the size of the exclusion set per feed batch.
	ExcludedSetSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "swipess_excluded_set_size",
		Help:    "Number of excluded candidate IDs applied per feed batch",
		Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000},
	})
)

func init() {
	prometheus.MustRegister(
		SwipesTotal,
		MatchesTotal,
		FetchRetriesTotal,
		BatchDuration,
		BatchCandidates,
		CacheHitsTotal,
		ExcludedSetSize,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

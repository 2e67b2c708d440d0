// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Cache metrics
	CacheHits           *prometheus.CounterVec
	CacheMisses         *prometheus.CounterVec
	CoalescedRequests   prometheus.Counter
	BackgroundRefreshes prometheus.Counter
	FetchErrors         *prometheus.CounterVec
	CacheEntries        prometheus.Gauge

	// Catalog metrics
	MeterVerifications *prometheus.CounterVec

	// Purchase metrics
	SessionsStarted prometheus.Counter
	QuotesFetched   prometheus.Counter
	TransfersTotal  *prometheus.CounterVec
	PurchasesTotal  *prometheus.CounterVec

	// Polling metrics
	PollTicksSkipped prometheus.Counter
	PollResumes      prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "crypto_billpay"
	}

	return &Metrics{
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache reads served from a fresh entry",
		}, []string{"layer"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache reads that required a network fetch",
		}, []string{"layer"}),
		CoalescedRequests: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coalesced_requests_total",
			Help:      "Fetches that joined an identical in-flight request",
		}),
		BackgroundRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "background_refreshes_total",
			Help:      "Revalidation fetches issued after serving cached data",
		}),
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Fetch failures by mode (foreground/background)",
		}, []string{"mode"}),
		CacheEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Entries currently held by the cache store",
		}),
		MeterVerifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meter_verifications_total",
			Help:      "Meter verification calls by outcome",
		}, []string{"outcome"}),
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_sessions_started_total",
			Help:      "Purchase sessions created",
		}),
		QuotesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_fetched_total",
			Help:      "Fiat-to-crypto quotes fetched",
		}),
		TransfersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "On-chain transfer attempts by outcome",
		}, []string{"outcome"}),
		PurchasesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchases_total",
			Help:      "Purchase submissions by type and outcome",
		}, []string{"type", "outcome"}),
		PollTicksSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_skipped_total",
			Help:      "Poll ticks skipped while inactive or paused",
		}),
		PollResumes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_resumes_total",
			Help:      "Immediate refreshes issued on regaining activity",
		}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

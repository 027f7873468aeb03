// Package metrics holds the Prometheus collectors for sync passes, upstream
// calls and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "releasehub"

var (
	SyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_runs_total",
		Help:      "Catalog sync passes by result",
	}, []string{"result"})

	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sync_duration_seconds",
		Help:      "Duration of catalog sync passes",
		Buckets:   []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
	})

	TitlesInserted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "titles_inserted_total",
		Help:      "Titles first seen in the catalog delta",
	})

	EnrichResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrich_results_total",
		Help:      "Per-title enrichment outcomes",
	}, []string{"outcome"})

	Checkpoint = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sync_checkpoint",
		Help:      "Last committed catalog watermark (unix seconds)",
	})

	LedgerSkipped = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ledger_skipped_titles",
		Help:      "Titles excluded from enrichment by the genre retry ledger",
	})

	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Requests to the store API by endpoint and status",
	}, []string{"endpoint", "status"})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_state",
		Help:      "0 closed, 1 half-open, 2 open",
	}, []string{"name"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "API requests by route and status",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "API request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	FeedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "feed_clients",
		Help:      "Connected websocket feed clients",
	})
)

// RecordSync records one finished pass.
func RecordSync(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	SyncRunsTotal.WithLabelValues(result).Inc()
	SyncDuration.Observe(d.Seconds())
}

func RecordUpstream(endpoint string, status int) {
	s := strconv.Itoa(status)
	if status == 0 {
		s = "error"
	}
	UpstreamRequests.WithLabelValues(endpoint, s).Inc()
}

// GinMiddleware records request count and latency per route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

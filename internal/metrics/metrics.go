// Package metrics provides Prometheus instrumentation for the ScamCheck service.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scamcheck",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scamcheck",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ChecksTotal counts completed risk checks by kind and verdict label.
	ChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scamcheck",
			Name:      "checks_total",
			Help:      "Total risk checks by kind (wallet, link) and verdict label.",
		},
		[]string{"kind", "label"},
	)

	// InvalidInputsTotal counts rejected check inputs by kind.
	InvalidInputsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scamcheck",
			Name:      "invalid_inputs_total",
			Help:      "Total check requests rejected as unrecognized input.",
		},
		[]string{"kind"},
	)

	// EnrichmentRequestsTotal counts upstream enrichment calls by source and result.
	EnrichmentRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scamcheck",
			Name:      "enrichment_requests_total",
			Help:      "Total enrichment lookups by source (explorer, discord, telegram) and result.",
		},
		[]string{"source", "result"},
	)

	// QuotaConsumedTotal counts metered checks that were admitted.
	QuotaConsumedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scamcheck",
		Name:      "quota_consumed_total",
		Help:      "Total metered checks admitted against the daily quota.",
	})

	// QuotaDeniedTotal counts checks rejected for exhausted quota.
	QuotaDeniedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scamcheck",
		Name:      "quota_denied_total",
		Help:      "Total checks rejected because the daily quota was exhausted.",
	})

	// SubscriptionGrantsTotal counts subscription periods granted.
	SubscriptionGrantsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scamcheck",
		Name:      "subscription_grants_total",
		Help:      "Total subscription periods granted.",
	})

	// IPNEventsTotal counts payment callbacks by outcome.
	IPNEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scamcheck",
			Name:      "ipn_events_total",
			Help:      "Total payment callbacks by outcome (granted, duplicate, ignored, rejected).",
		},
		[]string{"outcome"},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scamcheck", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scamcheck", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scamcheck", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// DBWaitCount tracks the total number of connections waited for.
	DBWaitCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scamcheck", Name: "db_wait_count_total",
		Help: "Total number of connections waited for.",
	})
	// DBWaitDuration tracks total time waited for connections.
	DBWaitDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scamcheck", Name: "db_wait_duration_seconds_total",
		Help: "Total time waited for connections in seconds.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scamcheck", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ChecksTotal,
		InvalidInputsTotal,
		EnrichmentRequestsTotal,
		QuotaConsumedTotal,
		QuotaDeniedTotal,
		SubscriptionGrantsTotal,
		IPNEventsTotal,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		DBWaitCount,
		DBWaitDuration,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			DBWaitCount.Set(float64(stats.WaitCount))
			DBWaitDuration.Set(stats.WaitDuration.Seconds())
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

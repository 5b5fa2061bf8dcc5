// Package metrics provides Prometheus instrumentation for the prediction market.
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
			Namespace: "breachmarket",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "breachmarket",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// OraclesRegisteredTotal counts successful oracle registrations.
	OraclesRegisteredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "breachmarket",
		Name:      "oracles_registered_total",
		Help:      "Total oracles registered.",
	})

	// PredictionsSubmittedTotal counts accepted prediction submissions.
	PredictionsSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "breachmarket",
		Name:      "predictions_submitted_total",
		Help:      "Total predictions submitted.",
	})

	// PredictionsResolvedTotal counts resolutions by accuracy verdict.
	PredictionsResolvedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "breachmarket",
			Name:      "predictions_resolved_total",
			Help:      "Total predictions resolved by verdict.",
		},
		[]string{"verdict"}, // accurate | inaccurate
	)

	// RewardsClaimedTotal counts successful reward claims.
	RewardsClaimedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "breachmarket",
		Name:      "rewards_claimed_total",
		Help:      "Total reward claims paid out.",
	})

	// RiskFlagsTotal counts critical risk overrides.
	RiskFlagsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "breachmarket",
		Name:      "risk_flags_total",
		Help:      "Total protocols flagged critical by high-reputation oracles.",
	})

	// TotalStaked tracks the cumulative staked amount in smallest units.
	TotalStaked = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "breachmarket",
		Name:      "total_staked_units",
		Help:      "Cumulative staked amount in smallest units.",
	})

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "breachmarket",
		Name:      "active_websocket_clients",
		Help:      "Number of currently connected WebSocket clients.",
	})

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "breachmarket", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "breachmarket", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "breachmarket", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "breachmarket", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		OraclesRegisteredTotal,
		PredictionsSubmittedTotal,
		PredictionsResolvedTotal,
		RewardsClaimedTotal,
		RiskFlagsTotal,
		TotalStaked,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
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

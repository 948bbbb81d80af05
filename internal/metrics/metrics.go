package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the sync engine:
// - rate limiter queueing and daily ceilings
// - backoff retries against the ad platform
// - response cache efficiency
// - sync batches and per-connection outcomes
// - inbound API requests

var (
	// Rate Limiter Metrics
	RateLimitAcquires = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsync_ratelimit_acquires_total",
			Help: "Total number of token acquisitions by outcome",
		},
		[]string{"outcome"}, // "granted", "daily_exhausted", "cancelled"
	)

	RateLimitWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "adsync_ratelimit_wait_duration_seconds",
			Help:    "Time callers spent queued for a token",
			Buckets: []float64{0.01, 0.1, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	RateLimitThrottles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsync_ratelimit_throttles_total",
			Help: "Total number of buckets zeroed after a platform throttle",
		},
		[]string{"tier"}, // "global", "account"
	)

	// Backoff Metrics
	BackoffRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adsync_backoff_retries_total",
			Help: "Total number of retries after rate-limit errors",
		},
	)

	BackoffDelay = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "adsync_backoff_delay_seconds",
			Help:    "Backoff delays applied before retrying",
			Buckets: []float64{1, 5, 20, 80, 320, 1280},
		},
	)

	BackoffExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adsync_backoff_exhausted_total",
			Help: "Total number of calls that ran out of retries",
		},
	)

	// Response Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsync_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"class"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsync_cache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"class"},
	)

	// Platform API Metrics
	PlatformRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsync_platform_requests_total",
			Help: "Total number of requests sent to the ad platform",
		},
		[]string{"endpoint", "status_code"},
	)

	PlatformRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adsync_platform_request_duration_seconds",
			Help:    "Duration of ad platform requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	PlatformUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adsync_platform_usage_percent",
			Help: "Last usage percentage reported by the platform",
		},
		[]string{"scope"}, // "app", "account"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adsync_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsync_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state changes",
		},
		[]string{"name", "from", "to"},
	)

	// Sync Metrics
	SyncBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adsync_sync_batch_duration_seconds",
			Help:    "Duration of sync batches in seconds",
			Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600},
		},
		[]string{"trigger"},
	)

	SyncConnections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsync_sync_connections_total",
			Help: "Total number of connection syncs by result",
		},
		[]string{"result"}, // "success", "failure", "deactivated"
	)

	SyncMetricsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adsync_sync_metrics_written_total",
			Help: "Total number of metric rows written",
		},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "adsync_sync_last_success_timestamp",
			Help: "Unix timestamp of the last batch with no failed connections",
		},
	)

	SyncModePeriod = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "adsync_sync_mode_period_seconds",
			Help: "Current scheduler trigger period in seconds",
		},
	)

	// API Metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsync_api_requests_total",
			Help: "Total number of inbound API requests",
		},
		[]string{"route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adsync_api_request_duration_seconds",
			Help:    "Duration of inbound API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	APIRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adsync_api_rate_limited_total",
			Help: "Total number of inbound requests refused by the per-caller limiter",
		},
	)
)

// RecordAcquire records the outcome of a token acquisition
func RecordAcquire(outcome string, waited time.Duration) {
	RateLimitAcquires.WithLabelValues(outcome).Inc()
	if waited > 0 {
		RateLimitWaitDuration.Observe(waited.Seconds())
	}
}

// RecordThrottle records a bucket being zeroed
func RecordThrottle(account bool) {
	tier := "global"
	if account {
		tier = "account"
	}
	RateLimitThrottles.WithLabelValues(tier).Inc()
}

// RecordRetry records a backoff retry and its delay
func RecordRetry(delay time.Duration) {
	BackoffRetries.Inc()
	BackoffDelay.Observe(delay.Seconds())
}

// RecordCacheLookup records a response cache hit or miss
func RecordCacheLookup(class string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(class).Inc()
		return
	}
	CacheMisses.WithLabelValues(class).Inc()
}

// RecordPlatformRequest records one ad platform round trip
func RecordPlatformRequest(endpoint, statusCode string, duration time.Duration) {
	PlatformRequests.WithLabelValues(endpoint, statusCode).Inc()
	PlatformRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordBreakerTransition records a circuit breaker state change
func RecordBreakerTransition(name, from, to string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordSyncResult records the outcome of syncing one connection
func RecordSyncResult(success, deactivated bool, metricsWritten int) {
	switch {
	case success:
		SyncConnections.WithLabelValues("success").Inc()
	case deactivated:
		SyncConnections.WithLabelValues("deactivated").Inc()
	default:
		SyncConnections.WithLabelValues("failure").Inc()
	}
	SyncMetricsWritten.Add(float64(metricsWritten))
}

// RecordSyncBatch records a completed batch
func RecordSyncBatch(trigger string, duration time.Duration, failed int) {
	SyncBatchDuration.WithLabelValues(trigger).Observe(duration.Seconds())
	if failed == 0 {
		SyncLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordAPIRequest records one served inbound request. route is the mux
// pattern, not the raw path, to keep label cardinality bounded.
func RecordAPIRequest(route string, statusCode int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	APIRequests.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

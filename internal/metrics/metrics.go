// Package metrics provides Prometheus metrics for the stream supervisor.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hlsnode"

var (
	supervisedStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "supervisor",
		Name:      "streams",
		Help:      "Number of streams with a registered watchdog",
	})

	processStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "process",
		Name:      "starts_total",
		Help:      "Transcoder processes started",
	}, []string{"stream"})

	spawnFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "process",
		Name:      "spawn_failures_total",
		Help:      "Transcoder processes that failed to start",
	}, []string{"stream"})

	processExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "process",
		Name:      "exits_total",
		Help:      "Transcoder processes reaped, by exit code (128+n for signal n)",
	}, []string{"stream", "code"})

	restarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "supervisor",
		Name:      "restarts_total",
		Help:      "Stream restarts by trigger",
	}, []string{"stream", "reason"})

	watchdogStale = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "watchdog",
		Name:      "stale_total",
		Help:      "Times a watchdog found its output stale",
	}, []string{"stream"})

	watchdogScanErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "watchdog",
		Name:      "scan_errors_total",
		Help:      "Output directory scans that failed",
	}, []string{"stream"})

	watchdogOutputAge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "watchdog",
		Name:      "output_age_seconds",
		Help:      "Age of the newest output file at the last scan",
	}, []string{"stream"})

	httpRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "API request latency by operation and status code",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "code"})
)

// Restart reasons.
const (
	ReasonWatchdog = "watchdog"
	ReasonManual   = "manual"
)

// SetSupervisedStreams records the registry size.
func SetSupervisedStreams(n int) {
	supervisedStreams.Set(float64(n))
}

// IncProcessStart counts a successful transcoder start.
func IncProcessStart(stream string) {
	processStarts.WithLabelValues(stream).Inc()
}

// IncSpawnFailure counts a failed transcoder start.
func IncSpawnFailure(stream string) {
	spawnFailures.WithLabelValues(stream).Inc()
}

// IncProcessExit counts a reaped transcoder.
func IncProcessExit(stream string, code int) {
	processExits.WithLabelValues(stream, strconv.Itoa(code)).Inc()
}

// IncRestart counts a restart with its trigger.
func IncRestart(stream, reason string) {
	restarts.WithLabelValues(stream, reason).Inc()
}

// IncWatchdogStale counts a stale detection.
func IncWatchdogStale(stream string) {
	watchdogStale.WithLabelValues(stream).Inc()
}

// IncWatchdogScanError counts a failed directory scan.
func IncWatchdogScanError(stream string) {
	watchdogScanErrors.WithLabelValues(stream).Inc()
}

// SetOutputAge records the newest output file age in seconds.
func SetOutputAge(stream string, seconds float64) {
	watchdogOutputAge.WithLabelValues(stream).Set(seconds)
}

// DeleteStreamMetrics drops the per-stream gauges of a stream that is no
// longer supervised. Counters are kept.
func DeleteStreamMetrics(stream string) {
	watchdogOutputAge.DeleteLabelValues(stream)
}

// ObserveHTTPRequest records one finished API request. SSE operations
// observe the lifetime of the connection.
func ObserveHTTPRequest(operation string, status int, d time.Duration) {
	httpRequests.WithLabelValues(operation, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

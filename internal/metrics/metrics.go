// Package metrics exposes Prometheus instrumentation for the selection
// pipeline and the slim ops HTTP server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satpool_stage_duration_seconds",
			Help:    "Duration of one pipeline stage for one constellation.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"constellation", "stage"},
	)

	tleRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satpool_tle_records_total",
			Help: "Valid TLE records accepted by the loader.",
		},
		[]string{"constellation"},
	)

	tleExcludedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satpool_tle_excluded_total",
			Help: "Malformed TLE records excluded by the loader.",
		},
		[]string{"constellation"},
	)

	propagationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satpool_propagation_failures_total",
			Help: "Per-sample propagation failures.",
		},
		[]string{"constellation"},
	)

	visibilitySamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satpool_visibility_samples_total",
			Help: "Observation samples computed.",
		},
		[]string{"constellation"},
	)

	selectionSwapsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satpool_selection_swaps_total",
			Help: "Repair swaps spent by the selector.",
		},
		[]string{"constellation"},
	)

	tleAgeSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "satpool_tle_age_seconds",
			Help: "Age of the loaded TLE dataset.",
		},
		[]string{"constellation"},
	)

	coverageVisible = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "satpool_coverage_visible",
			Help: "Simultaneously visible pool members over the window.",
		},
		[]string{"constellation", "stat"}, // stat = min | mean | max
	)

	poolMeetsTarget = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "satpool_pool_meets_target",
			Help: "1 when the selected pool satisfies its coverage bounds.",
		},
		[]string{"constellation"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satpool_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satpool_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

func init() {
	prometheus.MustRegister(
		stageDurationSeconds,
		tleRecordsTotal,
		tleExcludedTotal,
		propagationFailuresTotal,
		visibilitySamplesTotal,
		selectionSwapsTotal,
		tleAgeSeconds,
		coverageVisible,
		poolMeetsTarget,
		httpRequestsTotal,
		httpDurationSeconds,
	)
}

// ObserveStage records one pipeline stage duration.
func ObserveStage(constellation, stage string, d time.Duration) {
	stageDurationSeconds.WithLabelValues(constellation, stage).Observe(d.Seconds())
}

// CountTLELoad records loader acceptance and exclusion counts.
func CountTLELoad(constellation string, accepted, excluded int) {
	tleRecordsTotal.WithLabelValues(constellation).Add(float64(accepted))
	tleExcludedTotal.WithLabelValues(constellation).Add(float64(excluded))
}

// CountPropagationFailures records per-sample propagation failures.
func CountPropagationFailures(constellation string, n int) {
	propagationFailuresTotal.WithLabelValues(constellation).Add(float64(n))
}

// CountSamples records computed observation samples.
func CountSamples(constellation string, n int) {
	visibilitySamplesTotal.WithLabelValues(constellation).Add(float64(n))
}

// CountSwaps records repair swaps spent by the selector.
func CountSwaps(constellation string, n int) {
	selectionSwapsTotal.WithLabelValues(constellation).Add(float64(n))
}

// SetTLEAge publishes the age of the loaded TLE dataset.
func SetTLEAge(constellation string, seconds float64) {
	tleAgeSeconds.WithLabelValues(constellation).Set(seconds)
}

// SetCoverage publishes the final visible-count statistics and verdict for
// one constellation.
func SetCoverage(constellation string, minVisible, maxVisible int, meanVisible float64, meetsTarget bool) {
	coverageVisible.WithLabelValues(constellation, "min").Set(float64(minVisible))
	coverageVisible.WithLabelValues(constellation, "mean").Set(meanVisible)
	coverageVisible.WithLabelValues(constellation, "max").Set(float64(maxVisible))
	v := 0.0
	if meetsTarget {
		v = 1
	}
	poolMeetsTarget.WithLabelValues(constellation).Set(v)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// opsRoutes are the only path labels the HTTP metrics may take. Anything
// else collapses to "other" so scanners cannot inflate label cardinality.
var opsRoutes = map[string]bool{
	"/":        true,
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

func normalizeRoute(path string) string {
	if opsRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		path := normalizeRoute(r.URL.Path)
		code := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}

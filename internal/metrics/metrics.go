package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "study_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "study_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Store metrics
	storeWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "study_store_writes_total",
			Help: "Profile writes by final outcome",
		},
		[]string{"outcome"},
	)

	storeWriteAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "study_store_write_attempts",
			Help:    "Attempts used per profile write",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	storeBackoffSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "study_store_backoff_seconds",
			Help:    "Time spent waiting after the store throttled a write",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	// Business logic metrics
	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "study_logins_total",
			Help: "RegisterLogin calls by kind (first, new_session, same_session)",
		},
		[]string{"kind"},
	)
)

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Recorder feeds store and login events into the package collectors.
// It satisfies repositories.RetryObserver and services.LoginRecorder.
type Recorder struct{}

// NewRecorder returns a Recorder
func NewRecorder() *Recorder { return &Recorder{} }

// Backoff records one wait before a retried write
func (*Recorder) Backoff(wait time.Duration) {
	storeBackoffSeconds.Observe(wait.Seconds())
}

// WriteFinished records the outcome of a write and how many attempts it took
func (*Recorder) WriteFinished(outcome string, attempts int) {
	storeWritesTotal.WithLabelValues(outcome).Inc()
	storeWriteAttempts.Observe(float64(attempts))
}

// LoginRegistered counts a RegisterLogin outcome
func (*Recorder) LoginRegistered(kind string) {
	loginsTotal.WithLabelValues(kind).Inc()
}

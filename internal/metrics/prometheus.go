package metrics

import (
	"net/http"
)

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockgate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lockgate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	admissionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockgate_admission_decisions_total",
			Help: "Album admission decisions by reason",
		},
		[]string{"reason"},
	)

	botScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lockgate_bot_score",
			Help:    "Bot risk score of album requests",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockgate_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"class"},
	)

	rateLimitBackendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockgate_rate_limit_backend_errors_total",
			Help: "Limiter backend failures by applied fail policy",
		},
		[]string{"class", "policy"},
	)

	viewCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockgate_view_counter_total",
			Help: "Asynchronous view counter increments by outcome",
		},
		[]string{"outcome"},
	)

	limiterEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lockgate_limiter_entries",
			Help: "Live entries in the in-memory rate-limit table",
		},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, route string, statusCode int, durationSeconds float64) {
	status := "unknown"
	if statusCode >= 200 && statusCode < 300 {
		status = "2xx"
	} else if statusCode >= 300 && statusCode < 400 {
		status = "3xx"
	} else if statusCode >= 400 && statusCode < 500 {
		status = "4xx"
	} else if statusCode >= 500 {
		status = "5xx"
	}

	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

func RecordAdmission(reason string) {
	admissionDecisions.WithLabelValues(reason).Inc()
}

func ObserveBotScore(score float64) {
	botScore.Observe(score)
}

func RecordRateLimited(class string) {
	rateLimitRejections.WithLabelValues(class).Inc()
}

func RecordLimiterError(class, policy string) {
	rateLimitBackendErrors.WithLabelValues(class, policy).Inc()
}

// RecordViewCount records one view counter outcome: ok, failed or dropped.
func RecordViewCount(outcome string) {
	viewCounter.WithLabelValues(outcome).Inc()
}

func SetLimiterEntries(n int) {
	limiterEntries.Set(float64(n))
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

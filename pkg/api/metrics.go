package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the API
type Metrics struct {
	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Conversion metrics
	conversionsTotal    *prometheus.CounterVec
	conversionDuration  *prometheus.HistogramVec
	recordsConverted    prometheus.Counter
	uploadBytesTotal    prometheus.Counter
	headerWarningsTotal prometheus.Counter

	// API key authentication metrics
	authRequestsTotal *prometheus.CounterVec

	// Health check metrics
	healthChecksTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		// HTTP request metrics
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dbz_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dbz_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dbz_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		// Conversion metrics
		conversionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dbz_conversions_total",
				Help: "Total number of conversion requests",
			},
			[]string{"encoding", "status"},
		),

		conversionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dbz_conversion_duration_seconds",
				Help:    "Conversion duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"encoding"},
		),

		recordsConverted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dbz_records_converted_total",
				Help: "Total number of records rendered to text",
			},
		),

		uploadBytesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dbz_upload_bytes_total",
				Help: "Total bytes of uploaded DBZ streams",
			},
		),

		headerWarningsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dbz_header_warnings_total",
				Help: "Total number of recoverable header inconsistencies seen",
			},
		),

		// Authentication metrics
		authRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dbz_auth_requests_total",
				Help: "Total number of authentication requests",
			},
			[]string{"status"},
		),

		// Health check metrics
		healthChecksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dbz_health_checks_total",
				Help: "Total number of health checks",
			},
			[]string{"status"},
		),
	}

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordConversion records one conversion request
func (m *Metrics) RecordConversion(encoding string, records uint64, success bool, duration time.Duration) {
	status := statusSuccess
	if !success {
		status = statusError
	}

	m.conversionsTotal.WithLabelValues(encoding, status).Inc()
	m.conversionDuration.WithLabelValues(encoding).Observe(duration.Seconds())
	m.recordsConverted.Add(float64(records))
}

// RecordUpload records the size of an uploaded stream
func (m *Metrics) RecordUpload(bytes int64) {
	m.uploadBytesTotal.Add(float64(bytes))
}

// RecordHeaderWarnings records recoverable header inconsistencies
func (m *Metrics) RecordHeaderWarnings(n int) {
	m.headerWarningsTotal.Add(float64(n))
}

// RecordAuthRequest records an authentication request
func (m *Metrics) RecordAuthRequest(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.authRequestsTotal.WithLabelValues(status).Inc()
}

// RecordHealthCheck records a health check
func (m *Metrics) RecordHealthCheck(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.healthChecksTotal.WithLabelValues(status).Inc()
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Record request in flight
		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		// Create response writer wrapper to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		// Call the original handler
		handler(rw, r)

		// Record metrics
		duration := time.Since(start)
		m.RecordHTTPRequest(method, endpoint, rw.statusCode, duration)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	wrote      bool
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.wrote = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wrote = true
	return rw.ResponseWriter.Write(b)
}

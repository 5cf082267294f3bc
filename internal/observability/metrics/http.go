package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	recommendationsTotal *prometheus.CounterVec
	suggestions          prometheus.Histogram
	upstreamDuration     *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	serviceLabel := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outfit",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "outfit",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "outfit",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: serviceLabel,
		},
	)
	recommendationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "outfit",
			Name:        "recommendations_total",
			Help:        "Total outfit recommendations by mode and outcome.",
			ConstLabels: serviceLabel,
		},
		[]string{"mode", "status"},
	)
	suggestions := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "outfit",
			Name:        "suggestions",
			Help:        "Distribution of suggestions per successful recommendation.",
			Buckets:     []float64{0, 1, 2, 3, 4, 6, 8, 12},
			ConstLabels: serviceLabel,
		},
	)
	upstreamDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "outfit",
			Subsystem:   "upstream",
			Name:        "duration_seconds",
			Help:        "Text generation call duration in seconds by provider and outcome.",
			Buckets:     []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
			ConstLabels: serviceLabel,
		},
		[]string{"provider", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		recommendationsTotal,
		suggestions,
		upstreamDuration,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		recommendationsTotal: recommendationsTotal,
		suggestions:          suggestions,
		upstreamDuration:     upstreamDuration,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath folds static asset paths into one label value.
func normalizePath(path string) string {
	switch path {
	case "/api", "/api/recommend", "/api/products", "/api/catalog/reload",
		"/products.json", "/healthz", "/metrics", "/openapi.yaml", "/":
		return path
	default:
		return "/static"
	}
}

func (m *HTTPServerMetrics) ObserveRecommendation(mode, status string, suggestions int) {
	if mode == "" {
		mode = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.recommendationsTotal.WithLabelValues(mode, status).Inc()
	if status == "ok" {
		m.suggestions.Observe(float64(suggestions))
	}
}

func (m *HTTPServerMetrics) ObserveUpstream(provider, status string, seconds float64) {
	if provider == "" {
		provider = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.upstreamDuration.WithLabelValues(provider, status).Observe(seconds)
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

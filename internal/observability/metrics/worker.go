package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the recommendation event consumer.
type WorkerMetrics struct {
	registry *prometheus.Registry

	eventsTotal *prometheus.CounterVec
	eventLag    *prometheus.HistogramVec
	baseTotal   *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outfit",
			Subsystem: "worker",
			Name:      "events_total",
			Help:      "Total consumed recommendation events by mode.",
		},
		[]string{"service", "mode"},
	)
	eventLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "outfit",
			Subsystem: "worker",
			Name:      "event_lag_seconds",
			Help:      "Delay between recommendation and event consumption.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service"},
	)
	baseTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outfit",
			Subsystem: "worker",
			Name:      "base_product_total",
			Help:      "Recommendations per base product.",
		},
		[]string{"service", "base_product_id"},
	)

	registry.MustRegister(eventsTotal, eventLag, baseTotal)

	return &WorkerMetrics{
		registry:    registry,
		eventsTotal: eventsTotal,
		eventLag:    eventLag,
		baseTotal:   baseTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveEvent records one consumed event; a negative lag is not observed.
func (m *WorkerMetrics) ObserveEvent(service, baseProductID string, mock bool, lag time.Duration) {
	mode := "model"
	if mock {
		mode = "mock"
	}
	m.eventsTotal.WithLabelValues(service, mode).Inc()
	if baseProductID != "" {
		m.baseTotal.WithLabelValues(service, baseProductID).Inc()
	}
	if lag >= 0 {
		m.eventLag.WithLabelValues(service).Observe(lag.Seconds())
	}
}

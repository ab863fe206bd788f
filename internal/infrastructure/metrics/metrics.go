package metrics

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scholarship-portal/internal/infrastructure/changefeed"
)

// Registry owns the service's Prometheus collectors. A nil *Registry is valid and records nothing.
type Registry struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	activeStreams   *prometheus.GaugeVec
	pushes          *prometheus.CounterVec
	pushFailures    *prometheus.CounterVec
	changeEvents    *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	lifecycle       *prometheus.CounterVec
}

func New() *Registry {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	activeStreams := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stream_connections_active",
		Help: "Open server-sent event connections",
	}, []string{"stream"})

	pushes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_pushes_total",
		Help: "Full-list snapshots pushed to stream clients",
	}, []string{"stream"})

	pushFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_push_failures_total",
		Help: "Snapshots that could not be built or written",
	}, []string{"stream", "stage"})

	changeEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "changefeed_events_total",
		Help: "Change events published per collection",
	}, []string{"collection", "op"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_created_total",
		Help: "Notifications created per category",
	}, []string{"category"})

	lifecycle := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scholarship_transitions_total",
		Help: "Scholarship lifecycle actions",
	}, []string{"action"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, activeStreams, pushes, pushFailures,
		changeEvents, notifications, lifecycle, goroutines)

	return &Registry{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		activeStreams:   activeStreams,
		pushes:          pushes,
		pushFailures:    pushFailures,
		changeEvents:    changeEvents,
		notifications:   notifications,
		lifecycle:       lifecycle,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *Registry) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

func (m *Registry) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

func (m *Registry) StreamOpened(stream string) {
	if m == nil {
		return
	}
	m.activeStreams.WithLabelValues(stream).Inc()
}

func (m *Registry) StreamClosed(stream string) {
	if m == nil {
		return
	}
	m.activeStreams.WithLabelValues(stream).Dec()
}

func (m *Registry) Pushed(stream string) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues(stream).Inc()
}

// PushFailed counts a failed cycle. stage is "query" or "send".
func (m *Registry) PushFailed(stream, stage string) {
	if m == nil {
		return
	}
	m.pushFailures.WithLabelValues(stream, stage).Inc()
}

// ObserveChange is shaped to plug into changefeed.WithObserver.
func (m *Registry) ObserveChange(e changefeed.Event) {
	if m == nil {
		return
	}
	m.changeEvents.WithLabelValues(string(e.Collection), string(e.Op)).Inc()
}

func (m *Registry) NotificationCreated(category string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(category).Inc()
}

// ScholarshipTransition counts submit, verify and revoke actions.
func (m *Registry) ScholarshipTransition(action string) {
	if m == nil {
		return
	}
	m.lifecycle.WithLabelValues(action).Inc()
}

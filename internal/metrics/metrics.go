package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeStale   = "stale"
)

// Collector owns a private registry so tests can build as many as they like.
// All methods are safe on a nil Collector.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	BackendDuration  *prometheus.HistogramVec
	Uploads          *prometheus.CounterVec
	Questions        *prometheus.CounterVec
	StudyGenerations *prometheus.CounterVec
	AuthEvents       *prometheus.CounterVec
	Workspaces       prometheus.Gauge
}

// NewCollector builds and registers every metric under namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status.",
		}, []string{"method", "route", "status"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Latency of calls to the notes and auth backends.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"backend", "endpoint", "outcome"}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "File uploads by outcome.",
		}, []string{"outcome"}),
		Questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_total",
			Help:      "Chat questions by outcome.",
		}, []string{"outcome"}),
		StudyGenerations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "study_generations_total",
			Help:      "Study question generations by outcome.",
		}, []string{"outcome"}),
		AuthEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Login, registration and logout attempts by outcome.",
		}, []string{"action", "outcome"}),
		Workspaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workspaces_active",
			Help:      "Workspaces held in memory.",
		}),
	}
	c.registry.MustRegister(
		c.HTTPRequests,
		c.BackendDuration,
		c.Uploads,
		c.Questions,
		c.StudyGenerations,
		c.AuthEvents,
		c.Workspaces,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) ObserveBackend(backend, endpoint, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.BackendDuration.WithLabelValues(backend, endpoint, outcome).Observe(elapsed.Seconds())
}

func (c *Collector) IncUpload(outcome string) {
	if c == nil {
		return
	}
	c.Uploads.WithLabelValues(outcome).Inc()
}

func (c *Collector) IncQuestion(outcome string) {
	if c == nil {
		return
	}
	c.Questions.WithLabelValues(outcome).Inc()
}

func (c *Collector) IncStudyGeneration(outcome string) {
	if c == nil {
		return
	}
	c.StudyGenerations.WithLabelValues(outcome).Inc()
}

func (c *Collector) IncAuth(action, outcome string) {
	if c == nil {
		return
	}
	c.AuthEvents.WithLabelValues(action, outcome).Inc()
}

func (c *Collector) IncHTTP(method, route string, status int) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, statusClass(status)).Inc()
}

func (c *Collector) SetWorkspaces(n int) {
	if c == nil {
		return
	}
	c.Workspaces.Set(float64(n))
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

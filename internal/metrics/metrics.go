// Package metrics exposes Prometheus instrumentation for the note lifecycle.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/voxnotes/internal/apperr"
)

// Metrics holds the collectors on a private registry. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	operations    *prometheus.CounterVec
	transcription *prometheus.HistogramVec
	compensations *prometheus.CounterVec
	swept         prometheus.Counter
	requests      *prometheus.HistogramVec
}

// New registers the collectors under namespace.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "note_operations_total",
			Help:      "Note lifecycle operations by outcome.",
		}, []string{"op", "result"}),
		transcription: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_duration_seconds",
			Help:      "Latency of speech engine calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}, []string{"task", "result"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalize_compensations_total",
			Help:      "Artifacts removed after a failed finalize, by outcome.",
		}, []string{"result"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "temp_recordings_swept_total",
			Help:      "Orphan temp recordings removed by the sweeper.",
		}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
	m.registry.MustRegister(
		m.operations, m.transcription, m.compensations, m.swept, m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Operation counts one lifecycle operation; failures are labelled by error kind.
func (m *Metrics) Operation(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result(err)).Inc()
}

// Transcription records the latency of one engine call.
func (m *Metrics) Transcription(task string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.transcription.WithLabelValues(task, result(err)).Observe(time.Since(started).Seconds())
}

// Compensation counts one compensating delete.
func (m *Metrics) Compensation(err error) {
	if m == nil {
		return
	}
	r := "ok"
	if err != nil {
		r = "failed"
	}
	m.compensations.WithLabelValues(r).Inc()
}

// Swept counts removed temp recordings.
func (m *Metrics) Swept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.Add(float64(n))
}

// Middleware records request latency labelled by the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	if kind, ok := apperr.KindOf(err); ok {
		return string(kind)
	}
	return "error"
}

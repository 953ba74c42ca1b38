package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"imaged/internal/manager"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imaged",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imaged",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 10),
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "imaged",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
	)

	modelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imaged",
			Subsystem: "model",
			Name:      "loads_total",
			Help:      "Model load attempts by result",
		},
		[]string{"result"},
	)

	modelLoadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "imaged",
			Subsystem: "model",
			Name:      "load_duration_seconds",
			Help:      "Duration of model loads in seconds",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	modelUnloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imaged",
			Subsystem: "model",
			Name:      "unloads_total",
			Help:      "Model unloads by reason and result",
		},
		[]string{"reason", "result"},
	)

	modelResident = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "imaged",
			Subsystem: "model",
			Name:      "resident",
			Help:      "1 while the model resource is loaded",
		},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imaged",
			Subsystem: "generate",
			Name:      "total",
			Help:      "Generations by result (ok, error, abandoned)",
		},
		[]string{"result"},
	)

	generationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "imaged",
			Subsystem: "generate",
			Name:      "duration_seconds",
			Help:      "Duration of Generate calls in seconds, including cold loads",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160, 320},
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal, httpRequestDuration, httpInflight,
		modelLoadsTotal, modelLoadDuration, modelUnloadsTotal, modelResident,
		generationsTotal, generationDuration,
	)
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware instruments requests for Prometheus
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInflight.Inc()
		defer httpInflight.Dec()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)
		// pattern is only known once chi has routed the request
		path := routePatternOrPath(r)
		statusLabel := strconv.Itoa(sr.status)
		httpRequestsTotal.WithLabelValues(path, r.Method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, r.Method, statusLabel).Observe(time.Since(start).Seconds())
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// MetricsPublisher turns manager lifecycle events into Prometheus metrics.
type MetricsPublisher struct{}

func (MetricsPublisher) Publish(e manager.Event) {
	switch e.Name {
	case manager.EventLoadReady:
		modelLoadsTotal.WithLabelValues("ok").Inc()
		modelLoadDuration.Observe(durSeconds(e))
		modelResident.Set(1)
	case manager.EventLoadError:
		modelLoadsTotal.WithLabelValues("error").Inc()
		modelLoadDuration.Observe(durSeconds(e))
	case manager.EventUnloadDone:
		modelUnloadsTotal.WithLabelValues(reason(e), "ok").Inc()
		modelResident.Set(0)
	case manager.EventUnloadError:
		modelUnloadsTotal.WithLabelValues(reason(e), "error").Inc()
		modelResident.Set(0)
	case manager.EventGenerateDone:
		generationsTotal.WithLabelValues("ok").Inc()
		generationDuration.Observe(durSeconds(e))
	case manager.EventGenerateError:
		generationsTotal.WithLabelValues("error").Inc()
		generationDuration.Observe(durSeconds(e))
	case manager.EventGenerateAbandoned:
		generationsTotal.WithLabelValues("abandoned").Inc()
	}
}

func durSeconds(e manager.Event) float64 {
	if ms, ok := e.Fields["dur_ms"].(int64); ok {
		return float64(ms) / 1000
	}
	return 0
}

func reason(e manager.Event) string {
	if r, ok := e.Fields["reason"].(string); ok && r != "" {
		return r
	}
	return "unspecified"
}

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
)

// Collector owns a private registry so several servers (and tests) can coexist
// in one process. A nil *Collector records nothing.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	generationsTotal    *prometheus.CounterVec
	stepDuration        *prometheus.HistogramVec
	stepFailures        *prometheus.CounterVec
	ledgerOpsTotal      *prometheus.CounterVec
}

func New() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "themeshot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	c.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "themeshot_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120},
		},
		[]string{"method", "route"},
	)
	c.generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "themeshot_generations_total",
			Help: "Generation runs by pipeline and outcome",
		},
		[]string{"pipeline", "outcome"},
	)
	c.stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "themeshot_generation_step_duration_seconds",
			Help:    "Provider call duration per pipeline step",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 120},
		},
		[]string{"provider", "step"},
	)
	c.stepFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "themeshot_generation_step_failures_total",
			Help: "Failed provider calls per pipeline step",
		},
		[]string{"provider", "step"},
	)
	c.ledgerOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "themeshot_ledger_operations_total",
			Help: "Credit ledger operations by result",
		},
		[]string{"operation", "result"},
	)

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.httpRequestsTotal,
		c.httpRequestDuration,
		c.generationsTotal,
		c.stepDuration,
		c.stepFailures,
		c.ledgerOpsTotal,
	)
	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by the chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (c *Collector) GenerationFinished(pipeline, outcome string) {
	if c == nil {
		return
	}
	c.generationsTotal.WithLabelValues(pipeline, outcome).Inc()
}

func (c *Collector) StepObserved(provider, step string, d time.Duration, failed bool) {
	if c == nil {
		return
	}
	c.stepDuration.WithLabelValues(provider, step).Observe(d.Seconds())
	if failed {
		c.stepFailures.WithLabelValues(provider, step).Inc()
	}
}

func (c *Collector) LedgerOperation(operation, result string) {
	if c == nil {
		return
	}
	c.ledgerOpsTotal.WithLabelValues(operation, result).Inc()
}

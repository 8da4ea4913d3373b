package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	authTotal       *prometheus.CounterVec
	mergeTotal      *prometheus.CounterVec
	recordsChanged  *prometheus.CounterVec
	queryTotal      *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		authTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "auth_total", Help: "Authorization outcomes by result"},
			[]string{"result"},
		),
		mergeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "merge_batches_total", Help: "Merged batches by table and status"},
			[]string{"table", "status"},
		),
		recordsChanged: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "records_changed_total", Help: "Records whose stored state changed"},
			[]string{"table"},
		),
		queryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "queries_total", Help: "Table reads by table and status"},
			[]string{"table", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Help: "Request latency", Buckets: prometheus.DefBuckets},
			[]string{"method", "route", "code"},
		),
	}
	reg.MustRegister(m.authTotal, m.mergeTotal, m.recordsChanged, m.queryTotal, m.requestDuration)
	return m
}

// ObserveAuth counts an authorization attempt. result is "ok" or the failure
// kind.
func (m *Metrics) ObserveAuth(result string) {
	if m == nil {
		return
	}
	m.authTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveMerge(table, status string, changed int) {
	if m == nil {
		return
	}
	m.mergeTotal.WithLabelValues(table, status).Inc()
	if changed > 0 {
		m.recordsChanged.WithLabelValues(table).Add(float64(changed))
	}
}

func (m *Metrics) ObserveQuery(table, status string) {
	if m == nil {
		return
	}
	m.queryTotal.WithLabelValues(table, status).Inc()
}

// Middleware records request latency labelled by chi route pattern.
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
		m.requestDuration.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Observe(time.Since(start).Seconds())
	})
}

// MetricsServer exposes a private registry on /metrics.
type MetricsServer struct {
	Metrics  *Metrics
	registry *prometheus.Registry
	srv      *http.Server
}

// New creates the registry, the gateway collectors and the HTTP server that
// serves them on addr.
func New(namespace, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &MetricsServer{
		Metrics:  NewMetrics(namespace, registry),
		registry: registry,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Handler returns the /metrics handler.
func (s *MetricsServer) Handler() http.Handler {
	return s.srv.Handler
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics groups the collectors of one process. Each instance owns its
// registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	uploadsTotal   *prometheus.CounterVec
	uploadDuration *prometheus.HistogramVec
	uploadBytes    *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		uploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "media_uploads_total",
			Help: "Total number of upload attempts by group and result.",
		}, []string{"group", "result"}),
		uploadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "media_upload_duration_seconds",
			Help:    "Duration of upload attempts in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
		uploadBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "media_upload_bytes_total",
			Help: "Bytes successfully transferred to the media host.",
		}, []string{"group"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// ObserveUpload records one finished upload attempt. A nil receiver is a no-op.
func (m *Metrics) ObserveUpload(group, result string, size int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(group, result).Inc()
	m.uploadDuration.WithLabelValues(result).Observe(elapsed.Seconds())
	if result == ResultSuccess && size > 0 {
		m.uploadBytes.WithLabelValues(group).Add(float64(size))
	}
}

// Middleware counts requests by chi route pattern rather than raw path,
// so object names never become label values.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		m.httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"automation/pkg/logger"
)

var httpRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "automation_http_request_seconds",
	Help:    "HTTP request latency by route and status",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route", "status"})

// recorder remembers the first status written. A second WriteHeader is
// dropped and logged instead of reaching net/http's superfluous-call warning.
type recorder struct {
	http.ResponseWriter
	log    logger.Sugared
	status int
	path   string
}

func (r *recorder) WriteHeader(code int) {
	if r.status != 0 {
		r.log.Warnw("duplicate WriteHeader", "path", r.path, "first", r.status, "second", code)
		return
	}
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

// AccessLog logs one line per request and records latency under the chi route pattern.
func AccessLog(log logger.Sugared) func(http.Handler) http.Handler {
	log = logger.Named(log, "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &recorder{ResponseWriter: w, log: log, path: r.URL.Path}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			elapsed := time.Since(start)
			httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Observe(elapsed.Seconds())
			log.Infow("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", elapsed.Milliseconds(),
				"request_id", RequestIDFrom(r.Context()),
			)
		})
	}
}

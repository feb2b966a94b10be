package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"food-diary/internal/handler/http/pathutil"
	"food-diary/internal/handler/http/responsewriter"
	"food-diary/internal/observability/metrics"
)

var (
	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Current number of HTTP requests being served",
	})

	// Declared sizes only; chunked uploads report -1 and are skipped.
	requestSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_size_bytes",
		Help:    "Declared HTTP request body size in bytes",
		Buckets: prometheus.ExponentialBuckets(256, 4, 9),
	}, []string{"method", "path"})
)

// MetricsMiddleware records request count, latency and sizes per route
// template. Gate rejections are counted here too, under their 4xx status.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inFlight.Inc()
		defer inFlight.Dec()

		route := pathutil.NormalizePath(r.URL.Path)
		if r.ContentLength > 0 {
			requestSize.WithLabelValues(r.Method, route).Observe(float64(r.ContentLength))
		}

		start := time.Now()
		rec := responsewriter.Wrap(w)
		next.ServeHTTP(rec, r)

		metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(rec.Status()), time.Since(start), rec.Bytes())
	})
}

// MetricsHandler serves the default registry merged with extra gatherers,
// such as the rate limiter's own registry.
func MetricsHandler(extra ...prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(append(prometheus.Gatherers{prometheus.DefaultGatherer}, extra...), promhttp.HandlerOpts{})
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ResizeRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "resize_requests_total",
			Help: "Total number of resize operations started.",
		},
	)

	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "result_cache_hits_total",
			Help: "Total number of result cache hits.",
		},
	)

	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "result_cache_misses_total",
			Help: "Total number of result cache misses.",
		},
	)

	SourceFetchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "source_fetches_total",
			Help: "Total number of completed source image downloads.",
		},
	)

	ArtifactPutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "artifact_puts_total",
			Help: "Total number of artifacts written to the object store.",
		},
	)

	ActiveDownloads = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_downloads",
			Help: "Source downloads currently in flight.",
		},
	)

	ActiveProcessing = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_processing",
			Help: "Transcode jobs currently admitted to the CPU pool.",
		},
	)

	// Histogram: gateway HTTP latency in seconds.
	GatewayLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_latency_seconds",
			Help:    "HTTP request latency for the gateway in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"path", "method", "status_code"},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		ResizeRequestsTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		SourceFetchesTotal,
		ArtifactPutsTotal,
		ActiveDownloads,
		ActiveProcessing,
		GatewayLatencySeconds,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures gateway latency for each HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		GatewayLatencySeconds.
			WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

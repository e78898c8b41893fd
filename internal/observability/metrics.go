package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the Prometheus registry and every instrument the engine
// records into. A dedicated registry keeps the scrape output limited to
// our own series instead of the default Go collector noise.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	SyncBatchSize *prometheus.HistogramVec
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
}

// NewMetrics registers the instrument set on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	auto := promauto.With(registry)

	return &Metrics{
		registry: registry,
		HTTPRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kaizen",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kaizen",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		SyncBatchSize: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kaizen",
			Subsystem: "sync",
			Name:      "batch_size",
			Help:      "Number of changed records returned per sync request.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}, []string{"collection"}),
		CacheHits: auto.NewCounter(prometheus.CounterOpts{
			Namespace: "kaizen",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Schema reads served from Redis.",
		}),
		CacheMisses: auto.NewCounter(prometheus.CounterOpts{
			Namespace: "kaizen",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Schema reads that fell through to PostgreSQL.",
		}),
	}
}

// ObserveWorker registers scrape-time views over the recompute queue. The
// funcs are called on every scrape, so they must be cheap and safe to call
// from any goroutine.
func (m *Metrics) ObserveWorker(depth func() int, processed, dropped func() uint64) {
	auto := promauto.With(m.registry)

	auto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "kaizen",
		Subsystem: "worker",
		Name:      "queue_depth",
		Help:      "Recompute jobs currently waiting in the buffer.",
	}, func() float64 { return float64(depth()) })
	auto.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "kaizen",
		Subsystem: "worker",
		Name:      "jobs_processed_total",
		Help:      "Recompute jobs handled since startup.",
	}, func() float64 { return float64(processed()) })
	auto.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "kaizen",
		Subsystem: "worker",
		Name:      "jobs_dropped_total",
		Help:      "Recompute jobs discarded because the buffer was full.",
	}, func() float64 { return float64(dropped()) })
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

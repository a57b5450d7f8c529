// Package metrics exposes prometheus instrumentation for the HTTP layer and
// the refresh pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles all collectors behind one prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	RefreshRunsTotal     *prometheus.CounterVec
	RefreshDuration      prometheus.Histogram
	DatasetRecords       prometheus.Gauge
	DatasetSkippedRows   prometheus.Gauge
	DatasetGeneration    prometheus.Gauge
	LastRefreshTimestamp prometheus.Gauge
}

// NewRegistry creates a registry with all collectors registered, including
// the standard Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{registry: reg}

	r.HTTPRequestsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "fibermirror_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	r.HTTPRequestDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fibermirror_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	r.HTTPRequestsInFlight = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "fibermirror_http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
	)

	r.RefreshRunsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "fibermirror_refresh_runs_total",
			Help: "Total number of refresh cycles by outcome",
		},
		[]string{"result"}, // success, error, rejected
	)

	r.RefreshDuration = promauto.With(reg).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fibermirror_refresh_duration_seconds",
			Help:    "Duration of complete refresh cycles in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	r.DatasetRecords = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "fibermirror_dataset_records",
			Help: "Record count of the currently published snapshot",
		},
	)

	r.DatasetSkippedRows = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "fibermirror_dataset_skipped_rows",
			Help: "Rows dropped by validation during the last successful refresh",
		},
	)

	r.DatasetGeneration = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "fibermirror_dataset_generation",
			Help: "Generation counter of the currently published snapshot",
		},
	)

	r.LastRefreshTimestamp = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "fibermirror_dataset_last_refresh_timestamp_seconds",
			Help: "Unix timestamp of the last successful refresh",
		},
	)

	return r
}

// Handler returns the /metrics HTTP handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed HTTP request.
func (r *Registry) ObserveRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveRefresh records one finished refresh cycle.
func (r *Registry) ObserveRefresh(result string, duration time.Duration) {
	r.RefreshRunsTotal.WithLabelValues(result).Inc()
	if result == "success" || result == "error" {
		r.RefreshDuration.Observe(duration.Seconds())
	}
}

// SetSnapshot publishes gauge values for a freshly published snapshot.
func (r *Registry) SetSnapshot(records, skipped int, generation uint64, at time.Time) {
	r.DatasetRecords.Set(float64(records))
	r.DatasetSkippedRows.Set(float64(skipped))
	r.DatasetGeneration.Set(float64(generation))
	r.LastRefreshTimestamp.Set(float64(at.Unix()))
}

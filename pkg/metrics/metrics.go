// Package metrics provides Prometheus metrics for the price resolver.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ResolutionsTotal is a counter of successful resolutions by selected source.
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolutions_total",
			Help: "Total number of successful price resolutions",
		},
		[]string{"asset", "source"},
	)

	// ResolutionFailuresTotal is a counter of failed resolutions.
	ResolutionFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolution_failures_total",
			Help: "Total number of failed price resolutions",
		},
		[]string{"asset", "reason"},
	)

	// SourceReadsTotal is a counter of reader calls by outcome.
	SourceReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_reads_total",
			Help: "Total number of price source reads",
		},
		[]string{"source", "status"},
	)

	// SourceReadDuration is a histogram of reader latencies.
	SourceReadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_read_duration_seconds",
			Help:    "Duration of price source reads",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// SourceHealth is a gauge of the health status of price sources.
	SourceHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_health",
			Help: "Health status of price sources (1=healthy, 0=unhealthy)",
		},
		[]string{"source", "type"},
	)

	// AssetPrice is a gauge of the last resolved price.
	AssetPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "asset_price",
			Help: "Last resolved price of an asset",
		},
		[]string{"asset"},
	)

	// AssetLastUpdate is a gauge of the last resolution timestamp.
	AssetLastUpdate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "asset_last_update_timestamp",
			Help: "Unix timestamp of the last resolution of an asset",
		},
		[]string{"asset"},
	)

	// ConfigUpdatesTotal is a counter of priority and source changes.
	ConfigUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "config_updates_total",
			Help: "Total number of record configuration updates",
		},
		[]string{"asset", "kind"},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint"},
	)

	initOnce sync.Once
)

// Init registers all metrics with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			ResolutionsTotal,
			ResolutionFailuresTotal,
			SourceReadsTotal,
			SourceReadDuration,
			SourceHealth,
			AssetPrice,
			AssetLastUpdate,
			ConfigUpdatesTotal,
			HTTPRequestsTotal,
			HTTPRequestDuration,
		)
	})
}

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ServeHTTP serves Prometheus metrics on the specified address.
func ServeHTTP(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordResolution records a successful resolution.
func RecordResolution(asset, source string, price float64, timestamp time.Time) {
	ResolutionsTotal.WithLabelValues(asset, source).Inc()
	AssetPrice.WithLabelValues(asset).Set(price)
	AssetLastUpdate.WithLabelValues(asset).Set(float64(timestamp.Unix()))
}

// RecordResolutionFailure records a failed resolution.
func RecordResolutionFailure(asset, reason string) {
	ResolutionFailuresTotal.WithLabelValues(asset, reason).Inc()
}

// RecordSourceRead records one reader call.
func RecordSourceRead(source string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SourceReadsTotal.WithLabelValues(source, status).Inc()
	SourceReadDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordSourceHealth records the health status of a source.
func RecordSourceHealth(source, sourceType string, healthy bool) {
	val := 0.0
	if healthy {
		val = 1.0
	}
	SourceHealth.WithLabelValues(source, sourceType).Set(val)
}

// RecordConfigUpdate records a priority or source identifier change.
func RecordConfigUpdate(asset, kind string) {
	ConfigUpdatesTotal.WithLabelValues(asset, kind).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

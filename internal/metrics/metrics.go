// Package metrics provides Prometheus metrics for the upload service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nicevod_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nicevod_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	uploadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nicevod_uploads_total",
			Help: "Total number of uploads written to storage",
		},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nicevod_upload_bytes_total",
			Help: "Total declared bytes of stored uploads",
		},
	)

	rejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nicevod_rejections_total",
			Help: "Total refused requests by rejection kind",
		},
		[]string{"kind"},
	)

	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nicevod_storage_operation_duration_seconds",
			Help:    "Object storage operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	storageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nicevod_storage_operations_total",
			Help: "Total object storage operations",
		},
		[]string{"backend", "operation", "status"},
	)

	shortlinkLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nicevod_shortlink_lookups_total",
			Help: "Total short link lookups",
		},
		[]string{"result"},
	)
)

// RecordRequest records one served HTTP request. route is the chi pattern,
// not the raw path, to keep label cardinality bounded.
func RecordRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordUpload records a stored upload of size bytes.
func RecordUpload(size int64) {
	uploadsTotal.Inc()
	uploadBytesTotal.Add(float64(size))
}

// RecordRejection records a refused request.
func RecordRejection(kind string) {
	rejectionsTotal.WithLabelValues(kind).Inc()
}

// RecordStorageOperation records the outcome and latency of a storage call.
func RecordStorageOperation(backend, operation string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	storageOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	storageOperationDuration.WithLabelValues(backend, operation).Observe(d.Seconds())
}

// RecordShortlinkLookup records whether a short code resolved.
func RecordShortlinkLookup(found bool) {
	result := "miss"
	if found {
		result = "hit"
	}
	shortlinkLookupsTotal.WithLabelValues(result).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

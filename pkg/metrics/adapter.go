package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AdapterMetrics provides observability for filesystem adapters (the layer
// the device command dispatcher talks to).
type AdapterMetrics interface {
	// RecordOperation records a completed adapter operation.
	//
	// Parameters:
	//   - backend: Backend scheme (e.g., "tnfs", "http", "s3")
	//   - operation: Adapter operation (e.g., "open", "read", "special")
	//   - duration: Time taken
	//   - err: Error if the operation failed, nil if successful
	RecordOperation(backend, operation string, duration time.Duration, err error)

	// RecordBytesRead records bytes delivered to the caller.
	RecordBytesRead(backend string, n int)

	// RecordCacheLookup records a directory cache lookup.
	RecordCacheLookup(hit bool)
}

type adapterMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesRead         *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
}

// NewAdapterMetrics returns the process wide Prometheus-backed
// AdapterMetrics, or a no-op implementation if metrics are not enabled.
func NewAdapterMetrics() AdapterMetrics {
	if !IsEnabled() {
		return NewNoopAdapterMetrics()
	}
	adapterOnce.Do(func() {
		adapterShared = NewAdapterMetricsWith(GetRegistry())
	})
	return adapterShared
}

// NewAdapterMetricsWith registers adapter metrics on reg.
func NewAdapterMetricsWith(reg prometheus.Registerer) AdapterMetrics {
	return &adapterMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "netfs_adapter_operations_total",
				Help: "Total number of adapter operations by backend, operation and status",
			},
			[]string{"backend", "operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "netfs_adapter_operation_duration_seconds",
				Help:    "Duration of adapter operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "operation"},
		),
		bytesRead: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "netfs_adapter_bytes_read_total",
				Help: "Bytes delivered to the device by backend",
			},
			[]string{"backend"},
		),
		cacheLookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "netfs_adapter_dir_cache_lookups_total",
				Help: "Directory cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

func (m *adapterMetrics) RecordOperation(backend, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(backend, operation, status).Inc()
	m.operationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

func (m *adapterMetrics) RecordBytesRead(backend string, n int) {
	m.bytesRead.WithLabelValues(backend).Add(float64(n))
}

func (m *adapterMetrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// NewNoopAdapterMetrics returns an AdapterMetrics that records nothing.
func NewNoopAdapterMetrics() AdapterMetrics {
	return noopAdapterMetrics{}
}

type noopAdapterMetrics struct{}

func (noopAdapterMetrics) RecordOperation(backend, operation string, duration time.Duration, err error) {
}
func (noopAdapterMetrics) RecordBytesRead(backend string, n int) {}
func (noopAdapterMetrics) RecordCacheLookup(hit bool)            {}
